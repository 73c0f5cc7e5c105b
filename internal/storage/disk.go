package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"

	"github.com/spoolfs/spoolfs/internal/buffer"
	"github.com/spoolfs/spoolfs/pkg/errors"
)

// Disk stores the file content in a scratch file. The scratch name is derived
// from a hash of the logical path plus the inode number, so two entries never
// share a backing file even if their paths hash identically.
type Disk struct {
	scratchPath string
	fh          *os.File
	cursor      int64
	size        int64
	destroyed   bool
}

var _ Strategy = (*Disk)(nil)

// ScratchName returns the deterministic scratch file name for a logical path
// and inode.
func ScratchName(logicalPath string, ino uint64) string {
	sum := blake3.Sum256([]byte(logicalPath))
	return fmt.Sprintf("%x-%d.spool", sum[:8], ino)
}

// NewDisk creates a disk strategy backed by a scratch file under scratchDir.
// The file is created empty, populated with the initial content if any, and
// closed again, so the strategy starts in the closed state.
func NewDisk(scratchDir, logicalPath string, ino uint64, initial []byte) (*Disk, error) {
	d := &Disk{
		scratchPath: filepath.Join(scratchDir, ScratchName(logicalPath, ino)),
	}

	fh, err := os.OpenFile(d.scratchPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return nil, errors.NewError(errors.ErrCodeIo, "failed to create scratch file").
			WithComponent("disk").WithContext("path", d.scratchPath).WithCause(err)
	}
	d.fh = fh

	if len(initial) > 0 {
		if _, err := d.Write(initial, 0); err != nil {
			_ = fh.Close()
			_ = os.Remove(d.scratchPath)
			return nil, err
		}
	}

	if err := d.Close(); err != nil {
		_ = os.Remove(d.scratchPath)
		return nil, err
	}

	return d, nil
}

// Open opens the scratch file. At most one handle is open at a time.
func (d *Disk) Open() error {
	if d.fh != nil {
		return errors.NewError(errors.ErrCodeAlreadyOpen, "scratch file already open").
			WithComponent("disk").WithContext("path", d.scratchPath)
	}

	fh, err := os.OpenFile(d.scratchPath, os.O_RDWR, 0600)
	if err != nil {
		return errors.NewError(errors.ErrCodeIo, "failed to open scratch file").
			WithComponent("disk").WithContext("path", d.scratchPath).WithCause(err)
	}

	d.fh = fh
	d.cursor = 0
	return nil
}

// Close closes the scratch file handle.
func (d *Disk) Close() error {
	if d.fh == nil {
		return errors.NewError(errors.ErrCodeNotOpen, "scratch file not open").
			WithComponent("disk").WithContext("path", d.scratchPath)
	}

	if err := d.fh.Close(); err != nil {
		return errors.NewError(errors.ErrCodeIo, "failed to close scratch file").
			WithComponent("disk").WithContext("path", d.scratchPath).WithCause(err)
	}

	d.fh = nil
	d.cursor = 0
	return nil
}

// Write places buf at off. Gaps are not explicitly zero-filled; the
// filesystem's sparse behavior yields zeros for the unwritten range. The
// logical size grows by exactly the bytes extending past the current end.
func (d *Disk) Write(buf []byte, off int64) (int64, error) {
	if d.fh == nil {
		return 0, errors.NewError(errors.ErrCodeNotOpen, "write on closed strategy").
			WithComponent("disk").WithOperation("write")
	}

	size := int64(len(buf))

	var newBytes int64
	if off < d.size {
		if off+size > d.size {
			newBytes = size - (d.size - off)
		}
	} else {
		newBytes = off - d.size + size
	}

	if d.cursor != off {
		if _, err := d.fh.Seek(off, io.SeekStart); err != nil {
			return 0, errors.NewError(errors.ErrCodeIo, "seek failed").
				WithComponent("disk").WithOperation("write").WithCause(err)
		}
	}

	n, err := d.fh.Write(buf)
	if err != nil {
		return 0, errors.NewError(errors.ErrCodeIo, "write failed").
			WithComponent("disk").WithOperation("write").WithCause(err)
	}
	if int64(n) != size {
		return 0, errors.NewError(errors.ErrCodeIo, "short write").
			WithComponent("disk").WithOperation("write").
			WithContext("written", fmt.Sprintf("%d/%d", n, size))
	}

	d.size += newBytes
	d.cursor = off + size

	return size, nil
}

// Read returns an owned view of [off, off+size). A size of ReadAll reads the
// whole file from offset 0. A read that requests bytes but yields none fails
// with UnexpectedEof instead of pretending data exists; a partially satisfied
// read is returned short.
func (d *Disk) Read(size, off int64) (BufferView, error) {
	if d.fh == nil {
		return nil, errors.NewError(errors.ErrCodeNotOpen, "read on closed strategy").
			WithComponent("disk").WithOperation("read")
	}

	if size == ReadAll {
		size = d.size
		off = 0
	}

	if size == 0 {
		return Own(nil), nil
	}

	if d.cursor != off {
		if _, err := d.fh.Seek(off, io.SeekStart); err != nil {
			return nil, errors.NewError(errors.ErrCodeIo, "seek failed").
				WithComponent("disk").WithOperation("read").WithCause(err)
		}
		d.cursor = off
	}

	buf := buffer.GetBuffer(int(size))

	n, err := d.fh.Read(buf)
	if err != nil && err != io.EOF {
		buffer.PutBuffer(buf)
		return nil, errors.NewError(errors.ErrCodeIo, "read failed").
			WithComponent("disk").WithOperation("read").WithCause(err)
	}
	if n == 0 {
		buffer.PutBuffer(buf)
		return nil, errors.NewError(errors.ErrCodeUnexpectedEof, "read returned no data").
			WithComponent("disk").WithOperation("read").
			WithContext("offset", fmt.Sprintf("%d", off)).
			WithContext("size", fmt.Sprintf("%d", size))
	}

	d.cursor = off + int64(n)

	return Own(buf[:n]), nil
}

// Size returns the logical content length.
func (d *Disk) Size() int64 { return d.size }

// Destroy removes the scratch file. The removal happens exactly once; later
// calls are no-ops.
func (d *Disk) Destroy() error {
	if d.destroyed {
		return nil
	}
	d.destroyed = true

	if d.fh != nil {
		_ = d.fh.Close()
		d.fh = nil
	}

	if err := os.Remove(d.scratchPath); err != nil && !os.IsNotExist(err) {
		return errors.NewError(errors.ErrCodeIo, "failed to remove scratch file").
			WithComponent("disk").WithContext("path", d.scratchPath).WithCause(err)
	}
	return nil
}

// ScratchPath exposes the backing file location for logging and tests.
func (d *Disk) ScratchPath() string { return d.scratchPath }

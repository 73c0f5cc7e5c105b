// Package fuse bridges kernel FUSE requests to the dispatcher. Only the
// operations the dispatcher serves are implemented; everything else keeps
// the default ENOSYS behavior.
package fuse

import (
	"time"

	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/spoolfs/spoolfs/internal/dispatch"
	"github.com/spoolfs/spoolfs/pkg/errors"
	"github.com/spoolfs/spoolfs/pkg/utils"
)

// attrTimeout is how long the kernel may cache entry and attribute replies.
const attrTimeout = time.Second

// FileSystem implements the kernel-facing protocol on top of a Dispatcher.
type FileSystem struct {
	fuse.RawFileSystem

	dispatcher *dispatch.Dispatcher
	logger     *utils.Logger
}

// NewFileSystem creates the kernel bridge for a dispatcher.
func NewFileSystem(dispatcher *dispatch.Dispatcher, logger *utils.Logger) *FileSystem {
	return &FileSystem{
		RawFileSystem: fuse.NewDefaultRawFileSystem(),
		dispatcher:    dispatcher,
		logger:        logger.WithComponent("fuse"),
	}
}

// toStatus maps a dispatcher error to a kernel status code.
func toStatus(err error) fuse.Status {
	if err == nil {
		return fuse.OK
	}
	return fuse.Status(errors.Errno(err))
}

// fillAttr copies a dispatcher attribute record into the kernel layout.
func fillAttr(attr dispatch.Attr, out *fuse.Attr) {
	out.Ino = attr.Ino
	out.Mode = attr.Mode
	out.Nlink = attr.Nlink
	out.Owner = fuse.Owner{Uid: attr.UID, Gid: attr.GID}
	out.Size = uint64(attr.Size)
	out.Blocks = (uint64(attr.Size) + 511) / 512
	out.Rdev = uint32(attr.Dev)

	atime := attr.Atime
	mtime := attr.Mtime
	ctime := attr.Ctime
	out.SetTimes(&atime, &mtime, &ctime)
}

func fillEntry(attr dispatch.Attr, out *fuse.EntryOut) {
	out.NodeId = attr.Ino
	out.Generation = 0
	fillAttr(attr, &out.Attr)
	out.SetEntryTimeout(attrTimeout)
	out.SetAttrTimeout(attrTimeout)
}

// Lookup resolves a name under a parent directory.
func (f *FileSystem) Lookup(cancel <-chan struct{}, header *fuse.InHeader, name string, out *fuse.EntryOut) fuse.Status {
	attr, err := f.dispatcher.Lookup(header.NodeId, name)
	if err != nil {
		return toStatus(err)
	}
	fillEntry(attr, out)
	return fuse.OK
}

// GetAttr returns the attributes of an inode.
func (f *FileSystem) GetAttr(cancel <-chan struct{}, input *fuse.GetAttrIn, out *fuse.AttrOut) fuse.Status {
	attr, err := f.dispatcher.GetAttr(input.NodeId)
	if err != nil {
		return toStatus(err)
	}
	fillAttr(attr, &out.Attr)
	out.SetTimeout(attrTimeout)
	return fuse.OK
}

// Open opens a regular file.
func (f *FileSystem) Open(cancel <-chan struct{}, input *fuse.OpenIn, out *fuse.OpenOut) fuse.Status {
	if err := f.dispatcher.Open(input.NodeId); err != nil {
		return toStatus(err)
	}
	// Handles carry no state; the inode is the handle.
	out.Fh = input.NodeId
	return fuse.OK
}

// Read serves up to Size bytes from Offset.
func (f *FileSystem) Read(cancel <-chan struct{}, input *fuse.ReadIn, buf []byte) (fuse.ReadResult, fuse.Status) {
	view, err := f.dispatcher.Read(input.NodeId, int64(input.Size), int64(input.Offset))
	if err != nil {
		return nil, toStatus(err)
	}

	n := copy(buf, view.Bytes())
	view.Release()
	return fuse.ReadResultData(buf[:n]), fuse.OK
}

// Write stores the payload at Offset and reports the bytes accepted.
func (f *FileSystem) Write(cancel <-chan struct{}, input *fuse.WriteIn, data []byte) (uint32, fuse.Status) {
	written, err := f.dispatcher.Write(input.NodeId, data, int64(input.Offset))
	if err != nil {
		return 0, toStatus(err)
	}
	return uint32(written), fuse.OK
}

// Release closes a regular file.
func (f *FileSystem) Release(cancel <-chan struct{}, input *fuse.ReleaseIn) {
	if err := f.dispatcher.Release(input.NodeId); err != nil {
		f.logger.Warn("release ino=%d: %v", input.NodeId, err)
	}
}

// Create makes a new empty file and opens it.
func (f *FileSystem) Create(cancel <-chan struct{}, input *fuse.CreateIn, name string, out *fuse.CreateOut) fuse.Status {
	attr, err := f.dispatcher.Create(input.NodeId, name, input.Mode&07777, input.Caller.Uid, input.Caller.Gid)
	if err != nil {
		return toStatus(err)
	}

	if err := f.dispatcher.Open(attr.Ino); err != nil {
		return toStatus(err)
	}

	fillEntry(attr, &out.EntryOut)
	out.Fh = attr.Ino
	return fuse.OK
}

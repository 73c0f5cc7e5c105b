// Package dispatch translates kernel-facing filesystem requests into
// namespace and storage operations. Each handler resolves the inode first,
// maps every failure to a typed error, and never carries state across calls.
package dispatch

import (
	"io"
	"strconv"
	"syscall"
	"time"

	"github.com/spoolfs/spoolfs/internal/buffer"
	"github.com/spoolfs/spoolfs/internal/namespace"
	"github.com/spoolfs/spoolfs/internal/storage"
	"github.com/spoolfs/spoolfs/pkg/errors"
	"github.com/spoolfs/spoolfs/pkg/utils"
)

// DeviceID is the device number reported for every entry.
const DeviceID uint64 = 1997

// Attr is the attribute record returned by lookup, getattr, and create.
type Attr struct {
	Dev   uint64
	Ino   uint64
	Mode  uint32 // type bits plus permissions
	Nlink uint32
	UID   uint32
	GID   uint32
	Size  int64
	Atime time.Time
	Mtime time.Time
	Ctime time.Time
}

// Recorder receives operation outcomes for metrics export. Implementations
// must be safe for concurrent use.
type Recorder interface {
	RecordOperation(op string, duration time.Duration, err error)
	RecordRead(bytes int64)
	RecordWrite(bytes int64)
}

// nopRecorder drops everything; used when no collector is wired in.
type nopRecorder struct{}

func (nopRecorder) RecordOperation(string, time.Duration, error) {}
func (nopRecorder) RecordRead(int64)                             {}
func (nopRecorder) RecordWrite(int64)                            {}

// Dispatcher serves protocol requests against one namespace table.
type Dispatcher struct {
	table   *namespace.Table
	logger  *utils.Logger
	metrics Recorder
}

// NewDispatcher creates a dispatcher over the given table. logger and rec
// may be nil.
func NewDispatcher(table *namespace.Table, logger *utils.Logger, rec Recorder) *Dispatcher {
	if logger == nil {
		logger = utils.NewLogger(utils.ERROR, io.Discard)
	}
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Dispatcher{
		table:   table,
		logger:  logger.WithComponent("dispatch"),
		metrics: rec,
	}
}

// attrOf snapshots an entry's attributes. The caller holds the entry lock
// when the entry is regular, since Size reads the strategy.
func attrOf(e *namespace.Entry) Attr {
	mode := e.Mode()
	if e.Kind() == namespace.KindDirectory {
		mode |= syscall.S_IFDIR
	} else {
		mode |= syscall.S_IFREG
	}
	atime, mtime, ctime := e.Times()
	return Attr{
		Dev:   DeviceID,
		Ino:   e.Ino(),
		Mode:  mode,
		Nlink: 1,
		UID:   e.UID(),
		GID:   e.GID(),
		Size:  e.Size(),
		Atime: atime,
		Mtime: mtime,
		Ctime: ctime,
	}
}

// resolve maps a table miss to NoSuchEntry.
func (d *Dispatcher) resolve(ino uint64) (*namespace.Entry, error) {
	entry, ok := d.table.GetByInode(ino)
	if !ok {
		return nil, errors.NewError(errors.ErrCodeNoSuchEntry, "inode not registered").
			WithComponent("dispatch").WithContext("ino", strconv.FormatUint(ino, 10))
	}
	return entry, nil
}

// Lookup resolves a name under a parent directory and returns the child's
// attributes.
func (d *Dispatcher) Lookup(parentIno uint64, name string) (Attr, error) {
	start := time.Now()
	entry, err := d.table.FindChild(parentIno, name)
	if err != nil {
		d.metrics.RecordOperation("lookup", time.Since(start), err)
		return Attr{}, err
	}

	entry.Lock()
	attr := attrOf(entry)
	entry.Unlock()

	d.metrics.RecordOperation("lookup", time.Since(start), nil)
	return attr, nil
}

// GetAttr returns the attributes of an inode.
func (d *Dispatcher) GetAttr(ino uint64) (Attr, error) {
	start := time.Now()
	entry, err := d.resolve(ino)
	if err != nil {
		d.metrics.RecordOperation("getattr", time.Since(start), err)
		return Attr{}, err
	}

	entry.Lock()
	attr := attrOf(entry)
	entry.Unlock()

	d.metrics.RecordOperation("getattr", time.Since(start), nil)
	return attr, nil
}

// Open opens the storage strategy behind a regular file.
func (d *Dispatcher) Open(ino uint64) error {
	start := time.Now()
	err := d.withStrategy(ino, func(s storage.Strategy, _ *namespace.Entry) error {
		return s.Open()
	})
	d.metrics.RecordOperation("open", time.Since(start), err)
	if err != nil {
		d.logger.Debug("open ino=%d failed: %v", ino, err)
	}
	return err
}

// Read returns up to size bytes starting at off. A size of storage.ReadAll
// requests the whole content from offset zero. The returned view is always
// safe to use after the call; callers must Release it exactly once.
func (d *Dispatcher) Read(ino uint64, size, off int64) (storage.BufferView, error) {
	start := time.Now()
	var view storage.BufferView
	err := d.withStrategy(ino, func(s storage.Strategy, _ *namespace.Entry) error {
		v, err := s.Read(size, off)
		if err != nil {
			return err
		}
		// Borrowed views alias the strategy's live content and are only
		// valid under the entry lock. Copy them out before unlocking.
		if _, borrowed := v.(*storage.BorrowedView); borrowed {
			n := v.Len()
			buf := buffer.GetBuffer(n)
			copy(buf, v.Bytes())
			v.Release()
			v = storage.Own(buf[:n])
		}
		view = v
		return nil
	})
	d.metrics.RecordOperation("read", time.Since(start), err)
	if err != nil {
		return nil, err
	}
	d.metrics.RecordRead(int64(view.Len()))
	return view, nil
}

// Write stores buf at off and returns the number of bytes accepted.
func (d *Dispatcher) Write(ino uint64, buf []byte, off int64) (int64, error) {
	start := time.Now()
	var written int64
	err := d.withStrategy(ino, func(s storage.Strategy, entry *namespace.Entry) error {
		n, err := s.Write(buf, off)
		if err != nil {
			return err
		}
		written = n
		entry.TouchModify(time.Now())
		return nil
	})
	d.metrics.RecordOperation("write", time.Since(start), err)
	if err != nil {
		return 0, err
	}
	d.metrics.RecordWrite(written)
	return written, nil
}

// Release closes the storage strategy behind a regular file.
func (d *Dispatcher) Release(ino uint64) error {
	start := time.Now()
	err := d.withStrategy(ino, func(s storage.Strategy, _ *namespace.Entry) error {
		return s.Close()
	})
	d.metrics.RecordOperation("release", time.Since(start), err)
	return err
}

// Create makes a new empty regular file under a parent directory and
// returns its attributes.
func (d *Dispatcher) Create(parentIno uint64, name string, mode, uid, gid uint32) (Attr, error) {
	start := time.Now()
	entry, err := d.table.CreateFile(parentIno, name, mode, uid, gid)
	if err != nil {
		d.metrics.RecordOperation("create", time.Since(start), err)
		return Attr{}, err
	}

	entry.Lock()
	attr := attrOf(entry)
	entry.Unlock()

	d.logger.Debug("created %s ino=%d", entry.Path(), entry.Ino())
	d.metrics.RecordOperation("create", time.Since(start), nil)
	return attr, nil
}

// withStrategy resolves a regular file's strategy and runs fn under the
// entry lock.
func (d *Dispatcher) withStrategy(ino uint64, fn func(storage.Strategy, *namespace.Entry) error) error {
	entry, err := d.resolve(ino)
	if err != nil {
		return err
	}

	entry.Lock()
	defer entry.Unlock()

	strategy, err := entry.Strategy()
	if err != nil {
		return err
	}
	return fn(strategy, entry)
}

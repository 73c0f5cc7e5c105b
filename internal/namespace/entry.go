// Package namespace holds the in-memory inode table: every filesystem object
// is an Entry registered under a unique inode number, with name-based lookup
// scoped to a parent directory.
package namespace

import (
	"sync"
	"time"

	"github.com/spoolfs/spoolfs/internal/storage"
	"github.com/spoolfs/spoolfs/pkg/errors"
)

// Kind discriminates the two entry kinds. It is fixed at creation.
type Kind int

const (
	KindRegular Kind = iota
	KindDirectory
)

// String returns the kind name for logging.
func (k Kind) String() string {
	switch k {
	case KindRegular:
		return "regular"
	case KindDirectory:
		return "directory"
	default:
		return "unknown"
	}
}

// dirSize is the nominal size reported for directory entries.
const dirSize int64 = 4096

// childRef binds a name to an inode within one directory.
type childRef struct {
	name string
	ino  uint64
}

// Entry is one namespace node. Regular entries own a storage strategy,
// directory entries own a child listing. The embedded mutex serializes
// strategy operations on this entry, so a promotion in progress is never
// observed half-migrated by a concurrent request.
type Entry struct {
	mu sync.Mutex

	path string
	ino  uint64
	kind Kind
	mode uint32
	uid  uint32
	gid  uint32

	atime time.Time
	mtime time.Time
	ctime time.Time

	strategy storage.Strategy // regular entries only
	children []childRef       // directory entries only
}

// Lock serializes storage operations on this entry.
func (e *Entry) Lock() { e.mu.Lock() }

// Unlock releases the entry lock.
func (e *Entry) Unlock() { e.mu.Unlock() }

// Path returns the display path. Lookup never uses it; resolution is by
// parent inode plus name.
func (e *Entry) Path() string { return e.path }

// Ino returns the entry's inode number.
func (e *Entry) Ino() uint64 { return e.ino }

// Kind returns the entry kind.
func (e *Entry) Kind() Kind { return e.kind }

// Mode returns the permission bits.
func (e *Entry) Mode() uint32 { return e.mode }

// UID returns the owning user id.
func (e *Entry) UID() uint32 { return e.uid }

// GID returns the owning group id.
func (e *Entry) GID() uint32 { return e.gid }

// Times returns the access, modify, and change timestamps.
func (e *Entry) Times() (atime, mtime, ctime time.Time) {
	return e.atime, e.mtime, e.ctime
}

// TouchModify updates the modify and change timestamps. The caller holds
// the entry lock.
func (e *Entry) TouchModify(now time.Time) {
	e.mtime = now
	e.ctime = now
}

// Size reports the logical size: the strategy's size for regular entries,
// a nominal block for directories.
func (e *Entry) Size() int64 {
	if e.kind == KindDirectory {
		return dirSize
	}
	return e.strategy.Size()
}

// Strategy returns the storage strategy of a regular entry. Directories have
// no strategy; asking for one is a kind mismatch, not a crash.
func (e *Entry) Strategy() (storage.Strategy, error) {
	if e.kind != KindRegular {
		return nil, errors.NewError(errors.ErrCodeNotAFile, "entry is not a regular file").
			WithComponent("namespace").WithContext("path", e.path)
	}
	return e.strategy, nil
}

// ChildNames returns the names registered under a directory entry.
func (e *Entry) ChildNames() ([]string, error) {
	if e.kind != KindDirectory {
		return nil, errors.NewError(errors.ErrCodeNotADirectory, "entry is not a directory").
			WithComponent("namespace").WithContext("path", e.path)
	}

	names := make([]string, len(e.children))
	for i, c := range e.children {
		names[i] = c.name
	}
	return names, nil
}

// findChild scans the child list for a name. Directories are expected to be
// small; a linear scan is fine.
func (e *Entry) findChild(name string) (uint64, bool) {
	for _, c := range e.children {
		if c.name == name {
			return c.ino, true
		}
	}
	return 0, false
}

func (e *Entry) addChild(name string, ino uint64) {
	e.children = append(e.children, childRef{name: name, ino: ino})
}

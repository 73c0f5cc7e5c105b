package namespace

import (
	"path"
	"sync"
	"time"

	"github.com/spoolfs/spoolfs/internal/storage"
	"github.com/spoolfs/spoolfs/pkg/errors"
)

// RootInode is the inode of the root directory. It always exists and is
// never removed.
const RootInode uint64 = 1

// invalidInode is reserved; no entry ever carries it.
const invalidInode uint64 = 0

// Table maps inode numbers to entries and issues new inodes on creation.
// Inode numbers grow monotonically and are never recycled within a process
// lifetime, which keeps kernel-side caching contracts simple.
type Table struct {
	mu      sync.RWMutex
	entries map[uint64]*Entry
	nextIno uint64

	scratchDir string
	threshold  int64

	// promoteHook, when set, is attached to every spool created by the
	// table and fires after each memory-to-disk promotion.
	promoteHook func()
}

// NewTable creates an inode table containing only the root directory.
func NewTable(scratchDir string, threshold int64, rootMode uint32, uid, gid uint32) *Table {
	now := time.Now()
	root := &Entry{
		path:  "/",
		ino:   RootInode,
		kind:  KindDirectory,
		mode:  rootMode,
		uid:   uid,
		gid:   gid,
		atime: now,
		mtime: now,
		ctime: now,
	}

	return &Table{
		entries:    map[uint64]*Entry{RootInode: root},
		nextIno:    RootInode + 1,
		scratchDir: scratchDir,
		threshold:  threshold,
	}
}

// SetPromotionHook installs a callback fired after every spool promotion.
// Install it before any files are created.
func (t *Table) SetPromotionHook(hook func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.promoteHook = hook
}

// GetByInode resolves an inode to its entry. A missing inode is an ordinary
// miss, never a fault.
func (t *Table) GetByInode(ino uint64) (*Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.entries[ino]
	return e, ok
}

// FindChild resolves a name within a parent directory.
func (t *Table) FindChild(parentIno uint64, name string) (*Entry, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	parent, ok := t.entries[parentIno]
	if !ok {
		return nil, errors.NewError(errors.ErrCodeNoSuchEntry, "parent inode not registered").
			WithComponent("namespace").WithOperation("find_child")
	}
	if parent.kind != KindDirectory {
		return nil, errors.NewError(errors.ErrCodeNotADirectory, "parent is not a directory").
			WithComponent("namespace").WithOperation("find_child").
			WithContext("path", parent.path)
	}

	ino, ok := parent.findChild(name)
	if !ok {
		return nil, errors.NewError(errors.ErrCodeNoSuchEntry, "name not found in directory").
			WithComponent("namespace").WithOperation("find_child").
			WithContext("name", name)
	}

	return t.entries[ino], nil
}

// CreateFile registers a new regular file under a parent directory and
// returns its entry. The file starts with an empty spool strategy.
func (t *Table) CreateFile(parentIno uint64, name string, mode uint32, uid, gid uint32) (*Entry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	parent, ok := t.entries[parentIno]
	if !ok {
		return nil, errors.NewError(errors.ErrCodeNoSuchEntry, "parent inode not registered").
			WithComponent("namespace").WithOperation("create_file")
	}
	if parent.kind != KindDirectory {
		return nil, errors.NewError(errors.ErrCodeNotADirectory, "parent is not a directory").
			WithComponent("namespace").WithOperation("create_file").
			WithContext("path", parent.path)
	}
	if _, taken := parent.findChild(name); taken {
		return nil, errors.NewError(errors.ErrCodeAlreadyExists, "name already taken").
			WithComponent("namespace").WithOperation("create_file").
			WithContext("name", name)
	}

	ino := t.nextIno
	t.nextIno++

	entryPath := path.Join(parent.path, name)

	spool, err := storage.NewSpool(t.scratchDir, entryPath, ino, t.threshold, nil)
	if err != nil {
		return nil, err
	}
	spool.OnPromote = t.promoteHook

	now := time.Now()
	e := &Entry{
		path:     entryPath,
		ino:      ino,
		kind:     KindRegular,
		mode:     mode,
		uid:      uid,
		gid:      gid,
		atime:    now,
		mtime:    now,
		ctime:    now,
		strategy: spool,
	}

	t.entries[ino] = e
	parent.addChild(name, ino)

	return e, nil
}

// CreateDir registers a new directory under a parent. The protocol surface
// never calls this; it exists for namespace bookkeeping (prepopulated trees
// and tests).
func (t *Table) CreateDir(parentIno uint64, name string, mode uint32, uid, gid uint32) (*Entry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	parent, ok := t.entries[parentIno]
	if !ok {
		return nil, errors.NewError(errors.ErrCodeNoSuchEntry, "parent inode not registered").
			WithComponent("namespace").WithOperation("create_dir")
	}
	if parent.kind != KindDirectory {
		return nil, errors.NewError(errors.ErrCodeNotADirectory, "parent is not a directory").
			WithComponent("namespace").WithOperation("create_dir").
			WithContext("path", parent.path)
	}
	if _, taken := parent.findChild(name); taken {
		return nil, errors.NewError(errors.ErrCodeAlreadyExists, "name already taken").
			WithComponent("namespace").WithOperation("create_dir").
			WithContext("name", name)
	}

	ino := t.nextIno
	t.nextIno++

	now := time.Now()
	e := &Entry{
		path:  path.Join(parent.path, name),
		ino:   ino,
		kind:  KindDirectory,
		mode:  mode,
		uid:   uid,
		gid:   gid,
		atime: now,
		mtime: now,
		ctime: now,
	}

	t.entries[ino] = e
	parent.addChild(name, ino)

	return e, nil
}

// Len returns the number of registered entries.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Destroy releases every strategy in the table. Called on unmount so scratch
// files do not outlive the filesystem.
func (t *Table) Destroy() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var firstErr error
	for _, e := range t.entries {
		if e.kind != KindRegular {
			continue
		}
		e.Lock()
		err := e.strategy.Destroy()
		e.Unlock()
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

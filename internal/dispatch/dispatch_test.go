package dispatch

import (
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spoolfs/spoolfs/internal/namespace"
	"github.com/spoolfs/spoolfs/internal/storage"
	"github.com/spoolfs/spoolfs/pkg/errors"
)

func newTestDispatcher(t *testing.T, threshold int64) (*Dispatcher, *namespace.Table) {
	t.Helper()
	table := namespace.NewTable(t.TempDir(), threshold, 0755, 1000, 1000)
	return NewDispatcher(table, nil, nil), table
}

func TestGetAttrRoot(t *testing.T) {
	d, _ := newTestDispatcher(t, 1024)

	attr, err := d.GetAttr(namespace.RootInode)
	require.NoError(t, err)

	assert.Equal(t, DeviceID, attr.Dev)
	assert.Equal(t, namespace.RootInode, attr.Ino)
	assert.Equal(t, uint32(syscall.S_IFDIR|0755), attr.Mode)
	assert.Equal(t, uint32(1), attr.Nlink)
	assert.Equal(t, int64(4096), attr.Size)
}

func TestGetAttrMiss(t *testing.T) {
	d, _ := newTestDispatcher(t, 1024)

	_, err := d.GetAttr(42)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNoSuchEntry, errors.Code(err))
}

func TestCreateAndLookup(t *testing.T) {
	d, _ := newTestDispatcher(t, 1024)

	created, err := d.Create(namespace.RootInode, "notes.txt", 0644, 1000, 1000)
	require.NoError(t, err)
	assert.Equal(t, uint32(syscall.S_IFREG|0644), created.Mode)
	assert.Equal(t, int64(0), created.Size)
	assert.Equal(t, uint32(1000), created.UID)

	found, err := d.Lookup(namespace.RootInode, "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, created.Ino, found.Ino)
	assert.Equal(t, DeviceID, found.Dev)
}

func TestLookupMiss(t *testing.T) {
	d, _ := newTestDispatcher(t, 1024)

	_, err := d.Lookup(namespace.RootInode, "ghost")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNoSuchEntry, errors.Code(err))
}

func TestCreateErrors(t *testing.T) {
	d, _ := newTestDispatcher(t, 1024)

	_, err := d.Create(namespace.RootInode, "a", 0644, 0, 0)
	require.NoError(t, err)

	tests := []struct {
		name      string
		parentIno uint64
		child     string
		code      errors.ErrorCode
	}{
		{"duplicate name", namespace.RootInode, "a", errors.ErrCodeAlreadyExists},
		{"missing parent", 99, "b", errors.ErrCodeNoSuchEntry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Create(tt.parentIno, tt.child, 0644, 0, 0)
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.Code(err))
		})
	}
}

func TestCreateUnderFile(t *testing.T) {
	d, _ := newTestDispatcher(t, 1024)

	file, err := d.Create(namespace.RootInode, "a", 0644, 0, 0)
	require.NoError(t, err)

	_, err = d.Create(file.Ino, "b", 0644, 0, 0)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNotADirectory, errors.Code(err))
}

func TestWriteReadRoundTrip(t *testing.T) {
	d, _ := newTestDispatcher(t, 1024)

	attr, err := d.Create(namespace.RootInode, "f", 0644, 0, 0)
	require.NoError(t, err)
	ino := attr.Ino

	require.NoError(t, d.Open(ino))

	n, err := d.Write(ino, []byte("hello"), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	view, err := d.Read(ino, 5, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), view.Bytes())
	view.Release()

	after, err := d.GetAttr(ino)
	require.NoError(t, err)
	assert.Equal(t, int64(5), after.Size)

	require.NoError(t, d.Release(ino))
}

func TestWriteUpdatesModifyTime(t *testing.T) {
	d, _ := newTestDispatcher(t, 1024)

	attr, err := d.Create(namespace.RootInode, "f", 0644, 0, 0)
	require.NoError(t, err)

	before := attr.Mtime
	time.Sleep(10 * time.Millisecond)

	_, err = d.Write(attr.Ino, []byte("x"), 0)
	require.NoError(t, err)

	after, err := d.GetAttr(attr.Ino)
	require.NoError(t, err)
	assert.True(t, after.Mtime.After(before))
}

func TestReadAllSentinel(t *testing.T) {
	d, _ := newTestDispatcher(t, 1024)

	attr, err := d.Create(namespace.RootInode, "f", 0644, 0, 0)
	require.NoError(t, err)

	_, err = d.Write(attr.Ino, []byte("spooled bytes"), 0)
	require.NoError(t, err)

	view, err := d.Read(attr.Ino, storage.ReadAll, 7)
	require.NoError(t, err)
	defer view.Release()
	assert.Equal(t, []byte("spooled bytes"), view.Bytes())
}

func TestReadViewSurvivesLaterWrites(t *testing.T) {
	d, _ := newTestDispatcher(t, 1024)

	attr, err := d.Create(namespace.RootInode, "f", 0644, 0, 0)
	require.NoError(t, err)
	ino := attr.Ino

	_, err = d.Write(ino, []byte("AAAA"), 0)
	require.NoError(t, err)

	view, err := d.Read(ino, 4, 0)
	require.NoError(t, err)
	defer view.Release()

	_, err = d.Write(ino, []byte("BBBB"), 0)
	require.NoError(t, err)

	assert.Equal(t, []byte("AAAA"), view.Bytes())
}

func TestReadBeyondEnd(t *testing.T) {
	d, _ := newTestDispatcher(t, 1024)

	attr, err := d.Create(namespace.RootInode, "f", 0644, 0, 0)
	require.NoError(t, err)

	_, err = d.Write(attr.Ino, []byte("abc"), 0)
	require.NoError(t, err)

	view, err := d.Read(attr.Ino, 10, 10)
	require.NoError(t, err)
	defer view.Release()
	assert.Equal(t, 0, view.Len())
}

func TestWritePromotesLargeFile(t *testing.T) {
	scratchDir := t.TempDir()
	table := namespace.NewTable(scratchDir, 4, 0755, 0, 0)
	d := NewDispatcher(table, nil, nil)

	attr, err := d.Create(namespace.RootInode, "big", 0644, 0, 0)
	require.NoError(t, err)
	ino := attr.Ino

	require.NoError(t, d.Open(ino))
	_, err = d.Write(ino, []byte("exceeds the threshold"), 0)
	require.NoError(t, err)

	files, err := os.ReadDir(scratchDir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, ".spool", filepath.Ext(files[0].Name()))

	view, err := d.Read(ino, storage.ReadAll, 0)
	require.NoError(t, err)
	defer view.Release()
	assert.Equal(t, []byte("exceeds the threshold"), view.Bytes())

	require.NoError(t, d.Release(ino))
}

func TestFileOpsOnDirectory(t *testing.T) {
	d, _ := newTestDispatcher(t, 1024)

	require.Error(t, d.Open(namespace.RootInode))

	_, err := d.Read(namespace.RootInode, 4, 0)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNotAFile, errors.Code(err))

	_, err = d.Write(namespace.RootInode, []byte("x"), 0)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNotAFile, errors.Code(err))
}

func TestFileOpsOnMissingInode(t *testing.T) {
	d, _ := newTestDispatcher(t, 1024)

	assert.Equal(t, errors.ErrCodeNoSuchEntry, errors.Code(d.Open(7)))
	assert.Equal(t, errors.ErrCodeNoSuchEntry, errors.Code(d.Release(7)))

	_, err := d.Read(7, 4, 0)
	assert.Equal(t, errors.ErrCodeNoSuchEntry, errors.Code(err))

	_, err = d.Write(7, []byte("x"), 0)
	assert.Equal(t, errors.ErrCodeNoSuchEntry, errors.Code(err))
}

type countingRecorder struct {
	mu    sync.Mutex
	ops   map[string]int
	read  int64
	write int64
}

func (r *countingRecorder) RecordOperation(op string, _ time.Duration, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ops == nil {
		r.ops = make(map[string]int)
	}
	r.ops[op]++
}

func (r *countingRecorder) RecordRead(n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.read += n
}

func (r *countingRecorder) RecordWrite(n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.write += n
}

func TestRecorderWiring(t *testing.T) {
	table := namespace.NewTable(t.TempDir(), 1024, 0755, 0, 0)
	rec := &countingRecorder{}
	d := NewDispatcher(table, nil, rec)

	attr, err := d.Create(namespace.RootInode, "f", 0644, 0, 0)
	require.NoError(t, err)

	_, err = d.Write(attr.Ino, []byte("12345"), 0)
	require.NoError(t, err)

	view, err := d.Read(attr.Ino, 5, 0)
	require.NoError(t, err)
	view.Release()

	_, _ = d.GetAttr(99)

	assert.Equal(t, 1, rec.ops["create"])
	assert.Equal(t, 1, rec.ops["write"])
	assert.Equal(t, 1, rec.ops["read"])
	assert.Equal(t, 1, rec.ops["getattr"])
	assert.Equal(t, int64(5), rec.write)
	assert.Equal(t, int64(5), rec.read)
}

func TestConcurrentWritesSameInode(t *testing.T) {
	d, _ := newTestDispatcher(t, 1024)

	attr, err := d.Create(namespace.RootInode, "f", 0644, 0, 0)
	require.NoError(t, err)
	ino := attr.Ino

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(off int64) {
			defer wg.Done()
			_, err := d.Write(ino, []byte("0123456789abcdef"), off*16)
			assert.NoError(t, err)
		}(int64(i))
	}
	wg.Wait()

	view, err := d.Read(ino, storage.ReadAll, 0)
	require.NoError(t, err)
	defer view.Release()
	assert.Equal(t, 128, view.Len())
}

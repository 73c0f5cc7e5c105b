// Package storage implements the backing strategies for regular files: an
// in-memory blob, a disk-backed scratch file, and an adaptive spool that
// starts in memory and migrates to disk once a size threshold is crossed.
package storage

// ReadAll is the size sentinel meaning "the entire content from offset 0".
// It overrides both the size and offset arguments of Read.
const ReadAll int64 = -1

// Strategy is the capability set shared by every storage backend.
//
// Write places buf at the given offset. Offsets past the current end extend
// the content; the gap is zero-filled. The returned count is the number of
// bytes accepted.
//
// Read returns a BufferView spanning [off, off+size). Whether the view
// borrows the strategy's live storage or owns an independent allocation
// depends on the backend; callers release it either way.
type Strategy interface {
	Open() error
	Close() error
	Write(buf []byte, off int64) (int64, error)
	Read(size, off int64) (BufferView, error)
	Size() int64

	// Destroy releases the strategy's backing resources. For a disk-backed
	// strategy this removes the scratch file; it happens at most once.
	Destroy() error
}

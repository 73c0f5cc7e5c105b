package storage

import (
	"sync"

	"github.com/spoolfs/spoolfs/internal/buffer"
)

// BufferView is a read result. The two implementations make the ownership
// model explicit in the type system: a BorrowedView aliases the strategy's
// live storage, an OwnedView carries its own allocation and releases it
// exactly once.
type BufferView interface {
	// Bytes returns the viewed data. For a borrowed view the slice aliases
	// the strategy's internal storage and must not be used after the next
	// mutation of that strategy.
	Bytes() []byte
	Len() int

	// Release returns owned memory to the pool. Safe to call more than once;
	// only the first call has an effect. A no-op for borrowed views.
	Release()
}

// BorrowedView aliases a strategy's internal storage.
type BorrowedView struct {
	data []byte
}

// Borrow wraps a slice of live strategy storage in a view.
func Borrow(data []byte) *BorrowedView {
	return &BorrowedView{data: data}
}

// Bytes returns the borrowed slice.
func (v *BorrowedView) Bytes() []byte { return v.data }

// Len returns the number of viewed bytes.
func (v *BorrowedView) Len() int { return len(v.data) }

// Release is a no-op; the strategy keeps owning the memory.
func (v *BorrowedView) Release() {}

// OwnedView holds an allocation drawn from the byte pool.
type OwnedView struct {
	data []byte
	once sync.Once
}

// Own wraps a pool-drawn allocation in a single-release view.
func Own(data []byte) *OwnedView {
	return &OwnedView{data: data}
}

// Bytes returns the owned data. Invalid after Release.
func (v *OwnedView) Bytes() []byte { return v.data }

// Len returns the number of viewed bytes.
func (v *OwnedView) Len() int { return len(v.data) }

// Release returns the allocation to the pool. Subsequent calls do nothing.
func (v *OwnedView) Release() {
	v.once.Do(func() {
		buffer.PutBuffer(v.data)
		v.data = nil
	})
}

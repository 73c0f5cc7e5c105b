package storage

import (
	"github.com/spoolfs/spoolfs/pkg/errors"
)

// DefaultSpoolThreshold is the content size above which a spool migrates its
// backing from memory to disk.
const DefaultSpoolThreshold int64 = 1024

// Spool adaptively picks the backing strategy for one file: it starts in
// memory and promotes to disk once the content outgrows the threshold.
// Promotion is one-way; a spool never reverts to memory. Callers only ever
// see the Spool itself, never the inner backend.
type Spool struct {
	threshold int64
	inner     Strategy
	promoted  bool
	open      bool

	// Construction parameters carried forward for the promotion target.
	scratchDir  string
	logicalPath string
	ino         uint64

	// OnPromote, when set, is invoked after a completed promotion.
	OnPromote func()
}

var _ Strategy = (*Spool)(nil)

// NewSpool creates a spool strategy for the given logical path and inode. If
// the initial content already exceeds the threshold the spool starts on disk
// directly; there is no memory phase to migrate from.
func NewSpool(scratchDir, logicalPath string, ino uint64, threshold int64, initial []byte) (*Spool, error) {
	if threshold <= 0 {
		threshold = DefaultSpoolThreshold
	}

	s := &Spool{
		threshold:   threshold,
		scratchDir:  scratchDir,
		logicalPath: logicalPath,
		ino:         ino,
	}

	if int64(len(initial)) > threshold {
		disk, err := NewDisk(scratchDir, logicalPath, ino, initial)
		if err != nil {
			return nil, err
		}
		s.inner = disk
		s.promoted = true
	} else {
		s.inner = NewMemory(initial)
	}

	return s, nil
}

// Open delegates to the current backend.
func (s *Spool) Open() error {
	if err := s.inner.Open(); err != nil {
		return err
	}
	s.open = true
	return nil
}

// Close delegates to the current backend.
func (s *Spool) Close() error {
	if err := s.inner.Close(); err != nil {
		return err
	}
	s.open = false
	return nil
}

// Write delegates to the current backend, then promotes to disk if the
// content has just outgrown the threshold.
func (s *Spool) Write(buf []byte, off int64) (int64, error) {
	n, err := s.inner.Write(buf, off)
	if err != nil {
		return n, err
	}

	if !s.promoted && s.inner.Size() > s.threshold {
		if err := s.promote(); err != nil {
			return n, err
		}
	}

	return n, nil
}

// promote migrates the full current content into a fresh disk strategy and
// swaps it in. Every byte written so far, including zero-filled gaps, carries
// over; the old memory backend is released.
func (s *Spool) promote() error {
	view, err := s.inner.Read(ReadAll, 0)
	if err != nil {
		return errors.NewError(errors.ErrCodeIo, "promotion read failed").
			WithComponent("spool").WithCause(err)
	}

	disk, err := NewDisk(s.scratchDir, s.logicalPath, s.ino, view.Bytes())
	view.Release()
	if err != nil {
		return errors.NewError(errors.ErrCodeIo, "promotion target creation failed").
			WithComponent("spool").WithCause(err)
	}

	// The spool may promote mid-session; the new backend has to be in the
	// same open state the caller believes the file is in.
	if s.open {
		if err := disk.Open(); err != nil {
			_ = disk.Destroy()
			return err
		}
	}

	_ = s.inner.Destroy()
	s.inner = disk
	s.promoted = true

	if s.OnPromote != nil {
		s.OnPromote()
	}

	return nil
}

// Read delegates to the current backend.
func (s *Spool) Read(size, off int64) (BufferView, error) {
	return s.inner.Read(size, off)
}

// Size reports the current backend's size.
func (s *Spool) Size() int64 { return s.inner.Size() }

// Destroy releases the current backend.
func (s *Spool) Destroy() error { return s.inner.Destroy() }

// Promoted reports whether the spool has migrated to disk.
func (s *Spool) Promoted() bool { return s.promoted }

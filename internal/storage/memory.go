package storage

// Memory keeps the whole file as a growable byte slice in process memory.
// Open and Close are no-ops; the blob is always accessible.
type Memory struct {
	blob []byte
}

var _ Strategy = (*Memory)(nil)

// NewMemory creates a memory strategy, optionally seeded with initial
// content. The content is copied.
func NewMemory(initial []byte) *Memory {
	m := &Memory{}
	if len(initial) > 0 {
		m.blob = make([]byte, len(initial))
		copy(m.blob, initial)
	}
	return m
}

// Open is a no-op for memory-backed storage.
func (m *Memory) Open() error { return nil }

// Close is a no-op for memory-backed storage.
func (m *Memory) Close() error { return nil }

// Write places buf at off. Three cases: overwrite fully inside the blob,
// overwrite the tail and append the rest, or start past the end with the gap
// [len(blob), off) zero-filled first.
func (m *Memory) Write(buf []byte, off int64) (int64, error) {
	size := int64(len(buf))
	length := int64(len(m.blob))

	switch {
	case off < length && off+size <= length:
		copy(m.blob[off:off+size], buf)
	case off < length:
		firstChunk := length - off
		copy(m.blob[off:], buf[:firstChunk])
		m.blob = append(m.blob, buf[firstChunk:]...)
	default:
		// Programs sometimes start writing at an arbitrary position; the
		// gap up to there reads back as zeros.
		if gap := off - length; gap > 0 {
			m.blob = append(m.blob, make([]byte, gap)...)
		}
		m.blob = append(m.blob, buf...)
	}

	return size, nil
}

// Read returns a borrowed view of [off, off+size). A size of ReadAll means
// the whole blob from offset 0. Reads past end-of-content are short: the
// view is clamped to the available range, down to an empty view when off is
// at or beyond the end.
func (m *Memory) Read(size, off int64) (BufferView, error) {
	if size == ReadAll {
		return Borrow(m.blob), nil
	}

	length := int64(len(m.blob))
	if off >= length {
		return Borrow(nil), nil
	}
	end := off + size
	if end > length {
		end = length
	}
	return Borrow(m.blob[off:end]), nil
}

// Size returns the current content length.
func (m *Memory) Size() int64 { return int64(len(m.blob)) }

// Destroy is a no-op; the blob is garbage collected.
func (m *Memory) Destroy() error { return nil }

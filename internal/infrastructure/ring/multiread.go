// ABOUTME: Read-quorum ring variant for fan-out to multiple consumers
// ABOUTME: A slot rotates only after every registered reader reports it
package ring

import (
	"sync/atomic"
	"unsafe"
)

// MultiRead extends Buffer so a slot is considered read only when all
// registered readers have reported reading it. Every reader of a slot
// observes identical data; the slot becomes writable again exactly
// when the last reader acknowledges.
//
// A registered reader that never reports blocks rotation and the
// producer eventually observes IsWritable() == false. Callers must
// deregister stalled readers.
type MultiRead[T Sample] struct {
	Buffer[T]
	numReaders  atomic.Int32
	readCounter atomic.Int32
}

// NewMultiRead allocates a quorum-gated ring with one registered
// reader.
func NewMultiRead[T Sample](bufferLength, ringLength int) (*MultiRead[T], error) {
	m := &MultiRead[T]{}
	m.bytesPerSample = int32(unsafe.Sizeof(*new(T)))
	m.autoFirstRotate = true
	if err := m.Buffer.SetSize(bufferLength, ringLength); err != nil {
		return nil, err
	}
	m.numReaders.Store(1)
	return m, nil
}

// SetNumReaders registers the number of readers that must acknowledge
// each slot.
func (m *MultiRead[T]) SetNumReaders(n int) error {
	if n <= 0 {
		return ErrValueOutOfRange
	}
	m.numReaders.Store(int32(n))
	return nil
}

// NumReaders returns the registered reader count.
func (m *MultiRead[T]) NumReaders() int { return int(m.numReaders.Load()) }

// incrementReadCounter advances the quorum counter modulo the reader
// count and reports whether it wrapped, i.e. whether the final reader
// just acknowledged. The pending count is taken modulo the current
// reader count, so changing NumReaders mid-flight stays safe.
func (m *MultiRead[T]) incrementReadCounter() bool {
	for {
		c := m.readCounter.Load()
		next := (c + 1) % m.numReaders.Load()
		if m.readCounter.CompareAndSwap(c, next) {
			return next == 0
		}
	}
}

// ReportReadSamples records one reader's consumption. The underlying
// cursors move only when the last registered reader reports.
func (m *MultiRead[T]) ReportReadSamples(length int) {
	if !m.incrementReadCounter() {
		return
	}
	m.Buffer.ReportReadSamples(length)
}

// ReportReadBytes is ReportReadSamples in bytes.
func (m *MultiRead[T]) ReportReadBytes(numBytes int) {
	m.ReportReadSamples(numBytes / m.BytesPerSample())
}

// Read returns a copy of the current read slot and reports a full
// slot read, so single-reader use still advances.
func (m *MultiRead[T]) Read() ([]T, error) {
	if m.BuffersBuffered() == 0 {
		return nil, ErrReadUnderrun
	}
	out := make([]T, m.BufferLength())
	copy(out, m.ReadSlot())
	m.ReportReadSamples(m.BufferLength())
	return out, nil
}

// ReadSamples copies len(dst) samples from the read cursor and
// reports them through the quorum gate.
func (m *MultiRead[T]) ReadSamples(dst []T) error {
	if len(dst) == 0 || len(dst) > int(m.samplesUnread.Load()) {
		return ErrValueOutOfRange
	}
	copy(dst, m.ReadView())
	m.ReportReadSamples(len(dst))
	return nil
}

// ReadBytes copies len(dst) bytes from the read cursor and reports
// them through the quorum gate.
func (m *MultiRead[T]) ReadBytes(dst []byte) error {
	if len(dst)%m.BytesPerSample() != 0 {
		return ErrNonMultipleByteCount
	}
	if n := m.PeekReadBytes(dst); n > 0 {
		m.ReportReadBytes(n)
	}
	return nil
}

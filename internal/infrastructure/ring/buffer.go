// ABOUTME: Generic ring buffer owning R slots of L PCM samples
// ABOUTME: Slice views expose cursor positions for zero-copy I/O
package ring

import (
	"encoding/binary"
	"unsafe"
)

// Sample is any integer PCM sample type the ring can carry. 24-bit
// audio rides in an int32 container.
type Sample interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32
}

// Buffer is a ring of slots holding samples of type T. One goroutine
// produces at the write cursor, one or more consume at the read
// cursor; see MultiRead for the quorum-gated variant.
type Buffer[T Sample] struct {
	Base
	ring [][]T
}

// New allocates a ring of ringLength slots of bufferLength samples.
// Auto-first-rotate is on: the first write rotation advances the read
// cursor onto the just-completed slot.
func New[T Sample](bufferLength, ringLength int) (*Buffer[T], error) {
	b := &Buffer[T]{}
	b.bytesPerSample = int32(unsafe.Sizeof(*new(T)))
	b.autoFirstRotate = true
	if err := b.SetSize(bufferLength, ringLength); err != nil {
		return nil, err
	}
	return b, nil
}

// SetSize sizes the ring and allocates slot storage.
func (b *Buffer[T]) SetSize(bufferLength, ringLength int) error {
	if err := b.Base.SetSize(bufferLength, ringLength); err != nil {
		return err
	}
	b.ring = make([][]T, ringLength)
	for i := range b.ring {
		b.ring[i] = make([]T, bufferLength)
	}
	return nil
}

// Fill sets every sample in every slot to v.
func (b *Buffer[T]) Fill(v T) {
	for _, slot := range b.ring {
		for i := range slot {
			slot[i] = v
		}
	}
}

// Zero silences every slot. The socket loops flush through this
// without knowing the sample type.
func (b *Buffer[T]) Zero() {
	var v T
	b.Fill(v)
}

/*                              Read                                */

// Read returns a copy of the current read slot and rotates past it.
func (b *Buffer[T]) Read() ([]T, error) {
	if !b.sizeIsSet() {
		return nil, ErrNotInitialized
	}
	if b.BuffersBuffered() == 0 {
		return nil, ErrReadUnderrun
	}
	out := make([]T, b.bufferLength)
	copy(out, b.ring[b.readIndex.Load()])
	b.RotateReadBuffer()
	return out, nil
}

// ReadSlot returns the current read slot in place.
func (b *Buffer[T]) ReadSlot() []T {
	return b.ring[b.readIndex.Load()]
}

// ReadView returns the unread remainder of the current read slot.
func (b *Buffer[T]) ReadView() []T {
	return b.ring[b.readIndex.Load()][b.bufferLength-b.samplesUnread.Load():]
}

// ReadSamples copies len(dst) samples from the read cursor and
// reports them consumed.
func (b *Buffer[T]) ReadSamples(dst []T) error {
	if !b.sizeIsSet() {
		return ErrNotInitialized
	}
	if len(dst) == 0 || len(dst) > int(b.samplesUnread.Load()) {
		return ErrValueOutOfRange
	}
	copy(dst, b.ReadView())
	b.ReportReadSamples(len(dst))
	return nil
}

// ReadBytes copies len(dst) bytes from the read cursor and reports
// them consumed.
func (b *Buffer[T]) ReadBytes(dst []byte) error {
	if len(dst)%int(b.bytesPerSample) != 0 {
		return ErrNonMultipleByteCount
	}
	if n := b.PeekReadBytes(dst); n > 0 {
		b.ReportReadBytes(n)
	}
	return nil
}

// PeekReadBytes copies up to len(dst) bytes from the read cursor
// without advancing it, so the caller can hand the bytes to a socket
// and report only after the send succeeds. Returns bytes copied.
func (b *Buffer[T]) PeekReadBytes(dst []byte) int {
	view := b.ReadView()
	w := int(b.bytesPerSample)
	n := len(dst) / w
	if n > len(view) {
		n = len(view)
	}
	for i := 0; i < n; i++ {
		putSample(dst[i*w:], view[i], w)
	}
	return n * w
}

/*                              Write                               */

// Write places a single sample at the write cursor. Returns 1 when
// accepted, 0 when the ring is full and force is unset.
func (b *Buffer[T]) Write(v T, force bool) int {
	if !b.IsWritable() && !force {
		return 0
	}
	b.ring[b.writeIndex.Load()][b.samplesWritten.Load()] = v
	b.samplesWritten.Add(1)
	if b.samplesUnwritten.Add(-1) == 0 {
		b.RotateWriteBuffer(force)
	}
	return 1
}

// WriteSlice writes samples across slot boundaries and returns the
// number accepted. Unless forced, writing stops when the ring fills.
func (b *Buffer[T]) WriteSlice(src []T, force bool) int {
	written := 0
	remaining := len(src)
	for crossings := b.RingLength(); remaining > 0 && crossings > 0 && (b.IsWritable() || force); crossings-- {
		unwritten := int(b.samplesUnwritten.Load())
		slot := b.ring[b.writeIndex.Load()][b.samplesWritten.Load():]
		if remaining >= unwritten {
			copy(slot, src[written:written+unwritten])
			written += unwritten
			remaining -= unwritten
			b.RotateWriteBuffer(force)
		} else {
			copy(slot, src[written:])
			b.samplesWritten.Add(int32(remaining))
			b.samplesUnwritten.Add(int32(-remaining))
			written += remaining
			remaining = 0
		}
	}
	return written
}

// WriteBytes decodes p into samples and writes them. Returns bytes
// accepted.
func (b *Buffer[T]) WriteBytes(p []byte, force bool) (int, error) {
	w := int(b.bytesPerSample)
	if len(p)%w != 0 {
		return 0, ErrNonMultipleByteCount
	}
	src := make([]T, len(p)/w)
	for i := range src {
		src[i] = getSample[T](p[i*w:], w)
	}
	return b.WriteSlice(src, force) * w, nil
}

// WriteSlot returns the current write slot in place.
func (b *Buffer[T]) WriteSlot() []T {
	return b.ring[b.writeIndex.Load()]
}

// WriteView returns the unwritten remainder of the current write
// slot.
func (b *Buffer[T]) WriteView() []T {
	return b.ring[b.writeIndex.Load()][b.samplesWritten.Load():]
}

// StageWriteBytes decodes p into the write slot at the write cursor
// without advancing it; the caller reports the bytes once the whole
// transfer is accounted for. Returns bytes staged.
func (b *Buffer[T]) StageWriteBytes(p []byte) int {
	view := b.WriteView()
	w := int(b.bytesPerSample)
	n := len(p) / w
	if n > len(view) {
		n = len(view)
	}
	for i := 0; i < n; i++ {
		view[i] = getSample[T](p[i*w:], w)
	}
	return n * w
}

/*                            Transform                             */

// ProcessingSlot returns the current processing slot in place.
func (b *Buffer[T]) ProcessingSlot() []T {
	return b.ring[b.processingIndex.Load()]
}

// ProcessingView returns the untransformed remainder of the current
// processing slot.
func (b *Buffer[T]) ProcessingView() []T {
	return b.ring[b.processingIndex.Load()][b.samplesProcessed.Load()%b.bufferLength:]
}

/*                           Sample codec                           */

// Samples cross the byte boundary little-endian, matching the wire
// encoding both peers commit to.

func putSample[T Sample](b []byte, v T, width int) {
	switch width {
	case 1:
		b[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(v))
	default:
		binary.LittleEndian.PutUint32(b, uint32(v))
	}
}

func getSample[T Sample](b []byte, width int) T {
	switch width {
	case 1:
		return T(b[0])
	case 2:
		return T(binary.LittleEndian.Uint16(b))
	default:
		return T(binary.LittleEndian.Uint32(b))
	}
}

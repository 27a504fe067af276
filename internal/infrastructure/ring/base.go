// ABOUTME: Counter and cursor core shared by all ring variants
// ABOUTME: Three cursors (write, read, processing) over R slots of L samples
package ring

import (
	"math"
	"sync/atomic"
)

// Base tracks the three cursors and sample counters of a ring of
// ringLength slots, each bufferLength samples long. One slot is always
// reserved so an empty ring and a full ring are distinguishable:
// writable capacity is (ringLength-1)*bufferLength samples.
//
// Cursors are published atomically so a producer and consumers on
// separate goroutines can coordinate without locks. The producer owns
// the write-side counters, consumers own the read side; buffered and
// samplesProcessed cross the boundary and are atomic as well.
type Base struct {
	ringLength     int32
	bufferLength   int32
	bytesPerSample int32
	bytesPerBuffer int32
	totalLength    int32
	writableLength int32

	autoFirstRotate bool
	firstWritten    atomic.Bool

	readIndex       atomic.Int32
	writeIndex      atomic.Int32
	processingIndex atomic.Int32

	buffered         atomic.Int32
	samplesWritten   atomic.Int32
	samplesUnwritten atomic.Int32
	samplesUnread    atomic.Int32
	samplesProcessed atomic.Int32
}

func (b *Base) sizeIsSet() bool {
	return b.bufferLength > 0 && b.ringLength > 0
}

// SetSize sizes the ring to ringLength slots of bufferLength samples
// and resets all counters. The read cursor starts on the final slot so
// the first write rotation advances it onto slot zero, where the first
// completed data lives.
func (b *Base) SetSize(bufferLength, ringLength int) error {
	if ringLength < 2 {
		return ErrRingSizeTooShort
	}
	if bufferLength%2 != 0 {
		return ErrUnevenBufferLength
	}
	if bufferLength%ringLength != 0 {
		return ErrNonMultipleBufferLength
	}
	if int64(bufferLength) > int64(math.MaxInt32)/int64(ringLength)/int64(b.bytesPerSample) {
		return ErrBufferLengthTooLong
	}

	b.ringLength = int32(ringLength)
	b.bufferLength = int32(bufferLength)
	b.totalLength = b.ringLength * b.bufferLength
	b.writableLength = b.totalLength - b.bufferLength
	b.bytesPerBuffer = b.bufferLength * b.bytesPerSample
	b.Reset()
	return nil
}

// Reset restores the post-SetSize state without touching slot data.
func (b *Base) Reset() {
	b.firstWritten.Store(false)
	b.buffered.Store(0)
	b.samplesWritten.Store(0)
	b.samplesUnwritten.Store(b.bufferLength)
	b.samplesUnread.Store(b.bufferLength)
	b.samplesProcessed.Store(0)
	b.readIndex.Store(b.ringLength - 1)
	b.writeIndex.Store(0)
	b.processingIndex.Store(0)
}

/*                             Queries                              */

// Size returns the total sample capacity across all slots.
func (b *Base) Size() int { return int(b.totalLength) }

// TotalSize returns the total byte capacity across all slots.
func (b *Base) TotalSize() int { return int(b.totalLength * b.bytesPerSample) }

// RingLength returns the number of slots.
func (b *Base) RingLength() int { return int(b.ringLength) }

// BufferLength returns the sample length of each slot.
func (b *Base) BufferLength() int { return int(b.bufferLength) }

// BytesPerSample returns the sample width in bytes.
func (b *Base) BytesPerSample() int { return int(b.bytesPerSample) }

// BytesPerBuffer returns the byte length of each slot.
func (b *Base) BytesPerBuffer() int { return int(b.bytesPerBuffer) }

// ReadIndex returns the slot the read cursor is on.
func (b *Base) ReadIndex() int { return int(b.readIndex.Load()) }

// WriteIndex returns the slot the write cursor is on.
func (b *Base) WriteIndex() int { return int(b.writeIndex.Load()) }

// ProcessingIndex returns the slot the processing cursor is on.
func (b *Base) ProcessingIndex() int { return int(b.processingIndex.Load()) }

// Buffered returns the unread samples held in completed slots,
// excluding the slot currently being written.
func (b *Base) Buffered() int { return int(b.buffered.Load()) }

// BytesBuffered returns Buffered in bytes.
func (b *Base) BytesBuffered() int { return b.Buffered() * int(b.bytesPerSample) }

// Available returns the writable sample capacity remaining.
func (b *Base) Available() int { return int(b.writableLength - b.buffered.Load()) }

// BytesAvailable returns Available in bytes.
func (b *Base) BytesAvailable() int { return b.Available() * int(b.bytesPerSample) }

// Processed returns the samples the processing cursor has consumed
// ahead of the read cursor.
func (b *Base) Processed() int { return int(b.samplesProcessed.Load()) }

// BytesProcessed returns Processed in bytes.
func (b *Base) BytesProcessed() int { return b.Processed() * int(b.bytesPerSample) }

// Unprocessed returns buffered samples not yet processed.
func (b *Base) Unprocessed() int { return b.Buffered() - b.Processed() }

// BytesUnprocessed returns Unprocessed in bytes.
func (b *Base) BytesUnprocessed() int { return b.Unprocessed() * int(b.bytesPerSample) }

// Unread returns the unread samples remaining in the current read
// slot, or zero when nothing is buffered.
func (b *Base) Unread() int {
	if b.buffered.Load() == 0 {
		return 0
	}
	return int(b.samplesUnread.Load())
}

// BytesUnread returns Unread in bytes.
func (b *Base) BytesUnread() int { return b.Unread() * int(b.bytesPerSample) }

// Unwritten returns the unwritten samples remaining in the current
// write slot, or zero when the ring has no writable capacity.
func (b *Base) Unwritten() int {
	if b.Available() == 0 {
		return 0
	}
	return int(b.samplesUnwritten.Load())
}

// BytesUnwritten returns Unwritten in bytes.
func (b *Base) BytesUnwritten() int { return b.Unwritten() * int(b.bytesPerSample) }

// BuffersBuffered returns the number of whole unread slots. Partial
// rotations make this an approximation.
func (b *Base) BuffersBuffered() int { return b.Buffered() / int(b.bufferLength) }

// BuffersAvailable returns the number of whole writable slots.
func (b *Base) BuffersAvailable() int { return b.Available() / int(b.bufferLength) }

// BuffersProcessed returns the number of whole processed slots.
func (b *Base) BuffersProcessed() int { return b.Processed() / int(b.bufferLength) }

// IsWritable reports whether the write cursor may accept samples
// without colliding with the read cursor.
func (b *Base) IsWritable() bool {
	return b.readIndex.Load() != b.writeIndex.Load() && b.Available() > 0
}

/*                              Read                                */

func (b *Base) rotateReadIndex() {
	b.readIndex.Store((b.readIndex.Load() + 1) % b.ringLength)
}

// RotateReadBuffer advances the read cursor to the next slot and
// settles the counters, flooring at zero.
func (b *Base) RotateReadBuffer() {
	b.rotateReadIndex()
	b.samplesUnread.Store(b.bufferLength)
	if n := b.buffered.Add(-b.bufferLength); n < 0 {
		b.buffered.Store(0)
	}
	if n := b.samplesProcessed.Add(-b.bufferLength); n < 0 {
		b.samplesProcessed.Store(0)
	}
}

// RotatePartialRead advances the read cursor after consuming only
// length samples of the slot; the remainder is discarded.
func (b *Base) RotatePartialRead(length int) {
	n := clamp32(length, b.bufferLength)
	b.rotateReadIndex()
	b.samplesUnread.Store(b.bufferLength)
	if v := b.buffered.Add(-n); v < 0 {
		b.buffered.Store(0)
	}
	if v := b.samplesProcessed.Add(-n); v < 0 {
		b.samplesProcessed.Store(0)
	}
}

// ReportReadSamples records length samples consumed at the read
// cursor, rotating when the slot is exhausted.
func (b *Base) ReportReadSamples(length int) {
	n := clamp32(length, b.samplesUnread.Load())
	if b.samplesUnread.Add(-n) == 0 {
		b.RotateReadBuffer()
	}
}

// ReportReadBytes is ReportReadSamples in bytes.
func (b *Base) ReportReadBytes(numBytes int) {
	b.ReportReadSamples(numBytes / int(b.bytesPerSample))
}

/*                              Write                               */

func (b *Base) rotateWriteIndex() {
	b.writeIndex.Store((b.writeIndex.Load() + 1) % b.ringLength)
	if b.autoFirstRotate && !b.firstWritten.Load() {
		b.firstWritten.Store(true)
		b.rotateReadIndex()
	}
}

// RotateWriteBuffer advances the write cursor to the next slot. When
// the ring is already at writable capacity, force sacrifices the
// oldest unread slot by pushing the read cursor forward; without
// force the overshoot is clamped.
func (b *Base) RotateWriteBuffer(force bool) {
	b.rotateWriteIndex()
	b.samplesWritten.Store(0)
	b.samplesUnwritten.Store(b.bufferLength)
	if b.buffered.Add(b.bufferLength) > b.writableLength {
		if force {
			b.rotateReadIndex()
			b.samplesUnread.Store(b.bufferLength)
		}
		b.buffered.Store(b.writableLength)
	}
}

// RotatePartialWrite advances the write cursor after filling only
// length samples of the slot.
func (b *Base) RotatePartialWrite(length int, force bool) {
	n := clamp32(length, b.bufferLength)
	b.rotateWriteIndex()
	b.samplesWritten.Store(0)
	b.samplesUnwritten.Store(b.bufferLength)
	if b.buffered.Add(n) > b.writableLength {
		if force {
			b.rotateReadIndex()
			b.samplesUnread.Store(b.bufferLength)
		}
		b.buffered.Store(b.writableLength)
	}
}

// ReportWrittenSamples records length samples produced at the write
// cursor, rotating when the slot fills.
func (b *Base) ReportWrittenSamples(length int) {
	n := clamp32(length, b.samplesUnwritten.Load())
	b.samplesWritten.Add(n)
	if b.samplesUnwritten.Add(-n) == 0 {
		b.RotateWriteBuffer(false)
	}
}

// ReportWrittenBytes is ReportWrittenSamples in bytes.
func (b *Base) ReportWrittenBytes(numBytes int) {
	b.ReportWrittenSamples(numBytes / int(b.bytesPerSample))
}

/*                            Transform                             */

func (b *Base) rotateProcessingIndex() {
	b.processingIndex.Store((b.processingIndex.Load() + 1) % b.ringLength)
}

// RotateProcessingBuffer advances the processing cursor one whole
// slot.
func (b *Base) RotateProcessingBuffer() {
	b.rotateProcessingIndex()
	if b.samplesProcessed.Add(b.bufferLength) > b.writableLength {
		b.samplesProcessed.Store(b.writableLength)
	}
}

// RotatePartialProcessing advances the processing cursor after
// transforming only length samples of the slot.
func (b *Base) RotatePartialProcessing(length int) {
	n := clamp32(length, b.bufferLength)
	b.rotateProcessingIndex()
	if b.samplesProcessed.Add(n) > b.writableLength {
		b.samplesProcessed.Store(b.writableLength)
	}
}

// ReportProcessedSamples records length samples transformed at the
// processing cursor. The count may span slots; the cursor rotates at
// each slot boundary it crosses.
func (b *Base) ReportProcessedSamples(length int) {
	remaining := clamp32(length, b.buffered.Load()-b.samplesProcessed.Load())
	for remaining > 0 {
		inSlot := b.bufferLength - b.samplesProcessed.Load()%b.bufferLength
		if inSlot > remaining {
			inSlot = remaining
		}
		if b.samplesProcessed.Add(inSlot)%b.bufferLength == 0 {
			b.rotateProcessingIndex()
		}
		remaining -= inSlot
	}
}

// ReportProcessedBytes is ReportProcessedSamples in bytes.
func (b *Base) ReportProcessedBytes(numBytes int) {
	b.ReportProcessedSamples(numBytes / int(b.bytesPerSample))
}

func clamp32(v int, max int32) int32 {
	if v < 0 {
		return 0
	}
	if int32(v) > max {
		return max
	}
	return int32(v)
}

// ABOUTME: Fixed-size metadata block appended to each transmission
// ABOUTME: Encodes an (h, m, s, f) timecode as little-endian int32s
package meta

import (
	"encoding/binary"
	"errors"
)

// DefaultSize is the metadata block length both peers agree on.
const DefaultSize = 128

// timecodeBytes is the encoded length of the four timecode fields.
// The integers cross the wire as little-endian int32 regardless of
// either peer's word size.
const timecodeBytes = 4 * 4

// ErrFrameTooSmall is returned when the frame cannot hold a timecode.
var ErrFrameTooSmall = errors.New("meta: frame smaller than encoded timecode")

// Timecode labels a transmission with hours, minutes, seconds, and
// frames. The transmitter stamps whatever it currently holds; no
// synchronization is implied.
type Timecode struct {
	Hours   int32
	Minutes int32
	Seconds int32
	Frames  int32
}

// Frame is one fixed-size metadata block. The first 16 bytes carry
// the timecode; the remainder is reserved and zero.
type Frame struct {
	data     []byte
	timecode Timecode
}

// NewFrame allocates a zeroed frame of the given size.
func NewFrame(size int) (*Frame, error) {
	if size < timecodeBytes {
		return nil, ErrFrameTooSmall
	}
	return &Frame{data: make([]byte, size)}, nil
}

// Size returns the frame length in bytes.
func (f *Frame) Size() int { return len(f.data) }

// SetTimecode stores the timecode and refreshes the encoded block.
func (f *Frame) SetTimecode(hours, minutes, seconds, frames int) {
	f.timecode = Timecode{int32(hours), int32(minutes), int32(seconds), int32(frames)}
	binary.LittleEndian.PutUint32(f.data[0:], uint32(f.timecode.Hours))
	binary.LittleEndian.PutUint32(f.data[4:], uint32(f.timecode.Minutes))
	binary.LittleEndian.PutUint32(f.data[8:], uint32(f.timecode.Seconds))
	binary.LittleEndian.PutUint32(f.data[12:], uint32(f.timecode.Frames))
}

// Timecode returns the stored timecode.
func (f *Frame) Timecode() Timecode { return f.timecode }

// SetData copies an incoming block into the frame and decodes the
// timecode from its head. Short input leaves the tail untouched.
func (f *Frame) SetData(incoming []byte) {
	copy(f.data, incoming)
	f.timecode = Timecode{
		Hours:   int32(binary.LittleEndian.Uint32(f.data[0:])),
		Minutes: int32(binary.LittleEndian.Uint32(f.data[4:])),
		Seconds: int32(binary.LittleEndian.Uint32(f.data[8:])),
		Frames:  int32(binary.LittleEndian.Uint32(f.data[12:])),
	}
}

// Data copies the encoded block into outgoing and returns the number
// of bytes copied.
func (f *Frame) Data(outgoing []byte) int {
	return copy(outgoing, f.data)
}

// ABOUTME: Sentinel errors for ring buffer sizing and access
// ABOUTME: Sizing violations surface here; hot paths clamp instead
package ring

import "errors"

var (
	// ErrRingSizeTooShort is returned when the ring would hold fewer
	// than two slots, leaving nothing to rotate between.
	ErrRingSizeTooShort = errors.New("ring: ring length must be at least 2")

	// ErrBufferLengthTooLong is returned when ring length times slot
	// length times sample width would overflow the 32-bit signed range.
	ErrBufferLengthTooLong = errors.New("ring: total ring size overflows int32")

	// ErrUnevenBufferLength is returned for odd slot lengths.
	ErrUnevenBufferLength = errors.New("ring: slot length must be even")

	// ErrNonMultipleBufferLength is returned when the slot length is
	// not divisible by the ring length.
	ErrNonMultipleBufferLength = errors.New("ring: slot length must be a multiple of ring length")

	// ErrNonMultipleByteCount is returned when a byte count does not
	// align to the sample width.
	ErrNonMultipleByteCount = errors.New("ring: byte count not a multiple of sample width")

	// ErrNotInitialized is returned when an operation requires a sized
	// ring and SetSize has not run.
	ErrNotInitialized = errors.New("ring: size not set")

	// ErrReadUnderrun is returned by Read when no completed slot is
	// buffered.
	ErrReadUnderrun = errors.New("ring: read underrun")

	// ErrValueOutOfRange is returned for argument values outside the
	// contract, such as a non-positive reader count.
	ErrValueOutOfRange = errors.New("ring: value out of range")
)

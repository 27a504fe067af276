// ABOUTME: Tests for the metadata frame codec
// ABOUTME: Verifies timecode round-trip and size validation
package meta

import "testing"

func TestNewFrame_TooSmall(t *testing.T) {
	if _, err := NewFrame(15); err != ErrFrameTooSmall {
		t.Errorf("expected ErrFrameTooSmall, got %v", err)
	}
	if _, err := NewFrame(16); err != nil {
		t.Errorf("16-byte frame should be allowed, got %v", err)
	}
}

func TestTimecodeRoundTrip(t *testing.T) {
	a, err := NewFrame(DefaultSize)
	if err != nil {
		t.Fatalf("NewFrame failed: %v", err)
	}
	a.SetTimecode(23, 59, 59, 29)

	block := make([]byte, DefaultSize)
	if n := a.Data(block); n != DefaultSize {
		t.Fatalf("expected %d bytes copied, got %d", DefaultSize, n)
	}

	b, _ := NewFrame(DefaultSize)
	b.SetData(block)

	tc := b.Timecode()
	if tc.Hours != 23 || tc.Minutes != 59 || tc.Seconds != 59 || tc.Frames != 29 {
		t.Errorf("timecode mangled in transit: %+v", tc)
	}
}

func TestReservedBytesStayZero(t *testing.T) {
	f, _ := NewFrame(DefaultSize)
	f.SetTimecode(1, 2, 3, 4)

	block := make([]byte, DefaultSize)
	f.Data(block)

	for i := 16; i < DefaultSize; i++ {
		if block[i] != 0 {
			t.Fatalf("reserved byte %d not zero: %d", i, block[i])
		}
	}
}

func TestSetData_Encoding(t *testing.T) {
	// Hand-built block: hours=1 encoded little-endian.
	block := make([]byte, DefaultSize)
	block[0] = 0x01
	block[4] = 0x02
	block[8] = 0x03
	block[12] = 0x04

	f, _ := NewFrame(DefaultSize)
	f.SetData(block)

	tc := f.Timecode()
	if tc.Hours != 1 || tc.Minutes != 2 || tc.Seconds != 3 || tc.Frames != 4 {
		t.Errorf("little-endian decode failed: %+v", tc)
	}
}

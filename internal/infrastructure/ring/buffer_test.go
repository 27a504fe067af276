// ABOUTME: Tests for the storage-owning generic ring buffer
// ABOUTME: Covers FIFO order, forced overwrite, byte codec, and views
package ring

import (
	"bytes"
	"testing"
)

func TestWriteSlice_StopsAtCapacity(t *testing.T) {
	b, _ := New[int16](4, 2)

	n := b.WriteSlice([]int16{1, 2, 3, 4, 5, 6, 7}, false)

	if n != 4 {
		t.Errorf("expected 4 samples accepted, got %d", n)
	}
	if b.Buffered() != 4 {
		t.Errorf("expected 4 buffered, got %d", b.Buffered())
	}
	slot := b.ring[0]
	for i, want := range []int16{1, 2, 3, 4} {
		if slot[i] != want {
			t.Errorf("slot 0 sample %d: expected %d, got %d", i, want, slot[i])
		}
	}
}

func TestRead_ReturnsOldestSlot(t *testing.T) {
	b, _ := New[int16](4, 2)
	b.WriteSlice([]int16{1, 2, 3, 4}, false)

	got, err := b.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	for i, want := range []int16{1, 2, 3, 4} {
		if got[i] != want {
			t.Errorf("sample %d: expected %d, got %d", i, want, got[i])
		}
	}
	if b.Buffered() != 0 {
		t.Errorf("expected 0 buffered after read, got %d", b.Buffered())
	}
	if b.ReadIndex() != 1 {
		t.Errorf("expected read index 1, got %d", b.ReadIndex())
	}
}

func TestRead_Underrun(t *testing.T) {
	b, _ := New[int16](4, 2)

	if _, err := b.Read(); err != ErrReadUnderrun {
		t.Errorf("expected ErrReadUnderrun, got %v", err)
	}
}

func TestWriteSlice_FullRingUnforced(t *testing.T) {
	b, _ := New[int16](6, 3)

	first := b.WriteSlice([]int16{1, 1, 1, 1, 1, 1}, false)
	second := b.WriteSlice([]int16{2, 2, 2, 2, 2, 2}, false)
	third := b.WriteSlice([]int16{3, 3, 3, 3, 3, 3}, false)

	if first != 6 || second != 6 {
		t.Errorf("first two writes should succeed, got %d and %d", first, second)
	}
	if third != 0 {
		t.Errorf("write into full ring should return 0, got %d", third)
	}
}

func TestWriteSlice_ForcedOverwriteDropsOldest(t *testing.T) {
	b, _ := New[int16](6, 3)

	b.WriteSlice([]int16{1, 1, 1, 1, 1, 1}, false)
	b.WriteSlice([]int16{2, 2, 2, 2, 2, 2}, false)
	n := b.WriteSlice([]int16{3, 3, 3, 3, 3, 3}, true)

	if n != 6 {
		t.Errorf("forced write should accept 6 samples, got %d", n)
	}

	got, err := b.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got[0] != 2 {
		t.Errorf("oldest surviving slot should hold the second write, got %d", got[0])
	}

	got, err = b.Read()
	if err != nil {
		t.Fatalf("second Read failed: %v", err)
	}
	if got[0] != 3 {
		t.Errorf("expected third write after forced overwrite, got %d", got[0])
	}
}

func TestWrite_SingleSample(t *testing.T) {
	b, _ := New[int16](4, 2)

	for i := int16(0); i < 4; i++ {
		if n := b.Write(i, false); n != 1 {
			t.Fatalf("write %d rejected", i)
		}
	}
	if b.Buffered() != 4 {
		t.Errorf("expected 4 buffered, got %d", b.Buffered())
	}

	// Ring is now full; unforced single write is rejected.
	if n := b.Write(9, false); n != 0 {
		t.Error("write into full ring should return 0")
	}
}

func TestPartialWritesConcatenate(t *testing.T) {
	b, _ := New[int16](4, 2)

	copy(b.WriteView(), []int16{10, 20})
	b.ReportWrittenSamples(2)
	copy(b.WriteView(), []int16{30, 40})
	b.ReportWrittenSamples(2)

	got, err := b.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	for i, want := range []int16{10, 20, 30, 40} {
		if got[i] != want {
			t.Errorf("sample %d: expected %d, got %d", i, want, got[i])
		}
	}
}

func TestFIFOOrder(t *testing.T) {
	b, _ := New[int16](4, 4)

	for slot := int16(0); slot < 3; slot++ {
		b.WriteSlice([]int16{slot, slot, slot, slot}, false)
	}
	for slot := int16(0); slot < 3; slot++ {
		got, err := b.Read()
		if err != nil {
			t.Fatalf("read %d failed: %v", slot, err)
		}
		if got[0] != slot {
			t.Errorf("expected slot %d, got %d", slot, got[0])
		}
	}
}

func TestWriteBytes_RoundTrip(t *testing.T) {
	b, _ := New[int16](4, 2)
	in := []byte{0x01, 0x00, 0x02, 0x00, 0x03, 0x00, 0x04, 0x80}

	n, err := b.WriteBytes(in, false)
	if err != nil {
		t.Fatalf("WriteBytes failed: %v", err)
	}
	if n != 8 {
		t.Errorf("expected 8 bytes written, got %d", n)
	}

	out := make([]byte, 8)
	if err := b.ReadBytes(out); err != nil {
		t.Fatalf("ReadBytes failed: %v", err)
	}
	if !bytes.Equal(in, out) {
		t.Errorf("expected %x, got %x", in, out)
	}
}

func TestWriteBytes_NonMultiple(t *testing.T) {
	b, _ := New[int16](4, 2)

	if _, err := b.WriteBytes([]byte{1, 2, 3}, false); err != ErrNonMultipleByteCount {
		t.Errorf("expected ErrNonMultipleByteCount, got %v", err)
	}
	if err := b.ReadBytes(make([]byte, 3)); err != ErrNonMultipleByteCount {
		t.Errorf("expected ErrNonMultipleByteCount, got %v", err)
	}
}

func TestPeekReadBytes_DoesNotAdvance(t *testing.T) {
	b, _ := New[int16](4, 2)
	b.WriteSlice([]int16{1, 2, 3, 4}, false)

	dst := make([]byte, 4)
	if n := b.PeekReadBytes(dst); n != 4 {
		t.Fatalf("expected 4 bytes peeked, got %d", n)
	}
	if b.Unread() != 4 {
		t.Errorf("peek should not consume, unread is %d", b.Unread())
	}

	b.ReportReadBytes(4)
	if b.Unread() != 2 {
		t.Errorf("expected 2 unread after report, got %d", b.Unread())
	}
}

func TestStageWriteBytes_DoesNotAdvance(t *testing.T) {
	b, _ := New[int16](4, 2)

	staged := b.StageWriteBytes([]byte{0x0a, 0x00, 0x0b, 0x00})
	if staged != 4 {
		t.Fatalf("expected 4 bytes staged, got %d", staged)
	}
	if b.Buffered() != 0 {
		t.Error("staging should not change accounting")
	}

	b.ReportWrittenBytes(4)
	if b.WriteView()[0] != 0 {
		t.Error("write view should sit past the staged samples")
	}
	if got := b.ring[0][0]; got != 0x0a {
		t.Errorf("expected staged sample 0x0a, got %#x", got)
	}
}

func TestReadSamples_Validation(t *testing.T) {
	b, _ := New[int16](4, 2)
	b.WriteSlice([]int16{1, 2, 3, 4}, false)

	if err := b.ReadSamples(make([]int16, 5)); err != ErrValueOutOfRange {
		t.Errorf("expected ErrValueOutOfRange, got %v", err)
	}

	dst := make([]int16, 2)
	if err := b.ReadSamples(dst); err != nil {
		t.Fatalf("ReadSamples failed: %v", err)
	}
	if dst[0] != 1 || dst[1] != 2 {
		t.Errorf("expected [1 2], got %v", dst)
	}
}

func TestFill(t *testing.T) {
	b, _ := New[uint8](4, 2)
	b.WriteSlice([]uint8{9, 9, 9, 9}, false)

	b.Fill(0)

	for i, slot := range b.ring {
		for j, v := range slot {
			if v != 0 {
				t.Fatalf("slot %d sample %d not cleared: %d", i, j, v)
			}
		}
	}
}

func TestGenericWidths(t *testing.T) {
	b8, _ := New[uint8](4, 2)
	if b8.BytesPerSample() != 1 {
		t.Errorf("uint8 width: expected 1, got %d", b8.BytesPerSample())
	}

	b32, _ := New[int32](4, 2)
	if b32.BytesPerSample() != 4 {
		t.Errorf("int32 width: expected 4, got %d", b32.BytesPerSample())
	}
	if b32.TotalSize() != 32 {
		t.Errorf("expected 32 bytes total, got %d", b32.TotalSize())
	}

	b32.WriteSlice([]int32{-1, 1 << 20, 0, 7}, false)
	got, err := b32.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got[0] != -1 || got[1] != 1<<20 {
		t.Errorf("int32 payload mangled: %v", got)
	}
}

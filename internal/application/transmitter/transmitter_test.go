// ABOUTME: Tests for the transmitter loop over real loopback sockets
// ABOUTME: Covers handshake, streaming, peer reuse, purge, and readers
package transmitter

import (
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/harper/audiocast/internal/domain/device"
	"github.com/harper/audiocast/internal/infrastructure/meta"
	"github.com/harper/audiocast/internal/infrastructure/ring"
)

// seqPort produces an endless incrementing byte pattern on reads.
type seqPort struct {
	mu      sync.Mutex
	counter byte
}

func (p *seqPort) ReadBytes(dst []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range dst {
		dst[i] = p.counter
		p.counter++
	}
	return len(dst), nil
}

func (p *seqPort) WriteBytes(src []byte) (int, error) { return len(src), nil }
func (p *seqPort) Start() error                      { return nil }
func (p *seqPort) Stop() error                       { return nil }
func (p *seqPort) Close() error                      { return nil }

const (
	testChunk = 64
	testMeta  = 32
)

func newTestTransmitter(t *testing.T, maxStations int) (*Transmitter, *device.Registry, string) {
	t.Helper()

	buf, err := ring.NewMultiRead[int16](128, 2)
	if err != nil {
		t.Fatalf("ring: %v", err)
	}
	registry := device.NewRegistry()
	tx, err := New(Config{
		Port:          0,
		ChunkBytes:    testChunk,
		MetadataBytes: testMeta,
		MaxStations:   maxStations,
	}, buf, &seqPort{}, registry)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := tx.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { tx.Shutdown() })
	return tx, registry, tx.Addr().String()
}

func dialClient(t *testing.T, addr string, mac [6]byte) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if _, err := conn.Write(mac[:]); err != nil {
		t.Fatalf("send mac: %v", err)
	}
	return conn
}

func readTransmission(t *testing.T, conn net.Conn) []byte {
	t.Helper()
	buf := make([]byte, testChunk+testMeta)
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, err := io.ReadFull(conn, buf); err != nil {
		t.Fatalf("read transmission: %v", err)
	}
	return buf
}

func TestStreamCarriesAudioAndTimecode(t *testing.T) {
	tx, _, addr := newTestTransmitter(t, 4)
	tx.SetTimecode(23, 59, 59, 29)

	conn := dialClient(t, addr, [6]byte{1, 2, 3, 4, 5, 6})
	defer conn.Close()

	got := readTransmission(t, conn)

	// Audio is the capture pattern in order from the start.
	for i := 0; i < testChunk; i++ {
		if got[i] != byte(i) {
			t.Fatalf("audio byte %d: expected %d, got %d", i, byte(i), got[i])
		}
	}

	// The tail decodes back to the stamped timecode.
	frame, _ := meta.NewFrame(testMeta)
	frame.SetData(got[testChunk:])
	tc := frame.Timecode()
	if tc.Hours != 23 || tc.Minutes != 59 || tc.Seconds != 59 || tc.Frames != 29 {
		t.Errorf("timecode mangled: %+v", tc)
	}

	// The stream continues where the first chunk ended.
	next := readTransmission(t, conn)
	if next[0] != byte(testChunk) {
		t.Errorf("second chunk should continue the pattern, got %d", next[0])
	}
}

func TestReconnectReusesPeerEntry(t *testing.T) {
	_, registry, addr := newTestTransmitter(t, 4)
	mac := [6]byte{9, 8, 7, 6, 5, 4}

	conn := dialClient(t, addr, mac)
	readTransmission(t, conn)
	conn.Close()

	conn2 := dialClient(t, addr, mac)
	defer conn2.Close()
	readTransmission(t, conn2)

	if registry.Len() != 1 {
		t.Errorf("reconnecting MAC should reuse its entry, registry has %d", registry.Len())
	}
}

func TestAdmissionPurgesDisconnected(t *testing.T) {
	_, registry, addr := newTestTransmitter(t, 1)

	stale := &device.Device{MAC: [6]byte{0xff, 0, 0, 0, 0, 1}}
	registry.Insert(stale)

	conn := dialClient(t, addr, [6]byte{0xff, 0, 0, 0, 0, 2})
	defer conn.Close()
	readTransmission(t, conn)

	if registry.Len() != 1 {
		t.Errorf("stale peer should be purged at admission, registry has %d", registry.Len())
	}
	if registry.FindByMAC(stale.MAC) != nil {
		t.Error("the purged peer should be the disconnected one")
	}
}

func TestReaderCountFollowsClients(t *testing.T) {
	tx, _, addr := newTestTransmitter(t, 4)

	a := dialClient(t, addr, [6]byte{1, 0, 0, 0, 0, 1})
	defer a.Close()
	readTransmission(t, a)

	if tx.buf.NumReaders() != 1 {
		t.Errorf("first client uses the pre-allocated reader, got %d", tx.buf.NumReaders())
	}

	b := dialClient(t, addr, [6]byte{1, 0, 0, 0, 0, 2})
	readTransmission(t, b)

	if got := tx.buf.NumReaders(); got != 2 {
		t.Errorf("second client should register a reader, got %d", got)
	}

	b.Close()
	waitFor(t, func() bool { return tx.buf.NumReaders() == 1 })
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

// ABOUTME: Transmitter loop: capture worker, accept loop, client handlers
// ABOUTME: Fans ring audio plus metadata out to every connected receiver
package transmitter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/harper/audiocast/internal/domain"
	"github.com/harper/audiocast/internal/domain/device"
	"github.com/harper/audiocast/internal/infrastructure/meta"
)

// yieldInterval is the loop pacing constant: every this many
// iterations a tight loop hands the scheduler a tick.
const yieldInterval = 125

// Config sizes the transmitter's wire format and client table.
type Config struct {
	Port          int
	ChunkBytes    int
	MetadataBytes int
	MaxStations   int
}

// Transmitter couples the capture worker to the accept loop through
// the shared ring. Each connected receiver gets its own handler
// goroutine reading the same slots through the quorum gate.
type Transmitter struct {
	cfg      Config
	buf      domain.AudioRing
	port     domain.AudioPort
	registry *device.Registry

	frameMu sync.Mutex
	frame   *meta.Frame

	clients atomic.Int32

	listener net.Listener
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New wires a transmitter over the ring, the audio port, and the
// peer registry.
func New(cfg Config, buf domain.AudioRing, port domain.AudioPort, registry *device.Registry) (*Transmitter, error) {
	frame, err := meta.NewFrame(cfg.MetadataBytes)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Transmitter{
		cfg:      cfg,
		buf:      buf,
		port:     port,
		registry: registry,
		frame:    frame,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// SetTimecode stamps the metadata attached to subsequent
// transmissions.
func (t *Transmitter) SetTimecode(hours, minutes, seconds, frames int) {
	t.frameMu.Lock()
	t.frame.SetTimecode(hours, minutes, seconds, frames)
	t.frameMu.Unlock()
}

// Timecode returns the currently held label.
func (t *Transmitter) Timecode() meta.Timecode {
	t.frameMu.Lock()
	defer t.frameMu.Unlock()
	return t.frame.Timecode()
}

// Start launches the capture worker and the TCP accept loop.
func (t *Transmitter) Start() error {
	l, err := net.Listen("tcp", fmt.Sprintf(":%d", t.cfg.Port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	t.listener = l

	t.wg.Add(2)
	go t.captureLoop()
	go t.acceptLoop()

	slog.Info("transmitter up", "addr", l.Addr().String(), "chunk", t.cfg.ChunkBytes)
	return nil
}

// Addr returns the listening address, useful when the port was 0.
func (t *Transmitter) Addr() net.Addr {
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

// Shutdown stops the workers and drops every client.
func (t *Transmitter) Shutdown() error {
	t.cancel()
	if t.listener != nil {
		t.listener.Close()
	}
	for _, d := range t.registry.Snapshot() {
		d.CloseConn()
	}
	t.wg.Wait()
	return nil
}

/*                           Capture side                           */

// captureLoop runs i2sToRing until shutdown, yielding periodically so
// the socket goroutines stay fed.
func (t *Transmitter) captureLoop() {
	defer t.wg.Done()
	scratch := make([]byte, t.buf.BytesPerBuffer())
	counter := 0
	for t.ctx.Err() == nil {
		t.i2sToRing(scratch)
		yield(&counter)
	}
}

// i2sToRing moves one write slot's remainder from the audio input
// into the ring.
func (t *Transmitter) i2sToRing(scratch []byte) {
	unwritten := t.buf.BytesUnwritten()
	if unwritten == 0 {
		return
	}
	if unwritten > len(scratch) {
		unwritten = len(scratch)
	}
	n, err := t.port.ReadBytes(scratch[:unwritten])
	if err != nil {
		slog.Error("i2s read failed", "err", err)
		return
	}
	if n != unwritten {
		slog.Error("i2s short read", "want", unwritten, "got", n)
		return
	}
	staged := t.buf.StageWriteBytes(scratch[:n])
	t.buf.ReportWrittenBytes(staged)
}

/*                           Socket side                            */

func (t *Transmitter) acceptLoop() {
	defer t.wg.Done()
	for {
		conn, err := t.listener.Accept()
		if err != nil {
			if t.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			slog.Error("accept failed", "err", err)
			continue
		}
		dev, err := t.admit(conn)
		if err != nil {
			slog.Warn("client rejected", "remote", conn.RemoteAddr().String(), "err", err)
			conn.Close()
			continue
		}
		t.wg.Add(1)
		go t.handleClient(dev, conn)
	}
}

// admit reads the 6-byte MAC handshake and registers or reuses the
// peer record. A new peer is inserted first; if the table then
// exceeds the station cap, peers with a dropped socket are purged.
func (t *Transmitter) admit(conn net.Conn) (*device.Device, error) {
	var mac [6]byte
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, err := io.ReadFull(conn, mac[:]); err != nil {
		return nil, fmt.Errorf("read mac: %w", err)
	}
	conn.SetReadDeadline(time.Time{})

	dev := t.registry.FindByMAC(mac)
	fresh := dev == nil
	if fresh {
		dev = &device.Device{MAC: mac}
	}

	if addr, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
		if v4 := addr.IP.To4(); v4 != nil {
			copy(dev.IP[:], v4)
		}
	}
	dev.SetConn(conn)
	dev.NetworkConnected.Store(true)
	dev.SocketConnected.Store(true)

	if fresh {
		t.registry.Insert(dev)
		if t.registry.Len() > t.cfg.MaxStations {
			purged := t.registry.PurgeDisconnected()
			slog.Info("purged disconnected clients", "count", purged)
		}
		slog.Info("new client", "mac", dev.MACString())
	} else {
		slog.Info("returning client", "mac", dev.MACString())
	}
	return dev, nil
}

// handleClient streams transmissions to one receiver until its socket
// drops. The first client consumes the reader slot the ring was
// created with; later clients register an additional reader each.
func (t *Transmitter) handleClient(dev *device.Device, conn net.Conn) {
	defer t.wg.Done()

	session := uuid.NewString()
	log := slog.With("session", session, "mac", dev.MACString(), "ip", dev.IPString())
	log.Info("client handler started")

	if t.clients.Add(1) > 1 {
		t.buf.SetNumReaders(t.buf.NumReaders() + 1)
	}
	defer func() {
		t.clients.Add(-1)
		if readers := t.buf.NumReaders(); readers > 1 {
			t.buf.SetNumReaders(readers - 1)
		}
		dev.ReleaseConn(conn)
		log.Info("client handler exited")
	}()

	transmission := make([]byte, t.cfg.ChunkBytes+t.cfg.MetadataBytes)
	counter := 0
	for dev.SocketConnected.Load() && dev.Conn() == conn && t.ctx.Err() == nil {
		if t.buf.BytesUnread() >= t.cfg.ChunkBytes {
			t.buf.PeekReadBytes(transmission[:t.cfg.ChunkBytes])
			t.frameMu.Lock()
			t.frame.Data(transmission[t.cfg.ChunkBytes:])
			t.frameMu.Unlock()

			if _, err := conn.Write(transmission); err != nil {
				log.Warn("send failed", "err", err)
				break
			}
			t.buf.ReportReadBytes(t.cfg.ChunkBytes)
		}
		yield(&counter)
	}
}

// yield hands the scheduler a tick every yieldInterval iterations.
func yield(counter *int) {
	*counter++
	if *counter >= yieldInterval {
		*counter = 0
		time.Sleep(time.Millisecond)
	}
}

// ABOUTME: Receiver loop: connect, identify, pull transmissions, play
// ABOUTME: Flushes the ring and reconnects forever when the socket drops
package receiver

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/harper/audiocast/internal/domain"
	"github.com/harper/audiocast/internal/infrastructure/meta"
)

// yieldInterval matches the transmitter's loop pacing constant.
const yieldInterval = 125

// redialDelay spaces connection attempts to an absent transmitter.
const redialDelay = time.Second

// Config points the receiver at the transmitter and sizes the wire
// format, which must match the transmitter's.
type Config struct {
	TransmitterAddr string
	Port            int
	ChunkBytes      int
	MetadataBytes   int
}

// Receiver couples the socket to the playback worker through the
// ring. It identifies itself with its MAC, pulls fixed-size
// transmissions, and keeps reconnecting until cancelled.
type Receiver struct {
	cfg Config
	buf domain.AudioRing
	out domain.AudioPort
	mac [6]byte

	frameMu sync.Mutex
	frame   *meta.Frame

	dial func(ctx context.Context, addr string) (net.Conn, error)
}

// New wires a receiver over the ring and the audio output. The MAC
// is the identity sent to the transmitter on every connect.
func New(cfg Config, buf domain.AudioRing, out domain.AudioPort, mac [6]byte) (*Receiver, error) {
	frame, err := meta.NewFrame(cfg.MetadataBytes)
	if err != nil {
		return nil, err
	}
	return &Receiver{
		cfg:   cfg,
		buf:   buf,
		out:   out,
		mac:   mac,
		frame: frame,
		dial: func(ctx context.Context, addr string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "tcp", addr)
		},
	}, nil
}

// Timecode returns the label decoded from the latest transmission.
func (r *Receiver) Timecode() meta.Timecode {
	r.frameMu.Lock()
	defer r.frameMu.Unlock()
	return r.frame.Timecode()
}

// Run blocks, pumping audio until the context is cancelled. The
// playback worker drains the ring while the socket loop fills it;
// a dropped socket flushes the ring and reconnects.
func (r *Receiver) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.playbackLoop(ctx)
	}()
	defer wg.Wait()

	addr := fmt.Sprintf("%s:%d", r.cfg.TransmitterAddr, r.cfg.Port)
	for ctx.Err() == nil {
		if err := r.session(ctx, addr); err != nil && ctx.Err() == nil {
			slog.Warn("session ended", "err", err)
		}

		// Flush stale audio before the next session.
		r.buf.Zero()

		select {
		case <-ctx.Done():
		case <-time.After(redialDelay):
		}
	}
	return ctx.Err()
}

// session runs one connect-identify-receive cycle.
func (r *Receiver) session(ctx context.Context, addr string) error {
	conn, err := r.dial(ctx, addr)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	// Stop blocking reads when the context falls.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if _, err := conn.Write(r.mac[:]); err != nil {
		return fmt.Errorf("send identity: %w", err)
	}
	slog.Info("connected to transmitter", "addr", addr)

	transmission := make([]byte, r.cfg.ChunkBytes+r.cfg.MetadataBytes)
	counter := 0
	for ctx.Err() == nil {
		if r.buf.BytesAvailable() >= r.cfg.ChunkBytes {
			if _, err := io.ReadFull(conn, transmission); err != nil {
				return fmt.Errorf("recv: %w", err)
			}
			staged := r.buf.StageWriteBytes(transmission[:r.cfg.ChunkBytes])

			r.frameMu.Lock()
			r.frame.SetData(transmission[r.cfg.ChunkBytes:])
			r.frameMu.Unlock()

			r.buf.ReportWrittenBytes(staged)
		}
		yield(&counter)
	}
	return ctx.Err()
}

/*                          Playback side                           */

func (r *Receiver) playbackLoop(ctx context.Context) {
	scratch := make([]byte, r.buf.BytesPerBuffer())
	counter := 0
	for ctx.Err() == nil {
		r.ringToI2S(scratch)
		yield(&counter)
	}
}

// ringToI2S moves one read slot's remainder from the ring to the
// audio output.
func (r *Receiver) ringToI2S(scratch []byte) {
	if r.buf.BuffersBuffered() == 0 {
		return
	}
	unread := r.buf.BytesUnread()
	if unread == 0 {
		return
	}
	if unread > len(scratch) {
		unread = len(scratch)
	}
	n := r.buf.PeekReadBytes(scratch[:unread])
	if n == 0 {
		return
	}
	if _, err := r.out.WriteBytes(scratch[:n]); err != nil {
		slog.Error("i2s write failed", "err", err)
		return
	}
	r.buf.ReportReadBytes(n)
}

func yield(counter *int) {
	*counter++
	if *counter >= yieldInterval {
		*counter = 0
		time.Sleep(time.Millisecond)
	}
}

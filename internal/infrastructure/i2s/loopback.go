// ABOUTME: Loopback transport for hosts without codec hardware
// ABOUTME: Zero-fills reads and drops writes at the real-time byte rate
package i2s

import (
	"sync"
	"time"
)

// Loopback is the simulation transport: reads produce silence, writes
// are discarded, and both are paced to the configured sample rate so
// the loops behave as they would against real hardware.
type Loopback struct {
	mu          sync.Mutex
	bytesPerSec int
	readAt      time.Time
	writeAt     time.Time
	closed      bool
}

// NewLoopback returns an unconfigured loopback transport.
func NewLoopback() *Loopback {
	return &Loopback{}
}

// Configure derives the pacing byte rate from the audio format.
func (l *Loopback) Configure(sampleRate, bitDepth, channels int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	width := bitDepth / 8
	if bitDepth == 24 {
		width = 4
	}
	l.bytesPerSec = sampleRate * width * channels
	now := time.Now()
	l.readAt = now
	l.writeAt = now
	return nil
}

// Read zero-fills p after waiting out the time those samples span.
func (l *Loopback) Read(p []byte) (int, error) {
	if err := l.pace(&l.readAt, len(p)); err != nil {
		return 0, err
	}
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

// Write discards p after waiting out the time those samples span.
func (l *Loopback) Write(p []byte) (int, error) {
	if err := l.pace(&l.writeAt, len(p)); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close marks the transport unusable.
func (l *Loopback) Close() error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	return nil
}

func (l *Loopback) pace(cursor *time.Time, numBytes int) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	rate := l.bytesPerSec
	if rate <= 0 {
		l.mu.Unlock()
		return ErrNotStarted
	}
	span := time.Duration(numBytes) * time.Second / time.Duration(rate)
	next := cursor.Add(span)
	now := time.Now()
	if next.Before(now) {
		// The consumer fell behind; resync instead of bursting.
		next = now
	}
	*cursor = next
	wait := next.Sub(now)
	l.mu.Unlock()

	if wait > 0 {
		time.Sleep(wait)
	}
	return nil
}

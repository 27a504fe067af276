// ABOUTME: Domain interfaces for dependency inversion
// ABOUTME: Loops depend on these, not on concrete hardware adapters
package domain

import "context"

// AudioPort is the blocking PCM surface the transport loops drive.
// Exactly one goroutine reads and one writes.
type AudioPort interface {
	ReadBytes(dst []byte) (int, error)
	WriteBytes(src []byte) (int, error)
	Start() error
	Stop() error
	Close() error
}

// NetworkControl brings the radio link up in the configured mode and
// blocks until it is usable or has failed.
type NetworkControl interface {
	AwaitReady(ctx context.Context) error
	LocalMAC() [6]byte
	LocalIP() [4]byte
}

// AudioRing is the byte-level ring surface the transport loops drive.
// The quorum-gated ring satisfies it for any sample width.
type AudioRing interface {
	BytesPerBuffer() int
	BytesUnwritten() int
	BytesUnread() int
	BytesBuffered() int
	BytesAvailable() int
	BuffersBuffered() int

	StageWriteBytes(p []byte) int
	ReportWrittenBytes(numBytes int)

	PeekReadBytes(dst []byte) int
	ReportReadBytes(numBytes int)

	SetNumReaders(n int) error
	NumReaders() int

	Zero()
}

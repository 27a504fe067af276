// ABOUTME: I2S bus adapter with the codec's configuration surface
// ABOUTME: Blocking PCM byte I/O over a pluggable transport
package i2s

import (
	"errors"
	"fmt"
	"sync"
)

// Role selects whether the bus drives the clocks or follows them.
type Role int

const (
	RoleMaster Role = iota
	RoleSlave
)

var (
	// ErrOutOfRange is returned for unsupported depth, rate, or
	// channel settings.
	ErrOutOfRange = errors.New("i2s: configuration value out of range")

	// ErrNotStarted is returned when I/O is attempted before Start.
	ErrNotStarted = errors.New("i2s: channel not started")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("i2s: bus closed")
)

// Pins is the GPIO assignment for the five bus lines.
type Pins struct {
	Mclk int
	Bclk int
	Ws   int
	Do   int
	Di   int
}

// Transport is the byte-level backend behind the bus: real codec
// hardware on a device, a loopback or WAV file elsewhere.
type Transport interface {
	Configure(sampleRate, bitDepth, channels int) error
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// Bus adapts a transport to the configuration surface of the audio
// codec: bit depth, sample rate, channel count, role, pin map, and
// polarity flags. Reads and writes block until the transport has
// moved the requested bytes.
type Bus struct {
	mu sync.Mutex

	transport Transport

	sampleRate int
	bitDepth   int
	channels   int
	role       Role
	pins       Pins

	invertMclk bool
	invertBclk bool
	invertWs   bool
	autoClear  bool

	mclkMultiple int

	started bool
	closed  bool
}

// NewBus wraps a transport with default codec settings: 48 kHz,
// 16-bit, mono, master role.
func NewBus(t Transport) *Bus {
	return &Bus{
		transport:    t,
		sampleRate:   48000,
		bitDepth:     16,
		channels:     1,
		role:         RoleMaster,
		mclkMultiple: 256,
	}
}

// SetBitDepth selects the data and slot width. A 24-bit slot needs a
// master clock at 384x the sample rate; every other depth runs 256x.
func (b *Bus) SetBitDepth(bits int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch bits {
	case 8, 16, 32:
		b.mclkMultiple = 256
	case 24:
		b.mclkMultiple = 384
	default:
		return fmt.Errorf("%w: bit depth %d", ErrOutOfRange, bits)
	}
	b.bitDepth = bits
	return nil
}

// SetSampleRate reconfigures the clock tree. A running channel is
// stopped for the change and re-enabled afterwards.
func (b *Bus) SetSampleRate(rate int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if rate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrOutOfRange, rate)
	}
	wasStarted := b.started
	if wasStarted {
		if err := b.stopLocked(); err != nil {
			return err
		}
	}
	b.sampleRate = rate
	if wasStarted {
		return b.startLocked()
	}
	return nil
}

// SetChannels selects mono or stereo.
func (b *Bus) SetChannels(n int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n != 1 && n != 2 {
		return fmt.Errorf("%w: channels %d", ErrOutOfRange, n)
	}
	b.channels = n
	return nil
}

// SetRole selects master or slave clocking.
func (b *Bus) SetRole(r Role) {
	b.mu.Lock()
	b.role = r
	b.mu.Unlock()
}

// SetPins assigns the GPIO map.
func (b *Bus) SetPins(p Pins) {
	b.mu.Lock()
	b.pins = p
	b.mu.Unlock()
}

// SetInvertMclk flips master clock polarity.
func (b *Bus) SetInvertMclk(v bool) {
	b.mu.Lock()
	b.invertMclk = v
	b.mu.Unlock()
}

// SetInvertBclk flips bit clock polarity.
func (b *Bus) SetInvertBclk(v bool) {
	b.mu.Lock()
	b.invertBclk = v
	b.mu.Unlock()
}

// SetInvertWs flips word select polarity.
func (b *Bus) SetInvertWs(v bool) {
	b.mu.Lock()
	b.invertWs = v
	b.mu.Unlock()
}

// SetAutoClear zero-fills the output on underrun.
func (b *Bus) SetAutoClear(v bool) {
	b.mu.Lock()
	b.autoClear = v
	b.mu.Unlock()
}

// SampleRate returns the configured rate.
func (b *Bus) SampleRate() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sampleRate
}

// BitDepth returns the configured depth.
func (b *Bus) BitDepth() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bitDepth
}

// Channels returns the configured channel count.
func (b *Bus) Channels() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.channels
}

// MclkMultiple returns the master clock multiplier for the current
// bit depth.
func (b *Bus) MclkMultiple() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mclkMultiple
}

// Start enables the channel.
func (b *Bus) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.startLocked()
}

func (b *Bus) startLocked() error {
	if b.closed {
		return ErrClosed
	}
	if b.started {
		return nil
	}
	if err := b.transport.Configure(b.sampleRate, b.bitDepth, b.channels); err != nil {
		return fmt.Errorf("configure transport: %w", err)
	}
	b.started = true
	return nil
}

// Stop disables the channel without releasing it.
func (b *Bus) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stopLocked()
}

func (b *Bus) stopLocked() error {
	b.started = false
	return nil
}

// Close releases the bus and its transport.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.started = false
	b.closed = true
	return b.transport.Close()
}

// ReadBytes fills dst with captured PCM, blocking until the transport
// delivers all of it.
func (b *Bus) ReadBytes(dst []byte) (int, error) {
	if err := b.ioCheck(); err != nil {
		return 0, err
	}
	total := 0
	for total < len(dst) {
		n, err := b.transport.Read(dst[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteBytes pushes PCM to the output, blocking until the transport
// accepts all of it.
func (b *Bus) WriteBytes(src []byte) (int, error) {
	if err := b.ioCheck(); err != nil {
		return 0, err
	}
	total := 0
	for total < len(src) {
		n, err := b.transport.Write(src[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (b *Bus) ioCheck() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	if !b.started {
		return ErrNotStarted
	}
	return nil
}

// ABOUTME: WAV file transports for the bus: file source and file sink
// ABOUTME: Lets a unit transmit from or record to a WAV on disk
package i2s

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrFormatMismatch is returned when a WAV file's format does not
// match the bus configuration.
var ErrFormatMismatch = errors.New("i2s: wav format does not match bus configuration")

// WAVSource feeds the capture side of the bus from a WAV file,
// looping at end of file and pacing reads to the real-time rate.
type WAVSource struct {
	path string
	loop bool

	file   *os.File
	dec    *wav.Decoder
	intBuf *goaudio.IntBuffer

	width       int
	bitDepth    int
	channels    int
	bytesPerSec int
	cursor      time.Time
}

// NewWAVSource returns a source reading PCM from path. When loop is
// set the file restarts at EOF, so the transmitter plays forever.
func NewWAVSource(path string, loop bool) *WAVSource {
	return &WAVSource{path: path, loop: loop}
}

// Configure opens the file and checks its format against the bus.
func (s *WAVSource) Configure(sampleRate, bitDepth, channels int) error {
	if err := s.open(); err != nil {
		return err
	}
	if int(s.dec.SampleRate) != sampleRate ||
		int(s.dec.BitDepth) != bitDepth ||
		int(s.dec.NumChans) != channels {
		s.file.Close()
		s.file = nil
		return fmt.Errorf("%w: file is %d Hz / %d bit / %d ch",
			ErrFormatMismatch, s.dec.SampleRate, s.dec.BitDepth, s.dec.NumChans)
	}
	s.width = sampleWidth(bitDepth)
	s.bitDepth = bitDepth
	s.channels = channels
	s.bytesPerSec = sampleRate * s.width * channels
	s.cursor = time.Now()
	return nil
}

func (s *WAVSource) open() error {
	if s.file != nil {
		s.file.Close()
	}
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("open wav source: %w", err)
	}
	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	if !dec.IsValidFile() {
		f.Close()
		return fmt.Errorf("%w: %s is not a wav file", ErrFormatMismatch, s.path)
	}
	s.file = f
	s.dec = dec
	return nil
}

// Read decodes the next samples into p as little-endian PCM bytes.
func (s *WAVSource) Read(p []byte) (int, error) {
	if s.file == nil {
		return 0, ErrNotStarted
	}

	want := len(p) / s.width
	if want == 0 {
		return 0, nil
	}
	if s.intBuf == nil || cap(s.intBuf.Data) < want {
		s.intBuf = &goaudio.IntBuffer{Data: make([]int, want)}
	}
	s.intBuf.Data = s.intBuf.Data[:want]

	n, err := s.dec.PCMBuffer(s.intBuf)
	if n == 0 {
		if !s.loop {
			return 0, io.EOF
		}
		if err := s.open(); err != nil {
			return 0, err
		}
		if n, err = s.dec.PCMBuffer(s.intBuf); n == 0 {
			if err != nil {
				return 0, err
			}
			return 0, io.EOF
		}
	}

	for i := 0; i < n; i++ {
		putPCM(p[i*s.width:], s.intBuf.Data[i], s.width)
	}

	pace(&s.cursor, n*s.width, s.bytesPerSec)
	return n * s.width, nil
}

// Write is not supported on a source.
func (s *WAVSource) Write(p []byte) (int, error) {
	return 0, fmt.Errorf("i2s: wav source is read-only")
}

// Close releases the file.
func (s *WAVSource) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// WAVSink records the playback side of the bus to a WAV file.
type WAVSink struct {
	path string

	file  *os.File
	enc   *wav.Encoder
	width int
}

// NewWAVSink returns a sink writing received PCM to path.
func NewWAVSink(path string) *WAVSink {
	return &WAVSink{path: path}
}

// Configure creates the file and its encoder.
func (s *WAVSink) Configure(sampleRate, bitDepth, channels int) error {
	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("create wav sink: %w", err)
	}
	s.file = f
	s.enc = wav.NewEncoder(f, sampleRate, bitDepth, channels, 1)
	s.width = sampleWidth(bitDepth)
	return nil
}

// Read is not supported on a sink.
func (s *WAVSink) Read(p []byte) (int, error) {
	return 0, fmt.Errorf("i2s: wav sink is write-only")
}

// Write encodes little-endian PCM bytes into the file.
func (s *WAVSink) Write(p []byte) (int, error) {
	if s.enc == nil {
		return 0, ErrNotStarted
	}
	n := len(p) / s.width
	buf := &goaudio.IntBuffer{
		Data:   make([]int, n),
		Format: &goaudio.Format{NumChannels: s.enc.NumChans, SampleRate: s.enc.SampleRate},
	}
	for i := 0; i < n; i++ {
		buf.Data[i] = getPCM(p[i*s.width:], s.width)
	}
	if err := s.enc.Write(buf); err != nil {
		return 0, fmt.Errorf("encode wav: %w", err)
	}
	return n * s.width, nil
}

// Close finalizes the WAV header and releases the file.
func (s *WAVSink) Close() error {
	if s.enc == nil {
		return nil
	}
	if err := s.enc.Close(); err != nil {
		s.file.Close()
		return err
	}
	err := s.file.Close()
	s.enc = nil
	s.file = nil
	return err
}

// sampleWidth returns the container byte width for a bit depth;
// 24-bit rides in four bytes.
func sampleWidth(bitDepth int) int {
	if bitDepth == 24 {
		return 4
	}
	return bitDepth / 8
}

func putPCM(b []byte, v, width int) {
	switch width {
	case 1:
		b[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(int16(v)))
	default:
		binary.LittleEndian.PutUint32(b, uint32(int32(v)))
	}
}

func getPCM(b []byte, width int) int {
	switch width {
	case 1:
		return int(int8(b[0]))
	case 2:
		return int(int16(binary.LittleEndian.Uint16(b)))
	default:
		return int(int32(binary.LittleEndian.Uint32(b)))
	}
}

func pace(cursor *time.Time, numBytes, bytesPerSec int) {
	if bytesPerSec <= 0 {
		return
	}
	span := time.Duration(numBytes) * time.Second / time.Duration(bytesPerSec)
	next := cursor.Add(span)
	now := time.Now()
	if next.Before(now) {
		next = now
	}
	*cursor = next
	if wait := next.Sub(now); wait > 0 {
		time.Sleep(wait)
	}
}

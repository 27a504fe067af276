// ABOUTME: YAML configuration parsing, defaults, and validation
// ABOUTME: Every transport and audio constant has a buildable default
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Mode      ModeConfig      `yaml:"mode"`
	Audio     AudioConfig     `yaml:"audio"`
	Ring      RingConfig      `yaml:"ring"`
	Transport TransportConfig `yaml:"transport"`
	Radio     RadioConfig     `yaml:"radio"`
	Pins      PinConfig       `yaml:"pins"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ModeConfig struct {
	Transmit bool `yaml:"transmit"`
}

type AudioConfig struct {
	SampleRate    int `yaml:"sample_rate"`
	BitsPerSample int `yaml:"bits_per_sample"`
	Channels      int `yaml:"channels"`
	// SourceWAV feeds the transmitter from a file instead of the
	// capture input; SinkWAV records received audio to a file.
	SourceWAV string `yaml:"source_wav"`
	SinkWAV   string `yaml:"sink_wav"`
}

type RingConfig struct {
	BufferLength int `yaml:"buffer_length"`
	RingLength   int `yaml:"ring_length"`
}

type TransportConfig struct {
	Port            int    `yaml:"port"`
	TransmitterAddr string `yaml:"transmitter_addr"`
	// ChunkBytes zero selects the size ladder from the slot byte size.
	ChunkBytes    int `yaml:"chunk_bytes"`
	MetadataBytes int `yaml:"metadata_bytes"`
}

type RadioConfig struct {
	SSID        string `yaml:"ssid"`
	Password    string `yaml:"password"`
	Channel     int    `yaml:"channel"`
	MaxStations int    `yaml:"max_stations"`
	MaxRetry    int    `yaml:"max_retry"`
}

type PinConfig struct {
	Mclk     int `yaml:"mclk"`
	Bclk     int `yaml:"bclk"`
	Ws       int `yaml:"ws"`
	DataOut  int `yaml:"data_out"`
	DataIn   int `yaml:"data_in"`
	Shutdown int `yaml:"shutdown"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
	File  string `yaml:"file"`
}

// Default returns the build defaults: 48 kHz mono 16-bit, a two-slot
// ring of 128 samples, and the transmitter convention address.
func Default() *Config {
	return &Config{
		Audio: AudioConfig{
			SampleRate:    48000,
			BitsPerSample: 16,
			Channels:      1,
		},
		Ring: RingConfig{
			BufferLength: 128,
			RingLength:   2,
		},
		Transport: TransportConfig{
			Port:            3333,
			TransmitterAddr: "192.168.4.1",
			MetadataBytes:   128,
		},
		Radio: RadioConfig{
			SSID:        "audiocast",
			Channel:     1,
			MaxStations: 4,
			MaxRetry:    8,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads a YAML file over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Audio.BitsPerSample {
	case 8, 16, 24, 32:
	default:
		return fmt.Errorf("bits_per_sample must be 8, 16, 24, or 32, got %d", c.Audio.BitsPerSample)
	}
	if c.Audio.Channels != 1 && c.Audio.Channels != 2 {
		return fmt.Errorf("channels must be 1 or 2, got %d", c.Audio.Channels)
	}
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.Audio.SampleRate)
	}
	if c.Ring.RingLength < 2 {
		return fmt.Errorf("ring_length must be at least 2, got %d", c.Ring.RingLength)
	}
	if c.Ring.BufferLength%2 != 0 || c.Ring.BufferLength%c.Ring.RingLength != 0 {
		return fmt.Errorf("buffer_length %d must be even and a multiple of ring_length %d",
			c.Ring.BufferLength, c.Ring.RingLength)
	}
	if c.Transport.Port <= 0 || c.Transport.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Transport.Port)
	}
	if c.Transport.MetadataBytes < 16 {
		return fmt.Errorf("metadata_bytes must be at least 16, got %d", c.Transport.MetadataBytes)
	}
	chunk := c.DataChunkBytes()
	if chunk <= 0 || c.SlotBytes()%chunk != 0 {
		return fmt.Errorf("chunk_bytes %d must divide the slot byte size %d", chunk, c.SlotBytes())
	}
	if chunk%c.SampleWidth() != 0 {
		return fmt.Errorf("chunk_bytes %d must align to the %d-byte sample width", chunk, c.SampleWidth())
	}
	if c.Radio.MaxStations <= 0 {
		return fmt.Errorf("max_stations must be positive, got %d", c.Radio.MaxStations)
	}
	return nil
}

// SampleWidth returns the container byte width of one sample; 24-bit
// audio rides in four bytes.
func (c *Config) SampleWidth() int {
	if c.Audio.BitsPerSample == 24 {
		return 4
	}
	return c.Audio.BitsPerSample / 8
}

// SlotBytes returns the byte size of one ring slot.
func (c *Config) SlotBytes() int {
	return c.Ring.BufferLength * c.SampleWidth()
}

// DataChunkBytes returns the audio payload size of one transmission.
// When unset it follows the slot-size ladder: slots of at least 1024
// bytes ship in sixteenths, 512 in eighths, 256 in quarters, smaller
// slots whole.
func (c *Config) DataChunkBytes() int {
	if c.Transport.ChunkBytes > 0 {
		return c.Transport.ChunkBytes
	}
	slot := c.SlotBytes()
	switch {
	case slot >= 1024:
		return slot / 16
	case slot >= 512:
		return slot / 8
	case slot >= 256:
		return slot / 4
	default:
		return slot
	}
}

// TransmissionBytes returns the full wire size of one transmission:
// audio chunk plus metadata block.
func (c *Config) TransmissionBytes() int {
	return c.DataChunkBytes() + c.Transport.MetadataBytes
}

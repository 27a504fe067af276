// ABOUTME: Main entry point for the audiocast transceiver
// ABOUTME: Selects transmit or receive mode and wires the pipeline
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/harper/audiocast/internal/application/config"
	"github.com/harper/audiocast/internal/application/receiver"
	"github.com/harper/audiocast/internal/application/transmitter"
	"github.com/harper/audiocast/internal/domain"
	"github.com/harper/audiocast/internal/domain/device"
	"github.com/harper/audiocast/internal/infrastructure/i2s"
	"github.com/harper/audiocast/internal/infrastructure/logging"
	"github.com/harper/audiocast/internal/infrastructure/ring"
	"github.com/harper/audiocast/internal/infrastructure/wifi"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := flag.String("config", "", "path to config.yaml")
	txMode := flag.Bool("tx", false, "force transmit mode")
	flag.Parse()

	cfg := config.Default()
	if *cfgPath != "" {
		loaded, err := config.Load(*cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	if *txMode {
		cfg.Mode.Transmit = true
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	if err := logging.Setup(cfg.Logging.File, cfg.Logging.Level, cfg.Logging.JSON); err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer logging.Close()

	slog.Info("audiocast starting",
		"mode", map[bool]string{true: "transmit", false: "receive"}[cfg.Mode.Transmit],
		"rate", cfg.Audio.SampleRate,
		"bits", cfg.Audio.BitsPerSample,
		"channels", cfg.Audio.Channels)

	// The sample type is fixed for the life of the process, like a
	// build-time choice on the device firmware.
	switch cfg.Audio.BitsPerSample {
	case 8:
		return runPipeline[uint8](cfg)
	case 16:
		return runPipeline[int16](cfg)
	default: // 24-in-32 and 32
		return runPipeline[int32](cfg)
	}
}

func runPipeline[T ring.Sample](cfg *config.Config) error {
	buf, err := ring.NewMultiRead[T](cfg.Ring.BufferLength, cfg.Ring.RingLength)
	if err != nil {
		return fmt.Errorf("size ring: %w", err)
	}
	if err := buf.SetNumReaders(1); err != nil {
		return err
	}

	bus := i2s.NewBus(busTransport(cfg))
	if err := bus.SetBitDepth(cfg.Audio.BitsPerSample); err != nil {
		return err
	}
	if err := bus.SetSampleRate(cfg.Audio.SampleRate); err != nil {
		return err
	}
	if err := bus.SetChannels(cfg.Audio.Channels); err != nil {
		return err
	}
	bus.SetPins(i2s.Pins{
		Mclk: cfg.Pins.Mclk,
		Bclk: cfg.Pins.Bclk,
		Ws:   cfg.Pins.Ws,
		Do:   cfg.Pins.DataOut,
		Di:   cfg.Pins.DataIn,
	})
	bus.SetAutoClear(true)
	if err := bus.Start(); err != nil {
		return fmt.Errorf("start i2s: %w", err)
	}
	defer bus.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := device.NewRegistry()
	radio := wifi.RadioConfig{
		SSID:        cfg.Radio.SSID,
		Password:    cfg.Radio.Password,
		Channel:     cfg.Radio.Channel,
		MaxStations: cfg.Radio.MaxStations,
	}

	mode := wifi.ModeSTA
	if cfg.Mode.Transmit {
		mode = wifi.ModeAP
	}
	wcfg := wifi.New(mode, radio, cfg.Radio.MaxRetry, wifi.NewHostDriver())
	if cfg.Mode.Transmit {
		// A station that drops off the air loses its socket too.
		wcfg.OnStationDisconnected = func(mac [6]byte) {
			if d := registry.FindByMAC(mac); d != nil {
				d.NetworkConnected.Store(false)
				d.CloseConn()
			}
		}
	}
	var link domain.NetworkControl = wcfg
	if err := link.AwaitReady(ctx); err != nil {
		return fmt.Errorf("network config: %w", err)
	}

	if cfg.Mode.Transmit {
		return runTransmitter(ctx, cfg, buf, bus, registry)
	}
	return runReceiver(ctx, cfg, buf, bus, link.LocalMAC())
}

func runTransmitter[T ring.Sample](ctx context.Context, cfg *config.Config, buf *ring.MultiRead[T], bus *i2s.Bus, registry *device.Registry) error {
	t, err := transmitter.New(transmitter.Config{
		Port:          cfg.Transport.Port,
		ChunkBytes:    cfg.DataChunkBytes(),
		MetadataBytes: cfg.Transport.MetadataBytes,
		MaxStations:   cfg.Radio.MaxStations,
	}, buf, bus, registry)
	if err != nil {
		return err
	}
	if err := t.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	slog.Info("shutting down")
	return t.Shutdown()
}

func runReceiver[T ring.Sample](ctx context.Context, cfg *config.Config, buf *ring.MultiRead[T], bus *i2s.Bus, mac [6]byte) error {
	r, err := receiver.New(receiver.Config{
		TransmitterAddr: cfg.Transport.TransmitterAddr,
		Port:            cfg.Transport.Port,
		ChunkBytes:      cfg.DataChunkBytes(),
		MetadataBytes:   cfg.Transport.MetadataBytes,
	}, buf, bus, mac)
	if err != nil {
		return err
	}
	if err := r.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	slog.Info("shutting down")
	return nil
}

// busTransport picks the audio backend: a WAV file when configured,
// the paced loopback otherwise.
func busTransport(cfg *config.Config) i2s.Transport {
	if cfg.Mode.Transmit && cfg.Audio.SourceWAV != "" {
		return i2s.NewWAVSource(cfg.Audio.SourceWAV, true)
	}
	if !cfg.Mode.Transmit && cfg.Audio.SinkWAV != "" {
		return i2s.NewWAVSink(cfg.Audio.SinkWAV)
	}
	return i2s.NewLoopback()
}

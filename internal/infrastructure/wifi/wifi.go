// ABOUTME: Radio link lifecycle as an explicit state machine
// ABOUTME: AP hosts the subnet; STA associates and waits for an address
package wifi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
)

// Mode selects the link role.
type Mode int

const (
	// ModeAP hosts the network; the transmitter runs this.
	ModeAP Mode = iota
	// ModeSTA joins an existing network; receivers run this.
	ModeSTA
)

// State is the link lifecycle position.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateRetrying
	StateConnected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateRetrying:
		return "retrying"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// EventKind identifies a driver event.
type EventKind int

const (
	// EventStationStart fires when the radio is up and may associate.
	EventStationStart EventKind = iota
	// EventStationConnected fires on the AP when a station joins.
	EventStationConnected
	// EventStationDisconnected fires on the AP when a station leaves.
	EventStationDisconnected
	// EventDisconnected fires on a station when association drops.
	EventDisconnected
	// EventGotIP fires on a station once an address is assigned.
	EventGotIP
)

// Event is one driver notification.
type Event struct {
	Kind EventKind
	MAC  [6]byte
	IP   [4]byte
}

// RadioConfig carries the over-the-air parameters.
type RadioConfig struct {
	SSID        string
	Password    string
	Channel     int
	MaxStations int
}

// Driver is the platform WiFi surface: it brings the radio up in a
// mode and delivers events. The host driver assumes the operating
// system already manages the link.
type Driver interface {
	Start(ctx context.Context, mode Mode, cfg RadioConfig) (<-chan Event, error)
	Connect() error
	MAC() [6]byte
	Close() error
}

// ErrConnectFailed is returned when the retry budget is exhausted.
var ErrConnectFailed = errors.New("wifi: failed to associate")

// Config drives a Driver through the link lifecycle and exposes the
// local identity once ready.
type Config struct {
	mode     Mode
	radio    RadioConfig
	maxRetry int
	driver   Driver

	state atomic.Int32

	mac [6]byte
	ip  [4]byte

	// AP-side callbacks, invoked from the event goroutine.
	OnStationConnected    func(mac [6]byte)
	OnStationDisconnected func(mac [6]byte)
}

// New wires a state machine over the driver. MaxRetry bounds STA
// association attempts before AwaitReady fails.
func New(mode Mode, radio RadioConfig, maxRetry int, d Driver) *Config {
	c := &Config{mode: mode, radio: radio, maxRetry: maxRetry, driver: d}
	c.state.Store(int32(StateIdle))
	return c
}

// State returns the current lifecycle position.
func (c *Config) State() State { return State(c.state.Load()) }

// LocalMAC returns the radio's MAC address.
func (c *Config) LocalMAC() [6]byte { return c.mac }

// LocalIP returns the assigned IPv4 address; zero until connected.
func (c *Config) LocalIP() [4]byte { return c.ip }

// AwaitReady starts the driver and blocks until the link is usable or
// has failed. In AP mode the link is ready as soon as the driver is
// up; station join and leave events are then dispatched to the
// callbacks in the background. In STA mode it walks the association
// state machine, retrying up to MaxRetry times.
func (c *Config) AwaitReady(ctx context.Context) error {
	c.state.Store(int32(StateConnecting))

	events, err := c.driver.Start(ctx, c.mode, c.radio)
	if err != nil {
		c.state.Store(int32(StateFailed))
		return fmt.Errorf("start driver: %w", err)
	}
	c.mac = c.driver.MAC()

	if c.mode == ModeAP {
		c.ip = [4]byte{192, 168, 4, 1}
		c.state.Store(int32(StateConnected))
		go c.serveAPEvents(ctx, events)
		slog.Info("access point up", "ssid", c.radio.SSID, "channel", c.radio.Channel)
		return nil
	}
	return c.awaitStation(ctx, events)
}

func (c *Config) serveAPEvents(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Kind {
			case EventStationConnected:
				slog.Info("station joined", "mac", macString(ev.MAC))
				if c.OnStationConnected != nil {
					c.OnStationConnected(ev.MAC)
				}
			case EventStationDisconnected:
				slog.Info("station left", "mac", macString(ev.MAC))
				if c.OnStationDisconnected != nil {
					c.OnStationDisconnected(ev.MAC)
				}
			}
		}
	}
}

func (c *Config) awaitStation(ctx context.Context, events <-chan Event) error {
	retries := 0
	for {
		select {
		case <-ctx.Done():
			c.state.Store(int32(StateFailed))
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				c.state.Store(int32(StateFailed))
				return ErrConnectFailed
			}
			switch ev.Kind {
			case EventStationStart:
				c.state.Store(int32(StateConnecting))
				if err := c.driver.Connect(); err != nil {
					c.state.Store(int32(StateFailed))
					return fmt.Errorf("connect: %w", err)
				}
			case EventDisconnected:
				if retries >= c.maxRetry {
					c.state.Store(int32(StateFailed))
					slog.Error("association failed", "ssid", c.radio.SSID, "retries", retries)
					return ErrConnectFailed
				}
				retries++
				c.state.Store(int32(StateRetrying))
				slog.Warn("association dropped, retrying", "attempt", retries, "max", c.maxRetry)
				if err := c.driver.Connect(); err != nil {
					c.state.Store(int32(StateFailed))
					return fmt.Errorf("connect: %w", err)
				}
			case EventGotIP:
				c.ip = ev.IP
				c.state.Store(int32(StateConnected))
				slog.Info("associated", "ssid", c.radio.SSID, "ip", ipString(ev.IP))
				return nil
			}
		}
	}
}

func macString(mac [6]byte) string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x",
		mac[0], mac[1], mac[2], mac[3], mac[4], mac[5])
}

func ipString(ip [4]byte) string {
	return fmt.Sprintf("%d.%d.%d.%d", ip[0], ip[1], ip[2], ip[3])
}

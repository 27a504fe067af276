// ABOUTME: Tests for the link state machine
// ABOUTME: Drives scripted driver events through AP and STA lifecycles
package wifi

import (
	"context"
	"testing"
	"time"
)

// scriptDriver feeds pre-scripted events to the state machine.
type scriptDriver struct {
	mac      [6]byte
	events   chan Event
	connects int
	// script is replayed once per Connect call.
	onConnect func(n int, events chan<- Event)
}

func newScriptDriver() *scriptDriver {
	return &scriptDriver{
		mac:    [6]byte{0xaa, 0xbb, 0xcc, 0, 0, 1},
		events: make(chan Event, 16),
	}
}

func (d *scriptDriver) Start(ctx context.Context, mode Mode, cfg RadioConfig) (<-chan Event, error) {
	if mode == ModeSTA {
		d.events <- Event{Kind: EventStationStart}
	}
	return d.events, nil
}

func (d *scriptDriver) Connect() error {
	d.connects++
	if d.onConnect != nil {
		d.onConnect(d.connects, d.events)
	}
	return nil
}

func (d *scriptDriver) MAC() [6]byte { return d.mac }
func (d *scriptDriver) Close() error { return nil }

func TestAP_ReadyImmediately(t *testing.T) {
	d := newScriptDriver()
	c := New(ModeAP, RadioConfig{SSID: "audiocast", Channel: 1}, 8, d)

	if err := c.AwaitReady(context.Background()); err != nil {
		t.Fatalf("AwaitReady failed: %v", err)
	}
	if c.State() != StateConnected {
		t.Errorf("expected connected, got %v", c.State())
	}
	if c.LocalIP() != [4]byte{192, 168, 4, 1} {
		t.Errorf("AP should own 192.168.4.1, got %v", c.LocalIP())
	}
	if c.LocalMAC() != d.mac {
		t.Error("local MAC should come from the driver")
	}
}

func TestAP_StationCallbacks(t *testing.T) {
	d := newScriptDriver()
	c := New(ModeAP, RadioConfig{SSID: "audiocast"}, 8, d)

	joined := make(chan [6]byte, 1)
	left := make(chan [6]byte, 1)
	c.OnStationConnected = func(mac [6]byte) { joined <- mac }
	c.OnStationDisconnected = func(mac [6]byte) { left <- mac }

	if err := c.AwaitReady(context.Background()); err != nil {
		t.Fatalf("AwaitReady failed: %v", err)
	}

	peer := [6]byte{1, 2, 3, 4, 5, 6}
	d.events <- Event{Kind: EventStationConnected, MAC: peer}
	d.events <- Event{Kind: EventStationDisconnected, MAC: peer}

	select {
	case mac := <-joined:
		if mac != peer {
			t.Errorf("joined callback got wrong MAC: %v", mac)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for join callback")
	}
	select {
	case mac := <-left:
		if mac != peer {
			t.Errorf("left callback got wrong MAC: %v", mac)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for leave callback")
	}
}

func TestSTA_ConnectsOnFirstTry(t *testing.T) {
	d := newScriptDriver()
	d.onConnect = func(n int, events chan<- Event) {
		events <- Event{Kind: EventGotIP, IP: [4]byte{192, 168, 4, 2}}
	}
	c := New(ModeSTA, RadioConfig{SSID: "audiocast"}, 8, d)

	if err := c.AwaitReady(context.Background()); err != nil {
		t.Fatalf("AwaitReady failed: %v", err)
	}
	if c.State() != StateConnected {
		t.Errorf("expected connected, got %v", c.State())
	}
	if c.LocalIP() != [4]byte{192, 168, 4, 2} {
		t.Errorf("expected assigned address, got %v", c.LocalIP())
	}
	if d.connects != 1 {
		t.Errorf("expected a single connect, got %d", d.connects)
	}
}

func TestSTA_RetriesThenConnects(t *testing.T) {
	d := newScriptDriver()
	d.onConnect = func(n int, events chan<- Event) {
		if n < 3 {
			events <- Event{Kind: EventDisconnected}
		} else {
			events <- Event{Kind: EventGotIP, IP: [4]byte{192, 168, 4, 7}}
		}
	}
	c := New(ModeSTA, RadioConfig{SSID: "audiocast"}, 8, d)

	if err := c.AwaitReady(context.Background()); err != nil {
		t.Fatalf("AwaitReady failed: %v", err)
	}
	if d.connects != 3 {
		t.Errorf("expected 3 connects, got %d", d.connects)
	}
}

func TestSTA_FailsAfterMaxRetry(t *testing.T) {
	d := newScriptDriver()
	d.onConnect = func(n int, events chan<- Event) {
		events <- Event{Kind: EventDisconnected}
	}
	c := New(ModeSTA, RadioConfig{SSID: "audiocast"}, 2, d)

	err := c.AwaitReady(context.Background())
	if err != ErrConnectFailed {
		t.Fatalf("expected ErrConnectFailed, got %v", err)
	}
	if c.State() != StateFailed {
		t.Errorf("expected failed state, got %v", c.State())
	}
	// Initial attempt plus two retries.
	if d.connects != 3 {
		t.Errorf("expected 3 connects, got %d", d.connects)
	}
}

func TestSTA_ContextCancel(t *testing.T) {
	d := newScriptDriver()
	c := New(ModeSTA, RadioConfig{SSID: "audiocast"}, 8, d)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := c.AwaitReady(ctx); err == nil {
		t.Error("cancelled context should surface an error")
	}
}

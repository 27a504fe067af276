// ABOUTME: Host driver assuming the OS already manages the radio
// ABOUTME: Reports local identity and immediate association events
package wifi

import (
	"context"
	"fmt"
	"net"
)

// HostDriver satisfies Driver on hosts whose operating system owns
// the WiFi link. It discovers the local MAC and IPv4 address from the
// first usable interface and replays the association handshake the
// state machine expects.
type HostDriver struct {
	mac    [6]byte
	ip     [4]byte
	events chan Event
}

// NewHostDriver returns an unstarted host driver.
func NewHostDriver() *HostDriver {
	return &HostDriver{}
}

// Start discovers the local identity and, in STA mode, emits
// EventStationStart.
func (d *HostDriver) Start(ctx context.Context, mode Mode, cfg RadioConfig) (<-chan Event, error) {
	if err := d.discover(); err != nil {
		return nil, err
	}
	d.events = make(chan Event, 4)
	if mode == ModeSTA {
		d.events <- Event{Kind: EventStationStart}
	}
	return d.events, nil
}

// Connect reports the already-assigned address.
func (d *HostDriver) Connect() error {
	d.events <- Event{Kind: EventGotIP, IP: d.ip}
	return nil
}

// MAC returns the discovered hardware address.
func (d *HostDriver) MAC() [6]byte { return d.mac }

// Close releases the event channel.
func (d *HostDriver) Close() error {
	if d.events != nil {
		close(d.events)
		d.events = nil
	}
	return nil
}

func (d *HostDriver) discover() error {
	ifaces, err := net.Interfaces()
	if err != nil {
		return fmt.Errorf("list interfaces: %w", err)
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		if len(iface.HardwareAddr) != 6 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipnet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			if v4 := ipnet.IP.To4(); v4 != nil {
				copy(d.mac[:], iface.HardwareAddr)
				copy(d.ip[:], v4)
				return nil
			}
		}
	}
	return fmt.Errorf("wifi: no usable network interface found")
}

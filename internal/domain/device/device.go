// ABOUTME: Peer record and MAC-keyed registry of connected receivers
// ABOUTME: The accept side mutates the registry; handlers share records
package device

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
)

// Device is one peer. The MAC is the stable identity; the address and
// connection change across reconnects. Handlers hold a shared pointer
// and touch only the atomic flags and, through the locked accessors,
// the connection.
type Device struct {
	MAC [6]byte
	IP  [4]byte

	NetworkConnected atomic.Bool
	SocketConnected  atomic.Bool

	mu   sync.Mutex
	conn net.Conn
}

// SetConn adopts a new connection, closing any prior one so a stale
// handler cannot shadow the fresh socket after a reconnect.
func (d *Device) SetConn(conn net.Conn) {
	d.mu.Lock()
	if d.conn != nil && d.conn != conn {
		d.conn.Close()
	}
	d.conn = conn
	d.mu.Unlock()
}

// Conn returns the current connection, which may be nil.
func (d *Device) Conn() net.Conn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conn
}

// CloseConn drops the socket and clears the connected flag.
func (d *Device) CloseConn() {
	d.mu.Lock()
	if d.conn != nil {
		d.conn.Close()
		d.conn = nil
	}
	d.mu.Unlock()
	d.SocketConnected.Store(false)
}

// ReleaseConn closes conn and, only when the record still holds that
// same connection, clears it and drops the flag. A handler whose
// socket was superseded by a reconnect must not tear down the state
// the new handler is using.
func (d *Device) ReleaseConn(conn net.Conn) {
	d.mu.Lock()
	owner := d.conn == conn
	if owner {
		d.conn = nil
	}
	d.mu.Unlock()
	conn.Close()
	if owner {
		d.SocketConnected.Store(false)
	}
}

// MACString formats the MAC the way it appears in logs.
func (d *Device) MACString() string { return MACString(d.MAC) }

// IPString formats the IPv4 address.
func (d *Device) IPString() string { return IPString(d.IP) }

// MACString formats a MAC address as colon-separated hex.
func MACString(mac [6]byte) string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x",
		mac[0], mac[1], mac[2], mac[3], mac[4], mac[5])
}

// IPString formats an IPv4 address as dotted decimal.
func IPString(ip [4]byte) string {
	return fmt.Sprintf("%d.%d.%d.%d", ip[0], ip[1], ip[2], ip[3])
}

// Registry is an ordered table of peers with unique MACs. Only the
// accept goroutine mutates it.
type Registry struct {
	mu      sync.Mutex
	devices []*Device
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// FindByMAC returns the peer with a byte-equal MAC, or nil.
func (r *Registry) FindByMAC(mac [6]byte) *Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.devices {
		if d.MAC == mac {
			return d
		}
	}
	return nil
}

// Insert appends a peer to the registry.
func (r *Registry) Insert(d *Device) {
	r.mu.Lock()
	r.devices = append(r.devices, d)
	r.mu.Unlock()
}

// PurgeDisconnected removes every peer whose socket flag is down,
// preserving insertion order, and returns the number removed.
func (r *Registry) PurgeDisconnected() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.devices[:0]
	purged := 0
	for _, d := range r.devices {
		if d.SocketConnected.Load() {
			kept = append(kept, d)
		} else {
			purged++
		}
	}
	for i := len(kept); i < len(r.devices); i++ {
		r.devices[i] = nil
	}
	r.devices = kept
	return purged
}

// Len returns the number of registered peers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.devices)
}

// Snapshot returns the peers in registration order.
func (r *Registry) Snapshot() []*Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Device, len(r.devices))
	copy(out, r.devices)
	return out
}

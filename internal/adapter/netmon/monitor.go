// Package netmon watches the host's network interfaces and reports the
// active path to the connection classifier.
package netmon

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/adcontext-bridge/internal/connection"
)

// DefaultInterval is the polling period when none is configured.
const DefaultInterval = 5 * time.Second

// Iface is the part of a network interface the monitor looks at.
type Iface struct {
	Name     string
	Up       bool
	Loopback bool
	HasAddr  bool
}

// ListFunc enumerates interfaces.
type ListFunc func() ([]Iface, error)

// PathObserver receives path changes. *connection.Classifier implements it.
type PathObserver interface {
	OnPathChange(connection.PathChange)
}

// RadioSource names the radio technology used when a cellular interface is
// active.
type RadioSource interface {
	Radio() string
}

// Options configures a Monitor.
type Options struct {
	Interval time.Duration
	Clock    clockwork.Clock
	List     ListFunc // defaults to HostInterfaces
}

// Monitor polls interfaces and forwards each observation.
type Monitor struct {
	observer PathObserver
	radio    RadioSource
	interval time.Duration
	clock    clockwork.Clock
	list     ListFunc
	logger   *slog.Logger
}

// New creates a Monitor. radio may be nil.
func New(observer PathObserver, radio RadioSource, opts Options, logger *slog.Logger) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.List == nil {
		opts.List = HostInterfaces
	}
	return &Monitor{
		observer: observer,
		radio:    radio,
		interval: opts.Interval,
		clock:    opts.Clock,
		list:     opts.List,
		logger:   logger,
	}
}

// Run polls once immediately and then every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	m.Poll()

	ticker := m.clock.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			m.Poll()
		}
	}
}

// Poll takes one observation. Listing errors are logged and skipped so the
// classifier keeps its previous value.
func (m *Monitor) Poll() {
	ifaces, err := m.list()
	if err != nil {
		m.logger.Warn("list network interfaces failed", "error", err)
		return
	}
	var radio string
	if m.radio != nil {
		radio = m.radio.Radio()
	}
	m.observer.OnPathChange(Observe(ifaces, radio))
}

// Observe turns an interface list into a path change. Down, loopback, and
// unaddressed interfaces are ignored.
func Observe(ifaces []Iface, radio string) connection.PathChange {
	var uses []connection.Interface
	for _, i := range ifaces {
		if !i.Up || i.Loopback || !i.HasAddr {
			continue
		}
		if kind, ok := Kind(i.Name); ok {
			uses = append(uses, kind)
		}
	}
	return connection.NewPathChange(radio, uses...)
}

var (
	wifiPrefixes     = []string{"wl", "wifi", "ath", "ra"}
	cellularPrefixes = []string{"wwan", "rmnet", "ccmni", "pdp_ip", "usb"}
	wiredPrefixes    = []string{"eth", "en", "em"}
)

// Kind guesses the link type from an interface name.
func Kind(name string) (connection.Interface, bool) {
	n := strings.ToLower(name)
	switch {
	case hasAnyPrefix(n, wifiPrefixes):
		return connection.InterfaceWiFi, true
	case hasAnyPrefix(n, cellularPrefixes):
		return connection.InterfaceCellular, true
	case hasAnyPrefix(n, wiredPrefixes):
		return connection.InterfaceWired, true
	default:
		return 0, false
	}
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// HostInterfaces lists the host's interfaces with net.Interfaces.
func HostInterfaces() ([]Iface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("net interfaces: %w", err)
	}
	out := make([]Iface, 0, len(ifaces))
	for _, i := range ifaces {
		addrs, err := i.Addrs()
		out = append(out, Iface{
			Name:     i.Name,
			Up:       i.Flags&net.FlagUp != 0,
			Loopback: i.Flags&net.FlagLoopback != 0,
			HasAddr:  err == nil && len(addrs) > 0,
		})
	}
	return out, nil
}

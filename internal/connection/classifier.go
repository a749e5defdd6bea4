// Package connection classifies the active network path into the
// ConnectionType values reported in the device payload.
package connection

import (
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/couchcryptid/adcontext-bridge/internal/domain"
)

// Interface is a link type a network path can use.
type Interface int

const (
	InterfaceWiFi Interface = iota
	InterfaceCellular
	InterfaceWired
)

// PathChange is one observation from the network path monitor.
type PathChange struct {
	Uses  map[Interface]bool
	Radio string // radio access technology identifier, may be empty
}

// NewPathChange builds a PathChange using the given interfaces.
func NewPathChange(radio string, ifaces ...Interface) PathChange {
	uses := make(map[Interface]bool, len(ifaces))
	for _, i := range ifaces {
		uses[i] = true
	}
	return PathChange{Uses: uses, Radio: radio}
}

// radioPrefix is stripped from radio identifiers before lookup.
const radioPrefix = "CTRadioAccessTechnology"

var radioGenerations = map[string]domain.ConnectionType{
	"GPRS":         domain.ConnectionCell2G,
	"Edge":         domain.ConnectionCell2G,
	"WCDMA":        domain.ConnectionCell3G,
	"HSDPA":        domain.ConnectionCell3G,
	"HSUPA":        domain.ConnectionCell3G,
	"CDMA1x":       domain.ConnectionCell3G,
	"CDMAEVDORev0": domain.ConnectionCell3G,
	"CDMAEVDORevA": domain.ConnectionCell3G,
	"CDMAEVDORevB": domain.ConnectionCell3G,
	"LTE":          domain.ConnectionCell4G,
	"NRNSA":        domain.ConnectionCell4G,
	"NR":           domain.ConnectionCell4G,
}

// ClassifyRadio maps a radio access technology identifier to a cellular
// generation. Unknown or empty identifiers yield ConnectionCellUnknown.
func ClassifyRadio(radio string) domain.ConnectionType {
	if g, ok := radioGenerations[strings.TrimPrefix(radio, radioPrefix)]; ok {
		return g
	}
	return domain.ConnectionCellUnknown
}

// Classify applies the path rules in fixed order: wifi, cellular, wired.
func Classify(p PathChange) domain.ConnectionType {
	switch {
	case p.Uses[InterfaceWiFi]:
		return domain.ConnectionWiFi
	case p.Uses[InterfaceCellular]:
		return ClassifyRadio(p.Radio)
	case p.Uses[InterfaceWired]:
		return domain.ConnectionEthernet
	default:
		return domain.ConnectionUnknown
	}
}

// ObserveFunc is notified when the classification changes.
type ObserveFunc func(domain.ConnectionType)

// Classifier holds the latest connection type. Current is safe to call from
// any goroutine while path changes are being applied.
type Classifier struct {
	current atomic.Int64
	logger  *slog.Logger
	observe ObserveFunc
}

// NewClassifier returns a classifier reporting ConnectionUnknown until the
// first path change arrives. observe may be nil.
func NewClassifier(logger *slog.Logger, observe ObserveFunc) *Classifier {
	return &Classifier{logger: logger, observe: observe}
}

// Current returns the most recent classification.
func (c *Classifier) Current() domain.ConnectionType {
	return domain.ConnectionType(c.current.Load())
}

// OnPathChange recomputes the classification for a new path.
func (c *Classifier) OnPathChange(p PathChange) {
	next := Classify(p)
	prev := domain.ConnectionType(c.current.Swap(int64(next)))
	if prev == next {
		return
	}
	c.logger.Debug("connection type changed", "from", prev.String(), "to", next.String())
	if c.observe != nil {
		c.observe(next)
	}
}

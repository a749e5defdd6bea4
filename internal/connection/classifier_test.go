package connection

import (
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/couchcryptid/adcontext-bridge/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClassifyRadio(t *testing.T) {
	tests := []struct {
		radio    string
		expected domain.ConnectionType
	}{
		{"CTRadioAccessTechnologyGPRS", domain.ConnectionCell2G},
		{"CTRadioAccessTechnologyEdge", domain.ConnectionCell2G},
		{"CTRadioAccessTechnologyWCDMA", domain.ConnectionCell3G},
		{"CTRadioAccessTechnologyHSDPA", domain.ConnectionCell3G},
		{"CTRadioAccessTechnologyHSUPA", domain.ConnectionCell3G},
		{"CTRadioAccessTechnologyCDMA1x", domain.ConnectionCell3G},
		{"CTRadioAccessTechnologyCDMAEVDORev0", domain.ConnectionCell3G},
		{"CTRadioAccessTechnologyCDMAEVDORevA", domain.ConnectionCell3G},
		{"CTRadioAccessTechnologyCDMAEVDORevB", domain.ConnectionCell3G},
		{"CTRadioAccessTechnologyLTE", domain.ConnectionCell4G},
		{"CTRadioAccessTechnologyNRNSA", domain.ConnectionCell4G},
		{"CTRadioAccessTechnologyNR", domain.ConnectionCell4G},
		{"LTE", domain.ConnectionCell4G},
		{"CTRadioAccessTechnologyeHRPD", domain.ConnectionCellUnknown},
		{"", domain.ConnectionCellUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.radio, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClassifyRadio(tt.radio))
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		path     PathChange
		expected domain.ConnectionType
	}{
		{"wifi", NewPathChange("", InterfaceWiFi), domain.ConnectionWiFi},
		{"wifi wins over cellular", NewPathChange("CTRadioAccessTechnologyLTE", InterfaceCellular, InterfaceWiFi), domain.ConnectionWiFi},
		{"cellular lte", NewPathChange("CTRadioAccessTechnologyLTE", InterfaceCellular), domain.ConnectionCell4G},
		{"cellular without radio", NewPathChange("", InterfaceCellular), domain.ConnectionCellUnknown},
		{"cellular wins over wired", NewPathChange("CTRadioAccessTechnologyEdge", InterfaceWired, InterfaceCellular), domain.ConnectionCell2G},
		{"wired", NewPathChange("", InterfaceWired), domain.ConnectionEthernet},
		{"nothing", NewPathChange(""), domain.ConnectionUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.path))
		})
	}
}

func TestClassifierNeverEmits5G(t *testing.T) {
	c := NewClassifier(discardLogger(), nil)
	c.OnPathChange(NewPathChange("CTRadioAccessTechnologyNR", InterfaceCellular))
	assert.Equal(t, domain.ConnectionCell4G, c.Current())
}

func TestClassifierObservesChangesOnly(t *testing.T) {
	var seen []domain.ConnectionType
	c := NewClassifier(discardLogger(), func(ct domain.ConnectionType) { seen = append(seen, ct) })

	assert.Equal(t, domain.ConnectionUnknown, c.Current())

	c.OnPathChange(NewPathChange("", InterfaceWiFi))
	c.OnPathChange(NewPathChange("", InterfaceWiFi))
	c.OnPathChange(NewPathChange("CTRadioAccessTechnologyWCDMA", InterfaceCellular))

	assert.Equal(t, domain.ConnectionCell3G, c.Current())
	assert.Equal(t, []domain.ConnectionType{domain.ConnectionWiFi, domain.ConnectionCell3G}, seen)
}

func TestClassifierConcurrentReads(t *testing.T) {
	c := NewClassifier(discardLogger(), nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				c.OnPathChange(NewPathChange("", InterfaceWired))
				return
			}
			ct := c.Current()
			assert.Contains(t, []domain.ConnectionType{domain.ConnectionUnknown, domain.ConnectionEthernet}, ct)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, domain.ConnectionEthernet, c.Current())
}

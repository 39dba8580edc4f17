package driver

import (
	"fmt"
	"sort"
	"sync"

	"gitlab.com/d21d3q/gometers/internal/frame"
	"gitlab.com/d21d3q/gometers/internal/meter"
)

// Detection describes the telegrams a driver recognises on its own. Empty
// CI or device type lists accept any value; a zero manufacturer accepts any
// manufacturer.
type Detection struct {
	Manufacturer uint16
	CIs          []byte
	DeviceTypes  []byte
}

// Factory creates a meter instance from its configuration.
type Factory func(meter.Config) (meter.Meter, error)

var (
	regMu    sync.RWMutex
	registry = map[string]registeredDriver{}
)

type registeredDriver struct {
	detect  Detection
	factory Factory
}

// Register stores a driver under name. Registering a name twice panics.
func Register(name string, det Detection, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("driver %s registered twice", name))
	}
	registry[name] = registeredDriver{detect: det, factory: f}
}

// New creates a meter using the driver named in cfg.
func New(cfg meter.Config) (meter.Meter, error) {
	regMu.RLock()
	rd, ok := registry[cfg.Driver]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("driver %q not found", cfg.Driver)
	}
	return rd.factory(cfg)
}

// Known reports whether a driver called name is registered.
func Known(name string) bool {
	regMu.RLock()
	defer regMu.RUnlock()
	_, ok := registry[name]
	return ok
}

// Names returns the registered driver names in order.
func Names() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the first driver, by name, whose detection accepts t.
// Drivers with an empty detection are never chosen automatically.
func Lookup(t *frame.Telegram) (string, error) {
	for _, name := range Names() {
		regMu.RLock()
		det := registry[name].detect
		regMu.RUnlock()
		if det.accepts(t) {
			return name, nil
		}
	}
	return "", fmt.Errorf("driver not found for manufacturer 0x%04X CI 0x%02X type 0x%02X", t.Manufacturer, t.CI, t.DeviceType)
}

func (d Detection) accepts(t *frame.Telegram) bool {
	if d.Manufacturer == 0 && len(d.CIs) == 0 && len(d.DeviceTypes) == 0 {
		return false
	}
	if d.Manufacturer != 0 && d.Manufacturer != t.Manufacturer {
		return false
	}
	return contains(d.CIs, t.CI) && contains(d.DeviceTypes, t.DeviceType)
}

func contains(set []byte, b byte) bool {
	if len(set) == 0 {
		return true
	}
	for _, v := range set {
		if v == b {
			return true
		}
	}
	return false
}

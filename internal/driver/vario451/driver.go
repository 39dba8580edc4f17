// Package vario451 decodes the Techem Vario 4 Typ 4.5.1 heat meter. Its
// CI 0xA2 telegrams carry a manufacturer specific payload, so the energy
// counters are read from fixed offsets instead of DIF/VIF records.
package vario451

import (
	"github.com/juju/errors"

	"gitlab.com/d21d3q/gometers/internal/crypto"
	"gitlab.com/d21d3q/gometers/internal/driver"
	"gitlab.com/d21d3q/gometers/internal/frame"
	"gitlab.com/d21d3q/gometers/internal/meter"
	"gitlab.com/d21d3q/gometers/internal/records"
	"gitlab.com/d21d3q/gometers/internal/units"
)

const (
	Name = "vario451"

	// Techem manufacturer id (TCH).
	manufacturerTCH = 0x5068

	previousOffset = 3
	currentOffset  = 7
	minContent     = currentOffset + 2

	// Key of the synthetic audit records: 16 bit binary energy value.
	binaryKey = "0215"
)

// C telegrams use device type 0x04, T telegrams 0xC3.
var deviceTypes = []byte{0x04, 0xC3}

func init() {
	driver.Register(Name, driver.Detection{
		Manufacturer: manufacturerTCH,
		CIs:          []byte{0xA2},
		DeviceTypes:  deviceTypes,
	}, New)
}

// Meter is a configured Vario 451 instance.
type Meter struct {
	*meter.Common
}

var _ meter.Meter = (*Meter)(nil)

// New creates a vario451 meter from cfg.
func New(cfg meter.Config) (meter.Meter, error) {
	common, err := meter.NewCommon(cfg, meter.Info{
		Driver:       Name,
		Media:        "heat",
		Mode:         crypto.CTR,
		Manufacturer: manufacturerTCH,
		DeviceTypes:  deviceTypes,
	})
	if err != nil {
		return nil, err
	}
	return &Meter{Common: common}, nil
}

// Handle runs one decode cycle for t.
func (m *Meter) Handle(t *frame.Telegram) (meter.Outcome, error) {
	return m.Process(t, Decoder{})
}

// Decoder reads the billing period counters.
type Decoder struct{}

// DecodeContent reads the previous and current billing period energy, both
// little endian in 1/1000 GJ. The total is their sum.
func (Decoder) DecodeContent(t *frame.Telegram, audit frame.AuditSink) (*meter.Decoded, error) {
	c := t.Content
	if len(c) < minContent {
		return nil, errors.NotValidf("content of %d bytes", len(c))
	}
	d := meter.NewDecoded()
	prev := counter(t, audit, d, previousOffset, "previous")
	curr := counter(t, audit, d, currentOffset, "current")

	d.Add(meter.QuantityPrint("total", "The total energy consumption recorded by this meter.",
		prev+curr, units.GJ, units.KWH).WithJSON())
	d.Add(meter.QuantityPrint("current", "Energy consumption so far in this billing period.",
		curr, units.GJ, units.KWH).WithJSON())
	d.Add(meter.QuantityPrint("previous", "Energy consumption in previous billing period.",
		prev, units.GJ, units.KWH).WithJSON())
	return d, nil
}

func counter(t *frame.Telegram, audit frame.AuditSink, d *meter.Decoded, at int, period string) float64 {
	lo, hi := t.Content[at], t.Content[at+1]
	gj := (256*float64(hi) + float64(lo)) / 1000

	offset := len(t.Parsed) + at
	key := audit.AddRecord(offset, records.Record{
		Key:  binaryKey,
		DIF:  0x02,
		VIF:  0x15,
		Data: []byte{lo, hi},
	})
	audit.Explain(offset, "%02x%02x", lo, hi)
	audit.Explain(offset, " energy used in %s billing period (%f GJ)", period, gj)
	d.Set(key, meter.Number(gj))
	return gj
}

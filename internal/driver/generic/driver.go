// Package generic decodes any meter that sends self-describing DIF/VIF
// records. Every decodable record becomes one print named after its key.
package generic

import (
	"github.com/juju/errors"

	"gitlab.com/d21d3q/gometers/internal/crypto"
	"gitlab.com/d21d3q/gometers/internal/driver"
	"gitlab.com/d21d3q/gometers/internal/driver/wmbus"
	"gitlab.com/d21d3q/gometers/internal/frame"
	"gitlab.com/d21d3q/gometers/internal/meter"
	"gitlab.com/d21d3q/gometers/internal/records"
)

const Name = "generic"

func init() {
	driver.Register(Name, driver.Detection{}, New)
}

// Meter is a meter instance using the record-driven decoder.
type Meter struct {
	*meter.Common
}

var _ meter.Meter = (*Meter)(nil)

// New creates a generic meter from cfg.
func New(cfg meter.Config) (meter.Meter, error) {
	common, err := meter.NewCommon(cfg, meter.Info{
		Driver:  Name,
		Mode:    crypto.Auto,
		Records: true,
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

// Decoder turns the record map of a telegram into prints.
type Decoder struct{}

// DecodeContent visits records in key order. A record yields a number when
// its VIF has a known scale, text otherwise, and is skipped with a warning
// when it carries no data at all.
func (Decoder) DecodeContent(t *frame.Telegram, _ frame.AuditSink) (*meter.Decoded, error) {
	d := meter.NewDecoded()
	for _, key := range records.SortedKeys(t.Records) {
		rec := t.Records[key].Record
		if v, ok := wmbus.Number(rec); ok {
			d.Add(meter.NumberPrint(key, key, v))
			d.Set(key, meter.Number(v))
			continue
		}
		if s, ok := wmbus.Text(rec); ok {
			d.Add(meter.TextPrint(key, key, s))
			d.Set(key, meter.Text(s))
			continue
		}
		d.Warn(errors.NotSupportedf("decoding record %s", key))
	}
	return d, nil
}

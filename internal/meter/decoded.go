package meter

import (
	"github.com/juju/errors"
)

// Decoded is what a content decoder produces for one telegram. It is only
// made visible to renderers once the whole cycle succeeded.
type Decoded struct {
	Prints   []Print
	Values   Values
	Warnings []error

	names map[string]struct{}
}

// NewDecoded returns an empty decode result.
func NewDecoded() *Decoded {
	return &Decoded{
		Values: Values{},
		names:  map[string]struct{}{},
	}
}

// Add registers p after the prints added so far. A second print with the
// same name is dropped with a warning.
func (d *Decoded) Add(p Print) bool {
	if _, dup := d.names[p.Name]; dup {
		d.Warn(errors.AlreadyExistsf("print %s", p.Name))
		return false
	}
	d.names[p.Name] = struct{}{}
	d.Prints = append(d.Prints, p)
	return true
}

// Set stores the value decoded for record key.
func (d *Decoded) Set(key string, v Value) {
	d.Values[key] = v
}

// Warn records a non-fatal diagnostic.
func (d *Decoded) Warn(err error) {
	d.Warnings = append(d.Warnings, err)
}

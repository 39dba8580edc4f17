package meter

import (
	"fmt"

	"gitlab.com/d21d3q/gometers/internal/units"
)

// Print is one named output slot. The accessor is built from a decoded value
// when the Print is constructed, so it stays valid after decoding returns.
type Print struct {
	Name     string
	Quantity units.Quantity
	Unit     units.Unit
	Help     string
	// Field includes the print in human-readable, fields and env output.
	Field bool
	// JSON includes the print in the driver's JSON object.
	JSON bool

	number func(units.Unit) (float64, error)
	text   func() string
}

// NumberPrint returns a print whose accessor yields v for any requested unit.
// It is used for values without an intrinsic unit.
func NumberPrint(name, help string, v float64) Print {
	return Print{
		Name:     name,
		Quantity: units.Other,
		Unit:     units.Number,
		Help:     help,
		Field:    true,
		number:   func(units.Unit) (float64, error) { return v, nil },
	}
}

// TextPrint returns a print whose accessor yields s.
func TextPrint(name, help, s string) Print {
	return Print{
		Name:     name,
		Quantity: units.Text,
		Unit:     units.TXT,
		Help:     help,
		Field:    true,
		text:     func() string { return s },
	}
}

// QuantityPrint returns a print for v measured in native. The accessor
// converts to the requested unit and fails for units of another quantity.
func QuantityPrint(name, help string, v float64, native, def units.Unit) Print {
	q := native.Quantity()
	return Print{
		Name:     name,
		Quantity: q,
		Unit:     def,
		Help:     help,
		Field:    true,
		number: func(u units.Unit) (float64, error) {
			if err := units.Assert(u, q); err != nil {
				return 0, err
			}
			return units.Convert(v, native, u)
		},
	}
}

// WithJSON marks p for the driver's JSON object.
func (p Print) WithJSON() Print {
	p.JSON = true
	return p
}

// Textual reports whether p holds text rather than a number.
func (p Print) Textual() bool {
	return p.text != nil
}

// Number evaluates a numeric print in unit u.
func (p Print) Number(u units.Unit) (float64, error) {
	if p.number == nil {
		return 0, fmt.Errorf("print %s is not numeric", p.Name)
	}
	return p.number(u)
}

// Text evaluates a textual print.
func (p Print) Text() (string, error) {
	if p.text == nil {
		return "", fmt.Errorf("print %s is not textual", p.Name)
	}
	return p.text(), nil
}

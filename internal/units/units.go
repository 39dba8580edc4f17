// Package units holds the quantity classes and unit conversions used when
// printing meter values.
package units

import (
	"errors"
	"fmt"
	"strings"
)

// Quantity is the physical class of a value. Conversions never cross
// quantities.
type Quantity int

const (
	Other Quantity = iota
	Text
	Energy
	Volume
	Power
	Flow
	Temperature
)

func (q Quantity) String() string {
	switch q {
	case Other:
		return "other"
	case Text:
		return "text"
	case Energy:
		return "energy"
	case Volume:
		return "volume"
	case Power:
		return "power"
	case Flow:
		return "flow"
	case Temperature:
		return "temperature"
	default:
		return fmt.Sprintf("quantity(%d)", int(q))
	}
}

// Unit is a concrete unit belonging to one Quantity.
type Unit int

const (
	Unknown Unit = iota
	Number
	TXT
	KWH
	MJ
	GJ
	M3
	L
	KW
	M3H
	C
	K
	F
)

var ErrQuantityMismatch = errors.New("unit quantity mismatch")

type unitDef struct {
	quantity Quantity
	hr       string
	upper    string
	// factor to the quantity's reference unit, offset applied after scaling
	factor float64
	offset float64
}

var defs = map[Unit]unitDef{
	Number: {Other, "", "NUMBER", 1, 0},
	TXT:    {Text, "", "TXT", 1, 0},
	KWH:    {Energy, "kWh", "KWH", 1, 0},
	MJ:     {Energy, "MJ", "MJ", 1 / 3.6, 0},
	GJ:     {Energy, "GJ", "GJ", 1000 / 3.6, 0},
	M3:     {Volume, "m3", "M3", 1, 0},
	L:      {Volume, "l", "L", 0.001, 0},
	KW:     {Power, "kW", "KW", 1, 0},
	M3H:    {Flow, "m3/h", "M3H", 1, 0},
	C:      {Temperature, "°C", "C", 1, 0},
	K:      {Temperature, "K", "K", 1, -273.15},
	F:      {Temperature, "°F", "F", 5.0 / 9.0, -32 * 5.0 / 9.0},
}

// Quantity returns the quantity u belongs to.
func (u Unit) Quantity() Quantity {
	return defs[u].quantity
}

// HR is the human-readable suffix, e.g. "kWh".
func (u Unit) HR() string {
	if d, ok := defs[u]; ok {
		return d.hr
	}
	return "?"
}

// Upper is the upper-case name used in environment variable names.
func (u Unit) Upper() string {
	if d, ok := defs[u]; ok {
		return d.upper
	}
	return "UNKNOWN"
}

// Lower is the lower-case name used as JSON key suffix.
func (u Unit) Lower() string {
	return strings.ToLower(u.Upper())
}

func (u Unit) String() string {
	return u.Upper()
}

// Parse resolves a unit by its upper-case name, case-insensitively.
func Parse(name string) (Unit, error) {
	want := strings.ToUpper(strings.TrimSpace(name))
	for u, d := range defs {
		if d.upper == want {
			return u, nil
		}
	}
	return Unknown, fmt.Errorf("unknown unit %q", name)
}

// Assert fails unless u belongs to q.
func Assert(u Unit, q Quantity) error {
	if _, ok := defs[u]; !ok || u.Quantity() != q {
		return fmt.Errorf("%w: %s is not a %s unit", ErrQuantityMismatch, u, q)
	}
	return nil
}

// Convert converts v from one unit to another of the same quantity.
func Convert(v float64, from, to Unit) (float64, error) {
	fd, ok := defs[from]
	if !ok {
		return 0, fmt.Errorf("%w: unknown source unit %d", ErrQuantityMismatch, int(from))
	}
	td, ok := defs[to]
	if !ok || fd.quantity != td.quantity {
		return 0, fmt.Errorf("%w: cannot convert %s to %s", ErrQuantityMismatch, from, to)
	}
	if from == to {
		return v, nil
	}
	ref := v*fd.factor + fd.offset
	return (ref - td.offset) / td.factor, nil
}

// Replace picks the conversion unit in overrides that shares def's
// quantity, or def when there is none.
func Replace(def Unit, overrides []Unit) Unit {
	for _, u := range overrides {
		if u.Quantity() == def.Quantity() {
			return u
		}
	}
	return def
}

package wmbus

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"gitlab.com/d21d3q/gometers/internal/records"
)

const (
	DateTimeFormat = "2006-01-02 15:04"
	DateFormat     = "2006-01-02"
)

// LengthForDIF returns the data length encoded in the lower nibble of the DIF
// byte. The boolean indicates whether the DIF value has a fixed length.
func LengthForDIF(dif byte) (int, bool) {
	switch dif & 0x0F {
	case 0x00, 0x08:
		return 0, true
	case 0x01, 0x09:
		return 1, true
	case 0x02, 0x0A:
		return 2, true
	case 0x03, 0x0B:
		return 3, true
	case 0x04, 0x05, 0x0C:
		return 4, true
	case 0x06, 0x0E:
		return 6, true
	case 0x07:
		return 8, true
	default:
		return 0, false
	}
}

// DecodeBCDLittleEndian converts a BCD payload (little endian nibble order) to
// an integer. A most significant nibble of F marks a negative value.
func DecodeBCDLittleEndian(b []byte) (int64, error) {
	var value int64
	var multiplier int64 = 1
	negative := false
	for idx, by := range b {
		low := int64(by & 0x0F)
		high := int64((by >> 4) & 0x0F)
		if idx == len(b)-1 && high == 0x0F {
			negative = true
			high = 0
		}
		if low > 9 || high > 9 {
			return 0, fmt.Errorf("invalid BCD byte: 0x%02X", by)
		}
		value += low * multiplier
		multiplier *= 10
		value += high * multiplier
		multiplier *= 10
	}
	if negative {
		value = -value
	}
	return value, nil
}

// DecodeSigned interprets b as a little endian two's complement integer.
func DecodeSigned(b []byte) (int64, error) {
	if len(b) == 0 || len(b) > 8 {
		return 0, fmt.Errorf("signed integer requires 1..8 bytes, got %d", len(b))
	}
	var u uint64
	for i := len(b) - 1; i >= 0; i-- {
		u = u<<8 | uint64(b[i])
	}
	bits := uint(len(b) * 8)
	if bits < 64 && u&(1<<(bits-1)) != 0 {
		u |= ^uint64(0) << bits
	}
	return int64(u), nil
}

// DecodeTypeFDateTime decodes the four-byte Type F timestamp used by many
// Wireless M-Bus meters.
func DecodeTypeFDateTime(b []byte) (time.Time, error) {
	if len(b) != 4 {
		return time.Time{}, fmt.Errorf("type F datetime requires 4 bytes, got %d", len(b))
	}
	minute := int(b[0] & 0x3F)
	hour := int(b[1] & 0x1F)
	day := int(b[2] & 0x1F)
	month := int(b[3] & 0x0F)
	yearBitsHigh := (b[3] >> 4) & 0x0F
	yearBitsLow := (b[2] >> 5) & 0x07
	year := 2000 + int(yearBitsHigh<<3|yearBitsLow)
	if minute > 59 || hour > 23 || day == 0 || day > 31 || month == 0 || month > 12 {
		return time.Time{}, fmt.Errorf("invalid type F datetime encoding: %02X%02X%02X%02X", b[0], b[1], b[2], b[3])
	}
	return time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.UTC), nil
}

// DecodeTypeGDate decodes the two-byte Type G date.
func DecodeTypeGDate(b []byte) (time.Time, error) {
	if len(b) != 2 {
		return time.Time{}, fmt.Errorf("type G date requires 2 bytes, got %d", len(b))
	}
	day := int(b[0] & 0x1F)
	month := int(b[1] & 0x0F)
	year := 2000 + int((b[0]&0xE0)>>5|(b[1]&0xF0)>>1)
	if day == 0 || day > 31 || month == 0 || month > 12 {
		return time.Time{}, fmt.Errorf("invalid type G date encoding: %02X%02X", b[0], b[1])
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), nil
}

// Number returns the numeric value of rec divided by the scale its VIF
// implies. It fails for records without data, with a VIF that carries no
// numeric scale, or with an undecodable data field.
func Number(rec records.Record) (float64, bool) {
	if len(rec.Data) == 0 || rec.ASCII || rec.Extended() {
		return 0, false
	}
	scale, ok := vifScale(rec.VIF)
	if !ok {
		return 0, false
	}
	raw, ok := rawNumber(rec)
	if !ok {
		return 0, false
	}
	return raw / scale, true
}

func rawNumber(rec records.Record) (float64, bool) {
	switch rec.DataField() {
	case 0x01, 0x02, 0x03, 0x04, 0x06, 0x07:
		v, err := DecodeSigned(rec.Data)
		if err != nil {
			return 0, false
		}
		return float64(v), true
	case 0x05:
		if len(rec.Data) != 4 {
			return 0, false
		}
		f := float64(math.Float32frombits(binary.LittleEndian.Uint32(rec.Data)))
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	case 0x09, 0x0A, 0x0B, 0x0C, 0x0E:
		v, err := DecodeBCDLittleEndian(rec.Data)
		if err != nil {
			return 0, false
		}
		return float64(v), true
	default:
		return 0, false
	}
}

// Text returns a textual rendering of rec: dates for date VIFs, the string
// for ASCII records and the raw hex otherwise. Plain text VIF records append
// their unit to the hex. Records without data have no textual form.
func Text(rec records.Record) (string, bool) {
	if len(rec.Data) == 0 {
		return "", false
	}
	if rec.Unit != "" {
		return rec.Hex() + " " + rec.Unit, true
	}
	if rec.ASCII {
		// Variable length strings are transmitted last character first.
		out := make([]byte, len(rec.Data))
		for i, c := range rec.Data {
			out[len(rec.Data)-1-i] = c
		}
		return string(out), true
	}
	if !rec.Extended() {
		switch rec.VIF {
		case 0x6D:
			if ts, err := DecodeTypeFDateTime(rec.Data); err == nil {
				return ts.Format(DateTimeFormat), true
			}
		case 0x6C:
			if d, err := DecodeTypeGDate(rec.Data); err == nil {
				return d.Format(DateFormat), true
			}
		}
	}
	return rec.Hex(), true
}

// vifScale returns the divisor that brings the raw value of a primary VIF
// into its reference unit: kWh, MJ, m3, kg, kW, MJ/h, m3/h, kg/h, C, K, bar.
func vifScale(vif byte) (float64, bool) {
	n := int(vif & 0x07)
	switch {
	case vif <= 0x07: // energy Wh
		return math.Pow10(6 - n), true
	case vif <= 0x0F: // energy J
		return math.Pow10(6 - n), true
	case vif <= 0x17: // volume cm3 * 10^n
		return math.Pow10(6 - n), true
	case vif <= 0x1F: // mass g
		return math.Pow10(3 - n), true
	case vif <= 0x27: // on time, operating time
		return 1, true
	case vif <= 0x2F: // power W
		return math.Pow10(6 - n), true
	case vif <= 0x37: // power J/h
		return math.Pow10(6 - n), true
	case vif <= 0x3F: // volume flow m3/h
		return math.Pow10(6 - n), true
	case vif <= 0x47: // volume flow m3/min
		return math.Pow10(7 - n), true
	case vif <= 0x4F: // volume flow m3/s
		return math.Pow10(9 - n), true
	case vif <= 0x57: // mass flow kg/h
		return math.Pow10(3 - n), true
	case vif <= 0x6B: // temperatures, temperature difference, pressure
		return math.Pow10(3 - int(vif&0x03)), true
	case vif == 0x6E: // heat cost allocation units
		return 1, true
	case vif >= 0x70 && vif <= 0x7B: // durations, fabrication number, identification, address
		return 1, true
	default:
		return 0, false
	}
}

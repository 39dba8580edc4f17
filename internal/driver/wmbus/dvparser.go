package wmbus

import (
	"encoding/hex"
	"fmt"
	"strings"

	"gitlab.com/d21d3q/gometers/internal/frame"
	"gitlab.com/d21d3q/gometers/internal/records"
)

// Entry is a parsed record together with its offset in the payload.
type Entry struct {
	Offset int
	Record records.Record
}

// ParseRecords iterates over the payload and returns the DIF/VIF records until
// manufacturer-specific data is reached (DIF 0x0F/0x1F) or the buffer ends.
func ParseRecords(payload []byte) ([]Entry, error) {
	entries := make([]Entry, 0, 8)
	i := 0
	for i < len(payload) {
		start := i
		dif := payload[i]
		i++
		if dif == 0x2F {
			continue
		}
		if dif == 0x0F || dif == 0x1F {
			break
		}
		rec := records.Record{DIF: dif}
		storage := int((dif >> 6) & 0x01)
		tariff := 0
		subunit := 0
		difenr := 0

		hasDIFE := (dif & 0x80) != 0
		for hasDIFE {
			if i >= len(payload) {
				return nil, fmt.Errorf("unexpected end of payload while reading DIFE")
			}
			dife := payload[i]
			i++
			rec.DIFE = append(rec.DIFE, dife)
			subunit |= int((dife>>6)&0x01) << difenr
			tariff |= int((dife>>4)&0x03) << (difenr * 2)
			storage |= int(dife&0x0F) << (1 + difenr*4)
			hasDIFE = (dife & 0x80) != 0
			difenr++
		}
		if i >= len(payload) {
			return nil, fmt.Errorf("unexpected end of payload before VIF")
		}
		vifByte := payload[i]
		i++
		rec.VIF = vifByte & 0x7F
		if vifByte == 0xFB || vifByte == 0xFD {
			rec.VIF = vifByte
		}
		hasVIFE := (vifByte & 0x80) != 0
		for hasVIFE {
			if i >= len(payload) {
				return nil, fmt.Errorf("unexpected end of payload while reading VIFE")
			}
			vife := payload[i]
			i++
			rec.VIFE = append(rec.VIFE, vife)
			hasVIFE = (vife & 0x80) != 0
		}
		rec.Key = strings.ToUpper(hex.EncodeToString(payload[start:i]))

		if rec.VIF == 0x7C {
			unit, err := plainTextUnit(payload, &i)
			if err != nil {
				return nil, err
			}
			rec.Unit = unit
		}

		length, ascii, err := dataLength(dif, payload, &i)
		if err != nil {
			return nil, err
		}
		if i+length > len(payload) {
			return nil, fmt.Errorf("payload truncated for DIF 0x%02X", dif)
		}
		rec.Data = append([]byte(nil), payload[i:i+length]...)
		rec.ASCII = ascii
		i += length

		rec.Storage = storage
		rec.Tariff = tariff
		rec.Subunit = subunit
		entries = append(entries, Entry{Offset: start, Record: rec})
	}
	return entries, nil
}

// dataLength resolves the data length for dif, consuming the LVAR byte of
// variable length records.
func dataLength(dif byte, payload []byte, i *int) (int, bool, error) {
	if dif&0x0F != 0x0D {
		length, ok := LengthForDIF(dif)
		if !ok {
			return 0, false, fmt.Errorf("unsupported DIF 0x%02X", dif)
		}
		return length, false, nil
	}
	if *i >= len(payload) {
		return 0, false, fmt.Errorf("unexpected end of payload before LVAR")
	}
	lvar := payload[*i]
	*i++
	switch {
	case lvar < 0xC0:
		return int(lvar), true, nil
	case lvar <= 0xEF:
		return int(lvar & 0x0F), false, nil
	case lvar <= 0xF4:
		return 4 * int(lvar-0xEC), false, nil
	case lvar == 0xF5:
		return 48, false, nil
	case lvar == 0xF6:
		return 64, false, nil
	default:
		return 0, false, fmt.Errorf("unsupported LVAR 0x%02X", lvar)
	}
}

// plainTextUnit consumes the length byte and the unit text that follow a
// plain text VIF. The text is sent last character first.
func plainTextUnit(payload []byte, i *int) (string, error) {
	if *i >= len(payload) {
		return "", fmt.Errorf("unexpected end of payload before plain text unit")
	}
	n := int(payload[*i])
	*i++
	if *i+n > len(payload) {
		return "", fmt.Errorf("plain text unit truncated")
	}
	unit := make([]byte, n)
	for k := 0; k < n; k++ {
		unit[n-1-k] = payload[*i+k]
	}
	*i += n
	return string(unit), nil
}

// FillRecords parses t.Content and stores every record in t.Records with its
// offset relative to the start of the telegram.
func FillRecords(t *frame.Telegram) error {
	entries, err := ParseRecords(t.Content)
	if err != nil {
		return err
	}
	base := len(t.Parsed)
	for _, e := range entries {
		t.AddRecord(base+e.Offset, e.Record)
	}
	return nil
}

package records

import (
	"encoding/hex"
	"sort"
)

// Record represents one decoded DIF/VIF data record. Key identifies the
// record inside a telegram: the upper-case hex of the DIF, DIFE, VIF and VIFE
// bytes, with a "_N" suffix for the N-th repetition of the same header.
type Record struct {
	Key     string
	DIF     byte
	DIFE    []byte
	VIF     byte
	VIFE    []byte
	Data    []byte
	// ASCII is set for variable length records carrying text.
	ASCII   bool
	// Unit is the text of a plain text VIF (0x7C, 0xFC).
	Unit    string
	Storage int
	Tariff  int
	Subunit int
}

// Hex returns the raw data bytes as lower-case hex.
func (r Record) Hex() string {
	return hex.EncodeToString(r.Data)
}

// DataField returns the data field coding from the low DIF nibble.
func (r Record) DataField() byte {
	return r.DIF & 0x0F
}

// Extended reports whether the VIF selects an extension table (0xFB, 0xFD).
func (r Record) Extended() bool {
	return r.VIF == 0xFB || r.VIF == 0xFD
}

// SortedKeys returns the keys of a record map in ascending order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Package options parses the hex encoded settings of a meter instance.
package options

import (
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"
)

// ParseKeyHex validates and decodes a 32-hex-digit AES key string.
func ParseKeyHex(input string) ([]byte, error) {
	if strings.TrimSpace(input) == "" || strings.EqualFold(strings.TrimSpace(input), "NOKEY") {
		return nil, nil
	}
	clean := stripWhitespace(input)
	if len(clean) != 32 {
		return nil, fmt.Errorf("AES key must be 32 hex digits (16 bytes), got %d", len(clean))
	}
	dst := make([]byte, 16)
	if _, err := hex.Decode(dst, []byte(clean)); err != nil {
		return nil, fmt.Errorf("invalid AES key hex: %w", err)
	}
	return dst, nil
}

// ParseHexByte decodes a single byte written as two hex digits, e.g. "1b".
func ParseHexByte(input string) (byte, error) {
	clean := strings.TrimPrefix(strings.ToLower(stripWhitespace(input)), "0x")
	if len(clean) != 2 {
		return 0, fmt.Errorf("expected 2 hex digits, got %q", input)
	}
	var b [1]byte
	if _, err := hex.Decode(b[:], []byte(clean)); err != nil {
		return 0, fmt.Errorf("invalid hex byte %q: %w", input, err)
	}
	return b[0], nil
}

// ParseManufacturer accepts either four hex digits, most significant byte
// first ("5068"), or the three letter flag code ("TCH").
func ParseManufacturer(input string) (uint16, error) {
	clean := stripWhitespace(input)
	if len(clean) == 3 && isUpperAlpha(clean) {
		return ManufacturerCode(clean), nil
	}
	clean = strings.TrimPrefix(strings.ToLower(clean), "0x")
	if len(clean) != 4 {
		return 0, fmt.Errorf("manufacturer must be 4 hex digits or 3 letters, got %q", input)
	}
	var b [2]byte
	if _, err := hex.Decode(b[:], []byte(clean)); err != nil {
		return 0, fmt.Errorf("invalid manufacturer hex %q: %w", input, err)
	}
	return uint16(b[0])<<8 | uint16(b[1]), nil
}

// ManufacturerCode packs a three letter flag code into its 16-bit id.
func ManufacturerCode(flag string) uint16 {
	var id uint16
	for _, r := range flag {
		id = id<<5 | uint16(r-64)&0x1F
	}
	return id
}

// ManufacturerFlag is the inverse of ManufacturerCode.
func ManufacturerFlag(id uint16) string {
	return string([]byte{
		byte((id>>10)&0x1F) + 64,
		byte((id>>5)&0x1F) + 64,
		byte(id&0x1F) + 64,
	})
}

func isUpperAlpha(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

func stripWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

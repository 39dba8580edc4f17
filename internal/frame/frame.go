package frame

import (
	"encoding/binary"
	"fmt"
)

const (
	ciNoHeader  = 0x78
	ciShortTPL  = 0x7A
	ciELLShort  = 0x8C
	ciELLLong   = 0x8D
	ciMfctFirst = 0xA0
	ciMfctLast  = 0xB7

	securityModeAesCbcIV = 5
	ellModeAesCtr        = 1
)

// Telegram represents one received Wireless M-Bus frame. Header fields are
// filled by Parse; Content, Explanations and Records are written during a
// decode cycle.
type Telegram struct {
	Raw          []byte
	Length       byte
	Control      byte
	Manufacturer uint16
	MeterID      [4]byte
	Version      byte
	DeviceType   byte
	CI           byte
	AccessNumber byte
	Status       byte
	TPL          TPLInfo
	ELL          ELLInfo
	StatusFlags  map[string]bool

	// Parsed is the header prefix consumed before Payload.
	Parsed []byte
	// Payload is the application data as received.
	Payload []byte
	// Content is the payload after the decryption gate.
	Content []byte

	// Simulated marks telegrams replayed from a simulation source.
	Simulated bool

	Explanations []Explanation
	Records      map[string]RecordEntry
}

type TPLInfo struct {
	Present         bool
	AccessField     byte
	StatusField     byte
	Config          uint16
	SecurityMode    byte
	EncryptedBlocks int
}

// ELLInfo holds the extended link layer fields (CI 0x8C/0x8D).
type ELLInfo struct {
	Present       bool
	Communication byte
	AccessNumber  byte
	SessionNumber uint32
	HasSession    bool
}

// Mode returns the encryption mode carried in the session number.
func (e ELLInfo) Mode() byte {
	return byte((e.SessionNumber >> 29) & 0x07)
}

// Parse extracts the DLL header and the transport/extended link layer that
// follows, leaving the application data in Payload.
func Parse(raw []byte) (Telegram, error) {
	if len(raw) < 11 {
		return Telegram{}, fmt.Errorf("telegram too short: %d bytes", len(raw))
	}
	length := raw[0]
	if int(length)+1 != len(raw) {
		return Telegram{}, fmt.Errorf("declared length %d does not match actual length %d", length, len(raw))
	}
	t := Telegram{
		Raw:          raw,
		Length:       length,
		Control:      raw[1],
		Manufacturer: binary.LittleEndian.Uint16(raw[2:4]),
		StatusFlags:  map[string]bool{},
		Records:      map[string]RecordEntry{},
	}
	copy(t.MeterID[:], raw[4:8])
	t.Version = raw[8]
	t.DeviceType = raw[9]
	t.CI = raw[10]

	cursor := 11
	switch {
	case t.CI == ciNoHeader:
	case t.CI == ciShortTPL:
		if shortTPLPresent(raw, 11) {
			tpl, consumed, err := parseShortTPL(raw, 11)
			if err != nil {
				return Telegram{}, err
			}
			t.TPL = tpl
			t.AccessNumber = tpl.AccessField
			t.Status = tpl.StatusField
			t.StatusFlags = decodeStatusFlags(t.Status)
			cursor += consumed
		}
	case t.CI == ciELLShort || t.CI == ciELLLong:
		ell, consumed, err := parseELL(raw, 11, t.CI == ciELLLong)
		if err != nil {
			return Telegram{}, err
		}
		t.ELL = ell
		t.AccessNumber = ell.AccessNumber
		cursor += consumed
	case t.CI >= ciMfctFirst && t.CI <= ciMfctLast:
		// The whole payload is manufacturer specific.
	default:
		if len(raw) < 13 {
			return Telegram{}, fmt.Errorf("telegram too short for CI 0x%02X: %d bytes", t.CI, len(raw))
		}
		t.AccessNumber = raw[11]
		t.Status = raw[12]
		t.StatusFlags = decodeStatusFlags(t.Status)
		cursor = 13
	}
	if cursor > len(raw) {
		return Telegram{}, fmt.Errorf("payload offset %d exceeds telegram length %d", cursor, len(raw))
	}
	t.Parsed = raw[:cursor]
	t.Payload = raw[cursor:]
	return t, nil
}

// MeterIDString returns the EN 13757 display format (MSB first).
func (t *Telegram) MeterIDString() string {
	return fmt.Sprintf("%02X%02X%02X%02X", t.MeterID[3], t.MeterID[2], t.MeterID[1], t.MeterID[0])
}

// ID is the device id used for id expression matching and output.
func (t *Telegram) ID() string {
	return t.MeterIDString()
}

// Encrypted reports whether the payload still carries ciphertext.
// Simulated captures that were decrypted before recording start with the
// 2F2F filler and are treated as plaintext. Live telegrams are judged by
// their security mode alone.
func (t *Telegram) Encrypted() bool {
	if len(t.Payload) == 0 {
		return false
	}
	if t.Simulated && len(t.Payload) >= 2 && t.Payload[0] == 0x2F && t.Payload[1] == 0x2F {
		return false
	}
	if t.TPL.Present && t.TPL.SecurityMode == securityModeAesCbcIV {
		return true
	}
	return t.ELL.HasSession && t.ELL.Mode() == ellModeAesCtr
}

var statusFlagDefs = []struct {
	mask byte
	key  string
}{
	{0x80, "status_empty_pipe"},
	{0x40, "status_reverse_flow"},
	{0x20, "status_freezing"},
	{0x10, "status_temp_alarm"},
	{0x08, "status_perm_alarm"},
	{0x04, "status_battery_alarm"},
	{0x02, "status_hw_alarm"},
}

func decodeStatusFlags(status byte) map[string]bool {
	flags := make(map[string]bool)
	for _, def := range statusFlagDefs {
		if status&def.mask != 0 {
			flags[def.key] = true
		}
	}
	return flags
}

func parseShortTPL(data []byte, offset int) (TPLInfo, int, error) {
	if len(data) < offset+4 {
		return TPLInfo{}, 0, fmt.Errorf("short TPL header truncated")
	}
	tpl := TPLInfo{
		Present:     true,
		AccessField: data[offset],
		StatusField: data[offset+1],
	}
	cfg := binary.LittleEndian.Uint16(data[offset+2 : offset+4])
	tpl.Config = cfg
	tpl.SecurityMode = byte((cfg >> 8) & 0x1F)
	if tpl.SecurityMode == securityModeAesCbcIV {
		tpl.EncryptedBlocks = int((cfg >> 4) & 0x0F)
	}
	return tpl, 4, nil
}

func shortTPLPresent(data []byte, offset int) bool {
	if len(data) < offset+4 {
		return false
	}
	if data[offset] == 0x2F && data[offset+1] == 0x2F {
		return false
	}
	return true
}

func parseELL(data []byte, offset int, long bool) (ELLInfo, int, error) {
	need := 2
	if long {
		need = 6
	}
	if len(data) < offset+need {
		return ELLInfo{}, 0, fmt.Errorf("ELL header truncated")
	}
	ell := ELLInfo{
		Present:       true,
		Communication: data[offset],
		AccessNumber:  data[offset+1],
	}
	if long {
		ell.SessionNumber = binary.LittleEndian.Uint32(data[offset+2 : offset+6])
		ell.HasSession = true
	}
	return ell, need, nil
}

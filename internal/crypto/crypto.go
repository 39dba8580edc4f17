package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"errors"
	"fmt"

	"gitlab.com/d21d3q/gometers/internal/frame"
)

var (
	ErrKeyRequired = errors.New("encrypted telegram: AES key required")
	ErrInvalidKey  = errors.New("encrypted telegram: AES key rejected (bad plaintext)")
)

// Mode selects the decryption scheme. Drivers fix the mode of their meter
// family; Auto follows what the telegram header announces.
type Mode int

const (
	Auto Mode = iota
	// CBC is TPL security mode 5, AES-128-CBC with the short header IV.
	CBC
	// CTR is ELL security mode 1, AES-128-CTR.
	CTR
)

func (m Mode) String() string {
	switch m {
	case CBC:
		return "aes-cbc"
	case CTR:
		return "aes-ctr"
	default:
		return "auto"
	}
}

// Decrypt returns the plaintext content of t. Plain telegrams return their
// payload unchanged.
func Decrypt(t *frame.Telegram, key []byte, mode Mode) ([]byte, error) {
	if !t.Encrypted() {
		return t.Payload, nil
	}
	if len(key) == 0 {
		return nil, ErrKeyRequired
	}
	if mode == Auto {
		mode = CBC
		if t.ELL.HasSession {
			mode = CTR
		}
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("invalid AES key: %w", err)
	}
	switch mode {
	case CTR:
		return decryptCTR(t, block)
	default:
		return decryptCBC(t, block)
	}
}

func decryptCBC(t *frame.Telegram, block cipher.Block) ([]byte, error) {
	required := encryptedPrefixLen(t)
	if required == 0 {
		return nil, ErrInvalidKey
	}
	if required > len(t.Payload) {
		return nil, fmt.Errorf("encrypted section exceeds payload length (%d > %d)", required, len(t.Payload))
	}
	ciphertext := make([]byte, required)
	copy(ciphertext, t.Payload[:required])
	cipher.NewCBCDecrypter(block, buildShortIV(t)).CryptBlocks(ciphertext, ciphertext)
	if !looksLikePlaintext(ciphertext) {
		return nil, ErrInvalidKey
	}
	plaintext := append(ciphertext, t.Payload[required:]...)
	if len(plaintext) >= 2 && plaintext[0] == 0x2f && plaintext[1] == 0x2f {
		plaintext = plaintext[2:]
	}
	return plaintext, nil
}

// decryptCTR decrypts an ELL payload. The first two plaintext bytes are the
// payload CRC and are dropped.
func decryptCTR(t *frame.Telegram, block cipher.Block) ([]byte, error) {
	if len(t.Payload) < 2 {
		return nil, fmt.Errorf("encrypted ELL payload too short: %d bytes", len(t.Payload))
	}
	plaintext := make([]byte, len(t.Payload))
	cipher.NewCTR(block, BuildCTRIV(t)).XORKeyStream(plaintext, t.Payload)
	return plaintext[2:], nil
}

// BuildCTRIV assembles the ELL counter block: manufacturer, address,
// communication control, session number, frame number 0 and block counter 0.
func BuildCTRIV(t *frame.Telegram) []byte {
	iv := make([]byte, aes.BlockSize)
	binary.LittleEndian.PutUint16(iv[0:2], t.Manufacturer)
	copy(iv[2:6], t.MeterID[:])
	iv[6] = t.Version
	iv[7] = t.DeviceType
	iv[8] = t.ELL.Communication
	binary.LittleEndian.PutUint32(iv[9:13], t.ELL.SessionNumber)
	return iv
}

func buildShortIV(t *frame.Telegram) []byte {
	iv := make([]byte, aes.BlockSize)
	binary.LittleEndian.PutUint16(iv[0:2], t.Manufacturer)
	copy(iv[2:6], t.MeterID[:])
	iv[6] = t.Version
	iv[7] = t.DeviceType
	for i := 8; i < 16; i++ {
		iv[i] = t.AccessNumber
	}
	return iv
}

func looksLikePlaintext(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	first := b[0]
	if first == 0x2f {
		return true
	}
	low := first & 0x0F
	return low <= 0x0D
}

func encryptedPrefixLen(t *frame.Telegram) int {
	payloadLen := len(t.Payload)
	if payloadLen == 0 {
		return 0
	}
	if t.TPL.Present && t.TPL.EncryptedBlocks > 0 {
		needed := t.TPL.EncryptedBlocks * aes.BlockSize
		if needed > payloadLen {
			needed = payloadLen
		}
		if rem := needed % aes.BlockSize; rem != 0 {
			needed -= rem
		}
		return needed
	}
	return payloadLen - (payloadLen % aes.BlockSize)
}

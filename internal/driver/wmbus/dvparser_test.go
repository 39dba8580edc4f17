package wmbus

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/d21d3q/gometers/internal/frame"
)

func TestParseRecords(t *testing.T) {
	payload := decodeHex(t, "2F2F0C1366380000046D27287E2A02FD1700004013"+"0F150E")
	entries, err := ParseRecords(payload)
	require.NoError(t, err)
	require.Len(t, entries, 4)

	assert.Equal(t, "0C13", entries[0].Record.Key)
	assert.Equal(t, 2, entries[0].Offset)
	assert.Equal(t, "66380000", entries[0].Record.Hex())

	assert.Equal(t, "046D", entries[1].Record.Key)
	assert.Equal(t, "02FD17", entries[2].Record.Key)
	assert.True(t, entries[2].Record.Extended())
	assert.Equal(t, []byte{0x17}, entries[2].Record.VIFE)

	assert.Equal(t, "4013", entries[3].Record.Key)
	assert.Empty(t, entries[3].Record.Data)
	assert.Equal(t, 1, entries[3].Record.Storage)
}

func TestParseRecordsDIFE(t *testing.T) {
	// DIF 0x8C with DIFE 0x10 selects tariff 1.
	entries, err := ParseRecords(decodeHex(t, "8C100612000000"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	rec := entries[0].Record
	assert.Equal(t, "8C1006", rec.Key)
	assert.Equal(t, 1, rec.Tariff)
	assert.Equal(t, 0, rec.Storage)
}

func TestParseRecordsASCII(t *testing.T) {
	entries, err := ParseRecords(decodeHex(t, "0D7803434241"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.True(t, entries[0].Record.ASCII)
	text, ok := Text(entries[0].Record)
	require.True(t, ok)
	assert.Equal(t, "ABC", text)
}

func TestParseRecordsPlainTextVIF(t *testing.T) {
	// Plain text unit "A" followed by a second record that must survive.
	entries, err := ParseRecords(decodeHex(t, "027C01410100"+"0C1366380000"))
	require.NoError(t, err)
	require.Len(t, entries, 2)

	rec := entries[0].Record
	assert.Equal(t, "027C", rec.Key)
	assert.Equal(t, "A", rec.Unit)
	assert.Equal(t, []byte{0x01, 0x00}, rec.Data)
	_, ok := Number(rec)
	assert.False(t, ok)
	text, ok := Text(rec)
	require.True(t, ok)
	assert.Equal(t, "0100 A", text)

	assert.Equal(t, "0C13", entries[1].Record.Key)
	assert.Equal(t, 6, entries[1].Offset)

	// Extended plain text VIF with a VIFE; the unit is sent reversed.
	entries, err = ParseRecords(decodeHex(t, "01FC0002424B07"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "01FC00", entries[0].Record.Key)
	assert.Equal(t, "KB", entries[0].Record.Unit)
	assert.Equal(t, []byte{0x07}, entries[0].Record.Data)
}

func TestParseRecordsLongLVAR(t *testing.T) {
	// LVAR 0xF0 announces 16 bytes of binary data.
	data := "000102030405060708090A0B0C0D0E0F"
	entries, err := ParseRecords(decodeHex(t, "0DFD11F0"+data+"0C1366380000"))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Len(t, entries[0].Record.Data, 16)
	assert.False(t, entries[0].Record.ASCII)
	assert.Equal(t, "0C13", entries[1].Record.Key)

	_, err = ParseRecords(decodeHex(t, "0D13F7"))
	require.Error(t, err)
}

func TestParseRecordsTruncated(t *testing.T) {
	cases := map[string]string{
		"data":  "0C136638",
		"vif":   "0C",
		"dife":  "8C",
		"vife":  "02FD",
		"lvar":  "0D78",
		"plain": "0D7C03414243",
		"unit":  "027C0341",
		"f0":    "0D13F00000",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRecords(decodeHex(t, in))
			require.Error(t, err)
		})
	}
}

func decodeHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("hex decode: %v", err)
	}
	return b
}

func TestFillRecords(t *testing.T) {
	tg := frame.Telegram{
		Parsed:  make([]byte, 11),
		Content: decodeHex(t, "0C13663800000C13010000002F2F"),
	}
	require.NoError(t, FillRecords(&tg))
	require.Len(t, tg.Records, 2)
	assert.Equal(t, 11, tg.Records["0C13"].Offset)
	assert.Equal(t, 17, tg.Records["0C13_2"].Offset)
	assert.Equal(t, "0C13_2", tg.Records["0C13_2"].Record.Key)
}

package wmbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/d21d3q/gometers/internal/records"
)

func TestDecodeBCDLittleEndian(t *testing.T) {
	v, err := DecodeBCDLittleEndian([]byte{0x66, 0x38, 0x00, 0x00})
	require.NoError(t, err)
	assert.Equal(t, int64(3866), v)

	v, err = DecodeBCDLittleEndian([]byte{0x12, 0xF0})
	require.NoError(t, err)
	assert.Equal(t, int64(-12), v)

	_, err = DecodeBCDLittleEndian([]byte{0x1A})
	require.Error(t, err)
}

func TestDecodeSigned(t *testing.T) {
	cases := []struct {
		in   []byte
		want int64
	}{
		{[]byte{0x01}, 1},
		{[]byte{0xFF}, -1},
		{[]byte{0x00, 0x80}, -32768},
		{[]byte{0x10, 0x27, 0x00, 0x00}, 10000},
		{[]byte{0xFE, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}, -2},
	}
	for _, tc := range cases {
		got, err := DecodeSigned(tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "% X", tc.in)
	}
	_, err := DecodeSigned(nil)
	require.Error(t, err)
}

func TestDecodeTypeFDateTime(t *testing.T) {
	ts, err := DecodeTypeFDateTime([]byte{0x27, 0x28, 0x7E, 0x2A})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2019, time.October, 30, 8, 39, 0, 0, time.UTC), ts)

	_, err = DecodeTypeFDateTime([]byte{0x00, 0x00, 0x00, 0x00})
	require.Error(t, err)
}

func TestDecodeTypeGDate(t *testing.T) {
	// 2023-12-31: day 31, month 12, year 23 = 0b0010111
	d, err := DecodeTypeGDate([]byte{0xFF, 0x2C})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, time.December, 31, 0, 0, 0, 0, time.UTC), d)
}

func TestNumber(t *testing.T) {
	cases := []struct {
		name string
		rec  records.Record
		want float64
		ok   bool
	}{
		{"bcd volume liters", records.Record{DIF: 0x0C, VIF: 0x13, Data: []byte{0x66, 0x38, 0x00, 0x00}}, 3.866, true},
		{"binary energy kwh", records.Record{DIF: 0x04, VIF: 0x06, Data: []byte{0x10, 0x27, 0x00, 0x00}}, 10000, true},
		{"signed temperature", records.Record{DIF: 0x02, VIF: 0x59, Data: []byte{0x18, 0xFC}}, -10, true},
		{"real power", records.Record{DIF: 0x05, VIF: 0x2E, Data: []byte{0x00, 0x00, 0xC0, 0x3F}}, 1.5, true},
		{"date has no number", records.Record{DIF: 0x04, VIF: 0x6D, Data: []byte{0x27, 0x28, 0x7E, 0x2A}}, 0, false},
		{"extension table", records.Record{DIF: 0x02, VIF: 0xFD, VIFE: []byte{0x17}, Data: []byte{0x00, 0x00}}, 0, false},
		{"no data", records.Record{DIF: 0x40, VIF: 0x13}, 0, false},
		{"bad bcd", records.Record{DIF: 0x0A, VIF: 0x13, Data: []byte{0xAB, 0x00}}, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Number(tc.rec)
			require.Equal(t, tc.ok, ok)
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestText(t *testing.T) {
	got, ok := Text(records.Record{DIF: 0x04, VIF: 0x6D, Data: []byte{0x27, 0x28, 0x7E, 0x2A}})
	require.True(t, ok)
	assert.Equal(t, "2019-10-30 08:39", got)

	got, ok = Text(records.Record{DIF: 0x02, VIF: 0xFD, VIFE: []byte{0x17}, Data: []byte{0x01, 0x00}})
	require.True(t, ok)
	assert.Equal(t, "0100", got)

	_, ok = Text(records.Record{DIF: 0x40, VIF: 0x13})
	assert.False(t, ok)
}

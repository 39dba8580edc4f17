package gometers

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const encryptedELL = "14446850785634122704" + "8D" + "2050" + "00000020" + "AABBCCDD"

func TestDecodeHex(t *testing.T) {
	raw := " |4E44_B409 86868686| "
	data, err := decodeHex(raw)
	require.NoError(t, err)
	require.Len(t, data, 8)
}

func TestDecodeHexOddLength(t *testing.T) {
	_, err := decodeHex("ABC")
	require.Error(t, err)
}

func TestAnalyzeHexHydrodigit(t *testing.T) {
	ctx := context.Background()
	frame := "4E44B4098686868613077AF00040052F2F0C1366380000046D27287E2A0F150E00000000C10000D10000E60000FD00000C01002F0100410100540100680100890000A00000B30000002F2F2F2F2F2F"
	result, err := Analyze(ctx, frame, AnalyzeOptions{Simulated: true})
	require.NoError(t, err)
	require.Equal(t, "generic", result.Driver)
	require.NotNil(t, result.Telegram)
	require.Equal(t, "86868686", result.Telegram.MeterIDString())
	assert.True(t, result.Decoded())
}

func TestAnalyzeHexLiveTelegramNeedsKey(t *testing.T) {
	// Same capture received live: TPL mode 5 without a key is not decoded,
	// the 2F2F filler notwithstanding.
	frame := "4E44B4098686868613077AF00040052F2F0C1366380000046D27287E2A0F150E00000000C10000D10000E60000FD00000C01002F0100410100540100680100890000A00000B30000002F2F2F2F2F2F"
	result, err := AnalyzeHex(context.Background(), frame)
	require.NoError(t, err)
	assert.False(t, result.Decoded())
	require.Len(t, result.Diagnostics, 1)
	assert.Contains(t, result.Diagnostics[0], "key required")
}

func TestAnalyzeRejectsSeparator(t *testing.T) {
	_, err := Analyze(context.Background(), "16446850785634122704A200000064000000C800000000", AnalyzeOptions{
		Separator: ";;",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "separator")

	_, err = Analyze(context.Background(), "16446850785634122704A200000064000000C800000000", AnalyzeOptions{
		Separator: "|",
	})
	require.NoError(t, err)
}

func TestAnalyzeRender(t *testing.T) {
	result, err := Analyze(context.Background(), "16446850785634122704A200000064000000C800000000", AnalyzeOptions{
		Name:        "heat",
		Separator:   ",",
		Conversions: []string{"GJ"},
	})
	require.NoError(t, err)
	require.Equal(t, "vario451", result.Driver)

	line, err := result.Render("fields")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(line, "heat,12345678,0.300 GJ,0.200 GJ,0.100 GJ,"), line)

	js, err := result.Render("json")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(js, `{"media":"heat","meter":"vario451","name":"heat","id":"12345678","total_kwh":83.333333,`), js)

	_, err = result.Render("yaml")
	require.Error(t, err)

	fs := result.FieldSet()
	assert.Equal(t, []string{"current", "previous", "total"}, fs.Names())
	total, err := fs.Float("total")
	require.NoError(t, err)
	assert.InDelta(t, 83.333333, total, 1e-6)
	assert.Contains(t, result.String(), "energy used in previous billing period")
}

func TestAnalyzeMissingKey(t *testing.T) {
	result, err := AnalyzeHex(context.Background(), encryptedELL)
	require.NoError(t, err)
	assert.False(t, result.Decoded())
	require.Len(t, result.Diagnostics, 1)
	assert.Contains(t, result.Diagnostics[0], "key required")
	_, err = result.Render("hr")
	require.Error(t, err)
}

func TestAnalyzeForcedDriver(t *testing.T) {
	_, err := Analyze(context.Background(), "0E446850785634122704A200000064", AnalyzeOptions{Driver: "vario451"})
	require.Error(t, err)

	_, err = Analyze(context.Background(), "0E446850785634122704A200000064", AnalyzeOptions{Driver: "nope"})
	require.Error(t, err)
}

func TestAnalyzeOptionErrors(t *testing.T) {
	_, err := Analyze(context.Background(), "00", AnalyzeOptions{KeyHex: "xyz"})
	require.Error(t, err)
	_, err = Analyze(context.Background(), "00", AnalyzeOptions{Conversions: []string{"furlong"}})
	require.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = AnalyzeHex(ctx, "00")
	require.ErrorIs(t, err, context.Canceled)
}

func TestFieldSet(t *testing.T) {
	fs := Result{Fields: map[string]any{"n": 3.866, "s": "2019-10-30 08:39", "d": "12"}}.FieldSet()
	v, err := fs.Float("n")
	require.NoError(t, err)
	assert.Equal(t, 3.866, v)
	v, err = fs.Float("d")
	require.NoError(t, err)
	assert.Equal(t, 12.0, v)
	_, err = fs.Float("s")
	require.Error(t, err)
	_, err = fs.Float("missing")
	require.Error(t, err)

	s, err := fs.String("n")
	require.NoError(t, err)
	assert.Equal(t, "3.866", s)
	_, ok := fs.Raw("missing")
	assert.False(t, ok)
	assert.Len(t, fs.Map(), 3)
}

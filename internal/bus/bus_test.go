package bus

import (
	"context"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/d21d3q/gometers/internal/frame"
)

const vario = "16446850785634122704A200000064000000C800000000"

func TestParseLine(t *testing.T) {
	tg, err := ParseLine(vario)
	require.NoError(t, err)
	require.NotNil(t, tg)
	assert.False(t, tg.Simulated)
	assert.Equal(t, "12345678", tg.ID())

	tg, err = ParseLine("telegram=|16446850785634122704A2|00000064000000C800000000|+42")
	require.NoError(t, err)
	require.NotNil(t, tg)
	assert.True(t, tg.Simulated)
	assert.Len(t, tg.Payload, 12)

	for _, skip := range []string{"", "   ", "# comment"} {
		tg, err = ParseLine(skip)
		require.NoError(t, err)
		assert.Nil(t, tg)
	}

	_, err = ParseLine("zz")
	require.Error(t, err)
	_, err = ParseLine("0A44")
	require.Error(t, err)
}

func TestRunDeliversInOrder(t *testing.T) {
	logger, hook := test.NewNullLogger()
	b := New(logrus.NewEntry(logger))

	var got []string
	b.OnTelegram(func(_ context.Context, tg *frame.Telegram) { got = append(got, "a:"+tg.ID()) })
	b.OnTelegram(func(_ context.Context, tg *frame.Telegram) { got = append(got, "b:"+tg.ID()) })

	input := strings.Join([]string{
		"# capture",
		vario,
		"not hex",
		"telegram=|1D44B409868686861307780C1366380000046D27287E2A02FD1700004013|",
	}, "\n")
	require.NoError(t, b.Run(context.Background(), strings.NewReader(input)))

	assert.Equal(t, []string{"a:12345678", "b:12345678", "a:86868686", "b:86868686"}, got)
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestRunStopsOnCancel(t *testing.T) {
	logger, _ := test.NewNullLogger()
	b := New(logrus.NewEntry(logger))
	calls := 0
	b.OnTelegram(func(context.Context, *frame.Telegram) { calls++ })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := b.Run(ctx, strings.NewReader(vario+"\n"+vario))
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

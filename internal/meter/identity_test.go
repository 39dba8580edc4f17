package meter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/d21d3q/gometers/internal/testutil"
)

// Header of the fixture: manufacturer 0x5068 (TCH), id 12345678, version
// 0x27, device type 0x04.
const vario451Telegram = "16446850785634122704A200000064000000C800000000"

func TestIdentityPredicates(t *testing.T) {
	tg := testutil.Telegram(t, vario451Telegram)
	cases := []struct {
		name                string
		ids                 []string
		mfct, version, kind string
		want                bool
	}{
		{name: "nothing configured", want: true},
		{name: "all match", ids: []string{"12345678"}, mfct: "5068", version: "27", kind: "04", want: true},
		{name: "flag code", mfct: "TCH", want: true},
		{name: "manufacturer differs", mfct: "09B4", want: false},
		{name: "version differs", version: "28", want: false},
		{name: "device type differs", kind: "07", want: false},
		{name: "id differs", ids: []string{"87654321"}, want: false},
		{name: "wildcard id", ids: []string{"1234*"}, mfct: "5068", want: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id, err := ParseIdentity(tc.ids, tc.mfct, tc.version, tc.kind)
			require.NoError(t, err)
			assert.Equal(t, tc.want, id.Matches(tg))
		})
	}
}

// Flipping only the id expression flips the result exactly when every other
// predicate holds.
func TestIdentityIDFlip(t *testing.T) {
	tg := testutil.Telegram(t, vario451Telegram)
	for _, others := range []struct {
		mfct, version, kind string
		hold                bool
	}{
		{"5068", "27", "04", true},
		{"5068", "27", "05", false},
		{"0001", "27", "04", false},
	} {
		matching, err := ParseIdentity([]string{"12345678"}, others.mfct, others.version, others.kind)
		require.NoError(t, err)
		failing, err := ParseIdentity([]string{"00000000"}, others.mfct, others.version, others.kind)
		require.NoError(t, err)
		flipped := matching.Matches(tg) != failing.Matches(tg)
		assert.Equal(t, others.hold, flipped)
	}
}

func TestMatchID(t *testing.T) {
	cases := []struct {
		exprs []string
		id    string
		want  bool
	}{
		{nil, "12345678", true},
		{[]string{"12345678"}, "12345678", true},
		{[]string{"*"}, "12345678", true},
		{[]string{"1234*"}, "12345678", true},
		{[]string{"1235*"}, "12345678", false},
		{[]string{"!12345678"}, "12345678", false},
		{[]string{"!12345678"}, "87654321", false},
		{[]string{"*", "!12345678"}, "87654321", true},
		{[]string{"*", "!1234*"}, "12345678", false},
		{[]string{"!1234*", "*"}, "12345678", false},
		{[]string{"11111111", "12345678"}, "12345678", true},
		{[]string{"abcdef01"}, "ABCDEF01", true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, MatchID(tc.id, tc.exprs), "%v %s", tc.exprs, tc.id)
	}
}

func TestParseIdentityListsAndErrors(t *testing.T) {
	id, err := ParseIdentity([]string{"11111111, 1234*"}, "", "", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"11111111", "1234*"}, id.ids)

	for _, bad := range []string{"1234", "123456789", "12x45678", "1*2*", "!!12345678"} {
		assert.Error(t, ValidateIDExpression(bad), bad)
	}
	_, err = ParseIdentity(nil, "50", "", "")
	require.Error(t, err)
	_, err = ParseIdentity(nil, "", "xyz", "")
	require.Error(t, err)
	_, err = ParseIdentity(nil, "", "", "1")
	require.Error(t, err)
}

func TestIdentityFamilyDefaults(t *testing.T) {
	tg := testutil.Telegram(t, vario451Telegram)

	id, err := ParseIdentity([]string{"*"}, "", "", "")
	require.NoError(t, err)
	assert.True(t, id.withDefaults(0x5068, []byte{0x04, 0xC3}).Matches(tg))
	assert.False(t, id.withDefaults(0x09B4, nil).Matches(tg))
	assert.False(t, id.withDefaults(0, []byte{0x07}).Matches(tg))

	// Configured predicates win over the family defaults.
	id, err = ParseIdentity(nil, "5068", "", "04")
	require.NoError(t, err)
	assert.True(t, id.withDefaults(0x09B4, []byte{0x07}).Matches(tg))
}

package gometers

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"gitlab.com/d21d3q/gometers/internal/testutil"
)

func TestGolden(t *testing.T) {
	fixtures := []struct {
		name   string
		driver string
		opts   AnalyzeOptions
	}{
		{name: "vario451/billing_period", driver: "vario451"},
		{name: "generic/mixed_records", driver: "generic"},
		// Recorded after decryption, replayed as a simulation.
		{name: "generic/hydrodigit_water", driver: "generic", opts: AnalyzeOptions{Simulated: true}},
	}
	for _, tc := range fixtures {
		t.Run(tc.name, func(t *testing.T) {
			hexStr := testutil.LoadHex(t, tc.name+".hex")
			result, err := Analyze(context.Background(), hexStr, tc.opts)
			require.NoError(t, err)
			require.Equal(t, tc.driver, result.Driver)

			var expected map[string]any
			testutil.LoadJSON(t, tc.name+".json", &expected)
			require.Equal(t, "", diffMaps(expected, result.Fields))
		})
	}
}

func diffMaps(expected, actual map[string]any) string {
	if len(expected) != len(actual) {
		return fmt.Sprintf("len mismatch expected %d actual %d", len(expected), len(actual))
	}
	for k, v := range expected {
		av, ok := actual[k]
		if !ok {
			return fmt.Sprintf("missing key %s", k)
		}
		switch ev := v.(type) {
		case float64:
			avFloat, ok := av.(float64)
			if !ok || math.Abs(ev-avFloat) > 1e-6 {
				return fmt.Sprintf("key %s mismatch expected %v got %v", k, v, av)
			}
		default:
			if fmt.Sprintf("%v", v) != fmt.Sprintf("%v", av) {
				return fmt.Sprintf("key %s mismatch expected %v got %v", k, v, av)
			}
		}
	}
	return ""
}

package gometers

import (
	"fmt"
	"unicode/utf8"

	"gitlab.com/d21d3q/gometers/internal/options"
	"gitlab.com/d21d3q/gometers/internal/output"
	"gitlab.com/d21d3q/gometers/internal/units"
)

// AnalyzeOptions configures Analyze.
type AnalyzeOptions struct {
	// KeyHex is the 32 digit AES key; empty or NOKEY for none.
	KeyHex string
	// Driver forces a driver instead of detecting one from the header.
	Driver string
	// Name is the meter name used in rendered output; "analyze" when empty.
	Name string
	// Simulated lets encrypted telegrams through without a key.
	Simulated bool
	// Separator and Conversions tune the rendered fields output.
	Separator   string
	Conversions []string
}

type resolvedOptions struct {
	name   string
	render output.Options
}

func (opts AnalyzeOptions) resolve() (resolvedOptions, error) {
	if _, err := options.ParseKeyHex(opts.KeyHex); err != nil {
		return resolvedOptions{}, err
	}
	r := resolvedOptions{name: opts.Name}
	if r.name == "" {
		r.name = "analyze"
	}
	if opts.Separator != "" && utf8.RuneCountInString(opts.Separator) != 1 {
		return resolvedOptions{}, fmt.Errorf("separator %q: need a single character", opts.Separator)
	}
	r.render.Separator = opts.Separator
	for _, name := range opts.Conversions {
		u, err := units.Parse(name)
		if err != nil {
			return resolvedOptions{}, err
		}
		r.render.Conversions = append(r.render.Conversions, u)
	}
	return r, nil
}

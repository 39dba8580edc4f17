// Package gometers decodes single wireless M-Bus telegrams with the
// registered meter drivers.
package gometers

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"gitlab.com/d21d3q/gometers/internal/driver"
	"gitlab.com/d21d3q/gometers/internal/driver/generic"
	_ "gitlab.com/d21d3q/gometers/internal/driver/vario451" // register driver
	"gitlab.com/d21d3q/gometers/internal/frame"
	"gitlab.com/d21d3q/gometers/internal/meter"
	"gitlab.com/d21d3q/gometers/internal/options"
	"gitlab.com/d21d3q/gometers/internal/output"
)

// Result captures the outcome of Analyze.
type Result struct {
	Driver    string
	RawHex    string
	ByteCount int
	Telegram  *frame.Telegram
	Snapshot  meter.Snapshot
	// Fields maps print names to numbers in their default unit or text.
	Fields      map[string]any
	Diagnostics []string

	render output.Options
}

// Decoded reports whether a decode cycle completed.
func (r Result) Decoded() bool {
	return !r.Snapshot.Empty()
}

// Render renders the decoded snapshot as hr, fields, json or env.
func (r Result) Render(format string) (string, error) {
	f, err := output.ParseFormat(format)
	if err != nil {
		return "", err
	}
	if !r.Decoded() {
		return "", errors.New("telegram was not decoded")
	}
	return output.Render(r.Snapshot, f, r.render)
}

// String renders a human-readable representation of the result.
func (r Result) String() string {
	summary := map[string]any{
		"driver":     r.Driver,
		"byte_count": r.ByteCount,
		"raw_hex":    r.RawHex,
	}
	if r.Telegram != nil {
		summary["meter_id"] = r.Telegram.ID()
		summary["manufacturer"] = fmt.Sprintf("0x%04X (%s)", r.Telegram.Manufacturer, options.ManufacturerFlag(r.Telegram.Manufacturer))
		summary["ci"] = fmt.Sprintf("0x%02X", r.Telegram.CI)
		summary["media"] = frame.MediaName(r.Telegram.DeviceType)
		if len(r.Telegram.StatusFlags) > 0 {
			summary["status"] = r.Telegram.StatusFlags
		}
		if lines := r.Telegram.ExplainLines(); len(lines) > 0 {
			summary["explanation"] = lines
		}
	}
	if len(r.Fields) > 0 {
		summary["fields"] = r.Fields
	}
	if len(r.Diagnostics) > 0 {
		summary["diagnostics"] = r.Diagnostics
	}
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Sprintf("driver: %s bytes:%d raw:%s (marshal error: %v)", r.Driver, r.ByteCount, r.RawHex, err)
	}
	return string(data)
}

// AnalyzeHex decodes raw with default options.
func AnalyzeHex(ctx context.Context, raw string) (Result, error) {
	return Analyze(ctx, raw, AnalyzeOptions{})
}

// Analyze parses the frame, selects a driver and runs one decode cycle on a
// throwaway meter. Telegrams no driver claims are decoded as generic
// records. A missing key is reported as a diagnostic, not an error.
func Analyze(ctx context.Context, raw string, opts AnalyzeOptions) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	resolved, err := opts.resolve()
	if err != nil {
		return Result{}, err
	}
	data, err := decodeHex(raw)
	if err != nil {
		return Result{}, err
	}
	telegram, err := frame.Parse(data)
	if err != nil {
		return Result{}, err
	}
	telegram.Simulated = opts.Simulated

	result := Result{
		Driver:    "unknown",
		RawHex:    strings.ToUpper(stripWhitespace(raw)),
		ByteCount: len(data),
		Telegram:  &telegram,
		render:    resolved.render,
	}

	name := opts.Driver
	if name == "" {
		if name, err = driver.Lookup(&telegram); err != nil {
			name = generic.Name
		}
	}
	m, err := driver.New(meter.Config{
		Name:   resolved.name,
		Driver: name,
		Key:    opts.KeyHex,
	})
	if err != nil {
		return result, err
	}
	result.Driver = name

	out, err := m.Handle(&telegram)
	for _, diag := range out.Diagnostics {
		result.Diagnostics = append(result.Diagnostics, diag.Error())
	}
	if err != nil {
		return result, err
	}
	result.Snapshot = m.Snapshot()
	result.Fields = fields(result.Snapshot)
	return result, nil
}

func fields(s meter.Snapshot) map[string]any {
	if s.Empty() {
		return nil
	}
	out := make(map[string]any, len(s.Prints))
	for _, p := range s.Prints {
		if p.Textual() {
			if text, err := p.Text(); err == nil {
				out[p.Name] = text
			}
			continue
		}
		if v, err := p.Number(p.Unit); err == nil {
			out[p.Name] = v
		}
	}
	return out
}

func decodeHex(input string) ([]byte, error) {
	clean := stripWhitespace(input)
	if strings.HasPrefix(clean, "0X") || strings.HasPrefix(clean, "0x") {
		clean = clean[2:]
	}
	if len(clean)%2 != 0 {
		return nil, fmt.Errorf("hex telegram must contain an even number of digits, got %d", len(clean))
	}
	decoded := make([]byte, len(clean)/2)
	if _, err := hex.Decode(decoded, []byte(clean)); err != nil {
		return nil, fmt.Errorf("decode hex: %w", err)
	}
	return decoded, nil
}

func stripWhitespace(s string) string {
	builder := strings.Builder{}
	builder.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) || r == '|' || r == '_' {
			continue
		}
		builder.WriteRune(r)
	}
	return builder.String()
}

// Package output renders meter snapshots as human-readable lines, delimited
// fields, JSON objects and environment variable assignments.
package output

import (
	"encoding/json"
	"fmt"
	"strings"

	"gitlab.com/d21d3q/gometers/internal/meter"
	"gitlab.com/d21d3q/gometers/internal/units"
)

const (
	humanTimeFormat = "2006-01-02 15:04.05"
	robotTimeFormat = "2006-01-02T15:04:05Z"

	DefaultSeparator = ";"
)

// Format selects one of the output renderings.
type Format int

const (
	HumanReadable Format = iota
	Fields
	JSON
	Env
)

var formatNames = map[Format]string{
	HumanReadable: "hr",
	Fields:        "fields",
	JSON:          "json",
	Env:           "env",
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("format(%d)", int(f))
}

// ParseFormat resolves hr, fields, json or env.
func ParseFormat(s string) (Format, error) {
	want := strings.ToLower(strings.TrimSpace(s))
	for f, name := range formatNames {
		if name == want {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown output format %q", s)
}

// Options tunes rendering.
type Options struct {
	// Separator between delimited fields; DefaultSeparator when empty.
	Separator string
	// Conversions override the default unit of prints sharing a quantity.
	Conversions []units.Unit
}

// Render renders s in format f. Env assignments are joined by newlines.
func Render(s meter.Snapshot, f Format, opts Options) (string, error) {
	switch f {
	case HumanReadable:
		return Line(s, "\t", opts.Conversions)
	case Fields:
		sep := opts.Separator
		if sep == "" {
			sep = DefaultSeparator
		}
		return Line(s, sep, opts.Conversions)
	case JSON:
		return Object(s)
	case Env:
		envs, err := Envs(s, opts.Conversions)
		if err != nil {
			return "", err
		}
		return strings.Join(envs, "\n"), nil
	default:
		return "", fmt.Errorf("unknown output format %d", int(f))
	}
}

// Line joins the meter name, the meter id, every field print and the update
// time with sep.
func Line(s meter.Snapshot, sep string, conversions []units.Unit) (string, error) {
	parts := []string{s.Name, s.ID}
	for _, p := range s.Prints {
		if !p.Field {
			continue
		}
		v, err := valueHR(p, conversions)
		if err != nil {
			return "", err
		}
		parts = append(parts, v)
	}
	parts = append(parts, s.Updated.Format(humanTimeFormat))
	return strings.Join(parts, sep), nil
}

// Object renders the fixed JSON object of the snapshot's driver: media,
// meter, name and id, one key per JSON print in its default unit, then the
// timestamp.
func Object(s meter.Snapshot) (string, error) {
	var b strings.Builder
	b.WriteByte('{')
	writeJSONString(&b, "media", s.Media)
	b.WriteByte(',')
	writeJSONString(&b, "meter", s.Driver)
	b.WriteByte(',')
	writeJSONString(&b, "name", s.Name)
	b.WriteByte(',')
	writeJSONString(&b, "id", s.ID)
	for _, p := range s.Prints {
		if !p.JSON {
			continue
		}
		b.WriteByte(',')
		if p.Textual() {
			text, err := p.Text()
			if err != nil {
				return "", err
			}
			writeJSONString(&b, p.Name, text)
			continue
		}
		v, err := p.Number(p.Unit)
		if err != nil {
			return "", err
		}
		writeJSONKey(&b, p.Name+"_"+p.Unit.Lower())
		fmt.Fprintf(&b, "%f", v)
	}
	b.WriteByte(',')
	writeJSONString(&b, "timestamp", s.Updated.UTC().Format(robotTimeFormat))
	b.WriteByte('}')
	return b.String(), nil
}

// Envs returns the METER_* assignments for a shell hook.
func Envs(s meter.Snapshot, conversions []units.Unit) ([]string, error) {
	obj, err := Object(s)
	if err != nil {
		return nil, err
	}
	envs := []string{
		"METER_JSON=" + obj,
		"METER_TYPE=" + s.Driver,
		"METER_ID=" + s.ID,
	}
	for _, p := range s.Prints {
		if !p.Field {
			continue
		}
		name := "METER_" + strings.ToUpper(p.Name) + "_"
		if p.Textual() {
			text, err := p.Text()
			if err != nil {
				return nil, err
			}
			envs = append(envs, name+units.TXT.Upper()+"="+text)
			continue
		}
		u := units.Replace(p.Unit, conversions)
		v, err := p.Number(u)
		if err != nil {
			return nil, err
		}
		envs = append(envs, fmt.Sprintf("%s%s=%f", name, u.Upper(), v))
	}
	envs = append(envs, "METER_TIMESTAMP="+s.Updated.UTC().Format(robotTimeFormat))
	return envs, nil
}

func valueHR(p meter.Print, conversions []units.Unit) (string, error) {
	if p.Textual() {
		return p.Text()
	}
	u := units.Replace(p.Unit, conversions)
	v, err := p.Number(u)
	if err != nil {
		return "", err
	}
	if hr := u.HR(); hr != "" {
		return fmt.Sprintf("%.3f %s", v, hr), nil
	}
	return fmt.Sprintf("%.3f", v), nil
}

func writeJSONKey(b *strings.Builder, key string) {
	k, _ := json.Marshal(key)
	b.Write(k)
	b.WriteByte(':')
}

func writeJSONString(b *strings.Builder, key, value string) {
	writeJSONKey(b, key)
	v, _ := json.Marshal(value)
	b.Write(v)
}

package frame

import (
	"fmt"

	"gitlab.com/d21d3q/gometers/internal/records"
)

// Explanation annotates the byte at Offset in Raw.
type Explanation struct {
	Offset int
	Text   string
}

// RecordEntry is a decoded record and the offset of its header in Raw.
type RecordEntry struct {
	Offset int
	Record records.Record
}

// AuditSink receives the side effects a content decoder leaves behind for
// debugging: explanations and synthetic records.
type AuditSink interface {
	Explain(offset int, format string, args ...any)
	AddRecord(offset int, rec records.Record) string
}

var _ AuditSink = (*Telegram)(nil)

// Explain appends an annotation for offset. When the last explanation is
// for the same offset the text is appended to it instead.
func (t *Telegram) Explain(offset int, format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	if n := len(t.Explanations); n > 0 && t.Explanations[n-1].Offset == offset {
		t.Explanations[n-1].Text += text
		return
	}
	t.Explanations = append(t.Explanations, Explanation{Offset: offset, Text: text})
}

// AddRecord stores rec in the record map and returns the key it was stored
// under. A record whose key is already taken gets a "_N" suffix.
func (t *Telegram) AddRecord(offset int, rec records.Record) string {
	if t.Records == nil {
		t.Records = map[string]RecordEntry{}
	}
	base := rec.Key
	key := base
	for n := 2; ; n++ {
		if _, taken := t.Records[key]; !taken {
			break
		}
		key = fmt.Sprintf("%s_%d", base, n)
	}
	rec.Key = key
	t.Records[key] = RecordEntry{Offset: offset, Record: rec}
	return key
}

// ResetCycle drops the per-cycle state so the same telegram can be decoded
// again.
func (t *Telegram) ResetCycle() {
	t.Content = nil
	t.Explanations = nil
	t.Records = map[string]RecordEntry{}
}

// ExplainLines renders the explanation log, one line per annotated offset.
func (t *Telegram) ExplainLines() []string {
	lines := make([]string, 0, len(t.Explanations))
	for _, e := range t.Explanations {
		lines = append(lines, fmt.Sprintf("%03d: %s", e.Offset, e.Text))
	}
	return lines
}

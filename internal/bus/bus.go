// Package bus reads telegrams from a line oriented source, such as a radio
// dongle bridge or a simulation file, and hands them to registered callbacks.
package bus

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"gitlab.com/d21d3q/gometers/internal/frame"
)

const simulationPrefix = "telegram="

// Handler receives every telegram read from the bus.
type Handler func(ctx context.Context, t *frame.Telegram)

type Bus struct {
	log *logrus.Entry

	mu       sync.RWMutex
	handlers []Handler
}

func New(log *logrus.Entry) *Bus {
	return &Bus{log: log}
}

// OnTelegram registers h. Handlers run synchronously in registration order.
func (b *Bus) OnTelegram(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Run reads r until EOF or until ctx is done. Lines that do not parse are
// logged and skipped.
func (b *Bus) Run(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		t, err := ParseLine(scanner.Text())
		if err != nil {
			b.log.WithError(err).Warn("skipping line")
			continue
		}
		if t == nil {
			continue
		}
		b.Deliver(ctx, t)
	}
	return scanner.Err()
}

// Deliver passes t to every handler.
func (b *Bus) Deliver(ctx context.Context, t *frame.Telegram) {
	b.mu.RLock()
	handlers := b.handlers
	b.mu.RUnlock()
	for _, h := range handlers {
		h(ctx, t)
	}
}

// ParseLine parses one line. Blank lines and # comments yield nil. Lines of
// the form telegram=|header|payload|+seconds are simulated telegrams; the
// bars split the hex for readability and the +offset is ignored.
func ParseLine(line string) (*frame.Telegram, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil, nil
	}
	simulated := strings.HasPrefix(line, simulationPrefix)
	if simulated {
		var parts []string
		for _, p := range strings.Split(strings.TrimPrefix(line, simulationPrefix), "|") {
			if strings.HasPrefix(p, "+") {
				continue
			}
			parts = append(parts, p)
		}
		line = strings.Join(parts, "")
	}
	raw, err := hex.DecodeString(strings.ReplaceAll(line, " ", ""))
	if err != nil {
		return nil, fmt.Errorf("invalid hex telegram: %w", err)
	}
	t, err := frame.Parse(raw)
	if err != nil {
		return nil, err
	}
	t.Simulated = simulated
	return &t, nil
}

// Package dispatch routes telegrams to the configured meters and forwards
// completed readings to sinks.
package dispatch

import (
	"context"
	"errors"
	"time"

	jujuerrors "github.com/juju/errors"
	"github.com/sirupsen/logrus"

	"gitlab.com/d21d3q/gometers/internal/frame"
	"gitlab.com/d21d3q/gometers/internal/meter"
	"gitlab.com/d21d3q/gometers/internal/metrics"
)

// Sink receives the snapshot of every completed cycle.
type Sink interface {
	Publish(ctx context.Context, s meter.Snapshot) error
}

type Option func(*Dispatcher)

func WithSinks(sinks ...Sink) Option {
	return func(d *Dispatcher) { d.sinks = append(d.sinks, sinks...) }
}

func WithMetrics(c *metrics.Collector) Option {
	return func(d *Dispatcher) { d.metrics = c }
}

// WithDebug logs the explanation of every decoded telegram at debug level.
func WithDebug(on bool) Option {
	return func(d *Dispatcher) { d.debug = on }
}

type Dispatcher struct {
	meters  []meter.Meter
	sinks   []Sink
	metrics *metrics.Collector
	log     *logrus.Entry
	debug   bool
}

func New(meters []meter.Meter, log *logrus.Entry, opts ...Option) *Dispatcher {
	d := &Dispatcher{meters: meters, log: log}
	for _, opt := range opts {
		opt(d)
	}
	if d.metrics == nil {
		d.metrics = metrics.New(nil)
	}
	return d
}

// Handle is Dispatch with the signature of a bus handler.
func (d *Dispatcher) Handle(ctx context.Context, t *frame.Telegram) {
	d.Dispatch(ctx, t)
}

// Dispatch offers t to every meter in order and returns the number of
// completed cycles.
func (d *Dispatcher) Dispatch(ctx context.Context, t *frame.Telegram) int {
	defer d.metrics.Observe(time.Now())
	d.metrics.Received.Inc()

	decoded := 0
	for _, m := range d.meters {
		if d.handle(ctx, m, t) {
			decoded++
		}
	}
	if decoded == 0 {
		d.log.WithField("id", t.ID()).Debug("telegram not decoded by any meter")
	}
	return decoded
}

func (d *Dispatcher) handle(ctx context.Context, m meter.Meter, t *frame.Telegram) bool {
	out, err := m.Handle(t)
	if !out.Matched {
		return false
	}
	labels := []string{m.Name(), m.Driver()}
	log := d.log.WithFields(logrus.Fields{
		"meter":  m.Name(),
		"driver": m.Driver(),
		"id":     t.ID(),
	})
	d.metrics.Matched.WithLabelValues(labels...).Inc()

	for _, diag := range out.Diagnostics {
		switch {
		case errors.Is(diag, meter.ErrKeyRequired):
			d.metrics.MissingKey.WithLabelValues(labels...).Inc()
			log.WithError(diag).Warn("ignoring encrypted telegram")
		case jujuerrors.IsNotSupported(diag):
			d.metrics.SkippedRecords.WithLabelValues(labels...).Inc()
			log.WithError(diag).Debug("skipped record")
		default:
			log.WithError(diag).Debug("decode warning")
		}
	}
	if err != nil {
		d.metrics.Failed.WithLabelValues(labels...).Inc()
		log.WithError(err).WithField("malformed", meter.IsMalformed(err)).Error("decode failed")
		return false
	}
	if !out.Decoded {
		return false
	}
	d.metrics.Decoded.WithLabelValues(labels...).Inc()
	if d.debug {
		for _, line := range t.ExplainLines() {
			log.Debug(line)
		}
	}

	snap := m.Snapshot()
	for _, s := range d.sinks {
		if err := s.Publish(ctx, snap); err != nil {
			log.WithError(err).Error("sink failed")
		}
	}
	return true
}

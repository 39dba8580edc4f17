// Package meter holds what all meter drivers share: the identity filter,
// the decryption gate, the print registry and the per-cycle value store.
package meter

import (
	"sync"
	"time"

	"github.com/juju/errors"

	"gitlab.com/d21d3q/gometers/internal/crypto"
	"gitlab.com/d21d3q/gometers/internal/driver/wmbus"
	"gitlab.com/d21d3q/gometers/internal/frame"
	"gitlab.com/d21d3q/gometers/internal/options"
)

// ErrKeyRequired is reported when an encrypted telegram reaches a meter
// without a key.
var ErrKeyRequired = crypto.ErrKeyRequired

// Config is the configuration of one meter instance.
type Config struct {
	Name         string
	Driver       string
	IDs          []string
	Key          string
	Manufacturer string
	Version      string
	DeviceType   string
	// Now stamps successful cycles; time.Now when nil.
	Now func() time.Time
}

// Info describes a driver family.
type Info struct {
	Driver       string
	// Media is fixed for single-purpose families; empty takes it from the
	// telegram device type.
	Media        string
	Mode         crypto.Mode
	// Manufacturer and DeviceTypes restrict single-family drivers to their
	// own telegrams unless the configuration names a manufacturer or device
	// type itself. Zero values accept anything.
	Manufacturer uint16
	DeviceTypes  []byte
	// Records makes the gate parse the content into DIF/VIF records
	// before the content decoder runs.
	Records      bool
}

// Meter is implemented by one driver type per meter family.
type Meter interface {
	Name() string
	Driver() string
	Matches(t *frame.Telegram) bool
	Handle(t *frame.Telegram) (Outcome, error)
	Snapshot() Snapshot
}

// ContentDecoder turns the content of a telegram into prints and values.
// Side effects meant for debugging go to audit only.
type ContentDecoder interface {
	DecodeContent(t *frame.Telegram, audit frame.AuditSink) (*Decoded, error)
}

// Outcome reports how a telegram went through a meter.
type Outcome struct {
	Matched     bool
	Decoded     bool
	Diagnostics []error
}

// Snapshot is the immutable result of the last successful cycle.
type Snapshot struct {
	Name    string
	Driver  string
	Media   string
	ID      string
	Prints  []Print
	Values  Values
	Updated time.Time
}

// Empty reports whether no cycle has completed yet.
func (s Snapshot) Empty() bool {
	return s.Updated.IsZero()
}

// Lookup returns the print called name.
func (s Snapshot) Lookup(name string) (Print, bool) {
	for _, p := range s.Prints {
		if p.Name == name {
			return p, true
		}
	}
	return Print{}, false
}

// Common implements the driver independent part of a meter. Drivers embed
// it and hand their ContentDecoder to Process.
type Common struct {
	name     string
	info     Info
	identity Identity
	key      []byte
	now      func() time.Time

	cycle sync.Mutex
	mu    sync.RWMutex
	snap  Snapshot
}

// NewCommon validates cfg for a driver described by info.
func NewCommon(cfg Config, info Info) (*Common, error) {
	if cfg.Name == "" {
		return nil, errors.NotValidf("meter without name")
	}
	identity, err := ParseIdentity(cfg.IDs, cfg.Manufacturer, cfg.Version, cfg.DeviceType)
	if err != nil {
		return nil, errors.Annotatef(err, "meter %s", cfg.Name)
	}
	identity = identity.withDefaults(info.Manufacturer, info.DeviceTypes)
	key, err := options.ParseKeyHex(cfg.Key)
	if err != nil {
		return nil, errors.NewNotValid(err, "meter "+cfg.Name)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Common{
		name:     cfg.Name,
		info:     info,
		identity: identity,
		key:      key,
		now:      now,
		snap:     Snapshot{Name: cfg.Name, Driver: info.Driver, Media: info.Media},
	}, nil
}

func (c *Common) Name() string   { return c.name }
func (c *Common) Driver() string { return c.info.Driver }

// Matches applies the identity filter.
func (c *Common) Matches(t *frame.Telegram) bool {
	return c.identity.Matches(t)
}

// Snapshot returns the result of the last successful cycle.
func (c *Common) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// Process runs one decode cycle: identity filter, decryption gate, content
// decoding and commit. The previous snapshot stays visible unless the cycle
// completes.
func (c *Common) Process(t *frame.Telegram, dec ContentDecoder) (Outcome, error) {
	if !c.identity.Matches(t) {
		return Outcome{}, nil
	}
	c.cycle.Lock()
	defer c.cycle.Unlock()

	out := Outcome{Matched: true}
	if t.Encrypted() && len(c.key) == 0 && !t.Simulated {
		out.Diagnostics = append(out.Diagnostics, ErrKeyRequired)
		return out, nil
	}

	t.ResetCycle()
	content := t.Payload
	if len(c.key) > 0 {
		var err error
		content, err = crypto.Decrypt(t, c.key, c.info.Mode)
		if err != nil {
			return out, errors.Annotatef(err, "meter %s", c.name)
		}
	}
	t.Content = content

	if c.info.Records {
		if err := wmbus.FillRecords(t); err != nil {
			return out, errors.NewNotValid(err, "meter "+c.name+": record framing")
		}
	}

	decoded, err := dec.DecodeContent(t, t)
	if err != nil {
		return out, errors.Annotatef(err, "meter %s", c.name)
	}
	c.commit(t, decoded)
	out.Decoded = true
	out.Diagnostics = append(out.Diagnostics, decoded.Warnings...)
	return out, nil
}

func (c *Common) commit(t *frame.Telegram, d *Decoded) {
	media := c.info.Media
	if media == "" {
		media = frame.MediaName(t.DeviceType)
	}
	snap := Snapshot{
		Name:    c.name,
		Driver:  c.info.Driver,
		Media:   media,
		ID:      t.ID(),
		Prints:  d.Prints,
		Values:  d.Values,
		Updated: c.now(),
	}
	c.mu.Lock()
	c.snap = snap
	c.mu.Unlock()
}

// IsMalformed reports whether err means the telegram payload could not be
// structurally decoded.
func IsMalformed(err error) bool {
	return errors.IsNotValid(err)
}

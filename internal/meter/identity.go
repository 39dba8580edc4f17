package meter

import (
	"bytes"
	"strings"

	"github.com/juju/errors"

	"gitlab.com/d21d3q/gometers/internal/frame"
	"gitlab.com/d21d3q/gometers/internal/options"
)

// Identity is the set of predicates deciding whether a telegram belongs to a
// meter instance. Unset predicates always hold.
type Identity struct {
	hasMfct     bool
	mfct        uint16
	hasVersion  bool
	version     byte
	hasType     bool
	deviceType  byte
	deviceTypes []byte
	ids         []string
}

// ParseIdentity builds an Identity from configuration strings. Empty strings
// leave the corresponding predicate unset.
func ParseIdentity(ids []string, manufacturer, version, deviceType string) (Identity, error) {
	var id Identity
	for _, expr := range splitExpressions(ids) {
		if err := ValidateIDExpression(expr); err != nil {
			return Identity{}, err
		}
		id.ids = append(id.ids, expr)
	}
	if strings.TrimSpace(manufacturer) != "" {
		m, err := options.ParseManufacturer(manufacturer)
		if err != nil {
			return Identity{}, errors.NewNotValid(err, "manufacturer")
		}
		id.hasMfct, id.mfct = true, m
	}
	if strings.TrimSpace(version) != "" {
		v, err := options.ParseHexByte(version)
		if err != nil {
			return Identity{}, errors.NewNotValid(err, "version")
		}
		id.hasVersion, id.version = true, v
	}
	if strings.TrimSpace(deviceType) != "" {
		d, err := options.ParseHexByte(deviceType)
		if err != nil {
			return Identity{}, errors.NewNotValid(err, "device type")
		}
		id.hasType, id.deviceType = true, d
	}
	return id, nil
}

// withDefaults fills the manufacturer and device type predicates a driver
// family implies, unless they were configured explicitly. Default device
// types form an any-of set.
func (i Identity) withDefaults(mfct uint16, deviceTypes []byte) Identity {
	if !i.hasMfct && mfct != 0 {
		i.hasMfct, i.mfct = true, mfct
	}
	if !i.hasType && len(deviceTypes) > 0 {
		i.deviceTypes = append([]byte(nil), deviceTypes...)
	}
	return i
}

// Matches is the conjunction of all configured predicates and the id
// expressions against the telegram header.
func (i Identity) Matches(t *frame.Telegram) bool {
	if i.hasMfct && i.mfct != t.Manufacturer {
		return false
	}
	if i.hasType && i.deviceType != t.DeviceType {
		return false
	}
	if len(i.deviceTypes) > 0 && !bytes.Contains(i.deviceTypes, []byte{t.DeviceType}) {
		return false
	}
	if i.hasVersion && i.version != t.Version {
		return false
	}
	return MatchID(t.ID(), i.ids)
}

// MatchID matches id against a list of expressions. An expression is a full
// id, a prefix followed by '*', or '*' alone; a leading '!' excludes the
// matching ids. The id matches when no exclusion matches and some inclusion
// does, so a list of exclusions alone matches nothing. An empty list matches
// every id.
func MatchID(id string, exprs []string) bool {
	if len(exprs) == 0 {
		return true
	}
	included := false
	for _, expr := range exprs {
		negate := strings.HasPrefix(expr, "!")
		pattern := strings.TrimPrefix(expr, "!")
		if !matchPattern(id, pattern) {
			continue
		}
		if negate {
			return false
		}
		included = true
	}
	return included
}

func matchPattern(id, pattern string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(strings.ToUpper(id), strings.ToUpper(prefix))
	}
	return strings.EqualFold(id, pattern)
}

// ValidateIDExpression rejects expressions that can never match an eight
// digit meter id.
func ValidateIDExpression(expr string) error {
	pattern := strings.TrimPrefix(expr, "!")
	prefix, wildcard := strings.CutSuffix(pattern, "*")
	if strings.ContainsAny(prefix, "*!") {
		return errors.NotValidf("id expression %q", expr)
	}
	for _, r := range prefix {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return errors.NotValidf("id expression %q", expr)
		}
	}
	if (!wildcard && len(prefix) != 8) || len(prefix) > 8 {
		return errors.NotValidf("id expression %q", expr)
	}
	return nil
}

func splitExpressions(ids []string) []string {
	var out []string
	for _, s := range ids {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

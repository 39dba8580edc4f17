package meter

import "strconv"

// Value is a decoded datum: either a Number or a Text. The set of
// implementations is closed to this package.
type Value interface {
	String() string
	isValue()
}

// Number is a numeric decoded datum, already scaled.
type Number float64

// Text is a textual decoded datum.
type Text string

func (Number) isValue() {}
func (Text) isValue()   {}

func (n Number) String() string { return strconv.FormatFloat(float64(n), 'f', -1, 64) }
func (s Text) String() string   { return string(s) }

// Values holds the data decoded in one cycle, keyed by record identifier.
type Values map[string]Value

// Number returns the numeric value stored under key.
func (v Values) Number(key string) (float64, bool) {
	n, ok := v[key].(Number)
	return float64(n), ok
}

// Text returns the textual value stored under key.
func (v Values) Text(key string) (string, bool) {
	s, ok := v[key].(Text)
	return string(s), ok
}

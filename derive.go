package raypak

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jpalmerr/raypak/internal/poller"
)

// Snapshot is the raw device state from one completed refresh cycle.
//
// Snapshots are immutable once published; do not modify Values. The zero
// Snapshot (Revision 0) means no refresh has succeeded yet.
type Snapshot struct {
	// Values maps pin identifiers ("v52", "v111", ...) to raw values as
	// received: strings, [json.Number], or booleans.
	Values map[string]any

	// Connected is the hardware connectivity flag from the same cycle.
	Connected bool

	// Revision increases by one with every successful refresh.
	Revision uint64

	// FetchedAt is when the cycle completed.
	FetchedAt time.Time
}

// Value returns the raw value for pin and whether it was reported.
func (s Snapshot) Value(pin string) (any, bool) {
	v, ok := s.Values[pin]
	return v, ok
}

// IsZero reports whether no refresh has succeeded yet.
func (s Snapshot) IsZero() bool {
	return s.Revision == 0
}

func fromPoller(s poller.Snapshot) Snapshot {
	return Snapshot(s)
}

// Source names where a derivation reads its raw input: a device pin or the
// coordinator's hardware connectivity flag.
type Source struct {
	pin          string
	connectivity bool
}

// PinSource returns a [Source] reading the given pin.
func PinSource(pin string) Source { return Source{pin: pin} }

// ConnectivitySource returns a [Source] reading the connectivity flag.
func ConnectivitySource() Source { return Source{connectivity: true} }

// Pin returns the pin name, or "" for the connectivity source.
func (s Source) Pin() string { return s.pin }

// IsConnectivity reports whether s reads the connectivity flag.
func (s Source) IsConnectivity() bool { return s.connectivity }

// String returns the pin name or "connectivity".
func (s Source) String() string {
	if s.connectivity {
		return "connectivity"
	}
	return s.pin
}

// Role is the kind of consumer a derived value is presented as.
type Role string

const (
	RoleSensor       Role = "sensor"
	RoleBinarySensor Role = "binary_sensor"
)

// StateClass describes how a numeric value evolves over time.
type StateClass string

const (
	StateClassNone            StateClass = ""
	StateClassMeasurement     StateClass = "measurement"
	StateClassTotalIncreasing StateClass = "total_increasing"
)

// Converter turns a raw value into a [Value].
//
// The raw value is never nil when a Converter is called. A Converter
// returns an error for input it cannot interpret; [Derive] turns that into
// an absent value.
type Converter func(raw any) (Value, error)

// Descriptor fully determines one externally observable derived value.
type Descriptor struct {
	// Key is the stable machine name ("inlet_temperature").
	Key string

	// Name is the display name ("Inlet temperature").
	Name string

	Source Source

	// Unit is the unit of measurement ("°F", "%", "h"), if any.
	Unit string

	Role Role

	// DeviceClass hints at presentation ("temperature", "connectivity").
	DeviceClass string

	StateClass StateClass

	Convert Converter
}

// Reading is a derived value together with its presentation metadata.
type Reading struct {
	Key         string     `json:"key"`
	Name        string     `json:"name"`
	Value       Value      `json:"value"`
	Unit        string     `json:"unit,omitempty"`
	Role        Role       `json:"role"`
	DeviceClass string     `json:"device_class,omitempty"`
	StateClass  StateClass `json:"state_class,omitempty"`
}

// Derive computes d's value from s.
//
// Derive never fails and never panics: a source that was not reported, a
// null raw value, a conversion error, or a converter panic all yield
// [Absent]. The connectivity source is absent until the first refresh
// has succeeded.
func Derive(d Descriptor, s Snapshot) (v Value) {
	var raw any
	if d.Source.IsConnectivity() {
		if s.IsZero() {
			return Absent()
		}
		raw = s.Connected
	} else {
		var ok bool
		raw, ok = s.Value(d.Source.Pin())
		if !ok {
			return Absent()
		}
	}
	if raw == nil || d.Convert == nil {
		return Absent()
	}

	defer func() {
		if r := recover(); r != nil {
			v = Absent()
		}
	}()

	converted, err := d.Convert(raw)
	if err != nil {
		return Absent()
	}
	return converted
}

// DeriveAll derives every registered value from s, in registry order.
func DeriveAll(s Snapshot) []Reading {
	readings := make([]Reading, 0, len(registry))
	for _, d := range registry {
		readings = append(readings, Reading{
			Key:         d.Key,
			Name:        d.Name,
			Value:       Derive(d, s),
			Unit:        d.Unit,
			Role:        d.Role,
			DeviceClass: d.DeviceClass,
			StateClass:  d.StateClass,
		})
	}
	return readings
}

// errNotNumeric is returned by converters for input that is not a number.
var errNotNumeric = errors.New("not a finite number")

// RoundedNumber converts numeric input and rounds it to places decimals.
func RoundedNumber(places int) Converter {
	return func(raw any) (Value, error) {
		f, err := parseNumber(raw)
		if err != nil {
			return Absent(), err
		}
		return Number(roundTo(f, places)), nil
	}
}

// TruncatedInteger converts numeric input, dropping any fraction toward zero.
// "12.9" becomes 12 and "-3.5" becomes -3.
func TruncatedInteger() Converter {
	return func(raw any) (Value, error) {
		i, err := truncate(raw)
		if err != nil {
			return Absent(), err
		}
		return Integer(i), nil
	}
}

// Flag converts numeric input to a boolean: true when the value truncated
// toward zero is non-zero. "1" and "2.0" are true; "0" and "0.5" are false.
func Flag() Converter {
	return func(raw any) (Value, error) {
		i, err := truncate(raw)
		if err != nil {
			return Absent(), err
		}
		return Bool(i != 0), nil
	}
}

// PlainText formats the raw value as text without modification.
func PlainText() Converter {
	return func(raw any) (Value, error) {
		s, err := formatRaw(raw)
		if err != nil {
			return Absent(), err
		}
		return Text(s), nil
	}
}

// QuotedText formats the raw value as text and strips enclosing double
// quotes, which the device API includes in some text fields.
func QuotedText() Converter {
	return func(raw any) (Value, error) {
		s, err := formatRaw(raw)
		if err != nil {
			return Absent(), err
		}
		return Text(strings.Trim(s, `"`)), nil
	}
}

// parseNumber accepts numbers, numeric strings (surrounding space ignored)
// and booleans (1 or 0). NaN and infinities are rejected.
func parseNumber(raw any) (float64, error) {
	var f float64
	switch x := raw.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case int32:
		f = float64(x)
	case uint64:
		f = float64(x)
	case json.Number:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x.String()), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", errNotNumeric, x.String())
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", errNotNumeric, x)
		}
		f = parsed
	case bool:
		if x {
			f = 1
		}
	default:
		return 0, fmt.Errorf("%w: unsupported type %T", errNotNumeric, raw)
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errNotNumeric
	}
	return f, nil
}

func truncate(raw any) (int64, error) {
	f, err := parseNumber(raw)
	if err != nil {
		return 0, err
	}
	t := math.Trunc(f)
	if t >= math.MaxInt64 || t < math.MinInt64 {
		return 0, fmt.Errorf("%w: %v out of integer range", errNotNumeric, f)
	}
	return int64(t), nil
}

// roundTo rounds half to even on the exact binary value, the same way the
// decimal formatting does.
func roundTo(f float64, places int) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(f, 'f', places, 64), 64)
	if err != nil || r == 0 {
		// also normalizes negative zero
		return 0
	}
	return r
}

// formatRaw renders scalar raw values as text.
func formatRaw(raw any) (string, error) {
	switch x := raw.(type) {
	case string:
		return x, nil
	case json.Number:
		return x.String(), nil
	case bool:
		return strconv.FormatBool(x), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	default:
		return "", fmt.Errorf("unsupported text value of type %T", raw)
	}
}

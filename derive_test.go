package raypak

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshotOf(values map[string]any) Snapshot {
	return Snapshot{Values: values, Connected: true, Revision: 1, FetchedAt: time.Now()}
}

func mustLookup(t *testing.T, key string) Descriptor {
	t.Helper()
	d, ok := Lookup(key)
	require.True(t, ok, "descriptor %q not registered", key)
	return d
}

func TestDerive_InletTemperatureRounded(t *testing.T) {
	v := Derive(mustLookup(t, "inlet_temperature"), snapshotOf(map[string]any{"v52": "78.45"}))

	n, ok := v.AsNumber()
	require.True(t, ok, "want number, got %s", v.Kind())
	assert.Equal(t, 78.5, n)
}

func TestDerive_MissingPinIsAbsent(t *testing.T) {
	v := Derive(setpointDescriptor, snapshotOf(map[string]any{"v52": "78.45"}))
	assert.True(t, v.IsAbsent())
}

func TestDerive_ModeFromPin(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]any
		want   Mode
	}{
		{"heat", map[string]any{"v53": "1"}, ModeHeat},
		{"off", map[string]any{"v53": "0"}, ModeOff},
		{"missing", map[string]any{}, ModeOff},
		{"malformed", map[string]any{"v53": "on"}, ModeOff},
		{"numeric", map[string]any{"v53": json.Number("1")}, ModeHeat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, modeOf(snapshotOf(tt.values)))
		})
	}
}

func TestDerive_Totality(t *testing.T) {
	raws := []any{
		nil,
		"",
		"   ",
		"abc",
		"12abc",
		"-7.25",
		"1e309",
		"NaN",
		"true",
		`"quoted"`,
		true,
		false,
		json.Number("3.14159"),
		json.Number("not-a-number"),
		12.5,
		math.NaN(),
		math.Inf(-1),
		int64(math.MaxInt64),
		map[string]any{"nested": 1},
		[]any{1, 2},
	}

	for _, d := range append(Descriptors(), setpointDescriptor, modeDescriptor) {
		for _, raw := range raws {
			var v Value
			require.NotPanics(t, func() {
				v = Derive(d, snapshotOf(map[string]any{d.Source.Pin(): raw}))
			}, "descriptor %s raw %#v", d.Key, raw)
			assert.Contains(t, []ValueKind{KindAbsent, KindBool, KindNumber, KindInteger, KindText}, v.Kind())
		}
	}
}

func TestDerive_ConverterPanicIsAbsent(t *testing.T) {
	d := Descriptor{
		Key:     "boom",
		Source:  PinSource("v1"),
		Convert: func(any) (Value, error) { panic("converter bug") },
	}
	var v Value
	require.NotPanics(t, func() { v = Derive(d, snapshotOf(map[string]any{"v1": "1"})) })
	assert.True(t, v.IsAbsent())
}

func TestDerive_NilConverterIsAbsent(t *testing.T) {
	d := Descriptor{Key: "none", Source: PinSource("v1")}
	assert.True(t, Derive(d, snapshotOf(map[string]any{"v1": "1"})).IsAbsent())
}

func TestDerive_Connectivity(t *testing.T) {
	d := mustLookup(t, "hardware_connected")

	assert.True(t, Derive(d, Snapshot{}).IsAbsent(), "absent before first refresh")

	on, ok := Derive(d, Snapshot{Revision: 1, Connected: true}).AsBool()
	require.True(t, ok)
	assert.True(t, on)

	off, ok := Derive(d, Snapshot{Revision: 2, Connected: false}).AsBool()
	require.True(t, ok)
	assert.False(t, off)
}

func TestRoundedNumber(t *testing.T) {
	tests := []struct {
		name   string
		places int
		raw    any
		want   float64
	}{
		{"string", 1, "78.45", 78.5},
		{"padded", 1, " 80.04 ", 80},
		{"json number", 2, json.Number("1.005"), 1},
		{"two places", 2, "12.346", 12.35},
		{"integer string", 1, "104", 104},
		{"negative", 1, "-3.25", -3.2},
		{"negative zero", 1, "-0.01", 0},
		{"float", 1, 71.06, 71.1},
		{"bool true", 1, true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := RoundedNumber(tt.places)(tt.raw)
			require.NoError(t, err)
			n, ok := v.AsNumber()
			require.True(t, ok)
			assert.Equal(t, tt.want, n)
			assert.False(t, math.Signbit(n) && n == 0, "negative zero")
		})
	}
}

func TestRoundedNumber_Rejects(t *testing.T) {
	for _, raw := range []any{"", "abc", "NaN", "Inf", "1e999", math.NaN(), struct{}{}} {
		_, err := RoundedNumber(1)(raw)
		assert.Error(t, err, "raw %#v", raw)
	}
}

func TestTruncatedInteger(t *testing.T) {
	tests := []struct {
		raw  any
		want int64
	}{
		{"12", 12},
		{"12.9", 12},
		{"-3.5", -3},
		{json.Number("1520"), 1520},
		{"0.99", 0},
	}

	for _, tt := range tests {
		v, err := TruncatedInteger()(tt.raw)
		require.NoError(t, err)
		i, ok := v.AsInteger()
		require.True(t, ok)
		assert.Equal(t, tt.want, i, "raw %#v", tt.raw)
	}

	_, err := TruncatedInteger()("1e30")
	assert.Error(t, err, "out of integer range")
}

func TestFlag(t *testing.T) {
	tests := []struct {
		raw  any
		want bool
	}{
		{"1", true},
		{"2.0", true},
		{"-1", true},
		{"0", false},
		{"0.5", false},
		{true, true},
		{false, false},
	}

	for _, tt := range tests {
		v, err := Flag()(tt.raw)
		require.NoError(t, err)
		b, ok := v.AsBool()
		require.True(t, ok)
		assert.Equal(t, tt.want, b, "raw %#v", tt.raw)
	}

	_, err := Flag()("on")
	assert.Error(t, err)
}

func TestTextConverters(t *testing.T) {
	tests := []struct {
		name string
		conv Converter
		raw  any
		want string
	}{
		{"plain keeps quotes", PlainText(), `"E03"`, `"E03"`},
		{"plain number", PlainText(), json.Number("12"), "12"},
		{"plain bool", PlainText(), true, "true"},
		{"quoted strips", QuotedText(), `"120 VAC"`, "120 VAC"},
		{"quoted unquoted", QuotedText(), "No Error", "No Error"},
		{"quoted empty", QuotedText(), `""`, ""},
		{"float", PlainText(), 1.5, "1.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := tt.conv(tt.raw)
			require.NoError(t, err)
			s, ok := v.AsText()
			require.True(t, ok)
			assert.Equal(t, tt.want, s)
		})
	}

	_, err := PlainText()(map[string]any{})
	assert.Error(t, err)
}

func TestDeriveAll(t *testing.T) {
	snap := snapshotOf(map[string]any{
		"v52":  "78.45",
		"v5":   "81.2",
		"v11":  "0",
		"v13":  `"No Error"`,
		"v45":  "1520.7",
		"v53":  "1",
		"v162": "0",
	})

	readings := DeriveAll(snap)
	require.Len(t, readings, len(Descriptors()))

	byKey := make(map[string]Reading, len(readings))
	for _, r := range readings {
		byKey[r.Key] = r
	}

	assert.Equal(t, "inlet_temperature", readings[0].Key, "registry order")
	assert.Equal(t, Number(78.5), byKey["inlet_temperature"].Value)
	assert.Equal(t, "°F", byKey["inlet_temperature"].Unit)
	assert.Equal(t, Text("No Error"), byKey["error_text"].Value)
	assert.Equal(t, Integer(1520), byKey["heating_cycles"].Value)
	assert.Equal(t, StateClassTotalIncreasing, byKey["heating_cycles"].StateClass)
	assert.Equal(t, Text("1"), byKey["operation_mode"].Value)
	assert.Equal(t, Bool(true), byKey["hardware_connected"].Value)
	assert.Equal(t, Bool(false), byKey["vsp_run_status"].Value)
	assert.True(t, byKey["flue_temperature"].Value.IsAbsent())
}

func TestReading_JSON(t *testing.T) {
	r := Reading{
		Key: "inlet_temperature", Name: "Inlet temperature", Value: Number(78.5),
		Unit: "°F", Role: RoleSensor, DeviceClass: "temperature", StateClass: StateClassMeasurement,
	}
	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"key": "inlet_temperature",
		"name": "Inlet temperature",
		"value": 78.5,
		"unit": "°F",
		"role": "sensor",
		"device_class": "temperature",
		"state_class": "measurement"
	}`, string(data))

	data, err = json.Marshal(Reading{Key: "flow_rate", Name: "Flow rate", Role: RoleSensor})
	require.NoError(t, err)
	assert.JSONEq(t, `{"key":"flow_rate","name":"Flow rate","value":null,"role":"sensor"}`, string(data))
}

func TestDescriptors_ReturnsCopy(t *testing.T) {
	ds := Descriptors()
	ds[0].Key = "changed"

	_, ok := Lookup("changed")
	assert.False(t, ok)
	assert.Equal(t, "inlet_temperature", Descriptors()[0].Key)
}

func TestDescriptors_UniqueKeys(t *testing.T) {
	seen := make(map[string]bool)
	for _, d := range Descriptors() {
		assert.False(t, seen[d.Key], "duplicate key %q", d.Key)
		seen[d.Key] = true
		assert.NotNil(t, d.Convert, "descriptor %q has no converter", d.Key)
		assert.NotEmpty(t, d.Name)
	}
}

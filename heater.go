package raypak

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// Mode is the heater operation mode.
type Mode string

const (
	ModeOff  Mode = "off"
	ModeHeat Mode = "heat"
)

// Setpoint bounds in °F.
const (
	MinTemperature = 60.0
	MaxTemperature = 104.0
)

var (
	// ErrTemperatureOutOfRange is returned by [Heater.SetTarget] for a
	// setpoint outside [MinTemperature, MaxTemperature].
	ErrTemperatureOutOfRange = errors.New("temperature out of range")

	// ErrUnknownMode is returned by [Heater.SetMode] for a mode that is not
	// one of [Heater.Operations].
	ErrUnknownMode = errors.New("unknown operation mode")
)

var (
	setpointDescriptor = Descriptor{
		Key: "target_temperature", Name: "Target temperature",
		Source: PinSource(PinSetpoint), Unit: unitFahrenheit,
		Role: RoleSensor, DeviceClass: "temperature",
		Convert: RoundedNumber(1),
	}
	modeDescriptor = Descriptor{
		Key: "heating", Name: "Heating",
		Source:  PinSource(PinOperationMode),
		Role:    RoleBinarySensor,
		Convert: Flag(),
	}
)

// controller is what a Heater reads from and writes through.
type controller interface {
	Current() Snapshot
	Write(ctx context.Context, pin, value string) error
}

// Heater is a read/write view of the pool heater's setpoint and mode.
//
// Reads derive from the current snapshot. Writes go to the device and then
// request a refresh; no local state is kept, so a new setpoint or mode only
// shows up once the following refresh confirms it.
type Heater struct {
	ctl controller
}

// HeaterState is the heater view at one snapshot, ready for JSON encoding.
type HeaterState struct {
	CurrentTemperature Value   `json:"current_temperature"`
	TargetTemperature  Value   `json:"target_temperature"`
	Mode               Mode    `json:"mode"`
	MinTemperature     float64 `json:"min_temperature"`
	MaxTemperature     float64 `json:"max_temperature"`
	Operations         []Mode  `json:"operations"`
}

func newHeater(ctl controller) *Heater {
	return &Heater{ctl: ctl}
}

// CurrentTemperature returns the inlet water temperature in °F.
func (h *Heater) CurrentTemperature() Value {
	d, _ := Lookup("inlet_temperature")
	return Derive(d, h.ctl.Current())
}

// TargetTemperature returns the setpoint in °F.
func (h *Heater) TargetTemperature() Value {
	return Derive(setpointDescriptor, h.ctl.Current())
}

// Mode returns [ModeHeat] when the mode pin is non-zero and [ModeOff]
// otherwise, including when it is missing or malformed.
func (h *Heater) Mode() Mode {
	return modeOf(h.ctl.Current())
}

func modeOf(s Snapshot) Mode {
	if on, ok := Derive(modeDescriptor, s).AsBool(); ok && on {
		return ModeHeat
	}
	return ModeOff
}

// Operations returns the supported modes.
func (h *Heater) Operations() []Mode {
	return []Mode{ModeOff, ModeHeat}
}

// State returns the heater view of the current snapshot.
func (h *Heater) State() HeaterState {
	return heaterStateOf(h.ctl.Current())
}

func heaterStateOf(s Snapshot) HeaterState {
	inlet, _ := Lookup("inlet_temperature")
	return HeaterState{
		CurrentTemperature: Derive(inlet, s),
		TargetTemperature:  Derive(setpointDescriptor, s),
		Mode:               modeOf(s),
		MinTemperature:     MinTemperature,
		MaxTemperature:     MaxTemperature,
		Operations:         []Mode{ModeOff, ModeHeat},
	}
}

// SetTarget writes a new setpoint. The device takes whole degrees, so the
// fraction is dropped: 82.7 is written as 82.
func (h *Heater) SetTarget(ctx context.Context, temperature float64) error {
	if math.IsNaN(temperature) || temperature < MinTemperature || temperature > MaxTemperature {
		return fmt.Errorf("%w: %v not in [%v, %v]", ErrTemperatureOutOfRange, temperature, MinTemperature, MaxTemperature)
	}
	return h.ctl.Write(ctx, PinSetpoint, strconv.Itoa(int(temperature)))
}

// SetMode writes the operation mode: 0 for off, 1 for heat.
func (h *Heater) SetMode(ctx context.Context, mode Mode) error {
	var value string
	switch mode {
	case ModeOff:
		value = "0"
	case ModeHeat:
		value = "1"
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	return h.ctl.Write(ctx, PinOperationMode, value)
}

package raypak

import "slices"

// Device pins read or written by this package.
const (
	PinInletTemperature  = "v52"
	PinOutletTemperature = "v5"
	PinFlueTemperature   = "v6"
	PinOperationMode     = "v53"
	PinIgnitionVoltage   = "v55"
	PinSetpoint          = "v111"
	PinFlameCurrent      = "v10"
	PinFaultCode         = "v11"
	PinErrorText         = "v13"
	PinCapacity          = "v105"
	PinHeatingCycles     = "v45"
	PinHeatingTime       = "v25"
	PinPowerCycles       = "v27"
	PinFlowPressure      = "v29"
	PinFlowRate          = "v7"
	PinVSPSpeed          = "v14"
	PinVSPRunStatus      = "v162"
	PinFiringRate        = "v160"
)

const (
	unitFahrenheit = "°F"
	unitPercent    = "%"
	unitHours      = "h"
	unitMicroamp   = "µA"
)

// registry is fixed for the process lifetime. Order is presentation order.
var registry = []Descriptor{
	{
		Key: "inlet_temperature", Name: "Inlet temperature",
		Source: PinSource(PinInletTemperature), Unit: unitFahrenheit,
		Role: RoleSensor, DeviceClass: "temperature", StateClass: StateClassMeasurement,
		Convert: RoundedNumber(1),
	},
	{
		Key: "outlet_temperature", Name: "Outlet temperature",
		Source: PinSource(PinOutletTemperature), Unit: unitFahrenheit,
		Role: RoleSensor, DeviceClass: "temperature", StateClass: StateClassMeasurement,
		Convert: RoundedNumber(1),
	},
	{
		Key: "flue_temperature", Name: "Flue temperature",
		Source: PinSource(PinFlueTemperature), Unit: unitFahrenheit,
		Role: RoleSensor, DeviceClass: "temperature", StateClass: StateClassMeasurement,
		Convert: RoundedNumber(1),
	},
	{
		Key: "ignition_voltage", Name: "Ignition voltage",
		Source: PinSource(PinIgnitionVoltage),
		Role:   RoleSensor,
		// reported as text, sometimes quoted
		Convert: QuotedText(),
	},
	{
		Key: "flame_current", Name: "Flame current",
		Source: PinSource(PinFlameCurrent), Unit: unitMicroamp,
		Role: RoleSensor, StateClass: StateClassMeasurement,
		Convert: RoundedNumber(1),
	},
	{
		Key: "fault_code", Name: "Fault code",
		Source:  PinSource(PinFaultCode),
		Role:    RoleSensor,
		Convert: PlainText(),
	},
	{
		Key: "error_text", Name: "Error text",
		Source:  PinSource(PinErrorText),
		Role:    RoleSensor,
		Convert: QuotedText(),
	},
	{
		Key: "capacity", Name: "Capacity",
		Source: PinSource(PinCapacity), Unit: unitPercent,
		Role: RoleSensor, StateClass: StateClassMeasurement,
		Convert: RoundedNumber(1),
	},
	{
		Key: "heating_cycles", Name: "Heating cycles",
		Source: PinSource(PinHeatingCycles),
		Role:   RoleSensor, StateClass: StateClassTotalIncreasing,
		Convert: TruncatedInteger(),
	},
	{
		Key: "heating_time", Name: "Heating time",
		Source: PinSource(PinHeatingTime), Unit: unitHours,
		Role: RoleSensor, DeviceClass: "duration", StateClass: StateClassTotalIncreasing,
		Convert: RoundedNumber(1),
	},
	{
		Key: "power_cycles", Name: "Power cycles",
		Source: PinSource(PinPowerCycles),
		Role:   RoleSensor, StateClass: StateClassTotalIncreasing,
		Convert: TruncatedInteger(),
	},
	{
		Key: "flow_pressure", Name: "Flow pressure",
		Source: PinSource(PinFlowPressure),
		Role:   RoleSensor, StateClass: StateClassMeasurement,
		Convert: RoundedNumber(2),
	},
	{
		Key: "flow_rate", Name: "Flow rate",
		Source: PinSource(PinFlowRate),
		Role:   RoleSensor, StateClass: StateClassMeasurement,
		Convert: RoundedNumber(1),
	},
	{
		Key: "vsp_speed", Name: "VSP speed",
		Source: PinSource(PinVSPSpeed), Unit: unitPercent,
		Role: RoleSensor, StateClass: StateClassMeasurement,
		Convert: RoundedNumber(1),
	},
	{
		Key: "firing_rate", Name: "Firing rate",
		Source: PinSource(PinFiringRate), Unit: unitPercent,
		Role: RoleSensor, StateClass: StateClassMeasurement,
		Convert: RoundedNumber(1),
	},
	{
		Key: "operation_mode", Name: "Operation mode",
		Source:  PinSource(PinOperationMode),
		Role:    RoleSensor,
		Convert: PlainText(),
	},
	{
		Key: "hardware_connected", Name: "Hardware connected",
		Source: ConnectivitySource(),
		Role:   RoleBinarySensor, DeviceClass: "connectivity",
		Convert: Flag(),
	},
	{
		Key: "vsp_run_status", Name: "VSP run status",
		Source: PinSource(PinVSPRunStatus),
		Role:   RoleBinarySensor, DeviceClass: "running",
		Convert: Flag(),
	},
}

// Descriptors returns a copy of the registry in presentation order.
func Descriptors() []Descriptor {
	return slices.Clone(registry)
}

// Lookup returns the descriptor registered under key.
func Lookup(key string) (Descriptor, bool) {
	i := slices.IndexFunc(registry, func(d Descriptor) bool { return d.Key == key })
	if i < 0 {
		return Descriptor{}, false
	}
	return registry[i], true
}

package extend

import (
	"errors"
	"fmt"
	"slices"
)

var (
	colorModes = []string{"xy", "hs"}

	setpointNames = []string{
		"occupiedHeatingSetpoint",
		"occupiedCoolingSetpoint",
		"unoccupiedHeatingSetpoint",
		"unoccupiedCoolingSetpoint",
	}

	systemModes = []string{
		"off", "auto", "cool", "heat", "emergency_heating",
		"precooling", "fan_only", "dry", "sleep",
	}

	zoneTypes = []string{
		"generic", "contact", "occupancy", "smoke", "water_leak", "rain",
		"carbon_monoxide", "sos", "vibration", "alarm", "gas",
	}

	zoneAttributes = []string{
		"alarm_1", "alarm_2", "tamper", "battery_low", "supervision_reports",
		"restore_reports", "ac_status", "test", "trouble", "battery_defect",
	}

	coveringControls = []string{"lift", "tilt"}
)

// Mireds accepted by the Color Control cluster.
const (
	minMireds = 1
	maxMireds = 0xFEFF
)

// Validate checks the kind and its parameters. All problems are joined.
func (e Extension) Validate() error {
	if !Known(e.Kind) {
		return fmt.Errorf("%q: %w", e.Kind, ErrUnknownKind)
	}

	var errs []error
	if e.Light != nil && e.Kind != KindLight {
		errs = append(errs, invalid(e.Kind, "light options not accepted"))
	}
	if e.Lock != nil && e.Kind != KindLock {
		errs = append(errs, invalid(e.Kind, "lock options not accepted"))
	}
	if e.Thermostat != nil && e.Kind != KindThermostat {
		errs = append(errs, invalid(e.Kind, "thermostat options not accepted"))
	}
	if e.IASZone != nil && e.Kind != KindIASZoneAlarm {
		errs = append(errs, invalid(e.Kind, "iasZone options not accepted"))
	}
	if e.WindowCovering != nil && e.Kind != KindWindowCovering {
		errs = append(errs, invalid(e.Kind, "windowCovering options not accepted"))
	}

	switch e.Kind {
	case KindLight:
		errs = append(errs, validateLight(e.Light)...)
	case KindLock:
		errs = append(errs, validateLock(e.Lock)...)
	case KindThermostat:
		errs = append(errs, validateThermostat(e.Thermostat)...)
	case KindIASZoneAlarm:
		errs = append(errs, validateIASZone(e.IASZone)...)
	case KindWindowCovering:
		errs = append(errs, validateWindowCovering(e.WindowCovering)...)
	}
	return errors.Join(errs...)
}

func validateLight(o *LightOptions) []error {
	if o == nil {
		return nil
	}
	var errs []error
	if ct := o.ColorTemp; ct != nil {
		lo, hi := ct.Range[0], ct.Range[1]
		if lo < minMireds || hi > maxMireds || lo >= hi {
			errs = append(errs, invalid(KindLight, "colorTemp range [%d, %d] invalid", lo, hi))
		}
	}
	if c := o.Color; c != nil {
		if len(c.Modes) == 0 {
			errs = append(errs, invalid(KindLight, "color modes empty"))
		}
		errs = append(errs, checkSubset(KindLight, "color mode", c.Modes, colorModes)...)
	}
	return errs
}

func validateLock(o *LockOptions) []error {
	if o == nil {
		return []error{invalid(KindLock, "pinCodeCount required")}
	}
	if o.PinCodeCount <= 0 || o.PinCodeCount > 0xFFFF {
		return []error{invalid(KindLock, "pinCodeCount %d out of range", o.PinCodeCount)}
	}
	return nil
}

func validateThermostat(o *ThermostatOptions) []error {
	if o == nil {
		return []error{invalid(KindThermostat, "options required")}
	}
	var errs []error
	if len(o.Setpoints) == 0 {
		errs = append(errs, invalid(KindThermostat, "at least one setpoint required"))
	}
	seen := make(map[string]bool)
	for _, sp := range o.Setpoints {
		if !slices.Contains(setpointNames, sp.Name) {
			errs = append(errs, invalid(KindThermostat, "unknown setpoint %q", sp.Name))
			continue
		}
		if seen[sp.Name] {
			errs = append(errs, invalid(KindThermostat, "setpoint %q repeated", sp.Name))
		}
		seen[sp.Name] = true
		if sp.Min >= sp.Max {
			errs = append(errs, invalid(KindThermostat, "setpoint %q: min %g not below max %g", sp.Name, sp.Min, sp.Max))
		}
		if sp.Step <= 0 || sp.Step > sp.Max-sp.Min {
			errs = append(errs, invalid(KindThermostat, "setpoint %q: step %g out of range", sp.Name, sp.Step))
		}
	}
	if len(o.SystemModes) == 0 {
		errs = append(errs, invalid(KindThermostat, "system modes empty"))
	}
	errs = append(errs, checkSubset(KindThermostat, "system mode", o.SystemModes, systemModes)...)
	return errs
}

func validateIASZone(o *IASZoneOptions) []error {
	if o == nil {
		return []error{invalid(KindIASZoneAlarm, "options required")}
	}
	var errs []error
	if !slices.Contains(zoneTypes, o.ZoneType) {
		errs = append(errs, invalid(KindIASZoneAlarm, "unknown zone type %q", o.ZoneType))
	}
	if len(o.ZoneAttributes) == 0 {
		errs = append(errs, invalid(KindIASZoneAlarm, "zone attributes empty"))
	}
	errs = append(errs, checkSubset(KindIASZoneAlarm, "zone attribute", o.ZoneAttributes, zoneAttributes)...)
	return errs
}

func validateWindowCovering(o *WindowCoveringOptions) []error {
	if o == nil || len(o.Controls) == 0 {
		return []error{invalid(KindWindowCovering, "controls empty")}
	}
	return checkSubset(KindWindowCovering, "control", o.Controls, coveringControls)
}

func checkSubset(kind Kind, what string, values, allowed []string) []error {
	var errs []error
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		if !slices.Contains(allowed, v) {
			errs = append(errs, invalid(kind, "unknown %s %q", what, v))
		}
		if seen[v] {
			errs = append(errs, invalid(kind, "%s %q repeated", what, v))
		}
		seen[v] = true
	}
	return errs
}

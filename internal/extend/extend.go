// Package extend models the Zigbee2MQTT modernExtend vocabulary that uzigbee
// descriptors are built from. An Extension names one capability and carries
// the parameters passed to it; the bridge supplies the behavior.
package extend

import (
	"errors"
	"fmt"
	"slices"
)

// Kind is the modernExtend function name.
type Kind string

const (
	KindOnOff             Kind = "onOff"
	KindIdentify          Kind = "identify"
	KindLight             Kind = "light"
	KindCommandsOnOff     Kind = "commandsOnOff"
	KindCommandsLevelCtrl Kind = "commandsLevelCtrl"
	KindElectricityMeter  Kind = "electricityMeter"
	KindTemperature       Kind = "temperature"
	KindHumidity          Kind = "humidity"
	KindPressure          Kind = "pressure"
	KindLock              Kind = "lock"
	KindThermostat        Kind = "thermostat"
	KindOccupancy         Kind = "occupancy"
	KindIASZoneAlarm      Kind = "iasZoneAlarm"
	KindWindowCovering    Kind = "windowCovering"
)

var kinds = []Kind{
	KindOnOff, KindIdentify, KindLight, KindCommandsOnOff, KindCommandsLevelCtrl,
	KindElectricityMeter, KindTemperature, KindHumidity, KindPressure, KindLock,
	KindThermostat, KindOccupancy, KindIASZoneAlarm, KindWindowCovering,
}

// Kinds returns the supported vocabulary in canonical order.
func Kinds() []Kind {
	return slices.Clone(kinds)
}

// Known reports whether k is part of the vocabulary.
func Known(k Kind) bool {
	return slices.Contains(kinds, k)
}

var (
	// ErrUnknownKind is returned for an extension name outside the vocabulary.
	ErrUnknownKind = errors.New("unknown extension")
	// ErrInvalidOption is returned when an extension parameter is out of range.
	ErrInvalidOption = errors.New("invalid extension option")
)

// Extension is one capability invocation in a descriptor's extend list.
// At most one options field is set, and only the one matching Kind.
type Extension struct {
	Kind           Kind                   `json:"kind" yaml:"kind"`
	Light          *LightOptions          `json:"light,omitempty" yaml:"light,omitempty"`
	Lock           *LockOptions           `json:"lock,omitempty" yaml:"lock,omitempty"`
	Thermostat     *ThermostatOptions     `json:"thermostat,omitempty" yaml:"thermostat,omitempty"`
	IASZone        *IASZoneOptions        `json:"iasZone,omitempty" yaml:"iasZone,omitempty"`
	WindowCovering *WindowCoveringOptions `json:"windowCovering,omitempty" yaml:"windowCovering,omitempty"`
}

// LightOptions configures light(). A zero value is a plain dimmable light.
type LightOptions struct {
	ColorTemp *ColorTempOptions `json:"colorTemp,omitempty" yaml:"colorTemp,omitempty"`
	Color     *ColorOptions     `json:"color,omitempty" yaml:"color,omitempty"`
}

// ColorTempOptions holds the supported color temperature range in mireds.
type ColorTempOptions struct {
	Range [2]int `json:"range" yaml:"range"`
}

// ColorOptions enables color control in the listed modes ("xy", "hs").
type ColorOptions struct {
	Modes       []string `json:"modes" yaml:"modes"`
	ApplyRedFix bool     `json:"applyRedFix" yaml:"applyRedFix"`
}

// LockOptions configures lock().
type LockOptions struct {
	PinCodeCount int `json:"pinCodeCount" yaml:"pinCodeCount"`
}

// Setpoint bounds one thermostat setpoint attribute, in °C.
type Setpoint struct {
	Name string  `json:"name" yaml:"name"`
	Min  float64 `json:"min" yaml:"min"`
	Max  float64 `json:"max" yaml:"max"`
	Step float64 `json:"step" yaml:"step"`
}

// ThermostatOptions configures thermostat(). Setpoints keep their order.
type ThermostatOptions struct {
	Setpoints   []Setpoint `json:"setpoints" yaml:"setpoints"`
	SystemModes []string   `json:"systemModes" yaml:"systemModes"`
}

// IASZoneOptions configures iasZoneAlarm().
type IASZoneOptions struct {
	ZoneType       string   `json:"zoneType" yaml:"zoneType"`
	ZoneAttributes []string `json:"zoneAttributes" yaml:"zoneAttributes"`
}

// WindowCoveringOptions configures windowCovering().
type WindowCoveringOptions struct {
	Controls []string `json:"controls" yaml:"controls"`
}

func OnOff() Extension             { return Extension{Kind: KindOnOff} }
func Identify() Extension          { return Extension{Kind: KindIdentify} }
func CommandsOnOff() Extension     { return Extension{Kind: KindCommandsOnOff} }
func CommandsLevelCtrl() Extension { return Extension{Kind: KindCommandsLevelCtrl} }
func ElectricityMeter() Extension  { return Extension{Kind: KindElectricityMeter} }
func Temperature() Extension       { return Extension{Kind: KindTemperature} }
func Humidity() Extension          { return Extension{Kind: KindHumidity} }
func Pressure() Extension          { return Extension{Kind: KindPressure} }
func Occupancy() Extension         { return Extension{Kind: KindOccupancy} }

// Light returns light(). Pass LightOptions{} for a dimmable light with no color.
func Light(opts LightOptions) Extension {
	if opts.ColorTemp == nil && opts.Color == nil {
		return Extension{Kind: KindLight}
	}
	return Extension{Kind: KindLight, Light: &opts}
}

func Lock(opts LockOptions) Extension {
	return Extension{Kind: KindLock, Lock: &opts}
}

func Thermostat(opts ThermostatOptions) Extension {
	return Extension{Kind: KindThermostat, Thermostat: &opts}
}

func IASZoneAlarm(opts IASZoneOptions) Extension {
	return Extension{Kind: KindIASZoneAlarm, IASZone: &opts}
}

func WindowCovering(opts WindowCoveringOptions) Extension {
	return Extension{Kind: KindWindowCovering, WindowCovering: &opts}
}

// Clone returns a deep copy; descriptors never share option objects.
func (e Extension) Clone() Extension {
	cp := Extension{Kind: e.Kind}
	if e.Light != nil {
		l := LightOptions{}
		if e.Light.ColorTemp != nil {
			ct := *e.Light.ColorTemp
			l.ColorTemp = &ct
		}
		if e.Light.Color != nil {
			c := ColorOptions{Modes: slices.Clone(e.Light.Color.Modes), ApplyRedFix: e.Light.Color.ApplyRedFix}
			l.Color = &c
		}
		cp.Light = &l
	}
	if e.Lock != nil {
		l := *e.Lock
		cp.Lock = &l
	}
	if e.Thermostat != nil {
		cp.Thermostat = &ThermostatOptions{
			Setpoints:   slices.Clone(e.Thermostat.Setpoints),
			SystemModes: slices.Clone(e.Thermostat.SystemModes),
		}
	}
	if e.IASZone != nil {
		cp.IASZone = &IASZoneOptions{
			ZoneType:       e.IASZone.ZoneType,
			ZoneAttributes: slices.Clone(e.IASZone.ZoneAttributes),
		}
	}
	if e.WindowCovering != nil {
		cp.WindowCovering = &WindowCoveringOptions{Controls: slices.Clone(e.WindowCovering.Controls)}
	}
	return cp
}

// String renders the invocation name, e.g. "lock".
func (e Extension) String() string {
	return string(e.Kind)
}

// CloneAll deep-copies an extend list.
func CloneAll(exts []Extension) []Extension {
	if exts == nil {
		return nil
	}
	out := make([]Extension, len(exts))
	for i, e := range exts {
		out[i] = e.Clone()
	}
	return out
}

func invalid(kind Kind, format string, args ...any) error {
	return fmt.Errorf("%s: %s: %w", kind, fmt.Sprintf(format, args...), ErrInvalidOption)
}

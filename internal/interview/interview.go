// Package interview checks the Basic cluster identity a device reports during
// the bridge's interview and matches it against the registry.
package interview

import (
	"errors"
	"fmt"
	"strings"

	"uzigbee-devices/internal/devicedb"
	"uzigbee-devices/internal/extend"
)

// Basic cluster PowerSource values (ZCL 3.2.2.2.8).
const (
	PowerSourceUnknown                = 0x00
	PowerSourceMainsSinglePhase       = 0x01
	PowerSourceMainsThreePhase        = 0x02
	PowerSourceBattery                = 0x03
	PowerSourceDC                     = 0x04
	PowerSourceEmergencyMainsConstant = 0x05
	PowerSourceEmergencyMainsTransfer = 0x06
)

// DefaultModel is the identifier firmware reports before one is configured.
const DefaultModel = "uzb_device"

var ErrUnknownModel = errors.New("no descriptor claims model identifier")

// Identity is the Basic cluster data the bridge reads during interview.
type Identity struct {
	ManufacturerName string `json:"manufacturer_name"`
	ModelIdentifier  string `json:"model_identifier"`
	DateCode         string `json:"date_code,omitempty"`
	SWBuildID        string `json:"sw_build_id,omitempty"`
	PowerSource      *int   `json:"power_source,omitempty"`
}

// Result is the outcome of Validate. Errors stop the bridge from mapping the
// device; warnings only degrade what it shows.
type Result struct {
	OK       bool     `json:"ok"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Defaults is the identity firmware starts with.
func Defaults() Identity {
	ps := PowerSourceMainsSinglePhase
	return Identity{
		ManufacturerName: devicedb.Vendor,
		ModelIdentifier:  DefaultModel,
		PowerSource:      &ps,
	}
}

// Validate checks the minimum identity required for interview mapping.
func Validate(id Identity) Result {
	r := Result{Errors: []string{}, Warnings: []string{}}

	if id.ManufacturerName == "" {
		r.Errors = append(r.Errors, "missing manufacturer_name")
	}
	if id.ModelIdentifier == "" {
		r.Errors = append(r.Errors, "missing model_identifier")
	}
	switch {
	case id.PowerSource == nil:
		r.Errors = append(r.Errors, "missing power_source")
	case *id.PowerSource < PowerSourceUnknown || *id.PowerSource > PowerSourceEmergencyMainsTransfer:
		r.Errors = append(r.Errors, "power_source out of range")
	}

	if id.SWBuildID == "" {
		r.Warnings = append(r.Warnings, "sw_build_id missing")
	}
	if id.DateCode == "" {
		r.Warnings = append(r.Warnings, "date_code missing")
	}

	r.OK = len(r.Errors) == 0
	return r
}

// Lookuper finds a descriptor by reported model identifier.
type Lookuper interface {
	Lookup(zigbeeModel string) *devicedb.Descriptor
}

// Match returns the descriptor that claims the identity's model identifier.
func Match(db Lookuper, id Identity) (*devicedb.Descriptor, error) {
	if id.ModelIdentifier == "" {
		return nil, fmt.Errorf("match: %w: empty identifier", ErrUnknownModel)
	}
	d := db.Lookup(id.ModelIdentifier)
	if d == nil {
		return nil, fmt.Errorf("match %q: %w", id.ModelIdentifier, ErrUnknownModel)
	}
	return d, nil
}

var powerSourceNames = map[string]int{
	"unknown":                             PowerSourceUnknown,
	"mains (single phase)":                PowerSourceMainsSinglePhase,
	"mains (3 phase)":                     PowerSourceMainsThreePhase,
	"battery":                             PowerSourceBattery,
	"dc source":                           PowerSourceDC,
	"emergency mains constantly powered":  PowerSourceEmergencyMainsConstant,
	"emergency mains and transfer switch": PowerSourceEmergencyMainsTransfer,
}

// PowerSourceFromString maps the bridge's textual power source back to the
// attribute value. Unrecognised text returns false.
func PowerSourceFromString(s string) (int, bool) {
	v, ok := powerSourceNames[strings.ToLower(strings.TrimSpace(s))]
	return v, ok
}

// Category is the dashboard entity class the bridge derives for d
// (light, switch, sensor, binary_sensor, lock, climate, cover or action).
func Category(d devicedb.Descriptor) string {
	has := func(k extend.Kind) bool {
		_, ok := d.Extension(k)
		return ok
	}
	switch {
	case has(extend.KindLock):
		return "lock"
	case has(extend.KindThermostat):
		return "climate"
	case has(extend.KindWindowCovering):
		return "cover"
	case has(extend.KindLight):
		return "light"
	case has(extend.KindElectricityMeter):
		return "switch"
	case has(extend.KindOnOff):
		return "light"
	case has(extend.KindCommandsOnOff), has(extend.KindCommandsLevelCtrl):
		return "action"
	case has(extend.KindOccupancy), has(extend.KindIASZoneAlarm):
		return "binary_sensor"
	case has(extend.KindTemperature), has(extend.KindHumidity), has(extend.KindPressure):
		return "sensor"
	}
	return "action"
}

// Report is the interview check of one device.
type Report struct {
	IEEEAddress  string   `json:"ieee_address,omitempty"`
	FriendlyName string   `json:"friendly_name,omitempty"`
	Identity     Identity `json:"identity"`
	Result       Result   `json:"result"`
	Model        string   `json:"model,omitempty"` // matched descriptor
	Category     string   `json:"category,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// Check validates id and matches it against db.
func Check(db Lookuper, id Identity) Report {
	r := Report{Identity: id, Result: Validate(id)}
	d, err := Match(db, id)
	if err != nil {
		r.Error = err.Error()
		return r
	}
	r.Model = d.Model
	r.Category = Category(*d)
	return r
}

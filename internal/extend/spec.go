package extend

import (
	"strings"

	"uzigbee-devices/internal/zcl"
)

// Reporting intervals in seconds, matching the bridge's defaults.
const (
	intervalImmediate uint16 = 0
	interval10s       uint16 = 10
	intervalMinute    uint16 = 60
	intervalHour      uint16 = 3600
)

// Reporting is one attribute reporting configuration the bridge applies on
// configure for this extension.
type Reporting struct {
	Cluster   uint16 `json:"cluster"`
	Attribute uint16 `json:"attribute"`
	Min       uint16 `json:"min"`
	Max       uint16 `json:"max"`
	Change    int    `json:"change"`
}

// Spec is the static cluster footprint of an extension.
type Spec struct {
	Kind      Kind        `json:"kind"`
	Input     []uint16    `json:"input,omitempty"`  // server clusters the device hosts
	Output    []uint16    `json:"output,omitempty"` // client clusters the device sends commands from
	Reporting []Reporting `json:"reporting,omitempty"`
	Exposes   []string    `json:"exposes"`
}

func report(cluster, attr, min, max uint16, change int) Reporting {
	return Reporting{Cluster: cluster, Attribute: attr, Min: min, Max: max, Change: change}
}

// Spec derives the footprint from the kind and its options.
func (e Extension) Spec() Spec {
	s := Spec{Kind: e.Kind}
	switch e.Kind {
	case KindOnOff:
		s.Input = []uint16{zcl.ClusterOnOff}
		s.Reporting = []Reporting{report(zcl.ClusterOnOff, 0x0000, intervalImmediate, intervalHour, 0)}
		s.Exposes = []string{"state"}

	case KindIdentify:
		s.Input = []uint16{zcl.ClusterIdentify}
		s.Exposes = []string{"identify"}

	case KindLight:
		s.Input = []uint16{zcl.ClusterOnOff, zcl.ClusterLevelControl}
		s.Reporting = []Reporting{
			report(zcl.ClusterOnOff, 0x0000, intervalImmediate, intervalHour, 0),
			report(zcl.ClusterLevelControl, 0x0000, interval10s, intervalHour, 1),
		}
		s.Exposes = []string{"state", "brightness"}
		if e.Light != nil && (e.Light.ColorTemp != nil || e.Light.Color != nil) {
			s.Input = append(s.Input, zcl.ClusterColorControl)
		}
		if e.Light != nil && e.Light.ColorTemp != nil {
			s.Reporting = append(s.Reporting, report(zcl.ClusterColorControl, 0x0007, interval10s, intervalHour, 1))
			s.Exposes = append(s.Exposes, "color_temp")
		}
		if e.Light != nil && e.Light.Color != nil {
			for _, mode := range e.Light.Color.Modes {
				switch mode {
				case "xy":
					s.Reporting = append(s.Reporting,
						report(zcl.ClusterColorControl, 0x0003, interval10s, intervalHour, 1),
						report(zcl.ClusterColorControl, 0x0004, interval10s, intervalHour, 1))
				case "hs":
					s.Reporting = append(s.Reporting,
						report(zcl.ClusterColorControl, 0x0000, interval10s, intervalHour, 1),
						report(zcl.ClusterColorControl, 0x0001, interval10s, intervalHour, 1))
				}
				s.Exposes = append(s.Exposes, "color_"+mode)
			}
		}

	case KindCommandsOnOff:
		s.Output = []uint16{zcl.ClusterOnOff}
		s.Exposes = []string{"action"}

	case KindCommandsLevelCtrl:
		s.Output = []uint16{zcl.ClusterLevelControl}
		s.Exposes = []string{"action"}

	case KindElectricityMeter:
		s.Input = []uint16{zcl.ClusterElectricalMeasurement, zcl.ClusterMetering}
		s.Reporting = []Reporting{
			report(zcl.ClusterElectricalMeasurement, 0x050B, interval10s, intervalMinute, 5),
			report(zcl.ClusterElectricalMeasurement, 0x0505, interval10s, intervalMinute, 5),
			report(zcl.ClusterElectricalMeasurement, 0x0508, interval10s, intervalMinute, 50),
			report(zcl.ClusterMetering, 0x0000, interval10s, intervalHour, 10),
		}
		s.Exposes = []string{"power", "voltage", "current", "energy"}

	case KindTemperature:
		s.Input = []uint16{zcl.ClusterTemperatureMeasurement}
		s.Reporting = []Reporting{report(zcl.ClusterTemperatureMeasurement, 0x0000, interval10s, intervalHour, 100)}
		s.Exposes = []string{"temperature"}

	case KindHumidity:
		s.Input = []uint16{zcl.ClusterRelativeHumidity}
		s.Reporting = []Reporting{report(zcl.ClusterRelativeHumidity, 0x0000, interval10s, intervalHour, 100)}
		s.Exposes = []string{"humidity"}

	case KindPressure:
		s.Input = []uint16{zcl.ClusterPressureMeasurement}
		s.Reporting = []Reporting{report(zcl.ClusterPressureMeasurement, 0x0000, interval10s, intervalHour, 1)}
		s.Exposes = []string{"pressure"}

	case KindLock:
		s.Input = []uint16{zcl.ClusterDoorLock}
		s.Reporting = []Reporting{report(zcl.ClusterDoorLock, 0x0000, intervalImmediate, intervalHour, 0)}
		s.Exposes = []string{"state", "lock_state", "pin_code"}

	case KindThermostat:
		s.Input = []uint16{zcl.ClusterThermostat}
		s.Reporting = []Reporting{report(zcl.ClusterThermostat, 0x0000, interval10s, intervalHour, 10)}
		s.Exposes = []string{"local_temperature"}
		if e.Thermostat != nil {
			for _, sp := range e.Thermostat.Setpoints {
				if attr := setpointAttribute(sp.Name); attr != 0 {
					s.Reporting = append(s.Reporting, report(zcl.ClusterThermostat, attr, interval10s, intervalHour, 10))
				}
				s.Exposes = append(s.Exposes, snakeCase(sp.Name))
			}
		}
		s.Reporting = append(s.Reporting, report(zcl.ClusterThermostat, 0x001C, intervalImmediate, intervalHour, 0))
		s.Exposes = append(s.Exposes, "system_mode", "running_state")

	case KindOccupancy:
		s.Input = []uint16{zcl.ClusterOccupancySensing}
		s.Reporting = []Reporting{report(zcl.ClusterOccupancySensing, 0x0000, intervalImmediate, intervalHour, 0)}
		s.Exposes = []string{"occupancy"}

	case KindIASZoneAlarm:
		// Zone status arrives as ZoneStatusChangeNotification, not reports.
		s.Input = []uint16{zcl.ClusterIASZone}
		if e.IASZone != nil {
			for _, attr := range e.IASZone.ZoneAttributes {
				s.Exposes = append(s.Exposes, zoneExpose(e.IASZone.ZoneType, attr))
			}
		}

	case KindWindowCovering:
		s.Input = []uint16{zcl.ClusterWindowCovering}
		s.Exposes = []string{"state"}
		if e.WindowCovering != nil {
			for _, c := range e.WindowCovering.Controls {
				switch c {
				case "lift":
					s.Reporting = append(s.Reporting, report(zcl.ClusterWindowCovering, 0x0008, interval10s, intervalHour, 1))
					s.Exposes = append(s.Exposes, "position")
				case "tilt":
					s.Reporting = append(s.Reporting, report(zcl.ClusterWindowCovering, 0x0009, interval10s, intervalHour, 1))
					s.Exposes = append(s.Exposes, "tilt")
				}
			}
		}
	}
	return s
}

func setpointAttribute(name string) uint16 {
	switch name {
	case "occupiedCoolingSetpoint":
		return 0x0011
	case "occupiedHeatingSetpoint":
		return 0x0012
	case "unoccupiedCoolingSetpoint":
		return 0x0013
	case "unoccupiedHeatingSetpoint":
		return 0x0014
	}
	return 0
}

// zoneExpose names the state property for alarm_1, which the bridge labels
// after the zone type.
func zoneExpose(zoneType, attr string) string {
	if attr != "alarm_1" {
		return attr
	}
	switch zoneType {
	case "contact", "occupancy", "smoke", "water_leak", "gas", "vibration", "carbon_monoxide":
		return zoneType
	}
	return attr
}

func snakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Lookup returns the footprint of kind with no options set.
func Lookup(kind Kind) (Spec, bool) {
	if !Known(kind) {
		return Spec{}, false
	}
	return Extension{Kind: kind}.Spec(), true
}

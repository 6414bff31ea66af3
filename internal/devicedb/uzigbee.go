package devicedb

import "uzigbee-devices/internal/extend"

func uzb(model, description string, exts ...extend.Extension) Descriptor {
	return Descriptor{
		ZigbeeModel: []string{model},
		Model:       model,
		Vendor:      Vendor,
		Description: description,
		Extend:      exts,
	}
}

// Definitions returns the built-in uzigbee registry in publication order.
// Every call builds fresh values.
func Definitions() []Descriptor {
	return []Descriptor{
		uzb("uzb_Light", "MicroPython ZigBee On/Off Light",
			extend.OnOff(), extend.Identify()),
		uzb("uzb_DimmableLight", "MicroPython ZigBee Dimmable Light",
			extend.Light(extend.LightOptions{})),
		uzb("uzb_ColorLight", "MicroPython ZigBee Color Light",
			extend.Light(extend.LightOptions{
				ColorTemp: &extend.ColorTempOptions{Range: [2]int{153, 500}},
				Color:     &extend.ColorOptions{Modes: []string{"xy", "hs"}, ApplyRedFix: false},
			})),
		uzb("uzb_Switch", "MicroPython ZigBee On/Off Switch Controller",
			extend.CommandsOnOff()),
		uzb("uzb_DimmableSwitch", "MicroPython ZigBee Dimmable Switch Controller",
			extend.CommandsOnOff(), extend.CommandsLevelCtrl()),
		uzb("uzb_PowerOutlet", "MicroPython ZigBee Smart Plug",
			extend.OnOff(), extend.ElectricityMeter()),
		uzb("uzb_TemperatureSensor", "MicroPython ZigBee Temperature Sensor",
			extend.Temperature()),
		uzb("uzb_HumiditySensor", "MicroPython ZigBee Humidity Sensor",
			extend.Humidity()),
		uzb("uzb_PressureSensor", "MicroPython ZigBee Pressure Sensor",
			extend.Pressure()),
		uzb("uzb_ClimateSensor", "MicroPython ZigBee Climate Sensor (Temperature, Humidity, Pressure)",
			extend.Temperature(), extend.Humidity(), extend.Pressure()),
		uzb("uzb_DoorLock", "MicroPython ZigBee Door Lock",
			extend.Lock(extend.LockOptions{PinCodeCount: 30})),
		uzb("uzb_DoorLockController", "MicroPython ZigBee Door Lock Controller (command source)",
			extend.Identify()),
		uzb("uzb_Thermostat", "MicroPython ZigBee Thermostat",
			extend.Thermostat(extend.ThermostatOptions{
				Setpoints: []extend.Setpoint{
					{Name: "occupiedHeatingSetpoint", Min: 5, Max: 30, Step: 0.5},
				},
				SystemModes: []string{"off", "heat"},
			})),
		uzb("uzb_OccupancySensor", "MicroPython ZigBee Occupancy Sensor",
			extend.Occupancy()),
		uzb("uzb_IASZone", "MicroPython ZigBee IAS Zone (generic)",
			extend.IASZoneAlarm(extend.IASZoneOptions{
				ZoneType:       "generic",
				ZoneAttributes: []string{"alarm_1", "alarm_2", "tamper", "battery_low"},
			})),
		uzb("uzb_ContactSensor", "MicroPython ZigBee Contact Sensor",
			extend.IASZoneAlarm(extend.IASZoneOptions{
				ZoneType:       "contact",
				ZoneAttributes: []string{"alarm_1", "tamper", "battery_low"},
			})),
		uzb("uzb_MotionSensor", "MicroPython ZigBee Motion Sensor",
			extend.IASZoneAlarm(extend.IASZoneOptions{
				ZoneType:       "occupancy",
				ZoneAttributes: []string{"alarm_1", "tamper", "battery_low"},
			})),
		uzb("uzb_WindowCovering", "MicroPython ZigBee Window Covering",
			extend.WindowCovering(extend.WindowCoveringOptions{Controls: []string{"lift", "tilt"}})),
	}
}

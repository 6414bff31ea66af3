package zcl

// Cluster IDs referenced by the capability extensions.
const (
	ClusterBasic                  uint16 = 0x0000
	ClusterPowerConfiguration     uint16 = 0x0001
	ClusterIdentify               uint16 = 0x0003
	ClusterOnOff                  uint16 = 0x0006
	ClusterLevelControl           uint16 = 0x0008
	ClusterDoorLock               uint16 = 0x0101
	ClusterWindowCovering         uint16 = 0x0102
	ClusterThermostat             uint16 = 0x0201
	ClusterColorControl           uint16 = 0x0300
	ClusterTemperatureMeasurement uint16 = 0x0402
	ClusterPressureMeasurement    uint16 = 0x0403
	ClusterRelativeHumidity       uint16 = 0x0405
	ClusterOccupancySensing       uint16 = 0x0406
	ClusterIASZone                uint16 = 0x0500
	ClusterMetering               uint16 = 0x0702
	ClusterElectricalMeasurement  uint16 = 0x0B04
)

const (
	rd  = AccessRead
	rw  = AccessRead | AccessWrite
	rp  = AccessRead | AccessReport
	rwp = AccessRead | AccessWrite | AccessReport
)

func toServer(id uint8, name string) CommandDef {
	return CommandDef{ID: id, Name: name, Received: true}
}

func toClient(id uint8, name string) CommandDef {
	return CommandDef{ID: id, Name: name}
}

// Standard returns the clusters uzigbee devices expose. Only the attributes
// and commands the extensions touch are listed.
func Standard() []ClusterDef {
	return []ClusterDef{
		{
			ID: ClusterBasic, Name: "Basic",
			Attributes: []AttributeDef{
				{ID: 0x0000, Name: "ZCLVersion", Type: TypeUint8, Access: rd},
				{ID: 0x0004, Name: "ManufacturerName", Type: TypeCharStr, Access: rd},
				{ID: 0x0005, Name: "ModelIdentifier", Type: TypeCharStr, Access: rd},
				{ID: 0x0006, Name: "DateCode", Type: TypeCharStr, Access: rd},
				{ID: 0x0007, Name: "PowerSource", Type: TypeEnum8, Access: rd},
				{ID: 0x4000, Name: "SWBuildID", Type: TypeCharStr, Access: rd},
			},
		},
		{
			ID: ClusterPowerConfiguration, Name: "Power Configuration",
			Attributes: []AttributeDef{
				{ID: 0x0020, Name: "BatteryVoltage", Type: TypeUint8, Access: rp},
				{ID: 0x0021, Name: "BatteryPercentageRemaining", Type: TypeUint8, Access: rp},
			},
		},
		{
			ID: ClusterIdentify, Name: "Identify",
			Attributes: []AttributeDef{
				{ID: 0x0000, Name: "IdentifyTime", Type: TypeUint16, Access: rw},
			},
			Commands: []CommandDef{
				toServer(0x00, "Identify"),
				toServer(0x01, "IdentifyQuery"),
				toServer(0x40, "TriggerEffect"),
			},
		},
		{
			ID: ClusterOnOff, Name: "On/Off",
			Attributes: []AttributeDef{
				{ID: 0x0000, Name: "OnOff", Type: TypeBool, Access: rp},
				{ID: 0x4003, Name: "StartUpOnOff", Type: TypeEnum8, Access: rw},
			},
			Commands: []CommandDef{
				toServer(0x00, "Off"),
				toServer(0x01, "On"),
				toServer(0x02, "Toggle"),
			},
		},
		{
			ID: ClusterLevelControl, Name: "Level Control",
			Attributes: []AttributeDef{
				{ID: 0x0000, Name: "CurrentLevel", Type: TypeUint8, Access: rp},
				{ID: 0x0010, Name: "OnOffTransitionTime", Type: TypeUint16, Access: rw},
				{ID: 0x4000, Name: "StartUpCurrentLevel", Type: TypeUint8, Access: rw},
			},
			Commands: []CommandDef{
				toServer(0x00, "MoveToLevel"),
				toServer(0x01, "Move"),
				toServer(0x02, "Step"),
				toServer(0x03, "Stop"),
				toServer(0x04, "MoveToLevelWithOnOff"),
				toServer(0x05, "MoveWithOnOff"),
				toServer(0x06, "StepWithOnOff"),
				toServer(0x07, "StopWithOnOff"),
			},
		},
		{
			ID: ClusterDoorLock, Name: "Door Lock",
			Attributes: []AttributeDef{
				{ID: 0x0000, Name: "LockState", Type: TypeEnum8, Access: rp},
				{ID: 0x0001, Name: "LockType", Type: TypeEnum8, Access: rd},
				{ID: 0x0002, Name: "ActuatorEnabled", Type: TypeBool, Access: rd},
				{ID: 0x0012, Name: "NumberOfPINUsersSupported", Type: TypeUint16, Access: rd},
				{ID: 0x0017, Name: "MaxPINCodeLength", Type: TypeUint8, Access: rd},
				{ID: 0x0018, Name: "MinPINCodeLength", Type: TypeUint8, Access: rd},
			},
			Commands: []CommandDef{
				toServer(0x00, "LockDoor"),
				toServer(0x01, "UnlockDoor"),
				toServer(0x02, "Toggle"),
				toServer(0x05, "SetPINCode"),
				toServer(0x06, "GetPINCode"),
				toServer(0x07, "ClearPINCode"),
			},
		},
		{
			ID: ClusterWindowCovering, Name: "Window Covering",
			Attributes: []AttributeDef{
				{ID: 0x0000, Name: "WindowCoveringType", Type: TypeEnum8, Access: rd},
				{ID: 0x0008, Name: "CurrentPositionLiftPercentage", Type: TypeUint8, Access: rp},
				{ID: 0x0009, Name: "CurrentPositionTiltPercentage", Type: TypeUint8, Access: rp},
			},
			Commands: []CommandDef{
				toServer(0x00, "UpOpen"),
				toServer(0x01, "DownClose"),
				toServer(0x02, "Stop"),
				toServer(0x05, "GoToLiftPercentage"),
				toServer(0x08, "GoToTiltPercentage"),
			},
		},
		{
			ID: ClusterThermostat, Name: "Thermostat",
			Attributes: []AttributeDef{
				{ID: 0x0000, Name: "LocalTemperature", Type: TypeInt16, Access: rp},
				{ID: 0x0011, Name: "OccupiedCoolingSetpoint", Type: TypeInt16, Access: rwp},
				{ID: 0x0012, Name: "OccupiedHeatingSetpoint", Type: TypeInt16, Access: rwp},
				{ID: 0x0013, Name: "UnoccupiedCoolingSetpoint", Type: TypeInt16, Access: rw},
				{ID: 0x0014, Name: "UnoccupiedHeatingSetpoint", Type: TypeInt16, Access: rw},
				{ID: 0x001B, Name: "ControlSequenceOfOperation", Type: TypeEnum8, Access: rw},
				{ID: 0x001C, Name: "SystemMode", Type: TypeEnum8, Access: rwp},
				{ID: 0x0029, Name: "RunningState", Type: TypeBitmap16, Access: rp},
			},
			Commands: []CommandDef{
				toServer(0x00, "SetpointRaiseLower"),
			},
		},
		{
			ID: ClusterColorControl, Name: "Color Control",
			Attributes: []AttributeDef{
				{ID: 0x0000, Name: "CurrentHue", Type: TypeUint8, Access: rp},
				{ID: 0x0001, Name: "CurrentSaturation", Type: TypeUint8, Access: rp},
				{ID: 0x0003, Name: "CurrentX", Type: TypeUint16, Access: rp},
				{ID: 0x0004, Name: "CurrentY", Type: TypeUint16, Access: rp},
				{ID: 0x0007, Name: "ColorTemperatureMireds", Type: TypeUint16, Access: rp},
				{ID: 0x0008, Name: "ColorMode", Type: TypeEnum8, Access: rd},
				{ID: 0x400A, Name: "ColorCapabilities", Type: TypeBitmap16, Access: rd},
				{ID: 0x400B, Name: "ColorTempPhysicalMinMireds", Type: TypeUint16, Access: rd},
				{ID: 0x400C, Name: "ColorTempPhysicalMaxMireds", Type: TypeUint16, Access: rd},
			},
			Commands: []CommandDef{
				toServer(0x00, "MoveToHue"),
				toServer(0x03, "MoveToSaturation"),
				toServer(0x06, "MoveToHueAndSaturation"),
				toServer(0x07, "MoveToColor"),
				toServer(0x0A, "MoveToColorTemperature"),
			},
		},
		{
			ID: ClusterTemperatureMeasurement, Name: "Temperature Measurement",
			Attributes: []AttributeDef{
				{ID: 0x0000, Name: "MeasuredValue", Type: TypeInt16, Access: rp},
				{ID: 0x0001, Name: "MinMeasuredValue", Type: TypeInt16, Access: rd},
				{ID: 0x0002, Name: "MaxMeasuredValue", Type: TypeInt16, Access: rd},
			},
		},
		{
			ID: ClusterPressureMeasurement, Name: "Pressure Measurement",
			Attributes: []AttributeDef{
				{ID: 0x0000, Name: "MeasuredValue", Type: TypeInt16, Access: rp},
				{ID: 0x0010, Name: "ScaledValue", Type: TypeInt16, Access: rp},
				{ID: 0x0014, Name: "Scale", Type: TypeInt8, Access: rd},
			},
		},
		{
			ID: ClusterRelativeHumidity, Name: "Relative Humidity Measurement",
			Attributes: []AttributeDef{
				{ID: 0x0000, Name: "MeasuredValue", Type: TypeUint16, Access: rp},
			},
		},
		{
			ID: ClusterOccupancySensing, Name: "Occupancy Sensing",
			Attributes: []AttributeDef{
				{ID: 0x0000, Name: "Occupancy", Type: TypeBitmap8, Access: rp},
				{ID: 0x0001, Name: "OccupancySensorType", Type: TypeEnum8, Access: rd},
			},
		},
		{
			ID: ClusterIASZone, Name: "IAS Zone",
			Attributes: []AttributeDef{
				{ID: 0x0000, Name: "ZoneState", Type: TypeEnum8, Access: rd},
				{ID: 0x0001, Name: "ZoneType", Type: TypeEnum16, Access: rd},
				{ID: 0x0002, Name: "ZoneStatus", Type: TypeBitmap16, Access: rd},
				{ID: 0x0010, Name: "IASCIEAddress", Type: TypeEUI64, Access: rw},
			},
			Commands: []CommandDef{
				toServer(0x00, "ZoneEnrollResponse"),
				toClient(0x00, "ZoneStatusChangeNotification"),
				toClient(0x01, "ZoneEnrollRequest"),
			},
		},
		{
			ID: ClusterMetering, Name: "Metering",
			Attributes: []AttributeDef{
				{ID: 0x0000, Name: "CurrentSummationDelivered", Type: TypeUint48, Access: rp},
				{ID: 0x0301, Name: "Multiplier", Type: TypeUint24, Access: rd},
				{ID: 0x0302, Name: "Divisor", Type: TypeUint24, Access: rd},
				{ID: 0x0400, Name: "InstantaneousDemand", Type: TypeInt24, Access: rp},
			},
		},
		{
			ID: ClusterElectricalMeasurement, Name: "Electrical Measurement",
			Attributes: []AttributeDef{
				{ID: 0x0505, Name: "RMSVoltage", Type: TypeUint16, Access: rp},
				{ID: 0x0508, Name: "RMSCurrent", Type: TypeUint16, Access: rp},
				{ID: 0x050B, Name: "ActivePower", Type: TypeInt16, Access: rp},
				{ID: 0x0600, Name: "ACVoltageMultiplier", Type: TypeUint16, Access: rd},
				{ID: 0x0601, Name: "ACVoltageDivisor", Type: TypeUint16, Access: rd},
				{ID: 0x0602, Name: "ACCurrentMultiplier", Type: TypeUint16, Access: rd},
				{ID: 0x0603, Name: "ACCurrentDivisor", Type: TypeUint16, Access: rd},
				{ID: 0x0604, Name: "ACPowerMultiplier", Type: TypeUint16, Access: rd},
				{ID: 0x0605, Name: "ACPowerDivisor", Type: TypeUint16, Access: rd},
			},
		},
	}
}

package devicedb

import "uzigbee-devices/internal/extend"

// TemplateModel is the placeholder identifier used by the authoring template.
const TemplateModel = "uzb_CustomDevice"

// Template returns the starting point for a new custom descriptor: an on/off
// device with a temperature sensor. Copy it, change the identifiers and tune
// Extend for the endpoint's cluster mix.
func Template() Descriptor {
	return Descriptor{
		ZigbeeModel: []string{TemplateModel},
		Model:       TemplateModel,
		Vendor:      Vendor,
		Description: "Custom uzigbee device template",
		Extend:      []extend.Extension{extend.OnOff(), extend.Temperature()},
	}
}

// TemplateAlternatives are the extensions shown commented out in rendered
// templates as examples of what else an endpoint can declare.
func TemplateAlternatives() []extend.Extension {
	return []extend.Extension{
		extend.Humidity(),
		extend.Pressure(),
		extend.Occupancy(),
		extend.IASZoneAlarm(extend.IASZoneOptions{ZoneType: "generic", ZoneAttributes: []string{"alarm_1"}}),
		extend.WindowCovering(extend.WindowCoveringOptions{Controls: []string{"lift"}}),
		extend.Lock(extend.LockOptions{PinCodeCount: 30}),
	}
}

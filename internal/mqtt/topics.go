//go:build !no_mqtt

package mqtt

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"uzigbee-devices/internal/devicedb"
	"uzigbee-devices/internal/interview"
)

// Topics below the bridge's base topic.
const (
	topicConverterSave     = "/bridge/request/converter/save"
	topicConverterResponse = "/bridge/response/converter/save"
	topicConverters        = "/bridge/converters"
	topicDevices           = "/bridge/devices"
	topicOwnState          = "/uzb-devices/state"
	topicInterview         = "/uzb-devices/interview/"
)

// modelPrefix marks uzigbee firmware identifiers.
const modelPrefix = "uzb_"

// saveRequest is the payload of bridge/request/converter/save.
type saveRequest struct {
	Name        string `json:"name"`
	Code        string `json:"code"`
	Transaction string `json:"transaction,omitempty"`
}

// bridgeResponse is the payload of a bridge/response/... topic.
type bridgeResponse struct {
	Status      string          `json:"status"`
	Error       string          `json:"error,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
	Transaction string          `json:"transaction,omitempty"`
}

// converterEntry is one element of the retained bridge/converters list.
type converterEntry struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// bridgeDevice is the part of a bridge/devices entry the interview check reads.
type bridgeDevice struct {
	IEEEAddress        string `json:"ieee_address"`
	Type               string `json:"type"`
	FriendlyName       string `json:"friendly_name"`
	Supported          bool   `json:"supported"`
	InterviewCompleted bool   `json:"interview_completed"`
	Manufacturer       string `json:"manufacturer"`
	ModelID            string `json:"model_id"`
	PowerSource        string `json:"power_source"`
	SoftwareBuildID    string `json:"software_build_id"`
	DateCode           string `json:"date_code"`
}

// isUzigbee reports whether dev runs uzigbee firmware.
func isUzigbee(dev bridgeDevice) bool {
	if dev.Type == "Coordinator" {
		return false
	}
	return dev.Manufacturer == devicedb.Vendor || strings.HasPrefix(dev.ModelID, modelPrefix)
}

// identity converts what the bridge read during interview back to Basic
// cluster values. An unrecognised power source is left unset.
func identity(dev bridgeDevice) interview.Identity {
	id := interview.Identity{
		ManufacturerName: dev.Manufacturer,
		ModelIdentifier:  dev.ModelID,
		DateCode:         dev.DateCode,
		SWBuildID:        dev.SoftwareBuildID,
	}
	if ps, ok := interview.PowerSourceFromString(dev.PowerSource); ok {
		id.PowerSource = &ps
	}
	return id
}

// deviceTopicName returns a topic-safe name for a bridge device.
func deviceTopicName(dev bridgeDevice) string {
	name := dev.FriendlyName
	if name == "" {
		name = dev.IEEEAddress
	}
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			return r
		}
		return '_'
	}, name)
}

// converterInstalled reports whether list holds name with code matching checksum.
func converterInstalled(list []converterEntry, name, checksum string) bool {
	for _, c := range list {
		if c.Name == name {
			return codeChecksum(c.Code) == checksum
		}
	}
	return false
}

func codeChecksum(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}

package store

import (
	"time"

	"uzigbee-devices/internal/devicedb"
)

// DescriptorRecord is a user descriptor saved through the API.
type DescriptorRecord struct {
	Descriptor devicedb.Descriptor `json:"descriptor"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// Publish status values.
const (
	PublishPending = "pending"
	PublishOK      = "ok"
	PublishError   = "error"
)

// PublishState records the converter last sent to the bridge.
type PublishState struct {
	Name        string    `json:"name"`
	Checksum    string    `json:"checksum"`
	PublishedAt time.Time `json:"published_at"`
	Devices     int       `json:"devices"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
}

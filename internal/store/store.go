package store

import "errors"

// ErrNotFound is returned when a requested entity does not exist in the store.
var ErrNotFound = errors.New("not found")

// Store defines the persistence interface.
type Store interface {
	// Custom descriptors, keyed by model
	SaveDescriptor(rec *DescriptorRecord) error
	GetDescriptor(model string) (*DescriptorRecord, error)
	DeleteDescriptor(model string) error
	ListDescriptors() ([]*DescriptorRecord, error)

	// Converter publication state, keyed by converter name
	SavePublishState(state *PublishState) error
	GetPublishState(name string) (*PublishState, error)

	// UpdatePublishState atomically reads, modifies, and saves a publish
	// state in a single transaction. Returns ErrNotFound if it does not exist.
	UpdatePublishState(name string, fn func(state *PublishState) error) error

	// Close the store
	Close() error
}

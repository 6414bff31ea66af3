package store

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketDescriptors = []byte("descriptors")
	bucketPublish     = []byte("publish")
)

// BoltStore implements Store using BoltDB.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens or creates a BoltDB database.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	// Create buckets
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketDescriptors, bucketPublish} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// OpenReadOnly opens an existing database without taking the write lock, for
// commands that only read stored descriptors. It gives up after timeout if a
// running server holds the file.
func OpenReadOnly(path string, timeout time.Duration) (*BoltStore, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{ReadOnly: true, Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// SaveDescriptor stores rec under its model. CreatedAt of an existing record
// is preserved.
func (s *BoltStore) SaveDescriptor(rec *DescriptorRecord) error {
	if rec.Descriptor.Model == "" {
		return fmt.Errorf("save descriptor: empty model")
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDescriptors)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketDescriptors)
		}
		key := []byte(rec.Descriptor.Model)
		now := time.Now()
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
			if old := b.Get(key); old != nil {
				var prev DescriptorRecord
				if err := json.Unmarshal(old, &prev); err == nil && !prev.CreatedAt.IsZero() {
					rec.CreatedAt = prev.CreatedAt
				}
			}
		}
		rec.UpdatedAt = now
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
}

func (s *BoltStore) GetDescriptor(model string) (*DescriptorRecord, error) {
	var rec DescriptorRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDescriptors)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketDescriptors)
		}
		data := b.Get([]byte(model))
		if data == nil {
			return fmt.Errorf("descriptor %s: %w", model, ErrNotFound)
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// DeleteDescriptor removes model. Returns ErrNotFound if it was never saved.
func (s *BoltStore) DeleteDescriptor(model string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDescriptors)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketDescriptors)
		}
		if b.Get([]byte(model)) == nil {
			return fmt.Errorf("descriptor %s: %w", model, ErrNotFound)
		}
		return b.Delete([]byte(model))
	})
}

// ListDescriptors returns records in key (model) order.
func (s *BoltStore) ListDescriptors() ([]*DescriptorRecord, error) {
	var recs []*DescriptorRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDescriptors)
		if b == nil {
			return nil // no bucket = no descriptors
		}
		recs = make([]*DescriptorRecord, 0, b.Stats().KeyN)
		return b.ForEach(func(k, v []byte) error {
			var rec DescriptorRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("descriptor %s: %w", k, err)
			}
			recs = append(recs, &rec)
			return nil
		})
	})
	return recs, err
}

func (s *BoltStore) SavePublishState(state *PublishState) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return putPublishState(tx, state)
	})
}

func (s *BoltStore) GetPublishState(name string) (*PublishState, error) {
	var state *PublishState
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		state, err = getPublishState(tx, name)
		return err
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

func (s *BoltStore) UpdatePublishState(name string, fn func(state *PublishState) error) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		state, err := getPublishState(tx, name)
		if err != nil {
			return err
		}
		if err := fn(state); err != nil {
			return err
		}
		state.Name = name
		return putPublishState(tx, state)
	})
}

func getPublishState(tx *bolt.Tx, name string) (*PublishState, error) {
	b := tx.Bucket(bucketPublish)
	if b == nil {
		return nil, fmt.Errorf("bucket %q not found", bucketPublish)
	}
	data := b.Get([]byte(name))
	if data == nil {
		return nil, fmt.Errorf("publish state %s: %w", name, ErrNotFound)
	}
	var state PublishState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func putPublishState(tx *bolt.Tx, state *PublishState) error {
	b := tx.Bucket(bucketPublish)
	if b == nil {
		return fmt.Errorf("bucket %q not found", bucketPublish)
	}
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return b.Put([]byte(state.Name), data)
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

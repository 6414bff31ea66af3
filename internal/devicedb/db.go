package devicedb

import (
	"fmt"
)

// DB is an ordered set of descriptors indexed by model and by zigbeeModel
// identifier. It is not safe for concurrent mutation; build it, then share it.
type DB struct {
	list     []Descriptor
	byModel  map[string]int
	byZigbee map[string]int
}

// NewDB creates an empty database.
func NewDB() *DB {
	return &DB{
		byModel:  make(map[string]int),
		byZigbee: make(map[string]int),
	}
}

// NewDBFrom validates ds as a whole and loads it in order.
func NewDBFrom(ds []Descriptor) (*DB, error) {
	if err := Validate(ds); err != nil {
		return nil, err
	}
	db := NewDB()
	for _, d := range ds {
		if err := db.Add(d); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// Builtin returns a database holding Definitions().
func Builtin() *DB {
	db, err := NewDBFrom(Definitions())
	if err != nil {
		panic(fmt.Sprintf("built-in device definitions invalid: %v", err))
	}
	return db
}

// Add validates d and appends it. A descriptor whose model or any identifier
// is already present is rejected with ErrDuplicate and the database is left
// unchanged.
func (db *DB) Add(d Descriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if _, ok := db.byModel[d.Model]; ok {
		return &ValidationError{Model: d.Model, Field: "model", Reason: "already registered", Err: ErrDuplicate}
	}
	for _, id := range d.ZigbeeModel {
		if idx, ok := db.byZigbee[id]; ok {
			return &ValidationError{
				Model:  d.Model,
				Field:  "zigbeeModel",
				Reason: fmt.Sprintf("%q already claimed by %s", id, db.list[idx].Model),
				Err:    ErrDuplicate,
			}
		}
	}

	idx := len(db.list)
	db.list = append(db.list, d.Clone())
	db.byModel[d.Model] = idx
	for _, id := range d.ZigbeeModel {
		db.byZigbee[id] = idx
	}
	return nil
}

// All returns every descriptor in insertion order.
func (db *DB) All() []Descriptor {
	return cloneAll(db.list)
}

// Len returns the number of descriptors.
func (db *DB) Len() int {
	return len(db.list)
}

// Lookup finds the descriptor claiming a reported model identifier, or nil.
func (db *DB) Lookup(zigbeeModel string) *Descriptor {
	idx, ok := db.byZigbee[zigbeeModel]
	if !ok {
		return nil
	}
	d := db.list[idx].Clone()
	return &d
}

// ByModel finds a descriptor by its canonical model name, or nil.
func (db *DB) ByModel(model string) *Descriptor {
	idx, ok := db.byModel[model]
	if !ok {
		return nil
	}
	d := db.list[idx].Clone()
	return &d
}

package devicedb

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDuplicate marks a model or zigbeeModel identifier claimed twice.
	ErrDuplicate = errors.New("duplicate")
	// ErrInvalid marks a malformed descriptor.
	ErrInvalid = errors.New("invalid descriptor")
)

// ValidationError describes one problem with one descriptor.
type ValidationError struct {
	Model  string // model, or "#<index>" when the model is empty
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Model, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func descriptorName(d Descriptor, index int) string {
	if d.Model != "" {
		return d.Model
	}
	return fmt.Sprintf("#%d", index)
}

// Validate checks a single descriptor in isolation.
func (d Descriptor) Validate() error {
	return errors.Join(d.check(descriptorName(d, 0))...)
}

func (d Descriptor) check(name string) []error {
	var errs []error
	fail := func(field, format string, args ...any) {
		errs = append(errs, &ValidationError{Model: name, Field: field, Reason: fmt.Sprintf(format, args...), Err: ErrInvalid})
	}

	if strings.TrimSpace(d.Model) == "" {
		fail("model", "empty")
	}
	if strings.TrimSpace(d.Vendor) == "" {
		fail("vendor", "empty")
	}
	if len(d.ZigbeeModel) == 0 {
		fail("zigbeeModel", "no identifiers")
	}
	seen := make(map[string]bool, len(d.ZigbeeModel))
	for i, id := range d.ZigbeeModel {
		if strings.TrimSpace(id) == "" {
			fail("zigbeeModel", "identifier %d empty", i)
			continue
		}
		if seen[id] {
			errs = append(errs, &ValidationError{Model: name, Field: "zigbeeModel", Reason: fmt.Sprintf("%q listed twice", id), Err: ErrDuplicate})
		}
		seen[id] = true
	}
	if len(d.Extend) == 0 {
		fail("extend", "no capabilities")
	}
	for i, e := range d.Extend {
		if err := e.Validate(); err != nil {
			errs = append(errs, &ValidationError{Model: name, Field: fmt.Sprintf("extend[%d]", i), Reason: err.Error(), Err: errors.Join(ErrInvalid, err)})
		}
	}
	return errs
}

// Validate checks every descriptor and the registry-wide uniqueness of models
// and zigbeeModel identifiers. All problems are returned joined.
func Validate(ds []Descriptor) error {
	var errs []error
	models := make(map[string]string)
	identifiers := make(map[string]string)

	for i, d := range ds {
		name := descriptorName(d, i)
		errs = append(errs, d.check(name)...)

		if d.Model != "" {
			if prev, ok := models[d.Model]; ok {
				errs = append(errs, &ValidationError{Model: name, Field: "model", Reason: "already used by " + prev, Err: ErrDuplicate})
			} else {
				models[d.Model] = name
			}
		}
		claimed := make(map[string]bool, len(d.ZigbeeModel))
		for _, id := range d.ZigbeeModel {
			if id == "" || claimed[id] {
				continue
			}
			claimed[id] = true
			if prev, ok := identifiers[id]; ok {
				errs = append(errs, &ValidationError{Model: name, Field: "zigbeeModel", Reason: fmt.Sprintf("%q already claimed by %s", id, prev), Err: ErrDuplicate})
			} else {
				identifiers[id] = name
			}
		}
	}
	return errors.Join(errs...)
}

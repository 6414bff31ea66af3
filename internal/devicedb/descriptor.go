package devicedb

import (
	"slices"

	"uzigbee-devices/internal/extend"
)

// Vendor is the brand every built-in descriptor is published under.
const Vendor = "uzigbee"

// Descriptor is one device's entry in the bridge's device database.
type Descriptor struct {
	ZigbeeModel []string           `json:"zigbeeModel" yaml:"zigbeeModel"`
	Model       string             `json:"model" yaml:"model"`
	Vendor      string             `json:"vendor" yaml:"vendor"`
	Description string             `json:"description" yaml:"description"`
	Extend      []extend.Extension `json:"extend" yaml:"extend"`
}

// Clone returns a deep copy.
func (d Descriptor) Clone() Descriptor {
	return Descriptor{
		ZigbeeModel: slices.Clone(d.ZigbeeModel),
		Model:       d.Model,
		Vendor:      d.Vendor,
		Description: d.Description,
		Extend:      extend.CloneAll(d.Extend),
	}
}

// Kinds lists the extension names in declaration order.
func (d Descriptor) Kinds() []extend.Kind {
	out := make([]extend.Kind, len(d.Extend))
	for i, e := range d.Extend {
		out[i] = e.Kind
	}
	return out
}

// Extension returns the first extension of the given kind.
func (d Descriptor) Extension(kind extend.Kind) (extend.Extension, bool) {
	for _, e := range d.Extend {
		if e.Kind == kind {
			return e.Clone(), true
		}
	}
	return extend.Extension{}, false
}

// Exposes is the union of the extensions' exposed properties, first occurrence wins.
func (d Descriptor) Exposes() []string {
	var out []string
	for _, e := range d.Extend {
		for _, p := range e.Spec().Exposes {
			if !slices.Contains(out, p) {
				out = append(out, p)
			}
		}
	}
	return out
}

func cloneAll(ds []Descriptor) []Descriptor {
	out := make([]Descriptor, len(ds))
	for i, d := range ds {
		out[i] = d.Clone()
	}
	return out
}

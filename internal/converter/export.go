package converter

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"gopkg.in/yaml.v3"

	"uzigbee-devices/internal/devicedb"
	"uzigbee-devices/internal/zcl"
)

// RenderJSON writes ds as a descriptor file that devicedb.LoadDir reads back.
func RenderJSON(w io.Writer, ds []devicedb.Descriptor) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(devicedb.File{Devices: ds})
}

// RenderYAML is RenderJSON in YAML.
func RenderYAML(w io.Writer, ds []devicedb.Descriptor) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(devicedb.File{Devices: ds}); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}

// Device-definition layout understood by coordinators that configure devices
// themselves: what to bind after interview and which reporting to set up.
type deviceFile struct {
	Manufacturers []manufacturerGroup `json:"manufacturers"`
}

type manufacturerGroup struct {
	Name   string             `json:"name"`
	Models []deviceDefinition `json:"models"`
}

type deviceDefinition struct {
	Model        string           `json:"model"`
	FriendlyName string           `json:"friendly_name,omitempty"`
	Bind         []uint16         `json:"bind"`
	Reporting    []reportingEntry `json:"reporting,omitempty"`
}

type reportingEntry struct {
	Cluster   uint16 `json:"cluster"`
	Attribute uint16 `json:"attribute"`
	Type      uint8  `json:"type"`
	Min       uint16 `json:"min"`
	Max       uint16 `json:"max"`
	Change    int    `json:"change"`
}

// RenderDeviceFile writes one definition per zigbeeModel identifier, grouped
// by vendor, with bind and reporting derived from the extensions. Attribute
// types come from registry; an attribute it does not know is an error.
func RenderDeviceFile(w io.Writer, ds []devicedb.Descriptor, registry *zcl.Registry) error {
	var f deviceFile
	groups := make(map[string]int)

	for _, d := range ds {
		def, err := deviceDefinitionFor(d, registry)
		if err != nil {
			return err
		}
		idx, ok := groups[d.Vendor]
		if !ok {
			idx = len(f.Manufacturers)
			groups[d.Vendor] = idx
			f.Manufacturers = append(f.Manufacturers, manufacturerGroup{Name: d.Vendor})
		}
		for _, id := range d.ZigbeeModel {
			entry := def
			entry.Model = id
			f.Manufacturers[idx].Models = append(f.Manufacturers[idx].Models, entry)
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(f)
}

func deviceDefinitionFor(d devicedb.Descriptor, registry *zcl.Registry) (deviceDefinition, error) {
	def := deviceDefinition{FriendlyName: d.Description, Bind: []uint16{}}
	addBind := func(id uint16) {
		if !slices.Contains(def.Bind, id) {
			def.Bind = append(def.Bind, id)
		}
	}

	for _, e := range d.Extend {
		spec := e.Spec()
		for _, r := range spec.Reporting {
			c := registry.Get(r.Cluster)
			if c == nil {
				return def, fmt.Errorf("%s: %s: cluster 0x%04X not registered", d.Model, e.Kind, r.Cluster)
			}
			attr := c.Attribute(r.Attribute)
			if attr == nil {
				return def, fmt.Errorf("%s: %s: attribute 0x%04X not in %s", d.Model, e.Kind, r.Attribute, c.Name)
			}
			change := r.Change
			if !zcl.IsAnalog(attr.Type) {
				change = 0
			}
			addBind(r.Cluster)
			def.Reporting = append(def.Reporting, reportingEntry{
				Cluster:   r.Cluster,
				Attribute: r.Attribute,
				Type:      attr.Type,
				Min:       r.Min,
				Max:       r.Max,
				Change:    change,
			})
		}
		for _, id := range spec.Output {
			addBind(id)
		}
	}
	return def, nil
}

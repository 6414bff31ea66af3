package zcl

import (
	"fmt"
	"slices"
	"strings"
)

// Access is the attribute access bitmask.
type Access uint8

const (
	AccessRead   Access = 0x01
	AccessWrite  Access = 0x02
	AccessReport Access = 0x04
)

// Has reports whether every bit of f is set.
func (a Access) Has(f Access) bool { return a&f == f }

// String renders the mask as "rwp" with '-' for missing bits.
func (a Access) String() string {
	var b strings.Builder
	for _, f := range []struct {
		bit Access
		c   byte
	}{{AccessRead, 'r'}, {AccessWrite, 'w'}, {AccessReport, 'p'}} {
		if a.Has(f.bit) {
			b.WriteByte(f.c)
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}

func (a Access) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Access) UnmarshalText(text []byte) error {
	var v Access
	for _, c := range string(text) {
		switch c {
		case 'r':
			v |= AccessRead
		case 'w':
			v |= AccessWrite
		case 'p':
			v |= AccessReport
		case '-':
		default:
			return fmt.Errorf("zcl: bad access flag %q in %q", c, text)
		}
	}
	*a = v
	return nil
}

// AttributeDef is one attribute of a server cluster.
type AttributeDef struct {
	ID     uint16 `json:"id"`
	Name   string `json:"name"`
	Type   uint8  `json:"type"`
	Access Access `json:"access"`
}

// CommandDef is a cluster-specific command. Received marks commands the
// server side accepts; the rest are generated by it.
type CommandDef struct {
	ID       uint8  `json:"id"`
	Name     string `json:"name"`
	Received bool   `json:"received"`
}

// ClusterDef is the subset of a ZCL cluster the capability extensions touch.
type ClusterDef struct {
	ID         uint16         `json:"id"`
	Name       string         `json:"name"`
	Attributes []AttributeDef `json:"attributes,omitempty"`
	Commands   []CommandDef   `json:"commands,omitempty"`
}

// FormatID prints a cluster ID the way logs and the API show it.
func FormatID(id uint16) string {
	return fmt.Sprintf("0x%04X", id)
}

func (c ClusterDef) String() string {
	if c.Name == "" {
		return FormatID(c.ID)
	}
	return c.Name + "(" + FormatID(c.ID) + ")"
}

// Attribute returns the attribute with id, or nil.
func (c *ClusterDef) Attribute(id uint16) *AttributeDef {
	i := slices.IndexFunc(c.Attributes, func(a AttributeDef) bool { return a.ID == id })
	if i < 0 {
		return nil
	}
	return &c.Attributes[i]
}

// AttributeByName returns the attribute with the ZCL name, or nil.
func (c *ClusterDef) AttributeByName(name string) *AttributeDef {
	i := slices.IndexFunc(c.Attributes, func(a AttributeDef) bool { return a.Name == name })
	if i < 0 {
		return nil
	}
	return &c.Attributes[i]
}

// Command returns the command with id flowing in the given direction, or nil.
func (c *ClusterDef) Command(id uint8, received bool) *CommandDef {
	i := slices.IndexFunc(c.Commands, func(cmd CommandDef) bool { return cmd.ID == id && cmd.Received == received })
	if i < 0 {
		return nil
	}
	return &c.Commands[i]
}

// Clone returns c with its own attribute and command slices.
func (c ClusterDef) Clone() ClusterDef {
	c.Attributes = slices.Clone(c.Attributes)
	c.Commands = slices.Clone(c.Commands)
	return c
}

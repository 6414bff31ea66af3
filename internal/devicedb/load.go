package devicedb

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// VendorGroup groups descriptors under one vendor name.
type VendorGroup struct {
	Name    string       `json:"name" yaml:"name"`
	Devices []Descriptor `json:"devices" yaml:"devices"`
}

// File is the on-disk layout of a descriptor file (JSON or YAML).
type File struct {
	Devices []Descriptor  `json:"devices,omitempty" yaml:"devices,omitempty"`
	Vendors []VendorGroup `json:"vendors,omitempty" yaml:"vendors,omitempty"`
}

// Flatten returns the file's descriptors in order, top-level devices first.
// Grouped descriptors take the group's vendor; ungrouped ones without a
// vendor default to Vendor.
func (f *File) Flatten() []Descriptor {
	var out []Descriptor
	for _, d := range f.Devices {
		if d.Vendor == "" {
			d.Vendor = Vendor
		}
		out = append(out, d)
	}
	for _, g := range f.Vendors {
		for _, d := range g.Devices {
			d.Vendor = g.Name
			out = append(out, d)
		}
	}
	return out
}

// ParseFile decodes a descriptor file. The format follows the extension of
// name: .yaml and .yml are YAML, anything else is JSON. Unknown fields are
// an error, so a misspelt option does not silently fall back to its default.
func ParseFile(name string, data []byte) ([]Descriptor, error) {
	var f File
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
	default:
		if err := DecodeJSON(bytes.NewReader(data), &f); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
	}
	return f.Flatten(), nil
}

// DecodeJSON decodes one JSON value from r into v, rejecting unknown fields
// and trailing data.
func DecodeJSON(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after JSON value")
	}
	return nil
}

// filePattern matches descriptor files at any depth below the devices dir.
const filePattern = "**/*.{json,yaml,yml}"

// Files lists the descriptor files below dir in path order. A missing
// directory has no files.
func Files(dir string) ([]string, error) {
	rel, err := doublestar.Glob(os.DirFS(dir), filePattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("glob devices dir: %w", err)
	}
	slices.Sort(rel)
	matches := make([]string, len(rel))
	for i, r := range rel {
		matches[i] = filepath.Join(dir, filepath.FromSlash(r))
	}
	return matches, nil
}

// ReadFile reads and parses one descriptor file.
func ReadFile(path string) ([]Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ParseFile(path, data)
}

// LoadDir reads every descriptor file in dir in name order. Descriptors are
// returned unvalidated. A missing or empty directory yields no descriptors
// and no error.
func LoadDir(dir string, logger *slog.Logger) ([]Descriptor, error) {
	matches, err := Files(dir)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		logger.Info("no descriptor files found", "dir", dir)
		return nil, nil
	}

	var out []Descriptor
	for _, path := range matches {
		ds, err := ReadFile(path)
		if err != nil {
			return nil, err
		}
		logger.Info("loaded descriptor file", "path", filepath.Base(path), "devices", len(ds))
		out = append(out, ds...)
	}
	logger.Info("descriptor files loaded", "files", len(matches), "devices", len(out))
	return out, nil
}

// Package catalog merges the built-in registry with user descriptors from
// files, scripts and the store into the set that gets published.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"uzigbee-devices/internal/devicedb"
	"uzigbee-devices/internal/script"
	"uzigbee-devices/internal/store"
)

// Source says where a descriptor came from. Sources load in this order and
// an earlier source wins a collision.
type Source string

const (
	SourceBuiltin Source = "builtin"
	SourceFile    Source = "file"
	SourceScript  Source = "script"
	SourceStored  Source = "stored"
)

var (
	// ErrReadOnly is returned when changing a descriptor that is not stored.
	ErrReadOnly = errors.New("descriptor is read-only")
	// ErrNoStore is returned by writes when the catalog has no store.
	ErrNoStore = errors.New("no store configured")
)

// Entry is one published descriptor and its origin.
type Entry struct {
	Descriptor devicedb.Descriptor `json:"descriptor"`
	Source     Source              `json:"source"`
	Origin     string              `json:"origin,omitempty"` // file name or script id
}

// Issue is a descriptor or source that was skipped during the last reload.
type Issue struct {
	Source Source `json:"source"`
	Origin string `json:"origin,omitempty"`
	Model  string `json:"model,omitempty"`
	Error  string `json:"error"`
}

// ReloadSummary is the data of a registry_reloaded event.
type ReloadSummary struct {
	Devices int            `json:"devices"`
	Issues  int            `json:"issues"`
	Sources map[Source]int `json:"sources"`
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithDevicesDir loads descriptor files from dir.
func WithDevicesDir(dir string) Option {
	return func(c *Catalog) { c.devicesDir = dir }
}

// WithScripts loads descriptors declared by the engine's scripts.
func WithScripts(e *script.Engine) Option {
	return func(c *Catalog) { c.scripts = e }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Catalog) { c.logger = l }
}

// WithEvents publishes on bus instead of a private one.
func WithEvents(bus *EventBus) Option {
	return func(c *Catalog) { c.events = bus }
}

// Catalog is safe for concurrent use. Readers see the snapshot of the last
// completed reload.
type Catalog struct {
	store      store.Store
	devicesDir string
	scripts    *script.Engine
	logger     *slog.Logger
	events     *EventBus

	writeMu  sync.Mutex // serializes SaveCustom/DeleteCustom
	reloadMu sync.Mutex

	mu      sync.RWMutex
	db      *devicedb.DB
	entries []Entry
	index   map[string]int // model -> entries index
	issues  []Issue
}

// New creates a catalog holding only the built-ins until Reload is called.
// st may be nil, which makes the catalog read-only.
func New(st store.Store, opts ...Option) *Catalog {
	c := &Catalog{store: st, logger: slog.Default()}
	for _, o := range opts {
		o(c)
	}
	c.logger = c.logger.With("component", "catalog")
	if c.events == nil {
		c.events = NewEventBus(c.logger)
	}

	db := devicedb.Builtin()
	c.db = db
	c.index = make(map[string]int)
	for i, d := range db.All() {
		c.entries = append(c.entries, Entry{Descriptor: d, Source: SourceBuiltin})
		c.index[d.Model] = i
	}
	return c
}

// Events returns the catalog's event bus.
func (c *Catalog) Events() *EventBus { return c.events }

// snapshot is a reload in progress.
type snapshot struct {
	logger  *slog.Logger
	db      *devicedb.DB
	entries []Entry
	issues  []Issue
}

func (s *snapshot) add(d devicedb.Descriptor, src Source, origin string) {
	if err := s.db.Add(d); err != nil {
		s.logger.Warn("skip descriptor", "source", src, "origin", origin, "model", d.Model, "err", err)
		s.issues = append(s.issues, Issue{Source: src, Origin: origin, Model: d.Model, Error: err.Error()})
		return
	}
	s.entries = append(s.entries, Entry{Descriptor: d.Clone(), Source: src, Origin: origin})
}

func (s *snapshot) fail(src Source, origin string, err error) {
	s.logger.Warn("skip source", "source", src, "origin", origin, "err", err)
	s.issues = append(s.issues, Issue{Source: src, Origin: origin, Error: err.Error()})
}

// Reload rebuilds the catalog from all sources: built-in, files, scripts,
// then stored descriptors. Invalid or colliding descriptors are skipped and
// reported by Issues. Only a store failure or cancellation aborts the reload,
// leaving the previous snapshot in place.
func (c *Catalog) Reload(ctx context.Context) error {
	c.reloadMu.Lock()
	defer c.reloadMu.Unlock()

	s := &snapshot{logger: c.logger, db: devicedb.NewDB()}

	for _, d := range devicedb.Definitions() {
		s.add(d, SourceBuiltin, "")
	}

	if c.devicesDir != "" {
		files, err := devicedb.Files(c.devicesDir)
		if err != nil {
			s.fail(SourceFile, c.devicesDir, err)
		}
		for _, path := range files {
			origin, err := filepath.Rel(c.devicesDir, path)
			if err != nil {
				origin = filepath.Base(path)
			}
			origin = filepath.ToSlash(origin)
			ds, err := devicedb.ReadFile(path)
			if err != nil {
				s.fail(SourceFile, origin, err)
				continue
			}
			for _, d := range ds {
				s.add(d, SourceFile, origin)
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if c.scripts != nil {
		loaded, err := c.scripts.LoadAll(ctx)
		if err != nil {
			s.fail(SourceScript, "", err)
		}
		for _, l := range loaded {
			if l.Err != nil {
				s.fail(SourceScript, l.ScriptID, l.Err)
				continue
			}
			for _, d := range l.Devices {
				s.add(d, SourceScript, l.ScriptID)
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if c.store != nil {
		recs, err := c.store.ListDescriptors()
		if err != nil {
			return fmt.Errorf("list stored descriptors: %w", err)
		}
		for _, r := range recs {
			s.add(r.Descriptor, SourceStored, "")
		}
	}

	index := make(map[string]int, len(s.entries))
	summary := ReloadSummary{Devices: len(s.entries), Issues: len(s.issues), Sources: make(map[Source]int)}
	for i, e := range s.entries {
		index[e.Descriptor.Model] = i
		summary.Sources[e.Source]++
	}

	c.mu.Lock()
	c.db = s.db
	c.entries = s.entries
	c.index = index
	c.issues = s.issues
	c.mu.Unlock()

	c.logger.Info("registry reloaded", "devices", summary.Devices, "issues", summary.Issues)
	c.events.Emit(Event{Type: EventRegistryReloaded, Data: summary})
	return nil
}

// Descriptors returns the published descriptors in order.
func (c *Catalog) Descriptors() []devicedb.Descriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db.All()
}

// Len returns the number of published descriptors.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db.Len()
}

// Entries returns the published descriptors with their origin.
func (c *Catalog) Entries() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Entry, len(c.entries))
	for i, e := range c.entries {
		out[i] = Entry{Descriptor: e.Descriptor.Clone(), Source: e.Source, Origin: e.Origin}
	}
	return out
}

// Entry returns the entry for model.
func (c *Catalog) Entry(model string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.index[model]
	if !ok {
		return Entry{}, false
	}
	e := c.entries[i]
	return Entry{Descriptor: e.Descriptor.Clone(), Source: e.Source, Origin: e.Origin}, true
}

// Lookup finds the descriptor claiming a reported model identifier.
func (c *Catalog) Lookup(zigbeeModel string) *devicedb.Descriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db.Lookup(zigbeeModel)
}

// ByModel finds a descriptor by model.
func (c *Catalog) ByModel(model string) *devicedb.Descriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db.ByModel(model)
}

// Issues returns what the last reload skipped.
func (c *Catalog) Issues() []Issue {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Issue, len(c.issues))
	copy(out, c.issues)
	return out
}

// SaveCustom stores d, replacing a stored descriptor with the same model, and
// reloads. Descriptors from other sources cannot be replaced.
func (c *Catalog) SaveCustom(ctx context.Context, d devicedb.Descriptor) error {
	if c.store == nil {
		return ErrNoStore
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if d.Vendor == "" {
		d.Vendor = devicedb.Vendor
	}
	if err := d.Validate(); err != nil {
		return err
	}

	// Check collisions against everything but the descriptor being replaced.
	check := devicedb.NewDB()
	for _, e := range c.Entries() {
		if e.Descriptor.Model == d.Model {
			if e.Source != SourceStored {
				return fmt.Errorf("%s (%s): %w", d.Model, e.Source, ErrReadOnly)
			}
			continue
		}
		if err := check.Add(e.Descriptor); err != nil {
			return fmt.Errorf("rebuild registry: %w", err)
		}
	}
	if err := check.Add(d); err != nil {
		return err
	}

	if err := c.store.SaveDescriptor(&store.DescriptorRecord{Descriptor: d}); err != nil {
		return fmt.Errorf("save descriptor: %w", err)
	}
	c.logger.Info("descriptor saved", "model", d.Model)
	if err := c.Reload(ctx); err != nil {
		return err
	}
	c.events.Emit(Event{Type: EventDescriptorSaved, Data: map[string]string{"model": d.Model}})
	return nil
}

// DeleteCustom removes a stored descriptor and reloads.
func (c *Catalog) DeleteCustom(ctx context.Context, model string) error {
	if c.store == nil {
		return ErrNoStore
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if e, ok := c.Entry(model); ok && e.Source != SourceStored {
		return fmt.Errorf("%s (%s): %w", model, e.Source, ErrReadOnly)
	}
	if err := c.store.DeleteDescriptor(model); err != nil {
		return err
	}
	c.logger.Info("descriptor deleted", "model", model)
	if err := c.Reload(ctx); err != nil {
		return err
	}
	c.events.Emit(Event{Type: EventDescriptorDeleted, Data: map[string]string{"model": model}})
	return nil
}

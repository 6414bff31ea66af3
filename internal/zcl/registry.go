// Package zcl describes the ZCL clusters uzigbee capability extensions bind
// and report on.
package zcl

import (
	"cmp"
	"log/slog"
	"slices"
	"sync"
)

// Registry is a concurrency-safe set of cluster definitions keyed by ID.
// Everything handed in or out is a copy.
type Registry struct {
	mu       sync.RWMutex
	clusters map[uint16]ClusterDef
	logger   *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		clusters: make(map[uint16]ClusterDef),
		logger:   logger.With("component", "zcl"),
	}
}

// NewStandardRegistry creates a registry preloaded with Standard().
func NewStandardRegistry(logger *slog.Logger) *Registry {
	r := NewRegistry(logger)
	for _, c := range Standard() {
		r.Register(c)
	}
	return r
}

// Register adds c, replacing any definition with the same ID.
func (r *Registry) Register(c ClusterDef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, replaced := r.clusters[c.ID]
	r.clusters[c.ID] = c.Clone()
	r.logger.Debug("cluster registered", "cluster", c, "replaced", replaced)
}

// Get returns the definition for id, or nil if not registered.
func (r *Registry) Get(id uint16) *ClusterDef {
	r.mu.RLock()
	c, ok := r.clusters[id]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	c = c.Clone()
	return &c
}

// Name returns the cluster name for id, or its hex form when unknown.
func (r *Registry) Name(id uint16) string {
	if c := r.Get(id); c != nil {
		return c.Name
	}
	return FormatID(id)
}

// All returns every definition ordered by ID.
func (r *Registry) All() []ClusterDef {
	r.mu.RLock()
	result := make([]ClusterDef, 0, len(r.clusters))
	for _, c := range r.clusters {
		result = append(result, c.Clone())
	}
	r.mu.RUnlock()
	slices.SortFunc(result, func(a, b ClusterDef) int { return cmp.Compare(a.ID, b.ID) })
	return result
}

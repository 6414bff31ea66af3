//go:build no_scripts

package script

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"uzigbee-devices/internal/devicedb"
)

const DefaultTimeout = 5 * time.Second

var (
	ErrNotFound  = errors.New("script not found")
	ErrInvalidID = errors.New("invalid script id")
	errDisabled  = errors.New("scripts disabled")
)

// ScriptMeta holds user-editable metadata for a script.
type ScriptMeta struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Enabled     bool   `json:"enabled"`
}

// Script is a single descriptor script stored on disk.
type Script struct {
	ID       string     `json:"id"`
	Meta     ScriptMeta `json:"meta"`
	LuaCode  string     `json:"lua_code"`
	FilePath string     `json:"-"`
}

// RunResult is the result of a one-shot script evaluation.
type RunResult struct {
	OK       bool                  `json:"ok"`
	Error    string                `json:"error,omitempty"`
	Logs     []string              `json:"logs"`
	Devices  []devicedb.Descriptor `json:"devices"`
	Duration string                `json:"duration"`
}

// Loaded is the outcome of evaluating one stored script.
type Loaded struct {
	ScriptID string
	Devices  []devicedb.Descriptor
	Err      error
}

// Manager is a no-op stub when scripts are disabled.
type Manager struct{}

// NewManager returns nil manager when scripts are disabled.
func NewManager(_ string, _ *slog.Logger) (*Manager, error) { return nil, nil }

// Dir returns "".
func (m *Manager) Dir() string { return "" }

// List returns nil.
func (m *Manager) List() ([]*Script, error) { return nil, nil }

// Get returns ErrNotFound.
func (m *Manager) Get(_ string) (*Script, error) { return nil, ErrNotFound }

// Save returns an error.
func (m *Manager) Save(_ *Script) (*Script, error) { return nil, errDisabled }

// Delete returns ErrNotFound.
func (m *Manager) Delete(_ string) error { return ErrNotFound }

// Engine is a no-op stub when scripts are disabled.
type Engine struct{}

// NewEngine returns a no-op engine when scripts are disabled.
func NewEngine(_ *Manager, _ *slog.Logger, _ time.Duration) *Engine { return &Engine{} }

// Manager returns nil.
func (e *Engine) Manager() *Manager { return nil }

// Eval returns an error.
func (e *Engine) Eval(_ context.Context, _, _ string) ([]devicedb.Descriptor, []string, error) {
	return nil, nil, errDisabled
}

// RunLuaCode returns a stub result.
func (e *Engine) RunLuaCode(_ context.Context, _ string) *RunResult {
	return &RunResult{OK: false, Error: errDisabled.Error(), Logs: []string{}, Devices: []devicedb.Descriptor{}}
}

// RunScript returns a stub result.
func (e *Engine) RunScript(ctx context.Context, _ string) *RunResult {
	return e.RunLuaCode(ctx, "")
}

// LoadAll returns nothing.
func (e *Engine) LoadAll(_ context.Context) ([]Loaded, error) { return nil, nil }

//go:build !no_scripts

package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"

	"uzigbee-devices/internal/devicedb"
)

const (
	// DefaultTimeout bounds one script evaluation.
	DefaultTimeout = 5 * time.Second
	callStackSize  = 200
)

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

// Engine evaluates descriptor scripts. Every evaluation gets a fresh Lua state.
type Engine struct {
	manager *Manager
	logger  *slog.Logger
	timeout time.Duration
}

// NewEngine creates an engine over mgr. A zero timeout means DefaultTimeout.
func NewEngine(mgr *Manager, logger *slog.Logger, timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Engine{
		manager: mgr,
		logger:  logger.With("component", "script"),
		timeout: timeout,
	}
}

// Manager returns the script manager the engine loads from.
func (e *Engine) Manager() *Manager { return e.manager }

// Eval runs code and returns the devices it declared and anything it printed.
// Declarations are discarded when the script fails.
func (e *Engine) Eval(ctx context.Context, name, code string) ([]devicedb.Descriptor, []string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	L, err := newState(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer L.Close()

	c := &collector{}
	c.register(L)

	fn, err := L.Load(strings.NewReader(code), name)
	if err != nil {
		return nil, c.logs, fmt.Errorf("load %s: %w", name, err)
	}
	L.Push(fn)
	if err := L.PCall(0, 0, nil); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, c.logs, fmt.Errorf("run %s: timeout (%s)", name, e.timeout)
		}
		return nil, c.logs, fmt.Errorf("run %s: %w", name, err)
	}
	return c.devices, c.logs, nil
}

// RunLuaCode evaluates code without saving it.
func (e *Engine) RunLuaCode(ctx context.Context, code string) *RunResult {
	start := time.Now()
	devices, logs, err := e.Eval(ctx, "<run>", code)
	res := &RunResult{OK: err == nil, Logs: logs, Devices: devices, Duration: time.Since(start).String()}
	if res.Logs == nil {
		res.Logs = []string{}
	}
	if res.Devices == nil {
		res.Devices = []devicedb.Descriptor{}
	}
	if err != nil {
		res.Error = err.Error()
		e.logger.Warn("script run failed", "err", err)
	}
	return res
}

// RunScript evaluates a stored script.
func (e *Engine) RunScript(ctx context.Context, id string) *RunResult {
	s, err := e.manager.Get(id)
	if err != nil {
		return &RunResult{OK: false, Error: err.Error(), Logs: []string{}, Devices: []devicedb.Descriptor{}}
	}
	return e.RunLuaCode(ctx, s.LuaCode)
}

// LoadAll evaluates every enabled script in file order. A failing script is
// reported in its Loaded entry and does not stop the others.
func (e *Engine) LoadAll(ctx context.Context) ([]Loaded, error) {
	if e.manager == nil {
		return nil, nil
	}
	scripts, err := e.manager.List()
	if err != nil {
		return nil, err
	}

	var out []Loaded
	for _, s := range scripts {
		if !s.Meta.Enabled {
			continue
		}
		devices, _, err := e.Eval(ctx, s.ID, s.LuaCode)
		if err != nil {
			e.logger.Warn("script failed", "id", s.ID, "err", err)
		} else {
			e.logger.Debug("script loaded", "id", s.ID, "devices", len(devices))
		}
		out = append(out, Loaded{ScriptID: s.ID, Devices: devices, Err: err})
	}
	return out, nil
}

// newState opens a state with only the base, table, string and math
// libraries and without the functions that reach the filesystem.
func newState(ctx context.Context) (*lua.LState, error) {
	L := lua.NewState(lua.Options{
		SkipOpenLibs:  true,
		CallStackSize: callStackSize,
	})
	for _, lib := range []struct {
		name string
		open lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		err := L.CallByParam(lua.P{Fn: L.NewFunction(lib.open), NRet: 0, Protect: true}, lua.LString(lib.name))
		if err != nil {
			L.Close()
			return nil, fmt.Errorf("open lua %q library: %w", lib.name, err)
		}
	}

	// Sandbox
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require", "module"} {
		L.SetGlobal(name, lua.LNil)
	}

	L.SetContext(ctx)
	return L, nil
}

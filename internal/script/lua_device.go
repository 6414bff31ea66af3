//go:build !no_scripts

package script

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"uzigbee-devices/internal/devicedb"
	"uzigbee-devices/internal/extend"
)

// collector receives the declarations of one evaluation.
type collector struct {
	devices []devicedb.Descriptor
	logs    []string
}

// register installs device, print and the ext table.
func (c *collector) register(L *lua.LState) {
	L.SetGlobal("device", L.NewFunction(c.device))
	L.SetGlobal("print", L.NewFunction(c.print))

	mod := L.NewTable()
	for _, k := range extend.Kinds() {
		mod.RawSetString(luaName(k), L.NewFunction(extFunction(k)))
	}
	L.SetGlobal("ext", mod)
}

// print(...) appends its arguments, tab separated, to the run log.
func (c *collector) print(L *lua.LState) int {
	parts := make([]string, L.GetTop())
	for i := range parts {
		parts[i] = L.ToStringMeta(L.Get(i + 1)).String()
	}
	c.logs = append(c.logs, strings.Join(parts, "\t"))
	return 0
}

// device{ zigbee_model = ..., model = ..., vendor = ..., description = ..., extend = {...} }
func (c *collector) device(L *lua.LState) int {
	tbl := L.CheckTable(1)
	if err := checkKeys(tbl, "zigbee_model", "model", "vendor", "description", "extend"); err != nil {
		L.ArgError(1, err.Error())
	}

	d := devicedb.Descriptor{Vendor: devicedb.Vendor}
	var err error
	if d.ZigbeeModel, err = stringList(tbl.RawGetString("zigbee_model")); err != nil {
		L.ArgError(1, "zigbee_model: "+err.Error())
	}
	if d.Model, err = optString(tbl, "model"); err != nil {
		L.ArgError(1, err.Error())
	}
	if d.Model == "" && len(d.ZigbeeModel) > 0 {
		d.Model = d.ZigbeeModel[0]
	}
	vendor, err := optString(tbl, "vendor")
	if err != nil {
		L.ArgError(1, err.Error())
	}
	if vendor != "" {
		d.Vendor = vendor
	}
	if d.Description, err = optString(tbl, "description"); err != nil {
		L.ArgError(1, err.Error())
	}

	switch v := tbl.RawGetString("extend").(type) {
	case *lua.LNilType:
	case *lua.LTable:
		for i := 1; i <= v.Len(); i++ {
			ud, ok := v.RawGetInt(i).(*lua.LUserData)
			if !ok {
				L.ArgError(1, fmt.Sprintf("extend[%d]: not an ext value", i))
			}
			e, ok := ud.Value.(extend.Extension)
			if !ok {
				L.ArgError(1, fmt.Sprintf("extend[%d]: not an ext value", i))
			}
			d.Extend = append(d.Extend, e)
		}
	default:
		L.ArgError(1, "extend: expected table, got "+v.Type().String())
	}

	c.devices = append(c.devices, d)
	return 0
}

type optionBuilder func(opts *lua.LTable) (extend.Extension, error)

var builders = map[extend.Kind]optionBuilder{
	extend.KindLight:          buildLight,
	extend.KindLock:           buildLock,
	extend.KindThermostat:     buildThermostat,
	extend.KindIASZoneAlarm:   buildIASZone,
	extend.KindWindowCovering: buildWindowCovering,
}

// extFunction returns ext.<name>, which wraps the built Extension in userdata.
func extFunction(kind extend.Kind) lua.LGFunction {
	return func(L *lua.LState) int {
		opts := L.OptTable(1, nil)
		build, ok := builders[kind]
		var (
			e   extend.Extension
			err error
		)
		switch {
		case ok:
			e, err = build(opts)
		case opts != nil && !isEmpty(opts):
			err = fmt.Errorf("takes no options")
		default:
			e = extend.Extension{Kind: kind}
		}
		if err != nil {
			L.RaiseError("ext.%s: %v", luaName(kind), err)
		}
		ud := L.NewUserData()
		ud.Value = e
		L.Push(ud)
		return 1
	}
}

func buildLight(t *lua.LTable) (extend.Extension, error) {
	var o extend.LightOptions
	if t == nil {
		return extend.Light(o), nil
	}
	if err := checkKeys(t, "color_temp", "color"); err != nil {
		return extend.Extension{}, err
	}
	switch ct := t.RawGetString("color_temp").(type) {
	case *lua.LNilType:
	case *lua.LTable:
		r, ok := ct.RawGetString("range").(*lua.LTable)
		if !ok || r.Len() != 2 {
			return extend.Extension{}, fmt.Errorf("color_temp.range must be { min, max }")
		}
		lo, err1 := integer(r.RawGetInt(1))
		hi, err2 := integer(r.RawGetInt(2))
		if err := errors.Join(err1, err2); err != nil {
			return extend.Extension{}, fmt.Errorf("color_temp.range: %w", err)
		}
		o.ColorTemp = &extend.ColorTempOptions{Range: [2]int{lo, hi}}
	default:
		return extend.Extension{}, fmt.Errorf("color_temp: expected table")
	}
	switch c := t.RawGetString("color").(type) {
	case *lua.LNilType:
	case *lua.LTable:
		modes, err := stringList(c.RawGetString("modes"))
		if err != nil {
			return extend.Extension{}, fmt.Errorf("color.modes: %w", err)
		}
		o.Color = &extend.ColorOptions{Modes: modes, ApplyRedFix: lua.LVAsBool(c.RawGetString("apply_red_fix"))}
	default:
		return extend.Extension{}, fmt.Errorf("color: expected table")
	}
	return extend.Light(o), nil
}

func buildLock(t *lua.LTable) (extend.Extension, error) {
	if t == nil {
		return extend.Extension{}, fmt.Errorf("pin_code_count is required")
	}
	if err := checkKeys(t, "pin_code_count"); err != nil {
		return extend.Extension{}, err
	}
	n, err := integer(t.RawGetString("pin_code_count"))
	if err != nil {
		return extend.Extension{}, fmt.Errorf("pin_code_count: %w", err)
	}
	return extend.Lock(extend.LockOptions{PinCodeCount: n}), nil
}

func buildThermostat(t *lua.LTable) (extend.Extension, error) {
	if t == nil {
		return extend.Extension{}, fmt.Errorf("setpoints and system_modes are required")
	}
	if err := checkKeys(t, "setpoints", "system_modes"); err != nil {
		return extend.Extension{}, err
	}
	var o extend.ThermostatOptions

	sp, ok := t.RawGetString("setpoints").(*lua.LTable)
	if !ok {
		return extend.Extension{}, fmt.Errorf("setpoints: expected table")
	}
	if sp.Len() > 0 {
		// { { name = "occupiedHeatingSetpoint", min = 5, max = 30, step = 0.5 }, ... }
		for i := 1; i <= sp.Len(); i++ {
			entry, ok := sp.RawGetInt(i).(*lua.LTable)
			if !ok {
				return extend.Extension{}, fmt.Errorf("setpoints[%d]: expected table", i)
			}
			name, err := optString(entry, "name")
			if err != nil {
				return extend.Extension{}, fmt.Errorf("setpoints[%d]: %w", i, err)
			}
			s, err := setpoint(name, entry)
			if err != nil {
				return extend.Extension{}, fmt.Errorf("setpoints[%d]: %w", i, err)
			}
			o.Setpoints = append(o.Setpoints, s)
		}
	} else {
		// { occupiedHeatingSetpoint = { min = 5, max = 30, step = 0.5 } }
		var names []string
		var bad error
		sp.ForEach(func(k, v lua.LValue) {
			if ks, ok := k.(lua.LString); ok {
				names = append(names, string(ks))
			} else if bad == nil {
				bad = fmt.Errorf("setpoints: unexpected key %s", k.String())
			}
		})
		if bad != nil {
			return extend.Extension{}, bad
		}
		slices.Sort(names)
		for _, name := range names {
			entry, ok := sp.RawGetString(name).(*lua.LTable)
			if !ok {
				return extend.Extension{}, fmt.Errorf("setpoints.%s: expected table", name)
			}
			s, err := setpoint(name, entry)
			if err != nil {
				return extend.Extension{}, fmt.Errorf("setpoints.%s: %w", name, err)
			}
			o.Setpoints = append(o.Setpoints, s)
		}
	}

	modes, err := stringList(t.RawGetString("system_modes"))
	if err != nil {
		return extend.Extension{}, fmt.Errorf("system_modes: %w", err)
	}
	o.SystemModes = modes
	return extend.Thermostat(o), nil
}

func setpoint(name string, t *lua.LTable) (extend.Setpoint, error) {
	s := extend.Setpoint{Name: name}
	for _, f := range []struct {
		key string
		dst *float64
	}{{"min", &s.Min}, {"max", &s.Max}, {"step", &s.Step}} {
		n, ok := t.RawGetString(f.key).(lua.LNumber)
		if !ok {
			return s, fmt.Errorf("%s: expected number", f.key)
		}
		*f.dst = float64(n)
	}
	return s, nil
}

func buildIASZone(t *lua.LTable) (extend.Extension, error) {
	if t == nil {
		return extend.Extension{}, fmt.Errorf("zone_type and zone_attributes are required")
	}
	if err := checkKeys(t, "zone_type", "zone_attributes"); err != nil {
		return extend.Extension{}, err
	}
	zt, err := optString(t, "zone_type")
	if err != nil {
		return extend.Extension{}, err
	}
	attrs, err := stringList(t.RawGetString("zone_attributes"))
	if err != nil {
		return extend.Extension{}, fmt.Errorf("zone_attributes: %w", err)
	}
	return extend.IASZoneAlarm(extend.IASZoneOptions{ZoneType: zt, ZoneAttributes: attrs}), nil
}

func buildWindowCovering(t *lua.LTable) (extend.Extension, error) {
	if t == nil {
		return extend.Extension{}, fmt.Errorf("controls is required")
	}
	if err := checkKeys(t, "controls"); err != nil {
		return extend.Extension{}, err
	}
	controls, err := stringList(t.RawGetString("controls"))
	if err != nil {
		return extend.Extension{}, fmt.Errorf("controls: %w", err)
	}
	return extend.WindowCovering(extend.WindowCoveringOptions{Controls: controls}), nil
}

// integer accepts a Lua number with no fractional part that fits in an int32.
func integer(v lua.LValue) (int, error) {
	n, ok := v.(lua.LNumber)
	if !ok {
		return 0, fmt.Errorf("expected number, got %s", v.Type())
	}
	f := float64(n)
	if f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxInt32 {
		return 0, fmt.Errorf("expected integer, got %s", n)
	}
	return int(f), nil
}

// stringList accepts a string or an array of strings. nil yields nil.
func stringList(v lua.LValue) ([]string, error) {
	switch v := v.(type) {
	case *lua.LNilType:
		return nil, nil
	case lua.LString:
		return []string{string(v)}, nil
	case *lua.LTable:
		out := make([]string, 0, v.Len())
		for i := 1; i <= v.Len(); i++ {
			s, ok := v.RawGetInt(i).(lua.LString)
			if !ok {
				return nil, fmt.Errorf("element %d: expected string", i)
			}
			out = append(out, string(s))
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected string or table, got %s", v.Type())
}

func optString(t *lua.LTable, key string) (string, error) {
	switch v := t.RawGetString(key).(type) {
	case *lua.LNilType:
		return "", nil
	case lua.LString:
		return string(v), nil
	default:
		return "", fmt.Errorf("%s: expected string, got %s", key, v.Type())
	}
}

// checkKeys rejects string keys outside allowed, which catches misspelt options.
func checkKeys(t *lua.LTable, allowed ...string) error {
	var bad []string
	t.ForEach(func(k, _ lua.LValue) {
		if ks, ok := k.(lua.LString); ok && !slices.Contains(allowed, string(ks)) {
			bad = append(bad, string(ks))
		}
	})
	if len(bad) > 0 {
		slices.Sort(bad)
		return fmt.Errorf("unknown field %s", strings.Join(bad, ", "))
	}
	return nil
}

func isEmpty(t *lua.LTable) bool {
	k, _ := t.Next(lua.LNil)
	return k == lua.LNil
}

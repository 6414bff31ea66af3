package script

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/template"

	"uzigbee-devices/internal/devicedb"
	"uzigbee-devices/internal/extend"
)

var funcs = template.FuncMap{
	"str":  luaString,
	"strs": luaStrings,
	"ext":  LuaExpr,
	"exts": luaExprs,
}

var scriptTmpl = template.Must(template.New("script").Funcs(funcs).Parse(`
{{- range $i, $d := .}}{{if $i}}
{{end}}device {
  zigbee_model = {{strs $d.ZigbeeModel}},
  model = {{str $d.Model}},
  vendor = {{str $d.Vendor}},
  description = {{str $d.Description}},
  extend = {{exts $d.Extend}},
}
{{end}}`))

var templateTmpl = template.Must(template.New("template").Funcs(funcs).Parse(`-- Template for custom uzigbee devices.
-- Copy this file, change model IDs, and tune extend for your endpoint/cluster mix.

device {
  zigbee_model = {{strs .Device.ZigbeeModel}},
  model = {{str .Device.Model}},
  vendor = {{str .Device.Vendor}},
  description = {{str .Device.Description}},
  extend = {
{{- range .Device.Extend}}
    {{ext .}},
{{- end}}
    -- Examples:
{{- range .Alternatives}}
    -- {{ext .}},
{{- end}}
  },
}
`))

// RenderLua writes ds as a descriptor script, one device{} call each.
func RenderLua(w io.Writer, ds []devicedb.Descriptor) error {
	return scriptTmpl.Execute(w, ds)
}

// TemplateSource is the authoring template as a Lua script.
func TemplateSource() string {
	var b strings.Builder
	err := templateTmpl.Execute(&b, struct {
		Device       devicedb.Descriptor
		Alternatives []extend.Extension
	}{devicedb.Template(), devicedb.TemplateAlternatives()})
	if err != nil {
		panic(fmt.Sprintf("render lua template: %v", err))
	}
	return b.String()
}

// LuaExpr renders one extension as a script expression, e.g.
// ext.lock{ pin_code_count = 30 }.
func LuaExpr(e extend.Extension) string {
	name := "ext." + luaName(e.Kind)
	var fields []string
	switch {
	case e.Light != nil:
		if ct := e.Light.ColorTemp; ct != nil {
			fields = append(fields, fmt.Sprintf("color_temp = { range = { %d, %d } }", ct.Range[0], ct.Range[1]))
		}
		if c := e.Light.Color; c != nil {
			fields = append(fields, fmt.Sprintf("color = { modes = %s, apply_red_fix = %t }", luaStrings(c.Modes), c.ApplyRedFix))
		}
	case e.Lock != nil:
		fields = append(fields, fmt.Sprintf("pin_code_count = %d", e.Lock.PinCodeCount))
	case e.Thermostat != nil:
		sps := make([]string, len(e.Thermostat.Setpoints))
		for i, sp := range e.Thermostat.Setpoints {
			sps[i] = fmt.Sprintf("{ name = %s, min = %s, max = %s, step = %s }",
				luaString(sp.Name), luaNumber(sp.Min), luaNumber(sp.Max), luaNumber(sp.Step))
		}
		fields = append(fields,
			"setpoints = "+luaTable(sps),
			"system_modes = "+luaStrings(e.Thermostat.SystemModes))
	case e.IASZone != nil:
		fields = append(fields,
			"zone_type = "+luaString(e.IASZone.ZoneType),
			"zone_attributes = "+luaStrings(e.IASZone.ZoneAttributes))
	case e.WindowCovering != nil:
		fields = append(fields, "controls = "+luaStrings(e.WindowCovering.Controls))
	}
	if len(fields) == 0 {
		return name + "()"
	}
	return name + luaTable(fields)
}

func luaExprs(exts []extend.Extension) string {
	parts := make([]string, len(exts))
	for i, e := range exts {
		parts[i] = LuaExpr(e)
	}
	return luaTable(parts)
}

func luaTable(items []string) string {
	if len(items) == 0 {
		return "{}"
	}
	return "{ " + strings.Join(items, ", ") + " }"
}

var luaEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`, "\x00", `\0`)

func luaString(s string) string {
	return `"` + luaEscaper.Replace(s) + `"`
}

func luaStrings(ss []string) string {
	parts := make([]string, len(ss))
	for i, s := range ss {
		parts[i] = luaString(s)
	}
	return luaTable(parts)
}

func luaNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// luaName converts a kind to its ext field, e.g. commandsOnOff -> commands_on_off.
func luaName(k extend.Kind) string {
	var b strings.Builder
	for i, r := range string(k) {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Package converter renders descriptors into the files the bridge and other
// tools consume.
package converter

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/template"

	"uzigbee-devices/internal/devicedb"
	"uzigbee-devices/internal/extend"
)

// ModernExtendModule is the module external converters import extensions from.
const ModernExtendModule = "zigbee-herdsman-converters/lib/modernExtend"

var funcs = template.FuncMap{
	"str":  jsString,
	"strs": jsStrings,
	"ext":  JSExpr,
	"exts": jsExprs,
}

var converterTmpl = template.Must(template.New("converter").Funcs(funcs).Parse(`"use strict";

const m = require({{str .Module}});

const definitions = [
{{- range .Devices}}
  {
    zigbeeModel: {{strs .ZigbeeModel}},
    model: {{str .Model}},
    vendor: {{str .Vendor}},
    description: {{str .Description}},
    extend: {{exts .Extend}},
  },
{{- end}}
];

module.exports = definitions;
`))

var templateTmpl = template.Must(template.New("template").Funcs(funcs).Parse(`"use strict";

const m = require({{str .Module}});

/*
Template for custom uzigbee devices.
Copy this file, change model IDs, and tune extend[] for your endpoint/cluster mix.
*/

const definitions = [
  {
    zigbeeModel: {{strs .Device.ZigbeeModel}},
    model: {{str .Device.Model}},
    vendor: {{str .Device.Vendor}},
    description: {{str .Device.Description}},
    extend: [
{{- range .Device.Extend}}
      {{ext .}},
{{- end}}
      // Examples:
{{- range .Alternatives}}
      // {{ext .}},
{{- end}}
    ],
  },
];

module.exports = definitions;
`))

// RenderJS writes ds as a Zigbee2MQTT external converter module.
func RenderJS(w io.Writer, ds []devicedb.Descriptor) error {
	return converterTmpl.Execute(w, struct {
		Module  string
		Devices []devicedb.Descriptor
	}{ModernExtendModule, ds})
}

// RenderTemplateJS writes the authoring template converter, with the
// alternative extensions commented out.
func RenderTemplateJS(w io.Writer) error {
	return templateTmpl.Execute(w, struct {
		Module       string
		Device       devicedb.Descriptor
		Alternatives []extend.Extension
	}{ModernExtendModule, devicedb.Template(), devicedb.TemplateAlternatives()})
}

// JS returns RenderJS output as a string.
func JS(ds []devicedb.Descriptor) (string, error) {
	var b strings.Builder
	if err := RenderJS(&b, ds); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Checksum is the hex SHA-256 of the rendered converter. Equal checksums mean
// the bridge already runs identical code.
func Checksum(ds []devicedb.Descriptor) (string, error) {
	js, err := JS(ds)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(js))
	return hex.EncodeToString(sum[:]), nil
}

// JSExpr renders one extension call, e.g. m.lock({ pinCodeCount: 30 }).
func JSExpr(e extend.Extension) string {
	opts := jsOptions(e)
	if opts == "" {
		return fmt.Sprintf("m.%s()", e.Kind)
	}
	return fmt.Sprintf("m.%s(%s)", e.Kind, opts)
}

func jsExprs(exts []extend.Extension) string {
	parts := make([]string, len(exts))
	for i, e := range exts {
		parts[i] = JSExpr(e)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func jsOptions(e extend.Extension) string {
	switch {
	case e.Light != nil:
		var fields []string
		if ct := e.Light.ColorTemp; ct != nil {
			fields = append(fields, fmt.Sprintf("colorTemp: { range: [%d, %d] }", ct.Range[0], ct.Range[1]))
		}
		if c := e.Light.Color; c != nil {
			fields = append(fields, fmt.Sprintf("color: { modes: %s, applyRedFix: %t }", jsStrings(c.Modes), c.ApplyRedFix))
		}
		return jsObject(fields)

	case e.Lock != nil:
		return jsObject([]string{fmt.Sprintf("pinCodeCount: %d", e.Lock.PinCodeCount)})

	case e.Thermostat != nil:
		values := make([]string, len(e.Thermostat.Setpoints))
		for i, sp := range e.Thermostat.Setpoints {
			values[i] = fmt.Sprintf("%s: { min: %s, max: %s, step: %s }",
				sp.Name, jsNumber(sp.Min), jsNumber(sp.Max), jsNumber(sp.Step))
		}
		return jsObject([]string{
			"setpoints: { values: " + jsObject(values) + " }",
			"systemMode: { values: " + jsStrings(e.Thermostat.SystemModes) + " }",
		})

	case e.IASZone != nil:
		return jsObject([]string{
			"zoneType: " + jsString(e.IASZone.ZoneType),
			"zoneAttributes: " + jsStrings(e.IASZone.ZoneAttributes),
		})

	case e.WindowCovering != nil:
		return jsObject([]string{"controls: " + jsStrings(e.WindowCovering.Controls)})
	}
	return ""
}

func jsObject(fields []string) string {
	if len(fields) == 0 {
		return "{}"
	}
	return "{ " + strings.Join(fields, ", ") + " }"
}

// jsString quotes s as a JSON string, which is also a valid JS literal.
func jsString(s string) string {
	data, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(data)
}

func jsStrings(ss []string) string {
	parts := make([]string, len(ss))
	for i, s := range ss {
		parts[i] = jsString(s)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func jsNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

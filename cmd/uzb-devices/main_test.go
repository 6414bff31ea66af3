package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"uzigbee-devices/internal/converter"
	"uzigbee-devices/internal/devicedb"
	"uzigbee-devices/internal/interview"
)

func writeConfig(t *testing.T, body string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body = strings.ReplaceAll(body, "$DIR", dir)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path, dir
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"), false)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Web.Listen != "127.0.0.1:8080" || cfg.Store.Path != "uzb-devices.db" || cfg.DevicesDir != "devices" ||
		cfg.ScriptsDir != "scripts" || cfg.MQTT.TopicPrefix != "zigbee2mqtt" || cfg.MQTT.ConverterName != "uzigbee.js" {
		t.Errorf("defaults = %+v", cfg)
	}
	if err := cfg.validate(); err != nil {
		t.Errorf("defaults invalid: %v", err)
	}

	if _, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"), true); err == nil {
		t.Error("missing required config accepted")
	}
}

func TestLoadConfigFile(t *testing.T) {
	path, _ := writeConfig(t, `
devices_dir: /etc/uzb/devices
web:
  listen: ":9090"
  allowed_origins: ["http://ha.local"]
mqtt:
  enabled: true
  broker: tcp://broker:1883
  topic_prefix: z2m
script:
  timeout: 2s
log:
  level: debug
  format: json
`)
	cfg, err := loadConfig(path, true)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DevicesDir != "/etc/uzb/devices" || cfg.Web.Listen != ":9090" || cfg.MQTT.TopicPrefix != "z2m" {
		t.Errorf("cfg = %+v", cfg)
	}
	if err := cfg.validate(); err != nil {
		t.Error(err)
	}
	if d := cfg.duration(cfg.Script.Timeout, 0); d.String() != "2s" {
		t.Errorf("script timeout = %s", d)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"mqtt without broker", func(c *Config) { c.MQTT.Enabled = true }},
		{"wildcard prefix", func(c *Config) { c.MQTT.TopicPrefix = "z2m/#" }},
		{"converter path", func(c *Config) { c.MQTT.ConverterName = "../x.js" }},
		{"bad timeout", func(c *Config) { c.Script.Timeout = "soon" }},
		{"negative debounce", func(c *Config) { c.Watch.Debounce = "-1s" }},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, _ := loadConfig("", false)
			tt.mutate(cfg)
			if err := cfg.validate(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

const testConfig = `
devices_dir: $DIR/devices
scripts_dir: $DIR/scripts
store:
  path: $DIR/store.db
log:
  level: error
`

func TestTemplateCommand(t *testing.T) {
	path, _ := writeConfig(t, testConfig)
	out, err := run(t, "-c", path, "template", "js")
	if err != nil {
		t.Fatal(err)
	}
	var want bytes.Buffer
	converter.RenderTemplateJS(&want)
	if out != want.String() {
		t.Errorf("template js differs:\n%s", out)
	}

	if _, err := run(t, "-c", path, "template", "python"); err == nil {
		t.Error("unknown template format accepted")
	}
}

func TestExportCommand(t *testing.T) {
	path, dir := writeConfig(t, testConfig)
	os.MkdirAll(filepath.Join(dir, "devices"), 0o755)
	os.WriteFile(filepath.Join(dir, "devices", "fan.yaml"), []byte(`
devices:
  - zigbeeModel: [uzb_Fan]
    model: uzb_Fan
    description: Ceiling fan
    extend:
      - kind: onOff
`), 0o644)

	out, err := run(t, "-c", path, "export", "json")
	if err != nil {
		t.Fatal(err)
	}
	ds, err := devicedb.ParseFile("out.json", []byte(out))
	if err != nil {
		t.Fatal(err)
	}
	if len(ds) != 19 || ds[18].Model != "uzb_Fan" {
		t.Errorf("exported %d descriptors", len(ds))
	}

	target := filepath.Join(dir, "uzigbee.js")
	if _, err := run(t, "-c", path, "export", "js", "-o", target); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `zigbeeModel: ["uzb_Fan"]`) {
		t.Error("exported converter lacks the file descriptor")
	}
}

func TestValidateCommand(t *testing.T) {
	path, dir := writeConfig(t, testConfig)
	out, err := run(t, "-c", path, "validate")
	if err != nil {
		t.Fatalf("clean registry: %v\n%s", err, out)
	}
	if !strings.Contains(out, "18 descriptors ok") {
		t.Errorf("output = %s", out)
	}

	os.MkdirAll(filepath.Join(dir, "devices"), 0o755)
	os.WriteFile(filepath.Join(dir, "devices", "dup.json"), []byte(
		`{"devices":[{"zigbeeModel":["uzb_Light"],"model":"uzb_Copy","extend":[{"kind":"onOff"}]}]}`), 0o644)
	out, err = run(t, "-c", path, "validate")
	if err == nil {
		t.Fatal("duplicate identifier not reported")
	}
	if !strings.Contains(out, "dup.json") {
		t.Errorf("output does not name the file: %s", out)
	}
}

func TestInterviewCommand(t *testing.T) {
	path, _ := writeConfig(t, testConfig)

	out, err := run(t, "-c", path, "interview", "--model", "uzb_Thermostat", "--power-source", "3",
		"--date-code", "20261001", "--sw-build-id", "1.0")
	if err != nil {
		t.Fatalf("%v\n%s", err, out)
	}
	var r interview.Report
	if err := json.Unmarshal([]byte(out), &r); err != nil {
		t.Fatal(err)
	}
	if r.Model != "uzb_Thermostat" || r.Category != "climate" || *r.Identity.PowerSource != interview.PowerSourceBattery {
		t.Errorf("report = %+v", r)
	}

	// The factory default identity matches nothing.
	if _, err := run(t, "-c", path, "interview"); err == nil {
		t.Error("default model matched a descriptor")
	}
	if _, err := run(t, "-c", path, "interview", "--power-source", "solar"); err == nil {
		t.Error("unknown power source accepted")
	}
	missing := filepath.Join(t.TempDir(), "ttyUSB9")
	if _, err := run(t, "-c", path, "interview", "--port", missing, "--timeout", "100ms"); err == nil || !strings.Contains(err.Error(), missing) {
		t.Errorf("missing port: err = %v", err)
	}
}

func TestOverrideIdentity(t *testing.T) {
	cmd := interviewCmd(&app{})
	if err := cmd.Flags().Set("model", "uzb_Light"); err != nil {
		t.Fatal(err)
	}
	ps := interview.PowerSourceBattery
	read := interview.Identity{ManufacturerName: "uzigbee", ModelIdentifier: "uzb_Device", DateCode: "20260101", PowerSource: &ps}
	flags := interview.Identity{ManufacturerName: "flag", ModelIdentifier: "uzb_Light"}

	got := overrideIdentity(cmd, read, flags)
	if got.ModelIdentifier != "uzb_Light" || got.ManufacturerName != "uzigbee" || got.DateCode != "20260101" || got.PowerSource != &ps {
		t.Errorf("identity = %+v", got)
	}
}

func TestParsePowerSource(t *testing.T) {
	for in, want := range map[string]int{"1": 1, "Battery": 3, "DC Source": 4} {
		got, err := parsePowerSource(in)
		if err != nil || got != want {
			t.Errorf("parsePowerSource(%q) = %d, %v", in, got, err)
		}
	}
}

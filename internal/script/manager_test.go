//go:build !no_scripts

package script

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "scripts")
	m, err := NewManager(dir, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestManagerListEmpty(t *testing.T) {
	m := newTestManager(t)
	scripts, err := m.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(scripts) != 0 {
		t.Errorf("list count = %d, want 0", len(scripts))
	}
}

func TestManagerSaveAndGet(t *testing.T) {
	m := newTestManager(t)

	saved, err := m.Save(&Script{
		Meta: ScriptMeta{
			Name:        "Garage Sensors",
			Description: "door and climate",
			Enabled:     true,
		},
		LuaCode: `device{ zigbee_model = "uzb_Garage", extend = { ext.on_off() } }`,
	})
	if err != nil {
		t.Fatal(err)
	}
	if saved.ID != "garage_sensors" {
		t.Errorf("id = %q, want garage_sensors", saved.ID)
	}

	got, err := m.Get(saved.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Meta.Name != "Garage Sensors" {
		t.Errorf("name = %q, want Garage Sensors", got.Meta.Name)
	}
	if got.Meta.Description != "door and climate" {
		t.Errorf("description = %q", got.Meta.Description)
	}
	if !got.Meta.Enabled {
		t.Error("enabled = false, want true")
	}
	if !strings.Contains(got.LuaCode, `zigbee_model = "uzb_Garage"`) {
		t.Errorf("lua_code = %q", got.LuaCode)
	}
}

func TestManagerSaveExistingID(t *testing.T) {
	m := newTestManager(t)

	saved, err := m.Save(&Script{
		ID:      "my_devices",
		Meta:    ScriptMeta{Name: "My Devices", Enabled: true},
		LuaCode: `print("v1")`,
	})
	if err != nil {
		t.Fatal(err)
	}

	saved.LuaCode = `print("v2")`
	if _, err := m.Save(saved); err != nil {
		t.Fatal(err)
	}

	got, err := m.Get("my_devices")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got.LuaCode, `print("v2")`) {
		t.Errorf("lua_code after update = %q", got.LuaCode)
	}
}

func TestManagerList(t *testing.T) {
	m := newTestManager(t)

	for _, name := range []string{"Gamma", "Alpha", "Beta"} {
		if _, err := m.Save(&Script{Meta: ScriptMeta{Name: name, Enabled: true}, LuaCode: `print("` + name + `")`}); err != nil {
			t.Fatal(err)
		}
	}

	scripts, err := m.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(scripts) != 3 {
		t.Fatalf("list count = %d, want 3", len(scripts))
	}
	for i, want := range []string{"alpha", "beta", "gamma"} {
		if scripts[i].ID != want {
			t.Errorf("scripts[%d] = %q, want %q", i, scripts[i].ID, want)
		}
	}
}

func TestManagerDelete(t *testing.T) {
	m := newTestManager(t)

	saved, err := m.Save(&Script{Meta: ScriptMeta{Name: "ToDelete"}, LuaCode: `print("bye")`})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Delete(saved.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Get(saved.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("get after delete err = %v, want ErrNotFound", err)
	}
	if err := m.Delete(saved.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestManagerInvalidID(t *testing.T) {
	m := newTestManager(t)

	for _, id := range []string{"", "..", "a/b", `a\b`, "x..y"} {
		if _, err := m.Get(id); !errors.Is(err, ErrInvalidID) {
			t.Errorf("Get(%q) err = %v", id, err)
		}
	}
	if _, err := m.Save(&Script{ID: "../escape"}); !errors.Is(err, ErrInvalidID) {
		t.Errorf("Save err = %v", err)
	}
}

func TestManagerUniqueID(t *testing.T) {
	m := newTestManager(t)

	s1, err := m.Save(&Script{Meta: ScriptMeta{Name: "Dup"}, LuaCode: `print("1")`})
	if err != nil {
		t.Fatal(err)
	}
	s2, err := m.Save(&Script{Meta: ScriptMeta{Name: "Dup"}, LuaCode: `print("2")`})
	if err != nil {
		t.Fatal(err)
	}
	if s1.ID == s2.ID {
		t.Errorf("expected unique IDs, got %q for both", s1.ID)
	}
}

func TestDecodeScript(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		wantMeta ScriptMeta
		wantCode string
		wantErr  bool
	}{
		{
			name: "header",
			data: "-- {\"name\":\"Hallway\",\"description\":\"motion and light\",\"enabled\":false}\n\n" +
				"device {\n  zigbee_model = { \"uzb_HallMotion\" },\n}\n",
			wantMeta: ScriptMeta{Name: "Hallway", Description: "motion and light"},
			wantCode: "device {\n  zigbee_model = { \"uzb_HallMotion\" },\n}\n",
		},
		{
			name:     "no header",
			data:     "print('hi')\n",
			wantMeta: ScriptMeta{Name: "hallway", Enabled: true},
			wantCode: "print('hi')\n",
		},
		{
			name:     "indented body keeps its indentation",
			data:     "\n\n  device{}\n",
			wantMeta: ScriptMeta{Name: "hallway", Enabled: true},
			wantCode: "  device{}\n",
		},
		{
			name:     "malformed header",
			data:     "-- {\"name\": \n device{}\n",
			wantMeta: ScriptMeta{Name: "hallway", Enabled: true},
			wantCode: " device{}\n",
			wantErr:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := decodeScript("hallway", []byte(tt.data))
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if s.ID != "hallway" || s.Meta != tt.wantMeta {
				t.Errorf("script = %q %+v, want %+v", s.ID, s.Meta, tt.wantMeta)
			}
			if s.LuaCode != tt.wantCode {
				t.Errorf("lua_code = %q, want %q", s.LuaCode, tt.wantCode)
			}
		})
	}
}

func TestEncodeScript(t *testing.T) {
	in := &Script{
		ID:      "test",
		Meta:    ScriptMeta{Name: "Test", Description: "desc", Enabled: true},
		LuaCode: `print("hi")`,
	}
	want := "-- {\"name\":\"Test\",\"description\":\"desc\",\"enabled\":true}\n\nprint(\"hi\")\n"
	data := encodeScript(in)
	if string(data) != want {
		t.Errorf("content = %q, want %q", data, want)
	}

	back, err := decodeScript("test", data)
	if err != nil {
		t.Fatal(err)
	}
	if back.Meta != in.Meta || back.LuaCode != in.LuaCode+"\n" {
		t.Errorf("decoded = %+v", back)
	}
}

func TestManagerSkipsForeignFiles(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.Save(&Script{ID: "kept", LuaCode: "device{}"}); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"notes.txt", "kept.lua.tmp", ".hidden.lua"} {
		if err := os.WriteFile(filepath.Join(m.Dir(), name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(m.Dir(), "sub.lua"), 0o755); err != nil {
		t.Fatal(err)
	}

	scripts, err := m.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(scripts) != 1 || scripts[0].ID != "kept" {
		t.Errorf("List() = %v", scripts)
	}
	if _, err := os.Stat(filepath.Join(m.Dir(), "kept.lua")); err != nil {
		t.Error(err)
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Bathroom Light", "bathroom_light"},
		{"hello world!", "hello_world"},
		{"", ""},
		{"  spaces  ", "spaces"},
		{"UPPER", "upper"},
		{"Küche Licht", "k_che_licht"},
		{strings.Repeat("ab ", 20), "ab_ab_ab_ab_ab_ab_ab_ab_ab_ab_ab_ab_ab_a"},
	}
	for _, tt := range tests {
		got := slugify(tt.input)
		if got != tt.want {
			t.Errorf("slugify(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

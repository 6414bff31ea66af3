package catalog

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"uzigbee-devices/internal/devicedb"
	"uzigbee-devices/internal/extend"
	"uzigbee-devices/internal/store"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestStore(t *testing.T) *store.BoltStore {
	t.Helper()
	s, err := store.NewBoltStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func custom(model string, ids ...string) devicedb.Descriptor {
	if len(ids) == 0 {
		ids = []string{model}
	}
	return devicedb.Descriptor{
		ZigbeeModel: ids,
		Model:       model,
		Vendor:      devicedb.Vendor,
		Description: "custom " + model,
		Extend:      []extend.Extension{extend.OnOff(), extend.Temperature()},
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestNewHoldsBuiltins(t *testing.T) {
	c := New(nil, WithLogger(quietLogger()))

	if c.Len() != 18 {
		t.Errorf("len = %d, want 18", c.Len())
	}
	if d := c.Lookup("uzb_Light"); d == nil || d.Model != "uzb_Light" {
		t.Errorf("lookup uzb_Light = %+v", d)
	}
	e, ok := c.Entry("uzb_Thermostat")
	if !ok || e.Source != SourceBuiltin {
		t.Errorf("entry = %+v, %v", e, ok)
	}
	if len(c.Issues()) != 0 {
		t.Errorf("issues = %+v", c.Issues())
	}
}

func TestReloadMergesSources(t *testing.T) {
	st := newTestStore(t)
	if err := st.SaveDescriptor(&store.DescriptorRecord{Descriptor: custom("uzb_Stored")}); err != nil {
		t.Fatal(err)
	}
	// Collides with a file descriptor and must be skipped.
	if err := st.SaveDescriptor(&store.DescriptorRecord{Descriptor: custom("uzb_Other", "uzb_FileDevice")}); err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	writeFile(t, dir, "a.json", `{"devices":[
		{"zigbeeModel":["uzb_FileDevice"],"model":"uzb_FileDevice","description":"from file","extend":[{"kind":"humidity"}]},
		{"zigbeeModel":["uzb_Light2"],"model":"uzb_Light","vendor":"uzigbee","description":"shadow","extend":[{"kind":"onOff"}]}
	]}`)
	writeFile(t, dir, "b.json", `{"devices": [`)

	var events []Event
	c := New(st, WithLogger(quietLogger()), WithDevicesDir(dir))
	c.Events().On(EventRegistryReloaded, func(e Event) { events = append(events, e) })

	if err := c.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}

	if c.Len() != 20 {
		t.Fatalf("len = %d, want 20", c.Len())
	}
	ds := c.Descriptors()
	if ds[0].Model != "uzb_Light" || ds[18].Model != "uzb_FileDevice" || ds[19].Model != "uzb_Stored" {
		t.Errorf("order = %s, %s, %s", ds[0].Model, ds[18].Model, ds[19].Model)
	}
	if ds[18].Vendor != "uzigbee" {
		t.Errorf("file vendor = %q, want default", ds[18].Vendor)
	}

	e, _ := c.Entry("uzb_FileDevice")
	if e.Source != SourceFile || e.Origin != "a.json" {
		t.Errorf("file entry = %+v", e)
	}
	e, _ = c.Entry("uzb_Stored")
	if e.Source != SourceStored {
		t.Errorf("stored entry = %+v", e)
	}
	if d := c.ByModel("uzb_Light"); d.Description != "MicroPython ZigBee On/Off Light" {
		t.Errorf("built-in was shadowed: %+v", d)
	}

	issues := c.Issues()
	if len(issues) != 3 {
		t.Fatalf("issues = %+v, want 3", issues)
	}
	if issues[0].Source != SourceFile || issues[0].Model != "uzb_Light" {
		t.Errorf("issue[0] = %+v", issues[0])
	}
	if issues[1].Source != SourceFile || issues[1].Origin != "b.json" {
		t.Errorf("issue[1] = %+v", issues[1])
	}
	if issues[2].Source != SourceStored || issues[2].Model != "uzb_Other" {
		t.Errorf("issue[2] = %+v", issues[2])
	}

	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	sum := events[0].Data.(ReloadSummary)
	if sum.Devices != 20 || sum.Issues != 3 || sum.Sources[SourceBuiltin] != 18 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestReloadCancelledKeepsSnapshot(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.json", `{"devices":[{"zigbeeModel":["uzb_X"],"model":"uzb_X","extend":[{"kind":"onOff"}]}]}`)
	c := New(nil, WithLogger(quietLogger()), WithDevicesDir(dir))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.Reload(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want canceled", err)
	}
	if c.Len() != 18 || c.Lookup("uzb_X") != nil {
		t.Errorf("snapshot replaced after cancelled reload")
	}
}

func TestSaveCustom(t *testing.T) {
	c := New(newTestStore(t), WithLogger(quietLogger()))
	ctx := context.Background()

	var saved []string
	c.Events().On(EventDescriptorSaved, func(e Event) {
		saved = append(saved, e.Data.(map[string]string)["model"])
	})

	d := custom("uzb_Porch")
	d.Vendor = ""
	if err := c.SaveCustom(ctx, d); err != nil {
		t.Fatal(err)
	}
	got := c.Lookup("uzb_Porch")
	if got == nil || got.Vendor != "uzigbee" {
		t.Fatalf("lookup = %+v", got)
	}
	if len(saved) != 1 || saved[0] != "uzb_Porch" {
		t.Errorf("saved events = %v", saved)
	}

	// Replacing a stored descriptor is allowed.
	d = custom("uzb_Porch")
	d.Description = "updated"
	if err := c.SaveCustom(ctx, d); err != nil {
		t.Fatal(err)
	}
	if got := c.ByModel("uzb_Porch"); got.Description != "updated" {
		t.Errorf("description = %q", got.Description)
	}
	if c.Len() != 19 {
		t.Errorf("len = %d, want 19", c.Len())
	}
}

func TestSaveCustomRejects(t *testing.T) {
	c := New(newTestStore(t), WithLogger(quietLogger()))
	ctx := context.Background()

	if err := c.SaveCustom(ctx, custom("uzb_Light")); !errors.Is(err, ErrReadOnly) {
		t.Errorf("built-in model err = %v, want ErrReadOnly", err)
	}
	if err := c.SaveCustom(ctx, custom("uzb_New", "uzb_DoorLock")); !errors.Is(err, devicedb.ErrDuplicate) {
		t.Errorf("claimed identifier err = %v, want ErrDuplicate", err)
	}
	bad := custom("uzb_Bad")
	bad.Extend = nil
	if err := c.SaveCustom(ctx, bad); !errors.Is(err, devicedb.ErrInvalid) {
		t.Errorf("invalid err = %v, want ErrInvalid", err)
	}
	if c.Len() != 18 {
		t.Errorf("len = %d, want 18", c.Len())
	}
}

func TestDeleteCustom(t *testing.T) {
	c := New(newTestStore(t), WithLogger(quietLogger()))
	ctx := context.Background()

	if err := c.SaveCustom(ctx, custom("uzb_Porch")); err != nil {
		t.Fatal(err)
	}

	var deleted int
	c.Events().On(EventDescriptorDeleted, func(Event) { deleted++ })

	if err := c.DeleteCustom(ctx, "uzb_Light"); !errors.Is(err, ErrReadOnly) {
		t.Errorf("built-in delete err = %v, want ErrReadOnly", err)
	}
	if err := c.DeleteCustom(ctx, "uzb_Missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("missing delete err = %v, want ErrNotFound", err)
	}
	if err := c.DeleteCustom(ctx, "uzb_Porch"); err != nil {
		t.Fatal(err)
	}
	if c.Lookup("uzb_Porch") != nil {
		t.Error("descriptor still published after delete")
	}
	if deleted != 1 {
		t.Errorf("deleted events = %d, want 1", deleted)
	}
}

func TestWritesWithoutStore(t *testing.T) {
	c := New(nil, WithLogger(quietLogger()))
	if err := c.SaveCustom(context.Background(), custom("uzb_X")); !errors.Is(err, ErrNoStore) {
		t.Errorf("save err = %v", err)
	}
	if err := c.DeleteCustom(context.Background(), "uzb_X"); !errors.Is(err, ErrNoStore) {
		t.Errorf("delete err = %v", err)
	}
}

func TestEntriesAreCopies(t *testing.T) {
	c := New(nil, WithLogger(quietLogger()))

	entries := c.Entries()
	entries[0].Descriptor.ZigbeeModel[0] = "mutated"
	if c.Lookup("uzb_Light") == nil {
		t.Error("catalog state aliased by Entries")
	}
}

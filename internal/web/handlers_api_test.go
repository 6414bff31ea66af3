package web

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"uzigbee-devices/internal/catalog"
	"uzigbee-devices/internal/converter"
	"uzigbee-devices/internal/devicedb"
	"uzigbee-devices/internal/extend"
	"uzigbee-devices/internal/interview"
	"uzigbee-devices/internal/script"
	"uzigbee-devices/internal/store"
	"uzigbee-devices/internal/zcl"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func setupTestServer(t *testing.T, apiKey string, extra ...ServerOption) (*Server, *store.BoltStore) {
	t.Helper()
	logger := testLogger()

	db, err := store.NewBoltStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	mgr, err := script.NewManager(filepath.Join(t.TempDir(), "scripts"), logger)
	if err != nil {
		t.Fatal(err)
	}
	engine := script.NewEngine(mgr, logger, script.DefaultTimeout)
	cat := catalog.New(db, catalog.WithLogger(logger), catalog.WithScripts(engine))

	opts := []ServerOption{WithScripts(engine), WithVersion("test")}
	if apiKey != "" {
		opts = append(opts, WithAPIKey(apiKey))
	}
	opts = append(opts, extra...)
	srv, err := NewServer(cat, logger, opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { srv.Stop() })
	return srv, db
}

func do(srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	var rd *bytes.Reader
	switch b := body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case string:
		rd = bytes.NewReader([]byte(b))
	default:
		data, _ := json.Marshal(b)
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func porch() devicedb.Descriptor {
	return devicedb.Descriptor{
		ZigbeeModel: []string{"uzb_Porch"},
		Model:       "uzb_Porch",
		Description: "porch light",
		Extend:      []extend.Extension{extend.OnOff(), extend.Identify()},
	}
}

func TestAPIListDevices(t *testing.T) {
	srv, _ := setupTestServer(t, "")

	w := do(srv, "GET", "/api/devices", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var entries []catalog.Entry
	if err := json.NewDecoder(w.Body).Decode(&entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 18 {
		t.Fatalf("entries = %d, want 18", len(entries))
	}
	if entries[0].Descriptor.Model != "uzb_Light" || entries[0].Source != catalog.SourceBuiltin {
		t.Errorf("first entry = %+v", entries[0])
	}

	w = do(srv, "GET", "/api/devices?source=stored", nil)
	entries = nil
	json.NewDecoder(w.Body).Decode(&entries)
	if len(entries) != 0 {
		t.Errorf("stored entries = %d, want 0", len(entries))
	}
}

func TestAPIGetDevice(t *testing.T) {
	srv, _ := setupTestServer(t, "")

	w := do(srv, "GET", "/api/devices/uzb_DoorLock", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var e catalog.Entry
	if err := json.NewDecoder(w.Body).Decode(&e); err != nil {
		t.Fatal(err)
	}
	lock, ok := e.Descriptor.Extension(extend.KindLock)
	if !ok || lock.Lock.PinCodeCount != 30 {
		t.Errorf("lock extension = %+v", lock)
	}

	if w := do(srv, "GET", "/api/devices/uzb_Nope", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing device status = %d, want 404", w.Code)
	}
}

func TestAPISaveAndDeleteDevice(t *testing.T) {
	srv, db := setupTestServer(t, "")

	w := do(srv, "PUT", "/api/devices/uzb_Porch", porch())
	if w.Code != http.StatusOK {
		t.Fatalf("save status = %d: %s", w.Code, w.Body)
	}
	var e catalog.Entry
	json.NewDecoder(w.Body).Decode(&e)
	if e.Source != catalog.SourceStored || e.Descriptor.Vendor != devicedb.Vendor {
		t.Errorf("saved entry = %+v", e)
	}
	if _, err := db.GetDescriptor("uzb_Porch"); err != nil {
		t.Errorf("not stored: %v", err)
	}
	if w := do(srv, "GET", "/api/lookup/uzb_Porch", nil); w.Code != http.StatusOK {
		t.Errorf("lookup status = %d", w.Code)
	}

	w = do(srv, "DELETE", "/api/devices/uzb_Porch", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d: %s", w.Code, w.Body)
	}
	if w := do(srv, "GET", "/api/devices/uzb_Porch", nil); w.Code != http.StatusNotFound {
		t.Errorf("deleted device status = %d, want 404", w.Code)
	}
	if w := do(srv, "DELETE", "/api/devices/uzb_Porch", nil); w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", w.Code)
	}
}

func TestAPISaveDeviceRejects(t *testing.T) {
	srv, _ := setupTestServer(t, "")

	tests := []struct {
		name string
		path string
		body any
		want int
	}{
		{"bad json", "/api/devices/uzb_Porch", "{", http.StatusBadRequest},
		{"path mismatch", "/api/devices/uzb_Other", porch(), http.StatusBadRequest},
		{"no extend", "/api/devices/uzb_Bare", devicedb.Descriptor{ZigbeeModel: []string{"uzb_Bare"}, Model: "uzb_Bare"}, http.StatusBadRequest},
		{"misspelt option", "/api/devices/uzb_Bulb", `{"zigbeeModel":["uzb_Bulb"],"model":"uzb_Bulb",` +
			`"extend":[{"kind":"light","light":{"colourTemp":{"range":[153,454]}}}]}`, http.StatusBadRequest},
		{"unknown kind", "/api/devices/uzb_Odd", `{"zigbeeModel":["uzb_Odd"],"model":"uzb_Odd","extend":[{"kind":"teleport"}]}`, http.StatusBadRequest},
		{"claims builtin id", "/api/devices/uzb_Fake", devicedb.Descriptor{
			ZigbeeModel: []string{"uzb_Light"}, Model: "uzb_Fake", Extend: []extend.Extension{extend.OnOff()},
		}, http.StatusBadRequest},
		{"replaces builtin", "/api/devices/uzb_Light", devicedb.Descriptor{
			ZigbeeModel: []string{"uzb_Light"}, Model: "uzb_Light", Extend: []extend.Extension{extend.OnOff()},
		}, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(srv, "PUT", tt.path, tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.want, w.Body)
			}
		})
	}

	if w := do(srv, "DELETE", "/api/devices/uzb_Light", nil); w.Code != http.StatusConflict {
		t.Errorf("delete builtin status = %d, want 409", w.Code)
	}
}

func TestAPILookup(t *testing.T) {
	srv, _ := setupTestServer(t, "")

	w := do(srv, "GET", "/api/lookup/uzb_Thermostat", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var d devicedb.Descriptor
	json.NewDecoder(w.Body).Decode(&d)
	th, ok := d.Extension(extend.KindThermostat)
	if !ok || len(th.Thermostat.Setpoints) != 1 || th.Thermostat.Setpoints[0].Step != 0.5 {
		t.Errorf("thermostat = %+v", th)
	}

	if w := do(srv, "GET", "/api/lookup/lumi.weather", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown lookup status = %d, want 404", w.Code)
	}
}

func TestAPITemplate(t *testing.T) {
	srv, _ := setupTestServer(t, "")

	w := do(srv, "GET", "/api/template", nil)
	var resp struct {
		Descriptor   devicedb.Descriptor `json:"descriptor"`
		Alternatives []extend.Extension  `json:"alternatives"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	kinds := resp.Descriptor.Kinds()
	if len(kinds) != 2 || kinds[0] != extend.KindOnOff || kinds[1] != extend.KindTemperature {
		t.Errorf("template kinds = %v", kinds)
	}
	if len(resp.Alternatives) == 0 {
		t.Error("no alternatives")
	}
}

func TestAPIConverterJS(t *testing.T) {
	srv, _ := setupTestServer(t, "")

	w := do(srv, "GET", "/api/converter.js", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/javascript") {
		t.Errorf("content type = %q", ct)
	}
	want, _ := converter.JS(devicedb.Definitions())
	if w.Body.String() != want {
		t.Error("converter body differs from rendered built-ins")
	}

	w = do(srv, "GET", "/api/template.js", nil)
	if !strings.Contains(w.Body.String(), "m.onOff()") {
		t.Errorf("template.js = %s", w.Body)
	}
}

func TestAPIExport(t *testing.T) {
	srv, _ := setupTestServer(t, "")

	w := do(srv, "GET", "/api/export/json", nil)
	ds, err := devicedb.ParseFile("export.json", w.Body.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if len(ds) != 18 {
		t.Errorf("json export = %d descriptors", len(ds))
	}

	w = do(srv, "GET", "/api/export/yaml", nil)
	ds, err = devicedb.ParseFile("export.yaml", w.Body.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if len(ds) != 18 {
		t.Errorf("yaml export = %d descriptors", len(ds))
	}

	if w := do(srv, "GET", "/api/export/devicefile", nil); w.Code != http.StatusOK || !json.Valid(w.Body.Bytes()) {
		t.Errorf("devicefile status = %d", w.Code)
	}
	if w := do(srv, "GET", "/api/export/xml", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown format status = %d, want 404", w.Code)
	}
}

func TestAPIExtensionsAndClusters(t *testing.T) {
	srv, _ := setupTestServer(t, "")

	var specs []extend.Spec
	json.NewDecoder(do(srv, "GET", "/api/extensions", nil).Body).Decode(&specs)
	if len(specs) != len(extend.Kinds()) {
		t.Errorf("extensions = %d, want %d", len(specs), len(extend.Kinds()))
	}

	var clusters []zcl.ClusterDef
	json.NewDecoder(do(srv, "GET", "/api/clusters", nil).Body).Decode(&clusters)
	if len(clusters) != len(zcl.Standard()) {
		t.Errorf("clusters = %d, want %d", len(clusters), len(zcl.Standard()))
	}
}

func TestAPIIssuesAndReload(t *testing.T) {
	srv, _ := setupTestServer(t, "")

	var issues []catalog.Issue
	w := do(srv, "GET", "/api/issues", nil)
	if err := json.NewDecoder(w.Body).Decode(&issues); err != nil || issues == nil {
		t.Fatalf("issues = %v, err = %v", issues, err)
	}

	w = do(srv, "POST", "/api/reload", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("reload status = %d", w.Code)
	}
	var summary map[string]int
	json.NewDecoder(w.Body).Decode(&summary)
	if summary["devices"] != 18 || summary["issues"] != 0 {
		t.Errorf("summary = %v", summary)
	}
}

func TestAPIInterview(t *testing.T) {
	srv, _ := setupTestServer(t, "")

	var events int
	srv.catalog.Events().On(catalog.EventInterviewChecked, func(catalog.Event) { events++ })

	ps := interview.PowerSourceBattery
	w := do(srv, "POST", "/api/interview", interview.Identity{
		ManufacturerName: "uzigbee",
		ModelIdentifier:  "uzb_ContactSensor",
		PowerSource:      &ps,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var r interview.Report
	json.NewDecoder(w.Body).Decode(&r)
	if !r.Result.OK || r.Model != "uzb_ContactSensor" || r.Category != "binary_sensor" {
		t.Errorf("report = %+v", r)
	}
	if len(r.Result.Warnings) != 2 {
		t.Errorf("warnings = %v", r.Result.Warnings)
	}
	if events != 1 {
		t.Errorf("events = %d, want 1", events)
	}

	w = do(srv, "POST", "/api/interview", `{"manufacturer_name":"uzigbee"}`)
	json.NewDecoder(w.Body).Decode(&r)
	if r.Result.OK || r.Error == "" {
		t.Errorf("incomplete identity report = %+v", r)
	}
}

type fixedReports []interview.Report

func (f fixedReports) Reports() []interview.Report { return f }

func TestAPIInterviewReports(t *testing.T) {
	srv, _ := setupTestServer(t, "")
	w := do(srv, "GET", "/api/interview/reports", nil)
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("without bridge = %s", w.Body)
	}

	srv, _ = setupTestServer(t, "", WithReports(fixedReports{{IEEEAddress: "0x01", Model: "uzb_Light"}}))
	var reports []interview.Report
	json.NewDecoder(do(srv, "GET", "/api/interview/reports", nil).Body).Decode(&reports)
	if len(reports) != 1 || reports[0].Model != "uzb_Light" {
		t.Errorf("reports = %+v", reports)
	}
}

func TestAPIKeyAuth(t *testing.T) {
	srv, _ := setupTestServer(t, "secret")

	if w := do(srv, "GET", "/api/devices", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("no key: status = %d, want 401", w.Code)
	}

	req := httptest.NewRequest("GET", "/api/devices", nil)
	req.Header.Set("X-API-Key", "secret")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("with key: status = %d, want 200", w.Code)
	}
}

func TestAllowedOrigins(t *testing.T) {
	srv, _ := setupTestServer(t, "", WithAllowedOrigins([]string{"http://ha.local"}))

	req := httptest.NewRequest("OPTIONS", "/api/devices/uzb_Porch", nil)
	req.Header.Set("Origin", "http://ha.local")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent || w.Header().Get("Access-Control-Allow-Origin") != "http://ha.local" {
		t.Errorf("preflight: status = %d", w.Code)
	}

	data, _ := json.Marshal(porch())
	req = httptest.NewRequest("PUT", "/api/devices/uzb_Porch", bytes.NewReader(data))
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("foreign origin: status = %d, want 403", w.Code)
	}

	// Reads are not origin-checked.
	req = httptest.NewRequest("GET", "/api/version", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("foreign origin GET: status = %d, want 200", w.Code)
	}
}

func TestAPIVersion(t *testing.T) {
	srv, _ := setupTestServer(t, "")
	var v map[string]string
	json.NewDecoder(do(srv, "GET", "/api/version", nil).Body).Decode(&v)
	if v["version"] != "test" {
		t.Errorf("version = %q", v["version"])
	}
}

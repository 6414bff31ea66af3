package web

import (
	"net/http"
	"strings"
	"testing"

	"uzigbee-devices/internal/catalog"
	"uzigbee-devices/internal/interview"
	"uzigbee-devices/internal/store"
)

func TestMetrics(t *testing.T) {
	srv, _ := setupTestServer(t, "secret")

	ev := srv.catalog.Events()
	ev.Emit(catalog.Event{Type: catalog.EventConverterPublished, Data: store.PublishState{Status: store.PublishPending}})
	ev.Emit(catalog.Event{Type: catalog.EventConverterPublished, Data: store.PublishState{Status: store.PublishOK}})
	ev.Emit(catalog.Event{Type: catalog.EventInterviewChecked, Data: interview.Report{Result: interview.Result{OK: true}}})
	ev.Emit(catalog.Event{Type: catalog.EventInterviewChecked, Data: interview.Report{Result: interview.Result{OK: true}, Error: "no descriptor"}})

	// /metrics is outside /api/ and needs no key.
	w := do(srv, "GET", "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		`uzb_registry_descriptors{source="builtin"} 18`,
		`uzb_registry_descriptors{source="stored"} 0`,
		`uzb_converter_publishes_total{status="pending"} 1`,
		`uzb_converter_publishes_total{status="ok"} 1`,
		`uzb_interview_checks_total{outcome="ok"} 1`,
		`uzb_interview_checks_total{outcome="unmatched"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestMetricsFollowReload(t *testing.T) {
	srv, _ := setupTestServer(t, "")

	if w := do(srv, "PUT", "/api/devices/uzb_Porch", porch()); w.Code != http.StatusOK {
		t.Fatalf("save status = %d", w.Code)
	}
	body := do(srv, "GET", "/metrics", nil).Body.String()
	for _, want := range []string{
		`uzb_registry_descriptors{source="stored"} 1`,
		`uzb_registry_reloads_total 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

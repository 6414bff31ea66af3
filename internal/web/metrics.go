package web

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"uzigbee-devices/internal/catalog"
	"uzigbee-devices/internal/interview"
	"uzigbee-devices/internal/store"
)

// metrics mirrors catalog events into Prometheus collectors.
type metrics struct {
	reg         *prometheus.Registry
	descriptors *prometheus.GaugeVec
	issues      prometheus.Gauge
	reloads     prometheus.Counter
	publishes   *prometheus.CounterVec
	interviews  *prometheus.CounterVec
}

func newMetrics(cat *catalog.Catalog) *metrics {
	m := &metrics{
		reg: prometheus.NewRegistry(),
		descriptors: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "uzb",
			Name:      "registry_descriptors",
			Help:      "Published descriptors by source.",
		}, []string{"source"}),
		issues: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "uzb",
			Name:      "registry_issues",
			Help:      "Descriptors or sources skipped by the last reload.",
		}),
		reloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "uzb",
			Name:      "registry_reloads_total",
			Help:      "Completed registry reloads.",
		}),
		publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uzb",
			Name:      "converter_publishes_total",
			Help:      "Converter save requests and bridge answers by status.",
		}, []string{"status"}),
		interviews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uzb",
			Name:      "interview_checks_total",
			Help:      "Interview checks by outcome.",
		}, []string{"outcome"}),
	}
	m.reg.MustRegister(m.descriptors, m.issues, m.reloads, m.publishes, m.interviews)

	counts := make(map[catalog.Source]int)
	for _, e := range cat.Entries() {
		counts[e.Source]++
	}
	m.setDescriptors(counts)
	m.issues.Set(float64(len(cat.Issues())))
	return m
}

func (m *metrics) setDescriptors(counts map[catalog.Source]int) {
	for _, src := range []catalog.Source{catalog.SourceBuiltin, catalog.SourceFile, catalog.SourceScript, catalog.SourceStored} {
		m.descriptors.WithLabelValues(string(src)).Set(float64(counts[src]))
	}
}

func (m *metrics) observe(ev catalog.Event) {
	switch data := ev.Data.(type) {
	case catalog.ReloadSummary:
		m.reloads.Inc()
		m.setDescriptors(data.Sources)
		m.issues.Set(float64(data.Issues))
	case store.PublishState:
		m.publishes.WithLabelValues(data.Status).Inc()
	case interview.Report:
		m.interviews.WithLabelValues(outcome(data)).Inc()
	}
}

func outcome(r interview.Report) string {
	switch {
	case !r.Result.OK:
		return "invalid"
	case r.Error != "":
		return "unmatched"
	}
	return "ok"
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

package api

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/detectoo/detectoo/internal/model"
)

// metrics are registered on a per-server registry so several servers can
// coexist in one process.
type metrics struct {
	registry  *prometheus.Registry
	analyses  *prometheus.CounterVec
	rejected  *prometheus.CounterVec
	regions   *prometheus.CounterVec
	wsClients prometheus.Gauge
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "detectoo_analyses_total",
			Help: "Completed analyses by verdict.",
		}, []string{"verdict"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "detectoo_rejected_uploads_total",
			Help: "Uploads rejected before analysis, by reason.",
		}, []string{"reason"}),
		regions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "detectoo_regions_total",
			Help: "Regions labeled by the sampler.",
		}, []string{"label"}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "detectoo_ws_sessions",
			Help: "Open websocket sessions.",
		}),
	}
	m.registry.MustRegister(m.analyses, m.rejected, m.regions, m.wsClients)
	return m
}

func (m *metrics) observe(r model.AnalysisResult, regions []model.Region) {
	label := "real"
	if r.IsAI {
		label = "ai"
	}
	m.analyses.WithLabelValues(label).Inc()

	c := model.CountRegions(regions)
	m.regions.WithLabelValues("ai").Add(float64(c.AI))
	m.regions.WithLabelValues("real").Add(float64(c.Real))
}

func (m *metrics) reject(reason string) {
	m.rejected.WithLabelValues(reason).Inc()
}

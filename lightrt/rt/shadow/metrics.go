package shadow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exports the shadow pass stats. A nil *Metrics records nothing.
type Metrics struct {
	ActiveMaps     prometheus.Gauge
	UpdatedMaps    prometheus.Counter
	SkippedMaps    *prometheus.CounterVec
	ReleasedMaps   prometheus.Counter
	RenderFailures prometheus.Counter
	PoolTextures   prometheus.Gauge
	PoolBytes      prometheus.Gauge
	DrawCalls      prometheus.Counter
	PassDuration   prometheus.Histogram
}

// NewMetrics registers the shadow metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ActiveMaps: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "umbra_shadow_active_maps",
				Help: "Shadow maps considered in the last pass",
			},
		),
		UpdatedMaps: f.NewCounter(
			prometheus.CounterOpts{
				Name: "umbra_shadow_updated_maps_total",
				Help: "Total number of shadow map renders",
			},
		),
		SkippedMaps: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "umbra_shadow_skipped_maps_total",
				Help: "Shadow maps not rendered, by reason",
			},
			[]string{"reason"},
		),
		ReleasedMaps: f.NewCounter(
			prometheus.CounterOpts{
				Name: "umbra_shadow_released_maps_total",
				Help: "Shadow maps whose textures were purged after going unused",
			},
		),
		RenderFailures: f.NewCounter(
			prometheus.CounterOpts{
				Name: "umbra_shadow_render_failures_total",
				Help: "Shadow map renders that failed to allocate resources",
			},
		),
		PoolTextures: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "umbra_shadow_pool_textures",
				Help: "Free textures held by the render target pool",
			},
		),
		PoolBytes: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "umbra_shadow_pool_bytes",
				Help: "Memory held by free pooled textures",
			},
		),
		DrawCalls: f.NewCounter(
			prometheus.CounterOpts{
				Name: "umbra_shadow_draw_calls_total",
				Help: "Draw calls issued while rendering shadow maps",
			},
		),
		PassDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "umbra_shadow_pass_duration_seconds",
				Help:    "Shadow pass duration in seconds",
				Buckets: []float64{0.001, 0.002, 0.004, 0.008, 0.016, 0.033, 0.066},
			},
		),
	}
}

func (m *Metrics) observe(s PassStats) {
	if m == nil {
		return
	}
	m.ActiveMaps.Set(float64(s.ActiveMaps))
	m.UpdatedMaps.Add(float64(s.UpdatedMaps))
	m.SkippedMaps.WithLabelValues("budget").Add(float64(s.SkippedByBudget))
	m.SkippedMaps.WithLabelValues("lod").Add(float64(s.SkippedByLOD))
	m.SkippedMaps.WithLabelValues("occluded").Add(float64(s.Occluded))
	m.ReleasedMaps.Add(float64(s.Released))
	m.RenderFailures.Add(float64(s.Failed))
	m.PoolTextures.Set(float64(s.PoolTextures))
	m.PoolBytes.Set(float64(s.PoolBytes))
	m.DrawCalls.Add(float64(s.DrawCalls))
	m.PassDuration.Observe(s.Elapsed.Seconds())
}

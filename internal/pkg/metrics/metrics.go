package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collectors 匯入流程相關指標
type Collectors struct {
	Attempts         *prometheus.CounterVec
	Exhausted        *prometheus.CounterVec
	QueueEnqueued    prometheus.Counter
	QueueReplayed    *prometheus.CounterVec
	QueueLength      prometheus.Gauge
	StageDuration    *prometheus.HistogramVec
	MatchResolutions *prometheus.CounterVec
}

// New 建立指標並註冊到 registerer，registerer 為 nil 時不註冊（測試用）
func New(registerer prometheus.Registerer) *Collectors {
	c := &Collectors{
		Attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "recipe_ingest",
			Name:      "executor_failures_total",
			Help:      "Failed executor attempts by classification.",
		}, []string{"class"}),
		Exhausted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "recipe_ingest",
			Name:      "executor_exhausted_total",
			Help:      "Operations that consumed the whole retry budget.",
		}, []string{"class"}),
		QueueEnqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "recipe_ingest",
			Name:      "offline_queue_enqueued_total",
			Help:      "Writes deferred to the offline queue.",
		}),
		QueueReplayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "recipe_ingest",
			Name:      "offline_queue_replayed_total",
			Help:      "Offline queue replays by outcome.",
		}, []string{"outcome"}),
		QueueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "recipe_ingest",
			Name:      "offline_queue_length",
			Help:      "Items currently waiting in the offline queue.",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "recipe_ingest",
			Name:      "pipeline_stage_seconds",
			Help:      "Time spent producing each pipeline stage.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),
		MatchResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "recipe_ingest",
			Name:      "ingredient_matches_total",
			Help:      "Ingredient photo resolutions by match type.",
		}, []string{"match_type"}),
	}
	if registerer != nil {
		registerer.MustRegister(
			c.Attempts,
			c.Exhausted,
			c.QueueEnqueued,
			c.QueueReplayed,
			c.QueueLength,
			c.StageDuration,
			c.MatchResolutions,
		)
	}
	return c
}

// Noop 測試用的未註冊指標
func Noop() *Collectors {
	return New(nil)
}

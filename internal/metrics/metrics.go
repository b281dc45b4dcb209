package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "variant_service"

// Metrics groups the service's collectors. A nil *Metrics is valid and records
// nothing, which keeps call sites free of nil checks.
type Metrics struct {
	Merges          prometheus.Counter
	DroppedProducts prometheus.Counter
	DroppedSkus     prometheus.Counter
	Confirmations   *prometheus.CounterVec
	MediaUploads    *prometheus.CounterVec
	Submissions     *prometheus.CounterVec
	ActiveDrafts    prometheus.Gauge
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Merges: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merges_total",
			Help:      "Number of applied variant regenerations.",
		}),
		DroppedProducts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_products_total",
			Help:      "Products removed by applied regenerations.",
		}),
		DroppedSkus: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_skus_total",
			Help:      "SKUs removed by applied regenerations.",
		}),
		Confirmations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "confirmations_total",
			Help:      "Destructive edit confirmations by outcome.",
		}, []string{"outcome"}),
		MediaUploads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "media_uploads_total",
			Help:      "Uploaded media files by result.",
		}, []string{"result"}),
		Submissions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Draft submissions by result.",
		}, []string{"result"}),
		ActiveDrafts: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_drafts",
			Help:      "Drafts currently held in memory.",
		}),
	}
}

// ObserveMerge records an applied regeneration.
func (m *Metrics) ObserveMerge(droppedProducts, droppedSkus int) {
	if m == nil {
		return
	}
	m.Merges.Inc()
	m.DroppedProducts.Add(float64(droppedProducts))
	m.DroppedSkus.Add(float64(droppedSkus))
}

// ObserveConfirmation records the outcome of a confirmation request:
// "accepted", "declined" or "error".
func (m *Metrics) ObserveConfirmation(outcome string) {
	if m == nil {
		return
	}
	m.Confirmations.WithLabelValues(outcome).Inc()
}

// ObserveUploads records a batch upload result.
func (m *Metrics) ObserveUploads(ok, failed int) {
	if m == nil {
		return
	}
	m.MediaUploads.WithLabelValues("ok").Add(float64(ok))
	m.MediaUploads.WithLabelValues("failed").Add(float64(failed))
}

// ObserveSubmission records a submission result: "ok", "invalid" or "failed".
func (m *Metrics) ObserveSubmission(result string) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(result).Inc()
}

// SetActiveDrafts reports the current number of drafts.
func (m *Metrics) SetActiveDrafts(n int) {
	if m == nil {
		return
	}
	m.ActiveDrafts.Set(float64(n))
}

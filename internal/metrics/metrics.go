package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the service metrics. A nil *Registry is valid and records nothing.
type Registry struct {
	reg                 *prometheus.Registry
	Aggregations        *prometheus.CounterVec
	AggregationDuration prometheus.Histogram
	LineItemsFormatted  prometheus.Counter
	Placeholders        prometheus.Counter
	CRMRequests         *prometheus.CounterVec
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	aggregations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dealdesk_aggregations_total",
		Help: "Line-item aggregations by outcome (success or error kind).",
	}, []string{"outcome"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dealdesk_aggregation_duration_seconds",
		Buckets: prometheus.DefBuckets,
	})
	formatted := prometheus.NewCounter(prometheus.CounterOpts{Name: "dealdesk_line_items_formatted_total"})
	placeholders := prometheus.NewCounter(prometheus.CounterOpts{Name: "dealdesk_line_item_placeholders_total"})
	crmRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dealdesk_crm_requests_total",
	}, []string{"op", "outcome"})

	r.MustRegister(aggregations, duration, formatted, placeholders, crmRequests)
	return &Registry{
		reg:                 r,
		Aggregations:        aggregations,
		AggregationDuration: duration,
		LineItemsFormatted:  formatted,
		Placeholders:        placeholders,
		CRMRequests:         crmRequests,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }

// ObserveAggregation records one finished aggregation.
func (r *Registry) ObserveAggregation(outcome string, took time.Duration, formatted, placeholders int) {
	if r == nil {
		return
	}
	r.Aggregations.WithLabelValues(outcome).Inc()
	r.AggregationDuration.Observe(took.Seconds())
	r.LineItemsFormatted.Add(float64(formatted))
	r.Placeholders.Add(float64(placeholders))
}

// ObserveCRM has the shape of crm.Observer.
func (r *Registry) ObserveCRM(op string, err error) {
	if r == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.CRMRequests.WithLabelValues(op, outcome).Inc()
}

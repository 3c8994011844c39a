package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	registry           *prom.Registry
	conversionDuration *prom.HistogramVec
	conversionResults  *prom.CounterVec
	buildDuration      prom.Histogram
	buildOutcome       *prom.CounterVec
	documentsCollected prom.Gauge
}

// NewPrometheusRecorder constructs and registers Prometheus metrics on the
// given registry (a private one is created when nil).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{registry: reg}
	pr.conversionDuration = prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: "docpress",
		Name:      "conversion_duration_seconds",
		Help:      "Duration of individual converter invocations",
		Buckets:   prom.DefBuckets,
	}, []string{"format"})
	pr.conversionResults = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "docpress",
		Name:      "conversion_results_total",
		Help:      "Converter invocation counts by format and outcome",
	}, []string{"format", "result"})
	pr.buildDuration = prom.NewHistogram(prom.HistogramOpts{
		Namespace: "docpress",
		Name:      "build_duration_seconds",
		Help:      "Total pipeline run duration",
		Buckets:   prom.DefBuckets,
	})
	pr.buildOutcome = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "docpress",
		Name:      "build_outcomes_total",
		Help:      "Pipeline runs by final outcome",
	}, []string{"outcome"})
	pr.documentsCollected = prom.NewGauge(prom.GaugeOpts{
		Namespace: "docpress",
		Name:      "documents_collected",
		Help:      "Documents collected by the last run",
	})
	reg.MustRegister(pr.conversionDuration, pr.conversionResults, pr.buildDuration, pr.buildOutcome, pr.documentsCollected)
	return pr
}

func (p *PrometheusRecorder) RecordConversion(format, result string, d time.Duration) {
	p.conversionDuration.WithLabelValues(format).Observe(d.Seconds())
	p.conversionResults.WithLabelValues(format, result).Inc()
}

func (p *PrometheusRecorder) RecordBuild(outcome string, d time.Duration) {
	p.buildDuration.Observe(d.Seconds())
	p.buildOutcome.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) RecordDocuments(n int) {
	p.documentsCollected.Set(float64(n))
}

// Handler exposes the recorder's registry for the /metrics endpoint.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

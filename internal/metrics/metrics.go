package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"verdict-engine/internal/domain"
)

// Recorder is the serving-side Prometheus surface. It owns its registry
// so tests and reloads never trip duplicate registration.
type Recorder struct {
	registry *prometheus.Registry

	predictions    *prometheus.CounterVec
	calibrations   *prometheus.HistogramVec
	fallbackState  *prometheus.GaugeVec
	featurePSI     *prometheus.GaugeVec
	driftAggregate *prometheus.GaugeVec
	outcomeEvents  *prometheus.CounterVec
	posteriorFlush *prometheus.CounterVec
	droppedLogs    prometheus.Counter
}

func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		predictions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "verdict_predictions_total",
			Help: "Predictions served, by recommendation",
		}, []string{"recommendation"}),
		calibrations: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "verdict_calibrated_confidence",
			Help:    "Calibrated confidence distribution per engine",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}, []string{"engine"}),
		fallbackState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "verdict_model_fallback",
			Help: "1 when a component serves its documented fallback instead of a trained artifact",
		}, []string{"component"}),
		featurePSI: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "verdict_feature_psi",
			Help: "Population stability index per feature against the training snapshot",
		}, []string{"feature"}),
		driftAggregate: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "verdict_drift_aggregate",
			Help: "Aggregate drift state: 0 stable, 1 monitor, 2 retrain_recommended",
		}, []string{"state"}),
		outcomeEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "verdict_outcome_events_total",
			Help: "Trade-outcome events consumed, by result",
		}, []string{"result"}),
		posteriorFlush: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "verdict_posterior_flush_total",
			Help: "Posterior flush attempts, by result",
		}, []string{"result"}),
		droppedLogs: factory.NewCounter(prometheus.CounterOpts{
			Name: "verdict_prediction_log_dropped_total",
			Help: "Prediction log records dropped to protect the response path",
		}),
	}
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) RecordPrediction(action domain.Action) {
	r.predictions.WithLabelValues(string(action)).Inc()
}

func (r *Recorder) RecordCalibration(engine domain.EngineKind, calibrated float64) {
	r.calibrations.WithLabelValues(string(engine)).Observe(calibrated)
}

func (r *Recorder) SetFallback(component string, fallback bool) {
	v := 0.0
	if fallback {
		v = 1
	}
	r.fallbackState.WithLabelValues(component).Set(v)
}

func (r *Recorder) RecordDrift(report domain.DriftReport) {
	for _, fd := range report.Features {
		if fd.Status == domain.DriftInsufficient {
			continue
		}
		r.featurePSI.WithLabelValues(fd.Feature).Set(fd.PSI)
	}
	for _, state := range []domain.AggregateDrift{domain.AggregateStable, domain.AggregateMonitor, domain.AggregateRetrain} {
		v := 0.0
		if report.Aggregate == state {
			v = 1
		}
		r.driftAggregate.WithLabelValues(string(state)).Set(v)
	}
}

func (r *Recorder) RecordOutcome(ok bool) {
	if ok {
		r.outcomeEvents.WithLabelValues("handled").Inc()
		return
	}
	r.outcomeEvents.WithLabelValues("rejected").Inc()
}

func (r *Recorder) RecordPosteriorFlush(err error) {
	if err != nil {
		r.posteriorFlush.WithLabelValues("error").Inc()
		return
	}
	r.posteriorFlush.WithLabelValues("ok").Inc()
}

func (r *Recorder) RecordDroppedLog() {
	r.droppedLogs.Inc()
}

package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ResolutionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "campus_card_resolution_duration_seconds",
			Help:    "Location resolution duration in seconds",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"mode"},
	)

	ResolutionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campus_card_resolution_total",
			Help: "Location resolutions by mode and the tier that produced the result",
		},
		[]string{"mode", "source"},
	)

	ConfidenceScore = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "campus_card_resolution_confidence",
			Help:    "Confidence of returned resolution results",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
		[]string{"source"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campus_card_cache_hits_total",
			Help: "Total result cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campus_card_cache_misses_total",
			Help: "Total result cache misses",
		},
		[]string{"cache_type"},
	)

	CacheEvictions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campus_card_cache_evictions_total",
			Help: "Expired result cache entries removed",
		},
		[]string{"cache_type"},
	)

	ModelRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campus_card_model_requests_total",
			Help: "Model endpoint calls by outcome",
		},
		[]string{"outcome"},
	)

	ModelDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "campus_card_model_request_duration_seconds",
			Help:    "Model endpoint call duration including retries",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)

	ModelTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campus_card_model_tokens_used",
			Help: "Total model tokens used",
		},
		[]string{"model", "type"},
	)

	RefinementTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campus_card_refinement_total",
			Help: "Background refinement tasks by outcome",
		},
		[]string{"outcome"},
	)

	RefinementQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "campus_card_refinement_queue_depth",
			Help: "Refinement tasks waiting for a worker",
		},
	)

	GazetteerLocations = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "campus_card_gazetteer_locations",
			Help: "Locations loaded into the gazetteer",
		},
	)
)

func Init() {
	prometheus.MustRegister(ResolutionDuration)
	prometheus.MustRegister(ResolutionTotal)
	prometheus.MustRegister(ConfidenceScore)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(CacheEvictions)
	prometheus.MustRegister(ModelRequests)
	prometheus.MustRegister(ModelDuration)
	prometheus.MustRegister(ModelTokensUsed)
	prometheus.MustRegister(RefinementTotal)
	prometheus.MustRegister(RefinementQueueDepth)
	prometheus.MustRegister(GazetteerLocations)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}

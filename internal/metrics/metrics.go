package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Quote metrics
	QuoteRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swapscope_quote_requests_total",
			Help: "Total number of trade derivations by quote source and outcome",
		},
		[]string{"source", "status"},
	)

	QuoteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "swapscope_quote_duration_seconds",
			Help:    "Trade derivation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	StaleQuotesDiscarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swapscope_stale_quotes_discarded_total",
		Help: "Total number of remote quotes discarded for exceeding the block-age bound",
	})

	// Submission metrics
	GasEstimations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swapscope_gas_estimations_total",
			Help: "Total number of candidate-call gas estimations by outcome",
		},
		[]string{"outcome"},
	)

	Submissions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swapscope_submissions_total",
		Help: "Total number of transactions submitted",
	})

	SubmissionFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swapscope_submission_failures_total",
			Help: "Total number of failed submissions by reason",
		},
		[]string{"reason"},
	)

	// Watcher metrics
	WatchedConfirmations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swapscope_watched_confirmations_total",
			Help: "Total number of watched transactions reaching a final status",
		},
		[]string{"status"},
	)

	PendingTransactions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "swapscope_pending_transactions",
		Help: "Number of submitted transactions awaiting a receipt",
	})

	// HTTP metrics
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swapscope_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "swapscope_http_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Database/Document Store Metrics
var (
	// DBOperations tracks total document store operations
	DBOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cvbuilder_db_operations_total",
			Help: "Total document store operations by table, operation, and status",
		},
		[]string{"table", "operation", "status"},
	)

	// DBDuration tracks document store operation latency
	DBDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:                            "cvbuilder_db_operation_duration_ms",
			Help:                            "Document store operation duration in milliseconds",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 1 * time.Hour,
		},
		[]string{"table", "operation"},
	)

	// DBRowsReturned tracks documents returned by read operations
	DBRowsReturned = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:                            "cvbuilder_db_rows_returned",
			Help:                            "Number of documents returned by read operations",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 1 * time.Hour,
		},
		[]string{"table", "operation"},
	)

	// DBErrors tracks document store errors by type
	DBErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cvbuilder_db_errors_total",
			Help: "Total document store errors by table, operation, and error type",
		},
		[]string{"table", "operation", "error_type"},
	)
)

// Identity Provider Metrics
var (
	// ProviderCalls tracks outbound calls to external identity providers
	ProviderCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cvbuilder_provider_calls_total",
			Help: "Total identity provider calls by provider, operation, and outcome",
		},
		[]string{"provider", "operation", "outcome"},
	)

	// ProviderDuration tracks identity provider call latency
	ProviderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:                            "cvbuilder_provider_call_duration_ms",
			Help:                            "Identity provider call duration in milliseconds",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 1 * time.Hour,
		},
		[]string{"provider", "operation"},
	)

	// CacheHits tracks JWKS and discovery cache hits
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cvbuilder_cache_hits_total",
			Help: "Total cache hits by cache name",
		},
		[]string{"cache_name"},
	)

	// CacheMisses tracks JWKS and discovery cache misses
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cvbuilder_cache_misses_total",
			Help: "Total cache misses by cache name",
		},
		[]string{"cache_name"},
	)
)

// Authentication Metrics
var (
	// Authentications tracks authenticate outcomes (existing, merged, created, error)
	Authentications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cvbuilder_authentications_total",
			Help: "Total authentications by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	// AuthenticationDuration tracks end-to-end authenticate latency
	AuthenticationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:                            "cvbuilder_authentication_duration_ms",
			Help:                            "Authentication duration in milliseconds",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 1 * time.Hour,
		},
		[]string{"provider"},
	)

	// CreateConflictRetries tracks find-or-create retries after a lost insert race
	CreateConflictRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cvbuilder_create_conflict_retries_total",
			Help: "Total identity resolution retries caused by create conflicts",
		},
		[]string{"provider"},
	)

	// SessionTokensIssued tracks first-party session tokens minted
	SessionTokensIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cvbuilder_session_tokens_issued_total",
			Help: "Total session tokens issued",
		},
	)
)

// HTTP Metrics
var (
	// HTTPRequests tracks HTTP requests
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cvbuilder_http_requests_total",
			Help: "Total HTTP requests by route, method, and status code",
		},
		[]string{"route", "method", "status_code"},
	)

	// HTTPDuration tracks HTTP request duration
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:                            "cvbuilder_http_request_duration_ms",
			Help:                            "HTTP request duration in milliseconds",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 1 * time.Hour,
		},
		[]string{"route", "method"},
	)

	// RateLimited tracks requests rejected by the rate limiter
	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cvbuilder_http_rate_limited_total",
			Help: "Total HTTP requests rejected by the per-client rate limiter",
		},
	)
)

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Booking outcomes
const (
	OutcomeBooked      = "booked"
	OutcomeConflict    = "conflict"
	OutcomeUnavailable = "unavailable"
	OutcomeInvalid     = "invalid"
	OutcomeError       = "error"
)

var (
	// BookingsTotal counts booking attempts by outcome
	BookingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hospital_bookings_total",
		Help: "Booking attempts by outcome",
	}, []string{"outcome"})

	// TransitionsTotal counts appointment status transitions
	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hospital_appointment_transitions_total",
		Help: "Appointment status transitions by target status",
	}, []string{"status"})

	// LoginsTotal counts login attempts by outcome
	LoginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hospital_logins_total",
		Help: "Login attempts by outcome",
	}, []string{"outcome"})

	// TokenRefreshesTotal counts refresh attempts by outcome
	TokenRefreshesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hospital_token_refreshes_total",
		Help: "Refresh token exchanges by outcome",
	}, []string{"outcome"})

	// SlotCacheHits counts free-slot cache hits and misses
	SlotCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hospital_slot_cache_requests_total",
		Help: "Free-slot cache lookups by result",
	}, []string{"result"})

	// HTTPRequestDuration observes request latency per route and status class
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hospital_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)

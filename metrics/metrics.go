package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinic_http_requests_total",
			Help: "Total number of handled HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clinic_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Booking
	AppointmentsBooked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clinic_appointments_booked_total",
			Help: "Appointments successfully booked",
		},
	)

	SlotConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clinic_slot_conflicts_total",
			Help: "Booking attempts rejected because the slot was taken",
		},
	)

	AppointmentsCancelled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinic_appointments_cancelled_total",
			Help: "Appointments cancelled, by the role that cancelled them",
		},
		[]string{"role"},
	)

	// Chat
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinic_chat_messages_total",
			Help: "Chat messages stored, by ingress transport",
		},
		[]string{"transport"},
	)

	BroadcastFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clinic_chat_broadcast_failures_total",
			Help: "Chat events that could not be published",
		},
	)

	SocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "clinic_socket_connections",
			Help: "Currently open realtime connections",
		},
	)

	// Payments
	PaymentVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinic_payment_verifications_total",
			Help: "Payment signature checks by target and outcome",
		},
		[]string{"target", "outcome"},
	)
)

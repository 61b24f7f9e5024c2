package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	reservationCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "innoviahub",
			Name:      "reservation_created_total",
			Help:      "Count of reservations committed.",
		},
	)

	reservationRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "innoviahub",
			Name:      "reservation_rejected_total",
			Help:      "Count of reservation requests rejected by reason.",
		},
		[]string{"reason"},
	)

	reservationCanceled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "innoviahub",
			Name:      "reservation_canceled_total",
			Help:      "Count of reservations canceled.",
		},
	)

	chatRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "innoviahub",
			Name:      "chat_requests_total",
			Help:      "Count of assistant requests by outcome.",
		},
		[]string{"outcome"},
	)

	eventsDelivered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "innoviahub",
			Name:      "slot_events_delivered_total",
			Help:      "Count of slot events delivered to observers.",
		},
	)

	eventsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "innoviahub",
			Name:      "slot_events_dropped_total",
			Help:      "Count of slot events dropped for slow observers.",
		},
	)

	remindersSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "innoviahub",
			Name:      "reminders_sent_total",
			Help:      "Count of booking reminders published.",
		},
	)

	remindersFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "innoviahub",
			Name:      "reminders_failed_total",
			Help:      "Count of booking reminders that exhausted retries.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "innoviahub",
			Name:      "http_requests_total",
			Help:      "Count of HTTP API requests by endpoint.",
		},
		[]string{"endpoint"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			reservationCreated, reservationRejected, reservationCanceled,
			chatRequests, eventsDelivered, eventsDropped,
			remindersSent, remindersFailed, httpRequests,
		)
	})
}

func IncReservationCreated() { reservationCreated.Inc() }

func IncReservationRejected(reason string) { reservationRejected.WithLabelValues(reason).Inc() }

func IncReservationCanceled() { reservationCanceled.Inc() }

func IncChatRequest(outcome string) { chatRequests.WithLabelValues(outcome).Inc() }

func IncEventDelivered() { eventsDelivered.Inc() }

func IncEventDropped() { eventsDropped.Inc() }

func IncReminderSent() { remindersSent.Inc() }

func IncReminderFailed() { remindersFailed.Inc() }

func IncHTTP(endpoint string) { httpRequests.WithLabelValues(endpoint).Inc() }

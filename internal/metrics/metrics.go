package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "barbearia"

var (
	once sync.Once

	bookingCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_created_total",
			Help:      "Count of bookings created by service.",
		},
		[]string{"service"},
	)

	bookingCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_cancelled_total",
			Help:      "Count of cancelled bookings.",
		},
	)

	bookingRescheduled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_rescheduled_total",
			Help:      "Count of edits by outcome (moved, swap_proposed, swapped, conflict).",
		},
		[]string{"outcome"},
	)

	packageOccurrences = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "package_occurrence_total",
			Help:      "Count of package occurrences by result.",
		},
		[]string{"result"},
	)

	persistFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_failure_total",
			Help:      "Count of failed agenda saves.",
		},
	)

	backupsTaken = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backup_taken_total",
			Help:      "Count of document backups written.",
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(bookingCreated, bookingCancelled, bookingRescheduled,
			packageOccurrences, persistFailures, backupsTaken)
	})
}

func IncBookingCreated(service string) {
	bookingCreated.WithLabelValues(service).Inc()
}

func IncBookingCancelled() {
	bookingCancelled.Inc()
}

func IncRescheduled(outcome string) {
	bookingRescheduled.WithLabelValues(outcome).Inc()
}

func IncPackageOccurrence(result string) {
	packageOccurrences.WithLabelValues(result).Inc()
}

func IncPersistFailure() {
	persistFailures.Inc()
}

func IncBackupTaken() {
	backupsTaken.Inc()
}

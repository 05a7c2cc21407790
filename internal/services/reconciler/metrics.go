package reconciler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reconcileRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_reconcile_runs_total",
		Help: "Количество запусков реконсиляции по результату (ok, skipped, canceled, error).",
	}, []string{"result"})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "billing_reconcile_duration_seconds",
		Help:    "Длительность успешных прогонов реконсиляции.",
		Buckets: prometheus.DefBuckets,
	})

	entriesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "billing_entries_created_total",
		Help: "Количество созданных записей платёжного реестра.",
	})

	entriesArchived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "billing_entries_archived_total",
		Help: "Количество заархивированных записей платёжного реестра.",
	})

	subscriberFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "billing_subscriber_failures_total",
		Help: "Количество абонентов, обработка которых завершилась ошибкой.",
	})
)

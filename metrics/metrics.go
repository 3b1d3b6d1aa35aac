// metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	XPAwardedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "initium_xp_awarded_total",
		Help: "Total XP awarded across all sources",
	})

	LevelUpsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "initium_level_ups_total",
		Help: "Total level-ups",
	})

	HabitCompletionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "initium_habit_completions_total",
		Help: "Habit completion attempts by outcome",
	}, []string{"status"})

	// op is sync or migrate; status is ok, failed, rejected, unauthenticated or cancelled.
	SyncRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "initium_sync_runs_total",
		Help: "Sync coordinator runs by operation and status",
	}, []string{"op", "status"})

	SyncDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "initium_sync_duration_seconds",
		Help:    "Duration of a remote round-trip including write-back",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"op"})

	AutoSyncFiredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "initium_auto_sync_fired_total",
		Help: "Auto-sync evaluations that fired a sync, by status",
	}, []string{"status"})

	BackupOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "initium_backup_operations_total",
		Help: "Backup operations by type and status",
	}, []string{"operation", "status"})
)

// Status renders an error as a metric label.
func Status(err error) string {
	if err != nil {
		return "failed"
	}
	return "ok"
}

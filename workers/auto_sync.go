// workers/auto_sync.go
package workers

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"initium-core/metrics"
	"initium-core/models"
	"initium-core/services"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

const (
	DefaultAutoSyncCooldown      = 15 * time.Minute
	DefaultAutoSyncCheckInterval = 1 * time.Minute
)

// Syncer is the part of the SyncCoordinator the scheduler needs.
type Syncer interface {
	SyncAll(ctx context.Context) (*services.SyncResult, error)
}

// MarkerStore persists the durable "last auto sync" marker.
type MarkerStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

type AutoSyncConfig struct {
	Cooldown      time.Duration
	CheckInterval time.Duration
	Clock         clockwork.Clock
}

// AutoSyncScheduler fires SyncAll for authenticated, non-guest identities at most once per
// cooldown window. It evaluates on Start, on every identity change, and on a periodic tick.
type AutoSyncScheduler struct {
	syncer  Syncer
	session *services.SessionState
	markers MarkerStore
	cfg     AutoSyncConfig
	log     *zap.Logger

	sched gocron.Scheduler
	// mu serializes evaluations so two triggers cannot both pass the cooldown check.
	mu sync.Mutex
	wg sync.WaitGroup
}

func NewAutoSyncScheduler(cfg AutoSyncConfig, syncer Syncer, session *services.SessionState, markers MarkerStore, log *zap.Logger) *AutoSyncScheduler {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultAutoSyncCooldown
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = DefaultAutoSyncCheckInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AutoSyncScheduler{syncer: syncer, session: session, markers: markers, cfg: cfg, log: log}
}

// Start registers the identity listener, schedules the periodic check and runs the mount-time
// evaluation. Everything stops when ctx is done or Stop is called.
func (s *AutoSyncScheduler) Start(ctx context.Context) error {
	sched, err := gocron.NewScheduler(gocron.WithClock(s.cfg.Clock))
	if err != nil {
		return fmt.Errorf("failed to create auto-sync scheduler: %w", err)
	}
	_, err = sched.NewJob(
		gocron.DurationJob(s.cfg.CheckInterval),
		gocron.NewTask(func() { s.evaluateAndLog(ctx, "tick") }),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule auto-sync job: %w", err)
	}
	s.sched = sched
	sched.Start()

	s.session.OnIdentityChange(func(services.Identity) {
		if ctx.Err() != nil {
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.evaluateAndLog(ctx, "identity_change")
		}()
	})

	s.log.Info("🔁 [AUTO_SYNC] scheduler started",
		zap.Duration("cooldown", s.cfg.Cooldown), zap.Duration("check_interval", s.cfg.CheckInterval))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.evaluateAndLog(ctx, "mount")
	}()
	return nil
}

// Stop shuts down the periodic job and waits for in-flight evaluations.
func (s *AutoSyncScheduler) Stop() error {
	var err error
	if s.sched != nil {
		err = s.sched.Shutdown()
	}
	s.wg.Wait()
	s.log.Info("⏹️ [AUTO_SYNC] scheduler stopped")
	return err
}

func (s *AutoSyncScheduler) evaluateAndLog(ctx context.Context, trigger string) {
	if _, err := s.Evaluate(ctx); err != nil {
		s.log.Warn("⚠️ [AUTO_SYNC] evaluation failed", zap.String("trigger", trigger), zap.Error(err))
	}
}

// Eligible reports whether a sync may fire now, with the reason when it may not.
func (s *AutoSyncScheduler) Eligible(ctx context.Context) (bool, string, error) {
	id := s.session.Identity()
	switch {
	case id.UserID == "" || id.Token == "":
		return false, "not authenticated", nil
	case id.Guest || id.UserID == models.GuestUserID:
		return false, "guest identity", nil
	}

	last, ok, err := s.lastAutoSync(ctx)
	if err != nil {
		return false, "", err
	}
	if ok {
		if elapsed := s.cfg.Clock.Now().Sub(last); elapsed <= s.cfg.Cooldown {
			return false, fmt.Sprintf("cooldown: last auto sync %s ago", elapsed.Round(time.Second)), nil
		}
	}
	return true, "", nil
}

// Evaluate fires SyncAll when eligible. fired reports whether a sync was attempted. The marker is
// written only after a successful sync, so a failure is retried at the next eligible evaluation.
func (s *AutoSyncScheduler) Evaluate(ctx context.Context) (fired bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok, reason, err := s.Eligible(ctx)
	if err != nil {
		return false, err
	}
	if !ok {
		s.log.Debug("💤 [AUTO_SYNC] skipped", zap.String("reason", reason))
		return false, nil
	}

	now := s.cfg.Clock.Now()
	if _, err := s.syncer.SyncAll(ctx); err != nil {
		metrics.AutoSyncFiredTotal.WithLabelValues("failed").Inc()
		s.log.Error("❌ [AUTO_SYNC] sync failed, marker left untouched", zap.Error(err))
		return true, err
	}

	if err := s.markers.Set(ctx, models.SettingLastAutoSync, strconv.FormatInt(now.UnixMilli(), 10)); err != nil {
		metrics.AutoSyncFiredTotal.WithLabelValues("marker_failed").Inc()
		return true, fmt.Errorf("sync succeeded but marker write failed: %w", err)
	}
	metrics.AutoSyncFiredTotal.WithLabelValues("ok").Inc()
	s.log.Info("✅ [AUTO_SYNC] synced", zap.Time("marker", now))
	return true, nil
}

func (s *AutoSyncScheduler) lastAutoSync(ctx context.Context) (time.Time, bool, error) {
	raw, ok, err := s.markers.Get(ctx, models.SettingLastAutoSync)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		s.log.Warn("⚠️ [AUTO_SYNC] unreadable marker, treating as absent", zap.String("value", raw))
		return time.Time{}, false, nil
	}
	return time.UnixMilli(ms), true, nil
}

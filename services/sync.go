package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"initium-core/metrics"
	"initium-core/store"

	"github.com/gofrs/flock"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

// RemoteAccount is the cloud side of a sync. Push sends the full local snapshot and returns the
// authoritative snapshot for the account; Migrate uploads a snapshot without reading anything back.
type RemoteAccount interface {
	Push(ctx context.Context, id Identity, snap *store.Snapshot) (*store.Snapshot, error)
	Migrate(ctx context.Context, id Identity, snap *store.Snapshot) (int, error)
}

// DefaultSyncTimeout bounds one remote round-trip plus write-back.
const DefaultSyncTimeout = 30 * time.Second

const (
	opSync    = "sync"
	opMigrate = "migrate"
)

// SyncResult describes a finished sync or migration.
type SyncResult struct {
	Op       string              `json:"op"`
	Pushed   int                 `json:"pushed"`
	Received int                 `json:"received"`
	Tables   map[store.Table]int `json:"tables"`
	At       time.Time           `json:"at"`
	Duration time.Duration       `json:"duration_ns"`
}

// SyncCoordinator reconciles the local store with the remote account. Concurrent calls for the
// same operation share one round-trip. A call for the other operation while one is in flight is
// rejected with ErrSyncFailed.
type SyncCoordinator struct {
	DB      *gorm.DB
	Remote  RemoteAccount
	Session *SessionState
	Timeout time.Duration
	Clock   clockwork.Clock
	// LockPath, when set, is flock'ed for the duration of a run so a second process sharing the
	// data directory cannot sync at the same time.
	LockPath string

	log   *zap.Logger
	group singleflight.Group
	runMu sync.Mutex

	mu     sync.Mutex
	active *flight
}

// flight is one shared run. Its context outlives any single caller and is cancelled once every
// waiting caller has gone.
type flight struct {
	op      string
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

func NewSyncCoordinator(db *gorm.DB, remote RemoteAccount, session *SessionState, log *zap.Logger) *SyncCoordinator {
	if log == nil {
		log = zap.NewNop()
	}
	return &SyncCoordinator{
		DB:      db,
		Remote:  remote,
		Session: session,
		Timeout: DefaultSyncTimeout,
		Clock:   clockwork.NewRealClock(),
		log:     log,
	}
}

// SyncAll pushes every table to the remote account and replaces the local tables with the
// reconciled set in one transaction. On any failure the local store is left as it was.
func (c *SyncCoordinator) SyncAll(ctx context.Context) (*SyncResult, error) {
	return c.do(ctx, opSync, c.syncOnce)
}

// MigrateToCloud uploads the whole local store to the remote account. The local store is not
// modified. Repeated calls rely on the remote de-duplicating by record id.
func (c *SyncCoordinator) MigrateToCloud(ctx context.Context) (*SyncResult, error) {
	return c.do(ctx, opMigrate, c.migrateOnce)
}

func (c *SyncCoordinator) do(ctx context.Context, op string, fn func(context.Context, Identity) (*SyncResult, error)) (*SyncResult, error) {
	id := c.Session.Identity()
	if !id.Authenticated() {
		metrics.SyncRunsTotal.WithLabelValues(op, "unauthenticated").Inc()
		c.log.Info("🔒 ["+tag(op)+"] skipped: not authenticated", zap.String("user_id", id.UserID))
		return nil, ErrNotAuthenticated
	}
	if c.Remote == nil {
		return nil, fmt.Errorf("%w: no cloud service configured", ErrSyncFailed)
	}

	fl, err := c.join(ctx, op)
	if err != nil {
		metrics.SyncRunsTotal.WithLabelValues(op, "rejected").Inc()
		c.log.Info("⏳ ["+tag(op)+"] rejected: "+err.Error(), zap.String("user_id", id.UserID))
		return nil, err
	}

	ch := c.group.DoChan(op, func() (any, error) {
		defer c.finish(fl)
		return c.run(fl.ctx, op, id, fn)
	})
	select {
	case r := <-ch:
		c.leave(fl)
		if r.Shared {
			c.log.Debug("🔗 ["+tag(op)+"] joined in-flight run", zap.String("user_id", id.UserID))
		}
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*SyncResult), nil
	case <-ctx.Done():
		c.leave(fl)
		return nil, fmt.Errorf("%w: %w", ErrSyncFailed, ctx.Err())
	}
}

// join registers the caller with the in-flight run for op, starting a new one if none exists.
func (c *SyncCoordinator) join(ctx context.Context, op string) (*flight, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil && c.active.op != op {
		return nil, fmt.Errorf("%w: %s in progress", ErrSyncFailed, c.active.op)
	}
	if c.active == nil {
		runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		c.active = &flight{op: op, ctx: runCtx, cancel: cancel}
	}
	c.active.waiters++
	return c.active, nil
}

func (c *SyncCoordinator) leave(fl *flight) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fl.waiters--
	if fl.waiters > 0 {
		return
	}
	fl.cancel()
	if c.active == fl {
		c.active = nil
	}
}

func (c *SyncCoordinator) finish(fl *flight) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == fl {
		c.active = nil
	}
}

func (c *SyncCoordinator) run(ctx context.Context, op string, id Identity, fn func(context.Context, Identity) (*SyncResult, error)) (*SyncResult, error) {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	if c.LockPath != "" {
		lock := flock.New(c.LockPath)
		locked, err := lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("%w: acquiring sync lock: %w", ErrSyncFailed, err)
		}
		if !locked {
			return nil, fmt.Errorf("%w: another process is syncing this store", ErrSyncFailed)
		}
		defer func() { _ = lock.Unlock() }()
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultSyncTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c.Session.beginSync()
	start := c.Clock.Now()
	c.log.Info("📡 ["+tag(op)+"] started", zap.String("user_id", id.UserID))

	res, err := fn(ctx, id)

	end := c.Clock.Now()
	c.Session.endSync(end, err)
	metrics.SyncDuration.WithLabelValues(op).Observe(end.Sub(start).Seconds())

	if err != nil {
		status := "failed"
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			status = "cancelled"
		}
		metrics.SyncRunsTotal.WithLabelValues(op, status).Inc()
		c.log.Error("❌ ["+tag(op)+"] failed", zap.String("user_id", id.UserID), zap.Error(err))
		return nil, err
	}

	res.Op, res.At, res.Duration = op, end, end.Sub(start)
	metrics.SyncRunsTotal.WithLabelValues(op, "ok").Inc()
	c.log.Info("✅ ["+tag(op)+"] finished",
		zap.String("user_id", id.UserID),
		zap.Int("pushed", res.Pushed),
		zap.Int("received", res.Received),
		zap.Duration("took", res.Duration))
	return res, nil
}

func (c *SyncCoordinator) syncOnce(ctx context.Context, id Identity) (*SyncResult, error) {
	local, err := store.ReadSnapshot(c.DB.WithContext(ctx), store.SyncTables...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageTransactionFailed, err)
	}

	remote, err := c.Remote.Push(ctx, id, local)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSyncFailed, err)
	}
	if remote == nil {
		return nil, fmt.Errorf("%w: remote returned no snapshot", ErrSyncFailed)
	}
	// Abandoned before write-back: leave the store untouched.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSyncFailed, err)
	}

	err = c.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return store.ReplaceSnapshot(tx, remote, store.SyncTables...)
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrSyncFailed, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrStorageTransactionFailed, err)
	}

	return &SyncResult{Pushed: local.Total(), Received: remote.Total(), Tables: remote.Counts()}, nil
}

func (c *SyncCoordinator) migrateOnce(ctx context.Context, id Identity) (*SyncResult, error) {
	local, err := store.ReadSnapshot(c.DB.WithContext(ctx), store.SyncTables...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageTransactionFailed, err)
	}
	accepted, err := c.Remote.Migrate(ctx, id, local)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSyncFailed, err)
	}
	return &SyncResult{Pushed: local.Total(), Received: accepted, Tables: local.Counts()}, nil
}

func tag(op string) string {
	if op == opMigrate {
		return "MIGRATE"
	}
	return "SYNC"
}

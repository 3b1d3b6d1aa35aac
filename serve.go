package main

import (
	"os"
	"os/signal"
	"syscall"

	"initium-core/handlers"
	"initium-core/middleware"
	"initium-core/models"
	"initium-core/services"
	"initium-core/store"
	"initium-core/utils"
	"initium-core/workers"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local node: SQLite store, local API and auto-sync",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	st, err := store.Open(store.Config{
		DataDir: utils.GetEnv("DATA_DIR", "data"),
		DSN:     os.Getenv("LOCAL_DSN"),
		Logger:  log,
	})
	if err != nil {
		return err
	}
	defer st.Close()

	policy, err := services.ParseLevelPolicy(utils.GetEnv("LEVEL_POLICY", string(services.LevelPolicyCascade)))
	if err != nil {
		return err
	}

	progression := services.NewProgressionService(st.DB, log)
	progression.Policy = policy
	habits := services.NewHabitService(st.DB)
	settings := services.NewSettingsService(st.DB)
	training := services.NewTrainingService(st.DB, progression, log)
	quests := services.NewQuestService(st.DB, progression, log)
	state := services.NewAppState(progression, habits, log)
	session := services.NewSessionState()

	syncTimeout := utils.GetEnvDuration(log, "SYNC_TIMEOUT", services.DefaultSyncTimeout)
	var remote services.RemoteAccount
	if cloudURL := os.Getenv("CLOUD_SERVICE_URL"); cloudURL != "" {
		client, err := workers.NewRemoteAccountClient(cloudURL, os.Getenv("CLOUD_SERVICE_TOKEN"), syncTimeout, log)
		if err != nil {
			return err
		}
		remote = client
	} else {
		log.Warn("⚠️  CLOUD_SERVICE_URL not set, sync is disabled")
	}
	syncer := services.NewSyncCoordinator(st.DB, remote, session, log)
	syncer.Timeout = syncTimeout
	syncer.LockPath = st.SyncLockPath()

	var bucket services.ObjectStore
	if r2cfg, ok := utils.R2ConfigFromEnv(); ok {
		b, err := utils.NewR2Bucket(ctx, r2cfg)
		if err != nil {
			return err
		}
		bucket = b
	}
	backups := services.NewBackupService(st.DB, bucket, log)

	// The node starts as the guest until a session is posted.
	if err := state.Load(ctx, models.GuestUserID); err != nil {
		return err
	}
	session.SetIdentity(services.Identity{UserID: models.GuestUserID, Guest: true})

	auto := workers.NewAutoSyncScheduler(workers.AutoSyncConfig{
		Cooldown:      utils.GetEnvDuration(log, "AUTO_SYNC_COOLDOWN", workers.DefaultAutoSyncCooldown),
		CheckInterval: utils.GetEnvDuration(log, "AUTO_SYNC_CHECK_INTERVAL", workers.DefaultAutoSyncCheckInterval),
	}, syncer, session, settings, log)
	if err := auto.Start(ctx); err != nil {
		return err
	}
	defer auto.Stop()

	apiToken := os.Getenv("LOCAL_API_TOKEN")
	app := newApp("initium-local", log)
	app.Get("/user/stream", middleware.SSEAuthMiddleware(apiToken, log), handlers.StreamUser(state, session, log))

	api := app.Group("/", middleware.BearerAuthMiddleware(apiToken, log))
	handlers.SetupProgressionRoutes(api, handlers.ProgressionDeps{
		State:       state,
		Session:     session,
		Progression: progression,
		Habits:      habits,
		Settings:    settings,
	})
	handlers.SetupTrainingRoutes(api, state, training)
	handlers.SetupQuestRoutes(api, state, quests)
	handlers.SetupSyncRoutes(api, session, state, syncer, auto)
	handlers.SetupBackupRoutes(api, state, backups)

	log.Info("✅ Local node ready",
		zap.String("level_policy", string(policy)),
		zap.Bool("sync_enabled", remote != nil),
		zap.Bool("backup_uploads", bucket != nil))
	return listen(ctx, app, utils.GetEnv("PORT", "5300"), log)
}

package main

import (
	"os"
	"os/signal"
	"syscall"

	"initium-core/handlers"
	"initium-core/services"
	"initium-core/store"
	"initium-core/utils"

	"github.com/spf13/cobra"
)

var cloudCmd = &cobra.Command{
	Use:   "cloud",
	Short: "Run the cloud account service the local nodes sync against",
	RunE:  runCloud,
}

func runCloud(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	st, err := store.Open(store.Config{
		DataDir: utils.GetEnv("DATA_DIR", "data"),
		DSN:     utils.MustEnv(log, "DATABASE_URL"),
		Logger:  log,
		Migrate: services.MigrateCloud,
	})
	if err != nil {
		return err
	}
	defer st.Close()

	cloud := services.NewCloudAccountService(st.DB, log)

	app := newApp("initium-cloud", log)
	handlers.SetupCloudRoutes(app, cloud, utils.MustEnv(log, "CLOUD_SERVICE_TOKEN"), log)

	return listen(ctx, app, utils.GetEnv("PORT", "5400"), log)
}

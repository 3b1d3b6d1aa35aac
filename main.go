package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"initium-core/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:           "initium",
	Short:         "Initium personal progression node and cloud account service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "⚠️  No .env file found, reading environment variables directly")
	}

	rootCmd.AddCommand(serveCmd, cloudCmd, backupCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}

func newLogger() (*zap.Logger, error) {
	return utils.NewLogger(utils.GetEnv("LOG_LEVEL", "info"))
}

// newApp builds the fiber app shared by both servers: CORS, health and /metrics.
func newApp(name string, log *zap.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   name,
		BodyLimit: 64 * 1024 * 1024,
	})

	allowedOrigins := utils.SplitList(utils.GetEnv("ALLOWED_ORIGINS", "http://localhost:3000"))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(allowedOrigins, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, Cache-Control, X-User-ID, X-Session-Token",
		ExposeHeaders:    "Content-Length, Content-Type, Content-Disposition, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	log.Info("✅ CORS configured", zap.Strings("origins", allowedOrigins))
	return app
}

// listen serves until ctx is done, then shuts the app down.
func listen(ctx context.Context, app *fiber.App, port string, log *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(":" + port)
	}()
	log.Info("✅ Server running", zap.String("addr", "http://localhost:"+port))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("Shutting down server...")
	return app.ShutdownWithTimeout(10 * time.Second)
}

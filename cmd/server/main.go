package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/supplyhub/backend/internal/config"
	"github.com/supplyhub/backend/internal/core/ports"
	"github.com/supplyhub/backend/internal/infrastructure/db"
	"github.com/supplyhub/backend/internal/infrastructure/logger"
	"github.com/supplyhub/backend/internal/infrastructure/preview"
	"github.com/supplyhub/backend/internal/infrastructure/transfer"
	transporthttp "github.com/supplyhub/backend/internal/transport/http"
	httpmw "github.com/supplyhub/backend/internal/transport/http/middleware"
	"gorm.io/gorm"
)

const (
	maintenanceInterval = 5 * time.Minute
	previewMaxAge       = 24 * time.Hour
	shutdownTimeout     = 30 * time.Second
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the config file")
	flag.Parse()
	if _, err := os.Stat(*configPath); os.IsNotExist(err) {
		*configPath = ""
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log, err := logger.New(cfg.Logger)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	database, err := db.NewPostgresConnection(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	log.Info("database connection established")

	if err := db.RunMigrations(database); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}
	log.Info("database migrations completed")

	client, closer, err := transfer.NewClient(context.Background(), cfg.Storage, log)
	if err != nil {
		log.Fatalf("failed to create %s transfer client: %v", cfg.Storage.Backend, err)
	}
	defer closer.Close()

	previews, err := preview.NewFileStore(cfg.Upload.PreviewDir, log.Named("preview"))
	if err != nil {
		log.Fatalf("failed to create preview store: %v", err)
	}
	if n, err := previews.Sweep(0); err != nil {
		log.Warnf("failed to sweep previews: %v", err)
	} else if n > 0 {
		log.Infof("removed %d stale previews", n)
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		IdleTimeout:           cfg.Server.IdleTimeout,
		BodyLimit:             cfg.Server.BodyLimit,
		ErrorHandler:          globalErrorHandler(log),
		DisableStartupMessage: true,
	})

	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	allowedOrigins := "http://localhost:3000"
	if len(cfg.Auth.AllowedOrigins) > 0 {
		allowedOrigins = strings.Join(cfg.Auth.AllowedOrigins, ",")
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: allowedOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Admin-Token, " + cfg.Features.RequestIDHeader,
		AllowMethods: "GET, POST, HEAD, PUT, DELETE",
	}))

	app.Use(httpmw.RequestID(cfg.Features.RequestIDHeader))
	if cfg.Features.EnableRequestLogging {
		app.Use(httpmw.AccessLog(log))
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "backend": cfg.Storage.Backend})
	})

	uploadService := transporthttp.SetupRoutes(app, transporthttp.RouterConfig{
		DB:         database,
		Logger:     log,
		Config:     cfg,
		Client:     client,
		Previews:   previews,
		PreviewDir: previews.Dir(),
	})

	stopMaintenance := startMaintenance(uploadService, previews, log)

	go func() {
		if err := app.Listen(cfg.Server.Address()); err != nil {
			log.Fatalf("server failed to start: %v", err)
		}
	}()
	log.Infof("server started on %s (backend %s)", cfg.Server.Address(), cfg.Storage.Backend)

	gracefulShutdown(app, uploadService, stopMaintenance, database, log)
}

// startMaintenance periodically forgets old batches and removes orphaned
// previews. The returned func stops it.
func startMaintenance(uploads ports.UploadService, previews *preview.FileStore, log *logger.Logger) func() {
	ctx, cancel := context.WithCancel(context.Background())
	ticker := time.NewTicker(maintenanceInterval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := uploads.Purge(ctx); err != nil {
					log.Warnw("upload_purge_failed", "error", err)
				}
				if n, err := previews.Sweep(previewMaxAge); err != nil {
					log.Warnw("preview_sweep_failed", "error", err)
				} else if n > 0 {
					log.Infow("preview_sweep", "removed", n)
				}
			}
		}
	}()
	return cancel
}

func globalErrorHandler(log *logger.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
		}

		if code < fiber.StatusInternalServerError {
			log.Warnw("request failed",
				"method", c.Method(),
				"path", c.Path(),
				"status", code,
				"error", err.Error(),
				"request_id", httpmw.GetRequestID(c),
			)
		} else {
			log.Errorw("request error",
				"method", c.Method(),
				"path", c.Path(),
				"status", code,
				"error", err.Error(),
				"request_id", httpmw.GetRequestID(c),
			)
		}

		return c.Status(code).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
}

func gracefulShutdown(app *fiber.App, uploads ports.UploadService, stopMaintenance func(), database *gorm.DB, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	log.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Errorf("server forced to shutdown: %v", err)
	}

	stopMaintenance()
	if err := uploads.Shutdown(ctx); err != nil {
		log.Errorf("upload service did not stop in time: %v", err)
	}

	if err := db.Close(database); err != nil {
		log.Errorf("failed to close database connection: %v", err)
	}

	log.Info("server exited gracefully")
}

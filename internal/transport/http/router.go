package http

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/supplyhub/backend/internal/config"
	"github.com/supplyhub/backend/internal/core/ports"
	"github.com/supplyhub/backend/internal/core/services"
	"github.com/supplyhub/backend/internal/infrastructure/db"
	"github.com/supplyhub/backend/internal/infrastructure/logger"
	"github.com/supplyhub/backend/internal/transport/http/handlers"
	httpmw "github.com/supplyhub/backend/internal/transport/http/middleware"
	"gorm.io/gorm"
)

type RouterConfig struct {
	DB       *gorm.DB
	Logger   *logger.Logger
	Config   *config.Config
	Client   ports.TransferClient
	Previews ports.PreviewStore
	// PreviewDir is served under /previews when set.
	PreviewDir string
}

// SetupRoutes wires repositories, services and handlers. The upload service is
// returned so the caller can shut it down and run its purge loop.
func SetupRoutes(app *fiber.App, cfg RouterConfig) ports.UploadService {
	assetRepo := db.NewAssetRepository(cfg.DB, cfg.Logger)
	recordRepo := db.NewBatchRecordRepository(cfg.DB, cfg.Logger)
	settingRepo := db.NewSystemSettingRepository(cfg.DB, cfg.Logger)

	defaults := cfg.Config.Upload.Policy()
	settingService := services.NewSystemSettingService(settingRepo, cfg.Logger, cfg.Config.Features.EnableLocks)
	assetService := services.NewAssetService(assetRepo, cfg.Client, cfg.Logger)
	uploadService := services.NewUploadService(services.UploadServiceConfig{
		Client:           cfg.Client,
		Previews:         cfg.Previews,
		Defaults:         defaults,
		Backend:          cfg.Config.Storage.Backend,
		Retention:        cfg.Config.Upload.Retention,
		HistoryRetention: cfg.Config.Upload.HistoryRetention,
	}, settingService, assetService, recordRepo, cfg.Logger)

	batchHandler := handlers.NewBatchHandler(uploadService, cfg.Logger)
	streamHandler := handlers.NewBatchStreamHandler(uploadService, cfg.Logger)
	assetHandler := handlers.NewAssetHandler(assetService, cfg.Logger)
	settingHandler := handlers.NewSettingHandler(settingService, defaults, cfg.Logger)

	if cfg.PreviewDir != "" {
		app.Static("/previews", cfg.PreviewDir)
	}
	if cfg.Config.Storage.Backend == "local" {
		app.Static("/files", cfg.Config.Storage.Local.Root)
	}

	// Live batch progress
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})
	app.Get("/ws/batches/:id", httpmw.AdminAuth(cfg.Config), websocket.New(streamHandler.Handle))

	api := app.Group("/api/v1")

	batches := api.Group("/batches", httpmw.AdminAuth(cfg.Config))
	batches.Post("/", batchHandler.SubmitBatch)
	batches.Get("/", batchHandler.GetBatches)
	batches.Get("/history", batchHandler.GetHistory)
	batches.Get("/:id", batchHandler.GetBatch)
	batches.Post("/:id/cancel", batchHandler.CancelBatch)
	batches.Delete("/:id", batchHandler.CancelBatch)
	batches.Post("/:id/tasks/:taskId/cancel", batchHandler.CancelTask)
	batches.Delete("/:id/tasks/:taskId/preview", batchHandler.ReleasePreview)

	assets := api.Group("/assets", httpmw.AdminAuth(cfg.Config))
	assets.Get("/", assetHandler.GetAssets)
	assets.Get("/:id", assetHandler.GetAsset)
	assets.Delete("/:id", assetHandler.DeleteAsset)

	settings := api.Group("/settings", httpmw.AdminAuth(cfg.Config))
	settings.Get("/", settingHandler.GetSettings)
	settings.Get("/upload", settingHandler.GetUploadPolicy)
	settings.Put("/upload", settingHandler.UpdateUploadPolicy)

	return uploadService
}

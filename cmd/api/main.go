package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"coinpay/internal/adapter/handler"
	"coinpay/internal/adapter/middleware"
	"coinpay/internal/adapter/storage"
	"coinpay/internal/core/config"
	"coinpay/internal/core/reconcile"
	"coinpay/internal/core/worker"
)

func main() {
	// 1. Load Config
	cfg := config.LoadConfig()

	// 2. Setup Logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// The signing secret is the sole authenticity gate for gateway
	// callbacks. Refuse to start without it.
	if cfg.GatewaySecret == "" {
		slog.Error("❌ GATEWAY_SECRET is not set, refusing to start")
		os.Exit(1)
	}

	// 3. Connect to Database
	dbPool, err := storage.ConnectDB(cfg.DatabaseURL)
	if err != nil {
		slog.Error("❌ Database connection failed", "error", err)
		os.Exit(1)
	}
	// We do NOT defer dbPool.Close() here. We close it manually on shutdown.

	// 4. Setup Repos, Reconciler & Handlers
	accountRepo := storage.NewAccountRepository(dbPool)
	ledgerRepo := storage.NewLedgerRepository(dbPool)

	reconciler := reconcile.New(cfg.GatewaySecret, cfg.MaxCreditAmount, ledgerRepo)

	callbackHandler := &handler.CallbackHandler{
		Reconciler: reconciler,
		Queue:      ledgerRepo,
		WebhookURL: cfg.WebhookURL,
	}
	accountHandler := &handler.AccountHandler{Repo: accountRepo, Ledger: ledgerRepo}

	// 5. Setup Fiber
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	app.Use(cors.New())

	// 6. Routes
	api := app.Group("/v1")

	// Gateway callbacks (authenticated by HMAC signature, not API key)
	api.Get("/pay/return", callbackHandler.HandleReturn)
	api.Get("/pay/notify", callbackHandler.HandleNotify)

	// Public admin bootstrap
	api.Post("/accounts", accountHandler.CreateAccount)
	api.Post("/accounts/:id/keys", accountHandler.GenerateKey)

	// Protected admin surface
	private := api.Use(middleware.Protected(dbPool))
	private.Get("/accounts/:id", accountHandler.GetAccount)
	private.Get("/accounts/:id/credits", accountHandler.GetCredits)
	private.Post("/accounts/:id/adjust", middleware.Idempotency(dbPool), accountHandler.Adjust)

	// 7. Start Worker
	worker.StartWebhookWorker(dbPool, cfg.WebhookSecret)

	// Graceful shutdown: listen for OS signals (Ctrl+C, Docker Stop)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// Run Server in a separate Goroutine so it doesn't block
	go func() {
		slog.Info("🚀 Server starting", "env", cfg.Env, "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("Server forced to shutdown", "error", err)
		}
	}()

	// Block here until we receive a stop signal
	<-stop
	slog.Info("🛑 Shutting down server...")

	// Tell Fiber to stop accepting new requests and finish active ones
	if err := app.Shutdown(); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}

	// Close the Database Connection nicely
	dbPool.Close()
	slog.Info("✅ Database connection closed")

	slog.Info("👋 Server exited successfully")
}

package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/jhoicas/Farmacia-api/internal/application/audit"
	"github.com/jhoicas/Farmacia-api/internal/application/catalog"
	"github.com/jhoicas/Farmacia-api/internal/application/inventory"
	"github.com/jhoicas/Farmacia-api/internal/application/ports"
	"github.com/jhoicas/Farmacia-api/internal/application/proposal"
	"github.com/jhoicas/Farmacia-api/internal/application/requisition"
	"github.com/jhoicas/Farmacia-api/internal/infrastructure/kafka"
	"github.com/jhoicas/Farmacia-api/internal/infrastructure/postgres"
	infraredis "github.com/jhoicas/Farmacia-api/internal/infrastructure/redis"
	httpRouter "github.com/jhoicas/Farmacia-api/internal/interfaces/http"
	"github.com/jhoicas/Farmacia-api/pkg/config"
	"github.com/jhoicas/Farmacia-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:     cfg.App.Env,
		Level:   cfg.App.LogLevel,
		Service: cfg.App.Name,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("dispatch_mode", cfg.Allocation.DispatchMode).
		Msg("iniciando aplicación")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()
	if err := postgres.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("migración del esquema")
	}

	repos := postgres.NewRepos(pool)
	txRunner := postgres.NewTxRunner(pool)

	// Caché de catálogo: opcional. Sin REDIS_URL se consulta siempre la BD.
	var cache ports.CatalogCache = ports.NopCache{}
	if cfg.Redis.URL != "" {
		client, err := infraredis.Connect(ctx, cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("Redis no disponible, catálogo sin caché")
		} else {
			defer client.Close()
			cache = infraredis.NewCatalogCache(client, cfg.Redis.TTL, log)
		}
	}

	publisher := kafka.NewPublisher(cfg.Kafka, log)
	if c, ok := publisher.(io.Closer); ok {
		defer c.Close()
	}

	catalogUC := catalog.NewUseCase(repos, cache, log)
	ledger := inventory.NewLedger(txRunner, repos, log, cfg.Allocation.MinExpiryDays)
	lotStore := inventory.NewLotStore(txRunner, repos, publisher, log)
	lotImporter := inventory.NewLotImporter(lotStore, catalogUC, log)
	requisitionUC := requisition.NewUseCase(
		txRunner, repos, requisition.NewFolioService(cfg.Allocation.FolioPrefix),
		ledger, catalogUC, publisher, log, cfg.Allocation,
	)
	generator := proposal.NewGenerator(txRunner, repos, ledger, publisher, log, cfg.Allocation)
	lifecycle := proposal.NewLifecycle(txRunner, repos, ledger, publisher, log, cfg.Allocation)
	reports := audit.NewReports(repos)
	reconciler := audit.NewReconciler(txRunner, repos, lotStore, publisher, log)

	app := httpRouter.NewApp(cfg.App.Name)
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Farmacia API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		if err := pool.Ping(c.Context()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "db_unavailable"})
		}
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		Catalog:      catalogUC,
		Lots:         lotStore,
		LotImporter:  lotImporter,
		Ledger:       ledger,
		Requisitions: requisitionUC,
		Generator:    generator,
		Lifecycle:    lifecycle,
		Reports:      reports,
		Reconciler:   reconciler,
		JWTSecret:    cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}

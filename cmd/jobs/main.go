// jobs ejecuta las tareas programadas del motor: barrido de lotes caducados y
// conciliación de inventario.
//
// Uso: go run ./cmd/jobs [-sweep] [-reconcile] [-dry-run]
// Sin banderas ejecuta ambas tareas. Sale con código 2 si la conciliación deja
// hallazgos sin corregir.
package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/jhoicas/Farmacia-api/internal/application/audit"
	"github.com/jhoicas/Farmacia-api/internal/application/inventory"
	"github.com/jhoicas/Farmacia-api/internal/infrastructure/kafka"
	"github.com/jhoicas/Farmacia-api/internal/infrastructure/postgres"
	"github.com/jhoicas/Farmacia-api/pkg/config"
	"github.com/jhoicas/Farmacia-api/pkg/logger"
)

const jobActor = "sistema"

func main() {
	sweep := flag.Bool("sweep", false, "marcar como caducados los lotes vencidos")
	reconcile := flag.Bool("reconcile", false, "ejecutar la conciliación")
	dryRun := flag.Bool("dry-run", false, "conciliación sin correcciones")
	flag.Parse()
	if !*sweep && !*reconcile {
		*sweep, *reconcile = true, true
	}

	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel}).WithComponent("jobs")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	repos := postgres.NewRepos(pool)
	txRunner := postgres.NewTxRunner(pool)
	publisher := kafka.NewPublisher(cfg.Kafka, log)
	if c, ok := publisher.(io.Closer); ok {
		defer c.Close()
	}
	lots := inventory.NewLotStore(txRunner, repos, publisher, log)

	exit := 0
	if *sweep {
		res, err := lots.SweepExpired(ctx, jobActor)
		if err != nil {
			log.Error().Err(err).Msg("barrido de caducados")
			exit = 1
		} else {
			log.Info().Int("caducados", len(res.Expired)).Int("omitidos", len(res.Skipped)).Msg("barrido de caducados terminado")
		}
	}
	if *reconcile {
		rc := audit.NewReconciler(txRunner, repos, lots, publisher, log)
		rep, err := rc.Run(ctx, audit.RunOptions{DryRun: *dryRun, Actor: jobActor})
		switch {
		case err != nil:
			log.Error().Err(err).Msg("conciliación")
			exit = 1
		case len(rep.Findings) > rep.Fixed():
			log.Warn().Str("run_id", rep.RunID).Int("hallazgos", len(rep.Findings)).Int("corregidos", rep.Fixed()).Msg("conciliación con hallazgos pendientes")
			if exit == 0 {
				exit = 2
			}
		default:
			log.Info().Str("run_id", rep.RunID).Int("corregidos", rep.Fixed()).Msg("conciliación terminada")
		}
	}
	if exit != 0 {
		pool.Close()
		os.Exit(exit)
	}
}

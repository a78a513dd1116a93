package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	"github.com/Layr-Labs/bridge-commitment-engine/pkg/api"
	"github.com/Layr-Labs/bridge-commitment-engine/pkg/builder"
	"github.com/Layr-Labs/bridge-commitment-engine/pkg/commitment"
	"github.com/Layr-Labs/bridge-commitment-engine/pkg/config"
	"github.com/Layr-Labs/bridge-commitment-engine/pkg/logger"
	"github.com/Layr-Labs/bridge-commitment-engine/pkg/metrics"
	"github.com/Layr-Labs/bridge-commitment-engine/pkg/store"
	storeBadger "github.com/Layr-Labs/bridge-commitment-engine/pkg/store/badger"
	storeMemory "github.com/Layr-Labs/bridge-commitment-engine/pkg/store/memory"
)

func main() {
	app := &cli.App{
		Name:        "sequencerd",
		Usage:       "Bridge commitment tree engine",
		Description: "Runs the MMR and Poseidon tree builders that include bridge commitments and serve their inclusion proofs.",
		Version:     "0.1.0",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "poll-interval-seconds",
				Usage:   "Seconds between builder poll ticks",
				Value:   10,
				EnvVars: []string{config.EnvPollIntervalSeconds},
			},
			&cli.IntFlag{
				Name:    "batch-size",
				Usage:   "Max pending rows processed per poll tick",
				Value:   100,
				EnvVars: []string{config.EnvBatchSize},
			},
			&cli.BoolFlag{
				Name:    "enable-startup-rebuild",
				Usage:   "Replay included rows into the in-memory accumulator on startup",
				Value:   true,
				EnvVars: []string{config.EnvEnableRebuild},
			},
			&cli.IntFlag{
				Name:    "tree-depth",
				Usage:   "Depth bound for the L2 Poseidon Merkle tree (validated only; the builders do not apply it)",
				Value:   32,
				EnvVars: []string{config.EnvTreeDepth},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "One of debug|info|warn|error",
				Value:   "info",
				EnvVars: []string{config.EnvLogLevel},
			},
			&cli.StringFlag{
				Name:    "persistence-type",
				Usage:   "Commitment store backend: 'badger' (local disk) or 'memory' (testing only)",
				Value:   "badger",
				EnvVars: []string{config.EnvPersistenceType},
			},
			&cli.StringFlag{
				Name:    "persistence-data-path",
				Usage:   "Data directory for Badger persistence",
				Value:   "./sequencer-data",
				EnvVars: []string{config.EnvPersistenceDataPath},
			},
			&cli.StringFlag{
				Name:    "api-addr",
				Usage:   "HTTP listen address for the commitment API",
				Value:   ":8080",
				EnvVars: []string{config.EnvAPIAddr},
			},
			&cli.Float64Flag{
				Name:    "api-insert-rate-limit",
				Usage:   "Sustained POST /commitments requests per second",
				Value:   50,
				EnvVars: []string{config.EnvAPIInsertRateLimit},
			},
			&cli.IntFlag{
				Name:    "api-insert-burst",
				Usage:   "Burst size for POST /commitments",
				Value:   100,
				EnvVars: []string{config.EnvAPIInsertBurst},
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("application error: %v", err)
	}
}

func run(c *cli.Context) error {
	cfg := config.Config{
		PollIntervalSeconds: c.Int("poll-interval-seconds"),
		BatchSize:           c.Int("batch-size"),
		EnableRebuild:       c.Bool("enable-startup-rebuild"),
		TreeDepth:           c.Int("tree-depth"),
		LogLevel:            config.LogLevel(c.String("log-level")),
		PersistenceType:     c.String("persistence-type"),
		PersistenceDataPath: c.String("persistence-data-path"),
		APIAddr:             c.String("api-addr"),
		APIInsertRateLim:    c.Float64("api-insert-rate-limit"),
		APIInsertBurst:      c.Int("api-insert-burst"),
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.LogLevel == config.LogLevelDebug})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = l.Sync() }()

	var st store.ICommitmentStore
	switch cfg.PersistenceType {
	case "badger":
		st, err = storeBadger.New(cfg.PersistenceDataPath, l)
		if err != nil {
			l.Sugar().Fatalw("failed to open badger commitment store", "error", err)
		}
		l.Sugar().Infow("using badger commitment store", "path", cfg.PersistenceDataPath)
	default:
		st = storeMemory.New()
		l.Sugar().Warn("using in-memory commitment store - data will be lost on restart")
	}
	defer func() { _ = st.Close() }()

	if err := st.HealthCheck(); err != nil {
		l.Sugar().Fatalw("commitment store health check failed", "error", err)
	}

	reg := prometheus.NewRegistry()
	builderCfg := builder.Config{
		PollInterval:         cfg.PollInterval(),
		BatchSize:            cfg.BatchSize,
		EnableStartupRebuild: cfg.EnableRebuild,
	}

	mmrBuilder := builder.New(commitment.AccumulatorMMR, st, builderCfg, l, metrics.NewBuilder(reg, "mmr"))
	poseidonBuilder := builder.New(commitment.AccumulatorPoseidon, st, builderCfg, l, metrics.NewBuilder(reg, "poseidon"))

	if err := mmrBuilder.Rebuild(); err != nil {
		l.Sugar().Fatalw("mmr builder rebuild failed", "error", err)
	}
	if err := poseidonBuilder.Rebuild(); err != nil {
		l.Sugar().Fatalw("poseidon builder rebuild failed", "error", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := mmrBuilder.Start(ctx); err != nil {
		l.Sugar().Fatalw("failed to start mmr builder", "error", err)
	}
	defer mmrBuilder.Stop()

	if err := poseidonBuilder.Start(ctx); err != nil {
		l.Sugar().Fatalw("failed to start poseidon builder", "error", err)
	}
	defer poseidonBuilder.Stop()

	apiServer := api.NewServer(cfg.APIAddr, st, l, cfg.APIInsertRateLim, cfg.APIInsertBurst)
	if err := apiServer.Start(); err != nil {
		l.Sugar().Fatalw("failed to start API server", "error", err)
	}
	defer func() { _ = apiServer.Stop() }()

	l.Sugar().Infow("sequencerd running", "api_addr", cfg.APIAddr, "persistence_type", cfg.PersistenceType)
	l.Sugar().Info("press Ctrl+C to stop")

	<-ctx.Done()
	l.Sugar().Info("shutting down")
	return nil
}

package cmd

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/algebrix/internal/batchsync"
	"github.com/abhisek/algebrix/internal/config"
	"github.com/abhisek/algebrix/internal/logging"
	"github.com/abhisek/algebrix/internal/practice"
	"github.com/abhisek/algebrix/internal/store"
)

// runtimeEnv holds the per-invocation dependencies of a command.
type runtimeEnv struct {
	cfg         *config.Config
	logger      *zap.Logger
	backend     store.Backend
	registry    *prometheus.Registry
	metrics     *batchsync.Metrics
	metricsFile string
}

// openEnv loads configuration and opens the store. Callers must Close the
// returned env.
func openEnv(cmd *cobra.Command) (*runtimeEnv, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	if cfgPath == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("resolve config path: %w", err)
		}
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if db, _ := cmd.Flags().GetString("db"); db != "" {
		cfg.Store.Driver = config.DriverSQLite
		cfg.Store.Path = db
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	backend, err := store.OpenBackend(cfg.Store, store.WithLogger(logger))
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("open store: %w", err)
	}

	reg := prometheus.NewRegistry()
	metrics, err := batchsync.NewMetrics(reg)
	if err != nil {
		backend.Close()
		return nil, err
	}
	metricsFile, _ := cmd.Flags().GetString("metrics-file")

	return &runtimeEnv{
		cfg:         cfg,
		logger:      logger,
		backend:     backend,
		registry:    reg,
		metrics:     metrics,
		metricsFile: metricsFile,
	}, nil
}

func (e *runtimeEnv) reconciler() *batchsync.Reconciler {
	return batchsync.New(e.backend,
		batchsync.WithLogger(e.logger),
		batchsync.WithMetrics(e.metrics),
	)
}

func (e *runtimeEnv) practice() *practice.Service {
	return practice.NewService(e.backend, practice.WithLogger(e.logger))
}

// Close writes the metrics file if requested and closes the store.
func (e *runtimeEnv) Close() error {
	var errs []error
	if e.metricsFile != "" {
		if err := prometheus.WriteToTextfile(e.metricsFile, e.registry); err != nil {
			errs = append(errs, fmt.Errorf("write metrics: %w", err))
		}
	}
	if err := e.backend.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	_ = e.logger.Sync()
	return errors.Join(errs...)
}

// withEnv wraps a command body with openEnv and Close.
func withEnv(run func(cmd *cobra.Command, args []string, env *runtimeEnv) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		env, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := env.Close(); err == nil {
				err = cerr
			}
		}()
		return run(cmd, args, env)
	}
}

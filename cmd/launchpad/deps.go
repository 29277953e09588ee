package main

import (
	"context"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"launchpad/internal/chain"
	"launchpad/internal/config"
	"launchpad/internal/events"
	"launchpad/internal/identity"
	"launchpad/internal/launchpad"
	"launchpad/internal/observability"
	"launchpad/internal/settlement"
	"launchpad/internal/storage"
	"launchpad/internal/storage/badger"
	"launchpad/internal/storage/memory"
	"launchpad/internal/storage/postgres"
)

// app is everything a command needs, opened from config.
type app struct {
	cfg     config.Config
	logger  *zap.Logger
	backend storage.Backend
	ledger  *settlement.Ledger
	service *launchpad.Service
	hub     *events.Hub
	metrics *observability.Metrics

	closers []func()
}

func loadConfig(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func openApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}
	a.closers = append(a.closers, func() { _ = logger.Sync() })

	backend, err := openBackend(ctx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.backend = backend
	a.closers = append(a.closers, func() {
		if err := backend.Close(); err != nil {
			logger.Warn("close store failed", zap.Error(err))
		}
	})

	programID := cfg.ProgramID
	if programID == "" {
		programID = identity.DefaultProgramID
	}

	var clock launchpad.Clock = launchpad.SystemClock{}
	var resolver launchpad.MetadataResolver
	if cfg.RPCURL != "" {
		client, err := chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect rpc: %w", err)
		}
		a.closers = append(a.closers, client.Close)

		chainID, err := client.ChainID(ctx)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("read chain id: %w", err)
		}
		logger.Info("connected to chain", zap.String("chain_id", chainID.String()))

		resolver = chain.NewTokenResolver(client, logger)
		if cfg.Clock == config.ClockChain {
			clock = chain.NewClock(client, cfg.MaxRetries, cfg.RetryBackoff, logger)
		}
	}

	a.hub = events.NewHub(logger)
	a.metrics = observability.NewMetrics("launchpad")
	a.ledger = settlement.NewLedger(backend, programID, logger)

	publishers := events.Multi{a.hub}
	if cfg.Journal != "" {
		publishers = append(publishers, events.JournalSink{Writer: storage.NewJournal(cfg.Journal)})
	}
	if cfg.AMQPURL != "" {
		producer, err := events.NewProducer(cfg.AMQPURL, cfg.Exchange, logger)
		if err != nil {
			logger.Warn("amqp unavailable, events will only be logged", zap.Error(err))
			publishers = append(publishers, events.Fallback{Logger: logger})
		} else {
			a.closers = append(a.closers, producer.Close)
			publishers = append(publishers, producer)
		}
	}

	service, err := launchpad.NewService(launchpad.Deps{
		Store:     backend,
		Clock:     clock,
		Value:     a.ledger,
		Assets:    a.ledger,
		Publisher: publishers,
		Resolver:  resolver,
		Metrics:   a.metrics,
		Logger:    logger,
		ProgramID: programID,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.service = service

	logger.Debug("launchpad ready",
		zap.String("store", cfg.Store),
		zap.String("clock", cfg.Clock),
		zap.String("program_id", programID),
		zap.Bool("amqp", cfg.AMQPURL != ""),
	)
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func openBackend(ctx context.Context, cfg config.Config, logger *zap.Logger) (storage.Backend, error) {
	switch cfg.Store {
	case config.StoreMemory:
		logger.Warn("memory store selected, state is lost on exit")
		return memory.NewStore(), nil
	case config.StoreBadger:
		badgerCfg := badger.DefaultConfig(cfg.BadgerPath)
		badgerCfg.Logger = logger
		store, err := badger.Open(badgerCfg)
		if err != nil {
			return nil, fmt.Errorf("open badger store: %w", err)
		}
		return store, nil
	case config.StorePostgres:
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres %s: %w", redactDSN(cfg.PGDSN), err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" {
		return "<redacted>"
	}
	if u.User == nil {
		return dsn
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}

// Package app is the composition root: it turns configuration into a
// wired, runnable relay.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ChannelRelay/internal/config"
	"ChannelRelay/internal/domain"
	"ChannelRelay/internal/infrastructure/admin"
	"ChannelRelay/internal/infrastructure/channelweb"
	"ChannelRelay/internal/infrastructure/extract"
	"ChannelRelay/internal/infrastructure/feed"
	"ChannelRelay/internal/infrastructure/llm"
	"ChannelRelay/internal/infrastructure/scheduler"
	"ChannelRelay/internal/infrastructure/storage"
	"ChannelRelay/internal/infrastructure/telegram"
	"ChannelRelay/internal/logging"
	"ChannelRelay/internal/ports"
	"ChannelRelay/internal/source"
	"ChannelRelay/internal/usecase"
)

const stopTimeout = 30 * time.Second

// Application wires configuration to adapters and owns their lifecycle.
type Application struct {
	cfg         config.Config
	logger      *slog.Logger
	store       ports.DedupStore
	runner      *usecase.Scheduler
	maintenance *scheduler.Maintenance
	admin       *admin.Server
}

// New builds a runnable application instance. The ledger is opened
// here; everything else connects lazily on first use.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.File)
	}

	store, err := storage.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	aggregator := source.NewAggregator(
		buildAdapters(cfg, baseLogger),
		cfg.Sources.MaxPerSource,
		baseLogger.With("component", "source"),
	)

	var enricher ports.Enricher
	if cfg.Sources.ExtractFullText {
		enricher = extract.New(cfg.Sources.MinBodyRunes, baseLogger.With("component", "extract"))
	}

	workflow := usecase.NewWorkflow(usecase.WorkflowDeps{
		Source:    aggregator,
		Store:     store,
		Rewriter:  llm.NewGeminiClient(cfg.Gemini, cfg.Telegram.ChannelLink, baseLogger.With("component", "gemini")),
		Publisher: telegram.NewPoster(cfg.Telegram.BotToken, cfg.Telegram.TargetChatID, baseLogger.With("component", "telegram")),
		Enricher:  enricher,
		Logger:    baseLogger.With("component", "workflow"),
	})

	interval := usecase.IntervalFor(cfg.Schedule.PostsPerDay)
	runner := usecase.NewScheduler(
		scheduler.NewInterval(interval),
		workflow,
		interval,
		cfg.Schedule.JitterMinutes,
		baseLogger.With("component", "scheduler"),
	)

	return &Application{
		cfg:    cfg,
		logger: baseLogger,
		store:  store,
		runner: runner,
		maintenance: scheduler.NewMaintenance(
			cfg.Schedule.MaintenanceSpec,
			cfg.Schedule.RetentionDays,
			store,
			baseLogger.With("component", "maintenance"),
		),
		admin: admin.NewServer(cfg.Admin.Addr, runner, store, baseLogger.With("component", "admin")),
	}, nil
}

// buildAdapters instantiates one adapter per configured upstream. All
// channel adapters share a single preview session.
func buildAdapters(cfg config.Config, logger *slog.Logger) []source.Adapter {
	adapters := make([]source.Adapter, 0, len(cfg.Sources.Feeds)+len(cfg.Sources.Channels))
	for _, url := range cfg.Sources.Feeds {
		adapters = append(adapters, feed.New(url))
	}
	if len(cfg.Sources.Channels) > 0 {
		session := channelweb.NewSession(cfg.Telegram.PreviewBaseURL)
		for _, channel := range cfg.Sources.Channels {
			adapters = append(adapters, channelweb.NewAdapter(channel, session, logger.With("component", "channelweb")))
		}
	}
	return adapters
}

// Logger exposes the application-wide logger for the CLI layer.
func (a *Application) Logger() *slog.Logger { return a.logger }

// RunOnce executes a single tick and reports its failure, if any.
func (a *Application) RunOnce(ctx context.Context) error {
	result, err := a.runner.RunOnce(ctx)
	if err != nil {
		return fmt.Errorf("tick %s: %w", result.RunID, err)
	}
	a.logger.Info("single run finished",
		"run_id", result.RunID,
		"status", result.Status,
		"candidates", result.Candidates,
		"fresh", result.Fresh,
		"took", result.Duration().Round(time.Millisecond))
	return nil
}

// RunDaemon runs the full service until the context is cancelled, then
// tears everything down in reverse order.
func (a *Application) RunDaemon(ctx context.Context) error {
	if err := a.maintenance.Start(); err != nil {
		return fmt.Errorf("start maintenance: %w", err)
	}
	a.admin.Start()
	if err := a.runner.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("daemon up",
		"feeds", len(a.cfg.Sources.Feeds),
		"channels", len(a.cfg.Sources.Channels),
		"posts_per_day", a.cfg.Schedule.PostsPerDay)

	<-ctx.Done()
	a.logger.Info("shutdown requested")

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	err := a.runner.Stop(stopCtx)
	a.maintenance.Stop()
	if sErr := a.admin.Shutdown(stopCtx); sErr != nil && err == nil {
		err = sErr
	}
	a.logger.Info("daemon stopped")
	return err
}

// Statistics reads the ledger summary plus the latest published posts.
// It needs no credentials, only the database.
func (a *Application) Statistics(ctx context.Context) (domain.StoreStats, []domain.PublishedRecord, error) {
	stats, err := a.store.Stats(ctx)
	if err != nil {
		return domain.StoreStats{}, nil, err
	}
	recent, err := a.store.Recent(ctx, 10)
	if err != nil {
		return domain.StoreStats{}, nil, err
	}
	return stats, recent, nil
}

// Close releases the ledger.
func (a *Application) Close() error {
	return a.store.Close()
}

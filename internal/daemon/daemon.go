// Package daemon wires the whole service together: store, model policy,
// providers, tools, coordinator, agent loop, Telegram ingress, reminders,
// and the admin surface.
package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/zana-AI/zana-planner/internal/config"
	"github.com/zana-AI/zana-planner/internal/logger"
	"github.com/zana-AI/zana-planner/internal/observability"
	"github.com/zana-AI/zana-planner/internal/store"
	"github.com/zana-AI/zana-planner/internal/telegram"
	"github.com/zana-AI/zana-planner/internal/webadmin"
	"github.com/zana-AI/zana-planner/pkg/agentloop"
	"github.com/zana-AI/zana-planner/pkg/coordinator"
	"github.com/zana-AI/zana-planner/pkg/cron"
	"github.com/zana-AI/zana-planner/pkg/modelpolicy"
	"github.com/zana-AI/zana-planner/pkg/provider"
	"github.com/zana-AI/zana-planner/pkg/tools"
)

// Daemon is the long-running service.
type Daemon struct {
	logger *logger.Logger

	store     *store.Store
	policy    *modelpolicy.Policy
	registry  *tools.Registry
	executor  *agentloop.Executor
	coord     *coordinator.Coordinator
	router    *Router
	bot       *telegram.Bot
	reminders *cron.ReminderService
	admin     *webadmin.Server
	watcher   *config.Watcher

	eventLoop *EventLoop

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	running bool
	mu      sync.RWMutex
}

// New creates a daemon instance with every component wired but nothing
// started yet. configPath is the file the daemon was started from; hot
// reload watches that same file. Empty means the default location.
func New(cfg *config.Config, configPath string, log *logger.Logger) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	observability.EnsureRegistered()
	zlog := log.GetZerolog()

	ctx, cancel := context.WithCancel(context.Background())
	d := &Daemon{
		logger: log,
		ctx:    ctx,
		cancel: cancel,
	}

	dbPath, err := dataPath(cfg)
	if err != nil {
		cancel()
		return nil, err
	}

	d.store, err = store.Open(store.Config{Path: dbPath, Logger: zlog})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	d.policy = modelpolicy.New(zlog)

	d.registry, err = tools.NewRegistry(d.store, zlog)
	if err != nil {
		cancel()
		d.closePartial()
		return nil, fmt.Errorf("failed to build tool registry: %w", err)
	}

	llm, err := buildProvider(cfg)
	if err != nil {
		cancel()
		d.closePartial()
		return nil, err
	}

	d.bot, err = telegram.New(cfg.Telegram, zlog)
	if err != nil {
		cancel()
		d.closePartial()
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	d.executor, err = agentloop.New(llm, d.policy, d.registry.Guards(), agentloop.Config{
		Models:         cfg.CandidateModels(),
		MaxIterations:  cfg.Agent.MaxIterations,
		Temperature:    cfg.Agent.Temperature,
		MaxTokens:      cfg.Agent.MaxTokens,
		SystemPrompt:   cfg.Agent.SystemPrompt,
		StrictMutation: cfg.Agent.StrictMutation,
	}, newTypingSink(d.bot, zlog), zlog)
	if err != nil {
		cancel()
		d.closePartial()
		return nil, fmt.Errorf("failed to build agent executor: %w", err)
	}

	d.coord = coordinator.New(coordinator.Config{
		Cap:      cfg.Coordinator.QueueCap,
		Policy:   dropPolicy(cfg.Coordinator.DropPolicy),
		Debounce: cfg.Coordinator.Debounce(),
	}, zlog)

	d.router = NewRouter(d.coord, d.executor, d.store, d.bot, cfg.Agent.HistoryTurns, zlog)

	d.reminders, err = cron.NewReminderService(cron.Config{
		Store:  d.store,
		Inject: d.router.InjectReminder,
		Logger: zlog,
	})
	if err != nil {
		cancel()
		d.closePartial()
		return nil, fmt.Errorf("failed to build reminder service: %w", err)
	}

	if cfg.Admin.Enabled {
		d.admin, err = webadmin.NewServer(webadmin.Config{
			Host:   cfg.Admin.Host,
			Port:   cfg.Admin.Port,
			Quota:  d.policy,
			Logger: zlog,
		})
		if err != nil {
			cancel()
			d.closePartial()
			return nil, fmt.Errorf("failed to build admin server: %w", err)
		}
	}

	d.watcher, err = config.NewWatcher(config.NewLoader(configPath), zlog, func(updated *config.Config) {
		d.executor.SetModels(updated.CandidateModels())
	})
	if err != nil {
		log.Warn().Err(err).Msg("Config watcher unavailable, hot reload disabled")
		d.watcher = nil
	}

	d.eventLoop = NewEventLoop(d)
	return d, nil
}

// Start brings the service up.
func (d *Daemon) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return fmt.Errorf("daemon is already running")
	}

	d.bot.SetHandler(d.router)
	if err := d.bot.Start(d.ctx); err != nil {
		return fmt.Errorf("failed to start telegram bot: %w", err)
	}

	if err := d.reminders.Start(); err != nil {
		return fmt.Errorf("failed to start reminder service: %w", err)
	}

	if d.admin != nil {
		d.admin.Start()
	}
	if d.watcher != nil {
		if err := d.watcher.Start(); err != nil {
			d.logger.Warn().Err(err).Msg("Config watcher unavailable, hot reload disabled")
		}
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.eventLoop.Run(d.ctx)
	}()

	d.running = true
	d.logger.Info().Msg("Daemon started")
	return nil
}

// Run starts the daemon and blocks until SIGINT or SIGTERM.
func (d *Daemon) Run() error {
	if err := d.Start(); err != nil {
		return err
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	sig := <-signals
	d.logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")

	return d.Stop()
}

// Stop shuts everything down in reverse dependency order.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return nil
	}
	d.running = false

	d.bot.Stop()
	d.reminders.Stop()
	if d.watcher != nil {
		d.watcher.Stop()
	}

	d.cancel()
	d.router.Wait()
	d.wg.Wait()

	if d.admin != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.admin.Stop(ctx); err != nil {
			d.logger.Warn().Err(err).Msg("Admin server shutdown failed")
		}
	}

	if err := d.store.Close(); err != nil {
		d.logger.Warn().Err(err).Msg("Store close failed")
	}

	d.logger.Info().Msg("Daemon stopped")
	return nil
}

func (d *Daemon) closePartial() {
	if d.store != nil {
		_ = d.store.Close()
	}
}

// buildProvider picks the configured provider adapter.
func buildProvider(cfg *config.Config) (provider.LLMProvider, error) {
	apiKey := cfg.APIKeyFor(cfg.Models.Provider)
	switch cfg.Models.Provider {
	case "anthropic":
		return provider.NewAnthropicProvider(apiKey), nil
	case "openai":
		return provider.NewOpenAIProvider(apiKey), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Models.Provider)
	}
}

// dropPolicy maps the config string onto the coordinator policy.
func dropPolicy(name string) coordinator.DropPolicy {
	if name == "oldest" {
		return coordinator.DropOldest
	}
	return coordinator.DropSummarize
}

// dataPath ensures the data directory exists and returns the database path.
func dataPath(cfg *config.Config) (string, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	if cfg.DatabasePath != "" {
		return cfg.DatabasePath, nil
	}
	return filepath.Join(cfg.DataDir, "zana.db"), nil
}

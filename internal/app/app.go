// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/slack-go/slack"

	"github.com/garyellow/lullabot-go/internal/bot"
	"github.com/garyellow/lullabot-go/internal/buildinfo"
	"github.com/garyellow/lullabot-go/internal/character"
	"github.com/garyellow/lullabot-go/internal/config"
	"github.com/garyellow/lullabot-go/internal/genai"
	"github.com/garyellow/lullabot-go/internal/logger"
	"github.com/garyellow/lullabot-go/internal/maintenance"
	"github.com/garyellow/lullabot-go/internal/metrics"
	"github.com/garyellow/lullabot-go/internal/modules/botsnack"
	"github.com/garyellow/lullabot-go/internal/modules/conversation"
	"github.com/garyellow/lullabot-go/internal/modules/factoid"
	"github.com/garyellow/lullabot-go/internal/modules/greeting"
	"github.com/garyellow/lullabot-go/internal/modules/help"
	"github.com/garyellow/lullabot-go/internal/modules/karma"
	"github.com/garyellow/lullabot-go/internal/modules/uptime"
	"github.com/garyellow/lullabot-go/internal/r2client"
	"github.com/garyellow/lullabot-go/internal/ratelimit"
	"github.com/garyellow/lullabot-go/internal/sentry"
	"github.com/garyellow/lullabot-go/internal/slackapp"
	"github.com/garyellow/lullabot-go/internal/snapshot"
	"github.com/garyellow/lullabot-go/internal/storage"
	"github.com/garyellow/lullabot-go/internal/webhook"
)

const snapshotJob = "snapshot"

// slackAPIURL is replaced in tests.
var slackAPIURL = slack.APIURL

// Application manages the application lifecycle and dependencies.
type Application struct {
	cfg        *config.Config
	logger     *logger.Logger
	db         *storage.DB
	metrics    *metrics.Metrics
	registry   *prometheus.Registry
	slack      *slackapp.Client
	router     *slackapp.Router
	socket     *slackapp.SocketListener // nil without an app token
	webhook    *webhook.Handler         // nil without a signing secret
	pending    *factoid.PendingStore
	characters *character.Store
	completer  *genai.FallbackCompleter // nil without a provider key
	snapshots  *snapshot.Manager        // nil when R2 is disabled
	scheduler  *maintenance.Scheduler
	server     *http.Server

	llmLimiter  *ratelimit.KeyedLimiter
	userLimiter *ratelimit.KeyedLimiter

	wg sync.WaitGroup // background goroutines
}

// Initialize creates and initializes a new application with all dependencies.
// The database is restored from the latest snapshot first when R2 is
// enabled and no local copy exists.
func Initialize(ctx context.Context, cfg *config.Config) (*Application, error) {
	log := logger.NewWithOptions(cfg.LogLevel, os.Stdout, logger.Options{
		BetterStackToken:    cfg.BetterStackToken,
		BetterStackEndpoint: cfg.BetterStackEndpoint,
	})

	log = log.WithField("service", "lullabot-go").WithField("version", buildinfo.String())
	if host, err := os.Hostname(); err == nil && host != "" {
		log = log.WithField("instance_id", host)
	}

	// Package-level slog.*Context calls pick up user/channel/request IDs.
	slog.SetDefault(log.Logger)

	log.Info("Initializing application...")
	if cfg.BetterStackToken != "" {
		log.WithField("endpoint", cfg.BetterStackEndpoint).Info("Better Stack logging enabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewBuildInfoCollector(),
	)
	m := metrics.New(registry)

	var snapshots *snapshot.Manager
	if cfg.R2.Enabled {
		mgr, err := newSnapshotManager(ctx, cfg, m)
		if err != nil {
			return nil, fmt.Errorf("snapshot: %w", err)
		}
		snapshots = mgr
		restoreSnapshot(ctx, mgr, cfg.SQLitePath(), log)
	}

	db, err := storage.New(ctx, cfg.SQLitePath())
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	log.WithField("path", cfg.SQLitePath()).Info("Database connected")

	app, err := build(ctx, cfg, log, db, m, registry)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	app.snapshots = snapshots

	log.Info("Initialization complete")
	return app, nil
}

// build wires everything that depends on the open database.
func build(ctx context.Context, cfg *config.Config, log *logger.Logger, db *storage.DB, m *metrics.Metrics, registry *prometheus.Registry) (*Application, error) {
	slackOpts := []slack.Option{slack.OptionAPIURL(slackAPIURL)}
	if cfg.SlackAppToken != "" {
		slackOpts = append(slackOpts, slack.OptionAppLevelToken(cfg.SlackAppToken))
	}
	api := slack.New(cfg.SlackBotToken, slackOpts...)
	client := slackapp.NewClientWithAPI(api, config.UserLookupCacheTTL, m)

	authCtx, cancel := context.WithTimeout(ctx, config.SlackAuth)
	defer cancel()
	if err := client.Authenticate(authCtx); err != nil {
		return nil, fmt.Errorf("slack auth: %w", err)
	}
	log.WithField("bot_user_id", client.BotUserID()).
		WithField("team_id", client.TeamID()).
		Info("Slack authenticated")

	characters, err := character.NewStore(cfg.CharacterFile, log)
	if err != nil {
		return nil, fmt.Errorf("character: %w", err)
	}

	var completer *genai.FallbackCompleter
	if cfg.HasLLMProvider() {
		llmCfg := buildLLMConfig(cfg)
		completer, err = genai.NewCompleter(ctx, llmCfg, m)
		if err != nil {
			log.WithError(err).Warn("Completer initialization failed")
		}
		if completer != nil {
			providers := llmCfg.ConfiguredProviders()
			names := make([]string, len(providers))
			for i, p := range providers {
				names[i] = string(p)
			}
			log.WithField("providers", names).Info("Conversational replies enabled")
		}
	}

	llmLimiter := ratelimit.NewKeyedLimiter(ratelimit.KeyedConfig{
		Name:          "llm",
		Burst:         cfg.Bot.LLMRateBurst,
		RefillRate:    cfg.Bot.LLMRateRefill / 3600.0, // hourly to per-second
		DailyLimit:    cfg.Bot.LLMRateDaily,
		CleanupPeriod: config.RateLimiterCleanupInterval,
		Metrics:       m,
	})
	userLimiter := ratelimit.NewKeyedLimiter(ratelimit.KeyedConfig{
		Name:          "user",
		Burst:         cfg.Bot.UserRateBurst,
		RefillRate:    cfg.Bot.UserRateRefill,
		CleanupPeriod: config.RateLimiterCleanupInterval,
		Metrics:       m,
	})

	pending, err := factoid.NewPendingStore(cfg.Bot.PendingTTL, cfg.Bot.PendingSweepSchedule, m)
	if err != nil {
		llmLimiter.Stop()
		userLimiter.Stop()
		return nil, fmt.Errorf("factoid: %w", err)
	}

	patterns := bot.NewRegistry()
	handlers := []bot.Handler{
		greeting.NewHandler(client, client, log),
		uptime.NewHandler(client, client, time.Now()),
		botsnack.NewHandler(client),
		karma.NewHandler(storage.NewKarmaRepository(db), client, client, m, log),
		factoid.NewHandler(factoid.Config{
			Store:     storage.NewFactoidRepository(db),
			Pending:   pending,
			Matcher:   patterns,
			Directory: client,
			Replies:   client,
			Logger:    log,
		}),
		help.NewHandler(help.DefaultCatalog, client),
	}

	dispatchCfg := bot.DispatcherConfig{
		Registry:     patterns,
		Handlers:     handlers,
		Identity:     client,
		Replier:      client,
		UserLimiter:  userLimiter,
		Logger:       log,
		Metrics:      m,
		ReportError:  sentry.CaptureError,
		EventTimeout: cfg.Bot.EventTimeout,
	}
	if completer != nil {
		dispatchCfg.Fallback = conversation.NewHandler(conversation.Config{
			Completer:    completer,
			Characters:   characters,
			Capabilities: help.DefaultCatalog.Capabilities(),
			Matcher:      patterns,
			Limiter:      llmLimiter,
			Replies:      client,
			Logger:       log,
			HistoryLimit: cfg.Bot.HistoryLimit,
		})
	}

	dispatcher, err := bot.NewDispatcher(dispatchCfg)
	if err != nil {
		llmLimiter.Stop()
		userLimiter.Stop()
		return nil, fmt.Errorf("dispatcher: %w", err)
	}
	router := slackapp.NewRouter(dispatcher, client, log, m)

	app := &Application{
		cfg:         cfg,
		logger:      log,
		db:          db,
		metrics:     m,
		registry:    registry,
		slack:       client,
		router:      router,
		pending:     pending,
		characters:  characters,
		completer:   completer,
		scheduler:   maintenance.NewScheduler(log),
		llmLimiter:  llmLimiter,
		userLimiter: userLimiter,
	}

	if cfg.SocketMode() {
		app.socket = slackapp.NewSocketListener(api, router, log)
	}
	if cfg.SlackSigningSecret != "" {
		app.webhook, err = webhook.NewHandler(webhook.HandlerConfig{
			SigningSecret: cfg.SlackSigningSecret,
			Router:        router,
			Logger:        log,
			Metrics:       m,
		})
		if err != nil {
			llmLimiter.Stop()
			userLimiter.Stop()
			return nil, fmt.Errorf("webhook: %w", err)
		}
	}

	app.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.routes(),
		ReadHeaderTimeout: config.HTTPRead,
		ReadTimeout:       config.HTTPRead,
		WriteTimeout:      config.HTTPWrite,
		IdleTimeout:       config.HTTPIdle,
	}
	return app, nil
}

func (a *Application) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if sentry.IsEnabled() {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true, Timeout: 2 * time.Second}))
	}
	router.Use(securityHeadersMiddleware())
	router.Use(loggingMiddleware(a.logger))

	router.GET("/", a.redirectToGitHub)
	router.GET("/livez", a.livenessCheck)
	router.HEAD("/livez", a.livenessCheck)
	router.GET("/readyz", a.readinessCheck)
	router.HEAD("/readyz", a.readinessCheck)
	if a.webhook != nil {
		router.POST("/slack/events", a.webhook.Handle)
	}
	router.GET("/metrics",
		metricsAuthMiddleware(a.cfg.MetricsPassword != "", a.cfg.MetricsUsername, a.cfg.MetricsPassword),
		gin.WrapH(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))
	return router
}

func newSnapshotManager(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*snapshot.Manager, error) {
	endpoint := cfg.R2.Endpoint
	if endpoint == "" {
		endpoint = r2client.EndpointForAccount(cfg.R2.AccountID)
	}
	client, err := r2client.New(ctx, r2client.Config{
		Endpoint:    endpoint,
		AccessKeyID: cfg.R2.AccessKeyID,
		SecretKey:   cfg.R2.SecretAccessKey,
		BucketName:  cfg.R2.BucketName,
	})
	if err != nil {
		return nil, err
	}
	state, err := maintenance.NewR2StateStore(client, cfg.R2.StateKey, config.R2Request)
	if err != nil {
		return nil, err
	}
	return snapshot.New(client, state, snapshot.Config{
		SnapshotKey: cfg.R2.SnapshotKey,
		TempDir:     cfg.DataDir,
	}, m), nil
}

// restoreSnapshot never fails startup: without a snapshot the bot starts
// with an empty database.
func restoreSnapshot(ctx context.Context, mgr *snapshot.Manager, dbPath string, log *logger.Logger) {
	restored, err := mgr.Restore(ctx, dbPath)
	switch {
	case errors.Is(err, snapshot.ErrNotFound):
		log.Info("No snapshot found; starting with an empty database")
	case err != nil:
		log.WithError(err).Warn("Snapshot restore failed; starting with an empty database")
	case restored:
		log.WithField("path", dbPath).Info("Database restored from snapshot")
	default:
		log.Debug("Local database present; snapshot restore skipped")
	}
}

// buildLLMConfig creates an LLMConfig from the application config.
func buildLLMConfig(cfg *config.Config) genai.LLMConfig {
	llmCfg := genai.DefaultLLMConfig()

	llmCfg.OpenAI.APIKey = cfg.OpenAIAPIKey
	llmCfg.OpenAI.BaseURL = cfg.OpenAIBaseURL
	llmCfg.Gemini.APIKey = cfg.GeminiAPIKey
	llmCfg.Anthropic.APIKey = cfg.AnthropicAPIKey

	if len(cfg.LLMProviders) > 0 {
		providers := make([]genai.Provider, 0, len(cfg.LLMProviders))
		for _, p := range cfg.LLMProviders {
			if llmCfg.GetProviderConfig(genai.Provider(p)) == nil {
				slog.Warn("ignoring unknown provider", "name", p)
				continue
			}
			providers = append(providers, genai.Provider(p))
		}
		if len(providers) > 0 {
			llmCfg.Providers = providers
		}
	}

	return llmCfg
}

func (a *Application) redirectToGitHub(c *gin.Context) {
	c.Redirect(http.StatusTemporaryRedirect, "https://github.com/garyellow/lullabot-go")
}

func (a *Application) livenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}

func (a *Application) getFeatures() map[string]bool {
	return map[string]bool{
		"socket_mode":  a.socket != nil,
		"events_api":   a.webhook != nil,
		"conversation": a.completer != nil,
		"snapshots":    a.snapshots != nil,
	}
}

func (a *Application) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), config.ReadinessCheckTimeout)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		a.logger.WithError(err).Warn("Readiness check failed: database unavailable")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "database unavailable",
		})
		return
	}

	if a.socket != nil && !a.socket.Connected() {
		a.logger.Debug("Readiness check failed: socket mode disconnected")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "slack disconnected",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ready",
		"database": "connected",
		"teams":    a.getTeamStats(ctx),
		"features": a.getFeatures(),
	})
}

// getTeamStats counts the teams holding karma and factoid documents.
func (a *Application) getTeamStats(ctx context.Context) map[string]int {
	stats := make(map[string]int)

	keys, err := a.db.Keys(ctx)
	if err != nil {
		a.logger.WithError(err).Warn("Failed to list documents in team stats")
		return stats
	}

	stats["karma"] = 0
	stats["factoids"] = 0
	for _, key := range keys {
		switch {
		case strings.HasSuffix(key, "_karma"):
			stats["karma"]++
		case strings.HasSuffix(key, "_factoids"):
			stats["factoids"]++
		}
	}
	return stats
}

// Run starts the HTTP server and background jobs, then blocks until a
// shutdown signal arrives or the Socket Mode connection fails for good.
//
// Shutdown order:
//  1. Stop accepting HTTP requests and close the socket connection
//  2. Wait for in-flight events
//  3. Take a final snapshot
//  4. Close resources
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fatal := make(chan error, 1)
	a.startBackgroundJobs(ctx, fatal)
	a.startHTTPServer()

	var runErr error
	select {
	case sig := <-a.waitForShutdownSignal():
		a.logger.WithField("signal", sig.String()).Info("Received shutdown signal")
	case runErr = <-fatal:
		a.logger.WithError(runErr).Error("Event transport failed")
	}

	cancel()

	a.logger.Info("Waiting for background jobs to finish...")
	start := time.Now()
	a.wg.Wait()
	a.logger.WithField("duration_ms", time.Since(start).Milliseconds()).
		Info("All background jobs completed")

	if err := a.shutdown(); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}

// startBackgroundJobs starts all background goroutines tracked by WaitGroup.
func (a *Application) startBackgroundJobs(ctx context.Context, fatal chan<- error) {
	if a.socket != nil {
		a.wg.Go(func() {
			if err := a.socket.Run(ctx); err != nil {
				fatal <- err
			}
		})
	}

	if err := a.characters.Watch(ctx); err != nil {
		a.logger.WithError(err).Warn("Character file watch disabled")
	}

	a.pending.Start()

	if a.snapshots != nil {
		err := a.scheduler.Add(snapshotJob, a.cfg.R2.Schedule, a.cfg.R2.Timeout, a.uploadSnapshot)
		if err != nil {
			a.logger.WithError(err).Error("Snapshot job not scheduled")
		}
	}
	a.scheduler.Start()
}

func (a *Application) uploadSnapshot(ctx context.Context) error {
	res, err := a.snapshots.Upload(ctx, a.db)
	if err != nil {
		return err
	}
	log := a.logger.WithField("digest", res.Digest)
	if res.Skipped {
		log.Debug("Snapshot unchanged; upload skipped")
		return nil
	}
	log.WithField("bytes", res.Bytes).Info("Snapshot uploaded")
	return nil
}

// startHTTPServer starts the HTTP server in a goroutine.
func (a *Application) startHTTPServer() {
	go func() {
		a.logger.WithField("port", a.cfg.Port).Info("Starting HTTP server")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.WithError(err).Error("HTTP server error")
		}
	}()
}

// waitForShutdownSignal delivers SIGINT/SIGTERM.
func (a *Application) waitForShutdownSignal() <-chan os.Signal {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	return quit
}

// shutdown runs after background jobs have returned.
func (a *Application) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	a.logger.Info("Stopping HTTP server...")
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Error("HTTP server shutdown error")
	}

	a.logger.Info("Waiting for in-flight events to complete...")
	if err := a.router.Wait(shutdownCtx); err != nil {
		a.logger.WithError(err).Warn("Event dispatch shutdown timeout")
	}

	if a.snapshots != nil {
		a.scheduler.RunNow("final_snapshot", a.cfg.R2.Timeout, a.uploadSnapshot)
	}
	if err := a.scheduler.Stop(shutdownCtx); err != nil {
		a.logger.WithError(err).Warn("Scheduler shutdown timeout")
	}

	a.logger.Info("Closing resources...")
	a.pending.Stop()

	if err := a.characters.Close(); err != nil {
		a.logger.WithError(err).WithField("component", "character").Error("Component close error")
	}

	if a.completer != nil {
		if err := a.completer.Close(); err != nil {
			a.logger.WithError(err).WithField("component", "completer").Error("Component close error")
		}
	}

	if err := a.db.Close(); err != nil {
		a.logger.WithError(err).WithField("component", "database").Error("Component close error")
	}

	a.llmLimiter.Stop()
	a.userLimiter.Stop()

	sentry.Flush(2 * time.Second)

	if err := a.logger.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Warn("Logger shutdown timed out")
	}

	a.logger.Info("Shutdown complete")
	return nil
}

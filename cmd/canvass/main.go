package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MikeSquared-Agency/canvass/internal/allowlist"
	"github.com/MikeSquared-Agency/canvass/internal/api"
	"github.com/MikeSquared-Agency/canvass/internal/config"
	"github.com/MikeSquared-Agency/canvass/internal/drive"
	"github.com/MikeSquared-Agency/canvass/internal/gate"
	"github.com/MikeSquared-Agency/canvass/internal/hermes"
	"github.com/MikeSquared-Agency/canvass/internal/intake"
	"github.com/MikeSquared-Agency/canvass/internal/processor"
	"github.com/MikeSquared-Agency/canvass/internal/records"
	"github.com/MikeSquared-Agency/canvass/internal/session"
	"github.com/MikeSquared-Agency/canvass/internal/store"
	"github.com/MikeSquared-Agency/canvass/internal/telegram"
	"github.com/MikeSquared-Agency/canvass/internal/vision"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("canvass starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	if cfg.DatabaseURL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		slog.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}
	res, err := store.Setup(ctx, db, store.Layout)
	if err != nil {
		slog.Error("failed to set up ranges", "error", err)
		os.Exit(1)
	}
	slog.Info("database ready", "created", res.Created, "existing", res.Existing)

	collectors := allowlist.NewStore(db, slog.Default())
	voters := records.NewStore(db)

	// Conversation state: Redis when configured so conversations survive
	// restarts, process memory otherwise.
	var states intake.StateStore
	if cfg.RedisURL != "" {
		rs, err := intake.NewRedisStates(ctx, cfg.RedisURL, cfg.ConversationTTL)
		if err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer rs.Close()
		states = rs
		slog.Info("conversation state in redis", "ttl", cfg.ConversationTTL)
	} else {
		states = intake.NewMemoryStates(cfg.ConversationTTL, nil)
		slog.Warn("REDIS_URL not set, conversation state kept in memory", "ttl", cfg.ConversationTTL)
	}

	// Capabilities. Unconfigured clients fail per call, which the machine
	// reports to the collector without losing the conversation.
	tg := telegram.NewClient(cfg.TelegramBotToken, slog.Default())
	ocr := vision.NewClient(cfg.VisionAPIKey)
	uploader := drive.NewClient(cfg.DriveAccessToken, cfg.DriveFolderID, slog.Default())
	if cfg.VisionAPIKey == "" {
		slog.Warn("VISION_API_KEY not set, card photos cannot be read")
	}
	if cfg.DriveAccessToken == "" || cfg.DriveFolderID == "" {
		slog.Warn("DRIVE_ACCESS_TOKEN or DRIVE_FOLDER_ID not set, card photos cannot be stored")
	}

	machine := intake.NewMachine(states, tg, ocr, uploader, voters, slog.Default())

	// NATS/Hermes (optional)
	var hermesClient *hermes.Client
	var publisher processor.Publisher
	var messaging func() bool
	if cfg.NatsURL != "" {
		hermesClient, err = hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			slog.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer hermesClient.Close()
		publisher = hermesClient
		messaging = hermesClient.Connected
		slog.Info("NATS connected", "url", cfg.NatsURL)
	} else {
		slog.Warn("NATS_URL not set, running without domain events")
	}

	// Processor: the intake pipeline
	proc := processor.New(gate.New(collectors, slog.Default()), machine, tg, publisher, slog.Default())

	var updates api.UpdateProcessor
	if cfg.TelegramBotToken != "" {
		updates = proc
		if hermesClient != nil {
			if err := hermesClient.Subscribe(hermes.SubjectTelegramUpdate, proc.HandleUpdate); err != nil {
				slog.Error("failed to subscribe to telegram updates", "error", err)
				os.Exit(1)
			}
		}
	} else {
		slog.Warn("TELEGRAM_BOT_TOKEN not set, intake channel disabled")
	}

	auth := session.New(cfg.AdminUsername, cfg.AdminPassword, session.WithTimeout(cfg.SessionTimeout))
	if cfg.AdminUsername == "" || cfg.AdminPassword == "" {
		slog.Warn("ADMIN_USERNAME or ADMIN_PASSWORD not set, dashboard login disabled")
	}
	if cfg.CompanionAPIEnabled {
		slog.Warn("companion API enabled without authentication", "path", "/api/companion")
	}

	// HTTP API
	srv := api.NewServer(cfg.Port, api.Deps{
		Collectors: collectors,
		Voters:     voters,
		Stats:      records.NewAggregator(voters, collectors),
		Auth:       auth,
		Setup: func(ctx context.Context) (store.SetupResult, error) {
			return store.Setup(ctx, db, store.Layout)
		},
		Updates:       updates,
		WebhookSecret: cfg.TelegramSecret,
		Companion:     cfg.CompanionAPIEnabled,
		Messaging:     messaging,
	}, slog.Default())
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	// Announce registration
	if hermesClient != nil {
		if err := hermesClient.Publish(hermes.SubjectRegistered, map[string]any{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"port":      cfg.Port,
			"webhook":   updates != nil,
		}); err != nil {
			slog.Warn("failed to publish registration", "error", err)
		}
	}

	slog.Info("canvass ready", "port", cfg.Port)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown incomplete", "error", err)
	}
	cancel()
	slog.Info("canvass stopped")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"omnichat-platform/internal/audit"
	"omnichat-platform/internal/auth"
	"omnichat-platform/internal/call"
	"omnichat-platform/internal/channel"
	"omnichat-platform/internal/chat"
	"omnichat-platform/internal/config"
	"omnichat-platform/internal/connector"
	"omnichat-platform/internal/httpapi"
	"omnichat-platform/internal/notify"
	"omnichat-platform/internal/parser"
	"omnichat-platform/internal/realtime"
	"omnichat-platform/internal/storage"
	"omnichat-platform/pkg/logger"
	"omnichat-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Fan-out plumbing: writes publish to Redis, the bridge feeds the local
	// WebSocket hub on every instance.
	hub := realtime.NewHub(log)
	publisher := realtime.NewRedisPublisher(rdb, log)
	bridge := realtime.NewBridge(rdb, hub, log)
	go func() {
		if err := bridge.Run(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("realtime bridge stopped", "err", err)
		}
	}()

	blobs := storage.NewPostgres(db)
	signer := storage.NewSigner(cfg.Storage.MediaSecret, cfg.Storage.PublicBaseURL)
	auditor := audit.NewService(audit.NewPostgresRepo(db))

	users := chat.NewRegistry(db)
	conversations := chat.NewConversations(db)
	bus := chat.NewBus(db, log, publisher, blobs)

	// Platform connectors: only configured channels exist in the registry.
	var conns []connector.Connector
	var telegram *connector.Telegram
	parserOpts := parser.Options{}
	if cfg.Telegram.BotToken != "" {
		telegram = connector.NewTelegram(cfg.Telegram.APIURL, cfg.Telegram.BotToken)
		conns = append(conns, telegram)
		bus.RegisterFetcher(channel.TypeTelegram, telegram)
	}
	if cfg.Messenger.PageAccessToken != "" {
		messenger := connector.NewMessenger(cfg.Messenger.APIURL, cfg.Messenger.PageAccessToken)
		conns = append(conns, messenger)
		parserOpts.MessengerProfile = messenger.FetchProfile
	}
	if cfg.Discord.BotToken != "" {
		conns = append(conns, connector.NewDiscord(cfg.Discord.APIURL, cfg.Discord.BotToken))
	}
	connectors := connector.NewRegistry(conns...)
	log.Info("connectors configured", "channels", connectors.Channels())

	pool := notify.NewPool(log, cfg.Notify.Workers, cfg.Notify.QueueSize)

	router := chat.NewRouter(
		log,
		users,
		bus,
		chat.NewRedisDeduper(rdb, 10*time.Minute),
		connectors,
		pool,
		auditor,
		chat.WelcomeConfig{Enabled: cfg.AutoReply.Enabled, Text: cfg.AutoReply.WelcomeMessage},
	)

	callSvc := call.NewService(db, log, call.RoomConfig{
		BaseURL:        cfg.Conference.BaseURL,
		RoomPrefix:     cfg.Conference.RoomPrefix,
		PrejoinEnabled: cfg.Conference.PrejoinEnabled,
		DisplayName:    cfg.Conference.DisplayName,
	}, publisher, auditor)
	signaling := call.NewSignaling(log, callSvc, publisher)

	handlers := httpapi.Handlers{
		Log:           log,
		Auth:          authManager,
		Users:         users,
		Conversations: conversations,
		Bus:           bus,
		Calls:         callSvc,
		Signaling:     signaling,
		Connectors:    connectors,
		Blobs:         blobs,
		Signer:        signer,
		Auditor:       auditor,
		Tasks:         pool,
		TelegramMedia: telegram,
	}
	webhooks := httpapi.WebhookHandlers{
		Log:                  log,
		Parser:               parser.NewTable(log, parserOpts),
		Router:               router,
		MessengerVerifyToken: cfg.Messenger.VerifyToken,
	}
	stream := httpapi.WSHandlers{Auth: authManager, Hub: hub}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, db, handlers, webhooks, stream, auth.RequireAccessToken(authManager))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
	if err := pool.Shutdown(shutdownCtx); err != nil {
		log.Error("task pool drain failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}

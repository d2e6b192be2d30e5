package main // Entry point package

import (
	"context"  // context for the background sweep
	"log/slog" // structured logging
	"os"       // stdout handle for the logger
	"time"     // sweep interval

	"github.com/joho/godotenv"    // loads .env files in development
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/iliyamo/parking-reservation-bot/internal/bot"        // dispatcher, engine and resolver
	"github.com/iliyamo/parking-reservation-bot/internal/config"     // internal config loader
	"github.com/iliyamo/parking-reservation-bot/internal/database"   // MySQL connector
	"github.com/iliyamo/parking-reservation-bot/internal/handler"    // HTTP handlers
	"github.com/iliyamo/parking-reservation-bot/internal/queue"      // reservation event consumer
	"github.com/iliyamo/parking-reservation-bot/internal/repository" // data access
	"github.com/iliyamo/parking-reservation-bot/internal/router"     // route registration
	"github.com/iliyamo/parking-reservation-bot/internal/service"    // queue publisher
	"github.com/iliyamo/parking-reservation-bot/internal/telegram"   // bot API client
	"github.com/iliyamo/parking-reservation-bot/internal/ton"        // TON indexer client
)

func main() {
	_ = godotenv.Load() // load .env when present; real deployments use the environment

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)) // JSON logs to stdout
	cfg := config.Load()                                    // load environment config

	// Database connection; the process cannot serve anything without it.
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.Error("database connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	// Redis is optional: a nil client disables caching and rate limiting.
	rdb := config.NewRedisClient()
	if rdb == nil {
		logger.Warn("redis unavailable, cache and rate limiting disabled")
	}

	// Repositories over the shared database handle.
	spaces := repository.NewSpaceRepo(db)
	zones := repository.NewZoneRepo(db)
	payments := repository.NewPaymentRepo(db)
	accounts := repository.NewAccountRepo(db)
	reservations := repository.NewReservationRepo(db)

	// Outbound clients and the queue publisher.
	tg := telegram.NewClient(cfg.BotToken)
	verifier := ton.NewClient(cfg.TonAPIURL, cfg.TonAPIKey)
	publisher := service.NewQueuePublisher(cfg.AmqpURL, logger)

	// The bot core: resolver, engine, peripheral commands, dispatcher.
	resolver := bot.NewLinkResolver(accounts)
	engine := bot.NewEngine(spaces, zones, payments, resolver, reservations, tg, verifier, publisher, cfg.TonWallet, logger)
	commands := bot.NewCommands(accounts, reservations, tg, logger)
	dispatcher := bot.NewDispatcher(engine, commands, tg, logger)

	// HTTP surface.
	e := echo.New()
	e.HideBanner = true
	router.RegisterRoutes(e,
		handler.NewWebhookHandler(dispatcher, cfg.WebhookSecret, logger),
		handler.NewSensorHandler(spaces, cfg.SensorToken))
	router.RegisterAdmin(e,
		handler.NewAuthHandler(cfg),
		handler.NewAdminHandler(spaces, zones, reservations, payments),
		cfg.JWTSecret, rdb)

	// Background consumer appends confirmed reservations to the audit log.
	go queue.StartReservationConsumer(cfg.AmqpURL, logger)

	// Periodic sweep frees reserved spaces whose window lapsed.  The
	// reservation write re-checks the window itself, so the sweep only
	// keeps listings tidy.
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if n, err := spaces.ReleaseExpired(ctx, time.Now().UTC()); err != nil {
				logger.Error("release expired reservations failed", "err", err)
			} else if n > 0 {
				logger.Info("released expired reservations", "count", n)
			}
			cancel()
		}
	}()

	addr := ":" + cfg.Port
	logger.Info("listening", "addr", addr, "env", cfg.Env)
	if err := e.Start(addr); err != nil { // start HTTP server
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

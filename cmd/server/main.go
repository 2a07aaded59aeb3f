package main // Entry point package

import (
	"log" // Logging library

	"github.com/joho/godotenv"    // .env loader for local development
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/iliyamo/stream-donation-hub/internal/config"
	"github.com/iliyamo/stream-donation-hub/internal/database"
	"github.com/iliyamo/stream-donation-hub/internal/handler"
	"github.com/iliyamo/stream-donation-hub/internal/hub"
	"github.com/iliyamo/stream-donation-hub/internal/middleware"
	"github.com/iliyamo/stream-donation-hub/internal/queue"
	"github.com/iliyamo/stream-donation-hub/internal/repository"
	"github.com/iliyamo/stream-donation-hub/internal/router"
	"github.com/iliyamo/stream-donation-hub/internal/service"
)

func main() {
	// A missing .env is fine in containerized deployments where real
	// environment variables are set.
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName, database.Pool{
		MaxOpen:      cfg.DBMaxOpen,
		MaxIdle:      cfg.DBMaxIdle,
		ConnLifetime: cfg.DBConnLifetime,
	})
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable: rate limiting and speech budgets disabled")
	}

	// Repositories.
	intentRepo := repository.NewPaymentIntentRepo(db)
	donationRepo := repository.NewDonationRepo(db)
	timerRepo := repository.NewTimerRepo(db)
	goalRepo := repository.NewGoalRepo(db)
	leaderboardRepo := repository.NewLeaderboardRepo(db)
	alertRepo := repository.NewAlertSettingsRepo(db)
	soundRepo := repository.NewSoundEffectRepo(db)

	// Broadcast hub and services.
	h := hub.New()
	speech := service.NewSpeechService(config.LoadSpeechConfig(), rdb)
	settlement := service.NewSettlementService(intentRepo, timerRepo, goalRepo, leaderboardRepo, alertRepo, soundRepo, h, speech)
	timers := service.NewTimerService(timerRepo, h)

	var invoicer service.Invoicer
	if cfg.GatewayURL != "" {
		gw := service.NewHTTPGateway(cfg.GatewayURL)
		settlement.UseGateway(gw)
		invoicer = gw
	} else {
		log.Println("no payment gateway configured: intents settle via webhook token only")
	}

	// Background consumer writing the settlement audit log.
	go func() {
		if err := queue.StartDonationConsumer(); err != nil {
			log.Printf("donation consumer stopped: %v", err)
		}
	}()

	handlers := router.Handlers{
		Payments:    handler.NewPaymentHandler(settlement),
		Donations:   handler.NewDonationHandler(intentRepo, donationRepo, soundRepo, invoicer),
		Timer:       handler.NewTimerHandler(timers),
		Goal:        handler.NewGoalHandler(goalRepo, h),
		Alerts:      handler.NewAlertsHandler(alertRepo, settlement),
		Leaderboard: handler.NewLeaderboardHandler(leaderboardRepo),
		Overlay:     handler.NewOverlayHandler(timers, goalRepo, leaderboardRepo, alertRepo, donationRepo, soundRepo),
		WS:          handler.NewWSHandler(h, timerRepo, goalRepo, leaderboardRepo, alertRepo),
	}

	e := echo.New()
	router.RegisterRoutes(e)

	rlCfg := config.LoadRateLimitConfig()
	router.RegisterPublic(e, handlers, middleware.NewTokenBucket(rlCfg, rdb))

	// Dashboard traffic is bucketed per authenticated account so one
	// busy operator cannot starve the others.
	opCfg := rlCfg
	opCfg.KeyStrategy = "user_route"
	router.RegisterOperator(e, handlers, cfg.JWTSecret, middleware.NewTokenBucket(opCfg, rdb))

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}

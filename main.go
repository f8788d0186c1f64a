package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"invest-tournament-system/cache"
	"invest-tournament-system/config"
	"invest-tournament-system/handlers"
	"invest-tournament-system/middleware"
	"invest-tournament-system/models"
	"invest-tournament-system/services"
	"invest-tournament-system/utils"
	"invest-tournament-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("❌ Invalid configuration")
	}
	cfg.ConfigureLogging()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := fiber.New(fiber.Config{
		AppName:      "invest-tournament-system",
		ErrorHandler: errorHandler,
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-Service-Token, X-Device-ID",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// 🔐❗ GLOBAL: Only Gateway requests allowed
	app.Use(middleware.GatewayAuthMiddleware(cfg.ServiceToken))
	app.Use(middleware.UserContextMiddleware())

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		logrus.WithError(err).Fatal("❌ Failed to connect to database")
	}
	if err := db.AutoMigrate(
		&models.Tournament{},
		&models.TournamentParticipant{},
		&models.TournamentActivity{},
		&models.TournamentPortfolio{},
		&models.TournamentHolding{},
		&models.PortfolioSnapshot{},
		&models.TournamentTrade{},
		&models.TournamentRanking{},
		&models.TournamentResult{},
		&models.StockQuote{},
		&models.UserProfile{},
		&models.TokenWallet{},
		&models.WalletTransaction{},
		&models.FriendRequest{},
		&models.Friendship{},
		&models.AchievementType{},
		&models.UserAchievement{},
		&models.InvestorStats{},
		&models.ReadingSession{},
		&models.AuthorReader{},
		&models.AuthorArticle{},
		&models.AuthorViolation{},
		&models.AuthorEligibility{},
	); err != nil {
		logrus.WithError(err).Fatal("❌ Failed to migrate database")
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		if rdb, err = cache.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB); err != nil {
			logrus.WithError(err).Warn("⚠️ Redis unavailable, rankings and trade locks stay process-local")
			rdb = nil
		}
	}

	prices, err := services.NewPriceFeed(db, 4096, 15*time.Minute)
	if err != nil {
		logrus.WithError(err).Fatal("❌ Failed to build price cache")
	}
	hub := services.NewEventHub()
	rankings := services.NewRankingService(db, prices, rdb, hub)
	trades := services.NewTradeService(db, services.TradeRulesFromConfig(cfg.Trading), prices,
		services.NewTradeLocker(rdb, 10*time.Second), rankings, hub)
	wallets := services.NewWalletService(db)
	achievements := services.NewAchievementService(db)
	if err := achievements.SeedCatalog(ctx); err != nil {
		logrus.WithError(err).Fatal("❌ Failed to seed achievement catalog")
	}
	tournaments := services.NewTournamentService(db, hub, rankings, cfg.DefaultInitialBalance)

	var archiver services.ReportArchiver
	if cfg.R2.Enabled() {
		r2, err := utils.NewR2Archiver(ctx, cfg.R2)
		if err != nil {
			logrus.WithError(err).Fatal("❌ Failed to initialize R2 client")
		}
		archiver = r2
	} else {
		logrus.Warn("⚠️ R2 not configured, settlement reports will not be archived")
	}
	settlement := services.NewSettlementEngine(services.NewGormSettlementStore(db, prices), hub, archiver)
	performance := services.NewPerformanceService(db, rankings, achievements)
	eligibility := services.NewEligibilityService(db, cfg.Eligibility)
	friends := services.NewFriendService(db)

	routes := handlers.TournamentHandlers{
		Tournaments: tournaments,
		Trades:      trades,
		Rankings:    rankings,
		Settlement:  settlement,
	}
	if cfg.AuthServiceURL != "" {
		routes.AuthClient = services.NewAuthServiceClient(cfg.AuthServiceURL, cfg.AuthServiceKey)
	}
	handlers.SetupTournamentRoutes(app, routes)
	handlers.SetupSocialRoutes(app, friends, performance, achievements, wallets)
	handlers.SetupEligibilityRoutes(app, eligibility)

	if cfg.SyncServiceURL != "" {
		workers.NewProfileSyncWorker(db, cfg.SyncServiceURL, "/api/v1/public/profiles", cfg.ServiceToken).Start(ctx)
		go workers.PollWallets(ctx, workers.NewWalletSyncClient(db, cfg.SyncServiceURL, cfg.ServiceToken), 10*time.Second)
	} else {
		logrus.Warn("⚠️ SYNC_SERVICE_URL not set, profile and wallet mirrors disabled")
	}
	if cfg.MarketDataURL != "" {
		go workers.PollPrices(ctx, workers.NewPriceSyncClient(db, prices, cfg.MarketDataURL, cfg.ServiceToken), cfg.PriceSyncInterval)
	} else {
		logrus.Warn("⚠️ MARKET_DATA_URL not set, quotes must be written by another process")
	}

	sched, err := services.StartScheduler(ctx, cfg, services.Jobs{
		Rankings:    rankings,
		Tournaments: tournaments,
		Settlement:  settlement,
		Performance: performance,
		Eligibility: eligibility,
	})
	if err != nil {
		logrus.WithError(err).Fatal("❌ Failed to start scheduler")
	}

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			logrus.WithError(err).Error("❌ Server error")
			stop()
		}
	}()
	logrus.WithFields(logrus.Fields{
		"port":    cfg.Port,
		"origins": cfg.AllowedOrigins,
		"redis":   rdb != nil,
	}).Info("✅ Server running, GatewayAuthMiddleware enforced globally")

	<-ctx.Done()
	logrus.Info("Shutting down server...")
	if err := sched.Shutdown(); err != nil {
		logrus.WithError(err).Warn("⚠️ Scheduler shutdown")
	}
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logrus.WithError(err).Warn("⚠️ HTTP shutdown")
	}
	if rdb != nil {
		_ = rdb.Close()
	}
}

// errorHandler renders unhandled errors in the same shape as the endpoints do.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if fe, ok := err.(*fiber.Error); ok {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

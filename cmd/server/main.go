package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/openincube/platform/internal/auth"
	"github.com/openincube/platform/internal/config"
	"github.com/openincube/platform/internal/database"
	"github.com/openincube/platform/internal/handler"
	"github.com/openincube/platform/internal/notify"
	"github.com/openincube/platform/internal/realtime"
	"github.com/openincube/platform/internal/repository"
	"github.com/openincube/platform/internal/router"
	"github.com/openincube/platform/internal/service"
)

func main() {
	// .env is a dev convenience; production supplies real environment vars.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	if err := database.Migrate(database.DSN(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)); err != nil {
		log.Fatalf("migrations: %v", err)
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable; rate limiting disabled")
	}

	users := repository.NewUserRepo(db)
	refresh := repository.NewRefreshTokenRepo(db)
	resets := repository.NewResetTokenRepo(db)
	tenants := repository.NewTenantRepo(db)
	cohorts := repository.NewCohortRepo(db)

	codec := auth.NewCodec(cfg.JWTSecret, cfg.AccessTTLMin)

	var sender service.NotificationSender = notify.NoopSender{}
	if cfg.RabbitURL != "" {
		sender = notify.NewPublisher(cfg.RabbitURL)
		go func() {
			if err := notify.StartResetConsumer(cfg.RabbitURL); err != nil {
				log.Printf("reset consumer stopped: %v", err)
			}
		}()
	}

	authSvc := service.NewAuthenticator(cfg, db, users, refresh, resets, sender, codec)

	e := echo.New()
	router.Register(e,
		codec,
		authSvc,
		rdb,
		handler.NewAuthHandler(authSvc),
		handler.NewCohortHandler(cohorts),
		handler.NewTenantHandler(tenants),
		realtime.NewHub(),
	)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/taskflow/internal/cache"
	"github.com/iliyamo/taskflow/internal/config"
	"github.com/iliyamo/taskflow/internal/database"
	"github.com/iliyamo/taskflow/internal/events"
	"github.com/iliyamo/taskflow/internal/handler"
	"github.com/iliyamo/taskflow/internal/logger"
	"github.com/iliyamo/taskflow/internal/metrics"
	"github.com/iliyamo/taskflow/internal/middleware"
	"github.com/iliyamo/taskflow/internal/queue"
	"github.com/iliyamo/taskflow/internal/repository"
	"github.com/iliyamo/taskflow/internal/router"
	"github.com/iliyamo/taskflow/internal/service"
)

func main() {
	cfg := config.Load()
	cacheCfg := config.LoadCacheConfig()
	eventCfg := config.LoadEventConfig()
	rateCfg := config.LoadRateLimitConfig()

	zl := logger.New(cfg.Env, cfg.LogLevel)
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(database.Options{
		User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
	})
	if err != nil {
		zl.Fatal("open database", zap.Error(err))
	}
	defer db.Close()
	migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	if err := database.Migrate(migrateCtx, db); err != nil {
		cancel()
		zl.Fatal("migrate schema", zap.Error(err))
	}
	cancel()

	var rdb *redis.Client
	if (cacheCfg.Enabled && cacheCfg.Backend == "redis") || rateCfg.Enabled {
		if rdb = config.NewRedisClient(); rdb == nil {
			zl.Warn("redis unreachable, cache and rate limiting disabled")
		} else {
			defer rdb.Close()
		}
	}

	m := metrics.New()
	cacheLayer := cache.New(cache.NewStore(cacheCfg, rdb), cacheCfg, zl, m)

	users := repository.NewUserRepo(db)
	projectsRepo := repository.NewProjectRepo(db)
	membersRepo := repository.NewMemberRepo(db)
	tasksRepo := repository.NewTaskRepo(db)
	activityRepo := repository.NewActivityRepo(db)
	otps := repository.NewOTPRepo(db)

	activity := service.NewActivityLogger(activityRepo)
	bus := events.NewBus(eventCfg, zl, m)
	var consumerDone chan struct{}
	var publisher *queue.Publisher
	if eventCfg.Broker == "rabbitmq" {
		publisher = queue.NewPublisher(eventCfg.AMQPURL, eventCfg.Queue, zl)
		bus.Subscribe("amqp", publisher.Publish)
		consumer := queue.NewConsumer(eventCfg.AMQPURL, eventCfg.Queue, activity.Record, zl)
		consumerDone = make(chan struct{})
		go func() {
			defer close(consumerDone)
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				zl.Error("activity consumer stopped", zap.Error(err))
			}
		}()
	} else {
		bus.Subscribe("activity", activity.Record)
	}

	mailer := service.NewLogMailer(zl)
	tokens := service.NewTokenService(service.TokenConfig{
		AccessSecret:  cfg.AccessSecret,
		RefreshSecret: cfg.RefreshSecret,
		AccessTTL:     cfg.AccessTTL,
		RefreshTTL:    cfg.RefreshTTL,
	}, repository.NewTokenRepo(db), zl, m)
	gate := service.NewAuthGate(tokens, users, cfg.RequireVerify, zl)
	projects := service.NewProjectService(projectsRepo, membersRepo, tasksRepo, cacheLayer, bus, zl)
	tasks := service.NewTaskService(tasksRepo, membersRepo, projects, cacheLayer, bus, zl)
	resolver := service.NewMembershipResolver(projects, tasks)
	members := service.NewMemberService(projectsRepo, membersRepo, users, cacheLayer, bus, mailer, service.InviteConfig{
		Secret: cfg.InviteSecret, TTL: cfg.InviteTTL, BaseURL: cfg.BaseURL, BcryptCost: cfg.BcryptCost,
	}, zl)
	userSvc := service.NewUserService(users, membersRepo, tokens, cacheLayer, cfg.BcryptCost, zl)
	authSvc := service.NewAuthService(users, otps, tokens, cacheLayer, mailer, cfg.BcryptCost, cfg.RequireVerify, zl)

	sweeper := service.NewSweeper(projectsRepo, tasksRepo, activityRepo, otps, cfg.RetentionDays, zl)
	if err := sweeper.Start(cfg.SweepSchedule); err != nil {
		zl.Fatal("schedule retention sweep", zap.String("schedule", cfg.SweepSchedule), zap.Error(err))
	}

	var cacheProbe func(context.Context) error
	var scripter redis.Scripter
	if rdb != nil {
		cacheProbe = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		scripter = rdb
	}

	session := middleware.NewSession(gate, tokens, cfg.CookieSecure, zl)
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = handler.ErrorHandler(zl)
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(zl))
	router.Register(e, router.Handlers{
		Auth:     handler.NewAuthHandler(authSvc, session),
		Users:    handler.NewUserHandler(userSvc, session),
		Projects: handler.NewProjectHandler(projects),
		Members:  handler.NewMemberHandler(members),
		Tasks:    handler.NewTaskHandler(tasks),
		Activity: handler.NewActivityHandler(activity),
		Health:   handler.NewHealthHandler(db, cacheProbe),
	}, router.Guards{
		Session:   session,
		Resolver:  resolver,
		RateLimit: middleware.RateLimit(rateCfg, scripter, zl),
	}, m.Handler())

	go func() {
		addr := ":" + cfg.Port
		zl.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env),
			zap.Bool("cache", cacheLayer.Enabled()), zap.String("broker", eventCfg.Broker))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Error("http server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	zl.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		zl.Error("http shutdown", zap.Error(err))
	}
	<-sweeper.Stop().Done()
	if err := bus.Close(shutdownCtx); err != nil {
		zl.Warn("event bus drain incomplete", zap.Error(err))
	}
	if publisher != nil {
		_ = publisher.Close()
	}
	if consumerDone != nil {
		<-consumerDone
	}
	zl.Info("stopped")
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/highway-inspection/internal/config"
	"github.com/iliyamo/highway-inspection/internal/database"
	"github.com/iliyamo/highway-inspection/internal/handler"
	"github.com/iliyamo/highway-inspection/internal/logger"
	"github.com/iliyamo/highway-inspection/internal/middleware"
	"github.com/iliyamo/highway-inspection/internal/queue"
	"github.com/iliyamo/highway-inspection/internal/repository"
	"github.com/iliyamo/highway-inspection/internal/router"
	"github.com/iliyamo/highway-inspection/internal/service"
)

func main() {
	cfg := config.Load()
	lg := logger.New(cfg)
	defer lg.Sync()
	log := lg.Logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	db, err := database.Open(ctx, cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return err
	}
	defer db.Close()
	if cfg.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			return err
		}
	}

	rdb, err := config.NewRedisClient(ctx)
	if err != nil {
		log.Warn("redis unavailable; rate limiting, caching and the sweeper lease are off", zap.Error(err))
		rdb = nil
	} else {
		defer rdb.Close()
	}

	events := queue.NewPublisher(cfg.AMQP.URL, cfg.AMQP.EventsQueue, log.Named("events"))
	defer events.Close()

	store := repository.NewStore(db)
	deps := service.Deps{
		Store:  store,
		Events: events,
		Log:    log,
		Times:  service.NewTimeNormalizer(cfg.LocalOffsetHours),
	}
	airspaces := service.NewAirspaceService(deps)
	flights := service.NewFlightService(deps)
	missions := service.NewMissionService(deps)
	artifacts := service.NewArtifactService(deps)
	ingest := service.NewIngestService(deps)
	reports := service.NewReportService(repository.NewReportRepo(db), nil)

	var lock service.Locker
	if rdb != nil {
		lock = service.NewRedisLock(rdb, cfg.Sweeper.LockKey, cfg.Sweeper.LockTTL)
	}
	sweeper := service.NewSweeper(flights, missions, cfg.Sweeper.Interval, lock, log.Named("sweeper"))

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(log.Named("http")))

	guards := router.NewGuards(cfg.JWTSecret,
		config.LoadRateLimitConfig(), config.LoadIngestRateLimitConfig(), config.LoadCacheConfig(), rdb, log)
	router.RegisterRoutes(e, handler.NewHealthHandler(db, sweeper.Stats))
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, repository.NewUserRepo(db), repository.NewTokenRepo(db), log), guards)
	router.RegisterAirspaces(e, handler.NewAirspaceHandler(airspaces, log), guards)
	router.RegisterFlights(e, handler.NewFlightHandler(flights, log), handler.NewMissionHandler(missions, log), guards)
	router.RegisterArtifacts(e, handler.NewArtifactHandler(artifacts, log), handler.NewIngestHandler(ingest, log), guards)
	router.RegisterDashboard(e, handler.NewDashboardHandler(reports, deps.Times, log), guards)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + cfg.Port
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})
	if cfg.Sweeper.Enabled {
		g.Go(func() error {
			if err := sweeper.Start(gctx); err != nil {
				return err
			}
			<-gctx.Done()
			sweeper.Stop()
			return nil
		})
	}
	if cfg.AMQP.ConsumerEnabled {
		consumer := queue.NewConsumer(cfg.AMQP.URL, cfg.AMQP.AnalysisQueue, ingest, log.Named("analysis"))
		g.Go(func() error { return consumer.Run(gctx) })
	}
	return g.Wait()
}

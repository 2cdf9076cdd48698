package main // Entry point package

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata" // canonical zone must resolve on hosts without zoneinfo

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/venue-booking/internal/booking"
	"github.com/iliyamo/venue-booking/internal/config"
	"github.com/iliyamo/venue-booking/internal/database"
	"github.com/iliyamo/venue-booking/internal/events"
	"github.com/iliyamo/venue-booking/internal/handler"
	"github.com/iliyamo/venue-booking/internal/lock"
	"github.com/iliyamo/venue-booking/internal/middleware"
	"github.com/iliyamo/venue-booking/internal/repository"
	"github.com/iliyamo/venue-booking/internal/router"
	"github.com/iliyamo/venue-booking/internal/service"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	config.LoadDotEnv(log)
	cfg, err := config.Load()
	if err != nil {
		fatal(log, "config", err)
	}
	bcfg, err := config.LoadBookingConfig()
	if err != nil {
		fatal(log, "booking config", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dialect, err := database.ParseDialect(cfg.DBDriver)
	if err != nil {
		fatal(log, "db driver", err)
	}
	db, err := database.Open(ctx, database.Options{
		Dialect:  dialect,
		User:     cfg.DBUser,
		Password: cfg.DBPass,
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		Name:     cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	})
	if err != nil {
		fatal(log, "db connect", err)
	}
	defer db.Close()

	cal, err := booking.LoadCalendar(bcfg.TimeZone, booking.SystemClock)
	if err != nil {
		fatal(log, "booking timezone", err)
	}

	// Redis is optional unless it backs the space lock.
	rdb, err := config.NewRedisClient(ctx, config.LoadRedisConfig())
	if err != nil {
		if bcfg.LockBackend == "redis" {
			fatal(log, "redis required for BOOKING_LOCK_BACKEND=redis", err)
		}
		log.Warn("redis unavailable; cache and rate limit disabled", "err", err)
		rdb = nil
	}
	if rdb != nil {
		defer rdb.Close()
	}

	publisher, closePublisher := newPublisher(config.LoadEventsConfig(), log)
	defer closePublisher()

	engine := booking.NewEngine(
		repository.NewReservationRepo(db, cal.Location()),
		cal,
		booking.Config{
			Policy:          booking.Policy{MinLeadDays: bcfg.MinLeadDays, MaxHorizonDays: bcfg.MaxHorizonDays},
			InitialStatus:   booking.Status(bcfg.InitialStatus),
			MarkPaid:        bcfg.MarkPaid,
			DefaultCurrency: bcfg.Currency,
		},
		booking.WithLocker(newLocker(bcfg, rdb, log)),
		booking.WithPublisher(publisher),
		booking.WithLogger(log.With("component", "booking")),
	)

	reviews := service.NewReviewService(engine, repository.NewReviewRepo(db))

	e := echo.New()
	e.HideBanner = true
	e.Validator = middleware.NewValidator()
	e.Use(echomw.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLog(log.With("component", "http")))

	router.RegisterRoutes(e, handler.Ready(db))
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, repository.NewUserRepo(db), repository.NewTokenRepo(db), log), cfg.JWTSecret)
	reviewHandler := handler.NewReviewHandler(reviews, log)
	spaces := repository.NewSpaceRepo(db)
	cacheCfg := config.LoadCacheConfig()
	router.RegisterPublic(e,
		handler.NewSpaceHandler(spaces, engine, log),
		reviewHandler,
		middleware.NewRedisCache(cacheCfg, rdb, log),
		middleware.NewRedisCache(cacheCfg.Reviews(), rdb, log),
	)
	router.RegisterBookings(e,
		handler.NewBookingHandler(engine, log),
		reviewHandler,
		cfg.JWTSecret,
		middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log),
	)
	router.RegisterHost(e,
		handler.NewHostHandler(spaces, engine, log),
		handler.NewInventoryHandler(repository.NewVenueRepo(db), spaces, log),
		cfg.JWTSecret,
	)

	go func() {
		addr := ":" + cfg.Port
		log.Info("listening", "addr", addr, "env", cfg.Env, "db", string(dialect), "lock", bcfg.LockBackend)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal(log, "http server", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", "err", err)
	}
}

func newLocker(cfg config.BookingConfig, rdb *redis.Client, log *slog.Logger) booking.Locker {
	if cfg.LockBackend == "redis" {
		return lock.NewRedis(rdb, cfg.LockTTL, lock.WithLogger(log.With("component", "lock")))
	}
	return lock.NewLocal()
}

func newPublisher(cfg config.EventsConfig, log *slog.Logger) (booking.EventPublisher, func()) {
	switch cfg.Broker {
	case "rabbitmq":
		return events.NewRabbitPublisher(cfg.RabbitURL, log.With("component", "events")), func() {}
	case "kafka":
		p := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		return p, func() {
			if err := p.Close(); err != nil {
				log.Warn("close kafka writer", "err", err)
			}
		}
	case "both":
		k := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		return events.Multi{events.NewRabbitPublisher(cfg.RabbitURL, log.With("component", "events")), k}, func() { _ = k.Close() }
	default:
		log.Info("event publishing disabled", "broker", cfg.Broker)
		return events.Noop{}, func() {}
	}
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, "err", err)
	os.Exit(1)
}

package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/farmtech/livestock-auth/internal/config"
	"github.com/farmtech/livestock-auth/internal/database"
	"github.com/farmtech/livestock-auth/internal/handler"
	"github.com/farmtech/livestock-auth/internal/middleware"
	"github.com/farmtech/livestock-auth/internal/queue"
	"github.com/farmtech/livestock-auth/internal/repository"
	"github.com/farmtech/livestock-auth/internal/router"
	"github.com/farmtech/livestock-auth/internal/service"
	"github.com/farmtech/livestock-auth/internal/telemetry"
	"github.com/farmtech/livestock-auth/internal/token"
	"github.com/farmtech/livestock-auth/internal/utils"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run wires the process and blocks until the server stops or the
// subcommand finishes. Deferred cleanup always runs before main exits.
func run(args []string) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := build(ctx, cfg, log)
	if err != nil {
		log.Error("startup failed", zap.Error(err))
		return err
	}
	defer app.close()

	if len(args) > 0 && args[0] == "create-admin" {
		if err := createAdmin(ctx, app.sessions, args[1:], os.Stdin, os.Stdout); err != nil {
			log.Error("create-admin failed", zap.Error(err))
			return err
		}
		return nil
	}

	if err := serve(ctx, cfg, log, app); err != nil {
		log.Error("server stopped", zap.Error(err))
		return err
	}
	return nil
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	zc := zap.NewDevelopmentConfig()
	if cfg.IsProduction() {
		zc = zap.NewProductionConfig()
	}
	if cfg.LogLevel != "" {
		lvl, err := zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, err
		}
		zc.Level = zap.NewAtomicLevelAt(lvl)
	}
	return zc.Build()
}

type app struct {
	db       *sql.DB
	rdb      *redis.Client
	sessions *service.SessionManager
	tokens   *token.Service
	metrics  *telemetry.Provider
	stats    *telemetry.Metrics
}

func (a *app) close() {
	if a.rdb != nil {
		a.rdb.Close()
	}
	if a.metrics != nil {
		a.metrics.Shutdown(context.Background())
	}
	a.db.Close()
}

func build(ctx context.Context, cfg config.Config, log *zap.Logger) (*app, error) {
	db, err := database.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	a := &app{db: db}

	// redis backs the durable refresh store and the rate limiter
	if cfg.RevocationBackend == config.BackendRedis || cfg.RateLimit.Enabled {
		a.rdb = config.NewRedisClient(cfg.Redis)
	}
	var store repository.TokenStore
	switch {
	case cfg.RevocationBackend == config.BackendRedis && a.rdb != nil:
		store = repository.NewRedisTokenStore(a.rdb, "auth:refresh")
	case cfg.RevocationBackend == config.BackendRedis:
		a.close()
		return nil, errors.New("redis revocation backend selected but redis is unreachable")
	default:
		log.Warn("using in-memory refresh token store; sessions do not survive restarts")
		store = repository.NewMemoryTokenStore()
	}

	a.metrics, err = telemetry.NewPrometheusProvider()
	if err != nil {
		a.close()
		return nil, err
	}
	a.stats, err = telemetry.NewMetrics(a.metrics.ServiceMeter())
	if err != nil {
		a.close()
		return nil, err
	}

	a.tokens, err = token.NewService([]byte(cfg.JWTSecret), cfg.AccessTTL, cfg.RefreshTTL, store)
	if err != nil {
		a.close()
		return nil, err
	}

	var events service.EventPublisher = queue.Discard{}
	if cfg.AMQPURL != "" {
		events = queue.NewPublisher(cfg.AMQPURL, log.Named("queue"))
	}
	a.sessions = service.NewSessionManager(
		repository.NewUserRepo(db), a.tokens, store,
		utils.NewHasher(cfg.BcryptCost, cfg.HashConcurrency),
		service.WithEvents(events),
		service.WithMetrics(a.stats),
		service.WithLogger(log.Named("session")),
	)
	return a, nil
}

func serve(ctx context.Context, cfg config.Config, log *zap.Logger, a *app) error {
	policy, err := middleware.NewPolicy(middleware.DefaultRules()...)
	if err != nil {
		return err
	}
	readiness := map[string]handler.Pinger{"mysql": a.db}
	var limiter echo.MiddlewareFunc
	if a.rdb != nil {
		rdb := a.rdb
		readiness["redis"] = handler.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
		if cfg.RateLimit.Enabled {
			limiter = middleware.NewTokenBucket(cfg.RateLimit, rdb, log.Named("ratelimit"))
		}
	}

	e := echo.New()
	e.HidePort = true
	router.Register(e, router.Deps{
		Auth:           handler.NewAuthHandler(a.sessions),
		Tokens:         a.tokens,
		Identity:       a.sessions.Directory(),
		Policy:         policy,
		Log:            log.Named("http"),
		Limiter:        limiter,
		Metrics:        a.stats,
		MetricsHandler: a.metrics.Handler(),
		Readiness:      readiness,
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + cfg.Port
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return e.Shutdown(sctx)
	})
	if cfg.AMQPURL != "" {
		consumer := queue.NewAuditConsumer(cfg.AMQPURL, cfg.AuditDir, log.Named("audit"))
		g.Go(func() error { return consumer.Run(ctx) })
	}
	return g.Wait()
}

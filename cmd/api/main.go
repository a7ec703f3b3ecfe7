package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/sync/errgroup"

	"weekly-rewards-api/internal/calendar"
	"weekly-rewards-api/internal/config"
	"weekly-rewards-api/internal/database"
	"weekly-rewards-api/internal/events"
	"weekly-rewards-api/internal/features"
	"weekly-rewards-api/internal/handler"
	"weekly-rewards-api/internal/ledger"
	"weekly-rewards-api/internal/middleware"
	"weekly-rewards-api/internal/service"
	"weekly-rewards-api/internal/tracing"
)

func main() {
	configFile := flag.String("config", "", "Path to a JSON or YAML config file")
	flag.Parse()

	if err := run(*configFile); err != nil {
		fmt.Fprintf(os.Stderr, "weekly-rewards-api: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile string) error {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level, _ := cfg.LogLevel()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracer, err := tracing.InitTracing(ctx, tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		Environment: cfg.Tracing.Environment,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore.Close()

	loc, _ := cfg.Location()
	flags := features.NewDefaultManager()
	flags.Apply(cfg.Features)

	eventManager := events.NewManager(true, logger)
	defer eventManager.Shutdown()
	eventLog := events.LogHandler(logger)
	eventManager.Subscribe(events.EventWeekActivated, eventLog)
	eventManager.Subscribe(events.EventRewardRedeemed, eventLog)
	eventManager.Subscribe(events.EventRedeemRejected, eventLog)

	l := ledger.New(calendar.New(loc), store)
	svc := service.NewService(l, service.Options{
		Events: eventManager,
		Flags:  flags,
		Tracer: tracer,
	})
	h := handler.NewHandler(svc, logger)

	// Setup router
	r := chi.NewRouter()

	// Middleware (order matters)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.TracingMiddleware(tracer))
	r.Use(middleware.RequestLogger(logger, flags))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Origins(),
		AllowedMethods: []string{"GET", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "traceparent", "tracestate"},
		MaxAge:         300,
	}))

	h.Routes(r)

	server := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler: r,
	}

	logger.Info("starting server",
		"addr", server.Addr,
		"store", cfg.Store.Backend,
		"timezone", loc.String(),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// openStore builds the configured ledger backend.
func openStore(ctx context.Context, cfg *config.Config) (ledger.Store, io.Closer, error) {
	switch cfg.Store.Backend {
	case config.BackendSQLite:
		db, err := database.NewDB(cfg.Database.Driver, cfg.Database.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		return db, db, nil
	case config.BackendRedis:
		rs, err := database.NewRedisStore(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.KeyPrefix)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize redis store: %w", err)
		}
		return rs, rs, nil
	default:
		return ledger.NewMemoryStore(), io.NopCloser(nil), nil
	}
}

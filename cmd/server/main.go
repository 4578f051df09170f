package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"gumball/internal/jwttoken"
	"gumball/internal/machine/handler"
	machineMetrics "gumball/internal/machine/metrics"
	"gumball/internal/machine/ports"
	"gumball/internal/machine/service"
	"gumball/internal/machine/store/memory"
	"gumball/internal/machine/store/receipts"
	"gumball/internal/machine/store/redisstore"
	"gumball/internal/platform/config"
	"gumball/internal/platform/httpserver"
	"gumball/internal/platform/logger"
	platformMetrics "gumball/internal/platform/metrics"
	platformRedis "gumball/internal/platform/redis"
	"gumball/internal/providers/minter"
	"gumball/internal/providers/token"
	"gumball/pkg/platform/audit/publisher"
	kafkaAudit "gumball/pkg/platform/audit/publishers/kafka"
	auditMemory "gumball/pkg/platform/audit/store/memory"
)

// main wires the process dependencies and keeps the server lifecycle small.
// Business logic lives in internal/machine.
func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	log := logger.New(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	configs, cleanupStore, err := buildConfigStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanupStore()

	receiptStore, cleanupReceipts, err := buildReceiptStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanupReceipts()

	auditor, cleanupAudit, err := buildAuditPublisher(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanupAudit()

	minterClient := minter.New(cfg.MinterURL, cfg.MinterAPIKey, cfg.ProviderTTL)
	tokenClient := token.New(cfg.TokenURL, cfg.TokenAPIKey, cfg.ProviderTTL)

	svc, err := service.New(configs, minterClient, tokenClient,
		service.WithLogger(log),
		service.WithMetrics(machineMetrics.New()),
		service.WithReceiptStore(receiptStore),
		service.WithAuditPublisher(auditor),
	)
	if err != nil {
		return fmt.Errorf("build machine service: %w", err)
	}

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, "gumball")
	h := handler.New(svc, log, platformMetrics.New(), jwtService,
		handler.WithRequestTTL(cfg.RequestTTL))

	router := chi.NewRouter()
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	router.Handle("/metrics", promhttp.Handler())
	h.Register(router)

	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting gumball server", "addr", cfg.Addr, "store", cfg.StoreBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func buildConfigStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (ports.ConfigStore, func(), error) {
	switch cfg.StoreBackend {
	case "redis":
		client, err := platformRedis.New(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect record store: %w", err)
		}
		log.Info("using redis record store")
		return redisstore.New(client.Client), func() { _ = client.Close() }, nil
	case "memory":
		return memory.New(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func buildReceiptStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (ports.ReceiptStore, func(), error) {
	if cfg.PostgresURL == "" {
		return receipts.NewInMemory(), func() {}, nil
	}
	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect receipt journal: %w", err)
	}
	store, err := receipts.NewPostgres(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("prepare receipt journal: %w", err)
	}
	log.Info("using postgres receipt journal")
	return store, pool.Close, nil
}

func buildAuditPublisher(ctx context.Context, cfg *config.Config, log *slog.Logger) (ports.AuditPublisher, func(), error) {
	if len(cfg.KafkaBrokers) == 0 {
		p := publisher.NewPublisher(auditMemory.NewInMemoryStore(),
			publisher.WithLogger(log),
			publisher.WithAsyncBuffer(256),
		)
		return p, p.Close, nil
	}
	p, err := kafkaAudit.New(ctx, cfg.KafkaBrokers, cfg.AuditTopic, kafkaAudit.WithLogger(log))
	if err != nil {
		return nil, nil, fmt.Errorf("connect audit sink: %w", err)
	}
	log.Info("using kafka audit sink", "topic", cfg.AuditTopic)
	return p, p.Close, nil
}

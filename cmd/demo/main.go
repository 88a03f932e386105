package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"document-gateway/docflow"
	"document-gateway/docflow/domain"
	"document-gateway/docflow/infra"
	"document-gateway/internal/log"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := readConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger, err := log.New(cfg.logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid LOG_LEVEL: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	log.SetLogger(logger)

	transport, err := infra.NewHTTPTransport(cfg.apiURL)
	if err != nil {
		logger.Fatal("invalid API_URL", zap.Error(err))
	}
	var tr domain.Transport = transport
	if cfg.sendRPS > 0 {
		tr = infra.NewPacedTransport(transport, cfg.sendRPS, cfg.sendBurst)
	}

	// progress conta entregas para saber quando a fila esvaziou de fato
	progress := infra.NewMemoryStatsStore(infra.WithTrackDocTypes(true))
	stats := statsFanout{progress}

	opts := []docflow.Option{
		docflow.WithTransport(tr),
		docflow.WithAuthToken(cfg.authToken),
		docflow.WithSendTimeout(cfg.sendTimeout),
		docflow.WithLogger(logger),
	}

	if cfg.redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.redisAddr,
			Password: cfg.redisPassword,
			DB:       cfg.redisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancel()
		if err != nil {
			logger.Fatal("redis ping error", zap.String("addr", cfg.redisAddr), zap.Error(err))
		}

		window, err := infra.NewRedisWindow(rdb, cfg.rateWindow, cfg.rateLimit, infra.WithRedisWindowPrefix(cfg.redisPrefix))
		if err != nil {
			logger.Fatal("redis window", zap.Error(err))
		}
		opts = append(opts, docflow.WithWindow(window))

		if cfg.statsEnabled {
			stats = append(stats, infra.NewRedisStatsStore(rdb,
				infra.WithStatsPrefix(cfg.statsPrefix),
				infra.WithStatsTTL(cfg.statsTTL),
				infra.WithStatsBucket(cfg.statsBucket),
				infra.WithStatsTrackDocTypes(true)))
		}
	} else if cfg.statsEnabled {
		logger.Warn("STATS_ENABLED ignored without REDIS_ADDR")
	}
	opts = append(opts, docflow.WithStats(stats))

	gw, err := docflow.New(cfg.rateWindow, cfg.rateLimit, opts...)
	if err != nil {
		logger.Fatal("gateway config error", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := gw.Start(ctx); err != nil {
		logger.Fatal("gateway start error", zap.Error(err))
	}

	logger.Info("demo started",
		zap.String("api_url", cfg.apiURL),
		zap.Duration("window", cfg.rateWindow),
		zap.Int("limit", cfg.rateLimit),
		zap.Int("documents", cfg.documentCount),
		zap.Float64("send_rps", cfg.sendRPS),
		zap.Bool("redis_window", cfg.redisAddr != ""))

	now := time.Now()
	for i := 0; i < cfg.documentCount; i++ {
		id, err := gw.Submit(sampleDocument(i, now), "signature")
		if err != nil {
			logger.Error("submit failed", zap.Int("n", i), zap.Error(err))
			continue
		}
		logger.Debug("submitted", zap.String("request_id", id))
	}

	waitDrained(ctx, logger, progress, cfg.documentCount, cfg.drainTimeout)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.sendTimeout+time.Second)
	defer cancelShutdown()
	if err := gw.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}

	total := progress.Total()
	logger.Info("demo finished",
		zap.Int64("sent", total.Sent),
		zap.Int64("failed", total.Failed),
		zap.Int64("deferred", total.Deferred),
		zap.Int64("abandoned", total.Abandoned))
}

// waitDrained espera até todos os documentos terem um resultado final
// (enviado ou falho), o timeout vencer ou um sinal chegar.
func waitDrained(ctx context.Context, logger *zap.Logger, progress *infra.MemoryStatsStore, want int, timeout time.Duration) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()

	for {
		t := progress.Total()
		if int(t.Sent+t.Failed) >= want {
			return
		}
		select {
		case <-ctx.Done():
			logger.Info("signal received, shutting down")
			return
		case <-deadline.C:
			logger.Warn("drain timeout reached", zap.Duration("timeout", timeout))
			return
		case <-tick.C:
		}
	}
}

// statsFanout repassa cada evento para todos os stores, mesmo quando algum falha.
type statsFanout []domain.StatsStore

func (f statsFanout) Record(ctx context.Context, ev domain.StatsEvent) error {
	var errs []error
	for _, s := range f {
		if err := s.Record(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

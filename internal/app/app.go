package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	healthcheck "github.com/vladislavdragonenkov/minicrm/internal/health"
	"github.com/vladislavdragonenkov/minicrm/internal/idempotency"
	"github.com/vladislavdragonenkov/minicrm/internal/metrics"
	"github.com/vladislavdragonenkov/minicrm/internal/mockapi"
	"github.com/vladislavdragonenkov/minicrm/internal/tracing"
	"github.com/vladislavdragonenkov/minicrm/internal/version"
)

const (
	serviceName            = "minicrm-api"
	defaultShutdownTimeout = 5 * time.Second
)

// Run поднимает API, сервер метрик и очистку ключей идемпотентности.
// Возвращает ctx.Err() после штатной остановки или первую ошибку компонента.
func Run(ctx context.Context, cfg Config) error {
	return RunWithListeners(ctx, cfg, nil, nil)
}

// RunWithListeners работает как Run, но на заранее открытых сокетах (тесты слушают :0).
// nil listener открывается по адресу из cfg.
func RunWithListeners(ctx context.Context, cfg Config, apiLis, metricsLis net.Listener) error {
	logger := log.WithField("component", "app")
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	shutdownTracing, err := tracing.InitTracerProvider(serviceName, cfg.JaegerEndpoint, logger.WithField("component", "tracing"))
	if err != nil {
		logger.WithError(err).Warn("tracing disabled")
		shutdownTracing = func(context.Context) error { return nil }
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.WithError(err).Warn("tracer shutdown failed")
		}
	}()

	storage, err := initStorage(ctx, cfg, logger.WithField("component", "storage"))
	if err != nil {
		return err
	}
	defer func() {
		if err := storage.Close(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}()

	publisher, closePublisher := initPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
	defer closePublisher()

	server, err := mockapi.New(mockapi.Config{
		JWTSecret: cfg.JWTSecret,
		TokenTTL:  cfg.TokenTTL,
		Delay:     cfg.APIDelay,
	}, mockapi.Deps{
		Orders:    storage.Orders,
		Users:     storage.Users,
		Publisher: publisher,
		Metrics:   metrics.NewHTTPMetrics(),
		Logger:    logger.WithField("component", "mockapi"),
	})
	if err != nil {
		return err
	}
	server.WithKeeper(idempotency.NewKeeper(storage.Idempotency, cfg.IdempotencyTTL))

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	healthHandler.RegisterChecker("storage", storage.Checker)

	if apiLis == nil {
		if apiLis, err = net.Listen("tcp", cfg.APIAddr); err != nil {
			return err
		}
	}
	if metricsLis == nil && cfg.MetricsAddr != "" {
		if metricsLis, err = net.Listen("tcp", cfg.MetricsAddr); err != nil {
			_ = apiLis.Close()
			return err
		}
	}

	apiSrv := &http.Server{Handler: server.Handler(), ReadHeaderTimeout: 5 * time.Second}
	cleanup := idempotency.NewCleanupWorker(storage.Idempotency,
		idempotency.WithLogger(logger.WithField("component", "idempotency-cleanup")),
		idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("addr", apiLis.Addr().String()).Info("API сервер слушает")
		return serve(apiSrv, apiLis)
	})
	g.Go(func() error { return cleanup.Run(gctx) })

	var metricsSrv *http.Server
	if metricsLis != nil {
		metricsSrv = newMetricsServer(healthHandler)
		g.Go(func() error {
			addr := metricsLis.Addr().String()
			logger.Infof("метрики доступны по адресу %s/metrics", addr)
			logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", addr, addr, addr)
			return serve(metricsSrv, metricsLis)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("получен сигнал остановки, останавливаем HTTP серверы")
		shutdownHTTP(apiSrv, cfg.ShutdownTimeout, logger)
		shutdownHTTP(metricsSrv, cfg.ShutdownTimeout, logger)
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// newMetricsServer собирает /metrics и health-пробы.
func newMetricsServer(healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	return &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}

func serve(srv *http.Server, lis net.Listener) error {
	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, timeout time.Duration, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}

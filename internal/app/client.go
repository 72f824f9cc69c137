package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/minicrm/internal/auth"
	"github.com/vladislavdragonenkov/minicrm/internal/domain"
	"github.com/vladislavdragonenkov/minicrm/internal/gateway"
	"github.com/vladislavdragonenkov/minicrm/internal/interceptor"
	"github.com/vladislavdragonenkov/minicrm/internal/metrics"
	"github.com/vladislavdragonenkov/minicrm/internal/navigation"
	"github.com/vladislavdragonenkov/minicrm/internal/storage/file"
	"github.com/vladislavdragonenkov/minicrm/internal/storage/memory"
	"github.com/vladislavdragonenkov/minicrm/internal/storage/redis"
	"github.com/vladislavdragonenkov/minicrm/internal/store"
)

// Client — граф зависимостей консольного клиента: сессия, роутер, шлюз и OrdersStore.
type Client struct {
	Store   *store.OrdersStore
	Auth    *auth.Service
	Session *auth.Session
	Router  *navigation.Router
	Gateway *gateway.Client
	Logger  *log.Entry

	closers []func() error
}

type clientOptions struct {
	logger   *log.Entry
	storage  domain.KeyValueStorage
	doer     interceptor.Doer
	recorder store.Recorder
}

// ClientOption переопределяет зависимости клиента (в основном для тестов).
type ClientOption func(*clientOptions)

// WithClientLogger задаёт логгер клиента.
func WithClientLogger(logger *log.Entry) ClientOption {
	return func(o *clientOptions) { o.logger = logger }
}

// WithSessionStorage подменяет хранилище сессии, драйвер из конфига игнорируется.
func WithSessionStorage(storage domain.KeyValueStorage) ClientOption {
	return func(o *clientOptions) { o.storage = storage }
}

// WithTransport подменяет базовый HTTP-транспорт под цепочкой interceptors.
func WithTransport(doer interceptor.Doer) ClientOption {
	return func(o *clientOptions) { o.doer = doer }
}

// WithStoreRecorder подменяет приёмник метрик store.
func WithStoreRecorder(recorder store.Recorder) ClientOption {
	return func(o *clientOptions) { o.recorder = recorder }
}

// NewClient собирает клиента. Порядок важен: guard читает сессию,
// error-interceptor сбрасывает её и ведёт роутер на вход при 401.
func NewClient(ctx context.Context, cfg ClientConfig, options ...ClientOption) (*Client, error) {
	opts := clientOptions{}
	for _, option := range options {
		option(&opts)
	}
	if opts.logger == nil {
		opts.logger = log.WithField("component", "client")
	}
	logger := opts.logger

	c := &Client{Logger: logger}

	storage := opts.storage
	if storage == nil {
		var err error
		storage, err = c.openSessionStorage(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}

	c.Session = auth.NewSession(ctx, storage, logger.WithField("component", "session"))
	guard := auth.NewGuard(c.Session, logger.WithField("component", "auth-guard"))

	initial := domain.RouteSignIn
	if c.Session.IsAuthenticated() {
		initial = domain.RouteOrders
	}
	c.Router = navigation.New(initial,
		navigation.WithGuard(domain.RouteOrders, guard),
		navigation.WithLogger(logger.WithField("component", "router")),
	)

	base := opts.doer
	if base == nil {
		base = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	doer := interceptor.Chain(base,
		interceptor.RequestID(),
		interceptor.Bearer(c.Session),
		interceptor.Errors(c.Session, c.Router, logger.WithField("component", "error-interceptor")),
	)

	gw, err := gateway.New(cfg.APIURL, doer, logger.WithField("component", "gateway"))
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("create gateway client: %w", err)
	}
	c.Gateway = gw

	c.Auth = auth.NewService(gw, c.Session, c.Router, logger.WithField("component", "auth-service"))

	recorder := opts.recorder
	if recorder == nil {
		recorder = metrics.NewStoreMetrics()
	}
	c.Store = store.New(gw,
		store.WithNavigator(c.Router),
		store.WithLogger(logger.WithField("component", "orders-store")),
		store.WithRecorder(recorder),
	)

	logger.WithFields(log.Fields{
		"api_url": cfg.APIURL,
		"route":   initial,
	}).Debug("client initialized")
	return c, nil
}

func (c *Client) openSessionStorage(ctx context.Context, cfg ClientConfig) (domain.KeyValueStorage, error) {
	switch cfg.SessionDriver {
	case SessionDriverMemory:
		return memory.NewKeyValueStorage(), nil
	case "", SessionDriverFile:
		kv, err := file.NewKeyValueStorage(cfg.SessionFile)
		if err != nil {
			return nil, fmt.Errorf("open session file: %w", err)
		}
		return kv, nil
	case SessionDriverRedis:
		kv, err := redis.Open(ctx, cfg.RedisAddr, cfg.RedisPrefix)
		if err != nil {
			return nil, fmt.Errorf("open redis session storage: %w", err)
		}
		c.closers = append(c.closers, kv.Close)
		return kv, nil
	default:
		return nil, fmt.Errorf("unknown session driver %q", cfg.SessionDriver)
	}
}

// Close ждёт завершения запросов store и закрывает внешние соединения.
func (c *Client) Close() error {
	var errs []error
	if c.Store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		if err := c.Store.Drain(ctx); err != nil {
			errs = append(errs, fmt.Errorf("drain store: %w", err))
		}
		cancel()
	}
	for _, closeFn := range c.closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

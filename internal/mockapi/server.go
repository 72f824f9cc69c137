// Package mockapi — HTTP-сервер Orders Gateway для локальной разработки:
// CRUD заказов под JWT и эндпоинты /login и /register в духе json-server-auth.
package mockapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/vladislavdragonenkov/minicrm/internal/domain"
	"github.com/vladislavdragonenkov/minicrm/internal/idempotency"
	"github.com/vladislavdragonenkov/minicrm/internal/metrics"
)

// Config — параметры mock-сервера.
type Config struct {
	JWTSecret  string
	TokenTTL   time.Duration
	Delay      time.Duration
	BcryptCost int
}

// Deps — хранилища и внешние зависимости сервера.
type Deps struct {
	Orders      domain.OrderRepository
	Users       domain.UserRepository
	Idempotency domain.IdempotencyRepository
	Publisher   domain.EventPublisher
	Metrics     *metrics.HTTPMetrics
	Logger      *log.Entry
}

// Server обслуживает API mini-crm.
type Server struct {
	cfg       Config
	orders    domain.OrderRepository
	users     domain.UserRepository
	keeper    *idempotency.Keeper
	publisher domain.EventPublisher
	metrics   *metrics.HTTPMetrics
	tokens    *TokenIssuer
	logger    *log.Entry
}

// New проверяет конфигурацию и собирает сервер.
func New(cfg Config, deps Deps) (*Server, error) {
	tokens, err := NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return nil, err
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if deps.Logger == nil {
		deps.Logger = log.WithField("component", "mockapi")
	}
	if deps.Publisher == nil {
		deps.Publisher = domain.NoopPublisher{}
	}

	s := &Server{
		cfg:       cfg,
		orders:    deps.Orders,
		users:     deps.Users,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		tokens:    tokens,
		logger:    deps.Logger,
	}
	if deps.Idempotency != nil {
		s.keeper = idempotency.NewKeeper(deps.Idempotency, 0)
	}
	return s, nil
}

// WithKeeper заменяет Keeper (например, с другим TTL ключей).
func (s *Server) WithKeeper(keeper *idempotency.Keeper) *Server {
	s.keeper = keeper
	return s
}

// Tokens возвращает issuer (нужен тестам и утилитам).
func (s *Server) Tokens() *TokenIssuer {
	return s.tokens
}

// Handler собирает chi-роутер.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLog)
	r.Use(middleware.Recoverer)
	r.Use(s.trace)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
	}
	r.Use(s.delay)

	r.Post("/register", s.handleRegister)
	r.Post("/login", s.handleLogin)

	r.Route("/orders", func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/", s.handleListOrders)
		r.With(s.idempotent).Post("/", s.handleCreateOrder)
		r.Get("/{id}", s.handleGetOrder)
		r.Patch("/{id}", s.handlePatchOrder)
		r.Put("/{id}", s.handleReplaceOrder)
		r.Delete("/{id}", s.handleDeleteOrder)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusNotFound, "Not found")
	})

	return r
}

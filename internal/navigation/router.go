package navigation

import (
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/minicrm/internal/domain"
)

const maxHistory = 64

// Guard решает, можно ли открыть маршрут.
type Guard interface {
	CanActivate(path string) (redirect string, ok bool)
}

type guardedPrefix struct {
	prefix string
	guard  Guard
}

// Router хранит текущий маршрут клиента и реализует domain.Navigator.
type Router struct {
	logger *log.Entry

	mu      sync.Mutex
	current string
	history []string
	guards  []guardedPrefix
	changes chan string
}

// Option настраивает Router.
type Option func(*Router)

// WithGuard защищает маршруты с префиксом prefix.
func WithGuard(prefix string, guard Guard) Option {
	return func(r *Router) {
		r.guards = append(r.guards, guardedPrefix{prefix: prefix, guard: guard})
	}
}

// WithLogger задаёт логгер роутера.
func WithLogger(logger *log.Entry) Option {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New создаёт роутер. Начальный маршрут не проходит через guard.
func New(initial string, opts ...Option) *Router {
	r := &Router{
		logger:  log.WithField("component", "router"),
		current: initial,
		changes: make(chan string, 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	if initial != "" {
		r.history = append(r.history, initial)
	}
	return r
}

// Navigate переходит на target. Отклонённый guard'ом переход заменяется его redirect.
func (r *Router) Navigate(target string) {
	target = strings.TrimSpace(target)
	if target == "" {
		return
	}

	resolved, ok := r.resolve(target)
	if !ok {
		r.logger.WithField("target", target).Warn("navigation rejected")
		return
	}
	if resolved != target {
		r.logger.WithFields(log.Fields{
			"target":   target,
			"redirect": resolved,
		}).Info("переход перенаправлен")
	}

	r.mu.Lock()
	r.current = resolved
	r.history = append(r.history, resolved)
	if len(r.history) > maxHistory {
		r.history = append([]string(nil), r.history[len(r.history)-maxHistory:]...)
	}
	select {
	case <-r.changes:
	default:
	}
	r.changes <- resolved
	r.mu.Unlock()
}

// Current возвращает текущий маршрут.
func (r *Router) Current() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// History возвращает копию истории переходов (последние maxHistory).
func (r *Router) History() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.history...)
}

// Changes отдаёт последний маршрут; промежуточные значения медленный читатель пропускает.
func (r *Router) Changes() <-chan string {
	return r.changes
}

// resolve применяет guard к target и, один раз, к его redirect.
func (r *Router) resolve(target string) (string, bool) {
	redirect, ok := r.check(target)
	if ok {
		return target, true
	}
	if redirect == "" || redirect == target {
		return "", false
	}
	if _, ok := r.check(redirect); !ok {
		return "", false
	}
	return redirect, true
}

func (r *Router) check(path string) (string, bool) {
	r.mu.Lock()
	guards := append([]guardedPrefix(nil), r.guards...)
	r.mu.Unlock()

	for _, g := range guards {
		if !matchesPrefix(path, g.prefix) {
			continue
		}
		if redirect, ok := g.guard.CanActivate(path); !ok {
			return redirect, false
		}
	}
	return "", true
}

func matchesPrefix(path, prefix string) bool {
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, strings.TrimSuffix(prefix, "/")+"/")
}

var _ domain.Navigator = (*Router)(nil)

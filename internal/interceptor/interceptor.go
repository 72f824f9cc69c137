package interceptor

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// HeaderRequestID — заголовок корреляции запросов клиента и сервера.
const HeaderRequestID = "X-Request-Id"

// Doer выполняет HTTP-запрос. *http.Client удовлетворяет интерфейсу.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// DoerFunc адаптирует функцию к Doer.
type DoerFunc func(req *http.Request) (*http.Response, error)

// Do вызывает f(req).
func (f DoerFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

// Interceptor оборачивает Doer.
type Interceptor func(next Doer) Doer

// Chain собирает цепочку. Первый interceptor внешний.
func Chain(base Doer, interceptors ...Interceptor) Doer {
	doer := base
	for i := len(interceptors) - 1; i >= 0; i-- {
		doer = interceptors[i](doer)
	}
	return doer
}

// TokenSource отдаёт текущий токен сессии; пустая строка значит, что токена нет.
type TokenSource interface {
	Token() string
}

// TokenFunc адаптирует функцию к TokenSource.
type TokenFunc func() string

// Token вызывает f().
func (f TokenFunc) Token() string { return f() }

// Bearer добавляет Authorization: Bearer <token>, если токен есть.
// Исходный запрос не изменяется.
func Bearer(tokens TokenSource) Interceptor {
	return func(next Doer) Doer {
		return DoerFunc(func(req *http.Request) (*http.Response, error) {
			token := strings.TrimSpace(tokens.Token())
			if token == "" {
				return next.Do(req)
			}
			authed := req.Clone(req.Context())
			authed.Header.Set("Authorization", "Bearer "+token)
			return next.Do(authed)
		})
	}
}

// RequestID проставляет X-Request-Id, если вызывающий его не задал.
func RequestID() Interceptor {
	return func(next Doer) Doer {
		return DoerFunc(func(req *http.Request) (*http.Response, error) {
			if req.Header.Get(HeaderRequestID) != "" {
				return next.Do(req)
			}
			tagged := req.Clone(req.Context())
			tagged.Header.Set(HeaderRequestID, uuid.NewString())
			return next.Do(tagged)
		})
	}
}

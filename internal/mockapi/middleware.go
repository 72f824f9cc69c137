package mockapi

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/minicrm/internal/domain"
	"github.com/vladislavdragonenkov/minicrm/internal/idempotency"
)

// HeaderIdempotencyKey — заголовок, который клиент отправляет с POST /orders.
const HeaderIdempotencyKey = "Idempotency-Key"

const maxBodyBytes = 1 << 20

type userCtxKey struct{}

// UserFromContext возвращает пользователя, прошедшего проверку токена.
func UserFromContext(ctx context.Context) (domain.User, bool) {
	user, ok := ctx.Value(userCtxKey{}).(domain.User)
	return user, ok
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw := strings.TrimPrefix(header, "Bearer ")
		if header == "" || raw == header {
			writeMessage(w, http.StatusUnauthorized, "Missing authorization header")
			return
		}

		user, err := s.tokens.Verify(raw)
		if err != nil {
			s.logger.WithError(err).Debug("invalid token")
			writeMessage(w, http.StatusUnauthorized, "jwt expired or invalid")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userCtxKey{}, user)))
	})
}

const tracerName = "github.com/vladislavdragonenkov/minicrm/internal/mockapi"

// trace продолжает трассу клиента из заголовков traceparent/baggage.
func (s *Server) trace(next http.Handler) http.Handler {
	tracer := otel.Tracer(tracerName)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			span.SetName(r.Method + " " + rctx.RoutePattern())
		}
		span.SetAttributes(
			attribute.String("http.method", r.Method),
			attribute.Int("http.status_code", ww.Status()),
		)
		if ww.Status() >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(ww.Status()))
		}
	})
}

// delay имитирует медленную сеть, чтобы в клиенте было видно состояние загрузки.
func (s *Server) delay(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Delay > 0 {
			timer := time.NewTimer(s.cfg.Delay)
			select {
			case <-r.Context().Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		entry := s.logger.WithFields(log.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"duration":   time.Since(start).String(),
			"request_id": middleware.GetReqID(r.Context()),
		})
		if ww.Status() >= http.StatusInternalServerError {
			entry.Warn("request failed")
			return
		}
		entry.Debug("request served")
	})
}

// idempotent оборачивает POST /orders: повтор с тем же ключом возвращает сохранённый ответ.
// Запрос без ключа выполняется как обычно.
func (s *Server) idempotent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
		if key == "" || s.keeper == nil {
			next.ServeHTTP(w, r)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "could not read request body")
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		hash := idempotency.HashRequest(r.Method, r.URL.Path, body)
		replay, err := s.keeper.Begin(key, hash)
		switch {
		case errors.Is(err, idempotency.ErrRequestInProgress):
			writeMessage(w, http.StatusConflict, "Request with this Idempotency-Key is still in progress")
			return
		case errors.Is(err, domain.ErrIdempotencyHashMismatch):
			writeMessage(w, http.StatusUnprocessableEntity, "Idempotency-Key was already used with a different request body")
			return
		case err != nil:
			s.logger.WithError(err).WithField("idempotency_key", key).Error("idempotency check failed")
			writeMessage(w, http.StatusInternalServerError, "Internal server error")
			return
		case replay != nil:
			w.Header().Set("Idempotent-Replayed", "true")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(replay.Status)
			_, _ = w.Write(replay.Body)
			return
		}

		var captured bytes.Buffer
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		ww.Tee(&captured)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		if err := s.keeper.Complete(key, status, captured.Bytes()); err != nil {
			s.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to store idempotent response")
		}
	})
}

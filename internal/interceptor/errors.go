package interceptor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/minicrm/internal/domain"
)

const maxErrorBody = 64 << 10

// Сообщения, которые видит пользователь.
const (
	MessageSessionExpired = "Session expired. Please sign in again."
	MessageForbidden      = "You do not have the required permissions."
	MessageNotFound       = "The requested resource does not exist."
	MessageInvalidData    = "Invalid data."
	MessageServerError    = "Server error. Please try again later."
	MessageUnreachable    = "Unable to reach the server. Check your connection."
)

// SessionInvalidator сбрасывает сессию после 401.
type SessionInvalidator interface {
	Invalidate()
}

// Translate переводит HTTP-статус и тело ответа в ошибку таксономии.
// status=0 означает, что сервер недоступен.
func Translate(status int, body []byte) *domain.GatewayError {
	switch {
	case status == 0:
		return domain.NewGatewayError(domain.KindNetworkUnreachable, 0, MessageUnreachable)
	case status == http.StatusUnauthorized:
		return domain.NewGatewayError(domain.KindUnauthorized, status, MessageSessionExpired)
	case status == http.StatusForbidden:
		return domain.NewGatewayError(domain.KindForbidden, status, MessageForbidden)
	case status == http.StatusNotFound:
		return domain.NewGatewayError(domain.KindNotFound, status, MessageNotFound)
	case status == http.StatusUnprocessableEntity:
		message := bodyMessage(body)
		if message == "" {
			message = MessageInvalidData
		}
		return domain.NewGatewayError(domain.KindValidationFailed, status, message)
	case status >= http.StatusInternalServerError:
		return domain.NewGatewayError(domain.KindServerError, status, MessageServerError)
	default:
		message := bodyMessage(body)
		if message == "" {
			message = fmt.Sprintf("Error %d", status)
		}
		return domain.NewGatewayError(domain.KindUnknown, status, message)
	}
}

// bodyMessage достаёт сообщение из {"message": "..."} или из JSON-строки.
func bodyMessage(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}

	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(trimmed), &payload); err == nil && payload.Message != "" {
		return payload.Message
	}

	var text string
	if err := json.Unmarshal([]byte(trimmed), &text); err == nil {
		return strings.TrimSpace(text)
	}
	return ""
}

// Errors переводит сбои транспорта и не-2xx ответы в *domain.GatewayError.
// На 401 сбрасывает сессию и отправляет пользователя на страницу входа.
func Errors(sessions SessionInvalidator, nav domain.Navigator, logger *log.Entry) Interceptor {
	if logger == nil {
		logger = log.WithField("component", "error-interceptor")
	}

	return func(next Doer) Doer {
		return DoerFunc(func(req *http.Request) (*http.Response, error) {
			resp, err := next.Do(req)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					logger.WithError(err).WithFields(log.Fields{
						"method": req.Method,
						"path":   req.URL.Path,
					}).Warn("сервер недоступен")
				}
				return nil, domain.WrapGatewayError(domain.KindNetworkUnreachable, 0, MessageUnreachable, err)
			}

			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return resp, nil
			}

			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			_ = resp.Body.Close()

			gwErr := Translate(resp.StatusCode, body)
			logger.WithFields(log.Fields{
				"method": req.Method,
				"path":   req.URL.Path,
				"status": resp.StatusCode,
				"kind":   gwErr.Kind,
			}).Warn(gwErr.Message)

			if resp.StatusCode == http.StatusUnauthorized {
				if sessions != nil {
					sessions.Invalidate()
				}
				if nav != nil {
					nav.Navigate(domain.RouteSignIn)
				}
			}
			return nil, gwErr
		})
	}
}

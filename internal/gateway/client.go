package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/minicrm/internal/domain"
	"github.com/vladislavdragonenkov/minicrm/internal/interceptor"
)

const (
	tracerName = "github.com/vladislavdragonenkov/minicrm/internal/gateway"
	// HeaderIdempotencyKey защищает POST /orders от повторной обработки на сервере.
	HeaderIdempotencyKey = "Idempotency-Key"
	maxResponseBody      = 4 << 20
)

// Client — HTTP-клиент Orders Gateway и эндпоинтов авторизации.
type Client struct {
	baseURL *url.URL
	doer    interceptor.Doer
	tracer  trace.Tracer
	logger  *log.Entry
}

var (
	_ domain.OrdersGateway = (*Client)(nil)
	_ domain.AuthGateway   = (*Client)(nil)
)

// New создаёт клиента. doer обычно это цепочка interceptor.Chain поверх *http.Client.
func New(baseURL string, doer interceptor.Doer, logger *log.Entry) (*Client, error) {
	parsed, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse gateway url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("gateway url must be absolute: %q", baseURL)
	}
	if doer == nil {
		doer = http.DefaultClient
	}
	if logger == nil {
		logger = log.WithField("component", "gateway-client")
	}

	return &Client{
		baseURL: parsed,
		doer:    doer,
		tracer:  otel.Tracer(tracerName),
		logger:  logger,
	}, nil
}

// ListOrders выполняет GET /orders.
func (c *Client) ListOrders(ctx context.Context) ([]domain.Order, error) {
	var orders []domain.Order
	if err := c.call(ctx, "ListOrders", http.MethodGet, "/orders", nil, &orders, nil); err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return orders, nil
}

// GetOrder выполняет GET /orders/:id.
func (c *Client) GetOrder(ctx context.Context, id int64) (domain.Order, error) {
	var order domain.Order
	err := c.call(ctx, "GetOrder", http.MethodGet, orderPath(id), nil, &order, nil)
	return order, err
}

// CreateOrder выполняет POST /orders с Idempotency-Key.
func (c *Client) CreateOrder(ctx context.Context, in domain.CreateOrder) (domain.Order, error) {
	var order domain.Order
	headers := http.Header{}
	headers.Set(HeaderIdempotencyKey, uuid.NewString())
	err := c.call(ctx, "CreateOrder", http.MethodPost, "/orders", in, &order, headers)
	return order, err
}

// UpdateOrder выполняет PATCH /orders/:id со всеми редактируемыми полями.
func (c *Client) UpdateOrder(ctx context.Context, in domain.UpdateOrder) (domain.Order, error) {
	var order domain.Order
	err := c.call(ctx, "UpdateOrder", http.MethodPatch, orderPath(in.ID), in.Patch(), &order, nil)
	return order, err
}

// DeleteOrder выполняет DELETE /orders/:id и ожидает 204 или пустое тело.
func (c *Client) DeleteOrder(ctx context.Context, id int64) error {
	return c.call(ctx, "DeleteOrder", http.MethodDelete, orderPath(id), nil, nil, nil)
}

// SignIn выполняет POST /login.
func (c *Client) SignIn(ctx context.Context, creds domain.Credentials) (domain.AuthResponse, error) {
	var resp domain.AuthResponse
	err := c.call(ctx, "SignIn", http.MethodPost, "/login", creds, &resp, nil)
	return resp, err
}

// SignUp выполняет POST /register.
func (c *Client) SignUp(ctx context.Context, creds domain.Credentials) (domain.AuthResponse, error) {
	var resp domain.AuthResponse
	err := c.call(ctx, "SignUp", http.MethodPost, "/register", creds, &resp, nil)
	return resp, err
}

func orderPath(id int64) string {
	return "/orders/" + strconv.FormatInt(id, 10)
}

func (c *Client) call(ctx context.Context, operation, method, path string, in, out any, headers http.Header) error {
	ctx, span := c.tracer.Start(ctx, "gateway."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
		),
	)
	defer span.End()

	err := c.roundTrip(ctx, method, path, in, out, headers)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, domain.ErrorMessage(err))
		c.logger.WithError(err).WithFields(log.Fields{
			"operation": operation,
			"path":      path,
		}).Debug("gateway call failed")
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, in, out any, headers http.Header) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	target := c.baseURL.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, values := range headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.doer.Do(req)
	if err != nil {
		var gwErr *domain.GatewayError
		if errors.As(err, &gwErr) {
			return err
		}
		translated := interceptor.Translate(0, nil)
		translated.Err = err
		return translated
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		readErr := interceptor.Translate(0, nil)
		readErr.Err = err
		return readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return interceptor.Translate(resp.StatusCode, raw)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

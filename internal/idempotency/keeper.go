// Package idempotency реализует серверную сторону заголовка Idempotency-Key
// для POST /orders и фоновую очистку просроченных ключей.
package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vladislavdragonenkov/minicrm/internal/domain"
)

// DefaultTTL — время жизни ключа, если не задано иное.
const DefaultTTL = 24 * time.Hour

// ErrRequestInProgress — запрос с тем же ключом ещё выполняется.
var ErrRequestInProgress = errors.New("request with this idempotency key is still in progress")

var decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "minicrm_idempotency_decisions_total",
	Help: "Idempotency-Key decisions: execute, replay, in_progress, mismatch.",
}, []string{"decision"})

// Replay — сохранённый ответ для повтора.
type Replay struct {
	Status int
	Body   []byte
}

// Keeper связывает ключ идемпотентности с хешем тела запроса и итоговым ответом.
type Keeper struct {
	repo domain.IdempotencyRepository
	ttl  time.Duration
	now  func() time.Time
}

// NewKeeper создаёт Keeper; ttl<=0 заменяется DefaultTTL.
func NewKeeper(repo domain.IdempotencyRepository, ttl time.Duration) *Keeper {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Keeper{repo: repo, ttl: ttl, now: func() time.Time { return time.Now().UTC() }}
}

// HashRequest считает sha256 от метода, пути и тела.
func HashRequest(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// Begin резервирует ключ. Возвращает Replay для завершённого ключа,
// ErrRequestInProgress для выполняющегося и domain.ErrIdempotencyHashMismatch для другого тела.
// (nil, nil) означает, что запрос нужно выполнить и затем вызвать Complete.
func (k *Keeper) Begin(key, requestHash string) (*Replay, error) {
	_, err := k.repo.CreateProcessing(key, requestHash, k.now().Add(k.ttl))
	if err == nil {
		decisionsTotal.WithLabelValues("execute").Inc()
		return nil, nil
	}

	switch {
	case errors.Is(err, domain.ErrIdempotencyHashMismatch):
		decisionsTotal.WithLabelValues("mismatch").Inc()
		return nil, err
	case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists):
		record, getErr := k.repo.Get(key)
		if getErr != nil {
			return nil, fmt.Errorf("load idempotency record: %w", getErr)
		}
		if !record.Replayable() {
			decisionsTotal.WithLabelValues("in_progress").Inc()
			return nil, ErrRequestInProgress
		}
		decisionsTotal.WithLabelValues("replay").Inc()
		return &Replay{Status: record.HTTPStatus, Body: append([]byte(nil), record.ResponseBody...)}, nil
	default:
		return nil, err
	}
}

// Complete сохраняет ответ. 5xx освобождает ключ, чтобы клиент мог повторить запрос.
func (k *Keeper) Complete(key string, status int, body []byte) error {
	switch {
	case status >= http.StatusInternalServerError:
		return k.repo.Release(key)
	case status >= http.StatusBadRequest:
		return k.repo.MarkFailed(key, body, status)
	default:
		return k.repo.MarkDone(key, body, status)
	}
}

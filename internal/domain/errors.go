package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Ошибка пустого имени клиента.
	ErrCustomerRequired = errors.New("customer is required")
	// Ошибка некорректного количества дней (<= 0).
	ErrNbDaysInvalid = errors.New("nbDays must be greater than zero")
	// Ошибка некорректной дневной ставки (<= 0).
	ErrTjmInvalid = errors.New("tjm must be greater than zero")
	// Ошибка ставки НДС вне диапазона 0..100.
	ErrTauxTvaInvalid = errors.New("tauxTva must be between 0 and 100")
	// ErrTotalsOverflow — итоги заказа не помещаются в float64.
	ErrTotalsOverflow = errors.New("order totals are out of range")
	// ErrInvalidOrderID — идентификатор заказа не положительный.
	ErrInvalidOrderID = errors.New("order id must be a positive integer")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")

	// ErrUserNotFound возвращается, если пользователь с таким email не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailAlreadyExists — пользователь с таким email уже зарегистрирован.
	ErrEmailAlreadyExists = errors.New("email already exists")
	// ErrEmailInvalid — email не похож на адрес.
	ErrEmailInvalid = errors.New("email format is invalid")
	// ErrPasswordTooShort — пароль короче минимальной длины.
	ErrPasswordTooShort = errors.New("password is too short")
	// ErrInvalidCredentials — неверная пара email/пароль.
	ErrInvalidCredentials = errors.New("incorrect email or password")

	// ErrKeyNotFound возвращает key-value хранилище для отсутствующего ключа.
	ErrKeyNotFound = errors.New("storage key not found")

	// ErrIdempotencyKeyRequired — пустой ключ идемпотентности.
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	// ErrIdempotencyRequestHashRequired — пустой hash запроса.
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	// ErrIdempotencyKeyAlreadyExists — ключ уже зарегистрирован с тем же запросом.
	ErrIdempotencyKeyAlreadyExists = errors.New("idempotency key already exists")
	// ErrIdempotencyHashMismatch — ключ повторно использован с другим телом запроса.
	ErrIdempotencyHashMismatch = errors.New("idempotency key reused with different request")
	// ErrIdempotencyKeyNotFound — ключ не найден.
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")
)

// Таксономия ошибок, которые видит клиент после трансляции HTTP-ответа.
var (
	ErrNotFound           = errors.New("not found")
	ErrValidationFailed   = errors.New("validation failed")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrServerError        = errors.New("server error")
	ErrNetworkUnreachable = errors.New("network unreachable")
	ErrUnknown            = errors.New("unknown error")
)

// ErrorKind — категория ошибки шлюза.
type ErrorKind string

const (
	KindNotFound           ErrorKind = "not_found"
	KindValidationFailed   ErrorKind = "validation_failed"
	KindUnauthorized       ErrorKind = "unauthorized"
	KindForbidden          ErrorKind = "forbidden"
	KindServerError        ErrorKind = "server_error"
	KindNetworkUnreachable ErrorKind = "network_unreachable"
	KindUnknown            ErrorKind = "unknown"
)

var kindSentinels = map[ErrorKind]error{
	KindNotFound:           ErrNotFound,
	KindValidationFailed:   ErrValidationFailed,
	KindUnauthorized:       ErrUnauthorized,
	KindForbidden:          ErrForbidden,
	KindServerError:        ErrServerError,
	KindNetworkUnreachable: ErrNetworkUnreachable,
	KindUnknown:            ErrUnknown,
}

// GatewayError — ошибка удалённого вызова, уже переведённая в человекочитаемое сообщение.
// Status равен 0, если сервер недоступен.
type GatewayError struct {
	Kind    ErrorKind
	Status  int
	Message string
	Err     error
}

func (e *GatewayError) Error() string {
	return e.Message
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Is сопоставляет ошибку с sentinel-ошибками таксономии.
func (e *GatewayError) Is(target error) bool {
	sentinel, ok := kindSentinels[e.Kind]
	return ok && target == sentinel
}

// ValidationError собирает все нарушенные инварианты входных данных.
type ValidationError struct {
	Errs []error
}

func newValidationError(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return &ValidationError{Errs: errs}
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errs))
	for _, err := range e.Errs {
		parts = append(parts, err.Error())
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() []error {
	return e.Errs
}

// Is позволяет проверять ValidationError через errors.Is(err, ErrValidationFailed).
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

// KindOf возвращает категорию ошибки для логов и метрик.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Kind
	}
	for kind, sentinel := range kindSentinels {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindUnknown
}

// ErrorMessage возвращает единственное сообщение, которое хранится в состоянии.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var gwErr *GatewayError
	if errors.As(err, &gwErr) && gwErr.Message != "" {
		return gwErr.Message
	}
	return err.Error()
}

// IsIdempotencyConflict проверяет, что ключ уже использован.
func IsIdempotencyConflict(err error) bool {
	return errors.Is(err, ErrIdempotencyKeyAlreadyExists) || errors.Is(err, ErrIdempotencyHashMismatch)
}

// NewGatewayError собирает ошибку шлюза.
func NewGatewayError(kind ErrorKind, status int, message string) *GatewayError {
	return &GatewayError{Kind: kind, Status: status, Message: message}
}

// WrapGatewayError собирает ошибку шлюза с причиной.
func WrapGatewayError(kind ErrorKind, status int, message string, cause error) *GatewayError {
	if message == "" && cause != nil {
		message = fmt.Sprintf("request failed: %v", cause)
	}
	return &GatewayError{Kind: kind, Status: status, Message: message, Err: cause}
}

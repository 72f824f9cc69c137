package auth

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/minicrm/internal/domain"
)

// Authenticator сообщает, есть ли активная сессия.
type Authenticator interface {
	IsAuthenticated() bool
}

// Guard защищает маршруты, требующие входа.
type Guard struct {
	auth   Authenticator
	logger *log.Entry
}

// NewGuard создаёт guard поверх сессии.
func NewGuard(auth Authenticator, logger *log.Entry) *Guard {
	if logger == nil {
		logger = log.WithField("component", "auth-guard")
	}
	return &Guard{auth: auth, logger: logger}
}

// CanActivate пропускает авторизованного пользователя; иначе возвращает redirect на вход.
func (g *Guard) CanActivate(path string) (redirect string, ok bool) {
	if g.auth.IsAuthenticated() {
		return "", true
	}
	g.logger.WithField("path", path).Warn("доступ запрещён, требуется вход")
	return domain.RouteSignIn, false
}

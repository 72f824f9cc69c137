package auth

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/minicrm/internal/domain"
)

// Service — вход, регистрация и выход пользователя.
type Service struct {
	gateway domain.AuthGateway
	session *Session
	nav     domain.Navigator
	logger  *log.Entry
}

// NewService создаёт сервис авторизации.
func NewService(gateway domain.AuthGateway, session *Session, nav domain.Navigator, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "auth-service")
	}
	if nav == nil {
		nav = domain.NavigatorFunc(func(string) {})
	}
	return &Service{gateway: gateway, session: session, nav: nav, logger: logger}
}

// SignIn входит по email/паролю и открывает список заказов.
func (s *Service) SignIn(ctx context.Context, creds domain.Credentials) (domain.User, error) {
	return s.authenticate(ctx, creds, s.gateway.SignIn, "sign-in")
}

// SignUp регистрирует пользователя и сразу открывает список заказов.
func (s *Service) SignUp(ctx context.Context, creds domain.Credentials) (domain.User, error) {
	return s.authenticate(ctx, creds, s.gateway.SignUp, "sign-up")
}

// Logout сбрасывает сессию и возвращает на страницу входа.
func (s *Service) Logout() {
	s.session.Invalidate()
	s.logger.Info("пользователь вышел")
	s.nav.Navigate(domain.RouteSignIn)
}

// Session возвращает сессию сервиса.
func (s *Service) Session() *Session {
	return s.session
}

func (s *Service) authenticate(
	ctx context.Context,
	creds domain.Credentials,
	call func(context.Context, domain.Credentials) (domain.AuthResponse, error),
	action string,
) (domain.User, error) {
	creds = creds.Normalize()
	if err := creds.Validate(); err != nil {
		return domain.User{}, err
	}

	resp, err := call(ctx, creds)
	if err != nil {
		s.logger.WithError(err).WithField("action", action).Warn("авторизация не удалась")
		return domain.User{}, err
	}
	if resp.AccessToken == "" {
		return domain.User{}, fmt.Errorf("%s: empty access token in response", action)
	}
	if err := s.session.Start(ctx, resp); err != nil {
		return domain.User{}, err
	}

	s.logger.WithFields(log.Fields{
		"action": action,
		"email":  resp.User.Email,
	}).Info("пользователь авторизован")
	s.nav.Navigate(domain.RouteOrders)
	return resp.User, nil
}

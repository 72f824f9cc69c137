package mockapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/vladislavdragonenkov/minicrm/internal/domain"
)

// Сообщения совпадают с json-server-auth, на них рассчитан клиент.
const (
	msgCredentialsRequired = "Email and password are required"
	msgEmailInvalid        = "Email format is invalid"
	msgPasswordTooShort    = "Password is too short"
	msgEmailExists         = "Email already exists"
	msgIncorrectLogin      = "Incorrect email or password"
	msgInternal            = "Internal server error"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	creds, ok := s.decodeCredentials(w, r)
	if !ok {
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), s.cfg.BcryptCost)
	if err != nil {
		s.logger.WithError(err).Error("password hashing failed")
		writeMessage(w, http.StatusInternalServerError, msgInternal)
		return
	}

	stored, err := s.users.Create(domain.StoredUser{
		User:         domain.User{Email: creds.Email},
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	})
	if errors.Is(err, domain.ErrEmailAlreadyExists) {
		writeMessage(w, http.StatusBadRequest, msgEmailExists)
		return
	}
	if err != nil {
		s.logger.WithError(err).Error("failed to create user")
		writeMessage(w, http.StatusInternalServerError, msgInternal)
		return
	}

	s.logger.WithField("email", stored.Email).Info("пользователь зарегистрирован")
	s.respondWithToken(w, http.StatusCreated, stored.User)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	creds, ok := s.decodeCredentials(w, r)
	if !ok {
		return
	}

	stored, err := s.users.GetByEmail(creds.Email)
	if errors.Is(err, domain.ErrUserNotFound) {
		writeMessage(w, http.StatusBadRequest, msgIncorrectLogin)
		return
	}
	if err != nil {
		s.logger.WithError(err).Error("failed to load user")
		writeMessage(w, http.StatusInternalServerError, msgInternal)
		return
	}
	if err := bcrypt.CompareHashAndPassword(stored.PasswordHash, []byte(creds.Password)); err != nil {
		s.logger.WithField("email", creds.Email).Debug("invalid password")
		writeMessage(w, http.StatusBadRequest, msgIncorrectLogin)
		return
	}

	s.respondWithToken(w, http.StatusOK, stored.User)
}

func (s *Server) decodeCredentials(w http.ResponseWriter, r *http.Request) (domain.Credentials, bool) {
	var creds domain.Credentials
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&creds); err != nil {
		writeMessage(w, http.StatusBadRequest, msgCredentialsRequired)
		return domain.Credentials{}, false
	}
	creds = creds.Normalize()
	if creds.Email == "" || creds.Password == "" {
		writeMessage(w, http.StatusBadRequest, msgCredentialsRequired)
		return domain.Credentials{}, false
	}

	if err := creds.Validate(); err != nil {
		switch {
		case errors.Is(err, domain.ErrEmailInvalid):
			writeMessage(w, http.StatusBadRequest, msgEmailInvalid)
		default:
			writeMessage(w, http.StatusBadRequest, msgPasswordTooShort)
		}
		return domain.Credentials{}, false
	}
	return creds, true
}

func (s *Server) respondWithToken(w http.ResponseWriter, status int, user domain.User) {
	token, err := s.tokens.Issue(user)
	if err != nil {
		s.logger.WithError(err).WithFields(log.Fields{"user_id": user.ID}).Error("failed to issue token")
		writeMessage(w, http.StatusInternalServerError, msgInternal)
		return
	}
	writeJSON(w, status, domain.AuthResponse{AccessToken: token, User: user})
}

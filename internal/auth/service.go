package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/worksla/worksla-web/internal/apiclient"
)

// Backend is the part of the API client used for signing in and out.
type Backend interface {
	Login(ctx context.Context, creds *apiclient.Credentials, username, password string) (apiclient.User, error)
	Logout(ctx context.Context, creds *apiclient.Credentials) error
}

// Service wraps sign-in against the backend.
type Service struct {
	backend Backend
	logger  *slog.Logger
}

// NewService constructs a new Service.
func NewService(backend Backend, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{backend: backend, logger: logger}
}

// Authenticate signs in and returns the backend user with fresh credentials.
// Rejections from the backend become ErrInvalidCredentials; transport
// failures are returned as is.
func (s *Service) Authenticate(ctx context.Context, username, password string) (apiclient.User, *apiclient.Credentials, error) {
	creds := apiclient.NewCredentials("")
	user, err := s.backend.Login(ctx, creds, strings.TrimSpace(username), password)
	if err != nil {
		switch apiclient.StatusOf(err) {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusBadRequest, http.StatusUnprocessableEntity:
			return apiclient.User{}, nil, errors.Join(ErrInvalidCredentials, err)
		}
		return apiclient.User{}, nil, err
	}
	if !creds.Valid() {
		s.logger.Warn("login issued no cookies", slog.String("username", user.Username))
		return apiclient.User{}, nil, errors.New("auth: backend issued no credentials")
	}
	return user, creds, nil
}

// SignOut tells the backend to drop creds. Local state is cleared even when
// the backend is unreachable.
func (s *Service) SignOut(ctx context.Context, creds *apiclient.Credentials) {
	if creds == nil || !creds.Valid() {
		return
	}
	if err := s.backend.Logout(ctx, creds); err != nil {
		s.logger.Warn("backend logout", slog.Any("error", err))
	}
}

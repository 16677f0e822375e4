package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"student-records/internal/config"
	"student-records/internal/metrics"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type Service struct {
	repo    *Repository
	tokens  *TokenManager
	cookie  CookieConfig
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewService(repo *Repository, cfg config.AuthConfig, logger *slog.Logger, m *metrics.Metrics) *Service {
	ttl := time.Duration(cfg.SessionTTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = 14 * 24 * time.Hour
	}

	return &Service{
		repo:    repo,
		tokens:  NewTokenManager(cfg.SessionSecret, ttl),
		cookie:  newCookieConfig(cfg, ttl),
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// CreateUser hashes password and stores a new active account.
func (s *Service) CreateUser(ctx context.Context, username, email, password string) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, errors.New("username and password are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &User{
		Username:     username,
		Email:        strings.TrimSpace(email),
		PasswordHash: string(hash),
		IsActive:     true,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login checks the credentials, opens a session row and returns the
// signed token for the session cookie.
func (s *Service) Login(ctx context.Context, username, password string) (string, *User, error) {
	user, err := s.checkPassword(ctx, username, password)
	s.metrics.RecordLogin(ctx, err == nil)
	if err != nil {
		return "", nil, err
	}

	now := s.now()
	session := &Session{
		ID:        uuid.New(),
		UserID:    user.ID,
		ExpiresAt: now.Add(s.tokens.TTL()),
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return "", nil, fmt.Errorf("failed to create session: %w", err)
	}

	token, err := s.tokens.Issue(user, session.ID, now)
	if err != nil {
		return "", nil, err
	}

	if err := s.repo.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.logger.WarnContext(ctx, "failed to record last login", "user_id", user.ID, "error", err)
	}
	if removed, err := s.repo.DeleteExpiredSessions(ctx, now); err != nil {
		s.logger.WarnContext(ctx, "failed to prune expired sessions", "error", err)
	} else if removed > 0 {
		s.logger.InfoContext(ctx, "pruned expired sessions", "count", removed)
	}

	return token, user, nil
}

// Authenticate resolves a session token to its user. The token must
// verify and its session row must still exist.
func (s *Service) Authenticate(ctx context.Context, token string) (*User, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}

	sessionID, err := claims.SessionID()
	if err != nil {
		return nil, ErrInvalidToken
	}

	session, err := s.repo.GetSession(ctx, sessionID, s.now())
	if err != nil {
		return nil, err
	}
	if session.UserID != claims.UserID {
		return nil, ErrInvalidToken
	}

	user, err := s.repo.GetUserByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrSessionExpired
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrSessionExpired
	}
	return user, nil
}

// AuthenticateBasic checks credentials without opening a session.
func (s *Service) AuthenticateBasic(ctx context.Context, username, password string) (*User, error) {
	return s.checkPassword(ctx, username, password)
}

// Logout deletes the session named by token. An unusable token is not an
// error; there is nothing left to revoke.
func (s *Service) Logout(ctx context.Context, token string) error {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil
	}
	sessionID, err := claims.SessionID()
	if err != nil {
		return nil
	}
	return s.repo.DeleteSession(ctx, sessionID)
}

func (s *Service) checkPassword(ctx context.Context, username, password string) (*User, error) {
	user, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

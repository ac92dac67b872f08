package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/yoockh/scribe/internal/auth"
	"github.com/yoockh/scribe/internal/models"
	"github.com/yoockh/scribe/internal/utils"
)

// SessionRepository is satisfied by the kv (memory, redis) and mongo stores.
type SessionRepository interface {
	Create(ctx context.Context, s *models.Session) error
	Get(ctx context.Context, sessionID string) (*models.Session, error)
	Delete(ctx context.Context, sessionID string) error
}

type SessionService interface {
	// Start records a session for u and returns its signed token.
	Start(ctx context.Context, u *models.User) (string, *models.Session, error)
	// Resolve verifies a token and that its session was not ended.
	Resolve(ctx context.Context, token string) (*models.Session, error)
	End(ctx context.Context, sessionID string) error
	TTL() time.Duration
}

type sessionService struct {
	sessions SessionRepository
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
}

func NewSessionService(sessions SessionRepository, secret []byte, ttl time.Duration) SessionService {
	return &sessionService{sessions: sessions, secret: secret, ttl: ttl, now: time.Now}
}

func (s *sessionService) TTL() time.Duration { return s.ttl }

func (s *sessionService) Start(ctx context.Context, u *models.User) (string, *models.Session, error) {
	const op = "SessionService.Start"

	if u == nil || u.ID == 0 {
		return "", nil, utils.E(utils.CodeInvalidArgument, op, "user is required", nil)
	}

	now := s.now().UTC()
	session := &models.Session{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		Username:  u.Username,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return "", nil, utils.E(utils.CodeInternal, op, "failed to create session", err)
	}

	token, err := auth.GenerateToken(u.ID, u.Username, session.ID, s.secret, session.ExpiresAt)
	if err != nil {
		_ = s.sessions.Delete(ctx, session.ID)
		return "", nil, utils.E(utils.CodeInternal, op, "failed to sign session token", err)
	}
	return token, session, nil
}

func (s *sessionService) Resolve(ctx context.Context, token string) (*models.Session, error) {
	const op = "SessionService.Resolve"

	if token == "" {
		return nil, utils.E(utils.CodeUnauthorized, op, "login required", nil)
	}
	claims, err := auth.ParseToken(token, s.secret)
	if err != nil {
		return nil, utils.E(utils.CodeUnauthorized, op, "invalid or expired session", err)
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, utils.E(utils.CodeUnauthorized, op, "invalid or expired session", err)
	}

	session, err := s.sessions.Get(ctx, claims.ID)
	if errors.Is(err, utils.ErrNotFound) {
		return nil, utils.E(utils.CodeUnauthorized, op, "invalid or expired session", err)
	}
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to load session", err)
	}
	if session.UserID != userID || session.Expired(s.now()) {
		return nil, utils.E(utils.CodeUnauthorized, op, "invalid or expired session", nil)
	}
	return session, nil
}

func (s *sessionService) End(ctx context.Context, sessionID string) error {
	const op = "SessionService.End"

	if sessionID == "" {
		return utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to end session", err)
	}
	return nil
}

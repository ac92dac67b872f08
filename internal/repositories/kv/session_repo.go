// Package kv keeps sessions in a cache.Cache, so the same code serves the
// in-process store and Redis.
package kv

import (
	"context"
	"errors"
	"time"

	"github.com/yoockh/scribe/internal/cache"
	"github.com/yoockh/scribe/internal/models"
	"github.com/yoockh/scribe/internal/utils"
)

const keyPrefix = "session:"

type SessionRepository interface {
	Create(ctx context.Context, s *models.Session) error
	Get(ctx context.Context, sessionID string) (*models.Session, error)
	Delete(ctx context.Context, sessionID string) error
}

type sessionRepo struct {
	c   cache.Cache
	now func() time.Time
}

func NewSessionRepo(c cache.Cache) SessionRepository {
	return &sessionRepo{c: c, now: time.Now}
}

func (r *sessionRepo) Create(ctx context.Context, s *models.Session) error {
	now := r.now()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now.UTC()
	}
	ttl := s.ExpiresAt.Sub(now)
	if s.ExpiresAt.IsZero() {
		ttl = 0
	} else if ttl <= 0 {
		return errors.New("session already expired")
	}
	return r.c.SetJSON(ctx, keyPrefix+s.ID, s, ttl)
}

func (r *sessionRepo) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	var s models.Session
	hit, err := r.c.GetJSON(ctx, keyPrefix+sessionID, &s)
	if err != nil {
		return nil, err
	}
	if !hit || s.Expired(r.now()) {
		return nil, utils.ErrNotFound
	}
	return &s, nil
}

func (r *sessionRepo) Delete(ctx context.Context, sessionID string) error {
	return r.c.Del(ctx, keyPrefix+sessionID)
}

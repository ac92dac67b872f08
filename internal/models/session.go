package models

import "time"

// Session is a server-side login record. Its ID travels as the token's jti,
// so deleting the record revokes the token.
type Session struct {
	ID        string    `bson:"session_id" json:"session_id"` // uuid v4
	UserID    uint      `bson:"user_id" json:"user_id"`
	Username  string    `bson:"username" json:"username"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"` // for TTL index
}

func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

package sessions

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dentaldesk/clinic/internal/model"
)

// ErrNotFound means the token does not resolve to a live session (never
// issued, expired, or logged out).
var ErrNotFound = errors.New("session not found")

// Session is the server-side state behind a session cookie. The browser only
// ever holds the opaque token.
type Session struct {
	UserID    int64      `json:"user_id"`
	Role      model.Role `json:"role"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	LoginTime time.Time  `json:"login_time"`
}

// Store keeps sessions in Redis under an opaque random token. The TTL is
// fixed at create time; reads do not extend it.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{rdb: rdb, ttl: ttl}
}

func sessionKey(token string) string { return "sess:" + token }

// Create issues a fresh token and stores the session under it.
func (s *Store) Create(ctx context.Context, sess Session) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(sess)
	if err != nil {
		return "", err
	}
	if err := s.rdb.Set(ctx, sessionKey(token), raw, s.ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

func (s *Store) Get(ctx context.Context, token string) (Session, error) {
	raw, err := s.rdb.Get(ctx, sessionKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, ErrNotFound
		}
		return Session{}, err
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

func (s *Store) Delete(ctx context.Context, token string) error {
	return s.rdb.Del(ctx, sessionKey(token)).Err()
}

// TTL returns the cookie lifetime matching the Redis expiry.
func (s *Store) TTL() time.Duration { return s.ttl }

func (s *Store) ReadyCheck(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

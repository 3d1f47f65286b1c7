// Package session maps opaque bearer tokens to authenticated user ids.
//
// A token is an HS256 JWT carrying the user id and a random session id. The
// signature alone is not enough: the session id must also be present in
// Redis, so logging out revokes a token before it expires.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Domenick1991/busbooking/internal/domain"
)

type redisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type Store struct {
	client redisClient
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewStore(client redisClient, secret string, ttl time.Duration) *Store {
	return &Store{client: client, secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Create starts a session for userID and returns its token and expiry.
func (s *Store) Create(ctx context.Context, userID int64) (string, time.Time, error) {
	if userID <= 0 {
		return "", time.Time{}, domain.ErrUnauthenticated
	}

	now := s.now()
	expires := now.Add(s.ttl)
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign session token: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(claims.ID), claims.Subject, s.ttl).Err(); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to store session: %w: %w", domain.ErrStorage, err)
	}
	return token, expires, nil
}

// Resolve returns the user id behind token, or ErrUnauthenticated.
func (s *Store) Resolve(ctx context.Context, token string) (int64, error) {
	if token == "" {
		return 0, domain.ErrUnauthenticated
	}
	claims, err := s.parse(token, jwt.WithTimeFunc(s.now))
	if err != nil {
		return 0, err
	}

	stored, err := s.client.Get(ctx, sessionKey(claims.ID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("%w: session revoked", domain.ErrUnauthenticated)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load session: %w: %w", domain.ErrStorage, err)
	}
	if stored != claims.Subject {
		return 0, fmt.Errorf("%w: session subject mismatch", domain.ErrUnauthenticated)
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return 0, fmt.Errorf("%w: bad subject", domain.ErrUnauthenticated)
	}
	return userID, nil
}

// Revoke ends the session. Unknown or malformed tokens are ignored.
func (s *Store) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	claims, err := s.parse(token, jwt.WithoutClaimsValidation())
	if err != nil {
		return nil
	}
	if err := s.client.Del(ctx, sessionKey(claims.ID)).Err(); err != nil {
		return fmt.Errorf("failed to revoke session: %w: %w", domain.ErrStorage, err)
	}
	return nil
}

func (s *Store) parse(token string, opts ...jwt.ParserOption) (*jwt.RegisteredClaims, error) {
	opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid || claims.ID == "" {
		return nil, fmt.Errorf("%w: invalid session token", domain.ErrUnauthenticated)
	}
	return claims, nil
}

func sessionKey(id string) string {
	return "session:" + id
}

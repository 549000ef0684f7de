package goBankID

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goBankID/internal"
	"github.com/MrEthical07/goBankID/jwt"
	"github.com/MrEthical07/goBankID/session"
	"github.com/redis/go-redis/v9"
)

// RedisSessionIssuer is the default SessionIssuer. Sessions live in Redis and
// callers receive a signed token naming the session id. It also implements
// SessionValidator.
type RedisSessionIssuer struct {
	store *session.Store
	jwt   *jwt.Manager
	ttl   time.Duration
}

// NewSessionIssuer builds the default issuer from the session and JWT
// configuration.
func NewSessionIssuer(client redis.UniversalClient, sessionCfg SessionConfig, jwtCfg JWTConfig) (*RedisSessionIssuer, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	if sessionCfg.TTL <= 0 {
		return nil, errors.New("Session TTL must be > 0")
	}

	jm, err := jwt.NewManager(jwt.Config{
		SigningMethod: jwt.SigningMethod(jwtCfg.SigningMethod),
		PrivateKey:    cloneBytes(jwtCfg.PrivateKey),
		PublicKey:     cloneBytes(jwtCfg.PublicKey),
		Issuer:        jwtCfg.Issuer,
	})
	if err != nil {
		return nil, err
	}

	return &RedisSessionIssuer{
		store: session.NewStore(client, sessionCfg.RedisPrefix),
		jwt:   jm,
		ttl:   sessionCfg.TTL,
	}, nil
}

// Issue implements SessionIssuer.
func (i *RedisSessionIssuer) Issue(ctx context.Context, userID string, meta SessionMetadata) (*IssuedSession, error) {
	if userID == "" {
		return nil, errors.New("user id required")
	}

	sid, err := internal.NewSessionID()
	if err != nil {
		return nil, err
	}
	sessionID := sid.String()

	now := time.Now()
	expiresAt := now.Add(i.ttl)

	sess := &session.Session{
		SessionID:     sessionID,
		UserID:        userID,
		OrderRef:      meta.OrderRef,
		IPHash:        sha256.Sum256([]byte(meta.ClientIP)),
		UserAgentHash: sha256.Sum256([]byte(meta.UserAgent)),
		CreatedAt:     now.Unix(),
		ExpiresAt:     expiresAt.Unix(),
	}
	if err := i.store.Save(ctx, sess, i.ttl); err != nil {
		return nil, err
	}

	token, err := i.jwt.CreateSession(userID, sessionID, expiresAt)
	if err != nil {
		_ = i.store.Delete(ctx, sessionID)
		return nil, err
	}

	return &IssuedSession{
		SessionID: sessionID,
		Token:     token,
		ExpiresAt: time.Unix(sess.ExpiresAt, 0).UTC(),
	}, nil
}

// Validate implements SessionValidator. The token must verify and name a
// live session of the same user.
func (i *RedisSessionIssuer) Validate(ctx context.Context, token string) (*SessionInfo, error) {
	claims, err := i.jwt.ParseSession(token)
	if err != nil {
		return nil, ErrSessionInvalid
	}

	sess, err := i.store.Get(ctx, claims.SID)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if sess.UserID != claims.UID {
		return nil, ErrSessionInvalid
	}

	return &SessionInfo{
		SessionID: sess.SessionID,
		UserID:    sess.UserID,
		OrderRef:  sess.OrderRef,
		CreatedAt: time.Unix(sess.CreatedAt, 0).UTC(),
		ExpiresAt: time.Unix(sess.ExpiresAt, 0).UTC(),
	}, nil
}

// Destroy implements SessionIssuer. Destroying an already removed session is
// not an error.
func (i *RedisSessionIssuer) Destroy(ctx context.Context, token string) error {
	claims, err := i.jwt.ParseSession(token)
	if err != nil {
		return ErrSessionInvalid
	}
	if err := i.store.Delete(ctx, claims.SID); err != nil {
		return fmt.Errorf("destroy session: %w", err)
	}
	return nil
}

// DestroyAllForUser removes every session of userID.
func (i *RedisSessionIssuer) DestroyAllForUser(ctx context.Context, userID string) error {
	return i.store.DeleteAllForUser(ctx, userID)
}

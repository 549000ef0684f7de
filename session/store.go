package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable is returned when the session backend fails.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrSessionNotFound is returned for unknown or expired sessions.
var ErrSessionNotFound = errors.New("session not found")

const deleteSessionScript = `
local existed = redis.call("EXISTS", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[1])
if existed == 1 then
  redis.call("DEL", KEYS[1])
end
return existed
`

var deleteSessionLua = redis.NewScript(deleteSessionScript)

// Store persists sessions under <prefix>:s:<session_id> and indexes them per
// user under <prefix>:u:<user_id>.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

func NewStore(redis redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "bs"
	}
	return &Store{
		redis:  redis,
		prefix: prefix,
	}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":s:" + sessionID
}

func (s *Store) userKey(userID string) string {
	return s.prefix + ":u:" + userID
}

// Save writes the session and adds it to the user's index.
func (s *Store) Save(ctx context.Context, sess *Session, ttl time.Duration) error {
	data, err := Encode(sess)
	if err != nil {
		return err
	}

	userKey := s.userKey(sess.UserID)

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(sess.SessionID), data, ttl)
		pipe.SAdd(ctx, userKey, sess.SessionID)
		pipe.Expire(ctx, userKey, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// Get loads a session. Sessions past ExpiresAt are removed and reported as
// [ErrSessionNotFound].
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, err
	}
	sess.SessionID = sessionID

	if sess.ExpiresAt <= time.Now().Unix() {
		if err := s.deleteSessionAndIndex(ctx, sess.UserID, sessionID); err != nil {
			return nil, err
		}
		return nil, ErrSessionNotFound
	}

	return sess, nil
}

// Delete removes a session. Deleting an unknown session is not an error.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return err
	}

	return s.deleteSessionAndIndex(ctx, sess.UserID, sessionID)
}

// DeleteAllForUser removes every session indexed for userID.
func (s *Store) DeleteAllForUser(ctx context.Context, userID string) error {
	userKey := s.userKey(userID)

	sessionIDs, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	keys := make([]string, 0, len(sessionIDs)+1)
	for _, sessionID := range sessionIDs {
		keys = append(keys, s.key(sessionID))
	}
	keys = append(keys, userKey)

	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// ActiveSessionIDs lists the session ids indexed for userID.
func (s *Store) ActiveSessionIDs(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return ids, nil
}

// Ping measures a round-trip to the session backend.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

func (s *Store) deleteSessionAndIndex(ctx context.Context, userID, sessionID string) error {
	err := deleteSessionLua.Run(ctx, s.redis, []string{s.key(sessionID), s.userKey(userID)}, sessionID).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

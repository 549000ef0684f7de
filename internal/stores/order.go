package stores

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	orderRecordVersionV1 = 1
	// V2 adds a flags byte after LastElapsed.
	orderRecordVersionV2 = 2
)

const orderFlagSessionFailed uint8 = 1 << 0

var (
	ErrOrderNotFound         = errors.New("order record not found")
	ErrOrderRedisUnavailable = errors.New("order redis unavailable")
	ErrOrderContention       = errors.New("order record update contention")
)

// OrderRecord is the persisted state of one identification order.
type OrderRecord struct {
	OrderRef       string
	AutoStartToken string
	QRStartToken   string
	QRStartSecret  string
	AttemptID      string
	ClientIP       string
	RedirectURL    string
	Status         string
	HintCode       string
	UserID         string
	LastElapsed    uint16
	CreatedAt      int64 // unix milliseconds
	// SessionFailed marks a complete order whose session could not be issued.
	SessionFailed bool
}

// OrderStore keeps order records and the attempt -> active order pointer.
//
// Keys:
//   - <prefix>:o:<order_ref>: encoded OrderRecord
//   - <prefix>:a:<attempt_id>: order_ref of the attempt's current order
type OrderStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewOrderStore(redisClient redis.UniversalClient, prefix string) *OrderStore {
	if prefix == "" {
		prefix = "bid"
	}
	return &OrderStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *OrderStore) orderKey(orderRef string) string {
	return s.prefix + ":o:" + orderRef
}

func (s *OrderStore) attemptKey(attemptID string) string {
	return s.prefix + ":a:" + attemptID
}

// Create stores a new order and makes it the active order of its attempt,
// replacing any previous one.
func (s *OrderStore) Create(ctx context.Context, record *OrderRecord, ttl time.Duration) error {
	encoded, err := encodeOrderRecord(record)
	if err != nil {
		return err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.orderKey(record.OrderRef), encoded, ttl)
		if record.AttemptID != "" {
			pipe.Set(ctx, s.attemptKey(record.AttemptID), record.OrderRef, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOrderRedisUnavailable, err)
	}

	return nil
}

func (s *OrderStore) Get(ctx context.Context, orderRef string) (*OrderRecord, error) {
	data, err := s.redis.Get(ctx, s.orderKey(orderRef)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrOrderRedisUnavailable, err)
	}

	return decodeOrderRecord(data)
}

// ActiveOrder returns the current order of an attempt, or "" when the attempt
// has none.
func (s *OrderStore) ActiveOrder(ctx context.Context, attemptID string) (string, error) {
	ref, err := s.redis.Get(ctx, s.attemptKey(attemptID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("%w: %v", ErrOrderRedisUnavailable, err)
	}
	return ref, nil
}

// Update applies mutate to the stored record under optimistic locking and
// keeps the record's remaining TTL. mutate may be invoked more than once.
func (s *OrderStore) Update(
	ctx context.Context,
	orderRef string,
	mutate func(record *OrderRecord) error,
) (*OrderRecord, error) {
	const maxRetries = 4
	key := s.orderKey(orderRef)

	for i := 0; i < maxRetries; i++ {
		var updated *OrderRecord

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record, err := decodeOrderRecord(data)
			if err != nil {
				return err
			}
			if err := mutate(record); err != nil {
				return err
			}

			encoded, err := encodeOrderRecord(record)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, encoded, redis.KeepTTL)
				return nil
			})
			if err != nil {
				return err
			}

			updated = record
			return nil
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return nil, ErrOrderNotFound
			}
			return nil, err
		}

		return updated, nil
	}

	return nil, ErrOrderContention
}

// ReleaseAttempt drops the attempt pointer when it still points at orderRef.
func (s *OrderStore) ReleaseAttempt(ctx context.Context, attemptID, orderRef string) error {
	if attemptID == "" {
		return nil
	}
	key := s.attemptKey(attemptID)

	err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Result()
		if err != nil {
			return err
		}
		if current != orderRef {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil, errors.Is(err, redis.Nil):
		return nil
	case err == redis.TxFailedErr:
		// A concurrent begin moved the pointer; nothing to release.
		return nil
	default:
		return fmt.Errorf("%w: %v", ErrOrderRedisUnavailable, err)
	}
}

func encodeOrderRecord(record *OrderRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(orderRecordVersionV2)

	if err := binary.Write(&buf, binary.BigEndian, record.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.LastElapsed); err != nil {
		return nil, err
	}
	var flags uint8
	if record.SessionFailed {
		flags |= orderFlagSessionFailed
	}
	buf.WriteByte(flags)

	fields := []string{
		record.OrderRef,
		record.AutoStartToken,
		record.QRStartToken,
		record.QRStartSecret,
		record.AttemptID,
		record.ClientIP,
		record.RedirectURL,
		record.Status,
		record.HintCode,
		record.UserID,
	}
	for _, field := range fields {
		if err := writeString(&buf, field); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

func decodeOrderRecord(data []byte) (*OrderRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != orderRecordVersionV1 && version != orderRecordVersionV2 {
		return nil, errors.New("invalid order record version")
	}

	record := &OrderRecord{}
	if err := binary.Read(reader, binary.BigEndian, &record.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.LastElapsed); err != nil {
		return nil, err
	}
	if version >= orderRecordVersionV2 {
		flags, err := reader.ReadByte()
		if err != nil {
			return nil, err
		}
		record.SessionFailed = flags&orderFlagSessionFailed != 0
	}

	fields := []*string{
		&record.OrderRef,
		&record.AutoStartToken,
		&record.QRStartToken,
		&record.QRStartSecret,
		&record.AttemptID,
		&record.ClientIP,
		&record.RedirectURL,
		&record.Status,
		&record.HintCode,
		&record.UserID,
	}
	for _, field := range fields {
		value, err := readString(reader)
		if err != nil {
			return nil, err
		}
		*field = value
	}

	return record, nil
}

func writeString(buf *bytes.Buffer, value string) error {
	if len(value) > 65535 {
		return errors.New("order record field too long")
	}
	if err := binary.Write(buf, binary.BigEndian, uint16(len(value))); err != nil {
		return err
	}
	buf.WriteString(value)
	return nil
}

func readString(reader *bytes.Reader) (string, error) {
	var size uint16
	if err := binary.Read(reader, binary.BigEndian, &size); err != nil {
		return "", err
	}
	value := make([]byte, size)
	if _, err := io.ReadFull(reader, value); err != nil {
		return "", err
	}
	return string(value), nil
}

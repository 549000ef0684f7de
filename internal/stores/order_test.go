package stores

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

func sampleOrder(ref, attempt string) *OrderRecord {
	return &OrderRecord{
		OrderRef:       ref,
		AutoStartToken: "ast-" + ref,
		QRStartToken:   "qst-" + ref,
		QRStartSecret:  "secret-" + ref,
		AttemptID:      attempt,
		ClientIP:       "192.0.2.10",
		RedirectURL:    "/account",
		Status:         "pending",
		CreatedAt:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC).UnixMilli(),
	}
}

func TestOrderStoreCreateAndGet(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := NewOrderStore(rdb, "t")
	ctx := context.Background()

	want := sampleOrder("ref-1", "attempt-1")
	if err := store.Create(ctx, want, time.Minute); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := store.Get(ctx, "ref-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if *got != *want {
		t.Fatalf("decoded record mismatch: got %+v want %+v", got, want)
	}

	active, err := store.ActiveOrder(ctx, "attempt-1")
	if err != nil {
		t.Fatalf("ActiveOrder failed: %v", err)
	}
	if active != "ref-1" {
		t.Fatalf("expected active ref-1, got %q", active)
	}
}

func TestOrderStoreGetMissing(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := NewOrderStore(rdb, "t")

	if _, err := store.Get(context.Background(), "nope"); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestOrderStoreCreateSupersedesAttempt(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := NewOrderStore(rdb, "t")
	ctx := context.Background()

	if err := store.Create(ctx, sampleOrder("ref-1", "attempt-1"), time.Minute); err != nil {
		t.Fatalf("Create first failed: %v", err)
	}
	if err := store.Create(ctx, sampleOrder("ref-2", "attempt-1"), time.Minute); err != nil {
		t.Fatalf("Create second failed: %v", err)
	}

	active, err := store.ActiveOrder(ctx, "attempt-1")
	if err != nil {
		t.Fatalf("ActiveOrder failed: %v", err)
	}
	if active != "ref-2" {
		t.Fatalf("expected newest order to be active, got %q", active)
	}

	// The superseded record stays readable.
	if _, err := store.Get(ctx, "ref-1"); err != nil {
		t.Fatalf("Get superseded failed: %v", err)
	}
}

func TestOrderStoreUpdateKeepsTTL(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := NewOrderStore(rdb, "t")
	ctx := context.Background()

	if err := store.Create(ctx, sampleOrder("ref-1", "attempt-1"), time.Minute); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	mr.FastForward(20 * time.Second)

	updated, err := store.Update(ctx, "ref-1", func(record *OrderRecord) error {
		record.Status = "complete"
		record.UserID = "42"
		record.LastElapsed = 12
		return nil
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Status != "complete" || updated.UserID != "42" || updated.LastElapsed != 12 {
		t.Fatalf("unexpected updated record: %+v", updated)
	}

	ttl := mr.TTL("t:o:ref-1")
	if ttl <= 0 || ttl > 40*time.Second {
		t.Fatalf("expected remaining TTL to be kept, got %v", ttl)
	}
}

func TestOrderStoreUpdateMutateError(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := NewOrderStore(rdb, "t")
	ctx := context.Background()

	if err := store.Create(ctx, sampleOrder("ref-1", ""), time.Minute); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	boom := errors.New("boom")
	if _, err := store.Update(ctx, "ref-1", func(*OrderRecord) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected mutate error, got %v", err)
	}

	got, err := store.Get(ctx, "ref-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != "pending" {
		t.Fatalf("record changed after failed mutate: %+v", got)
	}
}

func TestOrderStoreUpdateMissing(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := NewOrderStore(rdb, "t")

	_, err := store.Update(context.Background(), "missing", func(*OrderRecord) error { return nil })
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestOrderStoreReleaseAttempt(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := NewOrderStore(rdb, "t")
	ctx := context.Background()

	if err := store.Create(ctx, sampleOrder("ref-1", "attempt-1"), time.Minute); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := store.Create(ctx, sampleOrder("ref-2", "attempt-1"), time.Minute); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Releasing a stale order leaves the pointer alone.
	if err := store.ReleaseAttempt(ctx, "attempt-1", "ref-1"); err != nil {
		t.Fatalf("ReleaseAttempt stale failed: %v", err)
	}
	if active, _ := store.ActiveOrder(ctx, "attempt-1"); active != "ref-2" {
		t.Fatalf("stale release moved pointer to %q", active)
	}

	if err := store.ReleaseAttempt(ctx, "attempt-1", "ref-2"); err != nil {
		t.Fatalf("ReleaseAttempt failed: %v", err)
	}
	if active, _ := store.ActiveOrder(ctx, "attempt-1"); active != "" {
		t.Fatalf("expected released attempt, got %q", active)
	}

	if err := store.ReleaseAttempt(ctx, "attempt-1", "ref-2"); err != nil {
		t.Fatalf("ReleaseAttempt should be idempotent: %v", err)
	}
}

func TestDecodeOrderRecordRejectsUnknownVersion(t *testing.T) {
	encoded, err := encodeOrderRecord(sampleOrder("ref-1", "a"))
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	encoded[0] = 9
	if _, err := decodeOrderRecord(encoded); err == nil {
		t.Fatal("expected version error")
	}
	if _, err := decodeOrderRecord(encoded[:5]); err == nil {
		t.Fatal("expected truncation error")
	}
}

func TestDecodeOrderRecordV1(t *testing.T) {
	want := sampleOrder("ref-1", "attempt-1")
	encoded, err := encodeOrderRecord(want)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	// A v1 record is the v2 layout without the flags byte.
	v1 := append([]byte{orderRecordVersionV1}, encoded[1:11]...)
	v1 = append(v1, encoded[12:]...)

	got, err := decodeOrderRecord(v1)
	if err != nil {
		t.Fatalf("decode v1 failed: %v", err)
	}
	if *got != *want {
		t.Fatalf("decoded v1 mismatch: got %+v want %+v", got, want)
	}
}

func TestOrderStoreKeepsSessionFailedFlag(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := NewOrderStore(rdb, "t")
	ctx := context.Background()

	if err := store.Create(ctx, sampleOrder("ref-1", ""), time.Minute); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := store.Update(ctx, "ref-1", func(record *OrderRecord) error {
		record.Status = "complete"
		record.SessionFailed = true
		return nil
	}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, err := store.Get(ctx, "ref-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !got.SessionFailed || got.Status != "complete" {
		t.Fatalf("expected session failure to persist, got %+v", got)
	}
}

package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	goBankID "github.com/MrEthical07/goBankID"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// newTestStore needs a disposable database in BANKID_TEST_DATABASE_URL.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := os.Getenv("BANKID_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("BANKID_TEST_DATABASE_URL not set")
	}
	require.NoError(t, Migrate(dsn))

	pool, err := NewPool(dsn)
	require.NoError(t, err)
	s := NewStore(pool)
	t.Cleanup(s.Close)
	return s
}

func TestMigrateRejectsEmptyDSN(t *testing.T) {
	require.Error(t, Migrate(""))
}

func TestNewPoolRejectsBadURL(t *testing.T) {
	_, err := NewPool("://not-a-url")
	require.Error(t, err)
}

func TestAuthResponseLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ref := "ref-" + uuid.NewString()
	created := time.Now().UTC().Truncate(time.Microsecond)

	record := &goBankID.PersistedAuthResponse{TimeCreated: created, ResponseBody: []byte(`{"orderRef":"x"}`), OrderRef: ref}
	require.NoError(t, s.SaveAuthResponse(ctx, record))
	require.NotZero(t, record.ID)

	got, err := s.GetAuthResponse(ctx, ref)
	require.NoError(t, err)
	require.Equal(t, record.ID, got.ID)
	require.True(t, created.Equal(got.TimeCreated))

	require.NoError(t, s.DeleteAuthResponse(ctx, ref))
	_, err = s.GetAuthResponse(ctx, ref)
	require.ErrorIs(t, err, goBankID.ErrAuthResponseNotFound)
	require.NoError(t, s.DeleteAuthResponse(ctx, ref))
}

func TestDeleteAuthResponsesBefore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	old := "old-" + uuid.NewString()

	require.NoError(t, s.SaveAuthResponse(ctx, &goBankID.PersistedAuthResponse{
		TimeCreated: time.Now().Add(-48 * time.Hour), ResponseBody: []byte("{}"), OrderRef: old,
	}))

	n, err := s.DeleteAuthResponsesBefore(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, int64(1))

	_, err = s.GetAuthResponse(ctx, old)
	require.ErrorIs(t, err, goBankID.ErrAuthResponseNotFound)
}

func TestBindPersonalNumberFirstWriteWins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	pn := uuid.NewString()
	userA, userB := "A-"+uuid.NewString(), "B-"+uuid.NewString()

	bound, err := s.BindPersonalNumber(ctx, userA, pn)
	require.NoError(t, err)
	require.True(t, bound)

	bound, err = s.BindPersonalNumber(ctx, userB, pn)
	require.NoError(t, err)
	require.False(t, bound)

	got, err := s.LookupByPersonalNumber(ctx, pn)
	require.NoError(t, err)
	require.Equal(t, userA, got)

	next := uuid.NewString()
	bound, err = s.BindPersonalNumber(ctx, userA, next)
	require.NoError(t, err)
	require.True(t, bound)

	got, err = s.PersonalNumberForUser(ctx, userA)
	require.NoError(t, err)
	require.Equal(t, next, got)

	_, err = s.LookupByPersonalNumber(ctx, pn)
	require.ErrorIs(t, err, goBankID.ErrUserNotFound)
}

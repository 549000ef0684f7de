package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	goBankID "github.com/MrEthical07/goBankID"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := NewStore("file:" + filepath.Join(t.TempDir(), "bankid.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.ApplyMigrations())
	return s
}

func TestApplyMigrationsIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.ApplyMigrations())
	require.NoError(t, s.Ping(context.Background()))
}

func TestAuthResponseLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	record := &goBankID.PersistedAuthResponse{
		TimeCreated:  created,
		ResponseBody: []byte(`{"orderRef":"ref-1"}`),
		OrderRef:     "ref-1",
	}
	require.NoError(t, s.SaveAuthResponse(ctx, record))
	require.NotZero(t, record.ID)

	got, err := s.GetAuthResponse(ctx, "ref-1")
	require.NoError(t, err)
	require.Equal(t, record.ID, got.ID)
	require.Equal(t, "ref-1", got.OrderRef)
	require.True(t, created.Equal(got.TimeCreated))
	require.JSONEq(t, `{"orderRef":"ref-1"}`, string(got.ResponseBody))

	require.NoError(t, s.DeleteAuthResponse(ctx, "ref-1"))
	_, err = s.GetAuthResponse(ctx, "ref-1")
	require.ErrorIs(t, err, goBankID.ErrAuthResponseNotFound)

	require.NoError(t, s.DeleteAuthResponse(ctx, "ref-1"))
}

func TestSaveAuthResponseReplacesSameOrderRef(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := &goBankID.PersistedAuthResponse{TimeCreated: time.Now(), ResponseBody: []byte("a"), OrderRef: "ref-1"}
	second := &goBankID.PersistedAuthResponse{TimeCreated: time.Now(), ResponseBody: []byte("b"), OrderRef: "ref-1"}
	require.NoError(t, s.SaveAuthResponse(ctx, first))
	require.NoError(t, s.SaveAuthResponse(ctx, second))

	got, err := s.GetAuthResponse(ctx, "ref-1")
	require.NoError(t, err)
	require.Equal(t, "b", string(got.ResponseBody))
}

func TestDeleteAuthResponsesBefore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.SaveAuthResponse(ctx, &goBankID.PersistedAuthResponse{TimeCreated: now.Add(-2 * time.Hour), ResponseBody: []byte("{}"), OrderRef: "old"}))
	require.NoError(t, s.SaveAuthResponse(ctx, &goBankID.PersistedAuthResponse{TimeCreated: now, ResponseBody: []byte("{}"), OrderRef: "new"}))

	n, err := s.DeleteAuthResponsesBefore(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	_, err = s.GetAuthResponse(ctx, "old")
	require.ErrorIs(t, err, goBankID.ErrAuthResponseNotFound)
	_, err = s.GetAuthResponse(ctx, "new")
	require.NoError(t, err)
}

func TestBindPersonalNumberFirstWriteWins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.LookupByPersonalNumber(ctx, "199001011234")
	require.ErrorIs(t, err, goBankID.ErrUserNotFound)

	bound, err := s.BindPersonalNumber(ctx, "A", "199001011234")
	require.NoError(t, err)
	require.True(t, bound)

	bound, err = s.BindPersonalNumber(ctx, "B", "199001011234")
	require.NoError(t, err)
	require.False(t, bound)

	userID, err := s.LookupByPersonalNumber(ctx, "199001011234")
	require.NoError(t, err)
	require.Equal(t, "A", userID)

	_, err = s.PersonalNumberForUser(ctx, "B")
	require.ErrorIs(t, err, goBankID.ErrUserNotFound)
}

func TestBindPersonalNumberReplacesUsersPreviousNumber(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.BindPersonalNumber(ctx, "A", "199001011234")
	require.NoError(t, err)
	bound, err := s.BindPersonalNumber(ctx, "A", "198505055555")
	require.NoError(t, err)
	require.True(t, bound)

	pn, err := s.PersonalNumberForUser(ctx, "A")
	require.NoError(t, err)
	require.Equal(t, "198505055555", pn)

	_, err = s.LookupByPersonalNumber(ctx, "199001011234")
	require.ErrorIs(t, err, goBankID.ErrUserNotFound)
}

package postgres

import (
	"context"
	"errors"
	"time"

	goBankID "github.com/MrEthical07/goBankID"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	_ goBankID.AuthResponseStore = (*Store)(nil)
	_ goBankID.UserDirectory     = (*Store)(nil)
	_ goBankID.IdentityBinder    = (*Store)(nil)
)

var errAlreadyBound = errors.New("personal number already bound")

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Close() { s.db.Close() }

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// SaveAuthResponse inserts the record, replacing an earlier one with the same
// order reference. record.ID is set to the stored id.
func (s *Store) SaveAuthResponse(ctx context.Context, record *goBankID.PersistedAuthResponse) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO auth_responses (time_created, response_body, order_ref)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (order_ref) DO UPDATE SET
		     time_created = EXCLUDED.time_created,
		     response_body = EXCLUDED.response_body
		 RETURNING id`,
		record.TimeCreated.UTC(), record.ResponseBody, record.OrderRef,
	).Scan(&record.ID)
}

func (s *Store) GetAuthResponse(ctx context.Context, orderRef string) (*goBankID.PersistedAuthResponse, error) {
	row := s.db.QueryRow(ctx,
		`SELECT id, time_created, response_body, order_ref
		 FROM auth_responses
		 WHERE order_ref = $1`,
		orderRef)

	var out goBankID.PersistedAuthResponse
	if err := row.Scan(&out.ID, &out.TimeCreated, &out.ResponseBody, &out.OrderRef); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, goBankID.ErrAuthResponseNotFound
		}
		return nil, err
	}
	out.TimeCreated = out.TimeCreated.UTC()
	return &out, nil
}

// DeleteAuthResponse is idempotent.
func (s *Store) DeleteAuthResponse(ctx context.Context, orderRef string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM auth_responses WHERE order_ref = $1`, orderRef)
	return err
}

// DeleteAuthResponsesBefore removes records created before cutoff.
func (s *Store) DeleteAuthResponsesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM auth_responses WHERE time_created < $1`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Store) LookupByPersonalNumber(ctx context.Context, personalNumber string) (string, error) {
	var userID string
	err := s.db.QueryRow(ctx,
		`SELECT user_id FROM personal_identities WHERE personal_number = $1`,
		personalNumber).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", goBankID.ErrUserNotFound
		}
		return "", err
	}
	return userID, nil
}

// BindPersonalNumber binds personalNumber to userID unless it is already
// bound. A user's previous personal number is replaced.
func (s *Store) BindPersonalNumber(ctx context.Context, userID, personalNumber string) (bool, error) {
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		var existing string
		err := tx.QueryRow(ctx,
			`SELECT user_id FROM personal_identities WHERE personal_number = $1 FOR UPDATE`,
			personalNumber).Scan(&existing)
		switch {
		case err == nil:
			return errAlreadyBound
		case !errors.Is(err, pgx.ErrNoRows):
			return err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM personal_identities WHERE user_id = $1`, userID); err != nil {
			return err
		}

		tag, err := tx.Exec(ctx,
			`INSERT INTO personal_identities (personal_number, user_id)
			 VALUES ($1, $2)
			 ON CONFLICT (personal_number) DO NOTHING`,
			personalNumber, userID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return errAlreadyBound
		}
		return nil
	})
	if errors.Is(err, errAlreadyBound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) PersonalNumberForUser(ctx context.Context, userID string) (string, error) {
	var personalNumber string
	err := s.db.QueryRow(ctx,
		`SELECT personal_number FROM personal_identities WHERE user_id = $1`,
		userID).Scan(&personalNumber)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", goBankID.ErrUserNotFound
		}
		return "", err
	}
	return personalNumber, nil
}

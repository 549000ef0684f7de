package sqlite

import (
	"context"
	"time"

	goBankID "github.com/MrEthical07/goBankID"
)

// SaveAuthResponse inserts the record, replacing an earlier one with the same
// order reference. record.ID is set to the stored id.
func (s *Store) SaveAuthResponse(ctx context.Context, record *goBankID.PersistedAuthResponse) error {
	row := s.db.QueryRowContext(ctx,
		`INSERT INTO auth_responses (time_created, response_body, order_ref)
		 VALUES (?, ?, ?)
		 ON CONFLICT (order_ref) DO UPDATE SET
		     time_created = excluded.time_created,
		     response_body = excluded.response_body
		 RETURNING id`,
		toMillis(record.TimeCreated), record.ResponseBody, record.OrderRef,
	)
	return row.Scan(&record.ID)
}

func (s *Store) GetAuthResponse(ctx context.Context, orderRef string) (*goBankID.PersistedAuthResponse, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, time_created, response_body, order_ref
		 FROM auth_responses
		 WHERE order_ref = ?`,
		orderRef,
	)

	var (
		out     goBankID.PersistedAuthResponse
		created int64
	)
	if err := row.Scan(&out.ID, &created, &out.ResponseBody, &out.OrderRef); err != nil {
		return nil, mapNotFound(err, goBankID.ErrAuthResponseNotFound)
	}
	out.TimeCreated = fromMillis(created)
	return &out, nil
}

// DeleteAuthResponse is idempotent.
func (s *Store) DeleteAuthResponse(ctx context.Context, orderRef string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM auth_responses WHERE order_ref = ?`, orderRef)
	return err
}

// DeleteAuthResponsesBefore removes records created before cutoff.
func (s *Store) DeleteAuthResponsesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM auth_responses WHERE time_created < ?`, toMillis(cutoff))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	goBankID "github.com/MrEthical07/goBankID"
)

var errAlreadyBound = errors.New("personal number already bound")

func (s *Store) LookupByPersonalNumber(ctx context.Context, personalNumber string) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id FROM personal_identities WHERE personal_number = ?`,
		personalNumber,
	).Scan(&userID)
	if err != nil {
		return "", mapNotFound(err, goBankID.ErrUserNotFound)
	}
	return userID, nil
}

// BindPersonalNumber binds personalNumber to userID unless it is already
// bound. A user's previous personal number is replaced.
func (s *Store) BindPersonalNumber(ctx context.Context, userID, personalNumber string) (bool, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var existing string
		err := tx.QueryRowContext(ctx,
			`SELECT user_id FROM personal_identities WHERE personal_number = ?`,
			personalNumber,
		).Scan(&existing)
		switch {
		case err == nil:
			return errAlreadyBound
		case !errors.Is(err, sql.ErrNoRows):
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM personal_identities WHERE user_id = ?`, userID,
		); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO personal_identities (personal_number, user_id, time_bound)
			 VALUES (?, ?, ?)
			 ON CONFLICT (personal_number) DO NOTHING`,
			personalNumber, userID, toMillis(time.Now()),
		)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
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
	err := s.db.QueryRowContext(ctx,
		`SELECT personal_number FROM personal_identities WHERE user_id = ?`,
		userID,
	).Scan(&personalNumber)
	if err != nil {
		return "", mapNotFound(err, goBankID.ErrUserNotFound)
	}
	return personalNumber, nil
}

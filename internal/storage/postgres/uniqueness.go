package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/SARVESHVARADKAR123/ledgermsg/internal/domain"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/tx"
)

// Uniqueness is the notary's consumed-input set backed by notary_commits.
// Commits run serializable, so two transactions racing for one input cannot
// both succeed.
type Uniqueness struct {
	Tx tx.Transactor
}

func (u *Uniqueness) Commit(ctx context.Context, inputs []domain.StateRef, txID domain.SecureHash) error {
	if len(inputs) == 0 {
		return nil
	}
	return u.Tx.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		conflicts := make(map[domain.StateRef]domain.SecureHash)
		for _, in := range inputs {
			var consumer string
			err := tx.QueryRowContext(ctx, `
				SELECT consuming_tx FROM notary_commits
				WHERE tx_id = $1 AND idx = $2
				FOR UPDATE
			`, in.TxID.String(), in.Index).Scan(&consumer)
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			if err != nil {
				return err
			}
			if domain.SecureHash(consumer) != txID {
				conflicts[in] = domain.SecureHash(consumer)
			}
		}
		if len(conflicts) > 0 {
			return &domain.NotaryConflictError{TxID: txID, Conflicts: conflicts}
		}

		for _, in := range inputs {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO notary_commits (tx_id, idx, consuming_tx)
				VALUES ($1, $2, $3)
				ON CONFLICT (tx_id, idx) DO NOTHING
			`, in.TxID.String(), in.Index, txID.String()); err != nil {
				return err
			}
		}
		return nil
	})
}

package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/SARVESHVARADKAR123/ledgermsg/internal/domain"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/tx"
)

// Vault stores committed transactions and their states. Recording a
// transaction also enqueues a committed event in the outbox.
type Vault struct {
	DB   *sql.DB
	Tx   tx.Transactor
	Node string
}

func (v *Vault) Record(ctx context.Context, stx *domain.SignedTransaction) error {
	raw, err := stx.Encode()
	if err != nil {
		return err
	}
	id := stx.ID()

	return v.Tx.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO ledger_transactions (id, body)
			VALUES ($1, $2)
			ON CONFLICT (id) DO NOTHING
		`, id.String(), raw)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil || n == 0 {
			return err
		}

		for _, in := range stx.Tx.Inputs {
			var consumedBy sql.NullString
			err := tx.QueryRowContext(ctx, `
				SELECT consumed_by FROM ledger_states
				WHERE tx_id = $1 AND idx = $2
				FOR UPDATE
			`, in.TxID.String(), in.Index).Scan(&consumedBy)
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			if err != nil {
				return err
			}
			if consumedBy.Valid {
				return fmt.Errorf("%w: %s was consumed by %s", domain.ErrStateConsumed, in, domain.SecureHash(consumedBy.String).Short())
			}
			if _, err := tx.ExecContext(ctx, `
				UPDATE ledger_states
				SET consumed_by = $3
				WHERE tx_id = $1 AND idx = $2
			`, in.TxID.String(), in.Index, id.String()); err != nil {
				return err
			}
		}

		for i, out := range stx.Tx.Outputs {
			body, err := json.Marshal(out)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO ledger_states (tx_id, idx, linear_id, contract, body)
				VALUES ($1, $2, $3, $4, $5)
			`, id.String(), i, out.Data.LinearID.String(), string(out.Contract), body); err != nil {
				return err
			}
		}

		event, err := json.Marshal(domain.NewTransactionCommitted(v.Node, stx, time.Now()))
		if err != nil {
			return err
		}
		return InsertOutbox(ctx, tx, "transaction", id.String(), domain.EventTransactionCommitted, event)
	})
}

func (v *Vault) TransactionBytes(ctx context.Context, id domain.SecureHash) ([]byte, error) {
	var raw []byte
	err := v.DB.QueryRowContext(ctx, `
		SELECT body FROM ledger_transactions WHERE id = $1
	`, id.String()).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrTransactionNotFound, id)
	}
	return raw, err
}

func (v *Vault) Transaction(ctx context.Context, id domain.SecureHash) (*domain.SignedTransaction, error) {
	raw, err := v.TransactionBytes(ctx, id)
	if err != nil {
		return nil, err
	}
	return domain.DecodeSignedTransaction(raw)
}

func (v *Vault) StateAndRef(ctx context.Context, ref domain.StateRef) (*domain.StateAndRef, error) {
	var body []byte
	err := v.DB.QueryRowContext(ctx, `
		SELECT body FROM ledger_states WHERE tx_id = $1 AND idx = $2
	`, ref.TxID.String(), ref.Index).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrStateNotFound, ref)
	}
	if err != nil {
		return nil, err
	}
	return decodeState(ref, body)
}

func (v *Vault) Unconsumed(ctx context.Context) ([]domain.StateAndRef, error) {
	rows, err := v.DB.QueryContext(ctx, `
		SELECT tx_id, idx, body
		FROM ledger_states
		WHERE consumed_by IS NULL
		ORDER BY recorded_at ASC, tx_id ASC, idx ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.StateAndRef
	for rows.Next() {
		sar, err := scanState(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sar)
	}
	return out, rows.Err()
}

func (v *Vault) LatestByLinearID(ctx context.Context, id domain.UniqueIdentifier) (*domain.StateAndRef, error) {
	row := v.DB.QueryRowContext(ctx, `
		SELECT tx_id, idx, body
		FROM ledger_states
		WHERE linear_id = $1 AND consumed_by IS NULL
		ORDER BY recorded_at DESC
		LIMIT 1
	`, id.String())
	sar, err := scanState(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no unconsumed state for %s", domain.ErrStateNotFound, id)
	}
	return sar, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanState(s scanner) (*domain.StateAndRef, error) {
	var (
		txID string
		idx  int
		body []byte
	)
	if err := s.Scan(&txID, &idx, &body); err != nil {
		return nil, err
	}
	return decodeState(domain.StateRef{TxID: domain.SecureHash(txID), Index: idx}, body)
}

func decodeState(ref domain.StateRef, body []byte) (*domain.StateAndRef, error) {
	var state domain.TransactionState
	if err := json.Unmarshal(body, &state); err != nil {
		return nil, fmt.Errorf("failed to decode state %s: %w", ref, err)
	}
	return &domain.StateAndRef{State: state, Ref: ref}, nil
}

// InsertOutbox enqueues an event in the caller's transaction.
func InsertOutbox(
	ctx context.Context,
	tx *sql.Tx,
	aggregateType, aggregateID, eventType string,
	payload []byte,
) error {
	_, err := tx.ExecContext(ctx, `
        INSERT INTO outbox_events (aggregate_type, aggregate_id, event_type, payload)
        VALUES ($1, $2, $3, $4)
    `, aggregateType, aggregateID, eventType, payload)
	return err
}

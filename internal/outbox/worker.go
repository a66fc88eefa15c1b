package outbox

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/SARVESHVARADKAR123/ledgermsg/internal/observability"
)

const (
	DefaultBatchSize  = 50
	DefaultPollDelay  = 500 * time.Millisecond
	DefaultMaxRetries = 3
)

// Publisher ships one outbox payload. The kafka producer satisfies it.
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// Worker relays committed ledger events from outbox_events to a publisher.
// Rows that keep failing past MaxRetries move to outbox_dlq.
type Worker struct {
	DB         *sql.DB
	Publisher  Publisher
	BatchSize  int
	PollDelay  time.Duration
	MaxRetries int
}

type event struct {
	id            int64
	aggregateType string
	aggregateID   string
	eventType     string
	payload       []byte
	createdAt     time.Time
	retryCount    int
}

func (w *Worker) Start(ctx context.Context) {
	log := observability.GetLogger(ctx)
	log.Info("outbox worker started")

	for {
		n, err := w.processBatch(ctx)
		if err != nil {
			log.Error("outbox error", zap.Error(err))
		}
		if n > 0 && err == nil {
			continue
		}

		delay := w.pollDelay()
		if err != nil {
			delay = time.Second
		}
		select {
		case <-ctx.Done():
			log.Info("outbox worker stopped")
			return
		case <-time.After(delay):
		}
	}
}

// RunOnce processes a single batch and reports how many rows it picked up.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	return w.processBatch(ctx)
}

func (w *Worker) pollDelay() time.Duration {
	if w.PollDelay <= 0 {
		return DefaultPollDelay
	}
	return w.PollDelay
}

func (w *Worker) processBatch(ctx context.Context) (int, error) {
	batch := w.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	maxRetries := w.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	tx, err := w.DB.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	events, err := lockBatch(ctx, tx, batch)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	var batchErr error
	for _, e := range events {
		pubErr := w.Publisher.Publish(ctx, e.aggregateID, e.payload)
		if pubErr == nil {
			if _, err := tx.ExecContext(ctx, `
				UPDATE outbox_events SET processed_at = now() WHERE id = $1
			`, e.id); err != nil {
				return 0, err
			}
			continue
		}

		observability.OutboxPublishFailures.Inc()
		if e.retryCount+1 >= maxRetries {
			if err := deadLetter(ctx, tx, e, pubErr); err != nil {
				return 0, err
			}
			observability.GetLogger(ctx).Warn("outbox event moved to dlq",
				zap.Int64("id", e.id),
				zap.String("aggregate_id", e.aggregateID),
				zap.Error(pubErr),
			)
		} else if _, err := tx.ExecContext(ctx, `
			UPDATE outbox_events SET retry_count = retry_count + 1, error = $2 WHERE id = $1
		`, e.id, pubErr.Error()); err != nil {
			return 0, err
		}

		// Keep per-aggregate ordering: stop at the first failure.
		batchErr = pubErr
		break
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(events), batchErr
}

func lockBatch(ctx context.Context, tx *sql.Tx, limit int) ([]event, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, created_at, retry_count
		FROM outbox_events
		WHERE processed_at IS NULL
		ORDER BY id
		FOR UPDATE SKIP LOCKED
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []event
	for rows.Next() {
		var e event
		if err := rows.Scan(&e.id, &e.aggregateType, &e.aggregateID, &e.eventType, &e.payload, &e.createdAt, &e.retryCount); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func deadLetter(ctx context.Context, tx *sql.Tx, e event, cause error) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO outbox_dlq (id, aggregate_type, aggregate_id, event_type, payload, created_at, failed_at, error, retry_count)
		VALUES ($1, $2, $3, $4, $5, $6, now(), $7, $8)
	`, e.id, e.aggregateType, e.aggregateID, e.eventType, e.payload, e.createdAt, cause.Error(), e.retryCount+1); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `DELETE FROM outbox_events WHERE id = $1`, e.id)
	return err
}

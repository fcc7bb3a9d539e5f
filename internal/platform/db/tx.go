package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TxConfig tunes a transaction opened by WithTx.
type TxConfig struct {
	// IsoLevel defaults to ReadCommitted so that a transaction blocked on a
	// FOR UPDATE lock re-reads the row committed by the previous holder.
	IsoLevel pgx.TxIsoLevel
	// LockTimeout bounds every lock wait inside the transaction. Zero waits forever.
	LockTimeout time.Duration
}

// WithTx executes a function within a transaction and commits when fn succeeds.
// The transaction is rolled back on any error, including a failed commit.
func WithTx(ctx context.Context, pool *pgxpool.Pool, cfg TxConfig, fn func(pgx.Tx) error) error {
	iso := cfg.IsoLevel
	if iso == "" {
		iso = pgx.ReadCommitted
	}
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: iso})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(context.WithoutCancel(ctx))
	}()

	if cfg.LockTimeout > 0 {
		// SET does not accept bind parameters.
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", cfg.LockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("platform/db: set lock timeout: %w", err)
		}
	}

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}

	return nil
}

package journals

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

func TestClassifyMapsPostgresErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind shared.Kind
	}{
		{"lock not available", &pgconn.PgError{Code: "55P03"}, shared.KindContention},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, shared.KindContention},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, shared.KindContention},
		{"query canceled", &pgconn.PgError{Code: "57014"}, shared.KindContention},
		{"context deadline", fmt.Errorf("exec: %w", context.DeadlineExceeded), shared.KindContention},
		{"foreign key", &pgconn.PgError{Code: "23503"}, shared.KindReferential},
		{"unique violation", &pgconn.PgError{Code: "23505"}, shared.KindPersistence},
		{"plain", errors.New("connection reset"), shared.KindPersistence},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := classify("op", tc.err, nil)
			require.Equal(t, tc.kind, shared.KindOf(err))
			require.ErrorIs(t, err, tc.err)
			if tc.kind == shared.KindContention {
				require.ErrorIs(t, err, shared.ErrLockTimeout)
				require.True(t, shared.IsRetryable(err))
			}
		})
	}
}

func TestClassifyNoRows(t *testing.T) {
	err := classify("get journal", pgx.ErrNoRows, shared.ErrJournalNotFound)
	require.Equal(t, shared.KindReferential, shared.KindOf(err))
	require.ErrorIs(t, err, shared.ErrJournalNotFound)

	err = classify("insert", pgx.ErrNoRows, nil)
	require.Equal(t, shared.KindPersistence, shared.KindOf(err))
}

func TestClassifyKeepsTaggedErrors(t *testing.T) {
	tagged := shared.Validation("step", shared.ErrCorrelativeClosed)
	require.Same(t, tagged, classify("tx", tagged, nil))
	require.NoError(t, classify("tx", nil, nil))
}

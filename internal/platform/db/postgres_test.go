package db

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSchemaDeclaresLedgerTables(t *testing.T) {
	schema := Schema()
	for _, table := range []string{"tax_periods", "correlatives", "tax_accounts", "journal_entries", "journal_lines"} {
		require.Contains(t, schema, "CREATE TABLE IF NOT EXISTS "+table)
	}
	require.True(t, strings.Contains(schema, "uq_correlatives_book_period"))
}

package shared

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewPagination(t *testing.T) {
	p := NewPagination(0, 0, 45)
	require.Equal(t, Pagination{Page: 1, PerPage: 20, Total: 45, TotalPages: 3}, p)
	require.Zero(t, p.Offset())

	p = NewPagination(3, 1000, 450)
	require.Equal(t, MaxPerPage, p.PerPage)
	require.Equal(t, 400, p.Offset())
}

func TestPaginationFromQuery(t *testing.T) {
	p := PaginationFromQuery(url.Values{"page": {"2"}, "per_page": {"10"}})
	require.Equal(t, 10, p.Offset())
	require.Equal(t, 3, p.WithTotal(25).TotalPages)

	p = PaginationFromQuery(url.Values{"page": {"x"}})
	require.Equal(t, 1, p.Page)
	require.Equal(t, 20, p.PerPage)
}

package accounts

import (
	"context"

	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns one page of accounts ordered by code, with the total filled into page.
func (s *Service) List(ctx context.Context, page internalShared.Pagination) ([]TaxAccount, internalShared.Pagination, error) {
	items, total, err := s.repo.List(ctx, page.PerPage, page.Offset())
	if err != nil {
		return nil, page, err
	}
	return items, page.WithTotal(total), nil
}

func (s *Service) Get(ctx context.Context, id int64) (TaxAccount, error) {
	return s.repo.Get(ctx, id)
}

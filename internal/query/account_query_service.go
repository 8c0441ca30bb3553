// Package query serves account reads from the Redis view cache, falling back
// to the write store, and keeps the cache fresh by projecting the integration
// event stream.
package query

import (
	"context"

	"github.com/kestrelbank/ledger-service/internal/domain"
	"github.com/kestrelbank/ledger-service/internal/platform/redis"
)

// eventLog is the audit-read slice of the event store.
type eventLog interface {
	Events(ctx context.Context, accountID string) ([]domain.Event, error)
}

type AccountQueryService struct {
	repo  domain.AccountRepository
	views *redis.ViewCache[AccountView]
	log   eventLog
}

func NewAccountQueryService(repo domain.AccountRepository, views *redis.ViewCache[AccountView], log eventLog) *AccountQueryService {
	return &AccountQueryService{repo: repo, views: views, log: log}
}

// GetAccount returns the view for one account, cache first.
func (s *AccountQueryService) GetAccount(ctx context.Context, id string) (*AccountView, error) {
	if view, ok := s.views.Get(ctx, viewKey(id)); ok {
		return view, nil
	}
	account, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	view := NewAccountView(account)
	s.views.Set(ctx, viewKey(id), view)
	return view, nil
}

// ListEvents returns the durable event log of one account, oldest first. The
// account is resolved first so an unknown id reads as not-found rather than
// an empty history.
func (s *AccountQueryService) ListEvents(ctx context.Context, id string) ([]domain.Event, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return s.log.Events(ctx, id)
}

// FindByName returns the views of every account with the given display name.
// Name lookups are unbounded and rare, so they always go to the write store.
func (s *AccountQueryService) FindByName(ctx context.Context, name string) ([]AccountView, error) {
	accounts, err := s.repo.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	views := make([]AccountView, 0, len(accounts))
	for _, account := range accounts {
		views = append(views, *NewAccountView(account))
	}
	return views, nil
}

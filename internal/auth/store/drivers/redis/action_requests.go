// Package redis keeps short-lived records in the versioned cache.
package redis

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/authflow/internal/auth/cache"
	"github.com/aussiebroadwan/authflow/internal/auth/domain"
	"github.com/aussiebroadwan/authflow/internal/auth/store"
)

const (
	actionRequestType    = "ActionRequest"
	actionRequestVersion = 1
)

type ActionRequests struct {
	cache *cache.Versioned[domain.ActionRequestDTO]
	ttl   time.Duration
}

// NewActionRequests stores action requests on b, each living for ttl after
// its last write.
func NewActionRequests(b cache.Backend, ttl time.Duration) *ActionRequests {
	return &ActionRequests{
		cache: cache.NewVersioned(b, actionRequestType, actionRequestVersion,
			func(d *domain.ActionRequestDTO) string { return d.ID },
			cache.WithDefaultTTL(ttl),
		),
		ttl: ttl,
	}
}

func (r *ActionRequests) SaveActionRequest(ctx context.Context, ar *domain.ActionRequest) error {
	dto := ar.DTO()
	return r.cache.SetWithTTL(ctx, &dto, r.ttl)
}

func (r *ActionRequests) GetActionRequest(ctx context.Context, id string) (*domain.ActionRequest, error) {
	dto, err := r.cache.Get(ctx, id)
	if errors.Is(err, cache.ErrMiss) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return domain.ActionRequestFromDTO(*dto), nil
}

var _ store.ActionRequests = (*ActionRequests)(nil)

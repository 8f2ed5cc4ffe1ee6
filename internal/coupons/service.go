package coupons

import (
	"context"
	"fmt"

	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
)

type store interface {
	List(ctx context.Context) ([]Rule, error)
	Upsert(ctx context.Context, rule Rule) (Rule, error)
}

type invalidator interface {
	Invalidate(ctx context.Context, code string) error
}

// Service is the admin surface over stored coupons.
type Service interface {
	List(ctx context.Context) ([]Rule, error)
	Upsert(ctx context.Context, rule Rule) (Rule, error)
}

type service struct {
	store store
	cache invalidator
}

// NewService builds the admin service. cache may be nil when no cache fronts the store.
func NewService(store store, cache invalidator) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("coupon store required")
	}
	return &service{store: store, cache: cache}, nil
}

func (s *service) List(ctx context.Context) ([]Rule, error) {
	rules, err := s.store.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list coupons")
	}
	return rules, nil
}

func (s *service) Upsert(ctx context.Context, rule Rule) (Rule, error) {
	rule.Code = NormalizeCode(rule.Code)
	if err := rule.CheckWellFormed(); err != nil {
		return Rule{}, err
	}
	saved, err := s.store.Upsert(ctx, rule)
	if err != nil {
		return Rule{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save coupon")
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, saved.Code); err != nil {
			return saved, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "invalidate coupon cache")
		}
	}
	return saved, nil
}

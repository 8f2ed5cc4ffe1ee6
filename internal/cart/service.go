package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tourbook-backend/internal/coupons"
	"github.com/angelmondragon/tourbook-backend/pkg/db/models"
	"github.com/angelmondragon/tourbook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
	"github.com/angelmondragon/tourbook-backend/pkg/types"
)

// View is a cart with its current quote.
type View struct {
	Cart  Cart  `json:"cart"`
	Quote Quote `json:"quote"`
}

// AddItemInput is the shopper's request; the price is looked up, not supplied.
type AddItemInput struct {
	TourID    uuid.UUID
	StartDate types.Date
	Travelers int
}

// Service is the server-authoritative cart. Every mutation loads the active cart, runs
// Reduce and persists the result in one transaction.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*View, error)
	AddItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (*View, error)
	UpdateQuantity(ctx context.Context, userID, itemID uuid.UUID, travelers int) (*View, error)
	RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*View, error)
	ApplyCoupon(ctx context.Context, userID uuid.UUID, code string) (*View, error)
	Clear(ctx context.Context, userID uuid.UUID) (*View, error)
	Quote(ctx context.Context, c Cart) (Quote, error)
}

// ServiceParams wires the cart service.
type ServiceParams struct {
	Repo   CartRepository
	Tx     txRunner
	Prices PriceResolver
	Rules  coupons.RuleSet
	Clock  func() time.Time
}

type service struct {
	repo   CartRepository
	tx     txRunner
	prices PriceResolver
	rules  coupons.RuleSet
	now    func() time.Time
}

// NewService builds a cart service backed by the provided stack.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Prices == nil {
		return nil, fmt.Errorf("price resolver required")
	}
	if params.Rules == nil {
		return nil, fmt.Errorf("coupon rule set required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		repo:   params.Repo,
		tx:     params.Tx,
		prices: params.Prices,
		rules:  params.Rules,
		now:    clock,
	}, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*View, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id is required")
	}
	record, err := s.repo.FindActiveByUser(ctx, userID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	current := Cart{UserID: userID, Items: []Item{}}
	if record != nil {
		current = FromRecord(record)
	}
	return s.view(ctx, current)
}

func (s *service) AddItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (*View, error) {
	if input.Travelers < 1 {
		return nil, invalidQuantity(input.Travelers)
	}
	price, err := s.prices.DeparturePrice(ctx, input.TourID, input.StartDate)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, userID, AddItemAction(input.TourID, input.StartDate, input.Travelers, price))
}

func (s *service) UpdateQuantity(ctx context.Context, userID, itemID uuid.UUID, travelers int) (*View, error) {
	return s.mutate(ctx, userID, UpdateQuantityAction(itemID, travelers))
}

func (s *service) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*View, error) {
	return s.mutate(ctx, userID, RemoveItemAction(itemID))
}

func (s *service) ApplyCoupon(ctx context.Context, userID uuid.UUID, code string) (*View, error) {
	return s.mutate(ctx, userID, ApplyCouponAction(code))
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) (*View, error) {
	return s.mutate(ctx, userID, ClearAction())
}

func (s *service) Quote(ctx context.Context, c Cart) (Quote, error) {
	q, err := Price(ctx, c, s.rules, s.now())
	if err != nil {
		return Quote{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "price cart")
	}
	return q, nil
}

func (s *service) mutate(ctx context.Context, userID uuid.UUID, action Action) (*View, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id is required")
	}

	var next Cart
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		record, err := repo.FindActiveByUser(ctx, userID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		current := Cart{UserID: userID, Items: []Item{}}
		if record != nil {
			current = FromRecord(record)
		}

		next, err = Reduce(ctx, current, action, s.rules, s.now())
		if err != nil {
			return err
		}

		if record == nil {
			if action.Type == ActionClear {
				return nil
			}
			created, err := repo.Create(ctx, &models.CartRecord{UserID: userID, Status: enums.CartStatusActive})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
			}
			next.ID = created.ID
		}

		if err := repo.SaveCoupon(ctx, next.ID, couponPtr(next.CouponCode)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save coupon")
		}
		if err := repo.ReplaceItems(ctx, next.ID, toItemRows(next)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart items")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.view(ctx, next)
}

func (s *service) view(ctx context.Context, c Cart) (*View, error) {
	q, err := s.Quote(ctx, c)
	if err != nil {
		return nil, err
	}
	return &View{Cart: c, Quote: q}, nil
}

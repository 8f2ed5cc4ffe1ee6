package storefront

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tourbook-backend/internal/cart"
	"github.com/angelmondragon/tourbook-backend/internal/coupons"
	"github.com/angelmondragon/tourbook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
	"github.com/angelmondragon/tourbook-backend/pkg/types"
)

// CartBackend is the server half of a dispatch. *Client implements it.
type CartBackend interface {
	Cart(ctx context.Context) (*cart.View, error)
	AddItem(ctx context.Context, tourID uuid.UUID, startDate types.Date, travelers int) (*cart.View, error)
	UpdateQuantity(ctx context.Context, itemID uuid.UUID, travelers int) (*cart.View, error)
	RemoveItem(ctx context.Context, itemID uuid.UUID) (*cart.View, error)
	ApplyCoupon(ctx context.Context, code string) (*cart.View, error)
	ClearCart(ctx context.Context) (*cart.View, error)
}

// State is what the UI renders. While Pending is set, Cart holds the tentative patch
// and Quote still describes the last confirmed cart.
type State struct {
	Cart    cart.Cart  `json:"cart"`
	Quote   cart.Quote `json:"quote"`
	Pending bool       `json:"pending"`
}

// CartStore owns the shopper's cart on the client. Dispatches run one at a time.
type CartStore struct {
	backend CartBackend
	now     func() time.Time

	dispatchMu sync.Mutex

	mu    sync.RWMutex
	state State
}

func NewCartStore(backend CartBackend) *CartStore {
	return &CartStore{backend: backend, now: time.Now}
}

func (s *CartStore) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.state
	out.Cart = s.state.Cart.Clone()
	return out
}

// Load replaces local state with the server cart.
func (s *CartStore) Load(ctx context.Context) (State, error) {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	view, err := s.backend.Cart(ctx)
	if err != nil {
		return s.State(), err
	}
	s.confirm(view)
	return s.State(), nil
}

// Dispatch applies action locally, sends it to the server, then either adopts the
// server cart or rolls back to the state before the patch. A local validation failure
// returns immediately without contacting the server.
func (s *CartStore) Dispatch(ctx context.Context, action cart.Action) (State, error) {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	s.mu.Lock()
	base := s.state
	base.Cart = s.state.Cart.Clone()
	tentative, err := cart.Reduce(ctx, base.Cart, localAction(base.Cart, action), provisionalRules{}, s.now())
	if err != nil {
		s.mu.Unlock()
		return s.State(), err
	}
	s.state.Cart = tentative
	s.state.Pending = true
	s.mu.Unlock()

	view, err := s.send(ctx, action)
	if err != nil {
		s.mu.Lock()
		s.state = base
		s.mu.Unlock()
		return s.State(), err
	}
	s.confirm(view)
	return s.State(), nil
}

func (s *CartStore) send(ctx context.Context, action cart.Action) (*cart.View, error) {
	switch action.Type {
	case cart.ActionAddItem:
		return s.backend.AddItem(ctx, action.TourID, action.StartDate, action.Travelers)
	case cart.ActionUpdateQuantity:
		return s.backend.UpdateQuantity(ctx, action.ItemID, action.Travelers)
	case cart.ActionRemoveItem:
		return s.backend.RemoveItem(ctx, action.ItemID)
	case cart.ActionApplyCoupon:
		return s.backend.ApplyCoupon(ctx, action.Code)
	case cart.ActionClear:
		return s.backend.ClearCart(ctx)
	}
	return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown cart action %q", action.Type))
}

func (s *CartStore) confirm(view *cart.View) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = State{Cart: view.Cart.Clone(), Quote: view.Quote}
}

// localAction fills the price currency for a tentative add; the server prices the line.
func localAction(c cart.Cart, action cart.Action) cart.Action {
	if action.Type == cart.ActionAddItem && action.Price.Currency == "" {
		action.Price.Currency = c.Currency()
	}
	return action
}

// provisionalRules accepts any code as a zero discount so a coupon shows as pending
// locally. The server decides whether it applies.
type provisionalRules struct{}

func (provisionalRules) Resolve(_ context.Context, code string) (coupons.Rule, error) {
	return coupons.Rule{
		Code:   coupons.NormalizeCode(code),
		Kind:   enums.DiscountKindPercentage,
		Active: true,
	}, nil
}

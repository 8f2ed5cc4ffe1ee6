package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tourbook-backend/internal/coupons"
	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
	"github.com/angelmondragon/tourbook-backend/pkg/types"
)

// ActionType names a structural cart mutation.
type ActionType string

const (
	ActionAddItem        ActionType = "ADD_ITEM"
	ActionUpdateQuantity ActionType = "UPDATE_QUANTITY"
	ActionRemoveItem     ActionType = "REMOVE_ITEM"
	ActionApplyCoupon    ActionType = "APPLY_COUPON"
	ActionClear          ActionType = "CLEAR"
)

// Action is one mutation. Only the fields its Type reads are set.
type Action struct {
	Type      ActionType  `json:"type"`
	ItemID    uuid.UUID   `json:"item_id,omitempty"`
	TourID    uuid.UUID   `json:"tour_id,omitempty"`
	StartDate types.Date  `json:"start_date"`
	Travelers int         `json:"travelers,omitempty"`
	Price     types.Money `json:"price"`
	Code      string      `json:"code,omitempty"`
}

func AddItemAction(tourID uuid.UUID, startDate types.Date, travelers int, price types.Money) Action {
	return Action{Type: ActionAddItem, TourID: tourID, StartDate: startDate, Travelers: travelers, Price: price}
}

func UpdateQuantityAction(itemID uuid.UUID, travelers int) Action {
	return Action{Type: ActionUpdateQuantity, ItemID: itemID, Travelers: travelers}
}

func RemoveItemAction(itemID uuid.UUID) Action {
	return Action{Type: ActionRemoveItem, ItemID: itemID}
}

func ApplyCouponAction(code string) Action {
	return Action{Type: ActionApplyCoupon, Code: code}
}

func ClearAction() Action {
	return Action{Type: ActionClear}
}

// Reduce applies action to state. On error the returned cart is state, unchanged.
func Reduce(ctx context.Context, state Cart, action Action, rules coupons.RuleSet, now time.Time) (Cart, error) {
	switch action.Type {
	case ActionAddItem:
		return AddItem(state, action.TourID, action.StartDate, action.Travelers, action.Price)
	case ActionUpdateQuantity:
		return UpdateItemQuantity(state, action.ItemID, action.Travelers)
	case ActionRemoveItem:
		return RemoveItem(state, action.ItemID)
	case ActionApplyCoupon:
		return ApplyCoupon(ctx, state, action.Code, rules, now)
	case ActionClear:
		return Clear(state), nil
	}
	return state, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown cart action %q", action.Type))
}

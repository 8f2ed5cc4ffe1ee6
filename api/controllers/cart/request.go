package cart

import (
	cartdto "github.com/angelmondragon/tourbook-backend/api/controllers/cart/dto"
	cartsvc "github.com/angelmondragon/tourbook-backend/internal/cart"
	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
	"github.com/angelmondragon/tourbook-backend/pkg/types"
)

func toAddItemInput(payload cartdto.AddItemRequest) (cartsvc.AddItemInput, error) {
	date, err := types.ParseDate(payload.StartDate)
	if err != nil {
		return cartsvc.AddItemInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid start_date")
	}
	return cartsvc.AddItemInput{
		TourID:    payload.TourID,
		StartDate: date,
		Travelers: *payload.Travelers,
	}, nil
}

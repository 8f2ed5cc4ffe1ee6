package cartdto

import "github.com/google/uuid"

// AddItemRequest adds travelers for one tour departure. Travelers is a pointer so zero
// reaches the pricing engine and fails as INVALID_QUANTITY rather than a missing field.
// The max tag only bounds the value to the int32 storage column; the per-line cap is
// enforced by the engine.
type AddItemRequest struct {
	TourID    uuid.UUID `json:"tour_id" validate:"required"`
	StartDate string    `json:"start_date" validate:"required,datetime=2006-01-02"`
	Travelers *int      `json:"travelers" validate:"required,max=2147483647"`
}

// UpdateItemRequest sets the traveler count on an existing line.
type UpdateItemRequest struct {
	Travelers *int `json:"travelers" validate:"required,max=2147483647"`
}

// ApplyCouponRequest carries the code typed by the shopper.
type ApplyCouponRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}

package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tourbook-backend/internal/availability"
	"github.com/angelmondragon/tourbook-backend/internal/cart"
	"github.com/angelmondragon/tourbook-backend/internal/coupons"
	"github.com/angelmondragon/tourbook-backend/internal/tours"
	"github.com/angelmondragon/tourbook-backend/pkg/db/models"
	"github.com/angelmondragon/tourbook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
	"github.com/angelmondragon/tourbook-backend/pkg/logger"
	"github.com/angelmondragon/tourbook-backend/pkg/pagination"
	"github.com/angelmondragon/tourbook-backend/pkg/types"
)

// Service commits carts into bookings. The seat decrement here is the only authoritative
// availability check; cached client counts are never trusted.
type Service interface {
	Commit(ctx context.Context, userID uuid.UUID) (*Receipt, error)
	List(ctx context.Context, userID uuid.UUID, params pagination.Params) (*Page, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams wires the booking service.
type ServiceParams struct {
	Tx       txRunner
	Carts    cart.CartRepository
	Tours    *tours.Repository
	Bookings *Repository
	Rules    coupons.RuleSet
	Notifier availability.ChangeNotifier
	Clock    func() time.Time
	Logger   *logger.Logger
}

type service struct {
	tx       txRunner
	carts    cart.CartRepository
	tours    *tours.Repository
	bookings *Repository
	rules    coupons.RuleSet
	notifier availability.ChangeNotifier
	now      func() time.Time
	logg     *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Carts == nil:
		return nil, fmt.Errorf("cart repository required")
	case params.Tours == nil:
		return nil, fmt.Errorf("tour repository required")
	case params.Bookings == nil:
		return nil, fmt.Errorf("booking repository required")
	case params.Rules == nil:
		return nil, fmt.Errorf("coupon rule set required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		tx:       params.Tx,
		carts:    params.Carts,
		tours:    params.Tours,
		bookings: params.Bookings,
		rules:    params.Rules,
		notifier: params.Notifier,
		now:      clock,
		logg:     logg,
	}, nil
}

// Commit converts the user's active cart into bookings in one transaction. Any line whose
// departure lacks the seats fails the whole commit with CodeConflict.
func (s *service) Commit(ctx context.Context, userID uuid.UUID) (*Receipt, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id is required")
	}
	ctx = s.logg.WithUserID(ctx, userID.String())
	now := s.now()

	var (
		receipt Receipt
		current cart.Cart
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		carts := s.carts.WithTx(tx)
		record, err := carts.FindActiveByUser(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		current = cart.FromRecord(record)
		if len(current.Items) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}

		quote, err := cart.Price(ctx, current, s.rules, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "price cart")
		}
		receipt.Quote = quote

		seats := s.tours.WithTx(tx)
		for _, item := range current.Items {
			rows, err := seats.DecrementSeats(ctx, item.TourID, item.StartDate, item.Travelers)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve seats")
			}
			if rows == 0 {
				return pkgerrors.New(pkgerrors.CodeConflict,
					fmt.Sprintf("not enough seats left on %s for %d travelers", item.StartDate, item.Travelers)).
					WithDetails(map[string]any{
						"item_id":    item.ID.String(),
						"tour_id":    item.TourID.String(),
						"start_date": item.StartDate.String(),
						"travelers":  item.Travelers,
					})
			}
		}

		rows := s.bookingRows(current, quote, now)
		if err := s.bookings.WithTx(tx).CreateAll(ctx, rows); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create bookings")
		}
		if err := carts.UpdateStatus(ctx, current.ID, userID, enums.CartStatusConverted); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeConflict, "cart was already checked out")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "close cart")
		}
		receipt.Bookings = make([]Booking, 0, len(rows))
		for _, row := range rows {
			receipt.Bookings = append(receipt.Bookings, fromModel(row))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"cart_id":  current.ID.String(),
		"bookings": len(receipt.Bookings),
		"total":    receipt.Quote.Total.StringFixed(2),
	}), "bookings.committed")
	s.announce(ctx, current, now)
	return &receipt, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, params pagination.Params) (*Page, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id is required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor").
			WithDetails(map[string]any{"field": "cursor"})
	}
	rows, err := s.bookings.ListByUser(ctx, userID, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list bookings")
	}

	rows, next := pagination.Trim(rows, params.Limit, func(b models.Booking) pagination.Cursor {
		return pagination.Cursor{CreatedAt: b.CreatedAt, ID: b.ID}
	})
	page := &Page{Bookings: make([]Booking, 0, len(rows)), NextCursor: next}
	for _, row := range rows {
		page.Bookings = append(page.Bookings, fromModel(row))
	}
	return page, nil
}

func (s *service) bookingRows(c cart.Cart, quote cart.Quote, now time.Time) []models.Booking {
	var coupon *string
	if quote.CouponStatus == cart.CouponStatusApplied {
		code := quote.CouponCode
		coupon = &code
	}
	shares := splitDiscount(c.Items, quote.Subtotal, quote.Discount)
	rows := make([]models.Booking, 0, len(c.Items))
	for i, item := range c.Items {
		rows = append(rows, models.Booking{
			ID:            uuid.New(),
			UserID:        c.UserID,
			CartID:        c.ID,
			TourID:        item.TourID,
			DepartureDate: item.StartDate,
			Travelers:     item.Travelers,
			UnitPrice:     item.Price.Amount,
			Currency:      enums.Currency(item.Price.Currency),
			CouponCode:    coupon,
			Discount:      shares[i],
			Status:        enums.BookingStatusConfirmed,
			CreatedAt:     now.UTC(),
		})
	}
	return rows
}

// announce tells the availability channel which tours moved. It is informational, so
// failures are only logged.
func (s *service) announce(ctx context.Context, c cart.Cart, now time.Time) {
	if s.notifier == nil {
		return
	}
	dates := make(map[uuid.UUID][]types.Date)
	var order []uuid.UUID
	for _, item := range c.Items {
		if _, seen := dates[item.TourID]; !seen {
			order = append(order, item.TourID)
		}
		dates[item.TourID] = append(dates[item.TourID], item.StartDate)
	}
	for _, tourID := range order {
		evt := availability.NewSeatsChanged(tourID, dates[tourID], now)
		if err := s.notifier.SeatsChanged(ctx, evt); err != nil {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"tour_id": tourID.String(),
				"error":   err.Error(),
			}), "bookings.announce_failed")
		}
	}
}

package cart

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/tourbook-backend/pkg/db/dbtest"
	"github.com/angelmondragon/tourbook-backend/pkg/db/models"
	"github.com/angelmondragon/tourbook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
	"github.com/angelmondragon/tourbook-backend/pkg/types"
)

type stubPrices struct {
	prices map[uuid.UUID]types.Money
	err    error
}

func (s stubPrices) DeparturePrice(_ context.Context, tourID uuid.UUID, _ types.Date) (types.Money, error) {
	if s.err != nil {
		return types.Money{}, s.err
	}
	price, ok := s.prices[tourID]
	if !ok {
		return types.Money{}, pkgerrors.New(pkgerrors.CodeNotFound, "tour not found")
	}
	return price, nil
}

type serviceFixture struct {
	svc    Service
	repo   *Repository
	userID uuid.UUID
	tourA  uuid.UUID
	tourB  uuid.UUID
}

func newServiceFixture(t *testing.T) serviceFixture {
	t.Helper()
	client, conn := dbtest.OpenClient(t)
	repo := NewRepository(conn)
	f := serviceFixture{repo: repo, userID: uuid.New(), tourA: uuid.New(), tourB: uuid.New()}

	svc, err := NewService(ServiceParams{
		Repo: repo,
		Tx:   client,
		Prices: stubPrices{prices: map[uuid.UUID]types.Money{
			f.tourA: usd("100"),
			f.tourB: usd("250"),
		}},
		Rules: defaultRules(t),
		Clock: func() time.Time { return testNow },
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func TestServiceGetWithoutCartReturnsEmptyView(t *testing.T) {
	f := newServiceFixture(t)
	view, err := f.svc.Get(context.Background(), f.userID)
	require.NoError(t, err)
	assert.Empty(t, view.Cart.Items)
	assert.True(t, view.Quote.Total.IsZero())
	assert.Equal(t, CouponStatusNone, view.Quote.CouponStatus)
}

func TestServiceRejectsAnonymousUser(t *testing.T) {
	f := newServiceFixture(t)
	_, err := f.svc.Get(context.Background(), uuid.Nil)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
	_, err = f.svc.Clear(context.Background(), uuid.Nil)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}

func TestServiceAddItemPersistsAndMerges(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	view, err := f.svc.AddItem(ctx, f.userID, AddItemInput{TourID: f.tourA, StartDate: julyFirst, Travelers: 2})
	require.NoError(t, err)
	require.Len(t, view.Cart.Items, 1)
	require.NotEqual(t, uuid.Nil, view.Cart.ID)

	_, err = f.svc.AddItem(ctx, f.userID, AddItemInput{TourID: f.tourA, StartDate: julyFirst, Travelers: 1})
	require.NoError(t, err)
	view, err = f.svc.AddItem(ctx, f.userID, AddItemInput{TourID: f.tourB, StartDate: julyTenth, Travelers: 1})
	require.NoError(t, err)

	stored, err := f.svc.Get(ctx, f.userID)
	require.NoError(t, err)
	require.Len(t, stored.Cart.Items, 2)
	assert.Equal(t, view.Cart.ID, stored.Cart.ID)
	assert.Equal(t, f.tourA, stored.Cart.Items[0].TourID)
	assert.Equal(t, 3, stored.Cart.Items[0].Travelers)
	assert.Equal(t, julyFirst, stored.Cart.Items[0].StartDate)
	assert.True(t, stored.Quote.Subtotal.Equal(dec("550")), "got %s", stored.Quote.Subtotal)
	assert.Equal(t, "USD", stored.Quote.Currency)
}

func TestServiceAddItemPropagatesPriceErrors(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	_, err := f.svc.AddItem(ctx, f.userID, AddItemInput{TourID: uuid.New(), StartDate: julyFirst, Travelers: 1})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.AddItem(ctx, f.userID, AddItemInput{TourID: f.tourA, StartDate: julyFirst, Travelers: 0})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidQuantity))

	view, err := f.svc.Get(ctx, f.userID)
	require.NoError(t, err)
	assert.Empty(t, view.Cart.Items)
}

func TestServiceFailedMutationKeepsStoredCart(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	view, err := f.svc.AddItem(ctx, f.userID, AddItemInput{TourID: f.tourA, StartDate: julyFirst, Travelers: 2})
	require.NoError(t, err)
	itemID := view.Cart.Items[0].ID

	_, err = f.svc.UpdateQuantity(ctx, f.userID, itemID, 0)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidQuantity))

	stored, err := f.svc.Get(ctx, f.userID)
	require.NoError(t, err)
	require.Len(t, stored.Cart.Items, 1)
	assert.Equal(t, 2, stored.Cart.Items[0].Travelers)

	updated, err := f.svc.UpdateQuantity(ctx, f.userID, itemID, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, updated.Cart.Items[0].Travelers)
}

func TestServiceRemoveItemTwice(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	view, err := f.svc.AddItem(ctx, f.userID, AddItemInput{TourID: f.tourA, StartDate: julyFirst, Travelers: 2})
	require.NoError(t, err)
	itemID := view.Cart.Items[0].ID

	view, err = f.svc.RemoveItem(ctx, f.userID, itemID)
	require.NoError(t, err)
	assert.Empty(t, view.Cart.Items)

	_, err = f.svc.RemoveItem(ctx, f.userID, itemID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeItemNotFound))
}

func TestServiceCouponLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	view, err := f.svc.AddItem(ctx, f.userID, AddItemInput{TourID: f.tourA, StartDate: julyFirst, Travelers: 4})
	require.NoError(t, err)

	_, err = f.svc.ApplyCoupon(ctx, f.userID, "FIXED50")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeMinimumPurchaseNotMet))

	_, err = f.svc.AddItem(ctx, f.userID, AddItemInput{TourID: f.tourB, StartDate: julyTenth, Travelers: 1})
	require.NoError(t, err)

	view, err = f.svc.ApplyCoupon(ctx, f.userID, " fixed50 ")
	require.NoError(t, err)
	assert.Equal(t, "FIXED50", view.Cart.CouponCode)
	assert.Equal(t, CouponStatusApplied, view.Quote.CouponStatus)
	assert.True(t, view.Quote.Total.Equal(dec("600")))

	// dropping the 250 line takes the subtotal to 400
	view, err = f.svc.RemoveItem(ctx, f.userID, view.Cart.Items[1].ID)
	require.NoError(t, err)
	assert.Equal(t, CouponStatusInert, view.Quote.CouponStatus)
	assert.True(t, view.Quote.Total.Equal(dec("400")))

	stored, err := f.svc.Get(ctx, f.userID)
	require.NoError(t, err)
	assert.Equal(t, "FIXED50", stored.Cart.CouponCode)

	cleared, err := f.svc.Clear(ctx, f.userID)
	require.NoError(t, err)
	assert.Empty(t, cleared.Cart.Items)
	assert.Empty(t, cleared.Cart.CouponCode)

	stored, err = f.svc.Get(ctx, f.userID)
	require.NoError(t, err)
	assert.Empty(t, stored.Cart.Items)
	assert.Empty(t, stored.Cart.CouponCode)
}

func TestServiceApplyCouponOnNewCartCreatesRecord(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	view, err := f.svc.ApplyCoupon(ctx, f.userID, "welcome10")
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, view.Cart.ID)

	record, err := f.repo.FindActiveByUser(ctx, f.userID)
	require.NoError(t, err)
	require.NotNil(t, record.CouponCode)
	assert.Equal(t, "WELCOME10", *record.CouponCode)
}

func TestServiceClearWithoutCartDoesNotCreateOne(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	_, err := f.svc.Clear(ctx, f.userID)
	require.NoError(t, err)

	_, err = f.repo.FindActiveByUser(ctx, f.userID)
	require.Error(t, err)
}

func TestServiceIgnoresConvertedCarts(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	view, err := f.svc.AddItem(ctx, f.userID, AddItemInput{TourID: f.tourA, StartDate: julyFirst, Travelers: 1})
	require.NoError(t, err)
	require.NoError(t, f.repo.UpdateStatus(ctx, view.Cart.ID, f.userID, enums.CartStatusConverted))
	assert.ErrorIs(t, f.repo.UpdateStatus(ctx, view.Cart.ID, f.userID, enums.CartStatusConverted), gorm.ErrRecordNotFound)
	assert.Error(t, f.repo.UpdateStatus(ctx, view.Cart.ID, f.userID, enums.CartStatusActive))

	fresh, err := f.svc.Get(ctx, f.userID)
	require.NoError(t, err)
	assert.Empty(t, fresh.Cart.Items)

	next, err := f.svc.AddItem(ctx, f.userID, AddItemInput{TourID: f.tourB, StartDate: julyTenth, Travelers: 1})
	require.NoError(t, err)
	assert.NotEqual(t, view.Cart.ID, next.Cart.ID)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}

func TestRepositoryReplaceItemsOrdersByPosition(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	userID := uuid.New()

	record, err := repo.Create(ctx, &models.CartRecord{UserID: userID})
	require.NoError(t, err)

	c := Cart{ID: record.ID, UserID: userID}
	c = mustAdd(t, c, uuid.New(), julyTenth, 1, usd("10"))
	c = mustAdd(t, c, uuid.New(), julyFirst, 2, usd("20"))
	c = mustAdd(t, c, uuid.New(), julyFirst, 3, usd("30"))
	require.NoError(t, repo.ReplaceItems(ctx, record.ID, toItemRows(c)))

	loaded, err := repo.FindActiveByUser(ctx, userID)
	require.NoError(t, err)
	got := FromRecord(loaded)
	require.Len(t, got.Items, 3)
	for i := range c.Items {
		assert.Equal(t, c.Items[i].ID, got.Items[i].ID)
		assert.Equal(t, c.Items[i].Travelers, got.Items[i].Travelers)
		assert.True(t, c.Items[i].Price.Amount.Equal(got.Items[i].Price.Amount))
	}

	require.NoError(t, repo.ReplaceItems(ctx, record.ID, nil))
	loaded, err = repo.FindActiveByUser(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, loaded.Items)
}

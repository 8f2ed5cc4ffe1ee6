package cart

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tourbook-backend/internal/coupons"
	"github.com/angelmondragon/tourbook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
	"github.com/angelmondragon/tourbook-backend/pkg/types"
)

var (
	testNow   = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	julyFirst = types.MustParseDate("2024-07-01")
	julyTenth = types.MustParseDate("2024-07-10")
)

var cartCmp = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func usd(v string) types.Money { return types.NewMoney(dec(v), "USD") }

func defaultRules(t *testing.T) coupons.RuleSet {
	t.Helper()
	set, err := coupons.NewStaticRuleSet(coupons.DefaultRules()...)
	require.NoError(t, err)
	return set
}

func mustAdd(t *testing.T, c Cart, tourID uuid.UUID, date types.Date, travelers int, price types.Money) Cart {
	t.Helper()
	next, err := AddItem(c, tourID, date, travelers, price)
	require.NoError(t, err)
	return next
}

func TestEmptyCartPricesToZero(t *testing.T) {
	rules := defaultRules(t)
	empty := Cart{}

	assert.True(t, ComputeSubtotal(empty).IsZero())
	total, err := ComputeTotal(context.Background(), empty, rules, testNow)
	require.NoError(t, err)
	assert.True(t, total.IsZero())
}

func TestTotalWithoutCouponEqualsSubtotal(t *testing.T) {
	c := mustAdd(t, Cart{}, uuid.New(), julyFirst, 2, usd("149.99"))
	c = mustAdd(t, c, uuid.New(), julyTenth, 1, usd("80"))

	total, err := ComputeTotal(context.Background(), c, defaultRules(t), testNow)
	require.NoError(t, err)
	assert.True(t, total.Equal(ComputeSubtotal(c)))
	assert.True(t, ComputeSubtotal(c).Equal(dec("379.98")))
}

func TestTotalNeverExceedsSubtotal(t *testing.T) {
	set, err := coupons.NewStaticRuleSet(
		coupons.Rule{Code: "HALF", Kind: enums.DiscountKindPercentage, Value: dec("0.5"), Active: true},
		coupons.Rule{Code: "ALL", Kind: enums.DiscountKindPercentage, Value: dec("1"), Active: true},
		coupons.Rule{Code: "BIG", Kind: enums.DiscountKindFixed, Value: dec("10000"), Active: true},
		coupons.Rule{Code: "ZERO", Kind: enums.DiscountKindFixed, Value: dec("0"), Active: true},
	)
	require.NoError(t, err)

	for _, code := range []string{"HALF", "ALL", "BIG", "ZERO", "MISSING"} {
		for _, price := range []string{"0", "0.01", "99.99", "1234.56"} {
			c := mustAdd(t, Cart{}, uuid.New(), julyFirst, 3, usd(price))
			c.CouponCode = code
			q, err := Price(context.Background(), c, set, testNow)
			require.NoError(t, err)
			assert.Truef(t, q.Total.LessThanOrEqual(q.Subtotal), "%s on %s", code, price)
			assert.False(t, q.Total.IsNegative())
			assert.False(t, q.Discount.IsNegative())
			assert.True(t, q.Subtotal.Sub(q.Discount).Equal(q.Total))
		}
	}
}

func TestPercentageCouponIsExact(t *testing.T) {
	set, err := coupons.NewStaticRuleSet(coupons.Rule{Code: "TWENTY", Kind: enums.DiscountKindPercentage, Value: dec("0.2"), Active: true})
	require.NoError(t, err)

	c := mustAdd(t, Cart{}, uuid.New(), julyFirst, 1, usd("123.45"))
	c, err = ApplyCoupon(context.Background(), c, "twenty", set, testNow)
	require.NoError(t, err)

	total, err := ComputeTotal(context.Background(), c, set, testNow)
	require.NoError(t, err)
	assert.True(t, total.Equal(dec("98.76")), "got %s", total)
}

func TestPercentageCouponKeepsSubCentPrecision(t *testing.T) {
	set, err := coupons.NewStaticRuleSet(coupons.Rule{Code: "FIFTEEN", Kind: enums.DiscountKindPercentage, Value: dec("0.15"), Active: true})
	require.NoError(t, err)

	c := mustAdd(t, Cart{}, uuid.New(), julyFirst, 1, usd("100.01"))
	c, err = ApplyCoupon(context.Background(), c, "FIFTEEN", set, testNow)
	require.NoError(t, err)

	q, err := Price(context.Background(), c, set, testNow)
	require.NoError(t, err)
	assert.True(t, q.Total.Equal(dec("85.0085")), "got %s", q.Total)
	assert.True(t, q.Discount.Equal(dec("15.0015")), "got %s", q.Discount)
	assert.True(t, q.Subtotal.Sub(q.Discount).Equal(q.Total))
}

func TestFixedCouponLargerThanSubtotalYieldsZero(t *testing.T) {
	set, err := coupons.NewStaticRuleSet(coupons.Rule{Code: "TAKE50", Kind: enums.DiscountKindFixed, Value: dec("50"), Active: true})
	require.NoError(t, err)

	c := mustAdd(t, Cart{}, uuid.New(), julyFirst, 1, usd("20"))
	c, err = ApplyCoupon(context.Background(), c, "TAKE50", set, testNow)
	require.NoError(t, err)

	q, err := Price(context.Background(), c, set, testNow)
	require.NoError(t, err)
	assert.True(t, q.Total.IsZero())
	assert.True(t, q.Discount.Equal(dec("20")))
}

func TestWelcome10Scenario(t *testing.T) {
	rules := defaultRules(t)
	c := mustAdd(t, Cart{}, uuid.New(), julyFirst, 3, usd("100"))
	require.True(t, ComputeSubtotal(c).Equal(dec("300")))

	c, err := ApplyCoupon(context.Background(), c, "WELCOME10", rules, testNow)
	require.NoError(t, err)

	total, err := ComputeTotal(context.Background(), c, rules, testNow)
	require.NoError(t, err)
	discount, err := ComputeDiscount(context.Background(), c, rules, testNow)
	require.NoError(t, err)
	assert.True(t, total.Equal(dec("270")), "total %s", total)
	assert.True(t, discount.Equal(dec("30")), "discount %s", discount)
}

func TestFixed50BelowMinimumScenario(t *testing.T) {
	rules := defaultRules(t)
	c := mustAdd(t, Cart{}, uuid.New(), julyFirst, 4, usd("100"))

	next, err := ApplyCoupon(context.Background(), c, "FIXED50", rules, testNow)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeMinimumPurchaseNotMet), "got %v", err)
	assert.Empty(t, next.CouponCode)

	// a cart already carrying the code stays at the subtotal
	c.CouponCode = "FIXED50"
	q, err := Price(context.Background(), c, rules, testNow)
	require.NoError(t, err)
	assert.True(t, q.Total.Equal(dec("400")))
	assert.True(t, q.Discount.IsZero())
	assert.Equal(t, CouponStatusInert, q.CouponStatus)
	assert.Contains(t, q.CouponMessage, "500.00")
}

func TestCouponRevalidatedAfterItemsChange(t *testing.T) {
	rules := defaultRules(t)
	keep := uuid.New()
	c := mustAdd(t, Cart{}, keep, julyFirst, 4, usd("100"))
	c = mustAdd(t, c, uuid.New(), julyTenth, 2, usd("100"))

	c, err := ApplyCoupon(context.Background(), c, "fixed50", rules, testNow)
	require.NoError(t, err)
	assert.Equal(t, "FIXED50", c.CouponCode)

	q, err := Price(context.Background(), c, rules, testNow)
	require.NoError(t, err)
	assert.Equal(t, CouponStatusApplied, q.CouponStatus)
	assert.True(t, q.Total.Equal(dec("550")))

	c, err = RemoveItem(c, c.Items[1].ID)
	require.NoError(t, err)

	q, err = Price(context.Background(), c, rules, testNow)
	require.NoError(t, err)
	assert.Equal(t, "FIXED50", q.CouponCode)
	assert.Equal(t, CouponStatusInert, q.CouponStatus)
	assert.True(t, q.Total.Equal(dec("400")))
}

func TestExpiredCouponRejectedAndInertAtReadTime(t *testing.T) {
	expires := testNow.Add(24 * time.Hour)
	set, err := coupons.NewStaticRuleSet(coupons.Rule{Code: "FLASH", Kind: enums.DiscountKindPercentage, Value: dec("0.25"), Active: true, ExpiresAt: &expires})
	require.NoError(t, err)

	c := mustAdd(t, Cart{}, uuid.New(), julyFirst, 1, usd("100"))
	c, err = ApplyCoupon(context.Background(), c, "FLASH", set, testNow)
	require.NoError(t, err)

	later := testNow.Add(48 * time.Hour)
	q, err := Price(context.Background(), c, set, later)
	require.NoError(t, err)
	assert.Equal(t, CouponStatusInert, q.CouponStatus)
	assert.True(t, q.Total.Equal(dec("100")))

	_, err = ApplyCoupon(context.Background(), c, "FLASH", set, later)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeCouponExpired))
}

func TestApplyCouponUnknownCode(t *testing.T) {
	c := mustAdd(t, Cart{}, uuid.New(), julyFirst, 1, usd("100"))
	next, err := ApplyCoupon(context.Background(), c, "NOPE", defaultRules(t), testNow)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeCouponNotFound))
	assert.Empty(t, cmp.Diff(c, next, cartCmp))
}

func TestApplyCouponReplacesPreviousCode(t *testing.T) {
	rules := defaultRules(t)
	c := mustAdd(t, Cart{}, uuid.New(), julyFirst, 6, usd("100"))
	c, err := ApplyCoupon(context.Background(), c, "WELCOME10", rules, testNow)
	require.NoError(t, err)
	c, err = ApplyCoupon(context.Background(), c, "FIXED50", rules, testNow)
	require.NoError(t, err)
	assert.Equal(t, "FIXED50", c.CouponCode)
}

func TestAddItemMergesSameTourAndDate(t *testing.T) {
	tourID := uuid.New()
	c := mustAdd(t, Cart{}, tourID, julyFirst, 2, usd("100"))
	c = mustAdd(t, c, tourID, julyFirst, 3, usd("120"))
	c = mustAdd(t, c, tourID, julyTenth, 1, usd("100"))

	require.Len(t, c.Items, 2)
	assert.Equal(t, 5, c.Items[0].Travelers)
	assert.True(t, c.Items[0].Price.Amount.Equal(dec("100")), "merged line keeps its snapshot")
	assert.Equal(t, julyTenth, c.Items[1].StartDate)
}

func TestAddItemMergeRespectsTravelerCap(t *testing.T) {
	tourID := uuid.New()
	c := mustAdd(t, Cart{}, tourID, julyFirst, MaxTravelers, usd("100"))
	before := c.Clone()

	next, err := AddItem(c, tourID, julyFirst, 2, usd("100"))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidQuantity), "got %v", err)
	assert.Empty(t, cmp.Diff(before, next, cartCmp))
	assert.Equal(t, MaxTravelers, c.Items[0].Travelers)
	assert.False(t, ComputeSubtotal(next).IsNegative())

	_, err = AddItem(Cart{}, tourID, julyFirst, int(^uint(0)>>1), usd("100"))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidQuantity))

	_, err = UpdateItemQuantity(c, c.Items[0].ID, MaxTravelers+1)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidQuantity))
}

func TestAddItemValidation(t *testing.T) {
	c := mustAdd(t, Cart{}, uuid.New(), julyFirst, 1, usd("100"))

	_, err := AddItem(c, uuid.New(), julyFirst, 0, usd("100"))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidQuantity))

	_, err = AddItem(c, uuid.New(), julyFirst, 1, types.NewMoney(dec("90"), "EUR"))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = AddItem(c, uuid.Nil, julyFirst, 1, usd("100"))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = AddItem(c, uuid.New(), types.Date{}, 1, usd("100"))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestUpdateQuantityZeroLeavesCartUnchanged(t *testing.T) {
	c := mustAdd(t, Cart{}, uuid.New(), julyFirst, 2, usd("100"))
	before := c.Clone()

	next, err := UpdateItemQuantity(c, c.Items[0].ID, 0)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidQuantity))
	assert.Empty(t, cmp.Diff(before, next, cartCmp))
	assert.Empty(t, cmp.Diff(before, c, cartCmp))

	_, err = UpdateItemQuantity(c, uuid.New(), 2)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeItemNotFound))

	updated, err := UpdateItemQuantity(c, c.Items[0].ID, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, updated.Items[0].Travelers)
	assert.Equal(t, 2, c.Items[0].Travelers, "input cart must not be modified")
}

func TestRemoveItemTwiceFailsSecondTime(t *testing.T) {
	c := mustAdd(t, Cart{}, uuid.New(), julyFirst, 2, usd("100"))
	c = mustAdd(t, c, uuid.New(), julyTenth, 1, usd("50"))
	target := c.Items[0].ID

	removed, err := RemoveItem(c, target)
	require.NoError(t, err)
	require.Len(t, removed.Items, 1)
	require.Len(t, c.Items, 2, "input cart must not be modified")

	again, err := RemoveItem(removed, target)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeItemNotFound))
	assert.Empty(t, cmp.Diff(removed, again, cartCmp))
}

func TestClearEmptiesItemsAndCoupon(t *testing.T) {
	c := mustAdd(t, Cart{ID: uuid.New()}, uuid.New(), julyFirst, 2, usd("100"))
	c.CouponCode = "WELCOME10"

	cleared := Clear(c)
	assert.Empty(t, cleared.Items)
	assert.Empty(t, cleared.CouponCode)
	assert.Equal(t, c.ID, cleared.ID)
	assert.Len(t, c.Items, 1)
}

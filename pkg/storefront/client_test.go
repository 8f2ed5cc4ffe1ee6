package storefront

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tourbook-backend/internal/availability"
	"github.com/angelmondragon/tourbook-backend/internal/cart"
	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
	"github.com/angelmondragon/tourbook-backend/pkg/types"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func sampleView() cart.View {
	return cart.View{
		Cart: cart.Cart{
			ID:     uuid.New(),
			UserID: uuid.New(),
			Items: []cart.Item{{
				ID:        uuid.New(),
				TourID:    uuid.New(),
				StartDate: types.MustParseDate("2024-07-01"),
				Travelers: 2,
				Price:     types.NewMoney(decimal.NewFromInt(150), "USD"),
			}},
		},
		Quote: cart.Quote{
			Currency:     "USD",
			Subtotal:     decimal.NewFromInt(300),
			Discount:     decimal.Zero,
			Total:        decimal.NewFromInt(300),
			CouponStatus: cart.CouponStatusNone,
		},
	}
}

func TestClientCartSendsTokenAndDecodesEnvelope(t *testing.T) {
	view := sampleView()
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth, gotPath = r.Header.Get("Authorization"), r.URL.Path
		writeJSON(w, http.StatusOK, map[string]any{"data": view})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL+"/", WithToken("tok"))
	require.NoError(t, err)

	got, err := client.Cart(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "/api/v1/cart", gotPath)
	require.Len(t, got.Cart.Items, 1)
	assert.True(t, got.Quote.Total.Equal(decimal.NewFromInt(300)))
	assert.Equal(t, "2024-07-01", got.Cart.Items[0].StartDate.String())
}

func TestClientAddItemPayload(t *testing.T) {
	tourID := uuid.New()
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))
		writeJSON(w, http.StatusOK, map[string]any{"data": sampleView()})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL)
	require.NoError(t, err)
	_, err = client.AddItem(context.Background(), tourID, types.MustParseDate("2024-07-10"), 3)
	require.NoError(t, err)

	assert.Equal(t, tourID.String(), body["tour_id"])
	assert.Equal(t, "2024-07-10", body["start_date"])
	assert.EqualValues(t, 3, body["travelers"])
}

func TestClientMapsErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/coupon") {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": map[string]any{
				"code":    "MINIMUM_PURCHASE_NOT_MET",
				"message": "add 100.00 more to use FIXED50",
				"details": map[string]any{"minimum_purchase": "500"},
			}})
			return
		}
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": map[string]any{
			"code":    "SESSION_EXPIRED",
			"message": "session expired",
		}})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL)
	require.NoError(t, err)

	_, err = client.ApplyCoupon(context.Background(), "FIXED50")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeMinimumPurchaseNotMet), "got %v", err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, "add 100.00 more to use FIXED50", typed.Message())
	assert.Equal(t, map[string]any{"minimum_purchase": "500"}, typed.Details())

	_, err = client.Cart(context.Background())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeSessionExpired), "got %v", err)
}

func TestClientNonEnvelopeErrorIsDependency(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL)
	require.NoError(t, err)
	_, err = client.Cart(context.Background())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency), "got %v", err)
}

func TestClientTransportFailureIsNetworkUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client, err := NewClient(url, WithHTTPClient(&http.Client{Timeout: time.Second}))
	require.NoError(t, err)
	_, err = client.Cart(context.Background())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNetworkUnavailable), "got %v", err)
}

func TestClientAvailabilityFetcher(t *testing.T) {
	tourID := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/tours/"+tourID.String()+"/availability", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{"data": availability.Snapshot{
			TourID:     tourID,
			Departures: []availability.Departure{{Date: types.MustParseDate("2024-07-01"), AvailableSeats: 4, TotalSeats: 10}},
		}})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL)
	require.NoError(t, err)
	snap, err := client.AvailabilityFetcher().FetchAvailability(context.Background(), tourID)
	require.NoError(t, err)
	assert.Equal(t, tourID, snap.TourID)
	assert.Equal(t, 4, snap.Departures[0].AvailableSeats)
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient("  ")
	assert.Error(t, err)
}

func TestClientBookingsForwardsCursor(t *testing.T) {
	var gotCursor string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCursor = r.URL.Query().Get("cursor")
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{
			"bookings":    []map[string]any{{"id": uuid.NewString(), "travelers": 2}},
			"next_cursor": "c2",
		}})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL)
	require.NoError(t, err)
	page, err := client.Bookings(context.Background(), "c1+/=")
	require.NoError(t, err)
	assert.Equal(t, "c1+/=", gotCursor)
	assert.Equal(t, "c2", page.NextCursor)
	require.Len(t, page.Bookings, 1)
	assert.Equal(t, 2, page.Bookings[0].Travelers)
}

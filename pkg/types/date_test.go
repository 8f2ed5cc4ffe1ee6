package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDateRoundTripsThroughJSON(t *testing.T) {
	d, err := ParseDate("2024-07-01")
	require.NoError(t, err)
	assert.Equal(t, Date{Year: 2024, Month: time.July, Day: 1}, d)

	raw, err := json.Marshal(map[string]Date{"start": d})
	require.NoError(t, err)
	assert.JSONEq(t, `{"start":"2024-07-01"}`, string(raw))

	var decoded struct {
		Start Date `json:"start"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, d, decoded.Start)
}

func TestParseDateRejectsTimestamps(t *testing.T) {
	_, err := ParseDate("2024-07-01T10:00:00Z")
	assert.Error(t, err)

	var d Date
	assert.Error(t, json.Unmarshal([]byte(`"07/01/2024"`), &d))
}

func TestDateScanAcceptsDriverShapes(t *testing.T) {
	want := MustParseDate("2024-07-01")
	for _, src := range []any{
		"2024-07-01",
		[]byte("2024-07-01"),
		"2024-07-01 00:00:00+00:00",
		time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC),
	} {
		var got Date
		require.NoError(t, got.Scan(src), "scan %T", src)
		assert.Equal(t, want, got)
	}

	v, err := want.Value()
	require.NoError(t, err)
	assert.Equal(t, "2024-07-01", v)

	v, err = Date{}.Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestDateAsMapKey(t *testing.T) {
	seats := map[Date]int{MustParseDate("2024-07-01"): 5}
	raw, err := json.Marshal(seats)
	require.NoError(t, err)
	assert.JSONEq(t, `{"2024-07-01":5}`, string(raw))
}

func TestMoneyTimes(t *testing.T) {
	price := NewMoney(decimal.RequireFromString("100.00"), "USD")
	total := price.Times(3)
	assert.True(t, total.Amount.Equal(decimal.NewFromInt(300)))
	assert.Equal(t, "300.00 USD", total.String())
}

package availability

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishedDropFlagsSelectionInvalid(t *testing.T) {
	broker := NewBroker(nil, nil, nil)
	sub := NewSubscriber("shopper", 4)
	broker.Subscribe(tourT1, sub)

	var notices []Notice
	r := NewReconciler(tourT1, func(n Notice) { notices = append(notices, n) })
	r.Reconcile(snapshotOf(tourT1, dep(julyFirst, 5, 10), dep(julyTenth, 8, 10)))
	require.Empty(t, notices, "priming the cache is silent")

	sel := r.Select(julyFirst, 3)
	require.True(t, sel.Valid)

	require.NoError(t, broker.Publish(context.Background(), snapshotOf(tourT1, dep(julyFirst, 2, 10), dep(julyTenth, 8, 10))))
	res := r.Reconcile(<-sub.Updates())

	cached, ok := r.Departure(julyFirst)
	require.True(t, ok)
	assert.Equal(t, 2, cached.AvailableSeats)
	assert.True(t, res.SelectionInvalid)
	assert.Equal(t, []Departure{dep(julyFirst, 2, 10)}, res.Changed)

	current, ok := r.Selection()
	require.True(t, ok)
	assert.False(t, current.Valid)

	require.Len(t, notices, 1)
	assert.Equal(t, NoticeUpdated, notices[0].Message)
	assert.True(t, notices[0].SelectionInvalid)
}

func TestEarlySelectionInvalidatedByFirstSnapshotIsAnnounced(t *testing.T) {
	var notices []Notice
	r := NewReconciler(tourT1, func(n Notice) { notices = append(notices, n) })
	require.True(t, r.Select(julyFirst, 3).Valid, "accepted before the cache is primed")

	res := r.Reconcile(snapshotOf(tourT1, dep(julyFirst, 2, 10)))
	assert.True(t, res.SelectionInvalid)
	require.Len(t, notices, 1)
	assert.True(t, notices[0].SelectionInvalid)

	current, ok := r.Selection()
	require.True(t, ok)
	assert.False(t, current.Valid)
}

func TestReconcileUnchangedSnapshotIsQuiet(t *testing.T) {
	calls := 0
	r := NewReconciler(tourT1, func(Notice) { calls++ })
	snap := snapshotOf(tourT1, dep(julyFirst, 5, 10))
	r.Reconcile(snap)
	res := r.Reconcile(snap)
	assert.False(t, res.Updated())
	assert.Zero(t, calls)
}

func TestSelectionStaysInvalidUntilReselected(t *testing.T) {
	r := NewReconciler(tourT1, nil)
	r.Reconcile(snapshotOf(tourT1, dep(julyFirst, 5, 10)))
	r.Select(julyFirst, 4)

	r.Reconcile(snapshotOf(tourT1, dep(julyFirst, 3, 10)))
	res := r.Reconcile(snapshotOf(tourT1, dep(julyFirst, 6, 10)))
	assert.False(t, res.SelectionInvalid, "already invalid, not re-flagged")
	sel, _ := r.Selection()
	assert.False(t, sel.Valid, "seats coming back do not revalidate silently")

	sel = r.Select(julyFirst, 4)
	assert.True(t, sel.Valid)
}

func TestSelectChecksCachedSeats(t *testing.T) {
	r := NewReconciler(tourT1, nil)
	assert.True(t, r.Select(julyFirst, 2).Valid, "unknown before the first snapshot")

	r.Reconcile(snapshotOf(tourT1, dep(julyFirst, 0, 10), dep(julyTenth, 3, 10)))
	assert.False(t, r.Select(julyFirst, 1).Valid, "sold out")
	assert.False(t, r.Select(julyTenth, 4).Valid)
	assert.True(t, r.Select(julyTenth, 3).Valid)
	assert.False(t, r.Select(julyTenth, 0).Valid)
}

func TestReconcileDropsRemovedDatesAndInvalidatesSelection(t *testing.T) {
	r := NewReconciler(tourT1, nil)
	r.Reconcile(snapshotOf(tourT1, dep(julyFirst, 5, 10), dep(julyTenth, 5, 10)))
	r.Select(julyTenth, 1)

	res := r.Reconcile(snapshotOf(tourT1, dep(julyFirst, 5, 10)))
	assert.Equal(t, []Departure{dep(julyFirst, 5, 10)}, r.Departures())
	assert.Len(t, res.Removed, 1)
	assert.True(t, res.SelectionInvalid)
}

func TestReconcileIgnoresForeignOrInvalidSnapshots(t *testing.T) {
	r := NewReconciler(tourT1, nil)
	r.Reconcile(snapshotOf(tourT1, dep(julyFirst, 5, 10)))

	assert.False(t, r.Reconcile(snapshotOf(uuid.New(), dep(julyFirst, 1, 10))).Updated())
	assert.False(t, r.Reconcile(snapshotOf(tourT1, dep(julyFirst, 11, 10))).Updated())
	cached, _ := r.Departure(julyFirst)
	assert.Equal(t, 5, cached.AvailableSeats)
}

package availability

import (
	"sync"

	"github.com/google/uuid"

	"github.com/angelmondragon/tourbook-backend/pkg/types"
)

// NoticeUpdated is the transient message shown when cached availability changed.
const NoticeUpdated = "availability updated"

// Notice is raised by Reconcile when something the shopper can see changed.
type Notice struct {
	TourID           uuid.UUID
	Message          string
	Changed          []Departure
	SelectionInvalid bool
}

// Notifier receives notices. It runs on the reconciling goroutine and must not block.
type Notifier func(Notice)

// Selection is the date and traveler count the shopper picked. Once invalid it stays
// invalid until Select is called again.
type Selection struct {
	Date      types.Date
	Travelers int
	Valid     bool
}

// Result describes what one Reconcile call did.
type Result struct {
	Changed          []Departure
	Removed          []types.Date
	SelectionInvalid bool
}

// Updated reports whether the cache moved.
func (r Result) Updated() bool {
	return len(r.Changed) > 0 || len(r.Removed) > 0
}

// Reconciler holds the client's cached copy of one tour's availability. Push and poll
// both go through Reconcile.
type Reconciler struct {
	mu        sync.Mutex
	tourID    uuid.UUID
	cache     map[types.Date]Departure
	order     []types.Date
	primed    bool
	selection *Selection
	notify    Notifier
}

func NewReconciler(tourID uuid.UUID, notify Notifier) *Reconciler {
	return &Reconciler{tourID: tourID, cache: make(map[types.Date]Departure), notify: notify}
}

// Reconcile merges snap into the cache. The first snapshot primes the cache silently;
// later ones raise NoticeUpdated when any (date, available seats) pair differs. A
// selection that stops fitting is always announced. Snapshots
// for another tour or that break the seat invariants are ignored.
func (r *Reconciler) Reconcile(snap Snapshot) Result {
	if snap.TourID != r.tourID || snap.Validate() != nil {
		return Result{}
	}

	r.mu.Lock()
	var res Result
	incoming := make(map[types.Date]struct{}, len(snap.Departures))
	order := make([]types.Date, 0, len(snap.Departures))
	for _, dep := range snap.Departures {
		incoming[dep.Date] = struct{}{}
		order = append(order, dep.Date)
		cached, ok := r.cache[dep.Date]
		if !ok || cached.AvailableSeats != dep.AvailableSeats || cached.TotalSeats != dep.TotalSeats {
			res.Changed = append(res.Changed, dep)
			r.cache[dep.Date] = dep
		}
	}
	for date := range r.cache {
		if _, ok := incoming[date]; !ok {
			res.Removed = append(res.Removed, date)
			delete(r.cache, date)
		}
	}
	r.order = order

	if r.selection != nil && r.selection.Valid && !r.fitsLocked(r.selection.Date, r.selection.Travelers) {
		r.selection.Valid = false
		res.SelectionInvalid = true
	}

	// Priming is silent unless it invalidates a selection made before the first snapshot.
	announce := res.SelectionInvalid || (r.primed && res.Updated())
	r.primed = true
	notify := r.notify
	r.mu.Unlock()

	if announce && notify != nil {
		notify(Notice{
			TourID:           r.tourID,
			Message:          NoticeUpdated,
			Changed:          res.Changed,
			SelectionInvalid: res.SelectionInvalid,
		})
	}
	return res
}

// Select records the shopper's choice, checked against the cache. A date the cache does
// not know yet is accepted and checked on the next reconcile.
func (r *Reconciler) Select(date types.Date, travelers int) Selection {
	r.mu.Lock()
	defer r.mu.Unlock()
	sel := Selection{Date: date, Travelers: travelers, Valid: travelers >= 1}
	if sel.Valid && r.primed {
		sel.Valid = r.fitsLocked(date, travelers)
	}
	r.selection = &sel
	return sel
}

// Selection returns the current choice, if any.
func (r *Reconciler) Selection() (Selection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.selection == nil {
		return Selection{}, false
	}
	return *r.selection, true
}

// ClearSelection forgets the current choice.
func (r *Reconciler) ClearSelection() {
	r.mu.Lock()
	r.selection = nil
	r.mu.Unlock()
}

// Departures returns the cached departures in the order of the last snapshot.
func (r *Reconciler) Departures() []Departure {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Departure, 0, len(r.order))
	for _, date := range r.order {
		out = append(out, r.cache[date])
	}
	return out
}

// Departure returns the cached entry for date.
func (r *Reconciler) Departure(date types.Date) (Departure, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	dep, ok := r.cache[date]
	return dep, ok
}

func (r *Reconciler) fitsLocked(date types.Date, travelers int) bool {
	dep, ok := r.cache[date]
	return ok && dep.AvailableSeats >= travelers
}

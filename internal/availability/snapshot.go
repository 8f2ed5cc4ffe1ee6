package availability

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tourbook-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
	"github.com/angelmondragon/tourbook-backend/pkg/types"
)

// Departure is the seat count of one scheduled date.
type Departure struct {
	Date           types.Date `json:"date"`
	AvailableSeats int        `json:"available_seats"`
	TotalSeats     int        `json:"total_seats"`
}

// SoldOut reports a date that is listed but cannot be selected.
func (d Departure) SoldOut() bool {
	return d.AvailableSeats == 0
}

func (d Departure) Validate() error {
	if d.Date.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "departure date is required")
	}
	if d.AvailableSeats < 0 || d.TotalSeats < 0 || d.AvailableSeats > d.TotalSeats {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("departure %s: need 0 <= available (%d) <= total (%d)", d.Date, d.AvailableSeats, d.TotalSeats))
	}
	return nil
}

// Snapshot is the authoritative seat picture of one tour at GeneratedAt.
type Snapshot struct {
	TourID      uuid.UUID   `json:"tour_id"`
	Departures  []Departure `json:"departures"`
	GeneratedAt time.Time   `json:"generated_at"`
}

func (s Snapshot) Validate() error {
	if s.TourID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "snapshot tour_id is required")
	}
	seen := make(map[types.Date]struct{}, len(s.Departures))
	for _, dep := range s.Departures {
		if err := dep.Validate(); err != nil {
			return err
		}
		if _, dup := seen[dep.Date]; dup {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("departure %s listed twice", dep.Date))
		}
		seen[dep.Date] = struct{}{}
	}
	return nil
}

// Find returns the departure on date.
func (s Snapshot) Find(date types.Date) (Departure, bool) {
	for _, dep := range s.Departures {
		if dep.Date == date {
			return dep, true
		}
	}
	return Departure{}, false
}

// SnapshotFromRows builds a snapshot from stored departure rows.
func SnapshotFromRows(tourID uuid.UUID, rows []models.TourDeparture, at time.Time) Snapshot {
	snap := Snapshot{TourID: tourID, Departures: make([]Departure, 0, len(rows)), GeneratedAt: at.UTC()}
	for _, row := range rows {
		snap.Departures = append(snap.Departures, Departure{
			Date:           row.DepartureDate,
			AvailableSeats: row.AvailableSeats,
			TotalSeats:     row.TotalSeats,
		})
	}
	return snap
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/tourbook-backend/pkg/enums"
	"github.com/angelmondragon/tourbook-backend/pkg/types"
)

// Tour is a bookable itinerary priced per person.
type Tour struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Title      string          `gorm:"column:title;not null"`
	Price      decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Currency   enums.Currency  `gorm:"column:currency;type:char(3);not null;default:'USD'"`
	Active     bool            `gorm:"column:active;not null"`
	Departures []TourDeparture `gorm:"foreignKey:TourID;constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Tour) TableName() string { return "tours" }

func (t *Tour) BeforeCreate(*gorm.DB) error {
	ensureID(&t.ID)
	return nil
}

// TourDeparture holds the authoritative seat counters for one scheduled date.
type TourDeparture struct {
	TourID         uuid.UUID  `gorm:"column:tour_id;type:uuid;primaryKey"`
	DepartureDate  types.Date `gorm:"column:departure_date;type:date;primaryKey"`
	TotalSeats     int        `gorm:"column:total_seats;not null;check:chk_departure_total,total_seats >= 0"`
	AvailableSeats int        `gorm:"column:available_seats;not null;check:chk_departure_available,available_seats >= 0 AND available_seats <= total_seats"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (TourDeparture) TableName() string { return "tour_departures" }

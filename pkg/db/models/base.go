package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// All lists every persisted model, in dependency order, for AutoMigrate in dev and tests.
func All() []any {
	return []any{
		&Tour{},
		&TourDeparture{},
		&Coupon{},
		&CartRecord{},
		&CartItem{},
		&Booking{},
	}
}

// AutoMigrate creates or updates the schema for All on conn.
func AutoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(All()...)
}

package database

import (
	"ridehub/internal/catalog"
	"ridehub/internal/locks"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		return err
	}
	return db.AutoMigrate(
		&catalog.Trip{},
		&catalog.TripSeat{},
		&locks.SeatLock{},
	)
}

package main

import (
	"fmt"
	"log"
	"time"

	"ridehub/internal/catalog"
	"ridehub/internal/shared/config"
	"ridehub/internal/shared/database"

	"github.com/google/uuid"
)

type Seeder struct {
	db *database.DB
}

func main() {
	fmt.Println("🌱 Starting RideHub Database Seeder...")

	cfg := config.Load()

	db, err := database.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	seeder := &Seeder{db: db}

	fmt.Println("\n🧹 Cleaning database...")
	if err := seeder.CleanDatabase(); err != nil {
		log.Fatalf("Failed to clean database: %v", err)
	}
	fmt.Println("✅ Database cleaned successfully")

	fmt.Println("\n🌱 Seeding database...")
	if err := seeder.SeedAll(); err != nil {
		log.Fatalf("Failed to seed database: %v", err)
	}
	fmt.Println("✅ Database seeded successfully")

	fmt.Println("\n🎉 Seeding completed! Database is ready for testing.")
}

// CleanDatabase truncates all tables in dependency order
func (s *Seeder) CleanDatabase() error {
	tables := []string{
		"seat_locks",
		"trip_seats",
		"trips",
	}

	for _, table := range tables {
		if err := s.db.PostgreSQL.Exec(fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)).Error; err != nil {
			return fmt.Errorf("failed to truncate %s: %w", table, err)
		}
	}
	return nil
}

// SeedAll creates a handful of upcoming trips with two-floor coach layouts
func (s *Seeder) SeedAll() error {
	routes := []struct {
		code        string
		plate       string
		origin      string
		destination string
		departIn    time.Duration
		duration    time.Duration
		price       float64
	}{
		{"HAN-HPH", "29B-144.55", "Hanoi", "Hai Phong", 6 * time.Hour, 2 * time.Hour, 12.50},
		{"HAN-VIN", "37B-021.89", "Hanoi", "Vinh", 24 * time.Hour, 5 * time.Hour, 18.00},
		{"SGN-DLT", "51B-305.12", "Ho Chi Minh City", "Da Lat", 48 * time.Hour, 7 * time.Hour, 22.75},
	}

	now := time.Now()
	for _, r := range routes {
		trip := catalog.Trip{
			ID:           uuid.New(),
			RouteCode:    r.code,
			VehiclePlate: r.plate,
			Origin:       r.origin,
			Destination:  r.destination,
			DepartureAt:  now.Add(r.departIn),
			ArrivalAt:    now.Add(r.departIn + r.duration),
		}
		if err := s.db.PostgreSQL.Create(&trip).Error; err != nil {
			return fmt.Errorf("failed to create trip %s: %w", r.code, err)
		}

		seats := buildCoachLayout(trip.ID, r.price)
		if err := s.db.PostgreSQL.CreateInBatches(seats, 50).Error; err != nil {
			return fmt.Errorf("failed to create seats for trip %s: %w", r.code, err)
		}

		fmt.Printf("   🚌 %s: %s → %s (%d seats, departs %s)\n",
			r.code, r.origin, r.destination, len(seats),
			trip.DepartureAt.Format(time.RFC3339))
	}
	return nil
}

// buildCoachLayout lays out a sleeper coach: rows 1-10 on each of two
// floors, seats A<row> downstairs and B<row> upstairs, two columns per row.
func buildCoachLayout(tripID uuid.UUID, basePrice float64) []catalog.TripSeat {
	var seats []catalog.TripSeat
	for floor := 1; floor <= 2; floor++ {
		prefix := "A"
		price := basePrice
		if floor == 2 {
			prefix = "B"
			price = basePrice * 0.9 // upper berths are cheaper
		}
		for row := 1; row <= 10; row++ {
			for _, col := range []string{"L", "R"} {
				seats = append(seats, catalog.TripSeat{
					ID:      uuid.New(),
					TripID:  tripID,
					SeatNo:  fmt.Sprintf("%s%d%s", prefix, row, col),
					FloorNo: floor,
					Price:   price,
				})
			}
		}
	}
	return seats
}

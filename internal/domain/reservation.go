package domain

import (
	"time"

	"github.com/google/uuid"
)

type Reservation struct {
	ID         uuid.UUID
	TripID     int64
	UserID     int64
	SeatNumber int
	Meal       *string
	CreatedAt  time.Time
}

// SeatClaim is a request to occupy one seat of a trip.
type SeatClaim struct {
	TripID     int64
	UserID     int64
	SeatNumber int
	Meal       *string
}

// TripBooking aggregates one user's reservations on a single trip.
type TripBooking struct {
	TripID      int64
	Source      string
	Destination string
	DepartureAt time.Time
	ArrivalAt   time.Time
	Tier        string
	PlateID     string
	SeatsBooked int
	SeatNumbers []int
}

type UserTrips struct {
	Upcoming []TripBooking
	Past     []TripBooking
}

package domain

import "time"

type Bus struct {
	ID         int64
	PlateID    string
	TotalSeats int
}

type Trip struct {
	ID          int64
	Source      string
	Destination string
	Date        time.Time
	DepartureAt time.Time
	ArrivalAt   time.Time
	PriceCents  int64
	Tier        string
	BusID       int64
}

// TripFilter narrows a catalog listing. The zero value lists every trip.
type TripFilter struct {
	Tier string
}

// TripSummary is a trip together with its live seat occupancy.
type TripSummary struct {
	Trip
	PlateID        string
	TotalSeats     int
	ReservedSeats  int
	AvailableSeats int
}

// SeatMap lists the occupied seat numbers of a trip in ascending order.
type SeatMap struct {
	TripID     int64
	Occupied   []int
	TotalSeats int
}

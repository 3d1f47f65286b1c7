package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Domenick1991/busbooking/internal/domain"
)

// SeatLedger is the authoritative record of occupied seats per trip.
// TryCommit performs its capacity and uniqueness checks and the insert as one
// atomic unit serialized per trip.
type SeatLedger interface {
	OccupiedSeats(ctx context.Context, tripID int64) ([]int, error)
	Capacity(ctx context.Context, tripID int64) (int, error)
	TryCommit(ctx context.Context, claim domain.SeatClaim) (*domain.Reservation, error)
	OccupiedCounts(ctx context.Context, tripIDs []int64) (map[int64]int, error)
	ReservationsByUser(ctx context.Context, userID int64) ([]domain.Reservation, error)
}

// Каталог только читается, рейсы публикуются вне ядра бронирования
type CatalogRepository interface {
	GetTrip(ctx context.Context, id int64) (*domain.Trip, error)
	ListTrips(ctx context.Context, filter domain.TripFilter) ([]domain.Trip, error)
	GetBus(ctx context.Context, id int64) (*domain.Bus, error)
}

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByName(ctx context.Context, name string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}

// classify turns a driver error into the domain taxonomy. Deadline expiry
// becomes ErrTimeout, everything else not already classified ErrStorage.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{domain.ErrNotFound, domain.ErrFull, domain.ErrConflict, domain.ErrInvalidSeat, domain.ErrTimeout, domain.ErrStorage, domain.ErrDuplicateUser} {
		if errors.Is(err, known) {
			return err
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStorage, err)
}

func checkSeat(seat, capacity int) error {
	if seat < 1 || seat > capacity {
		return fmt.Errorf("%w: %d not in 1..%d", domain.ErrInvalidSeat, seat, capacity)
	}
	return nil
}

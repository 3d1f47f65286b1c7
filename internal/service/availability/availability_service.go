package availability

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/Domenick1991/busbooking/internal/domain"
	"github.com/Domenick1991/busbooking/internal/repository"
)

type AvailabilityUseCase interface {
	ListTrips(ctx context.Context, filter domain.TripFilter) ([]domain.TripSummary, error)
	TripDetail(ctx context.Context, tripID int64) (*domain.TripSummary, error)
	ReservedSeats(ctx context.Context, tripID int64) (*domain.SeatMap, error)
	UserTrips(ctx context.Context, userID int64) (*domain.UserTrips, error)
}

// TripCache holds catalog listings per tier. Seat counts are never cached.
type TripCache interface {
	GetTrips(ctx context.Context, tier string) ([]domain.Trip, error)
	SetTrips(ctx context.Context, tier string, trips []domain.Trip) error
}

type AvailabilityService struct {
	catalog repository.CatalogRepository
	ledger  repository.SeatLedger
	cache   TripCache
	logger  *zap.Logger
	now     func() time.Time
}

type Option func(*AvailabilityService)

func WithLogger(logger *zap.Logger) Option {
	return func(s *AvailabilityService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock replaces the clock used to split upcoming and past trips.
func WithClock(now func() time.Time) Option {
	return func(s *AvailabilityService) {
		s.now = now
	}
}

func NewAvailabilityService(catalog repository.CatalogRepository, ledger repository.SeatLedger, cache TripCache, opts ...Option) *AvailabilityService {
	service := &AvailabilityService{
		catalog: catalog,
		ledger:  ledger,
		cache:   cache,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

func (s *AvailabilityService) ListTrips(ctx context.Context, filter domain.TripFilter) ([]domain.TripSummary, error) {
	trips, err := s.catalogTrips(ctx, filter)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(trips))
	for _, trip := range trips {
		ids = append(ids, trip.ID)
	}
	counts, err := s.ledger.OccupiedCounts(ctx, ids)
	if err != nil {
		return nil, err
	}

	buses := make(map[int64]*domain.Bus)
	summaries := make([]domain.TripSummary, 0, len(trips))
	for _, trip := range trips {
		bus, ok := buses[trip.BusID]
		if !ok {
			if bus, err = s.catalog.GetBus(ctx, trip.BusID); err != nil {
				return nil, err
			}
			buses[trip.BusID] = bus
		}
		summaries = append(summaries, summarize(trip, bus, counts[trip.ID]))
	}
	return summaries, nil
}

func (s *AvailabilityService) catalogTrips(ctx context.Context, filter domain.TripFilter) ([]domain.Trip, error) {
	if s.cache != nil {
		cached, err := s.cache.GetTrips(ctx, filter.Tier)
		if err == nil && cached != nil {
			return cached, nil
		}
		if err != nil {
			s.logger.Warn("trip cache read failed", zap.String("tier", filter.Tier), zap.Error(err))
		}
	}

	trips, err := s.catalog.ListTrips(ctx, filter)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetTrips(ctx, filter.Tier, trips); err != nil {
			s.logger.Warn("trip cache write failed", zap.String("tier", filter.Tier), zap.Error(err))
		}
	}
	return trips, nil
}

func (s *AvailabilityService) TripDetail(ctx context.Context, tripID int64) (*domain.TripSummary, error) {
	trip, err := s.catalog.GetTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}
	bus, err := s.catalog.GetBus(ctx, trip.BusID)
	if err != nil {
		return nil, err
	}
	counts, err := s.ledger.OccupiedCounts(ctx, []int64{tripID})
	if err != nil {
		return nil, err
	}
	summary := summarize(*trip, bus, counts[tripID])
	return &summary, nil
}

func (s *AvailabilityService) ReservedSeats(ctx context.Context, tripID int64) (*domain.SeatMap, error) {
	total, err := s.ledger.Capacity(ctx, tripID)
	if err != nil {
		return nil, err
	}
	occupied, err := s.ledger.OccupiedSeats(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if occupied == nil {
		occupied = []int{}
	}
	return &domain.SeatMap{TripID: tripID, Occupied: occupied, TotalSeats: total}, nil
}

// UserTrips groups the user's reservations per trip. A trip departing at or
// after the current instant is upcoming.
func (s *AvailabilityService) UserTrips(ctx context.Context, userID int64) (*domain.UserTrips, error) {
	if userID <= 0 {
		return nil, domain.ErrUnauthenticated
	}

	reservations, err := s.ledger.ReservationsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	grouped := make(map[int64]*domain.TripBooking)
	order := make([]int64, 0)
	for _, r := range reservations {
		booking, ok := grouped[r.TripID]
		if !ok {
			booking, err = s.tripBooking(ctx, r.TripID)
			if err != nil {
				return nil, err
			}
			grouped[r.TripID] = booking
			order = append(order, r.TripID)
		}
		booking.SeatsBooked++
		booking.SeatNumbers = append(booking.SeatNumbers, r.SeatNumber)
	}

	now := s.now()
	result := &domain.UserTrips{Upcoming: []domain.TripBooking{}, Past: []domain.TripBooking{}}
	for _, id := range order {
		booking := grouped[id]
		sort.Ints(booking.SeatNumbers)
		if booking.DepartureAt.Before(now) {
			result.Past = append(result.Past, *booking)
		} else {
			result.Upcoming = append(result.Upcoming, *booking)
		}
	}

	sort.SliceStable(result.Upcoming, func(i, j int) bool {
		return result.Upcoming[i].DepartureAt.Before(result.Upcoming[j].DepartureAt)
	})
	sort.SliceStable(result.Past, func(i, j int) bool {
		return result.Past[i].DepartureAt.After(result.Past[j].DepartureAt)
	})
	return result, nil
}

func (s *AvailabilityService) tripBooking(ctx context.Context, tripID int64) (*domain.TripBooking, error) {
	trip, err := s.catalog.GetTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}
	plate := ""
	bus, err := s.catalog.GetBus(ctx, trip.BusID)
	switch {
	case err == nil:
		plate = bus.PlateID
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}
	return &domain.TripBooking{
		TripID:      trip.ID,
		Source:      trip.Source,
		Destination: trip.Destination,
		DepartureAt: trip.DepartureAt,
		ArrivalAt:   trip.ArrivalAt,
		Tier:        trip.Tier,
		PlateID:     plate,
		SeatNumbers: []int{},
	}, nil
}

func summarize(trip domain.Trip, bus *domain.Bus, reserved int) domain.TripSummary {
	available := bus.TotalSeats - reserved
	if available < 0 {
		available = 0
	}
	return domain.TripSummary{
		Trip:           trip,
		PlateID:        bus.PlateID,
		TotalSeats:     bus.TotalSeats,
		ReservedSeats:  reserved,
		AvailableSeats: available,
	}
}

var _ AvailabilityUseCase = (*AvailabilityService)(nil)

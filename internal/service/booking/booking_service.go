package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Domenick1991/busbooking/internal/domain"
	"github.com/Domenick1991/busbooking/internal/kafka"
	"github.com/Domenick1991/busbooking/internal/repository"
)

const defaultLedgerTimeout = 3 * time.Second

type BookingUseCase interface {
	BookTrip(ctx context.Context, tripID, userID int64) (*domain.Reservation, error)
	ReserveTrip(ctx context.Context, input ReserveTripInput) (*domain.Reservation, error)
}

// Интерфейс продюсера, в тестах подменяется моком
type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type BookingService struct {
	ledger             repository.SeatLedger
	producer           Producer // может быть nil, тогда события не публикуются
	bookingTopic       string
	notificationsTopic string
	timeout            time.Duration // общий дедлайн на работу с реестром мест
	logger             *zap.Logger
}

type ReserveTripInput struct {
	TripID     int64
	UserID     int64
	SeatNumber int
	Meal       *string
}

type BookingServiceOption func(*BookingService)

func WithNotificationsTopic(topic string) BookingServiceOption {
	return func(s *BookingService) {
		s.notificationsTopic = topic
	}
}

// WithTimeout bounds every booking request's time spent in the seat ledger.
func WithTimeout(d time.Duration) BookingServiceOption {
	return func(s *BookingService) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithLogger(logger *zap.Logger) BookingServiceOption {
	return func(s *BookingService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewBookingService(
	ledger repository.SeatLedger,
	producer Producer,
	bookingTopic string,
	opts ...BookingServiceOption,
) *BookingService {
	service := &BookingService{
		ledger:       ledger,
		producer:     producer,
		bookingTopic: bookingTopic,
		timeout:      defaultLedgerTimeout,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// BookTrip assigns the lowest free seat of the trip. Candidates come from a
// snapshot of the occupancy and every one of them is claimed through the
// ledger's atomic commit; a seat taken in the meantime only moves the search
// to the next candidate. At most capacity commits are attempted.
func (s *BookingService) BookTrip(ctx context.Context, tripID, userID int64) (*domain.Reservation, error) {
	if userID <= 0 {
		return nil, domain.ErrUnauthenticated
	}

	ledgerCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	capacity, err := s.ledger.Capacity(ledgerCtx, tripID)
	if err != nil {
		return nil, deadline(err)
	}
	occupied, err := s.ledger.OccupiedSeats(ledgerCtx, tripID)
	if err != nil {
		return nil, deadline(err)
	}
	if len(occupied) >= capacity {
		return nil, domain.ErrFull
	}

	taken := make(map[int]struct{}, len(occupied))
	for _, seat := range occupied {
		taken[seat] = struct{}{}
	}

	for seat := 1; seat <= capacity; seat++ {
		if _, ok := taken[seat]; ok {
			continue
		}
		reservation, err := s.ledger.TryCommit(ledgerCtx, domain.SeatClaim{TripID: tripID, UserID: userID, SeatNumber: seat})
		if errors.Is(err, domain.ErrConflict) {
			// место заняли между снимком и коммитом
			s.logger.Debug("seat taken concurrently, trying next",
				zap.Int64("trip_id", tripID), zap.Int("seat", seat))
			continue
		}
		if err != nil {
			return nil, deadline(err)
		}
		s.publish(ctx, reservation)
		return reservation, nil
	}
	return nil, domain.ErrFull
}

// ReserveTrip claims exactly the requested seat. A taken seat is reported as
// ErrConflict and never substituted.
func (s *BookingService) ReserveTrip(ctx context.Context, input ReserveTripInput) (*domain.Reservation, error) {
	if input.UserID <= 0 {
		return nil, domain.ErrUnauthenticated
	}
	if input.SeatNumber <= 0 {
		return nil, fmt.Errorf("%w: %d", domain.ErrInvalidSeat, input.SeatNumber)
	}

	ledgerCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	reservation, err := s.ledger.TryCommit(ledgerCtx, domain.SeatClaim{
		TripID:     input.TripID,
		UserID:     input.UserID,
		SeatNumber: input.SeatNumber,
		Meal:       input.Meal,
	})
	if err != nil {
		return nil, deadline(err)
	}
	s.publish(ctx, reservation)
	return reservation, nil
}

// publish is best effort: the reservation is already durable.
func (s *BookingService) publish(ctx context.Context, reservation *domain.Reservation) {
	if s.producer == nil || s.bookingTopic == "" {
		return
	}
	event := kafka.ReservationEvent{
		Type:          kafka.EventReservationCreated,
		ReservationID: reservation.ID.String(),
		TripID:        reservation.TripID,
		UserID:        reservation.UserID,
		SeatNumber:    reservation.SeatNumber,
		Meal:          reservation.Meal,
		CreatedAt:     reservation.CreatedAt,
	}
	topics := []string{s.bookingTopic}
	if s.notificationsTopic != "" {
		topics = append(topics, s.notificationsTopic)
	}
	for _, topic := range topics {
		if err := s.producer.Publish(ctx, topic, event.ReservationID, event); err != nil {
			s.logger.Warn("failed to publish reservation event",
				zap.String("topic", topic),
				zap.String("reservation_id", event.ReservationID),
				zap.Error(err))
		}
	}
}

// deadline maps a raw context expiry into ErrTimeout.
func deadline(err error) error {
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, domain.ErrTimeout) {
		return fmt.Errorf("%w: %w", domain.ErrTimeout, err)
	}
	return err
}

var _ BookingUseCase = (*BookingService)(nil)

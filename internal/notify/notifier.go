package notify

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/Domenick1991/busbooking/internal/domain"
	"github.com/Domenick1991/busbooking/internal/kafka"
)

type userLookup interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}

// Notifier delivers booking confirmations. Delivery is a structured log line
// addressed to the user's email.
type Notifier struct {
	users  userLookup
	logger *zap.Logger
}

func NewNotifier(users userLookup, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{users: users, logger: logger}
}

// Send confirms one reservation. Events for unknown users are dropped.
func (n *Notifier) Send(ctx context.Context, event kafka.ReservationEvent) error {
	if event.Type != kafka.EventReservationCreated {
		return nil
	}

	user, err := n.users.GetByID(ctx, event.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		n.logger.Warn("dropping confirmation for unknown user",
			zap.Int64("user_id", event.UserID),
			zap.String("reservation_id", event.ReservationID))
		return nil
	}
	if err != nil {
		return err
	}

	fields := []zap.Field{
		zap.String("to", user.Email),
		zap.String("reservation_id", event.ReservationID),
		zap.Int64("trip_id", event.TripID),
		zap.Int("seat", event.SeatNumber),
	}
	if event.Meal != nil {
		fields = append(fields, zap.String("meal", *event.Meal))
	}
	n.logger.Info("booking confirmation sent", fields...)
	return nil
}

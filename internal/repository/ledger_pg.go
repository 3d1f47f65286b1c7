package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Domenick1991/busbooking/internal/domain"
)

const pgUniqueViolation = "23505"

// PGLedger keeps the seat ledger in PostgreSQL. Commits lock the trip row
// (SELECT ... FOR UPDATE) so concurrent commits on one trip are serialized,
// and the UNIQUE(trip_id, seat_number) index backs the seat check.
type PGLedger struct {
	db *pgxpool.Pool
}

func NewPGLedger(db *pgxpool.Pool) *PGLedger {
	return &PGLedger{db: db}
}

func (r *PGLedger) Capacity(ctx context.Context, tripID int64) (int, error) {
	var total int
	err := r.db.QueryRow(ctx, `SELECT b.total_seats FROM trips t JOIN buses b ON b.id = t.bus_id WHERE t.id = $1`, tripID).Scan(&total)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("trip %d: %w", tripID, domain.ErrNotFound)
	}
	if err != nil {
		return 0, classify("capacity", err)
	}
	return total, nil
}

func (r *PGLedger) OccupiedSeats(ctx context.Context, tripID int64) ([]int, error) {
	if _, err := r.Capacity(ctx, tripID); err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, `SELECT seat_number FROM reservations WHERE trip_id = $1 ORDER BY seat_number`, tripID)
	if err != nil {
		return nil, classify("occupied seats", err)
	}
	defer rows.Close()

	seats := make([]int, 0)
	for rows.Next() {
		var seat int
		if err := rows.Scan(&seat); err != nil {
			return nil, classify("occupied seats", err)
		}
		seats = append(seats, seat)
	}
	return seats, classify("occupied seats", rows.Err())
}

func (r *PGLedger) TryCommit(ctx context.Context, claim domain.SeatClaim) (*domain.Reservation, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, classify("begin", err)
	}
	defer tx.Rollback(ctx)

	var total int
	err = tx.QueryRow(ctx, `SELECT b.total_seats FROM trips t JOIN buses b ON b.id = t.bus_id WHERE t.id = $1 FOR UPDATE OF t`, claim.TripID).Scan(&total)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("trip %d: %w", claim.TripID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, classify("lock trip", err)
	}
	if err := checkSeat(claim.SeatNumber, total); err != nil {
		return nil, err
	}

	var occupied int
	var taken bool
	if err := tx.QueryRow(ctx, `SELECT count(*), coalesce(bool_or(seat_number = $2), false) FROM reservations WHERE trip_id = $1`, claim.TripID, claim.SeatNumber).
		Scan(&occupied, &taken); err != nil {
		return nil, classify("count seats", err)
	}
	// сначала вместимость, потом конкретное место
	if occupied >= total {
		return nil, fmt.Errorf("trip %d: %w", claim.TripID, domain.ErrFull)
	}
	if taken {
		return nil, fmt.Errorf("trip %d seat %d: %w", claim.TripID, claim.SeatNumber, domain.ErrConflict)
	}

	res := &domain.Reservation{
		ID:         uuid.New(),
		TripID:     claim.TripID,
		UserID:     claim.UserID,
		SeatNumber: claim.SeatNumber,
		Meal:       claim.Meal,
	}
	if err := tx.QueryRow(ctx, `INSERT INTO reservations (id, trip_id, user_id, seat_number, meal)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`, res.ID, res.TripID, res.UserID, res.SeatNumber, res.Meal).
		Scan(&res.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		// 23505: уникальный индекс (trip_id, seat_number)
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, fmt.Errorf("trip %d seat %d: %w", claim.TripID, claim.SeatNumber, domain.ErrConflict)
		}
		return nil, classify("insert reservation", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, classify("commit", err)
	}
	return res, nil
}

func (r *PGLedger) OccupiedCounts(ctx context.Context, tripIDs []int64) (map[int64]int, error) {
	counts := make(map[int64]int, len(tripIDs))
	if len(tripIDs) == 0 {
		return counts, nil
	}

	rows, err := r.db.Query(ctx, `SELECT trip_id, count(*) FROM reservations WHERE trip_id = ANY($1) GROUP BY trip_id`, tripIDs)
	if err != nil {
		return nil, classify("occupied counts", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tripID int64
		var n int
		if err := rows.Scan(&tripID, &n); err != nil {
			return nil, classify("occupied counts", err)
		}
		counts[tripID] = n
	}
	return counts, classify("occupied counts", rows.Err())
}

func (r *PGLedger) ReservationsByUser(ctx context.Context, userID int64) ([]domain.Reservation, error) {
	rows, err := r.db.Query(ctx, `SELECT id, trip_id, user_id, seat_number, meal, created_at FROM reservations WHERE user_id = $1 ORDER BY trip_id, seat_number`, userID)
	if err != nil {
		return nil, classify("user reservations", err)
	}
	defer rows.Close()

	reservations := make([]domain.Reservation, 0)
	for rows.Next() {
		var res domain.Reservation
		if err := rows.Scan(&res.ID, &res.TripID, &res.UserID, &res.SeatNumber, &res.Meal, &res.CreatedAt); err != nil {
			return nil, classify("user reservations", err)
		}
		reservations = append(reservations, res)
	}
	return reservations, classify("user reservations", rows.Err())
}

var _ SeatLedger = (*PGLedger)(nil)

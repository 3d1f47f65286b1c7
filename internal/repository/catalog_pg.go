package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Domenick1991/busbooking/internal/domain"
)

const tripColumns = `id, source, destination, trip_date, departure_at, arrival_at, price_cents, tier, bus_id`

type PGCatalogRepository struct {
	db *pgxpool.Pool
}

func NewPGCatalogRepository(db *pgxpool.Pool) *PGCatalogRepository {
	return &PGCatalogRepository{db: db}
}

func (r *PGCatalogRepository) ListTrips(ctx context.Context, filter domain.TripFilter) ([]domain.Trip, error) {
	rows, err := r.db.Query(ctx, `SELECT `+tripColumns+` FROM trips WHERE ($1 = '' OR tier = $1) ORDER BY trip_date, departure_at, id`, filter.Tier)
	if err != nil {
		return nil, classify("list trips", err)
	}
	defer rows.Close()

	trips := make([]domain.Trip, 0)
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, classify("list trips", err)
		}
		trips = append(trips, *t)
	}
	return trips, classify("list trips", rows.Err())
}

func (r *PGCatalogRepository) GetTrip(ctx context.Context, id int64) (*domain.Trip, error) {
	t, err := scanTrip(r.db.QueryRow(ctx, `SELECT `+tripColumns+` FROM trips WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("trip %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, classify("get trip", err)
	}
	return t, nil
}

func (r *PGCatalogRepository) GetBus(ctx context.Context, id int64) (*domain.Bus, error) {
	var b domain.Bus
	err := r.db.QueryRow(ctx, `SELECT id, plate_id, total_seats FROM buses WHERE id = $1`, id).Scan(&b.ID, &b.PlateID, &b.TotalSeats)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("bus %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, classify("get bus", err)
	}
	return &b, nil
}

func scanTrip(row pgx.Row) (*domain.Trip, error) {
	var t domain.Trip
	if err := row.Scan(&t.ID, &t.Source, &t.Destination, &t.Date, &t.DepartureAt, &t.ArrivalAt, &t.PriceCents, &t.Tier, &t.BusID); err != nil {
		return nil, err
	}
	return &t, nil
}

var _ CatalogRepository = (*PGCatalogRepository)(nil)

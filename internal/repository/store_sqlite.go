package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/Domenick1991/busbooking/internal/domain"
)

type busRow struct {
	bun.BaseModel `bun:"table:buses"`

	ID         int64  `bun:"id,pk,autoincrement"`
	PlateID    string `bun:"plate_id,notnull,unique"`
	TotalSeats int    `bun:"total_seats,notnull"`
}

type tripRow struct {
	bun.BaseModel `bun:"table:trips"`

	ID          int64     `bun:"id,pk,autoincrement"`
	Source      string    `bun:"source,notnull"`
	Destination string    `bun:"destination,notnull"`
	TripDate    time.Time `bun:"trip_date,notnull"`
	DepartureAt time.Time `bun:"departure_at,notnull"`
	ArrivalAt   time.Time `bun:"arrival_at,notnull"`
	PriceCents  int64     `bun:"price_cents,notnull"`
	Tier        string    `bun:"tier,notnull"`
	BusID       int64     `bun:"bus_id,notnull"`
}

type reservationRow struct {
	bun.BaseModel `bun:"table:reservations"`

	ID         string    `bun:"id,pk"`
	TripID     int64     `bun:"trip_id,notnull,unique:trip_seat"`
	UserID     int64     `bun:"user_id,notnull"`
	SeatNumber int       `bun:"seat_number,notnull,unique:trip_seat"`
	Meal       *string   `bun:"meal"`
	CreatedAt  time.Time `bun:"created_at,notnull"`
}

type userRow struct {
	bun.BaseModel `bun:"table:users"`

	ID           int64     `bun:"id,pk,autoincrement"`
	FullName     string    `bun:"full_name,notnull,unique"`
	Email        string    `bun:"email,notnull,unique"`
	PasswordHash string    `bun:"password_hash,notnull"`
	CreatedAt    time.Time `bun:"created_at,notnull"`
}

// SQLiteStore is the embedded seat ledger and catalog. The pool holds a single
// connection, so every transaction runs alone and commits on the same trip
// are serialized.
type SQLiteStore struct {
	db  *bun.DB
	now func() time.Time // подменяется в тестах
}

// OpenSQLite opens (or creates) the database at dsn and ensures the schema.
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// одно соединение: транзакции идут строго по очереди
	sqldb.SetMaxOpenConns(1)
	sqldb.SetMaxIdleConns(1)
	sqldb.SetConnMaxLifetime(0)

	s := &SQLiteStore{
		db:  bun.NewDB(sqldb, sqlitedialect.New()),
		now: func() time.Time { return time.Now().UTC() },
	}
	if err := s.createSchema(ctx); err != nil {
		_ = s.db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) createSchema(ctx context.Context) error {
	models := []interface{}{(*busRow)(nil), (*tripRow)(nil), (*reservationRow)(nil), (*userRow)(nil)}
	for _, model := range models {
		if _, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	_, err := s.db.NewCreateIndex().Model((*reservationRow)(nil)).Index("reservations_user_id_idx").IfNotExists().Column("user_id").Exec(ctx)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

// DB exposes the underlying handle for the users repository.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db.DB
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// AddBus and AddTrip publish catalog entries. Catalog maintenance lives
// outside the booking core: an embedded deployment either opens an already
// populated file or is seeded at startup from database.seed_path.
func (s *SQLiteStore) AddBus(ctx context.Context, bus *domain.Bus) error {
	row := &busRow{PlateID: bus.PlateID, TotalSeats: bus.TotalSeats}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return classify("add bus", err)
	}
	bus.ID = row.ID
	return nil
}

func (s *SQLiteStore) AddTrip(ctx context.Context, trip *domain.Trip) error {
	row := &tripRow{
		Source:      trip.Source,
		Destination: trip.Destination,
		TripDate:    trip.Date,
		DepartureAt: trip.DepartureAt,
		ArrivalAt:   trip.ArrivalAt,
		PriceCents:  trip.PriceCents,
		Tier:        trip.Tier,
		BusID:       trip.BusID,
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return classify("add trip", err)
	}
	trip.ID = row.ID
	return nil
}

// CatalogEmpty reports whether no bus has been published yet.
func (s *SQLiteStore) CatalogEmpty(ctx context.Context) (bool, error) {
	n, err := s.db.NewSelect().Model((*busRow)(nil)).Count(ctx)
	if err != nil {
		return false, classify("count buses", err)
	}
	return n == 0, nil
}

func (s *SQLiteStore) Capacity(ctx context.Context, tripID int64) (int, error) {
	return capacity(ctx, s.db, tripID)
}

func capacity(ctx context.Context, db bun.IDB, tripID int64) (int, error) {
	var total int
	err := db.NewSelect().
		TableExpr("trips AS t").
		Join("JOIN buses AS b ON b.id = t.bus_id").
		ColumnExpr("b.total_seats").
		Where("t.id = ?", tripID).
		Scan(ctx, &total)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("trip %d: %w", tripID, domain.ErrNotFound)
	}
	if err != nil {
		return 0, classify("capacity", err)
	}
	return total, nil
}

func (s *SQLiteStore) OccupiedSeats(ctx context.Context, tripID int64) ([]int, error) {
	if _, err := s.Capacity(ctx, tripID); err != nil {
		return nil, err
	}

	seats := make([]int, 0)
	err := s.db.NewSelect().
		Table("reservations").
		Column("seat_number").
		Where("trip_id = ?", tripID).
		Order("seat_number ASC").
		Scan(ctx, &seats)
	if err != nil {
		return nil, classify("occupied seats", err)
	}
	return seats, nil
}

func (s *SQLiteStore) TryCommit(ctx context.Context, claim domain.SeatClaim) (*domain.Reservation, error) {
	var res *domain.Reservation
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		total, err := capacity(ctx, tx, claim.TripID)
		if err != nil {
			return err
		}
		if err := checkSeat(claim.SeatNumber, total); err != nil {
			return err
		}

		occupied, err := tx.NewSelect().Model((*reservationRow)(nil)).Where("trip_id = ?", claim.TripID).Count(ctx)
		if err != nil {
			return classify("count seats", err)
		}
		if occupied >= total {
			return fmt.Errorf("trip %d: %w", claim.TripID, domain.ErrFull)
		}

		taken, err := tx.NewSelect().Model((*reservationRow)(nil)).
			Where("trip_id = ?", claim.TripID).
			Where("seat_number = ?", claim.SeatNumber).
			Exists(ctx)
		if err != nil {
			return classify("check seat", err)
		}
		if taken {
			return fmt.Errorf("trip %d seat %d: %w", claim.TripID, claim.SeatNumber, domain.ErrConflict)
		}

		row := &reservationRow{
			ID:         uuid.NewString(),
			TripID:     claim.TripID,
			UserID:     claim.UserID,
			SeatNumber: claim.SeatNumber,
			Meal:       claim.Meal,
			CreatedAt:  s.now(),
		}
		if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
			// не должно случиться при одном соединении, но индекс все равно проверяем
			if isSQLiteUniqueViolation(err) {
				return fmt.Errorf("trip %d seat %d: %w", claim.TripID, claim.SeatNumber, domain.ErrConflict)
			}
			return classify("insert reservation", err)
		}
		res, err = row.toDomain()
		return err
	})
	if err != nil {
		return nil, classify("commit", err)
	}
	return res, nil
}

func (s *SQLiteStore) OccupiedCounts(ctx context.Context, tripIDs []int64) (map[int64]int, error) {
	counts := make(map[int64]int, len(tripIDs))
	if len(tripIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		TripID int64 `bun:"trip_id"`
		N      int   `bun:"n"`
	}
	err := s.db.NewSelect().
		Table("reservations").
		ColumnExpr("trip_id, COUNT(*) AS n").
		Where("trip_id IN (?)", bun.In(tripIDs)).
		Group("trip_id").
		Scan(ctx, &rows)
	if err != nil {
		return nil, classify("occupied counts", err)
	}
	for _, r := range rows {
		counts[r.TripID] = r.N
	}
	return counts, nil
}

func (s *SQLiteStore) ReservationsByUser(ctx context.Context, userID int64) ([]domain.Reservation, error) {
	var rows []reservationRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("user_id = ?", userID).
		Order("trip_id ASC", "seat_number ASC").
		Scan(ctx)
	if err != nil {
		return nil, classify("user reservations", err)
	}

	reservations := make([]domain.Reservation, 0, len(rows))
	for _, row := range rows {
		res, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, *res)
	}
	return reservations, nil
}

func (s *SQLiteStore) ListTrips(ctx context.Context, filter domain.TripFilter) ([]domain.Trip, error) {
	var rows []tripRow
	q := s.db.NewSelect().Model(&rows)
	if filter.Tier != "" {
		q = q.Where("tier = ?", filter.Tier)
	}
	if err := q.Order("trip_date ASC", "departure_at ASC", "id ASC").Scan(ctx); err != nil {
		return nil, classify("list trips", err)
	}

	trips := make([]domain.Trip, 0, len(rows))
	for _, row := range rows {
		trips = append(trips, row.toDomain())
	}
	return trips, nil
}

func (s *SQLiteStore) GetTrip(ctx context.Context, id int64) (*domain.Trip, error) {
	var row tripRow
	err := s.db.NewSelect().Model(&row).Where("id = ?", id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("trip %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, classify("get trip", err)
	}
	t := row.toDomain()
	return &t, nil
}

func (s *SQLiteStore) GetBus(ctx context.Context, id int64) (*domain.Bus, error) {
	var row busRow
	err := s.db.NewSelect().Model(&row).Where("id = ?", id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("bus %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, classify("get bus", err)
	}
	return &domain.Bus{ID: row.ID, PlateID: row.PlateID, TotalSeats: row.TotalSeats}, nil
}

func (r tripRow) toDomain() domain.Trip {
	return domain.Trip{
		ID:          r.ID,
		Source:      r.Source,
		Destination: r.Destination,
		Date:        r.TripDate,
		DepartureAt: r.DepartureAt,
		ArrivalAt:   r.ArrivalAt,
		PriceCents:  r.PriceCents,
		Tier:        r.Tier,
		BusID:       r.BusID,
	}
}

func (r reservationRow) toDomain() (*domain.Reservation, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, fmt.Errorf("reservation id %q: %w", r.ID, domain.ErrStorage)
	}
	return &domain.Reservation{
		ID:         id,
		TripID:     r.TripID,
		UserID:     r.UserID,
		SeatNumber: r.SeatNumber,
		Meal:       r.Meal,
		CreatedAt:  r.CreatedAt,
	}, nil
}

func isSQLiteUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}

var (
	_ SeatLedger        = (*SQLiteStore)(nil)
	_ CatalogRepository = (*SQLiteStore)(nil)
)

package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/Domenick1991/busbooking/internal/domain"
)

// ledgerFixture seeds one bus with the given capacity and one trip on it.
type ledgerFixture struct {
	ledger  SeatLedger
	catalog CatalogRepository
	seed    func(t *testing.T, seats int, tier string, departure time.Time) int64
}

func runLedgerSuite(t *testing.T, newFixture func(t *testing.T) ledgerFixture) {
	ctx := context.Background()
	departure := time.Date(2026, 11, 2, 8, 30, 0, 0, time.UTC)

	t.Run("CapacityAndNotFound", func(t *testing.T) {
		f := newFixture(t)
		tripID := f.seed(t, 3, "economy", departure)

		total, err := f.ledger.Capacity(ctx, tripID)
		require.NoError(t, err)
		assert.Equal(t, 3, total)

		_, err = f.ledger.Capacity(ctx, tripID+1000)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		_, err = f.ledger.OccupiedSeats(ctx, tripID+1000)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		_, err = f.ledger.TryCommit(ctx, domain.SeatClaim{TripID: tripID + 1000, UserID: 1, SeatNumber: 1})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("CommitIsVisible", func(t *testing.T) {
		f := newFixture(t)
		tripID := f.seed(t, 3, "economy", departure)
		meal := "vegetarian"

		res, err := f.ledger.TryCommit(ctx, domain.SeatClaim{TripID: tripID, UserID: 11, SeatNumber: 2, Meal: &meal})
		require.NoError(t, err)
		assert.Equal(t, tripID, res.TripID)
		assert.Equal(t, int64(11), res.UserID)
		assert.Equal(t, 2, res.SeatNumber)
		require.NotNil(t, res.Meal)
		assert.Equal(t, meal, *res.Meal)
		assert.False(t, res.CreatedAt.IsZero())

		seats, err := f.ledger.OccupiedSeats(ctx, tripID)
		require.NoError(t, err)
		assert.Equal(t, []int{2}, seats)

		mine, err := f.ledger.ReservationsByUser(ctx, 11)
		require.NoError(t, err)
		require.Len(t, mine, 1)
		assert.Equal(t, res.ID, mine[0].ID)
		require.NotNil(t, mine[0].Meal)
		assert.Equal(t, meal, *mine[0].Meal)
	})

	t.Run("ConflictFullAndInvalidSeat", func(t *testing.T) {
		f := newFixture(t)
		tripID := f.seed(t, 2, "economy", departure)

		_, err := f.ledger.TryCommit(ctx, domain.SeatClaim{TripID: tripID, UserID: 1, SeatNumber: 1})
		require.NoError(t, err)

		_, err = f.ledger.TryCommit(ctx, domain.SeatClaim{TripID: tripID, UserID: 2, SeatNumber: 1})
		assert.ErrorIs(t, err, domain.ErrConflict)

		_, err = f.ledger.TryCommit(ctx, domain.SeatClaim{TripID: tripID, UserID: 2, SeatNumber: 0})
		assert.ErrorIs(t, err, domain.ErrInvalidSeat)
		_, err = f.ledger.TryCommit(ctx, domain.SeatClaim{TripID: tripID, UserID: 2, SeatNumber: 3})
		assert.ErrorIs(t, err, domain.ErrInvalidSeat)

		_, err = f.ledger.TryCommit(ctx, domain.SeatClaim{TripID: tripID, UserID: 2, SeatNumber: 2})
		require.NoError(t, err)

		// occupancy equals capacity: Full wins over the seat check
		_, err = f.ledger.TryCommit(ctx, domain.SeatClaim{TripID: tripID, UserID: 3, SeatNumber: 1})
		assert.ErrorIs(t, err, domain.ErrFull)

		seats, err := f.ledger.OccupiedSeats(ctx, tripID)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2}, seats)
	})

	t.Run("ConcurrentSameSeat", func(t *testing.T) {
		f := newFixture(t)
		tripID := f.seed(t, 4, "economy", departure)

		var mu sync.Mutex
		var successes, conflicts int
		var g errgroup.Group
		for i := 0; i < 2; i++ {
			userID := int64(i + 1)
			g.Go(func() error {
				_, err := f.ledger.TryCommit(ctx, domain.SeatClaim{TripID: tripID, UserID: userID, SeatNumber: 3})
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					successes++
				case errors.Is(err, domain.ErrConflict):
					conflicts++
				default:
					return err
				}
				return nil
			})
		}
		require.NoError(t, g.Wait())
		assert.Equal(t, 1, successes)
		assert.Equal(t, 1, conflicts)
	})

	t.Run("ConcurrentNeverOverbooks", func(t *testing.T) {
		f := newFixture(t)
		const capacity = 5
		tripID := f.seed(t, capacity, "economy", departure)

		var mu sync.Mutex
		committed := make([]int, 0)
		var g errgroup.Group
		for i := 0; i < 4*capacity; i++ {
			seat := i%capacity + 1
			userID := int64(100 + i)
			g.Go(func() error {
				res, err := f.ledger.TryCommit(ctx, domain.SeatClaim{TripID: tripID, UserID: userID, SeatNumber: seat})
				if errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrFull) {
					return nil
				}
				if err != nil {
					return err
				}
				mu.Lock()
				committed = append(committed, res.SeatNumber)
				mu.Unlock()
				return nil
			})
		}
		require.NoError(t, g.Wait())

		sort.Ints(committed)
		assert.Equal(t, []int{1, 2, 3, 4, 5}, committed)

		seats, err := f.ledger.OccupiedSeats(ctx, tripID)
		require.NoError(t, err)
		assert.Equal(t, committed, seats)
	})

	t.Run("OccupiedCounts", func(t *testing.T) {
		f := newFixture(t)
		a := f.seed(t, 3, "economy", departure)
		b := f.seed(t, 3, "premium", departure)
		empty := f.seed(t, 3, "economy", departure)

		for _, claim := range []domain.SeatClaim{
			{TripID: a, UserID: 1, SeatNumber: 1},
			{TripID: a, UserID: 2, SeatNumber: 2},
			{TripID: b, UserID: 1, SeatNumber: 3},
		} {
			_, err := f.ledger.TryCommit(ctx, claim)
			require.NoError(t, err)
		}

		counts, err := f.ledger.OccupiedCounts(ctx, []int64{a, b, empty})
		require.NoError(t, err)
		assert.Equal(t, 2, counts[a])
		assert.Equal(t, 1, counts[b])
		assert.Equal(t, 0, counts[empty])

		counts, err = f.ledger.OccupiedCounts(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, counts)
	})

	t.Run("ExpiredDeadline", func(t *testing.T) {
		f := newFixture(t)
		tripID := f.seed(t, 3, "economy", departure)

		expired, cancel := context.WithDeadline(ctx, time.Now().Add(-time.Second))
		defer cancel()

		_, err := f.ledger.TryCommit(expired, domain.SeatClaim{TripID: tripID, UserID: 1, SeatNumber: 1})
		assert.ErrorIs(t, err, domain.ErrTimeout)

		seats, err := f.ledger.OccupiedSeats(ctx, tripID)
		require.NoError(t, err)
		assert.Empty(t, seats)
	})

	t.Run("Catalog", func(t *testing.T) {
		f := newFixture(t)
		later := f.seed(t, 3, "premium", departure.Add(48*time.Hour))
		sooner := f.seed(t, 3, "economy", departure)

		trips, err := f.catalog.ListTrips(ctx, domain.TripFilter{})
		require.NoError(t, err)
		require.Len(t, trips, 2)
		assert.Equal(t, sooner, trips[0].ID)
		assert.Equal(t, later, trips[1].ID)

		premium, err := f.catalog.ListTrips(ctx, domain.TripFilter{Tier: "premium"})
		require.NoError(t, err)
		require.Len(t, premium, 1)
		assert.Equal(t, later, premium[0].ID)

		trip, err := f.catalog.GetTrip(ctx, sooner)
		require.NoError(t, err)
		assert.Equal(t, "Cairo", trip.Source)
		assert.True(t, departure.Equal(trip.DepartureAt))

		bus, err := f.catalog.GetBus(ctx, trip.BusID)
		require.NoError(t, err)
		assert.Equal(t, 3, bus.TotalSeats)

		_, err = f.catalog.GetTrip(ctx, later+1000)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = f.catalog.GetBus(ctx, trip.BusID+1000)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

package bootstrap

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Domenick1991/busbooking/internal/domain"
	"github.com/Domenick1991/busbooking/internal/repository"
)

// catalogSeed is the YAML fixture loaded into an empty embedded catalog.
type catalogSeed struct {
	Buses []busSeed `yaml:"buses"`
}

type busSeed struct {
	PlateID    string     `yaml:"plate_id"`
	TotalSeats int        `yaml:"total_seats"`
	Trips      []tripSeed `yaml:"trips"`
}

type tripSeed struct {
	Source      string    `yaml:"source"`
	Destination string    `yaml:"destination"`
	DepartureAt time.Time `yaml:"departure_at"`
	ArrivalAt   time.Time `yaml:"arrival_at"`
	PriceCents  int64     `yaml:"price_cents"`
	Tier        string    `yaml:"tier"`
}

func loadCatalogSeed(path string) (*catalogSeed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog seed: %w", err)
	}
	var seed catalogSeed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse catalog seed: %w", err)
	}

	for _, bus := range seed.Buses {
		if bus.PlateID == "" || bus.TotalSeats <= 0 {
			return nil, fmt.Errorf("catalog seed: bus %q needs a plate_id and positive total_seats", bus.PlateID)
		}
		for _, trip := range bus.Trips {
			if trip.DepartureAt.IsZero() || trip.ArrivalAt.Before(trip.DepartureAt) {
				return nil, fmt.Errorf("catalog seed: trip %s-%s on bus %q has invalid times", trip.Source, trip.Destination, bus.PlateID)
			}
		}
	}
	return &seed, nil
}

// seedCatalog publishes the fixture at path, but only into an empty catalog,
// so restarting on the same file is a no-op.
func seedCatalog(ctx context.Context, store *repository.SQLiteStore, path string, logger *zap.Logger) error {
	seed, err := loadCatalogSeed(path)
	if err != nil {
		return err
	}

	empty, err := store.CatalogEmpty(ctx)
	if err != nil {
		return err
	}
	if !empty {
		logger.Info("catalog already populated, seed skipped", zap.String("path", path))
		return nil
	}

	trips := 0
	for _, b := range seed.Buses {
		bus := &domain.Bus{PlateID: b.PlateID, TotalSeats: b.TotalSeats}
		if err := store.AddBus(ctx, bus); err != nil {
			return fmt.Errorf("seed bus %q: %w", b.PlateID, err)
		}
		for _, t := range b.Trips {
			departure := t.DepartureAt.UTC()
			trip := &domain.Trip{
				Source:      t.Source,
				Destination: t.Destination,
				Date:        time.Date(departure.Year(), departure.Month(), departure.Day(), 0, 0, 0, 0, time.UTC),
				DepartureAt: departure,
				ArrivalAt:   t.ArrivalAt.UTC(),
				PriceCents:  t.PriceCents,
				Tier:        t.Tier,
				BusID:       bus.ID,
			}
			if err := store.AddTrip(ctx, trip); err != nil {
				return fmt.Errorf("seed trip %s-%s: %w", t.Source, t.Destination, err)
			}
			trips++
		}
	}
	logger.Info("catalog seeded", zap.String("path", path), zap.Int("buses", len(seed.Buses)), zap.Int("trips", trips))
	return nil
}

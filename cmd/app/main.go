package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Domenick1991/busbooking/api"
	"github.com/Domenick1991/busbooking/config"
	"github.com/Domenick1991/busbooking/internal/bootstrap"
	"github.com/Domenick1991/busbooking/internal/cache"
	"github.com/Domenick1991/busbooking/internal/kafka"
	"github.com/Domenick1991/busbooking/internal/logger"
	"github.com/Domenick1991/busbooking/internal/service/availability"
	"github.com/Domenick1991/busbooking/internal/service/booking"
	"github.com/Domenick1991/busbooking/internal/service/identity"
	"github.com/Domenick1991/busbooking/internal/session"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	lg, err := logger.New(cfg.Log, "busbooking-api")
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := bootstrap.OpenStores(ctx, cfg.Database, lg)
	if err != nil {
		lg.Fatal("open stores", zap.Error(err))
	}
	defer stores.Close()

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		lg.Fatal("connect redis", zap.Error(err))
	}
	defer redisClient.Close()

	var producer booking.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		p := kafka.NewProducer(cfg.Kafka.Brokers, lg)
		defer p.Close()
		producer = p
	} else {
		lg.Warn("kafka brokers not configured, reservation events disabled")
	}

	bookingService := booking.NewBookingService(
		stores.Ledger,
		producer,
		cfg.Kafka.BookingTopic,
		booking.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
		booking.WithTimeout(cfg.Booking.LedgerTimeout()),
		booking.WithLogger(lg.Named("booking")),
	)
	availabilityService := availability.NewAvailabilityService(
		stores.Catalog,
		stores.Ledger,
		cache.NewRedisCache(redisClient, cfg.Booking.TripsCacheTTLDuration()),
		availability.WithLogger(lg.Named("availability")),
	)
	identityService := identity.NewIdentityService(stores.Users, cfg.Identity.BcryptCost, lg.Named("identity"))
	sessions := session.NewStore(redisClient, cfg.Session.Secret, cfg.Session.TTL())

	var spec string
	if cfg.HTTP.SwaggerDir != "" {
		spec = filepath.Join(cfg.HTTP.SwaggerDir, "busbooking.swagger.json")
	}

	router := api.NewRouter(api.RouterDeps{
		Logger:       lg.Named("http"),
		Sessions:     sessions,
		Identity:     identityService,
		Availability: availabilityService,
		Bookings:     bookingService,
		Cookie:       api.CookieOptions{Name: cfg.Session.CookieName, Secure: cfg.Session.CookieSecure},
		CORSOrigins:  cfg.HTTP.CORSOrigins,
		OpenAPISpec:  spec,
	})

	if err := bootstrap.Run(ctx, cfg, router, lg); err != nil {
		lg.Fatal("server error", zap.Error(err))
	}
}

package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"

	"github.com/Domenick1991/busbooking/internal/service/availability"
	"github.com/Domenick1991/busbooking/internal/service/booking"
	"github.com/Domenick1991/busbooking/internal/service/identity"
)

type RouterDeps struct {
	Logger       *zap.Logger
	Sessions     SessionManager
	Identity     identity.IdentityUseCase
	Availability availability.AvailabilityUseCase
	Bookings     booking.BookingUseCase
	Cookie       CookieOptions
	CORSOrigins  []string
	// OpenAPISpec is a path to the OpenAPI document; empty disables /docs.
	OpenAPISpec string
}

func NewRouter(deps RouterDeps) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(logger))
	if len(deps.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     deps.CORSOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if deps.OpenAPISpec != "" {
		router.StaticFile("/openapi.json", deps.OpenAPISpec)
		router.GET("/docs/*any", gin.WrapH(httpSwagger.Handler(httpSwagger.URL("/openapi.json"))))
	}

	apiGroup := router.Group("/api")
	apiGroup.Use(Session(deps.Sessions, deps.Cookie.Name))

	NewAuthHandler(deps.Identity, deps.Sessions, deps.Cookie).Register(apiGroup)
	NewTripHandler(deps.Availability).Register(apiGroup.Group("/trips"))

	protected := apiGroup.Group("")
	protected.Use(RequireUser())
	NewBookingHandler(deps.Bookings, deps.Availability).Register(protected)

	return router
}

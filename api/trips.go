package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Domenick1991/busbooking/internal/domain"
	"github.com/Domenick1991/busbooking/internal/service/availability"
)

type TripHandler struct {
	service availability.AvailabilityUseCase
}

type tripResponse struct {
	ID             int64  `json:"id"`
	Source         string `json:"source"`
	Destination    string `json:"destination"`
	TripDate       string `json:"trip_date"`
	DepartureAt    string `json:"departure_at"`
	ArrivalAt      string `json:"arrival_at"`
	PriceCents     int64  `json:"price_cents"`
	Tier           string `json:"tier"`
	BusID          int64  `json:"bus_id"`
	PlateID        string `json:"plate_id"`
	TotalSeats     int    `json:"total_seats"`
	ReservedSeats  int    `json:"reserved_seats"`
	AvailableSeats int    `json:"available_seats"`
}

type seatsResponse struct {
	TripID     int64 `json:"trip_id"`
	Reserved   []int `json:"reserved"`
	TotalSeats int   `json:"total_seats"`
}

func NewTripHandler(service availability.AvailabilityUseCase) *TripHandler {
	return &TripHandler{service: service}
}

func (h *TripHandler) Register(router *gin.RouterGroup) {
	router.GET("", h.list)
	router.GET("/:id", h.get)
	router.GET("/:id/seats", h.seats)
}

func (h *TripHandler) list(c *gin.Context) {
	trips, err := h.service.ListTrips(c.Request.Context(), domain.TripFilter{Tier: c.Query("tier")})
	if err != nil {
		writeError(c, err)
		return
	}

	resp := make([]tripResponse, 0, len(trips))
	for _, t := range trips {
		resp = append(resp, toTripResponse(t))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *TripHandler) get(c *gin.Context) {
	id, ok := tripID(c)
	if !ok {
		return
	}
	trip, err := h.service.TripDetail(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTripResponse(*trip))
}

func (h *TripHandler) seats(c *gin.Context) {
	id, ok := tripID(c)
	if !ok {
		return
	}
	seats, err := h.service.ReservedSeats(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, seatsResponse{TripID: seats.TripID, Reserved: seats.Occupied, TotalSeats: seats.TotalSeats})
}

func tripID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid trip id")
		return 0, false
	}
	return id, true
}

func toTripResponse(t domain.TripSummary) tripResponse {
	return tripResponse{
		ID:             t.ID,
		Source:         t.Source,
		Destination:    t.Destination,
		TripDate:       t.Date.Format(time.DateOnly),
		DepartureAt:    t.DepartureAt.UTC().Format(time.RFC3339),
		ArrivalAt:      t.ArrivalAt.UTC().Format(time.RFC3339),
		PriceCents:     t.PriceCents,
		Tier:           t.Tier,
		BusID:          t.BusID,
		PlateID:        t.PlateID,
		TotalSeats:     t.TotalSeats,
		ReservedSeats:  t.ReservedSeats,
		AvailableSeats: t.AvailableSeats,
	}
}

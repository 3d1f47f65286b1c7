package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Domenick1991/busbooking/internal/domain"
	"github.com/Domenick1991/busbooking/internal/service/availability"
	"github.com/Domenick1991/busbooking/internal/service/booking"
)

type BookingHandler struct {
	bookings     booking.BookingUseCase
	availability availability.AvailabilityUseCase
}

type reserveRequest struct {
	SeatNumber int     `json:"seat_number" binding:"required"`
	Meal       *string `json:"meal"`
}

type reservationResponse struct {
	ReservationID string  `json:"reservation_id"`
	TripID        int64   `json:"trip_id"`
	SeatNumber    int     `json:"seat_number"`
	Meal          *string `json:"meal,omitempty"`
	CreatedAt     string  `json:"created_at"`
}

type tripBookingResponse struct {
	TripID      int64  `json:"trip_id"`
	Source      string `json:"source"`
	Destination string `json:"destination"`
	DepartureAt string `json:"departure_at"`
	ArrivalAt   string `json:"arrival_at"`
	Tier        string `json:"tier"`
	PlateID     string `json:"plate_id"`
	SeatsBooked int    `json:"seats_booked"`
	SeatNumbers []int  `json:"seat_numbers"`
}

type userTripsResponse struct {
	Upcoming []tripBookingResponse `json:"upcoming"`
	Past     []tripBookingResponse `json:"past"`
}

func NewBookingHandler(bookings booking.BookingUseCase, availability availability.AvailabilityUseCase) *BookingHandler {
	return &BookingHandler{bookings: bookings, availability: availability}
}

// Register mounts the booking routes. Every route needs an authenticated user.
func (h *BookingHandler) Register(router *gin.RouterGroup) {
	router.POST("/trips/:id/book", h.book)
	router.POST("/trips/:id/reserve", h.reserve)
	router.GET("/user/trips", h.userTrips)
}

func (h *BookingHandler) book(c *gin.Context) {
	id, ok := tripID(c)
	if !ok {
		return
	}
	userID, _ := currentUser(c)

	reservation, err := h.bookings.BookTrip(c.Request.Context(), id, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toReservationResponse(reservation))
}

func (h *BookingHandler) reserve(c *gin.Context) {
	id, ok := tripID(c)
	if !ok {
		return
	}
	var req reserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "seat_number is required")
		return
	}
	if req.Meal != nil && strings.TrimSpace(*req.Meal) == "" {
		req.Meal = nil
	}
	userID, _ := currentUser(c)

	reservation, err := h.bookings.ReserveTrip(c.Request.Context(), booking.ReserveTripInput{
		TripID:     id,
		UserID:     userID,
		SeatNumber: req.SeatNumber,
		Meal:       req.Meal,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toReservationResponse(reservation))
}

func (h *BookingHandler) userTrips(c *gin.Context) {
	userID, _ := currentUser(c)

	trips, err := h.availability.UserTrips(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, userTripsResponse{
		Upcoming: toTripBookingResponses(trips.Upcoming),
		Past:     toTripBookingResponses(trips.Past),
	})
}

func toReservationResponse(r *domain.Reservation) reservationResponse {
	return reservationResponse{
		ReservationID: r.ID.String(),
		TripID:        r.TripID,
		SeatNumber:    r.SeatNumber,
		Meal:          r.Meal,
		CreatedAt:     r.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toTripBookingResponses(bookings []domain.TripBooking) []tripBookingResponse {
	resp := make([]tripBookingResponse, 0, len(bookings))
	for _, b := range bookings {
		resp = append(resp, tripBookingResponse{
			TripID:      b.TripID,
			Source:      b.Source,
			Destination: b.Destination,
			DepartureAt: b.DepartureAt.UTC().Format(time.RFC3339),
			ArrivalAt:   b.ArrivalAt.UTC().Format(time.RFC3339),
			Tier:        b.Tier,
			PlateID:     b.PlateID,
			SeatsBooked: b.SeatsBooked,
			SeatNumbers: b.SeatNumbers,
		})
	}
	return resp
}

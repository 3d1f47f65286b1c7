package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Domenick1991/busbooking/internal/domain"
	"github.com/Domenick1991/busbooking/internal/service/identity"
)

type routerFixture struct {
	router       *gin.Engine
	sessions     *MockSessionManager
	identity     *MockIdentityUseCase
	availability *MockAvailabilityUseCase
	bookings     *MockBookingUseCase
}

func newRouterFixture() *routerFixture {
	gin.SetMode(gin.TestMode)
	f := &routerFixture{
		sessions:     &MockSessionManager{},
		identity:     &MockIdentityUseCase{},
		availability: &MockAvailabilityUseCase{},
		bookings:     &MockBookingUseCase{},
	}
	f.router = NewRouter(RouterDeps{
		Sessions:     f.sessions,
		Identity:     f.identity,
		Availability: f.availability,
		Bookings:     f.bookings,
		Cookie:       CookieOptions{Name: "session"},
		CORSOrigins:  []string{"http://localhost:3000"},
	})
	return f
}

func (f *routerFixture) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{domain.ErrNotFound, http.StatusNotFound, "not_found"},
		{domain.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated"},
		{domain.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
		{domain.ErrFull, http.StatusConflict, "full"},
		{domain.ErrConflict, http.StatusConflict, "conflict"},
		{domain.ErrDuplicateUser, http.StatusConflict, "duplicate_user"},
		{domain.ErrInvalidSeat, http.StatusBadRequest, "invalid_seat"},
		{domain.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
		{domain.ErrTimeout, http.StatusGatewayTimeout, "timeout"},
		{domain.ErrStorage, http.StatusServiceUnavailable, "storage_failure"},
		{fmt.Errorf("wrapped: %w", domain.ErrConflict), http.StatusConflict, "conflict"},
		{fmt.Errorf("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		status, code := statusFor(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.code, code, tc.err.Error())
	}
}

func TestRouter_Health(t *testing.T) {
	f := newRouterFixture()

	w := f.do(httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_PublicTripRoutes(t *testing.T) {
	f := newRouterFixture()
	f.availability.On("ListTrips", mock.Anything, domain.TripFilter{Tier: "economy"}).Return([]domain.TripSummary{}, nil).Once()

	w := f.do(httptest.NewRequest("GET", "/api/trips?tier=economy", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	f.sessions.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything)
}

func TestRouter_BookingRequiresSession(t *testing.T) {
	f := newRouterFixture()

	w := f.do(httptest.NewRequest("POST", "/api/trips/1/book", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"unauthenticated"`)
	f.bookings.AssertNotCalled(t, "BookTrip", mock.Anything, mock.Anything, mock.Anything)
}

func TestRouter_RevokedSessionIsAnonymous(t *testing.T) {
	f := newRouterFixture()
	f.sessions.On("Resolve", mock.Anything, "stale").Return(int64(0), domain.ErrUnauthenticated).Once()

	req := httptest.NewRequest("GET", "/api/user/trips", nil)
	req.Header.Set("Authorization", "Bearer stale")
	w := f.do(req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_BookWithBearerToken(t *testing.T) {
	f := newRouterFixture()
	f.sessions.On("Resolve", mock.Anything, "tok").Return(int64(42), nil).Once()
	f.bookings.On("BookTrip", mock.Anything, int64(7), int64(42)).
		Return(&domain.Reservation{ID: uuid.New(), TripID: 7, UserID: 42, SeatNumber: 3, CreatedAt: time.Now()}, nil).Once()

	req := httptest.NewRequest("POST", "/api/trips/7/book", nil)
	req.Header.Set("Authorization", "Bearer tok")
	w := f.do(req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"seat_number":3`)
	f.bookings.AssertExpectations(t)
}

func TestRouter_ReserveWithCookie(t *testing.T) {
	f := newRouterFixture()
	f.sessions.On("Resolve", mock.Anything, "cookie-tok").Return(int64(8), nil).Once()
	f.bookings.On("ReserveTrip", mock.Anything, mock.Anything).
		Return(nil, domain.ErrConflict).Once()

	req := httptest.NewRequest("POST", "/api/trips/7/reserve", strings.NewReader(`{"seat_number":5}`))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: "session", Value: "cookie-tok"})
	w := f.do(req)

	assert.Equal(t, http.StatusConflict, w.Code)
	f.sessions.AssertExpectations(t)
}

func TestRouter_SessionStoreDown(t *testing.T) {
	f := newRouterFixture()
	f.sessions.On("Resolve", mock.Anything, "tok").Return(int64(0), fmt.Errorf("load: %w", domain.ErrStorage)).Once()

	req := httptest.NewRequest("GET", "/api/user/trips", nil)
	req.Header.Set("Authorization", "Bearer tok")
	w := f.do(req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	f.availability.AssertNotCalled(t, "UserTrips", mock.Anything, mock.Anything)
}

func TestRouter_Register(t *testing.T) {
	f := newRouterFixture()
	input := identity.RegisterInput{FullName: "Mona", Email: "mona@example.com", Password: "pw"}
	f.identity.On("Register", mock.Anything, input).Return(&domain.User{ID: 1, FullName: "Mona", Email: "mona@example.com"}, nil).Once()
	f.identity.On("Register", mock.Anything, input).Return(nil, domain.ErrDuplicateUser).Once()

	body, _ := json.Marshal(registerRequest{FullName: "Mona", Email: "mona@example.com", Password: "pw"})
	req := httptest.NewRequest("POST", "/api/register", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := f.do(req)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.NotContains(t, w.Body.String(), "password")

	req = httptest.NewRequest("POST", "/api/register", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w = f.do(req)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"duplicate_user"`)
}

func TestRouter_LoginSetsCookie(t *testing.T) {
	f := newRouterFixture()
	expires := time.Now().Add(time.Hour)
	f.identity.On("Authenticate", mock.Anything, "Mona", "pw").Return(&domain.User{ID: 1, FullName: "Mona"}, nil).Once()
	f.sessions.On("Create", mock.Anything, int64(1)).Return("new-token", expires, nil).Once()

	req := httptest.NewRequest("POST", "/api/login", strings.NewReader(`{"full_name":"Mona","password":"pw"}`))
	req.Header.Set("Content-Type", "application/json")
	w := f.do(req)

	require.Equal(t, http.StatusOK, w.Code)
	var response loginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "new-token", response.Token)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "session", cookies[0].Name)
	assert.Equal(t, "new-token", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
}

func TestRouter_LoginRejected(t *testing.T) {
	f := newRouterFixture()
	f.identity.On("Authenticate", mock.Anything, "Mona", "bad").Return(nil, domain.ErrInvalidCredentials).Once()

	req := httptest.NewRequest("POST", "/api/login", strings.NewReader(`{"full_name":"Mona","password":"bad"}`))
	req.Header.Set("Content-Type", "application/json")
	w := f.do(req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	f.sessions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)

	req = httptest.NewRequest("POST", "/api/login", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w = f.do(req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_LogoutRevokes(t *testing.T) {
	f := newRouterFixture()
	f.sessions.On("Resolve", mock.Anything, "tok").Return(int64(1), nil).Once()
	f.sessions.On("Revoke", mock.Anything, "tok").Return(nil).Once()

	req := httptest.NewRequest("POST", "/api/logout", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: "tok"})
	w := f.do(req)

	assert.Equal(t, http.StatusOK, w.Code)
	f.sessions.AssertExpectations(t)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "", cookies[0].Value)
}

func TestRouter_Me(t *testing.T) {
	f := newRouterFixture()

	w := f.do(httptest.NewRequest("GET", "/api/me", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"authenticated":false}`, w.Body.String())

	f.sessions.On("Resolve", mock.Anything, "tok").Return(int64(3), nil).Once()
	f.identity.On("Profile", mock.Anything, int64(3)).Return(&domain.User{ID: 3, FullName: "Omar", Email: "omar@example.com"}, nil).Once()

	req := httptest.NewRequest("GET", "/api/me", nil)
	req.Header.Set("Authorization", "Bearer tok")
	w = f.do(req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"authenticated":true,"user":{"id":3,"full_name":"Omar","email":"omar@example.com"}}`, w.Body.String())
}

func TestRouter_CORSPreflight(t *testing.T) {
	f := newRouterFixture()

	req := httptest.NewRequest("OPTIONS", "/api/trips", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := f.do(req)

	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

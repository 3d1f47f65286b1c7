package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthenticated = errors.New("authentication required")
	ErrFull            = errors.New("trip is fully booked")
	ErrConflict        = errors.New("seat already reserved")
	ErrTimeout         = errors.New("seat ledger deadline exceeded")
	ErrStorage         = errors.New("storage unavailable")

	ErrInvalidSeat        = errors.New("invalid seat number")
	ErrInvalidInput       = errors.New("invalid input")
	ErrDuplicateUser      = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// IsUserError reports whether err is caused by the caller's input rather than
// by the server, so the caller should change the request instead of retrying.
func IsUserError(err error) bool {
	for _, target := range []error{ErrNotFound, ErrFull, ErrConflict, ErrInvalidSeat, ErrInvalidInput, ErrDuplicateUser} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

package ledger

import "errors"

// ErrInvalidInput is returned when a required field is missing or a value
// is malformed (empty user name, non-positive duration).  Handlers should
// translate this into an HTTP 400 response.
var ErrInvalidInput = errors.New("invalid input")

// ErrOutOfRange is returned when a space ID does not name a region of
// the catalog.  Handlers should translate this into an HTTP 400 response.
var ErrOutOfRange = errors.New("invalid space ID")

// ErrConflict is returned when a space already carries a live
// reservation.  Handlers should translate this into an HTTP 409 response.
var ErrConflict = errors.New("space already reserved")

// ErrNotFound is returned when cancelling a space that has no
// reservation.  Handlers should translate this into an HTTP 404 response.
var ErrNotFound = errors.New("no reservation found for this space")

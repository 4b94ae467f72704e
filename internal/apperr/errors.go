package apperr

import "errors"

// Sentinel errors for the chat core. Handlers translate these to transport
// status codes; everything else is treated as internal.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotAParticipant   = errors.New("not a participant")
	ErrForbidden         = errors.New("forbidden")
	ErrBrokerUnavailable = errors.New("broker unavailable")
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrInternal          = errors.New("internal error")
)

// IsAccessDenied reports whether err must be presented to clients as
// "cannot access this room". Forbidden and NotFound are deliberately
// indistinguishable on the wire so room existence never leaks to
// non-participants.
func IsAccessDenied(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrNotAParticipant)
}

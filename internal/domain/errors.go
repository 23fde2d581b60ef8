package domain

import "errors"

// Sentinel errors returned by services and repos. Handlers map each to a
// stable wire code with errors.Is; nothing downstream inspects messages.

// ErrNotFound is returned when the requested resource does not exist.
// Handlers map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned when input fails business rule validation.
// Handlers map this to HTTP 400 with code "validation_error".
var ErrValidation = errors.New("validation error")

// ErrForbiddenRole is returned when the caller's role cannot perform the
// requested action. Handlers map this to HTTP 400 with code "forbidden",
// matching the public API contract.
var ErrForbiddenRole = errors.New("forbidden")

// ErrScopeNotFound is returned when the caller has no resolvable
// school/bus/driver association (e.g. a driver with no assigned bus).
var ErrScopeNotFound = errors.New("driver_scope_not_found")

// ErrTripAlreadyRunning is returned when a trip start would violate the
// one-running-trip-per-bus invariant.
var ErrTripAlreadyRunning = errors.New("trip_already_running")

// ErrTargetNotFound is returned when a (trip, target) pair does not match
// an existing row. It deliberately covers both "does not exist" and "wrong
// trip" so that cross-tenant probes cannot distinguish the two.
var ErrTargetNotFound = errors.New("target_not_found")

package domain

import "github.com/google/uuid"

// DriverScope is the (school, driver, bus) association resolved for a
// driver's user id. A driver without a bus assignment has no scope.
type DriverScope struct {
	SchoolID uuid.UUID
	DriverID uuid.UUID
	BusID    uuid.UUID
}

// ReminderSubscription is a parent's proximity-reminder configuration for
// one student, joined to the student's pending home target on a trip.
// Owned by the notifications collaborator; consumed read-only here.
type ReminderSubscription struct {
	ParentUserID uuid.UUID
	StudentID    uuid.UUID
	Enabled      bool
	// Radii in kilometres; nil means "use the default" (5 km pickup,
	// 10 km dropoff).
	PickupRadiusKM  *float64
	DropoffRadiusKM *float64
	// Home is the student's resolved home coordinate; nil when no address
	// is on file, in which case the subscription is skipped.
	Home *Coordinate
}

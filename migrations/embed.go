// Package migrations carries the schema of the tracking core: the roster
// tables read for scope resolution and target seeding, the trip aggregate
// (trips, targets, locations, events), and the notification ledger that
// doubles as the reminder cooldown store.
package migrations

import "embed"

// FS holds all *.sql migration files embedded at compile time. Hand it to
// goose.NewProvider; neither the server binary nor the tests resolve
// migrations from disk.
//
//go:embed *.sql
var FS embed.FS

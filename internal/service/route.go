// Package service contains the business logic for the tracking backend.
// Services validate inputs, enforce role rules, and orchestrate repo calls.
// No SQL lives here — services depend on repo interfaces, not
// implementations.
package service

import (
	"github.com/schoolrun/backend/internal/domain"
	"github.com/schoolrun/backend/internal/geo"
	"github.com/schoolrun/backend/internal/repo"
)

// OrderTargets arranges pending stops into a visiting sequence with a
// greedy nearest-neighbor walk: starting from origin, repeatedly pick the
// unvisited target closest by great-circle distance, then advance to it.
//
// O(n²) in the number of targets, which is fine at bus-roster sizes.
// The tie-break is stable with respect to input order: a later target must
// be strictly closer to displace the current best, so equidistant stops
// keep their insertion order.
//
// The returned slice is a fresh ordering; the input is not modified.
func OrderTargets(origin domain.Coordinate, targets []repo.RouteTarget) []repo.RouteTarget {
	if len(targets) == 0 {
		return nil
	}

	remaining := make([]repo.RouteTarget, len(targets))
	copy(remaining, targets)

	ordered := make([]repo.RouteTarget, 0, len(targets))
	curr := origin
	for len(remaining) > 0 {
		best := 0
		bestDist := geo.HaversineM(curr.Lat, curr.Lng, remaining[0].Lat, remaining[0].Lng)
		for i := 1; i < len(remaining); i++ {
			d := geo.HaversineM(curr.Lat, curr.Lng, remaining[i].Lat, remaining[i].Lng)
			if d < bestDist {
				best = i
				bestDist = d
			}
		}

		next := remaining[best]
		ordered = append(ordered, next)
		remaining = append(remaining[:best], remaining[best+1:]...)
		curr = domain.Coordinate{Lat: next.Lat, Lng: next.Lng}
	}
	return ordered
}

// targetOrders maps an ordered target slice to (id, 1-based index) pairs
// for persistence.
func targetOrders(ordered []repo.RouteTarget) []repo.TargetOrder {
	out := make([]repo.TargetOrder, len(ordered))
	for i, t := range ordered {
		out[i] = repo.TargetOrder{ID: t.ID, OrderIndex: i + 1}
	}
	return out
}

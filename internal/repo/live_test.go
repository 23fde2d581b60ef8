package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolrun/backend/internal/domain"
	"github.com/schoolrun/backend/internal/repo"
)

func TestLiveRepo_ForSchool(t *testing.T) {
	r := newRoster(t)
	ctx := context.Background()
	lr := repo.NewLiveRepo(r.tx)

	r.addStudent(t, "Ada", nil, ptrF(6.49), ptrF(3.29))
	r.addStudent(t, "Bayo", nil, ptrF(6.51), ptrF(3.31))
	tripID := r.startTrip(t, domain.DirectionPickup)

	older := time.Date(2026, 3, 9, 7, 10, 0, 0, time.UTC)
	newest := time.Date(2026, 3, 9, 7, 20, 0, 0, time.UTC)
	speed := 28.0
	_, err := repo.NewLocationRepo(r.tx).InsertBatch(ctx, tripID, []domain.LocationPoint{
		{Lat: 6.50, Lng: 3.30, RecordedAt: &older},
		{Lat: 6.505, Lng: 3.305, RecordedAt: &newest, SpeedKPH: &speed},
	})
	require.NoError(t, err)

	trips, err := lr.ForSchool(ctx, r.schoolID)
	require.NoError(t, err)
	require.Len(t, trips, 1)

	lt := trips[0]
	assert.Equal(t, tripID, lt.TripID)
	assert.Equal(t, r.busID, lt.BusID)
	require.NotNil(t, lt.BusName)
	assert.Equal(t, "Bus 12", *lt.BusName)
	assert.Equal(t, domain.DirectionPickup, lt.Direction)
	assert.Equal(t, 2, lt.RemainingPending)
	require.NotNil(t, lt.Lat)
	assert.InDelta(t, 6.505, *lt.Lat, 1e-9, "latest ping wins")
	require.NotNil(t, lt.SpeedKPH)
	assert.InDelta(t, 28.0, *lt.SpeedKPH, 1e-9)
}

func TestLiveRepo_ForSchool_NoPingsYet(t *testing.T) {
	r := newRoster(t)

	r.startTrip(t, domain.DirectionDropoff)

	trips, err := repo.NewLiveRepo(r.tx).ForSchool(context.Background(), r.schoolID)
	require.NoError(t, err)
	require.Len(t, trips, 1)
	assert.Nil(t, trips[0].Lat, "no position before the first ping")
	assert.Nil(t, trips[0].RecordedAt)
}

func TestLiveRepo_ForSchool_ExcludesEndedAndForeign(t *testing.T) {
	r := newRoster(t)
	ctx := context.Background()
	lr := repo.NewLiveRepo(r.tx)

	ended := r.startTrip(t, domain.DirectionPickup)
	require.NoError(t, repo.NewTripRepo(r.tx).End(ctx, ended, r.driverUserID))

	trips, err := lr.ForSchool(ctx, r.schoolID)
	require.NoError(t, err)
	assert.Empty(t, trips, "ended trips are not live")

	trips, err = lr.ForSchool(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, trips, "another school sees nothing")
}

func TestLiveRepo_ForParent(t *testing.T) {
	r := newRoster(t)
	ctx := context.Background()

	parentUser := uuid.New()
	r.addParent(t, parentUser, ptrF(6.45), ptrF(3.25))
	r.addStudent(t, "Ada", &parentUser, nil, nil)

	tripID := r.startTrip(t, domain.DirectionDropoff)
	at := time.Date(2026, 3, 9, 14, 5, 0, 0, time.UTC)
	_, err := repo.NewLocationRepo(r.tx).InsertBatch(ctx, tripID, []domain.LocationPoint{
		{Lat: 6.48, Lng: 3.28, RecordedAt: &at},
	})
	require.NoError(t, err)

	view, err := repo.NewLiveRepo(r.tx).ForParent(ctx, parentUser)
	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Equal(t, tripID, view.TripID)
	assert.Equal(t, r.busID, view.BusID)
	assert.Equal(t, domain.DirectionDropoff, view.Direction)
	require.NotNil(t, view.Lat)
	assert.InDelta(t, 6.48, *view.Lat, 1e-9)
	require.NotNil(t, view.SchoolLat)
	assert.InDelta(t, 6.50, *view.SchoolLat, 1e-9)
	require.NotNil(t, view.HomeLat)
	assert.InDelta(t, 6.45, *view.HomeLat, 1e-9)
}

func TestLiveRepo_ForParent_NoRunningTrip(t *testing.T) {
	r := newRoster(t)

	parentUser := uuid.New()
	r.addParent(t, parentUser, nil, nil)
	r.addStudent(t, "Ada", &parentUser, nil, nil)

	view, err := repo.NewLiveRepo(r.tx).ForParent(context.Background(), parentUser)
	require.NoError(t, err)
	assert.Nil(t, view, "idle bus means no live view, not an error")
}

func TestLiveRepo_ForParent_UnknownUser(t *testing.T) {
	r := newRoster(t)

	view, err := repo.NewLiveRepo(r.tx).ForParent(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, view)
}

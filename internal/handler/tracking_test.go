package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolrun/backend/internal/domain"
	"github.com/schoolrun/backend/internal/service"
)

func TestLiveView_StaffGetsArray(t *testing.T) {
	live := &mockLiveServicer{
		view: func(_ context.Context, _ uuid.UUID, role domain.Role, schoolID *uuid.UUID) (service.LiveView, error) {
			assert.Equal(t, domain.RoleAdmin, role)
			assert.Nil(t, schoolID)
			return service.LiveView{Trips: []domain.LiveTrip{
				{TripID: testTripID, BusID: uuid.New(), Direction: domain.DirectionPickup, RemainingPending: 3},
			}}, nil
		},
	}
	h := newTestHandler(nil, nil, live)

	rec := do(t, h, http.MethodGet, "/tracking/live", nil, testUserID, "admin")

	require.Equal(t, http.StatusOK, rec.Code)
	var rows []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, testTripID.String(), rows[0]["trip_id"])
	assert.EqualValues(t, 3, rows[0]["remaining_pending"])
}

// The school_id query parameter reaches the service, which decides whether
// the caller's role may use it.
func TestLiveView_SchoolIDParamForwarded(t *testing.T) {
	school := uuid.New()
	live := &mockLiveServicer{
		view: func(_ context.Context, _ uuid.UUID, _ domain.Role, schoolID *uuid.UUID) (service.LiveView, error) {
			require.NotNil(t, schoolID)
			assert.Equal(t, school, *schoolID)
			return service.LiveView{Trips: []domain.LiveTrip{}}, nil
		},
	}
	h := newTestHandler(nil, nil, live)

	rec := do(t, h, http.MethodGet, "/tracking/live?school_id="+school.String(), nil, testUserID, "superadmin")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String(), "empty array, not null")
}

func TestLiveView_BadSchoolID_400(t *testing.T) {
	h := newTestHandler(nil, nil, &mockLiveServicer{})

	rec := do(t, h, http.MethodGet, "/tracking/live?school_id=nope", nil, testUserID, "superadmin")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", decodeBody(t, rec)["message"])
}

// Parents get the same array shape as staff on the shared endpoint: their
// single entry wrapped in a one-element array.
func TestLiveView_ParentGetsSingleElementArray(t *testing.T) {
	live := &mockLiveServicer{
		view: func(_ context.Context, _ uuid.UUID, _ domain.Role, _ *uuid.UUID) (service.LiveView, error) {
			return service.LiveView{Parent: &domain.ParentLiveView{
				TripID:    testTripID,
				BusID:     uuid.New(),
				Direction: domain.DirectionDropoff,
			}}, nil
		},
	}
	h := newTestHandler(nil, nil, live)

	rec := do(t, h, http.MethodGet, "/tracking/live", nil, testUserID, "parent")

	require.Equal(t, http.StatusOK, rec.Code)
	var rows []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, testTripID.String(), rows[0]["trip_id"])
	assert.Equal(t, "dropoff", rows[0]["direction"])
}

func TestLiveView_ParentWithNoRunningTripGetsEmptyArray(t *testing.T) {
	live := &mockLiveServicer{
		view: func(_ context.Context, _ uuid.UUID, _ domain.Role, _ *uuid.UUID) (service.LiveView, error) {
			return service.LiveView{}, nil
		},
	}
	h := newTestHandler(nil, nil, live)

	rec := do(t, h, http.MethodGet, "/tracking/live", nil, testUserID, "parent")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String(), "empty array, not null")
}

func TestLiveMine_200(t *testing.T) {
	live := &mockLiveServicer{
		mine: func(_ context.Context, userID uuid.UUID, role domain.Role) (*domain.ParentLiveView, error) {
			assert.Equal(t, testUserID, userID)
			assert.Equal(t, domain.RoleParent, role)
			return &domain.ParentLiveView{TripID: testTripID, Direction: domain.DirectionPickup}, nil
		},
	}
	h := newTestHandler(nil, nil, live)

	rec := do(t, h, http.MethodGet, "/tracking/live/mine", nil, testUserID, "parent")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testTripID.String(), decodeBody(t, rec)["trip_id"])
}

func TestLiveMine_NonParent_400(t *testing.T) {
	live := &mockLiveServicer{
		mine: func(_ context.Context, _ uuid.UUID, _ domain.Role) (*domain.ParentLiveView, error) {
			return nil, domain.ErrForbiddenRole
		},
	}
	h := newTestHandler(nil, nil, live)

	rec := do(t, h, http.MethodGet, "/tracking/live/mine", nil, testUserID, "driver")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "forbidden", decodeBody(t, rec)["message"])
}

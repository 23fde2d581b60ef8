package repo_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolrun/backend/internal/domain"
	"github.com/schoolrun/backend/internal/repo"
)

func TestScopeRepo_DriverScopeByUser(t *testing.T) {
	r := newRoster(t)

	scope, err := repo.NewScopeRepo(r.tx).DriverScopeByUser(context.Background(), r.driverUserID)
	require.NoError(t, err)
	assert.Equal(t, r.schoolID, scope.SchoolID)
	assert.Equal(t, r.driverID, scope.DriverID)
	assert.Equal(t, r.busID, scope.BusID)
}

func TestScopeRepo_DriverScopeByUser_NotADriver(t *testing.T) {
	r := newRoster(t)

	_, err := repo.NewScopeRepo(r.tx).DriverScopeByUser(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrScopeNotFound)
}

func TestScopeRepo_DriverScopeByUser_NoBusAssignment(t *testing.T) {
	r := newRoster(t)

	// A driver row with no bus link is no scope at all.
	benchedUser := uuid.New()
	r.insertReturningID(t, `
		INSERT INTO drivers (school_id, user_id, name)
		VALUES ($1, $2, 'Benched Driver')
		RETURNING id`, r.schoolID, benchedUser)

	_, err := repo.NewScopeRepo(r.tx).DriverScopeByUser(context.Background(), benchedUser)
	assert.ErrorIs(t, err, domain.ErrScopeNotFound)
}

func TestScopeRepo_SchoolIDByAdminUser(t *testing.T) {
	r := newRoster(t)
	sr := repo.NewScopeRepo(r.tx)

	id, err := sr.SchoolIDByAdminUser(context.Background(), r.adminUserID)
	require.NoError(t, err)
	assert.Equal(t, r.schoolID, id)

	_, err = sr.SchoolIDByAdminUser(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestScopeRepo_SchoolIDByTeacherUser(t *testing.T) {
	r := newRoster(t)
	sr := repo.NewScopeRepo(r.tx)

	teacherUser := uuid.New()
	r.insertReturningID(t, `
		INSERT INTO teachers (school_id, user_id, name)
		VALUES ($1, $2, 'Ms. Ngozi')
		RETURNING id`, r.schoolID, teacherUser)

	id, err := sr.SchoolIDByTeacherUser(context.Background(), teacherUser)
	require.NoError(t, err)
	assert.Equal(t, r.schoolID, id)

	_, err = sr.SchoolIDByTeacherUser(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestScopeRepo_SchoolCoords(t *testing.T) {
	r := newRoster(t)
	sr := repo.NewScopeRepo(r.tx)

	coord, err := sr.SchoolCoords(context.Background(), r.schoolID)
	require.NoError(t, err)
	require.NotNil(t, coord)
	assert.InDelta(t, 6.50, coord.Lat, 1e-9)
	assert.InDelta(t, 3.30, coord.Lng, 1e-9)
}

func TestScopeRepo_SchoolCoords_NoneOnFile(t *testing.T) {
	r := newRoster(t)

	bare := r.insertReturningID(t, `
		INSERT INTO schools (user_id, name) VALUES ($1, 'No Address Academy') RETURNING id`,
		uuid.New())

	coord, err := repo.NewScopeRepo(r.tx).SchoolCoords(context.Background(), bare)
	require.NoError(t, err)
	assert.Nil(t, coord)
}

func TestScopeRepo_NotificationFanoutLookups(t *testing.T) {
	r := newRoster(t)
	ctx := context.Background()
	sr := repo.NewScopeRepo(r.tx)

	teacherUser := uuid.New()
	r.insertReturningID(t, `
		INSERT INTO teachers (school_id, user_id, name)
		VALUES ($1, $2, 'Ms. Ngozi')
		RETURNING id`, r.schoolID, teacherUser)

	admin, err := sr.AdminUserIDBySchool(ctx, r.schoolID)
	require.NoError(t, err)
	assert.Equal(t, r.adminUserID, admin)

	driver, err := sr.DriverUserIDByDriver(ctx, r.driverID)
	require.NoError(t, err)
	assert.Equal(t, r.driverUserID, driver)

	teachers, err := sr.TeacherUserIDsBySchool(ctx, r.schoolID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{teacherUser}, teachers)
}

func TestScopeRepo_ParentForTarget(t *testing.T) {
	r := newRoster(t)
	ctx := context.Background()
	sr := repo.NewScopeRepo(r.tx)

	parentUser := uuid.New()
	r.addParent(t, parentUser, nil, nil)
	student := r.addStudent(t, "Ada", &parentUser, ptrF(6.49), ptrF(3.29))
	orphan := r.addStudent(t, "Bayo", nil, ptrF(6.51), ptrF(3.31))

	tripID := r.startTrip(t, domain.DirectionPickup)
	targets, err := repo.NewTargetRepo(r.tx).List(ctx, tripID)
	require.NoError(t, err)

	info, err := sr.ParentForTarget(ctx, tripID, targetFor(t, targets, student).TargetID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", info.StudentName)
	assert.Equal(t, r.schoolID, info.SchoolID)
	require.NotNil(t, info.ParentUserID)
	assert.Equal(t, parentUser, *info.ParentUserID)

	// No linked parent account — still resolvable, just nobody to notify.
	info, err = sr.ParentForTarget(ctx, tripID, targetFor(t, targets, orphan).TargetID)
	require.NoError(t, err)
	assert.Nil(t, info.ParentUserID)

	_, err = sr.ParentForTarget(ctx, tripID, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

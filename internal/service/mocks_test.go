package service_test

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/schoolrun/backend/internal/domain"
	"github.com/schoolrun/backend/internal/notify"
	"github.com/schoolrun/backend/internal/repo"
	"github.com/schoolrun/backend/internal/tasks"
)

// Hand-written test doubles for the repo interfaces. Each method is a
// function field — set only the ones your test needs; an unset field
// panics, which surfaces unexpected calls immediately.

type mockTripRepo struct {
	createWithTargets func(ctx context.Context, t repo.NewTrip) (uuid.UUID, error)
	findRunningForBus func(ctx context.Context, schoolID, busID uuid.UUID) (uuid.UUID, bool, error)
	getByID           func(ctx context.Context, id uuid.UUID) (domain.Trip, error)
	end               func(ctx context.Context, tripID, endedByUser uuid.UUID) error
	listByDriverUser  func(ctx context.Context, userID uuid.UUID, f domain.TripListFilter) ([]domain.Trip, error)
	listBySchoolUser  func(ctx context.Context, userID uuid.UUID, f domain.TripListFilter) ([]domain.Trip, error)
	listByParentUser  func(ctx context.Context, userID uuid.UUID, f domain.TripListFilter) ([]domain.Trip, error)
}

func (m *mockTripRepo) CreateWithTargets(ctx context.Context, t repo.NewTrip) (uuid.UUID, error) {
	return m.createWithTargets(ctx, t)
}
func (m *mockTripRepo) FindRunningForBus(ctx context.Context, schoolID, busID uuid.UUID) (uuid.UUID, bool, error) {
	return m.findRunningForBus(ctx, schoolID, busID)
}
func (m *mockTripRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Trip, error) {
	return m.getByID(ctx, id)
}
func (m *mockTripRepo) End(ctx context.Context, tripID, endedByUser uuid.UUID) error {
	return m.end(ctx, tripID, endedByUser)
}
func (m *mockTripRepo) ListByDriverUser(ctx context.Context, userID uuid.UUID, f domain.TripListFilter) ([]domain.Trip, error) {
	return m.listByDriverUser(ctx, userID, f)
}
func (m *mockTripRepo) ListBySchoolUser(ctx context.Context, userID uuid.UUID, f domain.TripListFilter) ([]domain.Trip, error) {
	return m.listBySchoolUser(ctx, userID, f)
}
func (m *mockTripRepo) ListByParentUser(ctx context.Context, userID uuid.UUID, f domain.TripListFilter) ([]domain.Trip, error) {
	return m.listByParentUser(ctx, userID, f)
}

var _ repo.TripRepo = (*mockTripRepo)(nil)

type mockTargetRepo struct {
	updateStatus func(ctx context.Context, tripID, targetID uuid.UUID, status domain.TargetStatus) (bool, error)
	forOrdering  func(ctx context.Context, tripID uuid.UUID) ([]repo.RouteTarget, error)
	updateOrder  func(ctx context.Context, tripID uuid.UUID, ordered []repo.TargetOrder) error
	list         func(ctx context.Context, tripID uuid.UUID) ([]domain.TargetSummary, error)
}

func (m *mockTargetRepo) UpdateStatus(ctx context.Context, tripID, targetID uuid.UUID, status domain.TargetStatus) (bool, error) {
	return m.updateStatus(ctx, tripID, targetID, status)
}
func (m *mockTargetRepo) ForOrdering(ctx context.Context, tripID uuid.UUID) ([]repo.RouteTarget, error) {
	return m.forOrdering(ctx, tripID)
}
func (m *mockTargetRepo) UpdateOrder(ctx context.Context, tripID uuid.UUID, ordered []repo.TargetOrder) error {
	return m.updateOrder(ctx, tripID, ordered)
}
func (m *mockTargetRepo) List(ctx context.Context, tripID uuid.UUID) ([]domain.TargetSummary, error) {
	return m.list(ctx, tripID)
}

var _ repo.TargetRepo = (*mockTargetRepo)(nil)

type mockScopeRepo struct {
	driverScopeByUser      func(ctx context.Context, userID uuid.UUID) (domain.DriverScope, error)
	schoolIDByAdminUser    func(ctx context.Context, userID uuid.UUID) (uuid.UUID, error)
	schoolIDByTeacherUser  func(ctx context.Context, userID uuid.UUID) (uuid.UUID, error)
	schoolCoords           func(ctx context.Context, schoolID uuid.UUID) (*domain.Coordinate, error)
	adminUserIDBySchool    func(ctx context.Context, schoolID uuid.UUID) (uuid.UUID, error)
	driverUserIDByDriver   func(ctx context.Context, driverID uuid.UUID) (uuid.UUID, error)
	teacherUserIDsBySchool func(ctx context.Context, schoolID uuid.UUID) ([]uuid.UUID, error)
	parentForTarget        func(ctx context.Context, tripID, targetID uuid.UUID) (repo.ParentTargetInfo, error)
}

func (m *mockScopeRepo) DriverScopeByUser(ctx context.Context, userID uuid.UUID) (domain.DriverScope, error) {
	return m.driverScopeByUser(ctx, userID)
}
func (m *mockScopeRepo) SchoolIDByAdminUser(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	return m.schoolIDByAdminUser(ctx, userID)
}
func (m *mockScopeRepo) SchoolIDByTeacherUser(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	return m.schoolIDByTeacherUser(ctx, userID)
}
func (m *mockScopeRepo) SchoolCoords(ctx context.Context, schoolID uuid.UUID) (*domain.Coordinate, error) {
	return m.schoolCoords(ctx, schoolID)
}
func (m *mockScopeRepo) AdminUserIDBySchool(ctx context.Context, schoolID uuid.UUID) (uuid.UUID, error) {
	return m.adminUserIDBySchool(ctx, schoolID)
}
func (m *mockScopeRepo) DriverUserIDByDriver(ctx context.Context, driverID uuid.UUID) (uuid.UUID, error) {
	return m.driverUserIDByDriver(ctx, driverID)
}
func (m *mockScopeRepo) TeacherUserIDsBySchool(ctx context.Context, schoolID uuid.UUID) ([]uuid.UUID, error) {
	return m.teacherUserIDsBySchool(ctx, schoolID)
}
func (m *mockScopeRepo) ParentForTarget(ctx context.Context, tripID, targetID uuid.UUID) (repo.ParentTargetInfo, error) {
	return m.parentForTarget(ctx, tripID, targetID)
}

var _ repo.ScopeRepo = (*mockScopeRepo)(nil)

type mockLocationRepo struct {
	insertBatch func(ctx context.Context, tripID uuid.UUID, points []domain.LocationPoint) (int, error)
	latest      func(ctx context.Context, tripID uuid.UUID) (domain.TripLocation, error)
}

func (m *mockLocationRepo) InsertBatch(ctx context.Context, tripID uuid.UUID, points []domain.LocationPoint) (int, error) {
	return m.insertBatch(ctx, tripID, points)
}
func (m *mockLocationRepo) Latest(ctx context.Context, tripID uuid.UUID) (domain.TripLocation, error) {
	return m.latest(ctx, tripID)
}

var _ repo.LocationRepo = (*mockLocationRepo)(nil)

type mockReminderRepo struct {
	subscriptionsForTrip func(ctx context.Context, tripID uuid.UUID) ([]domain.ReminderSubscription, error)
	hasRecentReminder    func(ctx context.Context, userID uuid.UUID, notifType string, studentID uuid.UUID, within time.Duration) (bool, error)
}

func (m *mockReminderRepo) SubscriptionsForTrip(ctx context.Context, tripID uuid.UUID) ([]domain.ReminderSubscription, error) {
	return m.subscriptionsForTrip(ctx, tripID)
}
func (m *mockReminderRepo) HasRecentReminder(ctx context.Context, userID uuid.UUID, notifType string, studentID uuid.UUID, within time.Duration) (bool, error) {
	return m.hasRecentReminder(ctx, userID, notifType, studentID, within)
}

var _ repo.ReminderRepo = (*mockReminderRepo)(nil)

type mockLiveRepo struct {
	forSchool func(ctx context.Context, schoolID uuid.UUID) ([]domain.LiveTrip, error)
	forParent func(ctx context.Context, parentUserID uuid.UUID) (*domain.ParentLiveView, error)
}

func (m *mockLiveRepo) ForSchool(ctx context.Context, schoolID uuid.UUID) ([]domain.LiveTrip, error) {
	return m.forSchool(ctx, schoolID)
}
func (m *mockLiveRepo) ForParent(ctx context.Context, parentUserID uuid.UUID) (*domain.ParentLiveView, error) {
	return m.forParent(ctx, parentUserID)
}

var _ repo.LiveRepo = (*mockLiveRepo)(nil)

// recordingDispatcher captures every dispatched notification so tests can
// assert on the fan-out. Safe for concurrent use.
type recordingDispatcher struct {
	mu   sync.Mutex
	sent []notify.Notification
	err  error
}

func (d *recordingDispatcher) Notify(_ context.Context, n notify.Notification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, n)
	return nil
}

func (d *recordingDispatcher) all() []notify.Notification {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]notify.Notification, len(d.sent))
	copy(out, d.sent)
	return out
}

func (d *recordingDispatcher) ofType(typ string) []notify.Notification {
	var out []notify.Notification
	for _, n := range d.all() {
		if n.Type == typ {
			out = append(out, n)
		}
	}
	return out
}

var _ notify.Dispatcher = (*recordingDispatcher)(nil)

// inlineRunner runs submitted tasks synchronously, which keeps tests
// deterministic without sleeping on a real queue.
type inlineRunner struct {
	submitted []string
}

func (r *inlineRunner) Submit(name string, fn tasks.Task) {
	r.submitted = append(r.submitted, name)
	_ = fn(context.Background())
}

var _ tasks.Submitter = (*inlineRunner)(nil)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

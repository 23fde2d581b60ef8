package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/schoolrun/backend/internal/domain"
	"github.com/schoolrun/backend/internal/handler"
	"github.com/schoolrun/backend/internal/middleware"
	"github.com/schoolrun/backend/internal/service"
)

var testSecret = []byte("handler-test-secret")

// Test doubles for the servicer interfaces. Set only the method fields your
// test needs.

type mockTripServicer struct {
	start              func(ctx context.Context, driverUserID uuid.UUID, role domain.Role, direction domain.TripDirection, routeName *string) (service.StartResult, error)
	updateTargetStatus func(ctx context.Context, driverUserID uuid.UUID, role domain.Role, tripID, targetID uuid.UUID, status domain.TargetStatus) error
	end                func(ctx context.Context, userID uuid.UUID, role domain.Role, tripID uuid.UUID) error
	list               func(ctx context.Context, userID uuid.UUID, role domain.Role, f domain.TripListFilter) ([]domain.Trip, error)
	get                func(ctx context.Context, tripID uuid.UUID) (domain.TripDetail, error)
}

func (m *mockTripServicer) Start(ctx context.Context, driverUserID uuid.UUID, role domain.Role, direction domain.TripDirection, routeName *string) (service.StartResult, error) {
	return m.start(ctx, driverUserID, role, direction, routeName)
}
func (m *mockTripServicer) UpdateTargetStatus(ctx context.Context, driverUserID uuid.UUID, role domain.Role, tripID, targetID uuid.UUID, status domain.TargetStatus) error {
	return m.updateTargetStatus(ctx, driverUserID, role, tripID, targetID, status)
}
func (m *mockTripServicer) End(ctx context.Context, userID uuid.UUID, role domain.Role, tripID uuid.UUID) error {
	return m.end(ctx, userID, role, tripID)
}
func (m *mockTripServicer) List(ctx context.Context, userID uuid.UUID, role domain.Role, f domain.TripListFilter) ([]domain.Trip, error) {
	return m.list(ctx, userID, role, f)
}
func (m *mockTripServicer) Get(ctx context.Context, tripID uuid.UUID) (domain.TripDetail, error) {
	return m.get(ctx, tripID)
}

var _ handler.TripServicer = (*mockTripServicer)(nil)

type mockLocationServicer struct {
	addLocations func(ctx context.Context, driverUserID uuid.UUID, role domain.Role, tripID uuid.UUID, points []domain.LocationPoint) (int, error)
}

func (m *mockLocationServicer) AddLocations(ctx context.Context, driverUserID uuid.UUID, role domain.Role, tripID uuid.UUID, points []domain.LocationPoint) (int, error) {
	return m.addLocations(ctx, driverUserID, role, tripID, points)
}

var _ handler.LocationServicer = (*mockLocationServicer)(nil)

type mockLiveServicer struct {
	view func(ctx context.Context, userID uuid.UUID, role domain.Role, schoolID *uuid.UUID) (service.LiveView, error)
	mine func(ctx context.Context, userID uuid.UUID, role domain.Role) (*domain.ParentLiveView, error)
}

func (m *mockLiveServicer) View(ctx context.Context, userID uuid.UUID, role domain.Role, schoolID *uuid.UUID) (service.LiveView, error) {
	return m.view(ctx, userID, role, schoolID)
}
func (m *mockLiveServicer) Mine(ctx context.Context, userID uuid.UUID, role domain.Role) (*domain.ParentLiveView, error) {
	return m.mine(ctx, userID, role)
}

var _ handler.LiveServicer = (*mockLiveServicer)(nil)

// ---- helpers ---------------------------------------------------------------

// newTestHandler mounts a Server onto a chi router with the real auth
// middleware, exactly how main.go wires it in production.
func newTestHandler(trips handler.TripServicer, locations handler.LocationServicer, live handler.LiveServicer) http.Handler {
	srv := handler.NewServer(trips, locations, live, []byte("openapi: 3.0.3\n"), slog.New(slog.DiscardHandler))
	r := chi.NewRouter()
	srv.Mount(r, middleware.NewAuthenticator(testSecret))
	return r
}

// bearer returns a signed token for the given user and role claim.
func bearer(t *testing.T, userID uuid.UUID, role string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  userID.String(),
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString(testSecret)
	require.NoError(t, err)
	return "Bearer " + signed
}

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(b)
}

// do runs an authenticated request and returns the recorder.
func do(t *testing.T, h http.Handler, method, path string, body *bytes.Buffer, userID uuid.UUID, role string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, body)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Authorization", bearer(t, userID, role))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// decodeBody unmarshals the recorded JSON response.
func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

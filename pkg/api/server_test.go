package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetward/fleetward/pkg/booking"
	"github.com/fleetward/fleetward/pkg/db"
	"github.com/fleetward/fleetward/pkg/models"
	"github.com/fleetward/fleetward/pkg/scheduler"
	"github.com/fleetward/fleetward/pkg/stream"
)

// 2026-09-01 is a Tuesday.
var testDay = time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

type queueingIngestor struct {
	queued []models.TelemetrySample
	err    error
}

func (q *queueingIngestor) Ingest(sample *models.TelemetrySample) error {
	if q.err != nil {
		return q.err
	}

	if err := sample.Validate(); err != nil {
		return err
	}

	q.queued = append(q.queued, *sample)

	return nil
}

type fixture struct {
	store    db.Service
	server   *APIServer
	ingestor *queueingIngestor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, err := db.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Logf("failed to close test db: %v", err)
		}
	})

	centre := &models.ServiceCentre{
		ID:          "SC-001",
		Name:        "Downtown Service",
		Contact:     "+15550001111",
		MaxCapacity: 1,
		WorkingHours: models.WorkingHours{
			Start: "09:00",
			End:   "11:00",
		},
		WorkingDays: []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"},
		SlotMinutes: 60,
	}
	require.NoError(t, store.CreateServiceCentre(centre))

	allocator := scheduler.New(store, func() time.Time { return testDay })

	_, err = allocator.SeedSlots(centre, testDay)
	require.NoError(t, err)

	ingestor := &queueingIngestor{}
	manager := booking.New(store, nil, nil)
	server := NewAPIServer(store, ingestor, allocator, manager, nil, stream.NewHub(0))

	return &fixture{store: store, server: server, ingestor: ingestor}
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader

	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.server.router.ServeHTTP(rec, req)

	return rec
}

func TestPostTelemetry(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/telemetry", map[string]interface{}{
		"vehicle_id":    "VH-1001",
		"timestamp":     testDay.Format(time.RFC3339),
		"engine_temp_c": 125,
	})

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, f.ingestor.queued, 1)
	assert.Equal(t, 125.0, f.ingestor.queued[0].EngineTempC)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "queued", resp["status"])
}

func TestPostTelemetryInvalid(t *testing.T) {
	f := newFixture(t)

	// Missing vehicle_id fails validation.
	rec := f.do(t, http.MethodPost, "/api/telemetry", map[string]interface{}{
		"timestamp": testDay.Format(time.RFC3339),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Garbage payload.
	req := httptest.NewRequest(http.MethodPost, "/api/telemetry", bytes.NewReader([]byte("{not json")))
	rec = httptest.NewRecorder()
	f.server.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetCentresAndSlots(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/centres", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var centres []models.ServiceCentre
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &centres))
	require.Len(t, centres, 1)
	assert.Equal(t, "SC-001", centres[0].ID)

	rec = f.do(t, http.MethodGet, "/api/centres/SC-001/slots?date=2026-09-01", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var slots []models.ServiceSlot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &slots))
	assert.Len(t, slots, 2)

	rec = f.do(t, http.MethodGet, "/api/centres/SC-missing/slots?date=2026-09-01", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/centres/SC-001/slots?date=tomorrow", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBookingLifecycleOverHTTP(t *testing.T) {
	f := newFixture(t)

	// Create.
	rec := f.do(t, http.MethodPost, "/api/bookings", createBookingRequest{
		VehicleID: "VH-1001",
		UserID:    "U-1",
		CentreID:  "SC-001",
		Date:      "2026-09-01",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var b models.Booking
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b))
	assert.Equal(t, models.BookingPending, b.Status)

	// Fetch.
	rec = f.do(t, http.MethodGet, "/api/bookings/"+b.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Confirm.
	rec = f.do(t, http.MethodPost, "/api/bookings/"+b.ID+"/status", transitionRequest{
		Status: string(models.BookingConfirmed),
		Notes:  "confirmed by user",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var updated models.Booking
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, models.BookingConfirmed, updated.Status)

	// An illegal jump is a conflict.
	rec = f.do(t, http.MethodPost, "/api/bookings/"+b.ID+"/status", transitionRequest{
		Status: string(models.BookingCompleted),
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// An unknown status is a bad request.
	rec = f.do(t, http.MethodPost, "/api/bookings/"+b.ID+"/status", transitionRequest{
		Status: "SHIPPED",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Cancel.
	rec = f.do(t, http.MethodPost, "/api/bookings/"+b.ID+"/cancel", cancelRequest{
		Reason: "customer request",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var cancelled models.Booking
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cancelled))
	assert.Equal(t, models.BookingCancelled, cancelled.Status)
	assert.Equal(t, "customer request", cancelled.CancelReason)
}

func TestBookingNotFound(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/bookings/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/bookings/missing/status", transitionRequest{
		Status: string(models.BookingConfirmed),
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateBookingConflict(t *testing.T) {
	f := newFixture(t)

	// Capacity 1, two windows: two bookings fill the day.
	for i := 0; i < 2; i++ {
		rec := f.do(t, http.MethodPost, "/api/bookings", createBookingRequest{
			VehicleID: "VH-1001",
			CentreID:  "SC-001",
			Date:      "2026-09-01",
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := f.do(t, http.MethodPost, "/api/bookings", createBookingRequest{
		VehicleID: "VH-2002",
		CentreID:  "SC-001",
		Date:      "2026-09-01",
	})
	require.Equal(t, http.StatusConflict, rec.Code)

	var conflict scheduler.CapacityConflictError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conflict))
	assert.Equal(t, "SC-001", conflict.CentreID)
	assert.Empty(t, conflict.Alternatives)
}

func TestCreateBookingValidation(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/bookings", createBookingRequest{
		CentreID: "SC-001",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/bookings", createBookingRequest{
		VehicleID: "VH-1001",
		Urgency:   "URGENT",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLatestTelemetryWithoutCache(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/vehicles/VH-1001/telemetry", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodOptions, "/api/centres", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

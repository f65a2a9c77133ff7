// pkg/api/server.go

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/fleetward/fleetward/pkg/booking"
	"github.com/fleetward/fleetward/pkg/cache"
	"github.com/fleetward/fleetward/pkg/db"
	"github.com/fleetward/fleetward/pkg/models"
	"github.com/fleetward/fleetward/pkg/scheduler"
	"github.com/fleetward/fleetward/pkg/stream"
)

const dateLayout = "2006-01-02"

type APIServer struct {
	store     db.Service
	ingestor  Ingestor
	allocator *scheduler.Allocator
	bookings  *booking.Manager
	latest    cache.LatestStore
	hub       *stream.Hub
	router    *mux.Router
}

func NewAPIServer(store db.Service, ingestor Ingestor, allocator *scheduler.Allocator,
	bookings *booking.Manager, latest cache.LatestStore, hub *stream.Hub) *APIServer {
	s := &APIServer{
		store:     store,
		ingestor:  ingestor,
		allocator: allocator,
		bookings:  bookings,
		latest:    latest,
		hub:       hub,
		router:    mux.NewRouter(),
	}
	s.setupRoutes()

	return s
}

func (s *APIServer) setupRoutes() {
	// Add CORS middleware
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	// Telemetry ingestion
	s.router.HandleFunc("/api/telemetry", s.postTelemetry).Methods("POST")

	// Service centres
	s.router.HandleFunc("/api/centres", s.getCentres).Methods("GET")
	s.router.HandleFunc("/api/centres/{id}/slots", s.getCentreSlots).Methods("GET")

	// Bookings
	s.router.HandleFunc("/api/bookings", s.createBooking).Methods("POST")
	s.router.HandleFunc("/api/bookings/{id}", s.getBooking).Methods("GET")
	s.router.HandleFunc("/api/bookings/{id}/status", s.transitionBooking).Methods("POST")
	s.router.HandleFunc("/api/bookings/{id}/cancel", s.cancelBooking).Methods("POST")

	// Alerts
	s.router.HandleFunc("/api/alerts", s.getOpenAlerts).Methods("GET")
	s.router.HandleFunc("/api/alerts/{id}", s.getAlert).Methods("GET")
	s.router.HandleFunc("/api/alerts/{id}/notifications", s.getAlertNotifications).Methods("GET")

	// Vehicles
	s.router.HandleFunc("/api/vehicles/{id}/telemetry", s.getLatestTelemetry).Methods("GET")
	s.router.HandleFunc("/api/vehicles/{id}/bookings", s.getVehicleBookings).Methods("GET")
	s.router.HandleFunc("/api/vehicles/{id}/ws", s.streamTelemetry).Methods("GET")
}

func (s *APIServer) postTelemetry(w http.ResponseWriter, r *http.Request) {
	var sample models.TelemetrySample
	if err := json.NewDecoder(r.Body).Decode(&sample); err != nil {
		http.Error(w, "Invalid telemetry payload", http.StatusBadRequest)
		return
	}

	if err := s.ingestor.Ingest(&sample); err != nil {
		if errors.Is(err, models.ErrInvalidSample) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		log.Printf("Error ingesting telemetry for %s: %v", sample.VehicleID, err)
		http.Error(w, "Ingestion unavailable", http.StatusServiceUnavailable)

		return
	}

	w.WriteHeader(http.StatusAccepted)
	s.writeJSON(w, map[string]string{"status": "queued", "vehicle_id": sample.VehicleID})
}

func (s *APIServer) getCentres(w http.ResponseWriter, _ *http.Request) {
	centres, err := s.store.ListServiceCentres()
	if err != nil {
		log.Printf("Error listing service centres: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)

		return
	}

	s.writeJSON(w, centres)
}

func (s *APIServer) getCentreSlots(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	centreID := vars["id"]

	date := time.Now()

	if v := r.URL.Query().Get("date"); v != "" {
		parsed, err := time.Parse(dateLayout, v)
		if err != nil {
			http.Error(w, "Invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
			return
		}

		date = parsed
	}

	if _, err := s.store.GetServiceCentre(centreID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			http.Error(w, "Service centre not found", http.StatusNotFound)
			return
		}

		log.Printf("Error fetching centre %s: %v", centreID, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)

		return
	}

	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	slots, err := s.store.ListAvailableSlots(centreID, dayStart, dayEnd)
	if err != nil {
		log.Printf("Error listing slots for centre %s: %v", centreID, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)

		return
	}

	s.writeJSON(w, slots)
}

type createBookingRequest struct {
	VehicleID string `json:"vehicle_id"`
	UserID    string `json:"user_id"`
	AlertID   string `json:"alert_id,omitempty"`
	CentreID  string `json:"centre_id,omitempty"`
	SlotStart string `json:"slot_start,omitempty"`
	Date      string `json:"date,omitempty"`
	Urgency   string `json:"urgency,omitempty"`
}

func (s *APIServer) createBooking(w http.ResponseWriter, r *http.Request) {
	var body createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid booking payload", http.StatusBadRequest)
		return
	}

	if body.VehicleID == "" {
		http.Error(w, "vehicle_id is required", http.StatusBadRequest)
		return
	}

	req := &scheduler.Request{
		VehicleID: body.VehicleID,
		UserID:    body.UserID,
		AlertID:   body.AlertID,
		CentreID:  body.CentreID,
		Urgency:   models.SeverityWarning,
	}

	if body.Urgency != "" {
		urgency := models.Severity(body.Urgency)
		if !urgency.Valid() {
			http.Error(w, "Invalid urgency", http.StatusBadRequest)
			return
		}

		req.Urgency = urgency
	}

	if body.SlotStart != "" {
		t, err := time.Parse(time.RFC3339, body.SlotStart)
		if err != nil {
			http.Error(w, "Invalid slot_start, expected RFC3339", http.StatusBadRequest)
			return
		}

		req.SlotStart = t
	}

	if body.Date != "" {
		t, err := time.Parse(dateLayout, body.Date)
		if err != nil {
			http.Error(w, "Invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
			return
		}

		req.Date = t
	}

	b, err := s.allocator.Allocate(req)
	if err != nil {
		var conflict *scheduler.CapacityConflictError
		if errors.As(err, &conflict) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)

			if encErr := json.NewEncoder(w).Encode(conflict); encErr != nil {
				log.Printf("Error encoding conflict response: %v", encErr)
			}

			return
		}

		if errors.Is(err, scheduler.ErrNoCentres) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}

		log.Printf("Error allocating booking for %s: %v", body.VehicleID, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)

	if err := json.NewEncoder(w).Encode(b); err != nil {
		log.Printf("Error encoding booking response: %v", err)
	}
}

func (s *APIServer) getBooking(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	b, err := s.bookings.Get(vars["id"])
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			http.Error(w, "Booking not found", http.StatusNotFound)
			return
		}

		log.Printf("Error fetching booking %s: %v", vars["id"], err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)

		return
	}

	s.writeJSON(w, b)
}

type transitionRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes,omitempty"`
}

func (s *APIServer) transitionBooking(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var body transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid transition payload", http.StatusBadRequest)
		return
	}

	b, err := s.bookings.Transition(vars["id"], models.BookingStatus(body.Status), body.Notes)
	if err != nil {
		s.writeBookingError(w, vars["id"], err)
		return
	}

	s.writeJSON(w, b)
}

type cancelRequest struct {
	Reason string `json:"reason,omitempty"`
}

func (s *APIServer) cancelBooking(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var body cancelRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "Invalid cancel payload", http.StatusBadRequest)
			return
		}
	}

	b, err := s.bookings.Cancel(vars["id"], body.Reason)
	if err != nil {
		s.writeBookingError(w, vars["id"], err)
		return
	}

	s.writeJSON(w, b)
}

func (s *APIServer) writeBookingError(w http.ResponseWriter, bookingID string, err error) {
	var invalid *booking.InvalidTransitionError
	if errors.As(err, &invalid) {
		http.Error(w, invalid.Error(), http.StatusConflict)
		return
	}

	if errors.Is(err, booking.ErrUnknownStatus) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if errors.Is(err, db.ErrNotFound) {
		http.Error(w, "Booking not found", http.StatusNotFound)
		return
	}

	log.Printf("Error updating booking %s: %v", bookingID, err)
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

func (s *APIServer) getOpenAlerts(w http.ResponseWriter, _ *http.Request) {
	alerts, err := s.store.ListOpenAlerts()
	if err != nil {
		log.Printf("Error listing open alerts: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)

		return
	}

	s.writeJSON(w, alerts)
}

// getAlert returns the alert with its diagnosis attached when one exists.
func (s *APIServer) getAlert(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	alert, err := s.store.GetAlert(vars["id"])
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			http.Error(w, "Alert not found", http.StatusNotFound)
			return
		}

		log.Printf("Error fetching alert %s: %v", vars["id"], err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)

		return
	}

	resp := struct {
		Alert     *models.Alert     `json:"alert"`
		Diagnosis *models.Diagnosis `json:"diagnosis,omitempty"`
	}{Alert: alert}

	if d, err := s.store.GetDiagnosisForAlert(alert.ID); err == nil {
		resp.Diagnosis = d
	} else if !errors.Is(err, db.ErrNotFound) {
		log.Printf("Error fetching diagnosis for alert %s: %v", alert.ID, err)
	}

	s.writeJSON(w, resp)
}

func (s *APIServer) getAlertNotifications(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	notifications, err := s.store.ListNotificationsForAlert(vars["id"])
	if err != nil {
		log.Printf("Error listing notifications for alert %s: %v", vars["id"], err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)

		return
	}

	s.writeJSON(w, notifications)
}

func (s *APIServer) getLatestTelemetry(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	if s.latest == nil {
		http.Error(w, "Telemetry cache not configured", http.StatusServiceUnavailable)
		return
	}

	sample, err := s.latest.GetLatest(r.Context(), vars["id"])
	if err != nil {
		if errors.Is(err, cache.ErrNoSample) {
			http.Error(w, "No telemetry recorded for vehicle", http.StatusNotFound)
			return
		}

		log.Printf("Error fetching latest telemetry for %s: %v", vars["id"], err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)

		return
	}

	s.writeJSON(w, sample)
}

func (s *APIServer) getVehicleBookings(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	bookings, err := s.store.ListBookingsForVehicle(vars["id"])
	if err != nil {
		log.Printf("Error listing bookings for vehicle %s: %v", vars["id"], err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)

		return
	}

	s.writeJSON(w, bookings)
}

func (s *APIServer) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (s *APIServer) Start(addr string) error {
	return http.ListenAndServe(addr, s.router)
}

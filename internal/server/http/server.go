// Package httpserver exposes the clinic services over the JSON REST API the
// offline client consumes.
package httpserver

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/avarghese/clinicsync/internal/errs"
	"github.com/avarghese/clinicsync/internal/model"
	"github.com/avarghese/clinicsync/internal/service"
)

// Server wires the clinic and auth services into an HTTP router.
type Server struct {
	auth    service.AuthService
	clinic  service.ClinicService
	signKey []byte
	log     *zap.Logger
}

// New constructs a Server with required dependencies.
func New(auth service.AuthService, clinic service.ClinicService, signKey []byte, log *zap.Logger) *Server {
	return &Server{auth: auth, clinic: clinic, signKey: signKey, log: log}
}

// Router builds the full route tree under /api. Everything except the probe
// target and login requires a valid bearer token.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(Recover(s.log))
	r.Use(Logging(s.log))
	r.Use(middleware.Timeout(30 * time.Second))

	r.Route("/api", func(r chi.Router) {
		r.Get("/", s.handleProbe)
		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(RequireAuth(s.signKey))

			r.Get("/appointments", s.handleListBookings)
			r.Post("/appointments", s.handleSaveBooking)
			r.Put("/appointments/{id}", s.handleUpdateBooking)

			r.Get("/patients", s.handleListPatients)
			r.Get("/patients/search", s.handleSearchPatients)
			r.Post("/patients", s.handleCreatePatient)
			r.Get("/patients/{id}", s.handleGetPatient)
			r.Put("/patients/{id}", s.handleUpdatePatient)
			r.Delete("/patients/{id}", s.handleDeletePatient)

			r.Post("/sync", s.handleSyncBatch)
		})
	})
	return r
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError maps sentinel errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, errs.ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, errs.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, errs.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "too many attempts, try again later")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (s *Server) handleProbe(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Success bool        `json:"success"`
	User    *model.User `json:"user,omitempty"`
	Message string      `json:"message,omitempty"`
	Token   string      `json:"token,omitempty"`
}

// handleLogin reports bad credentials as a 200 with success=false so the
// client can distinguish a rejected login from a transport failure.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}

	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		ip = host
	}

	sess, err := s.auth.LoginWithIP(r.Context(), req.Username, req.Password, ip)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, loginResponse{Success: true, User: &sess.User, Token: sess.Token})
	case errors.Is(err, errs.ErrUnauthorized):
		writeJSON(w, http.StatusOK, loginResponse{Success: false, Message: "Invalid credentials"})
	default:
		writeServiceError(w, err)
	}
}

func (s *Server) handleListBookings(w http.ResponseWriter, r *http.Request) {
	list, err := s.clinic.ListBookings(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if list == nil {
		list = []model.Booking{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleSaveBooking(w http.ResponseWriter, r *http.Request) {
	var b model.Booking
	if !decode(w, r, &b) {
		return
	}
	saved, err := s.clinic.SaveBooking(r.Context(), b)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleUpdateBooking(w http.ResponseWriter, r *http.Request) {
	var b model.Booking
	if !decode(w, r, &b) {
		return
	}
	b.ID = chi.URLParam(r, "id")
	b.UpdatedAt = time.Now().UTC()
	saved, err := s.clinic.SaveBooking(r.Context(), b)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleListPatients(w http.ResponseWriter, r *http.Request) {
	list, err := s.clinic.ListPatients(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if list == nil {
		list = []model.PatientRecord{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleSearchPatients(w http.ResponseWriter, r *http.Request) {
	list, err := s.clinic.SearchPatients(r.Context(), r.URL.Query().Get("query"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if list == nil {
		list = []model.PatientRecord{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetPatient(w http.ResponseWriter, r *http.Request) {
	p, err := s.clinic.GetPatient(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleCreatePatient(w http.ResponseWriter, r *http.Request) {
	var p model.PatientRecord
	if !decode(w, r, &p) {
		return
	}
	saved, err := s.clinic.CreatePatient(r.Context(), p)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleUpdatePatient(w http.ResponseWriter, r *http.Request) {
	var p model.PatientRecord
	if !decode(w, r, &p) {
		return
	}
	p.ID = chi.URLParam(r, "id")
	p.UpdatedAt = time.Now().UTC()
	saved, err := s.clinic.UpdatePatient(r.Context(), p)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleDeletePatient(w http.ResponseWriter, r *http.Request) {
	if err := s.clinic.DeletePatient(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (s *Server) handleSyncBatch(w http.ResponseWriter, r *http.Request) {
	var batch service.SyncBatch
	if !decode(w, r, &batch) {
		return
	}
	rep, err := s.clinic.SyncBatch(r.Context(), batch)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

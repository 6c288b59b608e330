package session

import (
	"clinic-booking/internal/apierrors"
	"clinic-booking/internal/configs"
	"clinic-booking/internal/database"
	"clinic-booking/internal/logging"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type httpHandler struct {
	service Service
	config  configs.Config
	logger  *log.Logger
}

// Setup setups the routes handled by session context.
func Setup(router *chi.Mux, logger *log.Logger, config configs.Config, dbConn database.Connection) {
	handler := &httpHandler{logger: logger, config: config, service: NewService(config, dbConn)}

	// public routes
	router.Group(func(group chi.Router) {
		group.Post("/api/v1/auth/patient/login", handler.LoginPatient)
		group.Post("/api/v1/auth/doctor/login", handler.LoginDoctor)
		group.Delete("/api/v1/auth/session", handler.Logout)
	})

	// protected routes
	router.Group(func(group chi.Router) {
		group.Use(Validator(handler.service))
		group.Get("/api/v1/auth/session", handler.GetSession)
	})
}

func (h httpHandler) logError(r *http.Request, err error) {
	logging.PrintlnError(h.logger, fmt.Sprint(r.Context().Value(middleware.RequestIDKey), " ", err))
}

func (h httpHandler) login(w http.ResponseWriter, r *http.Request, role Role) {
	credentials := new(Credentials)
	if err := json.NewDecoder(r.Body).Decode(credentials); err != nil {
		h.logError(r, err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	response, token, err := h.service.Login(r.Context(), role, *credentials)
	if err != nil {
		h.logError(r, err)
		var apiErr *apierrors.APIError
		var validationErr *apierrors.ValidationError
		switch {
		case errors.As(err, &apiErr):
			w.WriteHeader(apiErr.HTTPStatusCode())
			_ = json.NewEncoder(w).Encode(apiErr)
			return
		case errors.As(err, &validationErr):
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(validationErr)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, NewCookie(token, h.config.SecureCookies()))
	_ = json.NewEncoder(w).Encode(response)
}

// LoginPatient handles the email login of a patient.
func (h httpHandler) LoginPatient(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, PatientRole)
}

// LoginDoctor handles the email login of a doctor.
func (h httpHandler) LoginDoctor(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, DoctorRole)
}

// GetSession handles the request to return the current session, reloaded from the store.
func (h httpHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.service.GetAuthenticatedSession(r.Context())
	if err != nil {
		h.logError(r, err)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	refreshed, token, err := h.service.Refresh(r.Context(), s)
	if err != nil {
		h.logError(r, err)
		var unauthorized *UnauthorizedError
		if errors.As(err, &unauthorized) {
			http.SetCookie(w, ExpiredCookie(h.config.SecureCookies()))
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, NewCookie(token, h.config.SecureCookies()))
	_ = json.NewEncoder(w).Encode(NewView(refreshed))
}

// Logout clears the session cookie.
func (h httpHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, ExpiredCookie(h.config.SecureCookies()))
	w.WriteHeader(http.StatusNoContent)
}

package appointments

import (
	"clinic-booking/internal/apierrors"
	"clinic-booking/internal/logging"
	"clinic-booking/internal/session"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

type httpHandler struct {
	service    Service
	authorizer session.Authorizer
	logger     *log.Logger
}

// Setup setups the routes handled by appointments context.
func Setup(router *chi.Mux, logger *log.Logger, authorizer session.Authorizer, service Service) {
	handler := &httpHandler{logger: logger, authorizer: authorizer, service: service}

	// protected routes, only for patients
	router.Group(func(group chi.Router) {
		group.Use(session.Validator(authorizer))
		group.Use(session.AllowedRole(authorizer, session.PatientRole))
		group.Get("/api/v1/patient/appointments", handler.ListPatientAppointments)
		group.Post("/api/v1/patient/appointments", handler.BookAppointment)
		group.Put("/api/v1/patient/appointments/{aid}/cancel", handler.Cancel)
	})

	// protected routes, only for doctors
	router.Group(func(group chi.Router) {
		group.Use(session.Validator(authorizer))
		group.Use(session.AllowedRole(authorizer, session.DoctorRole))
		group.Get("/api/v1/doctor/appointments", handler.ListDoctorAppointments)
		group.Put("/api/v1/doctor/appointments/{aid}/approve", handler.Approve)
		group.Put("/api/v1/doctor/appointments/{aid}/reschedule", handler.Reschedule)
		group.Put("/api/v1/doctor/appointments/{aid}/start-call", handler.StartCall)
		group.Put("/api/v1/doctor/appointments/{aid}/complete-call", handler.CompleteCall)
		group.Put("/api/v1/doctor/appointments/{aid}/complete", handler.Complete)
		group.Put("/api/v1/doctor/appointments/{aid}/cancel", handler.Cancel)
		group.Post("/api/v1/calls/{meetingId}/end", handler.EndCall)
	})

	// protected routes, call participants
	router.Group(func(group chi.Router) {
		group.Use(session.Validator(authorizer))
		group.Get("/api/v1/calls/{meetingId}", handler.JoinCall)
	})
}

func (h httpHandler) logError(r *http.Request, err error) {
	logging.PrintlnError(h.logger, fmt.Sprint(r.Context().Value(middleware.RequestIDKey), " ", err))
}

// writeError writes the status and body matching the given error.
func (h httpHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	h.logError(r, err)
	var apiErr *apierrors.APIError
	var validationErr *apierrors.ValidationError
	var unauthorized *session.UnauthorizedError
	switch {
	case errors.As(err, &apiErr):
		w.WriteHeader(apiErr.HTTPStatusCode())
		_ = json.NewEncoder(w).Encode(apiErr)
	case errors.As(err, &validationErr):
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(validationErr)
	case errors.As(err, &unauthorized):
		w.WriteHeader(http.StatusUnauthorized)
	default:
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// parseAppointmentID parses the appointment id of the route.
func (h httpHandler) parseAppointmentID(r *http.Request) (uuid.UUID, error) {
	aid, err := uuid.Parse(chi.URLParam(r, "aid"))
	if err != nil {
		return uuid.Nil, apierrors.NewValidationError("aid", string(ErrInvalidIdentifier))
	}
	return aid, nil
}

// invalidBody wraps a decoding failure into the ValidationError sent to the client.
func invalidBody(err error) error {
	return fmt.Errorf("%w: %v", apierrors.NewValidationError("body", string(ErrInvalidBody)), err)
}

// decodeOptional decodes the request body into v, accepting an empty body.
func decodeOptional(r *http.Request, v interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	return json.NewDecoder(r.Body).Decode(v)
}

func (h httpHandler) patientSession(r *http.Request) (session.PatientSession, error) {
	s, err := h.authorizer.GetAuthenticatedSession(r.Context())
	if err != nil {
		return session.PatientSession{}, err
	}
	patient, ok := s.(session.PatientSession)
	if !ok {
		return session.PatientSession{}, apierrors.Forbidden(string(ErrPatientOnlyAction))
	}
	return patient, nil
}

func (h httpHandler) doctorSession(r *http.Request) (session.DoctorSession, error) {
	s, err := h.authorizer.GetAuthenticatedSession(r.Context())
	if err != nil {
		return session.DoctorSession{}, err
	}
	doctor, ok := s.(session.DoctorSession)
	if !ok {
		return session.DoctorSession{}, apierrors.Forbidden(string(ErrDoctorOnlyAction))
	}
	return doctor, nil
}

func (h httpHandler) ListPatientAppointments(w http.ResponseWriter, r *http.Request) {
	s, err := h.patientSession(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	appointments, err := h.service.ListForPatient(r.Context(), s)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	_ = json.NewEncoder(w).Encode(appointments)
}

func (h httpHandler) BookAppointment(w http.ResponseWriter, r *http.Request) {
	s, err := h.patientSession(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	request := new(BookingRequest)
	if err = json.NewDecoder(r.Body).Decode(request); err != nil {
		h.writeError(w, r, invalidBody(err))
		return
	}
	appointment, err := h.service.Book(r.Context(), s, *request)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(appointment)
}

func (h httpHandler) ListDoctorAppointments(w http.ResponseWriter, r *http.Request) {
	s, err := h.doctorSession(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	filter := DoctorFilter{
		Status: Status(strings.TrimSpace(r.URL.Query().Get("status"))),
		Date:   strings.TrimSpace(r.URL.Query().Get("date")),
	}
	appointments, err := h.service.ListForDoctor(r.Context(), s, filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	_ = json.NewEncoder(w).Encode(appointments)
}

// transitionHandler adapts a transition of the appointment in the route into a handler.
func (h httpHandler) transitionHandler(w http.ResponseWriter, r *http.Request, apply func(s session.Session, aid uuid.UUID) (*Appointment, error)) {
	aid, err := h.parseAppointmentID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	s, err := h.authorizer.GetAuthenticatedSession(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	appointment, err := apply(s, aid)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	_ = json.NewEncoder(w).Encode(appointment)
}

func (h httpHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.transitionHandler(w, r, func(s session.Session, aid uuid.UUID) (*Appointment, error) {
		return h.service.Approve(r.Context(), s, aid)
	})
}

func (h httpHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	request := new(RescheduleRequest)
	if err := json.NewDecoder(r.Body).Decode(request); err != nil {
		h.writeError(w, r, invalidBody(err))
		return
	}
	h.transitionHandler(w, r, func(s session.Session, aid uuid.UUID) (*Appointment, error) {
		return h.service.Reschedule(r.Context(), s, aid, *request)
	})
}

func (h httpHandler) StartCall(w http.ResponseWriter, r *http.Request) {
	h.transitionHandler(w, r, func(s session.Session, aid uuid.UUID) (*Appointment, error) {
		return h.service.StartCall(r.Context(), s, aid)
	})
}

func (h httpHandler) CompleteCall(w http.ResponseWriter, r *http.Request) {
	h.transitionHandler(w, r, func(s session.Session, aid uuid.UUID) (*Appointment, error) {
		return h.service.CompleteCall(r.Context(), s, aid)
	})
}

func (h httpHandler) Complete(w http.ResponseWriter, r *http.Request) {
	request := new(CompleteRequest)
	if err := decodeOptional(r, request); err != nil {
		h.writeError(w, r, invalidBody(err))
		return
	}
	h.transitionHandler(w, r, func(s session.Session, aid uuid.UUID) (*Appointment, error) {
		return h.service.Complete(r.Context(), s, aid, *request)
	})
}

func (h httpHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	request := new(CancelRequest)
	if err := decodeOptional(r, request); err != nil {
		h.writeError(w, r, invalidBody(err))
		return
	}
	h.transitionHandler(w, r, func(s session.Session, aid uuid.UUID) (*Appointment, error) {
		return h.service.Cancel(r.Context(), s, aid, *request)
	})
}

func (h httpHandler) JoinCall(w http.ResponseWriter, r *http.Request) {
	s, err := h.authorizer.GetAuthenticatedSession(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	callSession, err := h.service.JoinCall(r.Context(), s, chi.URLParam(r, "meetingId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	_ = json.NewEncoder(w).Encode(callSession)
}

func (h httpHandler) EndCall(w http.ResponseWriter, r *http.Request) {
	s, err := h.authorizer.GetAuthenticatedSession(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	appointment, err := h.service.EndCall(r.Context(), s, chi.URLParam(r, "meetingId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	_ = json.NewEncoder(w).Encode(appointment)
}

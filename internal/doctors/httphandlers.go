package doctors

import (
	"clinic-booking/internal/apierrors"
	"clinic-booking/internal/database"
	"clinic-booking/internal/logging"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

type httpHandler struct {
	service Service
	logger  *log.Logger
}

// Setup setups the routes handled by the doctor directory.
func Setup(router *chi.Mux, logger *log.Logger, dbConn database.Connection) {
	handler := &httpHandler{logger: logger, service: NewService(dbConn)}

	// public routes
	router.Group(func(group chi.Router) {
		group.Get("/api/v1/doctors", handler.ListDoctors)
		group.Get("/api/v1/doctors/{did}", handler.GetDoctor)
	})
}

func (h httpHandler) ListDoctors(w http.ResponseWriter, r *http.Request) {
	filter := Filter{
		Specialization: strings.TrimSpace(r.URL.Query().Get("specialization")),
		City:           strings.TrimSpace(r.URL.Query().Get("city")),
	}
	doctors, err := h.service.List(r.Context(), filter)
	if err != nil {
		logging.PrintlnError(h.logger, fmt.Sprint(r.Context().Value(middleware.RequestIDKey), " ", err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(doctors)
}

func (h httpHandler) GetDoctor(w http.ResponseWriter, r *http.Request) {
	did, err := uuid.Parse(chi.URLParam(r, "did"))
	if err != nil {
		logging.PrintlnError(h.logger, fmt.Sprint(r.Context().Value(middleware.RequestIDKey), " ", err))
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(apierrors.NewValidationError("did", string(ErrInvalidIdentifier)))
		return
	}
	doctor, err := h.service.Get(r.Context(), did)
	if err != nil {
		logging.PrintlnError(h.logger, fmt.Sprint(r.Context().Value(middleware.RequestIDKey), " ", err))
		switch v := err.(type) {
		case *apierrors.APIError:
			w.WriteHeader(v.HTTPStatusCode())
			_ = json.NewEncoder(w).Encode(err)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(doctor)
}

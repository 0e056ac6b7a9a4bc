package patient

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/hine2110/dental-clinic-client-sub000/pkg/types"
)

// setupRoutes configures HTTP routes for the patient service
func (s *Service) setupRoutes(router *mux.Router) {
	router.Use(s.metrics.HTTPMiddleware)

	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/patients/{id}/profile", s.getProfileHandler).Methods("GET")
	api.HandleFunc("/patients/{id}/profile", s.updateProfileHandler).Methods("PUT")
	api.HandleFunc("/patients/{id}/profile/status", s.getProfileStatusHandler).Methods("GET")

	router.HandleFunc("/health", s.health.HTTPHandler()).Methods("GET")
	router.Handle("/metrics", s.metrics.Handler()).Methods("GET")

	s.logger.Info("Patient service routes configured")
}

// getProfileHandler retrieves a patient profile
func (s *Service) getProfileHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	profile, err := s.GetProfile(vars["id"])
	if err != nil {
		s.writeErrorResponse(w, err)
		return
	}

	s.writeSuccessResponse(w, http.StatusOK, profile)
}

// updateProfileHandler upserts a patient profile
func (s *Service) updateProfileHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var profile types.PatientProfile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		s.writeErrorResponse(w, types.NewValidationError("INVALID_BODY", "invalid request body", nil))
		return
	}
	profile.PatientID = vars["id"]

	userID := r.Header.Get("X-User-ID")
	updated, err := s.UpdateProfile(&profile, userID)
	if err != nil {
		s.writeErrorResponse(w, err)
		return
	}

	s.writeSuccessResponse(w, http.StatusOK, updated)
}

// getProfileStatusHandler runs the completion gate
func (s *Service) getProfileStatusHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	status, missing, err := s.GetProfileStatus(vars["id"])
	if err != nil {
		s.writeErrorResponse(w, err)
		return
	}

	s.writeSuccessResponse(w, http.StatusOK, map[string]interface{}{
		"status":         status,
		"missing_fields": missing,
	})
}

// writeSuccessResponse writes a success envelope
func (s *Service) writeSuccessResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := map[string]interface{}{
		"success": true,
		"data":    data,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.WithError(err).Error("Failed to encode JSON response")
	}
}

// writeErrorResponse maps the error to an HTTP status and writes the error
// envelope
func (s *Service) writeErrorResponse(w http.ResponseWriter, err error) {
	statusCode := http.StatusInternalServerError
	payload := map[string]interface{}{
		"type":    types.ErrorTypeInternal,
		"code":    "INTERNAL_ERROR",
		"message": "internal error",
	}

	var clinicErr *types.ClinicError
	if errors.As(err, &clinicErr) {
		statusCode = clinicErr.HTTPStatus()
		payload["type"] = clinicErr.Type
		payload["code"] = clinicErr.Code
		payload["message"] = clinicErr.Message
		if clinicErr.Details != nil {
			payload["details"] = clinicErr.Details
		}
	}

	s.logger.WithError(err).Warn("Request failed")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := map[string]interface{}{
		"success": false,
		"error":   payload,
	}

	if encodeErr := json.NewEncoder(w).Encode(response); encodeErr != nil {
		s.logger.WithError(encodeErr).Error("Failed to encode JSON response")
	}
}

package visit

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/hine2110/dental-clinic-client-sub000/pkg/types"
)

// setupRoutes configures HTTP routes for the visit service
func (s *Service) setupRoutes(router *mux.Router) {
	router.Use(s.metrics.HTTPMiddleware)

	api := router.PathPrefix("/api/v1").Subrouter()

	// Appointment listing and workflow state
	api.HandleFunc("/appointments", s.listAppointmentsHandler).Methods("GET")
	api.HandleFunc("/appointments/{id}", s.getVisitStateHandler).Methods("GET")
	api.HandleFunc("/appointments/{id}/status", s.changeStatusHandler).Methods("PATCH")
	api.HandleFunc("/appointments/{id}/stages/{stage}", s.requestStageHandler).Methods("POST")

	// Stage saves
	api.HandleFunc("/appointments/{id}/clinical-exam", s.saveClinicalExamHandler).Methods("PUT")
	api.HandleFunc("/appointments/{id}/test-selection", s.saveTestSelectionHandler).Methods("PUT")
	api.HandleFunc("/appointments/{id}/diagnosis", s.saveDiagnosisHandler).Methods("PUT")
	api.HandleFunc("/appointments/{id}/treatment-plan", s.saveTreatmentPlanHandler).Methods("PUT")
	api.HandleFunc("/appointments/{id}/complete", s.completeVisitHandler).Methods("POST")

	// Result images
	api.HandleFunc("/appointments/{id}/result-images", s.addResultImageHandler).Methods("POST")
	api.HandleFunc("/appointments/{id}/result-images", s.removeResultImageHandler).Methods("DELETE")

	// Monitoring
	router.HandleFunc("/health", s.health.HTTPHandler()).Methods("GET")
	router.Handle("/metrics", s.metrics.Handler()).Methods("GET")

	s.logger.Info("Visit service routes configured")
}

// listAppointmentsHandler handles appointment listing with filters
func (s *Service) listAppointmentsHandler(w http.ResponseWriter, r *http.Request) {
	filters := parseAppointmentFilters(r)
	userID := getUserIDFromRequest(r)

	appointments, err := s.ListAppointments(filters, userID)
	if err != nil {
		s.writeErrorResponse(w, err)
		return
	}

	s.writeSuccessResponse(w, http.StatusOK, appointments)
}

// getVisitStateHandler returns the appointment snapshot plus derived stage,
// used to resume the workflow after a reload.
func (s *Service) getVisitStateHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID := getUserIDFromRequest(r)

	state, err := s.GetVisitState(vars["id"], userID)
	if err != nil {
		s.writeErrorResponse(w, err)
		return
	}

	s.writeSuccessResponse(w, http.StatusOK, state)
}

// changeStatusHandler handles bare status transitions
func (s *Service) changeStatusHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req types.StatusChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, types.NewValidationError("INVALID_BODY", "invalid request body", nil))
		return
	}

	userID := getUserIDFromRequest(r)
	apt, err := s.ChangeStatus(vars["id"], req.Status, userID)
	if err != nil {
		s.writeErrorResponse(w, err)
		return
	}

	s.writeSuccessResponse(w, http.StatusOK, apt)
}

// requestStageHandler validates workflow navigation requests
func (s *Service) requestStageHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	stage, err := strconv.Atoi(vars["stage"])
	if err != nil || stage < int(types.StageClinicalExam) || stage > int(types.StagePrescription) {
		s.writeErrorResponse(w, types.NewValidationError("INVALID_STAGE", "stage must be between 0 and 4", nil))
		return
	}

	userID := getUserIDFromRequest(r)
	state, err := s.RequestStage(vars["id"], types.VisitStage(stage), userID)
	if err != nil {
		s.writeErrorResponse(w, err)
		return
	}

	s.writeSuccessResponse(w, http.StatusOK, state)
}

// saveClinicalExamHandler handles the stage 0 save
func (s *Service) saveClinicalExamHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var update types.ClinicalExamUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		s.writeErrorResponse(w, types.NewValidationError("INVALID_BODY", "invalid request body", nil))
		return
	}

	userID := getUserIDFromRequest(r)
	state, err := s.SaveClinicalExam(vars["id"], &update, userID)
	if err != nil {
		s.writeErrorResponse(w, err)
		return
	}

	s.writeSuccessResponse(w, http.StatusOK, state)
}

// saveTestSelectionHandler handles the stage 1 save
func (s *Service) saveTestSelectionHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var update types.TestSelectionUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		s.writeErrorResponse(w, types.NewValidationError("INVALID_BODY", "invalid request body", nil))
		return
	}

	userID := getUserIDFromRequest(r)
	state, err := s.SaveTestSelection(vars["id"], &update, userID)
	if err != nil {
		s.writeErrorResponse(w, err)
		return
	}

	s.writeSuccessResponse(w, http.StatusOK, state)
}

// saveDiagnosisHandler handles the stage 2 save
func (s *Service) saveDiagnosisHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var update types.DiagnosisUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		s.writeErrorResponse(w, types.NewValidationError("INVALID_BODY", "invalid request body", nil))
		return
	}

	userID := getUserIDFromRequest(r)
	state, err := s.SaveDiagnosis(vars["id"], &update, userID)
	if err != nil {
		s.writeErrorResponse(w, err)
		return
	}

	s.writeSuccessResponse(w, http.StatusOK, state)
}

// saveTreatmentPlanHandler handles the stage 3 save
func (s *Service) saveTreatmentPlanHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var update types.TreatmentUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		s.writeErrorResponse(w, types.NewValidationError("INVALID_BODY", "invalid request body", nil))
		return
	}

	userID := getUserIDFromRequest(r)
	state, err := s.SaveTreatmentPlan(vars["id"], &update, userID)
	if err != nil {
		s.writeErrorResponse(w, err)
		return
	}

	s.writeSuccessResponse(w, http.StatusOK, state)
}

// completeVisitHandler handles the stage 4 final save
func (s *Service) completeVisitHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var update types.CompletionUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		s.writeErrorResponse(w, types.NewValidationError("INVALID_BODY", "invalid request body", nil))
		return
	}

	userID := getUserIDFromRequest(r)
	state, err := s.CompleteVisit(vars["id"], &update, userID)
	if err != nil {
		s.writeErrorResponse(w, err)
		return
	}

	s.writeSuccessResponse(w, http.StatusOK, state)
}

// addResultImageHandler appends an uploaded result image URL
func (s *Service) addResultImageHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var body struct {
		ImageURL string `json:"image_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeErrorResponse(w, types.NewValidationError("INVALID_BODY", "invalid request body", nil))
		return
	}

	userID := getUserIDFromRequest(r)
	state, err := s.AddResultImage(vars["id"], body.ImageURL, userID)
	if err != nil {
		s.writeErrorResponse(w, err)
		return
	}

	s.writeSuccessResponse(w, http.StatusOK, state)
}

// removeResultImageHandler removes a result image URL
func (s *Service) removeResultImageHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	imageURL := r.URL.Query().Get("url")
	if imageURL == "" {
		s.writeErrorResponse(w, types.NewValidationError("RESULT_IMAGE_URL_REQUIRED", "url query parameter is required", nil))
		return
	}

	userID := getUserIDFromRequest(r)
	state, err := s.RemoveResultImage(vars["id"], imageURL, userID)
	if err != nil {
		s.writeErrorResponse(w, err)
		return
	}

	s.writeSuccessResponse(w, http.StatusOK, state)
}

// Helper methods

// getUserIDFromRequest reads the user ID forwarded by the gateway
func getUserIDFromRequest(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

// parseAppointmentFilters parses query parameters into appointment filters
func parseAppointmentFilters(r *http.Request) *types.AppointmentFilters {
	filters := &types.AppointmentFilters{}

	if patientID := r.URL.Query().Get("patient_id"); patientID != "" {
		filters.PatientID = patientID
	}

	if doctorID := r.URL.Query().Get("doctor_id"); doctorID != "" {
		filters.DoctorID = doctorID
	}

	if status := r.URL.Query().Get("status"); status != "" {
		filters.Status = types.AppointmentStatus(status)
	}

	if fromDate := r.URL.Query().Get("from_date"); fromDate != "" {
		if parsed, err := time.Parse("2006-01-02", fromDate); err == nil {
			filters.FromDate = parsed
		}
	}

	if toDate := r.URL.Query().Get("to_date"); toDate != "" {
		if parsed, err := time.Parse("2006-01-02", toDate); err == nil {
			filters.ToDate = parsed
		}
	}

	if limit := r.URL.Query().Get("limit"); limit != "" {
		if parsed, err := strconv.Atoi(limit); err == nil {
			filters.Limit = parsed
		}
	}

	if offset := r.URL.Query().Get("offset"); offset != "" {
		if parsed, err := strconv.Atoi(offset); err == nil {
			filters.Offset = parsed
		}
	}

	return filters
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

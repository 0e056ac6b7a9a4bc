package visit

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/hine2110/dental-clinic-client-sub000/pkg/config"
	"github.com/hine2110/dental-clinic-client-sub000/pkg/database"
	"github.com/hine2110/dental-clinic-client-sub000/pkg/interfaces"
	"github.com/hine2110/dental-clinic-client-sub000/pkg/logger"
	"github.com/hine2110/dental-clinic-client-sub000/pkg/monitoring"
	"github.com/hine2110/dental-clinic-client-sub000/pkg/types"
)

// Service implements the VisitService interface. It drives the five-stage
// clinical workflow and owns all appointment status transitions.
type Service struct {
	config     *config.Config
	logger     *logger.Logger
	repository interfaces.VisitRepository
	db         *database.DB
	server     *http.Server
	metrics    *monitoring.MetricsCollector
	health     *monitoring.HealthManager
}

// New creates a new visit service
func New(cfg *config.Config, log *logger.Logger) interfaces.VisitService {
	db, err := database.NewConnection(&cfg.Database, log)
	if err != nil {
		log.WithError(err).Error("Failed to connect to database")
		panic(err)
	}

	if err := db.CreateSchema(context.Background()); err != nil {
		log.WithError(err).Error("Failed to create database schema")
		panic(err)
	}

	repository := NewRepository(db, log)

	metrics := monitoring.NewMetricsCollector("visit-service")
	health := monitoring.NewHealthManager("visit-service", "1.0.0")
	health.RegisterChecker("database", monitoring.NewDatabaseHealthChecker(db.DB))

	return &Service{
		config:     cfg,
		logger:     log,
		repository: repository,
		db:         db,
		metrics:    metrics,
		health:     health,
	}
}

// ensureMutable loads the appointment and rejects the write once the
// appointment has reached a terminal status. Completed, cancelled, and
// no-show appointments are immutable.
func (s *Service) ensureMutable(appointmentID string) (*types.Appointment, error) {
	apt, err := s.repository.GetAppointmentByID(appointmentID)
	if err != nil {
		return nil, err
	}
	if apt.Status.IsTerminal() {
		return nil, types.NewBusinessRuleError("APPOINTMENT_FINALIZED",
			fmt.Sprintf("appointment is %s and can no longer be modified", apt.Status), nil)
	}
	return apt, nil
}

// GetVisitState returns the appointment snapshot plus the derived resume
// stage and per-stage completion flags.
func (s *Service) GetVisitState(appointmentID, userID string) (*types.VisitState, error) {
	s.logger.WithFields(map[string]interface{}{
		"appointment_id": appointmentID,
		"user_id":        userID,
	}).Info("Getting visit state")

	apt, err := s.repository.GetAppointmentByID(appointmentID)
	if err != nil {
		return nil, err
	}

	return deriveState(apt), nil
}

// SaveClinicalExam persists the stage 0 fields and moves the appointment
// into in_progress.
func (s *Service) SaveClinicalExam(appointmentID string, update *types.ClinicalExamUpdate, userID string) (*types.VisitState, error) {
	if missing := validateClinicalExam(update); len(missing) > 0 {
		s.recordStageSave(types.StageClinicalExam, false)
		return nil, types.NewMissingFieldsError("CLINICAL_EXAM_INCOMPLETE", missing)
	}

	apt, err := s.ensureMutable(appointmentID)
	if err != nil {
		s.recordStageSave(types.StageClinicalExam, false)
		return nil, err
	}

	status := apt.Status
	if status != types.StatusInProgress {
		if !status.CanTransitionTo(types.StatusInProgress) {
			s.recordStageSave(types.StageClinicalExam, false)
			return nil, types.NewBusinessRuleError("APPOINTMENT_NOT_READY",
				fmt.Sprintf("cannot start examination from status %s", status), nil)
		}
		status = types.StatusInProgress
	}

	if err := s.repository.SaveClinicalExam(appointmentID, update, status); err != nil {
		s.recordStageSave(types.StageClinicalExam, false)
		return nil, err
	}

	s.recordStageSave(types.StageClinicalExam, true)
	s.logger.Audit(userID, "save_clinical_exam", "appointment:"+appointmentID, true, nil)
	return s.GetVisitState(appointmentID, userID)
}

// SaveTestSelection persists the stage 1 fields. With Transfer set the
// appointment moves to waiting_for_results and the workflow exits.
func (s *Service) SaveTestSelection(appointmentID string, update *types.TestSelectionUpdate, userID string) (*types.VisitState, error) {
	if missing := validateTestSelection(update); len(missing) > 0 {
		s.recordStageSave(types.StageTestSelection, false)
		return nil, types.NewMissingFieldsError("TEST_SELECTION_INCOMPLETE", missing)
	}

	apt, err := s.ensureMutable(appointmentID)
	if err != nil {
		s.recordStageSave(types.StageTestSelection, false)
		return nil, err
	}

	status := apt.Status
	if update.Transfer {
		if !status.CanTransitionTo(types.StatusWaitingForResults) {
			s.recordStageSave(types.StageTestSelection, false)
			return nil, types.NewBusinessRuleError("INVALID_STATUS_TRANSITION",
				fmt.Sprintf("cannot transfer to testing from status %s", status), nil)
		}
		status = types.StatusWaitingForResults
	}

	if err := s.repository.SaveTestSelection(appointmentID, update, status); err != nil {
		s.recordStageSave(types.StageTestSelection, false)
		return nil, err
	}

	s.recordStageSave(types.StageTestSelection, true)
	s.logger.Audit(userID, "save_test_selection", "appointment:"+appointmentID, true,
		map[string]interface{}{"transfer": update.Transfer})
	return s.GetVisitState(appointmentID, userID)
}

// SaveDiagnosis persists the stage 2 fields. The appointment status is not
// changed; resuming from waiting_for_results goes through ChangeStatus.
func (s *Service) SaveDiagnosis(appointmentID string, update *types.DiagnosisUpdate, userID string) (*types.VisitState, error) {
	if missing := validateDiagnosis(update); len(missing) > 0 {
		s.recordStageSave(types.StageDiagnosis, false)
		return nil, types.NewMissingFieldsError("DIAGNOSIS_INCOMPLETE", missing)
	}

	if _, err := s.ensureMutable(appointmentID); err != nil {
		s.recordStageSave(types.StageDiagnosis, false)
		return nil, err
	}

	if err := s.repository.SaveDiagnosis(appointmentID, update); err != nil {
		s.recordStageSave(types.StageDiagnosis, false)
		return nil, err
	}

	s.recordStageSave(types.StageDiagnosis, true)
	s.logger.Audit(userID, "save_diagnosis", "appointment:"+appointmentID, true, nil)
	return s.GetVisitState(appointmentID, userID)
}

// AddResultImage appends an uploaded result image URL to the persisted list
func (s *Service) AddResultImage(appointmentID, imageURL, userID string) (*types.VisitState, error) {
	if imageURL == "" {
		return nil, types.NewValidationError("RESULT_IMAGE_URL_REQUIRED", "image URL is required", nil)
	}

	apt, err := s.ensureMutable(appointmentID)
	if err != nil {
		return nil, err
	}

	for _, existing := range apt.ResultImageURLs {
		if existing == imageURL {
			return deriveState(apt), nil
		}
	}

	if len(apt.ResultImageURLs) >= maxResultImages {
		return nil, types.NewBusinessRuleError("RESULT_IMAGE_LIMIT",
			fmt.Sprintf("at most %d result images per appointment", maxResultImages), nil)
	}

	urls := append(apt.ResultImageURLs, imageURL)
	if err := s.repository.SaveResultImages(appointmentID, urls); err != nil {
		return nil, err
	}

	return s.GetVisitState(appointmentID, userID)
}

// RemoveResultImage deletes a result image URL and rewrites the persisted list
func (s *Service) RemoveResultImage(appointmentID, imageURL, userID string) (*types.VisitState, error) {
	apt, err := s.ensureMutable(appointmentID)
	if err != nil {
		return nil, err
	}

	urls := make([]string, 0, len(apt.ResultImageURLs))
	for _, existing := range apt.ResultImageURLs {
		if existing != imageURL {
			urls = append(urls, existing)
		}
	}

	if len(urls) == len(apt.ResultImageURLs) {
		return nil, types.NewNotFoundError("RESULT_IMAGE_NOT_FOUND", "result image not found on appointment")
	}

	if err := s.repository.SaveResultImages(appointmentID, urls); err != nil {
		return nil, err
	}

	return s.GetVisitState(appointmentID, userID)
}

// SaveTreatmentPlan persists the stage 3 fields. With Transfer set the
// appointment moves to in_treatment and the workflow exits.
func (s *Service) SaveTreatmentPlan(appointmentID string, update *types.TreatmentUpdate, userID string) (*types.VisitState, error) {
	if missing := validateTreatment(update); len(missing) > 0 {
		s.recordStageSave(types.StageTreatment, false)
		return nil, types.NewMissingFieldsError("TREATMENT_INCOMPLETE", missing)
	}

	apt, err := s.ensureMutable(appointmentID)
	if err != nil {
		s.recordStageSave(types.StageTreatment, false)
		return nil, err
	}

	status := apt.Status
	if update.Transfer {
		if !status.CanTransitionTo(types.StatusInTreatment) {
			s.recordStageSave(types.StageTreatment, false)
			return nil, types.NewBusinessRuleError("INVALID_STATUS_TRANSITION",
				fmt.Sprintf("cannot transfer to treatment from status %s", status), nil)
		}
		status = types.StatusInTreatment
	}

	if err := s.repository.SaveTreatmentPlan(appointmentID, update, status); err != nil {
		s.recordStageSave(types.StageTreatment, false)
		return nil, err
	}

	s.recordStageSave(types.StageTreatment, true)
	s.logger.Audit(userID, "save_treatment_plan", "appointment:"+appointmentID, true,
		map[string]interface{}{"transfer": update.Transfer})
	return s.GetVisitState(appointmentID, userID)
}

// CompleteVisit runs the final gate and persists the stage 4 fields,
// moving the appointment to completed. On any missing field the save is
// rejected with the enumerated list and the status stays unchanged.
func (s *Service) CompleteVisit(appointmentID string, update *types.CompletionUpdate, userID string) (*types.VisitState, error) {
	if missing := validateCompletion(update); len(missing) > 0 {
		s.recordStageSave(types.StagePrescription, false)
		return nil, types.NewMissingFieldsError("FOLLOW_UP_INCOMPLETE", missing)
	}

	if followUpDateInPast(update.FollowUpDate, time.Now()) {
		s.recordStageSave(types.StagePrescription, false)
		return nil, types.NewValidationError("FOLLOW_UP_DATE_PAST",
			"follow-up date must not be in the past", nil)
	}

	for i := range update.Prescriptions {
		if update.Prescriptions[i].DurationDays <= 0 {
			update.Prescriptions[i].DurationDays = 1
		}
		if err := update.Prescriptions[i].Validate(); err != nil {
			s.recordStageSave(types.StagePrescription, false)
			return nil, err
		}
	}

	apt, err := s.repository.GetAppointmentByID(appointmentID)
	if err != nil {
		s.recordStageSave(types.StagePrescription, false)
		return nil, err
	}

	if missing := finalGateMissing(apt); len(missing) > 0 {
		s.recordStageSave(types.StagePrescription, false)
		return nil, types.NewMissingFieldsError("VISIT_INCOMPLETE", missing)
	}

	if !apt.Status.CanTransitionTo(types.StatusCompleted) {
		s.recordStageSave(types.StagePrescription, false)
		return nil, types.NewBusinessRuleError("INVALID_STATUS_TRANSITION",
			fmt.Sprintf("cannot complete visit from status %s", apt.Status), nil)
	}

	if err := s.repository.SaveCompletion(appointmentID, update, types.StatusCompleted); err != nil {
		s.recordStageSave(types.StagePrescription, false)
		return nil, err
	}

	s.recordStageSave(types.StagePrescription, true)
	s.logger.Audit(userID, "complete_visit", "appointment:"+appointmentID, true, nil)
	return s.GetVisitState(appointmentID, userID)
}

// ChangeStatus performs a bare status transition validated against the
// central transition table. Used by reception flows (confirm, check-in,
// no-show, hold, resume, cancel).
func (s *Service) ChangeStatus(appointmentID string, target types.AppointmentStatus, userID string) (*types.Appointment, error) {
	apt, err := s.repository.GetAppointmentByID(appointmentID)
	if err != nil {
		return nil, err
	}

	if !apt.Status.CanTransitionTo(target) {
		if s.metrics != nil {
			s.metrics.RecordStatusTransition(string(apt.Status), string(target), false)
		}
		return nil, types.NewBusinessRuleError("INVALID_STATUS_TRANSITION",
			fmt.Sprintf("cannot change status from %s to %s", apt.Status, target), nil)
	}

	if err := s.repository.UpdateStatus(appointmentID, target); err != nil {
		if s.metrics != nil {
			s.metrics.RecordStatusTransition(string(apt.Status), string(target), false)
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordStatusTransition(string(apt.Status), string(target), true)
	}
	s.logger.Audit(userID, "change_status", "appointment:"+appointmentID, true,
		map[string]interface{}{"from": apt.Status, "to": target})

	return s.repository.GetAppointmentByID(appointmentID)
}

// RequestStage validates a navigation request. Stages at or before the
// resume stage and stages that already have persisted data are navigable;
// forward jumps past both are rejected.
func (s *Service) RequestStage(appointmentID string, target types.VisitStage, userID string) (*types.VisitState, error) {
	state, err := s.GetVisitState(appointmentID, userID)
	if err != nil {
		return nil, err
	}

	if target <= state.CurrentStage {
		return state, nil
	}
	for _, completed := range state.CompletedStages {
		if completed == target {
			return state, nil
		}
	}

	return nil, types.NewBusinessRuleError("STAGE_NOT_REACHED",
		fmt.Sprintf("complete stage %s before moving to %s", state.CurrentStage, target), nil)
}

// ListAppointments returns appointments matching the filters
func (s *Service) ListAppointments(filters *types.AppointmentFilters, userID string) ([]*types.Appointment, error) {
	s.logger.WithField("user_id", userID).Info("Listing appointments")
	return s.repository.GetAppointments(filters)
}

// Start starts the visit service HTTP server
func (s *Service) Start(addr string) error {
	router := mux.NewRouter()
	s.setupRoutes(router)

	s.server = &http.Server{
		Addr:    addr,
		Handler: router,
	}

	s.logger.WithField("addr", addr).Info("Starting Visit Service")
	return s.server.ListenAndServe()
}

// Stop stops the visit service
func (s *Service) Stop() error {
	if s.server != nil {
		s.logger.Info("Stopping Visit Service")
		return s.server.Close()
	}
	return nil
}

func (s *Service) recordStageSave(stage types.VisitStage, success bool) {
	if s.metrics != nil {
		s.metrics.RecordStageSave(stage.String(), success)
	}
}

package interfaces

import "github.com/hine2110/dental-clinic-client-sub000/pkg/types"

// VisitService drives the clinical visit workflow for appointments
type VisitService interface {
	// GetVisitState returns the appointment snapshot plus the derived
	// resume stage, used to re-enter the workflow after a reload
	GetVisitState(appointmentID, userID string) (*types.VisitState, error)

	// Stage saves. Each persists in a single round trip; on failure the
	// workflow stays on the current stage.
	SaveClinicalExam(appointmentID string, update *types.ClinicalExamUpdate, userID string) (*types.VisitState, error)
	SaveTestSelection(appointmentID string, update *types.TestSelectionUpdate, userID string) (*types.VisitState, error)
	SaveDiagnosis(appointmentID string, update *types.DiagnosisUpdate, userID string) (*types.VisitState, error)
	SaveTreatmentPlan(appointmentID string, update *types.TreatmentUpdate, userID string) (*types.VisitState, error)
	CompleteVisit(appointmentID string, update *types.CompletionUpdate, userID string) (*types.VisitState, error)

	// Result image management for the diagnosis stage
	AddResultImage(appointmentID, imageURL, userID string) (*types.VisitState, error)
	RemoveResultImage(appointmentID, imageURL, userID string) (*types.VisitState, error)

	// ChangeStatus performs a bare transition validated against the
	// central transition table (reception flows)
	ChangeStatus(appointmentID string, target types.AppointmentStatus, userID string) (*types.Appointment, error)

	// RequestStage validates a navigation request against the derived
	// current stage; backward moves are always allowed
	RequestStage(appointmentID string, target types.VisitStage, userID string) (*types.VisitState, error)

	// ListAppointments returns appointments matching the filters
	ListAppointments(filters *types.AppointmentFilters, userID string) ([]*types.Appointment, error)

	Start(addr string) error
	Stop() error
}

// VisitRepository persists appointments and their clinical fields
type VisitRepository interface {
	GetAppointmentByID(id string) (*types.Appointment, error)
	GetAppointments(filters *types.AppointmentFilters) ([]*types.Appointment, error)
	SaveClinicalExam(id string, update *types.ClinicalExamUpdate, status types.AppointmentStatus) error
	SaveTestSelection(id string, update *types.TestSelectionUpdate, status types.AppointmentStatus) error
	SaveDiagnosis(id string, update *types.DiagnosisUpdate) error
	SaveResultImages(id string, urls []string) error
	SaveTreatmentPlan(id string, update *types.TreatmentUpdate, status types.AppointmentStatus) error
	SaveCompletion(id string, update *types.CompletionUpdate, status types.AppointmentStatus) error
	UpdateStatus(id string, status types.AppointmentStatus) error
}

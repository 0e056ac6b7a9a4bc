package types

import "time"

// VisitStage identifies one of the five ordered stages of the clinical
// visit workflow.
type VisitStage int

const (
	StageClinicalExam VisitStage = iota
	StageTestSelection
	StageDiagnosis
	StageTreatment
	StagePrescription
)

// String returns the stage name used in logs and error messages
func (s VisitStage) String() string {
	switch s {
	case StageClinicalExam:
		return "clinical_exam"
	case StageTestSelection:
		return "test_selection"
	case StageDiagnosis:
		return "diagnosis"
	case StageTreatment:
		return "treatment"
	case StagePrescription:
		return "prescription_follow_up"
	}
	return "unknown"
}

// ClinicalExamUpdate carries the stage 0 fields
type ClinicalExamUpdate struct {
	ChiefComplaint  string `json:"chief_complaint"`
	MedicalHistory  string `json:"medical_history"`
	OralExamination string `json:"oral_examination"`
	Occlusion       string `json:"occlusion"`
	OtherFindings   string `json:"other_findings"`
}

// TestSelectionUpdate carries the stage 1 fields. Transfer moves the
// appointment to waiting_for_results and exits the workflow.
type TestSelectionUpdate struct {
	TestServiceIDs   []string `json:"test_service_ids"`
	TestInstructions string   `json:"test_instructions"`
	Transfer         bool     `json:"transfer"`
}

// DiagnosisUpdate carries the stage 2 fields. Result images are managed by
// separate add/remove operations, not through this update.
type DiagnosisUpdate struct {
	TestResultNotes string `json:"test_result_notes"`
	FinalDiagnosis  string `json:"final_diagnosis"`
}

// TreatmentUpdate carries the stage 3 fields. Transfer moves the
// appointment to in_treatment and exits the workflow.
type TreatmentUpdate struct {
	TreatmentServiceIDs  []string `json:"treatment_service_ids"`
	TreatmentNotes       string   `json:"treatment_notes"`
	HomeCareInstructions string   `json:"home_care_instructions"`
	Transfer             bool     `json:"transfer"`
}

// CompletionUpdate carries the stage 4 fields for the final save
type CompletionUpdate struct {
	Prescriptions        []PrescriptionItem `json:"prescriptions"`
	FollowUpDate         time.Time          `json:"follow_up_date"`
	FollowUpType         FollowUpType       `json:"follow_up_type"`
	FollowUpInstructions string             `json:"follow_up_instructions"`
	Warnings             string             `json:"warnings"`
}

// StatusChangeRequest asks for a bare status transition (reception flows:
// confirm, check-in, no-show, hold, resume, cancel)
type StatusChangeRequest struct {
	Status AppointmentStatus `json:"status"`
}

// VisitState is the workflow view of an appointment returned to clients:
// the snapshot plus the derived resume stage and per-stage completion.
type VisitState struct {
	Appointment     *Appointment `json:"appointment"`
	CurrentStage    VisitStage   `json:"current_stage"`
	CompletedStages []VisitStage `json:"completed_stages"`
}

package types

import "time"

// AppointmentStatus represents appointment status values along the clinical
// pipeline. Transitions are monotonic forward except for the escape states
// (no_show, cancelled, on_hold), which are reachable only from specific
// pre-completion states.
type AppointmentStatus string

const (
	StatusPending           AppointmentStatus = "pending"
	StatusConfirmed         AppointmentStatus = "confirmed"
	StatusCheckedIn         AppointmentStatus = "checked_in"
	StatusOnHold            AppointmentStatus = "on_hold"
	StatusInProgress        AppointmentStatus = "in_progress"
	StatusWaitingForResults AppointmentStatus = "waiting_for_results"
	StatusInTreatment       AppointmentStatus = "in_treatment"
	StatusCompleted         AppointmentStatus = "completed"
	StatusNoShow            AppointmentStatus = "no_show"
	StatusCancelled         AppointmentStatus = "cancelled"
)

// StatusSeverity is the display color/severity class for a status
type StatusSeverity string

const (
	SeverityInfo    StatusSeverity = "info"
	SeverityWarning StatusSeverity = "warning"
	SeveritySuccess StatusSeverity = "success"
	SeverityDanger  StatusSeverity = "danger"
	SeverityDefault StatusSeverity = "default"
)

// statusTransitions is the single authoritative transition table. UI call
// sites must not encode their own transition rules.
var statusTransitions = map[AppointmentStatus][]AppointmentStatus{
	StatusPending:           {StatusConfirmed, StatusCancelled, StatusNoShow},
	StatusConfirmed:         {StatusCheckedIn, StatusCancelled, StatusNoShow},
	StatusCheckedIn:         {StatusInProgress, StatusOnHold, StatusCancelled},
	StatusOnHold:            {StatusInProgress, StatusCancelled},
	StatusInProgress:        {StatusWaitingForResults, StatusInTreatment, StatusCompleted, StatusOnHold},
	StatusWaitingForResults: {StatusInProgress, StatusInTreatment, StatusCompleted},
	StatusInTreatment:       {StatusInProgress, StatusCompleted},
	StatusCompleted:         {},
	StatusNoShow:            {},
	StatusCancelled:         {},
}

type statusDisplay struct {
	label      string
	severity   StatusSeverity
	canAdvance bool
}

var statusDisplays = map[AppointmentStatus]statusDisplay{
	StatusPending:           {"Pending confirmation", SeverityWarning, true},
	StatusConfirmed:         {"Confirmed", SeverityInfo, true},
	StatusCheckedIn:         {"Checked in", SeverityInfo, true},
	StatusOnHold:            {"On hold", SeverityWarning, true},
	StatusInProgress:        {"Examination in progress", SeverityInfo, true},
	StatusWaitingForResults: {"Waiting for test results", SeverityWarning, true},
	StatusInTreatment:       {"In treatment", SeverityInfo, true},
	StatusCompleted:         {"Completed", SeveritySuccess, false},
	StatusNoShow:            {"No show", SeverityDanger, false},
	StatusCancelled:         {"Cancelled", SeverityDanger, false},
}

// Label returns the display label for the status. Unrecognized statuses get
// a non-empty fallback rather than an error.
func (s AppointmentStatus) Label() string {
	if d, ok := statusDisplays[s]; ok {
		return d.label
	}
	return "Unknown status"
}

// Severity returns the display severity class for the status
func (s AppointmentStatus) Severity() StatusSeverity {
	if d, ok := statusDisplays[s]; ok {
		return d.severity
	}
	return SeverityDefault
}

// CanAdvance reports whether forward-advance actions are enabled from this
// status. Unknown statuses cannot advance.
func (s AppointmentStatus) CanAdvance() bool {
	if d, ok := statusDisplays[s]; ok {
		return d.canAdvance
	}
	return false
}

// IsTerminal reports whether the status ends the appointment lifecycle
func (s AppointmentStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusNoShow, StatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether the transition table allows moving from
// this status to the target.
func (s AppointmentStatus) CanTransitionTo(target AppointmentStatus) bool {
	allowed, ok := statusTransitions[s]
	if !ok {
		return false
	}
	for _, next := range allowed {
		if next == target {
			return true
		}
	}
	return false
}

// Appointment represents one scheduled clinical visit, including the
// clinical fields accumulated across the visit workflow stages. It becomes
// immutable once Status is completed.
type Appointment struct {
	ID         string            `json:"id" db:"id"`
	PatientID  string            `json:"patient_id" db:"patient_id"`
	DoctorID   string            `json:"doctor_id" db:"doctor_id"`
	LocationID string            `json:"location_id" db:"location_id"`
	StartTime  time.Time         `json:"start_time" db:"start_time"`
	EndTime    time.Time         `json:"end_time" db:"end_time"`
	Status     AppointmentStatus `json:"status" db:"status"`

	// Stage 0 - clinical examination
	ChiefComplaint  string `json:"chief_complaint" db:"chief_complaint"`
	MedicalHistory  string `json:"medical_history" db:"medical_history"`
	OralExamination string `json:"oral_examination" db:"oral_examination"`
	Occlusion       string `json:"occlusion" db:"occlusion"`
	OtherFindings   string `json:"other_findings" db:"other_findings"`

	// Stage 1 - lab/imaging test selection
	TestServiceIDs   []string `json:"test_service_ids" db:"test_service_ids"`
	TestInstructions string   `json:"test_instructions" db:"test_instructions"`

	// Stage 2 - diagnosis
	TestResultNotes string   `json:"test_result_notes" db:"test_result_notes"`
	ResultImageURLs []string `json:"result_image_urls" db:"result_image_urls"`
	FinalDiagnosis  string   `json:"final_diagnosis" db:"final_diagnosis"`

	// Stage 3 - treatment & services
	TreatmentServiceIDs  []string `json:"treatment_service_ids" db:"treatment_service_ids"`
	TreatmentNotes       string   `json:"treatment_notes" db:"treatment_notes"`
	HomeCareInstructions string   `json:"home_care_instructions" db:"home_care_instructions"`

	// Stage 4 - prescription & follow-up
	Prescriptions        []PrescriptionItem `json:"prescriptions" db:"prescriptions"`
	FollowUpDate         *time.Time         `json:"follow_up_date" db:"follow_up_date"`
	FollowUpType         FollowUpType       `json:"follow_up_type" db:"follow_up_type"`
	FollowUpInstructions string             `json:"follow_up_instructions" db:"follow_up_instructions"`
	Warnings             string             `json:"warnings" db:"warnings"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// FollowUpType classifies the planned follow-up visit
type FollowUpType string

const (
	FollowUpReExamination FollowUpType = "re_examination"
	FollowUpTreatment     FollowUpType = "treatment_continuation"
	FollowUpSutureRemoval FollowUpType = "suture_removal"
	FollowUpNone          FollowUpType = ""
)

// AppointmentFilters represents filters for appointment queries
type AppointmentFilters struct {
	PatientID string            `json:"patient_id,omitempty"`
	DoctorID  string            `json:"doctor_id,omitempty"`
	Status    AppointmentStatus `json:"status,omitempty"`
	FromDate  time.Time         `json:"from_date,omitempty"`
	ToDate    time.Time         `json:"to_date,omitempty"`
	Limit     int               `json:"limit,omitempty"`
	Offset    int               `json:"offset,omitempty"`
}

package visit

import (
	"time"

	"github.com/hine2110/dental-clinic-client-sub000/pkg/types"
)

// Missing-field labels surfaced to clients. The step numbers match the
// workflow screens, which count stages from 1.
const (
	fieldChiefComplaint  = "Chief complaint (Step 1)"
	fieldOralExamination = "Oral examination (Step 1)"
	fieldTestSelection   = "Test selection (Step 2)"
	fieldFinalDiagnosis  = "Final diagnosis (Step 3)"
	fieldTreatmentSet    = "Treatment services (Step 4)"
	fieldHomeCare        = "Home care instructions (Step 4)"
	fieldFollowUpDate    = "Follow-up date (Step 5)"
	fieldFollowUpNotes   = "Follow-up instructions (Step 5)"
)

// maxResultImages caps the number of uploaded result images per appointment
const maxResultImages = 8

// validateClinicalExam returns the missing required fields for stage 0
func validateClinicalExam(update *types.ClinicalExamUpdate) []string {
	var missing []string
	if update.ChiefComplaint == "" {
		missing = append(missing, fieldChiefComplaint)
	}
	if update.OralExamination == "" {
		missing = append(missing, fieldOralExamination)
	}
	return missing
}

// validateTestSelection returns the missing required fields for stage 1
func validateTestSelection(update *types.TestSelectionUpdate) []string {
	if len(update.TestServiceIDs) == 0 {
		return []string{fieldTestSelection}
	}
	return nil
}

// validateDiagnosis returns the missing required fields for stage 2
func validateDiagnosis(update *types.DiagnosisUpdate) []string {
	if update.FinalDiagnosis == "" {
		return []string{fieldFinalDiagnosis}
	}
	return nil
}

// validateTreatment returns the missing required fields for stage 3
func validateTreatment(update *types.TreatmentUpdate) []string {
	var missing []string
	if len(update.TreatmentServiceIDs) == 0 {
		missing = append(missing, fieldTreatmentSet)
	}
	if update.HomeCareInstructions == "" {
		missing = append(missing, fieldHomeCare)
	}
	return missing
}

// validateCompletion returns the missing required fields for the stage 4
// update itself. The cross-stage final gate is checked separately against
// the persisted appointment.
func validateCompletion(update *types.CompletionUpdate) []string {
	var missing []string
	if update.FollowUpDate.IsZero() {
		missing = append(missing, fieldFollowUpDate)
	}
	if update.FollowUpInstructions == "" {
		missing = append(missing, fieldFollowUpNotes)
	}
	return missing
}

// followUpDateInPast reports whether the follow-up date falls before today.
// Only the calendar date matters, not the time of day.
func followUpDateInPast(date, now time.Time) bool {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return date.Before(today)
}

// finalGateMissing re-checks the cross-stage required fields against the
// persisted appointment before the completing save.
func finalGateMissing(apt *types.Appointment) []string {
	var missing []string
	if apt.ChiefComplaint == "" {
		missing = append(missing, fieldChiefComplaint)
	}
	if apt.OralExamination == "" {
		missing = append(missing, fieldOralExamination)
	}
	if apt.FinalDiagnosis == "" {
		missing = append(missing, fieldFinalDiagnosis)
	}
	return missing
}

// stageComplete reports whether the given stage's required fields are
// already persisted on the appointment.
func stageComplete(apt *types.Appointment, stage types.VisitStage) bool {
	switch stage {
	case types.StageClinicalExam:
		return apt.ChiefComplaint != "" && apt.OralExamination != ""
	case types.StageTestSelection:
		return len(apt.TestServiceIDs) > 0
	case types.StageDiagnosis:
		return apt.FinalDiagnosis != ""
	case types.StageTreatment:
		return len(apt.TreatmentServiceIDs) > 0 && apt.HomeCareInstructions != ""
	case types.StagePrescription:
		return apt.Status == types.StatusCompleted
	}
	return false
}

// deriveState computes the workflow view of an appointment: the list of
// completed stages and the stage the workflow resumes on. The resume stage
// is the first incomplete stage; a completed visit stays on the last stage.
func deriveState(apt *types.Appointment) *types.VisitState {
	state := &types.VisitState{
		Appointment:  apt,
		CurrentStage: types.StagePrescription,
	}

	stages := []types.VisitStage{
		types.StageClinicalExam,
		types.StageTestSelection,
		types.StageDiagnosis,
		types.StageTreatment,
		types.StagePrescription,
	}

	resumeFound := false
	for _, stage := range stages {
		if stageComplete(apt, stage) {
			state.CompletedStages = append(state.CompletedStages, stage)
			continue
		}
		if !resumeFound {
			state.CurrentStage = stage
			resumeFound = true
		}
	}

	return state
}

package visit

import (
	"testing"
	"time"

	"github.com/hine2110/dental-clinic-client-sub000/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestDeriveState_ResumeStage(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(apt *types.Appointment)
		wantStage types.VisitStage
	}{
		{
			name:      "fresh appointment resumes on clinical exam",
			mutate:    func(apt *types.Appointment) {},
			wantStage: types.StageClinicalExam,
		},
		{
			name: "exam saved resumes on test selection",
			mutate: func(apt *types.Appointment) {
				apt.ChiefComplaint = "toothache"
				apt.OralExamination = "caries"
			},
			wantStage: types.StageTestSelection,
		},
		{
			name: "tests selected resumes on diagnosis",
			mutate: func(apt *types.Appointment) {
				apt.ChiefComplaint = "toothache"
				apt.OralExamination = "caries"
				apt.TestServiceIDs = []string{"svc-xray"}
			},
			wantStage: types.StageDiagnosis,
		},
		{
			name: "diagnosis saved resumes on treatment",
			mutate: func(apt *types.Appointment) {
				apt.ChiefComplaint = "toothache"
				apt.OralExamination = "caries"
				apt.TestServiceIDs = []string{"svc-xray"}
				apt.FinalDiagnosis = "pulpitis"
			},
			wantStage: types.StageTreatment,
		},
		{
			name: "treatment saved resumes on prescription",
			mutate: func(apt *types.Appointment) {
				apt.ChiefComplaint = "toothache"
				apt.OralExamination = "caries"
				apt.TestServiceIDs = []string{"svc-xray"}
				apt.FinalDiagnosis = "pulpitis"
				apt.TreatmentServiceIDs = []string{"svc-filling"}
				apt.HomeCareInstructions = "soft food for two days"
			},
			wantStage: types.StagePrescription,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apt := &types.Appointment{
				ID:        "apt-1",
				Status:    types.StatusInProgress,
				StartTime: time.Now(),
			}
			tt.mutate(apt)

			state := deriveState(apt)
			assert.Equal(t, tt.wantStage, state.CurrentStage)
		})
	}
}

func TestDeriveState_SkippedStageStillResumesThere(t *testing.T) {
	// The exam was saved and a diagnosis exists, but no tests were ever
	// selected. The resume stage is the first incomplete one.
	apt := &types.Appointment{
		ID:              "apt-1",
		Status:          types.StatusInProgress,
		ChiefComplaint:  "toothache",
		OralExamination: "caries",
		FinalDiagnosis:  "pulpitis",
	}

	state := deriveState(apt)
	assert.Equal(t, types.StageTestSelection, state.CurrentStage)
	assert.Contains(t, state.CompletedStages, types.StageDiagnosis)
	assert.NotContains(t, state.CompletedStages, types.StageTestSelection)
}

func TestFollowUpDateInPast(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

	assert.True(t, followUpDateInPast(now.Add(-24*time.Hour), now))
	// Same calendar day counts as not past, even earlier in the day
	assert.False(t, followUpDateInPast(time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC), now))
	assert.False(t, followUpDateInPast(now.Add(24*time.Hour), now))
}

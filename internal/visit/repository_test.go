package visit

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/hine2110/dental-clinic-client-sub000/pkg/database"
	"github.com/hine2110/dental-clinic-client-sub000/pkg/logger"
	"github.com/hine2110/dental-clinic-client-sub000/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRepository(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db := &database.DB{DB: sqlDB}
	repo := NewRepository(db, logger.New("debug")).(*Repository)
	return repo, mock
}

func appointmentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "patient_id", "doctor_id", "location_id", "start_time", "end_time", "status",
		"chief_complaint", "medical_history", "oral_examination", "occlusion", "other_findings",
		"test_service_ids", "test_instructions", "test_result_notes", "result_image_urls",
		"final_diagnosis", "treatment_service_ids", "treatment_notes", "home_care_instructions",
		"prescriptions", "follow_up_date", "follow_up_type", "follow_up_instructions", "warnings",
		"created_at", "updated_at",
	})
}

func TestGetAppointmentByID_Success(t *testing.T) {
	repo, mock := setupTestRepository(t)

	now := time.Now()
	rows := appointmentRows().AddRow(
		"apt-1", "patient-1", "doctor-1", nil, now, now.Add(30*time.Minute), "in_progress",
		"toothache", "", "caries on tooth 36", "", "",
		[]byte(`["svc-xray"]`), "", "", []byte(`[]`),
		"pulpitis", []byte(`[]`), "", "",
		[]byte(`[{"medicine":"Amoxicillin","dosage":"2 viên","frequency":"3 lần/ngày","duration_days":5}]`),
		nil, "", "", "",
		now, now,
	)

	mock.ExpectQuery("SELECT (.+) FROM appointments WHERE id = \\$1").
		WithArgs("apt-1").
		WillReturnRows(rows)

	apt, err := repo.GetAppointmentByID("apt-1")

	require.NoError(t, err)
	assert.Equal(t, "apt-1", apt.ID)
	assert.Equal(t, types.StatusInProgress, apt.Status)
	assert.Equal(t, []string{"svc-xray"}, apt.TestServiceIDs)
	require.Len(t, apt.Prescriptions, 1)
	assert.Equal(t, "Amoxicillin", apt.Prescriptions[0].Medicine)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAppointmentByID_NotFound(t *testing.T) {
	repo, mock := setupTestRepository(t)

	mock.ExpectQuery("SELECT (.+) FROM appointments WHERE id = \\$1").
		WithArgs("missing").
		WillReturnRows(appointmentRows())

	_, err := repo.GetAppointmentByID("missing")

	require.Error(t, err)
	clinicErr, ok := err.(*types.ClinicError)
	require.True(t, ok)
	assert.Equal(t, types.ErrorTypeNotFound, clinicErr.Type)
}

func TestUpdateStatus_NotFound(t *testing.T) {
	repo, mock := setupTestRepository(t)

	mock.ExpectExec("UPDATE appointments SET status = \\$1").
		WithArgs("cancelled", "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus("missing", types.StatusCancelled)

	require.Error(t, err)
	clinicErr := err.(*types.ClinicError)
	assert.Equal(t, types.ErrorTypeNotFound, clinicErr.Type)
}

func TestSaveTestSelection_MarshalsServiceIDs(t *testing.T) {
	repo, mock := setupTestRepository(t)

	mock.ExpectExec("UPDATE appointments").
		WithArgs([]byte(`["svc-xray","svc-ct"]`), "bitewing first", "waiting_for_results", "apt-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	update := &types.TestSelectionUpdate{
		TestServiceIDs:   []string{"svc-xray", "svc-ct"},
		TestInstructions: "bitewing first",
	}

	err := repo.SaveTestSelection("apt-1", update, types.StatusWaitingForResults)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

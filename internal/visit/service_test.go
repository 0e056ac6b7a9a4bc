package visit

import (
	"testing"
	"time"

	"github.com/hine2110/dental-clinic-client-sub000/pkg/config"
	"github.com/hine2110/dental-clinic-client-sub000/pkg/logger"
	"github.com/hine2110/dental-clinic-client-sub000/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockVisitRepository is a mock implementation of VisitRepository
type MockVisitRepository struct {
	mock.Mock
}

func (m *MockVisitRepository) GetAppointmentByID(id string) (*types.Appointment, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Appointment), args.Error(1)
}

func (m *MockVisitRepository) GetAppointments(filters *types.AppointmentFilters) ([]*types.Appointment, error) {
	args := m.Called(filters)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*types.Appointment), args.Error(1)
}

func (m *MockVisitRepository) SaveClinicalExam(id string, update *types.ClinicalExamUpdate, status types.AppointmentStatus) error {
	args := m.Called(id, update, status)
	return args.Error(0)
}

func (m *MockVisitRepository) SaveTestSelection(id string, update *types.TestSelectionUpdate, status types.AppointmentStatus) error {
	args := m.Called(id, update, status)
	return args.Error(0)
}

func (m *MockVisitRepository) SaveDiagnosis(id string, update *types.DiagnosisUpdate) error {
	args := m.Called(id, update)
	return args.Error(0)
}

func (m *MockVisitRepository) SaveResultImages(id string, urls []string) error {
	args := m.Called(id, urls)
	return args.Error(0)
}

func (m *MockVisitRepository) SaveTreatmentPlan(id string, update *types.TreatmentUpdate, status types.AppointmentStatus) error {
	args := m.Called(id, update, status)
	return args.Error(0)
}

func (m *MockVisitRepository) SaveCompletion(id string, update *types.CompletionUpdate, status types.AppointmentStatus) error {
	args := m.Called(id, update, status)
	return args.Error(0)
}

func (m *MockVisitRepository) UpdateStatus(id string, status types.AppointmentStatus) error {
	args := m.Called(id, status)
	return args.Error(0)
}

// Test setup helper
func setupTestService() (*Service, *MockVisitRepository) {
	cfg := &config.Config{}
	log := logger.New("debug")
	mockRepo := &MockVisitRepository{}

	service := &Service{
		config:     cfg,
		logger:     log,
		repository: mockRepo,
	}

	return service, mockRepo
}

func checkedInAppointment() *types.Appointment {
	return &types.Appointment{
		ID:        "apt-1",
		PatientID: "patient-1",
		DoctorID:  "doctor-1",
		Status:    types.StatusCheckedIn,
		StartTime: time.Now(),
		EndTime:   time.Now().Add(30 * time.Minute),
	}
}

func examinedAppointment() *types.Appointment {
	apt := checkedInAppointment()
	apt.Status = types.StatusInProgress
	apt.ChiefComplaint = "toothache"
	apt.OralExamination = "caries on tooth 36"
	return apt
}

func TestSaveClinicalExam_Success(t *testing.T) {
	service, mockRepo := setupTestService()

	apt := checkedInAppointment()
	update := &types.ClinicalExamUpdate{
		ChiefComplaint:  "toothache",
		OralExamination: "caries on tooth 36",
	}

	saved := examinedAppointment()
	mockRepo.On("GetAppointmentByID", "apt-1").Return(apt, nil).Once()
	mockRepo.On("SaveClinicalExam", "apt-1", update, types.StatusInProgress).Return(nil)
	mockRepo.On("GetAppointmentByID", "apt-1").Return(saved, nil)

	state, err := service.SaveClinicalExam("apt-1", update, "doctor-1")

	require.NoError(t, err)
	assert.Equal(t, types.StageTestSelection, state.CurrentStage)
	assert.Contains(t, state.CompletedStages, types.StageClinicalExam)
	mockRepo.AssertExpectations(t)
}

func TestSaveClinicalExam_MissingFields(t *testing.T) {
	service, mockRepo := setupTestService()

	update := &types.ClinicalExamUpdate{MedicalHistory: "diabetes"}

	_, err := service.SaveClinicalExam("apt-1", update, "doctor-1")

	require.Error(t, err)
	clinicErr, ok := err.(*types.ClinicError)
	require.True(t, ok)
	assert.Equal(t, types.ErrorTypeValidation, clinicErr.Type)
	assert.ElementsMatch(t, []string{
		"Chief complaint (Step 1)",
		"Oral examination (Step 1)",
	}, clinicErr.MissingFields())

	// Validation rejects before any repository call
	mockRepo.AssertNotCalled(t, "SaveClinicalExam", mock.Anything, mock.Anything, mock.Anything)
}

func TestSaveTestSelection_EmptySetRejected(t *testing.T) {
	service, mockRepo := setupTestService()

	update := &types.TestSelectionUpdate{TestInstructions: "panoramic x-ray"}

	_, err := service.SaveTestSelection("apt-1", update, "doctor-1")

	require.Error(t, err)
	clinicErr := err.(*types.ClinicError)
	assert.Equal(t, []string{"Test selection (Step 2)"}, clinicErr.MissingFields())
	mockRepo.AssertNotCalled(t, "SaveTestSelection", mock.Anything, mock.Anything, mock.Anything)
}

func TestSaveTestSelection_TransferMovesToWaiting(t *testing.T) {
	service, mockRepo := setupTestService()

	apt := examinedAppointment()
	update := &types.TestSelectionUpdate{
		TestServiceIDs: []string{"svc-xray"},
		Transfer:       true,
	}

	saved := examinedAppointment()
	saved.Status = types.StatusWaitingForResults
	saved.TestServiceIDs = []string{"svc-xray"}

	mockRepo.On("GetAppointmentByID", "apt-1").Return(apt, nil).Once()
	mockRepo.On("SaveTestSelection", "apt-1", update, types.StatusWaitingForResults).Return(nil)
	mockRepo.On("GetAppointmentByID", "apt-1").Return(saved, nil)

	state, err := service.SaveTestSelection("apt-1", update, "doctor-1")

	require.NoError(t, err)
	assert.Equal(t, types.StatusWaitingForResults, state.Appointment.Status)
	mockRepo.AssertExpectations(t)
}

func TestRequestStage_ForwardJumpRejected(t *testing.T) {
	service, mockRepo := setupTestService()

	// Nothing saved yet, resume stage is the clinical exam
	apt := checkedInAppointment()
	mockRepo.On("GetAppointmentByID", "apt-1").Return(apt, nil)

	_, err := service.RequestStage("apt-1", types.StageTreatment, "doctor-1")

	require.Error(t, err)
	clinicErr := err.(*types.ClinicError)
	assert.Equal(t, types.ErrorTypeBusinessRule, clinicErr.Type)
	assert.Equal(t, "STAGE_NOT_REACHED", clinicErr.Code)
}

func TestRequestStage_BackwardAlwaysAllowed(t *testing.T) {
	service, mockRepo := setupTestService()

	apt := examinedAppointment()
	apt.TestServiceIDs = []string{"svc-xray"}
	apt.FinalDiagnosis = "pulpitis"
	mockRepo.On("GetAppointmentByID", "apt-1").Return(apt, nil)

	state, err := service.RequestStage("apt-1", types.StageClinicalExam, "doctor-1")

	require.NoError(t, err)
	assert.Equal(t, types.StageTreatment, state.CurrentStage)
}

func completedAppointment() *types.Appointment {
	apt := examinedAppointment()
	apt.TestServiceIDs = []string{"svc-xray"}
	apt.FinalDiagnosis = "pulpitis"
	apt.TreatmentServiceIDs = []string{"svc-filling"}
	apt.HomeCareInstructions = "soft diet for two days"
	apt.ResultImageURLs = []string{"https://img.example/a"}
	apt.Status = types.StatusCompleted
	return apt
}

func TestCompletedAppointmentIsImmutable(t *testing.T) {
	operations := map[string]func(s *Service) error{
		"test selection": func(s *Service) error {
			_, err := s.SaveTestSelection("apt-1",
				&types.TestSelectionUpdate{TestServiceIDs: []string{"svc-ct"}}, "doctor-1")
			return err
		},
		"diagnosis": func(s *Service) error {
			_, err := s.SaveDiagnosis("apt-1",
				&types.DiagnosisUpdate{FinalDiagnosis: "rewritten after completion"}, "doctor-1")
			return err
		},
		"treatment plan": func(s *Service) error {
			_, err := s.SaveTreatmentPlan("apt-1", &types.TreatmentUpdate{
				TreatmentServiceIDs:  []string{"svc-extraction"},
				HomeCareInstructions: "rewritten after completion",
			}, "doctor-1")
			return err
		},
		"add result image": func(s *Service) error {
			_, err := s.AddResultImage("apt-1", "https://img.example/late", "doctor-1")
			return err
		},
		"remove result image": func(s *Service) error {
			_, err := s.RemoveResultImage("apt-1", "https://img.example/a", "doctor-1")
			return err
		},
	}

	for name, op := range operations {
		t.Run(name, func(t *testing.T) {
			service, mockRepo := setupTestService()
			mockRepo.On("GetAppointmentByID", "apt-1").Return(completedAppointment(), nil)

			err := op(service)

			require.Error(t, err)
			clinicErr := err.(*types.ClinicError)
			assert.Equal(t, types.ErrorTypeBusinessRule, clinicErr.Type)
			assert.Equal(t, "APPOINTMENT_FINALIZED", clinicErr.Code)

			mockRepo.AssertNotCalled(t, "SaveTestSelection", mock.Anything, mock.Anything, mock.Anything)
			mockRepo.AssertNotCalled(t, "SaveDiagnosis", mock.Anything, mock.Anything)
			mockRepo.AssertNotCalled(t, "SaveTreatmentPlan", mock.Anything, mock.Anything, mock.Anything)
			mockRepo.AssertNotCalled(t, "SaveResultImages", mock.Anything, mock.Anything)
		})
	}
}

func TestSaveDiagnosis_CancelledAppointmentImmutable(t *testing.T) {
	service, mockRepo := setupTestService()

	apt := examinedAppointment()
	apt.Status = types.StatusCancelled
	mockRepo.On("GetAppointmentByID", "apt-1").Return(apt, nil)

	_, err := service.SaveDiagnosis("apt-1",
		&types.DiagnosisUpdate{FinalDiagnosis: "pulpitis"}, "doctor-1")

	require.Error(t, err)
	assert.Equal(t, "APPOINTMENT_FINALIZED", err.(*types.ClinicError).Code)
	mockRepo.AssertNotCalled(t, "SaveDiagnosis", mock.Anything, mock.Anything)
}

func TestRequestStage_SkippedStageStillNavigable(t *testing.T) {
	service, mockRepo := setupTestService()

	// Diagnosis was recorded while the test selection stage stayed empty.
	// The workflow resumes on test selection, but the diagnosis stage
	// already holds data and stays reachable.
	apt := examinedAppointment()
	apt.FinalDiagnosis = "pulpitis"
	mockRepo.On("GetAppointmentByID", "apt-1").Return(apt, nil)

	state, err := service.RequestStage("apt-1", types.StageDiagnosis, "doctor-1")

	require.NoError(t, err)
	assert.Equal(t, types.StageTestSelection, state.CurrentStage)
	assert.Contains(t, state.CompletedStages, types.StageDiagnosis)

	// Treatment has no data and lies past the resume stage
	_, err = service.RequestStage("apt-1", types.StageTreatment, "doctor-1")

	require.Error(t, err)
	assert.Equal(t, "STAGE_NOT_REACHED", err.(*types.ClinicError).Code)
}

func TestCompleteVisit_MissingChiefComplaint(t *testing.T) {
	service, mockRepo := setupTestService()

	// Chief complaint was never captured; the other gate fields are present
	apt := examinedAppointment()
	apt.ChiefComplaint = ""
	apt.FinalDiagnosis = "pulpitis"
	mockRepo.On("GetAppointmentByID", "apt-1").Return(apt, nil)

	update := &types.CompletionUpdate{
		FollowUpDate:         time.Now().Add(7 * 24 * time.Hour),
		FollowUpInstructions: "return for review",
	}

	_, err := service.CompleteVisit("apt-1", update, "doctor-1")

	require.Error(t, err)
	clinicErr := err.(*types.ClinicError)
	assert.Equal(t, "VISIT_INCOMPLETE", clinicErr.Code)
	assert.Equal(t, []string{"Chief complaint (Step 1)"}, clinicErr.MissingFields())

	// The status must stay unchanged: no completion write happened
	mockRepo.AssertNotCalled(t, "SaveCompletion", mock.Anything, mock.Anything, mock.Anything)
}

func TestCompleteVisit_Success(t *testing.T) {
	service, mockRepo := setupTestService()

	apt := examinedAppointment()
	apt.FinalDiagnosis = "pulpitis"

	update := &types.CompletionUpdate{
		Prescriptions: []types.PrescriptionItem{
			{Medicine: "Amoxicillin", Dosage: "2 viên", Frequency: "3 lần/ngày"},
		},
		FollowUpDate:         time.Now().Add(7 * 24 * time.Hour),
		FollowUpType:         types.FollowUpReExamination,
		FollowUpInstructions: "return for review",
	}

	completed := examinedAppointment()
	completed.FinalDiagnosis = "pulpitis"
	completed.Status = types.StatusCompleted

	mockRepo.On("GetAppointmentByID", "apt-1").Return(apt, nil).Once()
	mockRepo.On("SaveCompletion", "apt-1", update, types.StatusCompleted).Return(nil)
	mockRepo.On("GetAppointmentByID", "apt-1").Return(completed, nil)

	state, err := service.CompleteVisit("apt-1", update, "doctor-1")

	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, state.Appointment.Status)
	// Unspecified duration defaults to one day
	assert.Equal(t, 1, update.Prescriptions[0].DurationDays)
	mockRepo.AssertExpectations(t)
}

func TestCompleteVisit_PastFollowUpDateRejected(t *testing.T) {
	service, mockRepo := setupTestService()

	update := &types.CompletionUpdate{
		FollowUpDate:         time.Now().Add(-48 * time.Hour),
		FollowUpInstructions: "return for review",
	}

	_, err := service.CompleteVisit("apt-1", update, "doctor-1")

	require.Error(t, err)
	clinicErr := err.(*types.ClinicError)
	assert.Equal(t, "FOLLOW_UP_DATE_PAST", clinicErr.Code)
	mockRepo.AssertNotCalled(t, "GetAppointmentByID", mock.Anything)
}

func TestChangeStatus_InvalidTransitionRejected(t *testing.T) {
	service, mockRepo := setupTestService()

	apt := checkedInAppointment()
	apt.Status = types.StatusCompleted
	mockRepo.On("GetAppointmentByID", "apt-1").Return(apt, nil)

	_, err := service.ChangeStatus("apt-1", types.StatusInProgress, "staff-1")

	require.Error(t, err)
	clinicErr := err.(*types.ClinicError)
	assert.Equal(t, "INVALID_STATUS_TRANSITION", clinicErr.Code)
	mockRepo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything)
}

func TestChangeStatus_Success(t *testing.T) {
	service, mockRepo := setupTestService()

	apt := checkedInAppointment()
	apt.Status = types.StatusConfirmed

	checkedIn := checkedInAppointment()

	mockRepo.On("GetAppointmentByID", "apt-1").Return(apt, nil).Once()
	mockRepo.On("UpdateStatus", "apt-1", types.StatusCheckedIn).Return(nil)
	mockRepo.On("GetAppointmentByID", "apt-1").Return(checkedIn, nil)

	result, err := service.ChangeStatus("apt-1", types.StatusCheckedIn, "staff-1")

	require.NoError(t, err)
	assert.Equal(t, types.StatusCheckedIn, result.Status)
	mockRepo.AssertExpectations(t)
}

func TestAddResultImage_LimitEnforced(t *testing.T) {
	service, mockRepo := setupTestService()

	apt := examinedAppointment()
	for i := 0; i < maxResultImages; i++ {
		apt.ResultImageURLs = append(apt.ResultImageURLs, "https://img.example/"+string(rune('a'+i)))
	}
	mockRepo.On("GetAppointmentByID", "apt-1").Return(apt, nil)

	_, err := service.AddResultImage("apt-1", "https://img.example/one-too-many", "doctor-1")

	require.Error(t, err)
	clinicErr := err.(*types.ClinicError)
	assert.Equal(t, "RESULT_IMAGE_LIMIT", clinicErr.Code)
	mockRepo.AssertNotCalled(t, "SaveResultImages", mock.Anything, mock.Anything)
}

func TestRemoveResultImage_RewritesList(t *testing.T) {
	service, mockRepo := setupTestService()

	apt := examinedAppointment()
	apt.ResultImageURLs = []string{"https://img.example/a", "https://img.example/b"}

	rewritten := examinedAppointment()
	rewritten.ResultImageURLs = []string{"https://img.example/b"}

	mockRepo.On("GetAppointmentByID", "apt-1").Return(apt, nil).Once()
	mockRepo.On("SaveResultImages", "apt-1", []string{"https://img.example/b"}).Return(nil)
	mockRepo.On("GetAppointmentByID", "apt-1").Return(rewritten, nil)

	state, err := service.RemoveResultImage("apt-1", "https://img.example/a", "doctor-1")

	require.NoError(t, err)
	assert.Equal(t, []string{"https://img.example/b"}, state.Appointment.ResultImageURLs)
	mockRepo.AssertExpectations(t)
}

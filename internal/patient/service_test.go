package patient

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hine2110/dental-clinic-client-sub000/pkg/config"
	"github.com/hine2110/dental-clinic-client-sub000/pkg/logger"
	"github.com/hine2110/dental-clinic-client-sub000/pkg/types"
)

// MockPatientRepository is a mock implementation of PatientRepository
type MockPatientRepository struct {
	mock.Mock
}

func (m *MockPatientRepository) GetProfileByPatientID(patientID string) (*types.PatientProfile, error) {
	args := m.Called(patientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.PatientProfile), args.Error(1)
}

func (m *MockPatientRepository) UpsertProfile(profile *types.PatientProfile) error {
	args := m.Called(profile)
	return args.Error(0)
}

// MockProfilePublisher is a mock implementation of ProfileEventPublisher
type MockProfilePublisher struct {
	mock.Mock
}

func (m *MockProfilePublisher) PublishProfileUpdated(event *types.ProfileUpdatedEvent) error {
	args := m.Called(event)
	return args.Error(0)
}

func (m *MockProfilePublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

func setupTestService(repo *MockPatientRepository, pub *MockProfilePublisher) *Service {
	return &Service{
		config:     &config.Config{},
		logger:     logger.New("error"),
		repository: repo,
		publisher:  pub,
		gates:      make(map[string]gateResult),
	}
}

func completeProfile(patientID string) *types.PatientProfile {
	dob := time.Date(1990, 4, 12, 0, 0, 0, 0, time.UTC)
	return &types.PatientProfile{
		PatientID:   patientID,
		FullName:    "Nguyen Van A",
		DateOfBirth: &dob,
		Phone:       "0901234567",
		Address:     "12 Nguyen Trai, Q1",
	}
}

func TestGetProfileStatus_NoProfile(t *testing.T) {
	repo := &MockPatientRepository{}
	pub := &MockProfilePublisher{}
	service := setupTestService(repo, pub)

	repo.On("GetProfileByPatientID", "patient-1").
		Return(nil, types.NewNotFoundError("PROFILE_NOT_FOUND", "patient profile not found"))

	status, missing, err := service.GetProfileStatus("patient-1")

	require.NoError(t, err)
	assert.Equal(t, types.ProfileIncomplete, status)
	assert.Equal(t, []string{"full_name", "date_of_birth", "phone", "address"}, missing)
}

func TestGetProfileStatus_CompleteProfile(t *testing.T) {
	repo := &MockPatientRepository{}
	pub := &MockProfilePublisher{}
	service := setupTestService(repo, pub)

	repo.On("GetProfileByPatientID", "patient-1").Return(completeProfile("patient-1"), nil)

	status, missing, err := service.GetProfileStatus("patient-1")

	require.NoError(t, err)
	assert.Equal(t, types.ProfileComplete, status)
	assert.Empty(t, missing)
}

func TestGetProfileStatus_PartialProfile(t *testing.T) {
	repo := &MockPatientRepository{}
	pub := &MockProfilePublisher{}
	service := setupTestService(repo, pub)

	profile := completeProfile("patient-1")
	profile.Phone = ""
	profile.Address = ""
	repo.On("GetProfileByPatientID", "patient-1").Return(profile, nil)

	status, missing, err := service.GetProfileStatus("patient-1")

	require.NoError(t, err)
	assert.Equal(t, types.ProfileIncomplete, status)
	assert.Equal(t, []string{"phone", "address"}, missing)
}

func TestGetProfileStatus_RepositoryErrorFailsClosed(t *testing.T) {
	repo := &MockPatientRepository{}
	pub := &MockProfilePublisher{}
	service := setupTestService(repo, pub)

	repo.On("GetProfileByPatientID", "patient-1").
		Return(nil, errors.New("connection refused")).Once()

	status, _, err := service.GetProfileStatus("patient-1")

	require.NoError(t, err)
	assert.Equal(t, types.ProfileIncomplete, status)

	// The failed check is not cached, so the next call retries the
	// repository and sees the recovered profile.
	repo.On("GetProfileByPatientID", "patient-1").Return(completeProfile("patient-1"), nil).Once()

	status, _, err = service.GetProfileStatus("patient-1")

	require.NoError(t, err)
	assert.Equal(t, types.ProfileComplete, status)
	repo.AssertExpectations(t)
}

func TestGetProfileStatus_ResultCached(t *testing.T) {
	repo := &MockPatientRepository{}
	pub := &MockProfilePublisher{}
	service := setupTestService(repo, pub)

	repo.On("GetProfileByPatientID", "patient-1").Return(completeProfile("patient-1"), nil).Once()

	_, _, err := service.GetProfileStatus("patient-1")
	require.NoError(t, err)

	status, _, err := service.GetProfileStatus("patient-1")
	require.NoError(t, err)
	assert.Equal(t, types.ProfileComplete, status)

	repo.AssertNumberOfCalls(t, "GetProfileByPatientID", 1)
}

func TestHandleProfileUpdated_InvalidatesCache(t *testing.T) {
	repo := &MockPatientRepository{}
	pub := &MockProfilePublisher{}
	service := setupTestService(repo, pub)

	profile := completeProfile("patient-1")
	profile.Phone = ""
	repo.On("GetProfileByPatientID", "patient-1").Return(profile, nil).Once()

	status, _, err := service.GetProfileStatus("patient-1")
	require.NoError(t, err)
	assert.Equal(t, types.ProfileIncomplete, status)

	err = service.handleProfileUpdated(&types.ProfileUpdatedEvent{
		PatientID: "patient-1",
		UpdatedAt: time.Now(),
	})
	require.NoError(t, err)

	repo.On("GetProfileByPatientID", "patient-1").Return(completeProfile("patient-1"), nil).Once()

	status, _, err = service.GetProfileStatus("patient-1")
	require.NoError(t, err)
	assert.Equal(t, types.ProfileComplete, status)
	repo.AssertExpectations(t)
}

func TestUpdateProfile_PublishesEvent(t *testing.T) {
	repo := &MockPatientRepository{}
	pub := &MockProfilePublisher{}
	service := setupTestService(repo, pub)

	profile := completeProfile("patient-1")
	repo.On("UpsertProfile", profile).Return(nil)
	repo.On("GetProfileByPatientID", "patient-1").Return(profile, nil)
	pub.On("PublishProfileUpdated", mock.MatchedBy(func(event *types.ProfileUpdatedEvent) bool {
		return event.PatientID == "patient-1"
	})).Return(nil)

	updated, err := service.UpdateProfile(profile, "user-1")

	require.NoError(t, err)
	assert.Equal(t, "patient-1", updated.PatientID)
	pub.AssertExpectations(t)
}

func TestUpdateProfile_PublishFailureNotFatal(t *testing.T) {
	repo := &MockPatientRepository{}
	pub := &MockProfilePublisher{}
	service := setupTestService(repo, pub)

	profile := completeProfile("patient-1")
	repo.On("UpsertProfile", profile).Return(nil)
	repo.On("GetProfileByPatientID", "patient-1").Return(profile, nil)
	pub.On("PublishProfileUpdated", mock.Anything).Return(errors.New("broker unreachable"))

	updated, err := service.UpdateProfile(profile, "user-1")

	require.NoError(t, err)
	assert.NotNil(t, updated)
}

func TestUpdateProfile_MissingPatientID(t *testing.T) {
	repo := &MockPatientRepository{}
	pub := &MockProfilePublisher{}
	service := setupTestService(repo, pub)

	_, err := service.UpdateProfile(&types.PatientProfile{}, "user-1")

	require.Error(t, err)
	clinicErr, ok := err.(*types.ClinicError)
	require.True(t, ok)
	assert.Equal(t, "PATIENT_ID_REQUIRED", clinicErr.Code)
	repo.AssertNotCalled(t, "UpsertProfile", mock.Anything)
}

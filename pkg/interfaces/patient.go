package interfaces

import "github.com/hine2110/dental-clinic-client-sub000/pkg/types"

// PatientService manages patient profiles and the completion gate
type PatientService interface {
	// GetProfileStatus runs the completion gate for a patient. Errors
	// during checking resolve to incomplete, never to complete.
	GetProfileStatus(patientID string) (types.ProfileStatus, []string, error)

	GetProfile(patientID string) (*types.PatientProfile, error)

	// UpdateProfile persists the profile and publishes a profile.updated
	// event to the broker
	UpdateProfile(profile *types.PatientProfile, userID string) (*types.PatientProfile, error)

	Start(addr string) error
	Stop() error
}

// PatientRepository persists patient profiles
type PatientRepository interface {
	GetProfileByPatientID(patientID string) (*types.PatientProfile, error)
	UpsertProfile(profile *types.PatientProfile) error
}

// ProfileEventPublisher publishes profile change events
type ProfileEventPublisher interface {
	PublishProfileUpdated(event *types.ProfileUpdatedEvent) error
	Close() error
}

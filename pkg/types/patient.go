package types

import "time"

// ProfileStatus is the profile completion gate state for a patient session
type ProfileStatus string

const (
	ProfileUnknown    ProfileStatus = "unknown"
	ProfileChecking   ProfileStatus = "checking"
	ProfileComplete   ProfileStatus = "complete"
	ProfileIncomplete ProfileStatus = "incomplete"
)

// PatientProfile holds the demographic profile a patient must complete
// before full use of the booking flows.
type PatientProfile struct {
	PatientID        string     `json:"patient_id" db:"patient_id"`
	FullName         string     `json:"full_name" db:"full_name"`
	DateOfBirth      *time.Time `json:"date_of_birth" db:"date_of_birth"`
	Phone            string     `json:"phone" db:"phone"`
	Address          string     `json:"address" db:"address"`
	EmergencyContact string     `json:"emergency_contact" db:"emergency_contact"`
	Allergies        string     `json:"allergies" db:"allergies"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
}

// MissingProfileFields lists the required profile fields that are empty.
// Full name, date of birth, phone, and address are required; emergency
// contact and allergies are optional.
func (p *PatientProfile) MissingProfileFields() []string {
	var missing []string
	if p.FullName == "" {
		missing = append(missing, "full_name")
	}
	if p.DateOfBirth == nil {
		missing = append(missing, "date_of_birth")
	}
	if p.Phone == "" {
		missing = append(missing, "phone")
	}
	if p.Address == "" {
		missing = append(missing, "address")
	}
	return missing
}

// IsComplete reports whether all required profile fields are present
func (p *PatientProfile) IsComplete() bool {
	return len(p.MissingProfileFields()) == 0
}

// ProfileUpdatedEvent is published to the broker whenever a patient
// profile changes, triggering a fresh completeness check in listening
// sessions without a page reload.
type ProfileUpdatedEvent struct {
	PatientID string    `json:"patient_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

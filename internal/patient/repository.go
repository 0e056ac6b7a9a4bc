package patient

import (
	"database/sql"
	"fmt"

	"github.com/hine2110/dental-clinic-client-sub000/pkg/database"
	"github.com/hine2110/dental-clinic-client-sub000/pkg/interfaces"
	"github.com/hine2110/dental-clinic-client-sub000/pkg/logger"
	"github.com/hine2110/dental-clinic-client-sub000/pkg/types"
)

// Repository implements the PatientRepository interface using PostgreSQL
type Repository struct {
	db     *database.DB
	logger *logger.Logger
}

// NewRepository creates a new patient repository
func NewRepository(db *database.DB, log *logger.Logger) interfaces.PatientRepository {
	return &Repository{
		db:     db,
		logger: log,
	}
}

// GetProfileByPatientID retrieves a patient profile
func (r *Repository) GetProfileByPatientID(patientID string) (*types.PatientProfile, error) {
	query := `
		SELECT patient_id, full_name, date_of_birth, phone, address,
			emergency_contact, allergies, created_at, updated_at
		FROM patient_profiles WHERE patient_id = $1`

	profile := &types.PatientProfile{}
	var dateOfBirth sql.NullTime

	err := r.db.QueryRow(query, patientID).Scan(
		&profile.PatientID, &profile.FullName, &dateOfBirth, &profile.Phone,
		&profile.Address, &profile.EmergencyContact, &profile.Allergies,
		&profile.CreatedAt, &profile.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, types.NewNotFoundError("PROFILE_NOT_FOUND", "patient profile not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get patient profile: %w", err)
	}

	if dateOfBirth.Valid {
		profile.DateOfBirth = &dateOfBirth.Time
	}

	return profile, nil
}

// UpsertProfile inserts or updates a patient profile
func (r *Repository) UpsertProfile(profile *types.PatientProfile) error {
	query := `
		INSERT INTO patient_profiles
			(patient_id, full_name, date_of_birth, phone, address, emergency_contact, allergies, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), $8)
		ON CONFLICT (patient_id) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			date_of_birth = EXCLUDED.date_of_birth,
			phone = EXCLUDED.phone,
			address = EXCLUDED.address,
			emergency_contact = EXCLUDED.emergency_contact,
			allergies = EXCLUDED.allergies,
			updated_at = EXCLUDED.updated_at`

	_, err := r.db.Exec(query,
		profile.PatientID, profile.FullName, profile.DateOfBirth, profile.Phone,
		profile.Address, profile.EmergencyContact, profile.Allergies, profile.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert patient profile: %w", err)
	}

	return nil
}

package visit

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hine2110/dental-clinic-client-sub000/pkg/database"
	"github.com/hine2110/dental-clinic-client-sub000/pkg/interfaces"
	"github.com/hine2110/dental-clinic-client-sub000/pkg/logger"
	"github.com/hine2110/dental-clinic-client-sub000/pkg/types"
)

// Repository implements the VisitRepository interface using PostgreSQL
type Repository struct {
	db     *database.DB
	logger *logger.Logger
}

// NewRepository creates a new visit repository
func NewRepository(db *database.DB, log *logger.Logger) interfaces.VisitRepository {
	return &Repository{
		db:     db,
		logger: log,
	}
}

const appointmentColumns = `id, patient_id, doctor_id, location_id, start_time, end_time, status,
	chief_complaint, medical_history, oral_examination, occlusion, other_findings,
	test_service_ids, test_instructions, test_result_notes, result_image_urls, final_diagnosis,
	treatment_service_ids, treatment_notes, home_care_instructions,
	prescriptions, follow_up_date, follow_up_type, follow_up_instructions, warnings,
	created_at, updated_at`

// GetAppointmentByID retrieves an appointment by ID
func (r *Repository) GetAppointmentByID(id string) (*types.Appointment, error) {
	query := fmt.Sprintf(`SELECT %s FROM appointments WHERE id = $1`, appointmentColumns)

	row := r.db.QueryRow(query, id)
	apt, err := scanAppointment(row)
	if err == sql.ErrNoRows {
		return nil, types.NewNotFoundError("APPOINTMENT_NOT_FOUND", "appointment not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}

	return apt, nil
}

// GetAppointments retrieves appointments based on filters
func (r *Repository) GetAppointments(filters *types.AppointmentFilters) ([]*types.Appointment, error) {
	query := fmt.Sprintf(`SELECT %s FROM appointments WHERE 1=1`, appointmentColumns)
	args := []interface{}{}
	argCount := 0

	if filters.PatientID != "" {
		argCount++
		query += fmt.Sprintf(" AND patient_id = $%d", argCount)
		args = append(args, filters.PatientID)
	}

	if filters.DoctorID != "" {
		argCount++
		query += fmt.Sprintf(" AND doctor_id = $%d", argCount)
		args = append(args, filters.DoctorID)
	}

	if filters.Status != "" {
		argCount++
		query += fmt.Sprintf(" AND status = $%d", argCount)
		args = append(args, string(filters.Status))
	}

	if !filters.FromDate.IsZero() {
		argCount++
		query += fmt.Sprintf(" AND start_time >= $%d", argCount)
		args = append(args, filters.FromDate)
	}

	if !filters.ToDate.IsZero() {
		argCount++
		query += fmt.Sprintf(" AND start_time <= $%d", argCount)
		args = append(args, filters.ToDate)
	}

	query += " ORDER BY start_time ASC"

	if filters.Limit > 0 {
		argCount++
		query += fmt.Sprintf(" LIMIT $%d", argCount)
		args = append(args, filters.Limit)
	}

	if filters.Offset > 0 {
		argCount++
		query += fmt.Sprintf(" OFFSET $%d", argCount)
		args = append(args, filters.Offset)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query appointments: %w", err)
	}
	defer rows.Close()

	var appointments []*types.Appointment
	for rows.Next() {
		apt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}
		appointments = append(appointments, apt)
	}

	return appointments, rows.Err()
}

// SaveClinicalExam persists the stage 0 fields and the status in one update
func (r *Repository) SaveClinicalExam(id string, update *types.ClinicalExamUpdate, status types.AppointmentStatus) error {
	query := `
		UPDATE appointments
		SET chief_complaint = $1, medical_history = $2, oral_examination = $3,
			occlusion = $4, other_findings = $5, status = $6, updated_at = NOW()
		WHERE id = $7`

	return r.exec(query, "appointment", id,
		update.ChiefComplaint, update.MedicalHistory, update.OralExamination,
		update.Occlusion, update.OtherFindings, string(status), id)
}

// SaveTestSelection persists the stage 1 fields and the status in one update
func (r *Repository) SaveTestSelection(id string, update *types.TestSelectionUpdate, status types.AppointmentStatus) error {
	ids, err := json.Marshal(emptyIfNil(update.TestServiceIDs))
	if err != nil {
		return fmt.Errorf("failed to marshal test service ids: %w", err)
	}

	query := `
		UPDATE appointments
		SET test_service_ids = $1, test_instructions = $2, status = $3, updated_at = NOW()
		WHERE id = $4`

	return r.exec(query, "appointment", id, ids, update.TestInstructions, string(status), id)
}

// SaveDiagnosis persists the stage 2 narrative fields
func (r *Repository) SaveDiagnosis(id string, update *types.DiagnosisUpdate) error {
	query := `
		UPDATE appointments
		SET test_result_notes = $1, final_diagnosis = $2, updated_at = NOW()
		WHERE id = $3`

	return r.exec(query, "appointment", id, update.TestResultNotes, update.FinalDiagnosis, id)
}

// SaveResultImages rewrites the persisted result image URL list
func (r *Repository) SaveResultImages(id string, urls []string) error {
	encoded, err := json.Marshal(emptyIfNil(urls))
	if err != nil {
		return fmt.Errorf("failed to marshal result image urls: %w", err)
	}

	query := `UPDATE appointments SET result_image_urls = $1, updated_at = NOW() WHERE id = $2`
	return r.exec(query, "appointment", id, encoded, id)
}

// SaveTreatmentPlan persists the stage 3 fields and the status in one update
func (r *Repository) SaveTreatmentPlan(id string, update *types.TreatmentUpdate, status types.AppointmentStatus) error {
	ids, err := json.Marshal(emptyIfNil(update.TreatmentServiceIDs))
	if err != nil {
		return fmt.Errorf("failed to marshal treatment service ids: %w", err)
	}

	query := `
		UPDATE appointments
		SET treatment_service_ids = $1, treatment_notes = $2, home_care_instructions = $3,
			status = $4, updated_at = NOW()
		WHERE id = $5`

	return r.exec(query, "appointment", id,
		ids, update.TreatmentNotes, update.HomeCareInstructions, string(status), id)
}

// SaveCompletion persists the stage 4 fields and the terminal status
func (r *Repository) SaveCompletion(id string, update *types.CompletionUpdate, status types.AppointmentStatus) error {
	prescriptions := update.Prescriptions
	if prescriptions == nil {
		prescriptions = []types.PrescriptionItem{}
	}
	encoded, err := json.Marshal(prescriptions)
	if err != nil {
		return fmt.Errorf("failed to marshal prescriptions: %w", err)
	}

	query := `
		UPDATE appointments
		SET prescriptions = $1, follow_up_date = $2, follow_up_type = $3,
			follow_up_instructions = $4, warnings = $5, status = $6, updated_at = NOW()
		WHERE id = $7`

	return r.exec(query, "appointment", id,
		encoded, update.FollowUpDate, string(update.FollowUpType),
		update.FollowUpInstructions, update.Warnings, string(status), id)
}

// UpdateStatus updates only the appointment status
func (r *Repository) UpdateStatus(id string, status types.AppointmentStatus) error {
	query := `UPDATE appointments SET status = $1, updated_at = NOW() WHERE id = $2`
	return r.exec(query, "appointment", id, string(status), id)
}

// exec runs an update and maps a zero-row result to not found
func (r *Repository) exec(query, resource, id string, args ...interface{}) error {
	result, err := r.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", resource, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if affected == 0 {
		return types.NewNotFoundError("APPOINTMENT_NOT_FOUND", fmt.Sprintf("%s %s not found", resource, id))
	}

	return nil
}

// rowScanner lets scanAppointment work over both QueryRow and Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAppointment(row rowScanner) (*types.Appointment, error) {
	apt := &types.Appointment{}
	var (
		locationID          sql.NullString
		testServiceIDs      []byte
		resultImageURLs     []byte
		treatmentServiceIDs []byte
		prescriptions       []byte
		followUpDate        sql.NullTime
		followUpType        string
	)

	err := row.Scan(
		&apt.ID, &apt.PatientID, &apt.DoctorID, &locationID,
		&apt.StartTime, &apt.EndTime, &apt.Status,
		&apt.ChiefComplaint, &apt.MedicalHistory, &apt.OralExamination,
		&apt.Occlusion, &apt.OtherFindings,
		&testServiceIDs, &apt.TestInstructions, &apt.TestResultNotes,
		&resultImageURLs, &apt.FinalDiagnosis,
		&treatmentServiceIDs, &apt.TreatmentNotes, &apt.HomeCareInstructions,
		&prescriptions, &followUpDate, &followUpType, &apt.FollowUpInstructions, &apt.Warnings,
		&apt.CreatedAt, &apt.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if locationID.Valid {
		apt.LocationID = locationID.String
	}
	if followUpDate.Valid {
		apt.FollowUpDate = &followUpDate.Time
	}
	apt.FollowUpType = types.FollowUpType(followUpType)

	if err := json.Unmarshal(testServiceIDs, &apt.TestServiceIDs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal test service ids: %w", err)
	}
	if err := json.Unmarshal(resultImageURLs, &apt.ResultImageURLs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result image urls: %w", err)
	}
	if err := json.Unmarshal(treatmentServiceIDs, &apt.TreatmentServiceIDs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal treatment service ids: %w", err)
	}
	if err := json.Unmarshal(prescriptions, &apt.Prescriptions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal prescriptions: %w", err)
	}

	return apt, nil
}

func emptyIfNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

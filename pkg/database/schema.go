package database

import (
	"context"
	"fmt"
)

// CreateSchema creates the database schema for the clinic services
func (db *DB) CreateSchema(ctx context.Context) error {
	db.logger.Info("Creating database schema...")

	// Create extension for UUID generation
	if err := db.createExtensions(ctx); err != nil {
		return fmt.Errorf("failed to create extensions: %w", err)
	}

	// Create tables
	tables := []string{
		createUsersTable,
		createPatientProfilesTable,
		createAppointmentsTable,
		createCatalogServicesTable,
		createInvoicesTable,
		createInvoiceItemsTable,
		createDiscountCodesTable,
	}

	for _, table := range tables {
		if _, err := db.ExecContext(ctx, table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	// Create indexes
	indexes := []string{
		createAppointmentsIndexes,
		createInvoicesIndexes,
		createInvoiceItemsIndexes,
		createCatalogServicesIndexes,
	}

	for _, index := range indexes {
		if _, err := db.ExecContext(ctx, index); err != nil {
			return fmt.Errorf("failed to create indexes: %w", err)
		}
	}

	db.logger.Info("Database schema created successfully")
	return nil
}

// createExtensions creates required PostgreSQL extensions
func (db *DB) createExtensions(ctx context.Context) error {
	extensions := []string{
		`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	}

	for _, ext := range extensions {
		if _, err := db.ExecContext(ctx, ext); err != nil {
			return fmt.Errorf("failed to create extension: %w", err)
		}
	}

	return nil
}

// SQL DDL statements for table creation
const (
	createUsersTable = `
		CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			username VARCHAR(50) UNIQUE NOT NULL,
			email VARCHAR(255) UNIQUE NOT NULL,
			role VARCHAR(20) NOT NULL,
			is_active BOOLEAN DEFAULT TRUE,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);`

	createPatientProfilesTable = `
		CREATE TABLE IF NOT EXISTS patient_profiles (
			patient_id UUID PRIMARY KEY REFERENCES users(id),
			full_name VARCHAR(200) NOT NULL DEFAULT '',
			date_of_birth DATE,
			phone VARCHAR(20) NOT NULL DEFAULT '',
			address TEXT NOT NULL DEFAULT '',
			emergency_contact VARCHAR(200) NOT NULL DEFAULT '',
			allergies TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);`

	createAppointmentsTable = `
		CREATE TABLE IF NOT EXISTS appointments (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			patient_id UUID NOT NULL,
			doctor_id UUID NOT NULL,
			location_id UUID,
			start_time TIMESTAMP WITH TIME ZONE NOT NULL,
			end_time TIMESTAMP WITH TIME ZONE NOT NULL,
			status VARCHAR(30) NOT NULL DEFAULT 'pending',
			chief_complaint TEXT NOT NULL DEFAULT '',
			medical_history TEXT NOT NULL DEFAULT '',
			oral_examination TEXT NOT NULL DEFAULT '',
			occlusion TEXT NOT NULL DEFAULT '',
			other_findings TEXT NOT NULL DEFAULT '',
			test_service_ids JSONB NOT NULL DEFAULT '[]',
			test_instructions TEXT NOT NULL DEFAULT '',
			test_result_notes TEXT NOT NULL DEFAULT '',
			result_image_urls JSONB NOT NULL DEFAULT '[]',
			final_diagnosis TEXT NOT NULL DEFAULT '',
			treatment_service_ids JSONB NOT NULL DEFAULT '[]',
			treatment_notes TEXT NOT NULL DEFAULT '',
			home_care_instructions TEXT NOT NULL DEFAULT '',
			prescriptions JSONB NOT NULL DEFAULT '[]',
			follow_up_date TIMESTAMP WITH TIME ZONE,
			follow_up_type VARCHAR(40) NOT NULL DEFAULT '',
			follow_up_instructions TEXT NOT NULL DEFAULT '',
			warnings TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);`

	createCatalogServicesTable = `
		CREATE TABLE IF NOT EXISTS catalog_services (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			name VARCHAR(255) NOT NULL,
			category VARCHAR(50) NOT NULL DEFAULT 'treatment',
			price BIGINT NOT NULL,
			is_active BOOLEAN DEFAULT TRUE,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);`

	createInvoicesTable = `
		CREATE TABLE IF NOT EXISTS invoices (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			appointment_id UUID NOT NULL,
			total BIGINT NOT NULL DEFAULT 0,
			status VARCHAR(20) NOT NULL DEFAULT 'draft',
			payment_method VARCHAR(20),
			discount_code VARCHAR(50),
			discount_amount BIGINT NOT NULL DEFAULT 0,
			final_total BIGINT NOT NULL DEFAULT 0,
			amount_given BIGINT NOT NULL DEFAULT 0,
			change BIGINT NOT NULL DEFAULT 0,
			paid_at TIMESTAMP WITH TIME ZONE,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);`

	createInvoiceItemsTable = `
		CREATE TABLE IF NOT EXISTS invoice_items (
			invoice_id UUID NOT NULL REFERENCES invoices(id),
			service_id UUID NOT NULL,
			name VARCHAR(255) NOT NULL,
			unit_price BIGINT NOT NULL,
			quantity INTEGER NOT NULL,
			position INTEGER NOT NULL,
			PRIMARY KEY (invoice_id, service_id)
		);`

	createDiscountCodesTable = `
		CREATE TABLE IF NOT EXISTS discount_codes (
			code VARCHAR(50) PRIMARY KEY,
			kind VARCHAR(10) NOT NULL,
			value BIGINT NOT NULL,
			min_total BIGINT NOT NULL DEFAULT 0,
			is_active BOOLEAN DEFAULT TRUE,
			expires_at TIMESTAMP WITH TIME ZONE,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);`
)

// SQL DDL statements for index creation
const (
	createAppointmentsIndexes = `
		CREATE INDEX IF NOT EXISTS idx_appointments_patient_id ON appointments(patient_id);
		CREATE INDEX IF NOT EXISTS idx_appointments_doctor_id ON appointments(doctor_id);
		CREATE INDEX IF NOT EXISTS idx_appointments_status ON appointments(status);
		CREATE INDEX IF NOT EXISTS idx_appointments_start_time ON appointments(start_time);`

	createInvoicesIndexes = `
		CREATE INDEX IF NOT EXISTS idx_invoices_appointment_id ON invoices(appointment_id);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_invoices_draft_per_appointment
			ON invoices(appointment_id) WHERE status = 'draft';
		CREATE INDEX IF NOT EXISTS idx_invoices_status ON invoices(status);`

	createInvoiceItemsIndexes = `
		CREATE INDEX IF NOT EXISTS idx_invoice_items_invoice_id ON invoice_items(invoice_id);`

	createCatalogServicesIndexes = `
		CREATE INDEX IF NOT EXISTS idx_catalog_services_category ON catalog_services(category);
		CREATE INDEX IF NOT EXISTS idx_catalog_services_is_active ON catalog_services(is_active);`
)

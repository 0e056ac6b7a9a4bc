package billing

import (
	"database/sql"
	"fmt"

	"github.com/hine2110/dental-clinic-client-sub000/pkg/database"
	"github.com/hine2110/dental-clinic-client-sub000/pkg/interfaces"
	"github.com/hine2110/dental-clinic-client-sub000/pkg/logger"
	"github.com/hine2110/dental-clinic-client-sub000/pkg/types"
	"github.com/lib/pq"
)

// Repository implements the BillingRepository interface using PostgreSQL.
// The one-draft-per-appointment invariant is enforced by a partial unique
// index on invoices(appointment_id) where status = 'draft'.
type Repository struct {
	db     *database.DB
	logger *logger.Logger
}

// NewRepository creates a new billing repository
func NewRepository(db *database.DB, log *logger.Logger) interfaces.BillingRepository {
	return &Repository{
		db:     db,
		logger: log,
	}
}

const invoiceColumns = `id, appointment_id, total, status, payment_method, discount_code,
	discount_amount, final_total, amount_given, change, paid_at, created_at, updated_at`

// GetDraftByAppointment returns the open draft invoice for an appointment
func (r *Repository) GetDraftByAppointment(appointmentID string) (*types.Invoice, error) {
	query := fmt.Sprintf(`SELECT %s FROM invoices WHERE appointment_id = $1 AND status = 'draft'`, invoiceColumns)

	invoice, err := scanInvoice(r.db.QueryRow(query, appointmentID))
	if err == sql.ErrNoRows {
		return nil, types.NewNotFoundError("INVOICE_NOT_FOUND", "no draft invoice for appointment")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get draft invoice: %w", err)
	}

	if err := r.loadItems(invoice); err != nil {
		return nil, err
	}

	return invoice, nil
}

// CreateDraft inserts a new draft invoice. Losing the unique-index race
// surfaces as a conflict so the caller can fall back to the winner's row.
func (r *Repository) CreateDraft(invoice *types.Invoice) error {
	query := `
		INSERT INTO invoices (id, appointment_id, total, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.Exec(query,
		invoice.ID, invoice.AppointmentID, invoice.Total, string(invoice.Status),
		invoice.CreatedAt, invoice.UpdatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return types.NewConflictError("DRAFT_EXISTS", "a draft invoice already exists for this appointment")
		}
		return fmt.Errorf("failed to create draft invoice: %w", err)
	}

	return nil
}

// GetInvoiceByID retrieves an invoice with its items
func (r *Repository) GetInvoiceByID(id string) (*types.Invoice, error) {
	query := fmt.Sprintf(`SELECT %s FROM invoices WHERE id = $1`, invoiceColumns)

	invoice, err := scanInvoice(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, types.NewNotFoundError("INVOICE_NOT_FOUND", "invoice not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}

	if err := r.loadItems(invoice); err != nil {
		return nil, err
	}

	return invoice, nil
}

// ReplaceItems rewrites the item list, stores the recomputed total, and
// clears any attached discount in one transaction.
func (r *Repository) ReplaceItems(invoiceID string, items []types.InvoiceItem, total int64) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM invoice_items WHERE invoice_id = $1`, invoiceID); err != nil {
		return fmt.Errorf("failed to clear invoice items: %w", err)
	}

	for position, item := range items {
		_, err := tx.Exec(`
			INSERT INTO invoice_items (invoice_id, service_id, name, unit_price, quantity, position)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			invoiceID, item.ServiceID, item.Name, item.UnitPrice, item.Quantity, position)
		if err != nil {
			return fmt.Errorf("failed to insert invoice item: %w", err)
		}
	}

	result, err := tx.Exec(`
		UPDATE invoices
		SET total = $1, discount_code = NULL, discount_amount = 0, updated_at = NOW()
		WHERE id = $2 AND status = 'draft'`,
		total, invoiceID)
	if err != nil {
		return fmt.Errorf("failed to update invoice total: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if affected == 0 {
		return types.NewNotFoundError("INVOICE_NOT_FOUND", "draft invoice not found")
	}

	return tx.Commit()
}

// SetDiscount attaches a discount to the draft
func (r *Repository) SetDiscount(invoiceID, code string, amount int64) error {
	query := `
		UPDATE invoices
		SET discount_code = $1, discount_amount = $2, updated_at = NOW()
		WHERE id = $3 AND status = 'draft'`

	return r.execDraft(query, code, amount, invoiceID)
}

// ClearDiscount detaches any discount from the draft
func (r *Repository) ClearDiscount(invoiceID string) error {
	query := `
		UPDATE invoices
		SET discount_code = NULL, discount_amount = 0, updated_at = NOW()
		WHERE id = $1 AND status = 'draft'`

	return r.execDraft(query, invoiceID)
}

// FinalizeInvoice writes the finalization fields and closes the draft.
// The status guard in the WHERE clause makes double finalization a
// conflict rather than a silent overwrite.
func (r *Repository) FinalizeInvoice(invoice *types.Invoice) error {
	query := `
		UPDATE invoices
		SET status = $1, payment_method = $2, discount_code = $3, discount_amount = $4,
			final_total = $5, amount_given = $6, change = $7, paid_at = $8, updated_at = NOW()
		WHERE id = $9 AND status = 'draft'`

	var code interface{}
	if invoice.DiscountCode != "" {
		code = invoice.DiscountCode
	}

	result, err := r.db.Exec(query,
		string(invoice.Status), string(invoice.PaymentMethod), code, invoice.DiscountAmount,
		invoice.FinalTotal, invoice.AmountGiven, invoice.Change, invoice.PaidAt, invoice.ID)
	if err != nil {
		return fmt.Errorf("failed to finalize invoice: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if affected == 0 {
		return types.NewConflictError("INVOICE_FINALIZED", "invoice is not an open draft")
	}

	return nil
}

// ListDrafts returns all open draft invoices, oldest first
func (r *Repository) ListDrafts() ([]*types.Invoice, error) {
	query := fmt.Sprintf(`SELECT %s FROM invoices WHERE status = 'draft' ORDER BY created_at ASC`, invoiceColumns)

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list draft invoices: %w", err)
	}
	defer rows.Close()

	var invoices []*types.Invoice
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, invoice)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, invoice := range invoices {
		if err := r.loadItems(invoice); err != nil {
			return nil, err
		}
	}

	return invoices, nil
}

// GetDiscountCode retrieves a discount code definition
func (r *Repository) GetDiscountCode(code string) (*types.DiscountCode, error) {
	query := `
		SELECT code, kind, value, min_total, is_active, expires_at, created_at
		FROM discount_codes WHERE code = $1`

	dc := &types.DiscountCode{}
	var expiresAt sql.NullTime

	err := r.db.QueryRow(query, code).Scan(
		&dc.Code, &dc.Kind, &dc.Value, &dc.MinTotal, &dc.IsActive, &expiresAt, &dc.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, types.NewNotFoundError("DISCOUNT_NOT_FOUND", "discount code not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get discount code: %w", err)
	}

	if expiresAt.Valid {
		dc.ExpiresAt = &expiresAt.Time
	}

	return dc, nil
}

// CreateDiscountCode inserts a discount code definition
func (r *Repository) CreateDiscountCode(code *types.DiscountCode) error {
	query := `
		INSERT INTO discount_codes (code, kind, value, min_total, is_active, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(query,
		code.Code, string(code.Kind), code.Value, code.MinTotal, code.IsActive,
		code.ExpiresAt, code.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return types.NewConflictError("DISCOUNT_EXISTS", "discount code already exists")
		}
		return fmt.Errorf("failed to create discount code: %w", err)
	}

	return nil
}

// ListDiscountCodes returns all discount code definitions
func (r *Repository) ListDiscountCodes() ([]*types.DiscountCode, error) {
	query := `
		SELECT code, kind, value, min_total, is_active, expires_at, created_at
		FROM discount_codes ORDER BY created_at DESC`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list discount codes: %w", err)
	}
	defer rows.Close()

	var codes []*types.DiscountCode
	for rows.Next() {
		dc := &types.DiscountCode{}
		var expiresAt sql.NullTime
		if err := rows.Scan(&dc.Code, &dc.Kind, &dc.Value, &dc.MinTotal, &dc.IsActive, &expiresAt, &dc.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan discount code: %w", err)
		}
		if expiresAt.Valid {
			dc.ExpiresAt = &expiresAt.Time
		}
		codes = append(codes, dc)
	}

	return codes, rows.Err()
}

// DeactivateDiscountCode disables a discount code
func (r *Repository) DeactivateDiscountCode(code string) error {
	result, err := r.db.Exec(`UPDATE discount_codes SET is_active = FALSE WHERE code = $1`, code)
	if err != nil {
		return fmt.Errorf("failed to deactivate discount code: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if affected == 0 {
		return types.NewNotFoundError("DISCOUNT_NOT_FOUND", "discount code not found")
	}

	return nil
}

// GetCatalogService retrieves a billable service from the catalog
func (r *Repository) GetCatalogService(id string) (*types.CatalogService, error) {
	query := `
		SELECT id, name, category, price, is_active, created_at, updated_at
		FROM catalog_services WHERE id = $1`

	svc := &types.CatalogService{}
	err := r.db.QueryRow(query, id).Scan(
		&svc.ID, &svc.Name, &svc.Category, &svc.Price, &svc.IsActive, &svc.CreatedAt, &svc.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, types.NewNotFoundError("SERVICE_NOT_FOUND", "catalog service not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get catalog service: %w", err)
	}

	return svc, nil
}

// loadItems fills the invoice's line items in stored order
func (r *Repository) loadItems(invoice *types.Invoice) error {
	query := `
		SELECT service_id, name, unit_price, quantity
		FROM invoice_items WHERE invoice_id = $1 ORDER BY position ASC`

	rows, err := r.db.Query(query, invoice.ID)
	if err != nil {
		return fmt.Errorf("failed to load invoice items: %w", err)
	}
	defer rows.Close()

	invoice.Items = []types.InvoiceItem{}
	for rows.Next() {
		var item types.InvoiceItem
		if err := rows.Scan(&item.ServiceID, &item.Name, &item.UnitPrice, &item.Quantity); err != nil {
			return fmt.Errorf("failed to scan invoice item: %w", err)
		}
		invoice.Items = append(invoice.Items, item)
	}

	return rows.Err()
}

// execDraft runs an update that must hit exactly one open draft
func (r *Repository) execDraft(query string, args ...interface{}) error {
	result, err := r.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update invoice: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if affected == 0 {
		return types.NewNotFoundError("INVOICE_NOT_FOUND", "draft invoice not found")
	}

	return nil
}

// rowScanner lets scanInvoice work over both QueryRow and Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInvoice(row rowScanner) (*types.Invoice, error) {
	invoice := &types.Invoice{}
	var (
		paymentMethod sql.NullString
		discountCode  sql.NullString
		paidAt        sql.NullTime
	)

	err := row.Scan(
		&invoice.ID, &invoice.AppointmentID, &invoice.Total, &invoice.Status,
		&paymentMethod, &discountCode, &invoice.DiscountAmount, &invoice.FinalTotal,
		&invoice.AmountGiven, &invoice.Change, &paidAt,
		&invoice.CreatedAt, &invoice.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if paymentMethod.Valid {
		invoice.PaymentMethod = types.PaymentMethod(paymentMethod.String)
	}
	if discountCode.Valid {
		invoice.DiscountCode = discountCode.String
	}
	if paidAt.Valid {
		invoice.PaidAt = &paidAt.Time
	}

	return invoice, nil
}

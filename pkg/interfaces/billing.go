package interfaces

import "github.com/hine2110/dental-clinic-client-sub000/pkg/types"

// BillingService manages draft invoices and payment finalization
type BillingService interface {
	// CreateDraft idempotently creates or fetches the draft invoice for
	// an appointment
	CreateDraft(appointmentID, userID string) (*types.Invoice, error)

	GetInvoice(invoiceID, userID string) (*types.Invoice, error)

	// ReplaceItems replaces the full item list; the stored total is
	// recomputed authoritatively and any applied discount is voided
	ReplaceItems(invoiceID string, items []types.ItemRef, userID string) (*types.Invoice, error)

	// AddItem and SetItemQuantity express the cart semantics on top of
	// ReplaceItems
	AddItem(invoiceID, serviceID, userID string) (*types.Invoice, error)
	SetItemQuantity(invoiceID, serviceID string, quantity int, userID string) (*types.Invoice, error)

	// ApplyDiscount validates the code against the caller's total
	// snapshot and attaches the computed discount to the draft
	ApplyDiscount(invoiceID string, req *types.ApplyDiscountRequest, userID string) (*types.AppliedDiscount, error)

	// RemoveDiscount detaches any applied discount from the draft
	RemoveDiscount(invoiceID, userID string) (*types.Invoice, error)

	// GenerateQR fetches the transfer-payment payload for the invoice
	GenerateQR(invoiceID, userID string) (*types.QRPayload, error)

	// Finalize settles the invoice; cash requires sufficient tender
	Finalize(invoiceID string, req *types.FinalizeRequest, userID string) (*types.Invoice, error)

	// ListPending returns open draft invoices for the payment queue
	ListPending(userID string) ([]*types.Invoice, error)

	// Discount code administration
	CreateDiscountCode(code *types.DiscountCode, userID string) (*types.DiscountCode, error)
	ListDiscountCodes(userID string) ([]*types.DiscountCode, error)
	DeactivateDiscountCode(code, userID string) error

	Start(addr string) error
	Stop() error
}

// BillingRepository persists invoices, items, and discount codes
type BillingRepository interface {
	GetDraftByAppointment(appointmentID string) (*types.Invoice, error)
	CreateDraft(invoice *types.Invoice) error
	GetInvoiceByID(id string) (*types.Invoice, error)

	// ReplaceItems rewrites the item list, stores the recomputed total,
	// and clears any attached discount in one transaction
	ReplaceItems(invoiceID string, items []types.InvoiceItem, total int64) error

	SetDiscount(invoiceID, code string, amount int64) error
	ClearDiscount(invoiceID string) error

	FinalizeInvoice(invoice *types.Invoice) error
	ListDrafts() ([]*types.Invoice, error)

	GetDiscountCode(code string) (*types.DiscountCode, error)
	CreateDiscountCode(code *types.DiscountCode) error
	ListDiscountCodes() ([]*types.DiscountCode, error)
	DeactivateDiscountCode(code string) error

	GetCatalogService(id string) (*types.CatalogService, error)
}

// QRProvider fetches transfer-payment QR payloads from the external
// payment service
type QRProvider interface {
	GenerateQR(amount int64, memo string) (*types.QRPayload, error)
}

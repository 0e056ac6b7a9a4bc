package types

import "time"

// InvoiceStatus represents the lifecycle of an invoice
type InvoiceStatus string

const (
	InvoiceDraft InvoiceStatus = "draft"
	InvoicePaid  InvoiceStatus = "paid"
)

// PaymentMethod enumerates the supported payment methods
type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "cash"
	PaymentTransfer PaymentMethod = "transfer"
)

// InvoiceItem is one line of a draft invoice. Unit price and name are
// captured at add time so later catalog edits do not change an open cart.
type InvoiceItem struct {
	ServiceID string `json:"service_id" db:"service_id"`
	Name      string `json:"name" db:"name"`
	UnitPrice int64  `json:"unit_price" db:"unit_price"`
	Quantity  int    `json:"quantity" db:"quantity"`
}

// LineTotal returns quantity times the captured unit price
func (i InvoiceItem) LineTotal() int64 {
	return i.UnitPrice * int64(i.Quantity)
}

// Invoice represents the billing cart for one appointment. Exactly one
// draft invoice exists per appointment at a time; once finalized it is
// immutable. All currency values are whole VND.
type Invoice struct {
	ID            string        `json:"id" db:"id"`
	AppointmentID string        `json:"appointment_id" db:"appointment_id"`
	Items         []InvoiceItem `json:"items"`
	Total         int64         `json:"total" db:"total"`
	Status        InvoiceStatus `json:"status" db:"status"`

	// Finalization fields, set once on payment
	PaymentMethod  PaymentMethod `json:"payment_method,omitempty" db:"payment_method"`
	DiscountCode   string        `json:"discount_code,omitempty" db:"discount_code"`
	DiscountAmount int64         `json:"discount_amount,omitempty" db:"discount_amount"`
	FinalTotal     int64         `json:"final_total,omitempty" db:"final_total"`
	AmountGiven    int64         `json:"amount_given,omitempty" db:"amount_given"`
	Change         int64         `json:"change,omitempty" db:"change"`
	PaidAt         *time.Time    `json:"paid_at,omitempty" db:"paid_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ItemRef is the wire form of a cart mutation: service id plus quantity.
// Every mutation round-trips the full list and the server recomputes the
// authoritative total.
type ItemRef struct {
	ServiceID string `json:"item_id"`
	Quantity  int    `json:"quantity"`
}

// AppliedDiscount is at most one discount attached at finalization time.
// It is invalidated whenever cart contents change after it was applied.
type AppliedDiscount struct {
	Code           string `json:"code"`
	DiscountAmount int64  `json:"discount_amount"`
}

// DiscountKind distinguishes percent and fixed-amount codes
type DiscountKind string

const (
	DiscountPercent DiscountKind = "percent"
	DiscountFixed   DiscountKind = "fixed"
)

// DiscountCode is a redeemable discount definition
type DiscountCode struct {
	Code      string       `json:"code" db:"code"`
	Kind      DiscountKind `json:"kind" db:"kind"`
	Value     int64        `json:"value" db:"value"`
	MinTotal  int64        `json:"min_total" db:"min_total"`
	IsActive  bool         `json:"is_active" db:"is_active"`
	ExpiresAt *time.Time   `json:"expires_at,omitempty" db:"expires_at"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
}

// AmountFor computes the discount amount for a given pre-discount total,
// capped so the payable amount never goes negative.
func (d *DiscountCode) AmountFor(total int64) int64 {
	var amount int64
	switch d.Kind {
	case DiscountPercent:
		amount = total * d.Value / 100
	case DiscountFixed:
		amount = d.Value
	}
	if amount > total {
		amount = total
	}
	if amount < 0 {
		amount = 0
	}
	return amount
}

// CatalogService is a billable service/item from the clinic catalog
type CatalogService struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Category  string    `json:"category" db:"category"`
	Price     int64     `json:"price" db:"price"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// QRPayload is the transfer-payment payload fetched from the payment
// provider: amount plus memo rendered as a scannable code.
type QRPayload struct {
	QRCodeURL string `json:"qr_code_url"`
	Memo      string `json:"memo"`
	Amount    int64  `json:"amount"`
}

// FinalizeRequest is the payment-finalization wire contract
type FinalizeRequest struct {
	PaymentMethod PaymentMethod `json:"payment_method"`
	AmountGiven   int64         `json:"amount_given"`
	DiscountCode  string        `json:"discount_code,omitempty"`
	OriginalTotal int64         `json:"original_total"`
	FinalTotal    int64         `json:"final_total"`
}

// ApplyDiscountRequest carries the code plus the caller's current
// pre-discount total snapshot.
type ApplyDiscountRequest struct {
	Code         string `json:"code"`
	CurrentTotal int64  `json:"current_total"`
}

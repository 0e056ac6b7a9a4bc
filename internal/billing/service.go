package billing

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/hine2110/dental-clinic-client-sub000/pkg/config"
	"github.com/hine2110/dental-clinic-client-sub000/pkg/database"
	"github.com/hine2110/dental-clinic-client-sub000/pkg/interfaces"
	"github.com/hine2110/dental-clinic-client-sub000/pkg/logger"
	"github.com/hine2110/dental-clinic-client-sub000/pkg/monitoring"
	"github.com/hine2110/dental-clinic-client-sub000/pkg/types"
)

// Service implements the BillingService interface. The server is
// authoritative for every total: clients send item references and the
// service recomputes from captured prices.
type Service struct {
	config     *config.Config
	logger     *logger.Logger
	repository interfaces.BillingRepository
	qr         interfaces.QRProvider
	db         *database.DB
	server     *http.Server
	metrics    *monitoring.MetricsCollector
	health     *monitoring.HealthManager
}

// New creates a new billing service
func New(cfg *config.Config, log *logger.Logger) interfaces.BillingService {
	db, err := database.NewConnection(&cfg.Database, log)
	if err != nil {
		log.WithError(err).Error("Failed to connect to database")
		panic(err)
	}

	if err := db.CreateSchema(context.Background()); err != nil {
		log.WithError(err).Error("Failed to create database schema")
		panic(err)
	}

	repository := NewRepository(db, log)
	qr := NewQRClient(&cfg.Billing, log)

	metrics := monitoring.NewMetricsCollector("billing-service")
	health := monitoring.NewHealthManager("billing-service", "1.0.0")
	health.RegisterChecker("database", monitoring.NewDatabaseHealthChecker(db.DB))

	return &Service{
		config:     cfg,
		logger:     log,
		repository: repository,
		qr:         qr,
		db:         db,
		metrics:    metrics,
		health:     health,
	}
}

// CreateDraft idempotently creates or fetches the draft invoice for an
// appointment. Exactly one draft exists per appointment; a concurrent
// create that loses the unique-index race falls back to the winner's row.
func (s *Service) CreateDraft(appointmentID, userID string) (*types.Invoice, error) {
	if appointmentID == "" {
		return nil, types.NewValidationError("APPOINTMENT_ID_REQUIRED", "appointment ID is required", nil)
	}

	existing, err := s.repository.GetDraftByAppointment(appointmentID)
	if err == nil {
		return existing, nil
	}
	if !isNotFound(err) {
		return nil, err
	}

	invoice := &types.Invoice{
		ID:            uuid.New().String(),
		AppointmentID: appointmentID,
		Items:         []types.InvoiceItem{},
		Status:        types.InvoiceDraft,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}

	if err := s.repository.CreateDraft(invoice); err != nil {
		if isConflict(err) {
			return s.repository.GetDraftByAppointment(appointmentID)
		}
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"invoice_id":     invoice.ID,
		"appointment_id": appointmentID,
		"user_id":        userID,
	}).Info("Draft invoice created")

	return invoice, nil
}

// GetInvoice retrieves an invoice by ID
func (s *Service) GetInvoice(invoiceID, userID string) (*types.Invoice, error) {
	return s.repository.GetInvoiceByID(invoiceID)
}

// ReplaceItems replaces the full item list and recomputes the stored total.
// Captured unit prices of existing lines are kept; new lines capture the
// catalog's current price and name. Any attached discount is voided because
// the total is changing.
func (s *Service) ReplaceItems(invoiceID string, items []types.ItemRef, userID string) (*types.Invoice, error) {
	invoice, err := s.repository.GetInvoiceByID(invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice.Status != types.InvoiceDraft {
		return nil, types.NewBusinessRuleError("INVOICE_FINALIZED", "finalized invoices are immutable", nil)
	}

	captured := make(map[string]types.InvoiceItem, len(invoice.Items))
	for _, item := range invoice.Items {
		captured[item.ServiceID] = item
	}

	lines := make([]types.InvoiceItem, 0, len(items))
	var total int64
	for _, ref := range mergeItemRefs(items) {
		if ref.Quantity <= 0 {
			continue
		}

		line, ok := captured[ref.ServiceID]
		if !ok {
			svc, err := s.repository.GetCatalogService(ref.ServiceID)
			if err != nil {
				return nil, err
			}
			if !svc.IsActive {
				return nil, types.NewBusinessRuleError("SERVICE_INACTIVE",
					fmt.Sprintf("service %s is no longer offered", svc.Name), nil)
			}
			line = types.InvoiceItem{
				ServiceID: svc.ID,
				Name:      svc.Name,
				UnitPrice: svc.Price,
			}
		}
		line.Quantity = ref.Quantity
		lines = append(lines, line)
		total += line.LineTotal()
	}

	if err := s.repository.ReplaceItems(invoiceID, lines, total); err != nil {
		return nil, err
	}

	return s.repository.GetInvoiceByID(invoiceID)
}

// AddItem increments the quantity of an existing line or appends a new line
// with quantity 1, then round-trips through ReplaceItems.
func (s *Service) AddItem(invoiceID, serviceID, userID string) (*types.Invoice, error) {
	invoice, err := s.repository.GetInvoiceByID(invoiceID)
	if err != nil {
		return nil, err
	}

	refs := make([]types.ItemRef, 0, len(invoice.Items)+1)
	found := false
	for _, item := range invoice.Items {
		ref := types.ItemRef{ServiceID: item.ServiceID, Quantity: item.Quantity}
		if item.ServiceID == serviceID {
			ref.Quantity++
			found = true
		}
		refs = append(refs, ref)
	}
	if !found {
		refs = append(refs, types.ItemRef{ServiceID: serviceID, Quantity: 1})
	}

	return s.ReplaceItems(invoiceID, refs, userID)
}

// SetItemQuantity overwrites a line's quantity; zero or negative removes
// the line entirely.
func (s *Service) SetItemQuantity(invoiceID, serviceID string, quantity int, userID string) (*types.Invoice, error) {
	invoice, err := s.repository.GetInvoiceByID(invoiceID)
	if err != nil {
		return nil, err
	}

	refs := make([]types.ItemRef, 0, len(invoice.Items))
	for _, item := range invoice.Items {
		ref := types.ItemRef{ServiceID: item.ServiceID, Quantity: item.Quantity}
		if item.ServiceID == serviceID {
			ref.Quantity = quantity
		}
		refs = append(refs, ref)
	}

	return s.ReplaceItems(invoiceID, refs, userID)
}

// ApplyDiscount validates the code against the caller's total snapshot and
// attaches the computed discount to the draft.
func (s *Service) ApplyDiscount(invoiceID string, req *types.ApplyDiscountRequest, userID string) (*types.AppliedDiscount, error) {
	if req.Code == "" {
		return nil, types.NewValidationError("DISCOUNT_CODE_REQUIRED", "discount code is required", nil)
	}

	invoice, err := s.repository.GetInvoiceByID(invoiceID)
	if err != nil {
		s.recordDiscount(false)
		return nil, err
	}
	if invoice.Status != types.InvoiceDraft {
		s.recordDiscount(false)
		return nil, types.NewBusinessRuleError("INVOICE_FINALIZED", "finalized invoices are immutable", nil)
	}

	// Stale-snapshot guard: the caller's pre-discount total must match the
	// stored one, otherwise the cart changed under them.
	if req.CurrentTotal != invoice.Total {
		s.recordDiscount(false)
		return nil, types.NewConflictError("STALE_TOTAL",
			"invoice total changed; reload the cart and re-apply the code")
	}

	code, err := s.repository.GetDiscountCode(strings.ToUpper(req.Code))
	if err != nil {
		s.recordDiscount(false)
		if isNotFound(err) {
			return nil, types.NewBusinessRuleError("INVALID_DISCOUNT_CODE", "discount code is not valid", nil)
		}
		return nil, err
	}

	if !code.IsActive {
		s.recordDiscount(false)
		return nil, types.NewBusinessRuleError("INVALID_DISCOUNT_CODE", "discount code is not valid", nil)
	}
	if code.ExpiresAt != nil && code.ExpiresAt.Before(time.Now()) {
		s.recordDiscount(false)
		return nil, types.NewBusinessRuleError("DISCOUNT_EXPIRED", "discount code has expired", nil)
	}
	if invoice.Total < code.MinTotal {
		s.recordDiscount(false)
		return nil, types.NewBusinessRuleError("DISCOUNT_MIN_TOTAL",
			fmt.Sprintf("invoice total is below the code's minimum of %d", code.MinTotal), nil)
	}

	amount := code.AmountFor(invoice.Total)
	if err := s.repository.SetDiscount(invoiceID, code.Code, amount); err != nil {
		s.recordDiscount(false)
		return nil, err
	}

	s.recordDiscount(true)
	s.logger.Audit(userID, "apply_discount", "invoice:"+invoiceID, true,
		map[string]interface{}{"code": code.Code, "amount": amount})

	return &types.AppliedDiscount{Code: code.Code, DiscountAmount: amount}, nil
}

// RemoveDiscount detaches any applied discount from the draft
func (s *Service) RemoveDiscount(invoiceID, userID string) (*types.Invoice, error) {
	invoice, err := s.repository.GetInvoiceByID(invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice.Status != types.InvoiceDraft {
		return nil, types.NewBusinessRuleError("INVOICE_FINALIZED", "finalized invoices are immutable", nil)
	}

	if err := s.repository.ClearDiscount(invoiceID); err != nil {
		return nil, err
	}

	return s.repository.GetInvoiceByID(invoiceID)
}

// GenerateQR fetches the transfer-payment payload for the invoice's
// payable amount from the external payment provider.
func (s *Service) GenerateQR(invoiceID, userID string) (*types.QRPayload, error) {
	invoice, err := s.repository.GetInvoiceByID(invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice.Status != types.InvoiceDraft {
		return nil, types.NewBusinessRuleError("INVOICE_FINALIZED", "finalized invoices are immutable", nil)
	}
	if len(invoice.Items) == 0 {
		return nil, types.NewBusinessRuleError("EMPTY_INVOICE", "cannot generate payment for an empty invoice", nil)
	}

	memo := fmt.Sprintf("Invoice %s", shortID(invoice.ID))
	return s.qr.GenerateQR(payableTotal(invoice), memo)
}

// Finalize settles the invoice. Cash requires sufficient tender and
// computes change; transfer is a manual staff confirmation. The finalized
// invoice is immutable.
func (s *Service) Finalize(invoiceID string, req *types.FinalizeRequest, userID string) (*types.Invoice, error) {
	invoice, err := s.repository.GetInvoiceByID(invoiceID)
	if err != nil {
		s.recordFinalize(req.PaymentMethod, false)
		return nil, err
	}
	if invoice.Status != types.InvoiceDraft {
		s.recordFinalize(req.PaymentMethod, false)
		return nil, types.NewBusinessRuleError("INVOICE_FINALIZED", "invoice is already finalized", nil)
	}
	if len(invoice.Items) == 0 {
		s.recordFinalize(req.PaymentMethod, false)
		return nil, types.NewBusinessRuleError("EMPTY_INVOICE", "cannot finalize an empty invoice", nil)
	}

	// The caller's totals snapshot must match the stored state; otherwise
	// the cart or discount changed after the payment screen loaded.
	final := payableTotal(invoice)
	if req.OriginalTotal != invoice.Total || req.FinalTotal != final {
		s.recordFinalize(req.PaymentMethod, false)
		return nil, types.NewConflictError("STALE_TOTAL",
			"invoice totals changed; reload the cart before finalizing")
	}

	switch req.PaymentMethod {
	case types.PaymentCash:
		if req.AmountGiven < final {
			s.recordFinalize(req.PaymentMethod, false)
			return nil, types.NewBusinessRuleError("INSUFFICIENT_AMOUNT",
				fmt.Sprintf("amount given %d is less than the payable total %d", req.AmountGiven, final),
				map[string]interface{}{"amount_given": req.AmountGiven, "final_total": final})
		}
		invoice.AmountGiven = req.AmountGiven
		invoice.Change = req.AmountGiven - final
	case types.PaymentTransfer:
		invoice.AmountGiven = final
		invoice.Change = 0
	default:
		s.recordFinalize(req.PaymentMethod, false)
		return nil, types.NewValidationError("INVALID_PAYMENT_METHOD",
			"payment method must be cash or transfer", nil)
	}

	now := time.Now()
	invoice.Status = types.InvoicePaid
	invoice.PaymentMethod = req.PaymentMethod
	invoice.FinalTotal = final
	invoice.PaidAt = &now

	if err := s.repository.FinalizeInvoice(invoice); err != nil {
		s.recordFinalize(req.PaymentMethod, false)
		return nil, err
	}

	s.recordFinalize(req.PaymentMethod, true)
	s.logger.Audit(userID, "finalize_invoice", "invoice:"+invoiceID, true,
		map[string]interface{}{"method": req.PaymentMethod, "final_total": final, "change": invoice.Change})

	return invoice, nil
}

// ListPending returns open draft invoices for the payment queue
func (s *Service) ListPending(userID string) ([]*types.Invoice, error) {
	return s.repository.ListDrafts()
}

// CreateDiscountCode registers a new discount code
func (s *Service) CreateDiscountCode(code *types.DiscountCode, userID string) (*types.DiscountCode, error) {
	if code.Code == "" {
		return nil, types.NewValidationError("DISCOUNT_CODE_REQUIRED", "discount code is required", nil)
	}
	if code.Kind != types.DiscountPercent && code.Kind != types.DiscountFixed {
		return nil, types.NewValidationError("INVALID_DISCOUNT_KIND", "kind must be percent or fixed", nil)
	}
	if code.Value <= 0 || (code.Kind == types.DiscountPercent && code.Value > 100) {
		return nil, types.NewValidationError("INVALID_DISCOUNT_VALUE", "discount value is out of range", nil)
	}

	code.Code = strings.ToUpper(code.Code)
	code.IsActive = true
	code.CreatedAt = time.Now()

	if err := s.repository.CreateDiscountCode(code); err != nil {
		return nil, err
	}

	s.logger.Audit(userID, "create_discount_code", "discount:"+code.Code, true, nil)
	return code, nil
}

// ListDiscountCodes returns all registered discount codes
func (s *Service) ListDiscountCodes(userID string) ([]*types.DiscountCode, error) {
	return s.repository.ListDiscountCodes()
}

// DeactivateDiscountCode disables a code without deleting its redemption
// history
func (s *Service) DeactivateDiscountCode(code, userID string) error {
	if err := s.repository.DeactivateDiscountCode(strings.ToUpper(code)); err != nil {
		return err
	}
	s.logger.Audit(userID, "deactivate_discount_code", "discount:"+code, true, nil)
	return nil
}

// Start starts the billing service HTTP server
func (s *Service) Start(addr string) error {
	router := mux.NewRouter()
	s.setupRoutes(router)

	s.server = &http.Server{
		Addr:    addr,
		Handler: router,
	}

	s.logger.WithField("addr", addr).Info("Starting Billing Service")
	return s.server.ListenAndServe()
}

// Stop stops the billing service
func (s *Service) Stop() error {
	if s.server != nil {
		s.logger.Info("Stopping Billing Service")
		return s.server.Close()
	}
	return nil
}

// mergeItemRefs collapses repeated service references into one ref per
// service, summing quantities, so the item list never carries two lines
// for the same catalog service.
func mergeItemRefs(items []types.ItemRef) []types.ItemRef {
	merged := make([]types.ItemRef, 0, len(items))
	index := make(map[string]int, len(items))
	for _, ref := range items {
		if i, ok := index[ref.ServiceID]; ok {
			merged[i].Quantity += ref.Quantity
			continue
		}
		index[ref.ServiceID] = len(merged)
		merged = append(merged, ref)
	}
	return merged
}

// payableTotal is max(0, total - discount)
func payableTotal(invoice *types.Invoice) int64 {
	final := invoice.Total - invoice.DiscountAmount
	if final < 0 {
		return 0
	}
	return final
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func isNotFound(err error) bool {
	clinicErr, ok := err.(*types.ClinicError)
	return ok && clinicErr.Type == types.ErrorTypeNotFound
}

func isConflict(err error) bool {
	clinicErr, ok := err.(*types.ClinicError)
	return ok && clinicErr.Type == types.ErrorTypeConflict
}

func (s *Service) recordDiscount(success bool) {
	if s.metrics != nil {
		s.metrics.RecordDiscountApplication(success)
	}
}

func (s *Service) recordFinalize(method types.PaymentMethod, success bool) {
	if s.metrics != nil {
		s.metrics.RecordFinalization(string(method), success)
	}
}

package billing

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/hine2110/dental-clinic-client-sub000/pkg/types"
)

// setupRoutes configures HTTP routes for the billing service
func (s *Service) setupRoutes(router *mux.Router) {
	router.Use(s.metrics.HTTPMiddleware)

	api := router.PathPrefix("/api/v1").Subrouter()

	// Draft invoice lifecycle
	api.HandleFunc("/invoices", s.createDraftHandler).Methods("POST")
	api.HandleFunc("/invoices", s.listPendingHandler).Methods("GET")
	api.HandleFunc("/invoices/{id}", s.getInvoiceHandler).Methods("GET")

	// Cart mutations
	api.HandleFunc("/invoices/{id}/items", s.replaceItemsHandler).Methods("PUT")
	api.HandleFunc("/invoices/{id}/items", s.addItemHandler).Methods("POST")
	api.HandleFunc("/invoices/{id}/items/{serviceId}", s.setItemQuantityHandler).Methods("PUT")

	// Discounts and payment
	api.HandleFunc("/invoices/{id}/apply-discount", s.applyDiscountHandler).Methods("POST")
	api.HandleFunc("/invoices/{id}/discount", s.removeDiscountHandler).Methods("DELETE")
	api.HandleFunc("/invoices/{id}/generate-qr", s.generateQRHandler).Methods("POST")
	api.HandleFunc("/invoices/{id}/finalize", s.finalizeHandler).Methods("POST")

	// Discount code administration
	api.HandleFunc("/discount-codes", s.createDiscountCodeHandler).Methods("POST")
	api.HandleFunc("/discount-codes", s.listDiscountCodesHandler).Methods("GET")
	api.HandleFunc("/discount-codes/{code}", s.deactivateDiscountCodeHandler).Methods("DELETE")

	// Monitoring
	router.HandleFunc("/health", s.health.HTTPHandler()).Methods("GET")
	router.Handle("/metrics", s.metrics.Handler()).Methods("GET")

	s.logger.Info("Billing service routes configured")
}

// createDraftHandler idempotently creates or fetches the draft for an
// appointment
func (s *Service) createDraftHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AppointmentID string `json:"appointment_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeErrorResponse(w, types.NewValidationError("INVALID_BODY", "invalid request body", nil))
		return
	}

	userID := getUserIDFromRequest(r)
	invoice, err := s.CreateDraft(body.AppointmentID, userID)
	if err != nil {
		s.writeErrorResponse(w, err)
		return
	}

	s.writeSuccessResponse(w, http.StatusOK, invoice)
}

// listPendingHandler returns the open drafts for the payment queue
func (s *Service) listPendingHandler(w http.ResponseWriter, r *http.Request) {
	userID := getUserIDFromRequest(r)

	invoices, err := s.ListPending(userID)
	if err != nil {
		s.writeErrorResponse(w, err)
		return
	}

	s.writeSuccessResponse(w, http.StatusOK, invoices)
}

// getInvoiceHandler retrieves one invoice
func (s *Service) getInvoiceHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID := getUserIDFromRequest(r)

	invoice, err := s.GetInvoice(vars["id"], userID)
	if err != nil {
		s.writeErrorResponse(w, err)
		return
	}

	s.writeSuccessResponse(w, http.StatusOK, invoice)
}

// replaceItemsHandler handles the full-list cart round trip
func (s *Service) replaceItemsHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var body struct {
		Items []types.ItemRef `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeErrorResponse(w, types.NewValidationError("INVALID_BODY", "invalid request body", nil))
		return
	}

	userID := getUserIDFromRequest(r)
	invoice, err := s.ReplaceItems(vars["id"], body.Items, userID)
	if err != nil {
		s.writeErrorResponse(w, err)
		return
	}

	s.writeSuccessResponse(w, http.StatusOK, invoice)
}

// addItemHandler adds one unit of a service to the cart
func (s *Service) addItemHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var body struct {
		ServiceID string `json:"service_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeErrorResponse(w, types.NewValidationError("INVALID_BODY", "invalid request body", nil))
		return
	}

	userID := getUserIDFromRequest(r)
	invoice, err := s.AddItem(vars["id"], body.ServiceID, userID)
	if err != nil {
		s.writeErrorResponse(w, err)
		return
	}

	s.writeSuccessResponse(w, http.StatusOK, invoice)
}

// setItemQuantityHandler overwrites or removes a line
func (s *Service) setItemQuantityHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var body struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeErrorResponse(w, types.NewValidationError("INVALID_BODY", "invalid request body", nil))
		return
	}

	userID := getUserIDFromRequest(r)
	invoice, err := s.SetItemQuantity(vars["id"], vars["serviceId"], body.Quantity, userID)
	if err != nil {
		s.writeErrorResponse(w, err)
		return
	}

	s.writeSuccessResponse(w, http.StatusOK, invoice)
}

// applyDiscountHandler validates and attaches a discount code
func (s *Service) applyDiscountHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req types.ApplyDiscountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, types.NewValidationError("INVALID_BODY", "invalid request body", nil))
		return
	}

	userID := getUserIDFromRequest(r)
	applied, err := s.ApplyDiscount(vars["id"], &req, userID)
	if err != nil {
		s.writeErrorResponse(w, err)
		return
	}

	s.writeSuccessResponse(w, http.StatusOK, applied)
}

// removeDiscountHandler detaches any applied discount
func (s *Service) removeDiscountHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID := getUserIDFromRequest(r)

	invoice, err := s.RemoveDiscount(vars["id"], userID)
	if err != nil {
		s.writeErrorResponse(w, err)
		return
	}

	s.writeSuccessResponse(w, http.StatusOK, invoice)
}

// generateQRHandler fetches the transfer-payment payload
func (s *Service) generateQRHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID := getUserIDFromRequest(r)

	payload, err := s.GenerateQR(vars["id"], userID)
	if err != nil {
		s.writeErrorResponse(w, err)
		return
	}

	s.writeSuccessResponse(w, http.StatusOK, payload)
}

// finalizeHandler settles the invoice
func (s *Service) finalizeHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req types.FinalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, types.NewValidationError("INVALID_BODY", "invalid request body", nil))
		return
	}

	userID := getUserIDFromRequest(r)
	invoice, err := s.Finalize(vars["id"], &req, userID)
	if err != nil {
		s.writeErrorResponse(w, err)
		return
	}

	s.writeSuccessResponse(w, http.StatusOK, invoice)
}

// createDiscountCodeHandler registers a discount code
func (s *Service) createDiscountCodeHandler(w http.ResponseWriter, r *http.Request) {
	var code types.DiscountCode
	if err := json.NewDecoder(r.Body).Decode(&code); err != nil {
		s.writeErrorResponse(w, types.NewValidationError("INVALID_BODY", "invalid request body", nil))
		return
	}

	userID := getUserIDFromRequest(r)
	created, err := s.CreateDiscountCode(&code, userID)
	if err != nil {
		s.writeErrorResponse(w, err)
		return
	}

	s.writeSuccessResponse(w, http.StatusCreated, created)
}

// listDiscountCodesHandler lists discount codes
func (s *Service) listDiscountCodesHandler(w http.ResponseWriter, r *http.Request) {
	userID := getUserIDFromRequest(r)

	codes, err := s.ListDiscountCodes(userID)
	if err != nil {
		s.writeErrorResponse(w, err)
		return
	}

	s.writeSuccessResponse(w, http.StatusOK, codes)
}

// deactivateDiscountCodeHandler disables a discount code
func (s *Service) deactivateDiscountCodeHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID := getUserIDFromRequest(r)

	if err := s.DeactivateDiscountCode(vars["code"], userID); err != nil {
		s.writeErrorResponse(w, err)
		return
	}

	s.writeSuccessResponse(w, http.StatusOK, map[string]string{"message": "Discount code deactivated"})
}

// Helper methods

// getUserIDFromRequest reads the user ID forwarded by the gateway
func getUserIDFromRequest(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

// writeSuccessResponse writes a success envelope
func (s *Service) writeSuccessResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := map[string]interface{}{
		"success": true,
		"data":    data,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.WithError(err).Error("Failed to encode JSON response")
	}
}

// writeErrorResponse maps the error to an HTTP status and writes the error
// envelope
func (s *Service) writeErrorResponse(w http.ResponseWriter, err error) {
	statusCode := http.StatusInternalServerError
	payload := map[string]interface{}{
		"type":    types.ErrorTypeInternal,
		"code":    "INTERNAL_ERROR",
		"message": "internal error",
	}

	var clinicErr *types.ClinicError
	if errors.As(err, &clinicErr) {
		statusCode = clinicErr.HTTPStatus()
		payload["type"] = clinicErr.Type
		payload["code"] = clinicErr.Code
		payload["message"] = clinicErr.Message
		if clinicErr.Details != nil {
			payload["details"] = clinicErr.Details
		}
	}

	s.logger.WithError(err).Warn("Request failed")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := map[string]interface{}{
		"success": false,
		"error":   payload,
	}

	if encodeErr := json.NewEncoder(w).Encode(response); encodeErr != nil {
		s.logger.WithError(encodeErr).Error("Failed to encode JSON response")
	}
}

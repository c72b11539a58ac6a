package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xavierca1/healing-ledger/internal/entity"
	"github.com/xavierca1/healing-ledger/internal/infra/http/middleware"
	"github.com/xavierca1/healing-ledger/internal/usecase"
)

type StripeWebhookHandler struct {
	Checkout  *usecase.CheckoutService
	Secret    string
	Tolerance time.Duration
	Logger    *zap.Logger
	now       func() time.Time
}

func NewStripeWebhookHandler(checkout *usecase.CheckoutService, secret string, tolerance time.Duration, logger *zap.Logger) *StripeWebhookHandler {
	return &StripeWebhookHandler{
		Checkout:  checkout,
		Secret:    secret,
		Tolerance: tolerance,
		Logger:    orNop(logger),
		now:       time.Now,
	}
}

type stripeEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type checkoutSession struct {
	ID              string            `json:"id"`
	PaymentStatus   string            `json:"payment_status"`
	AmountTotal     int64             `json:"amount_total"`
	Currency        string            `json:"currency"`
	PaymentIntent   string            `json:"payment_intent"`
	Customer        string            `json:"customer"`
	CustomerEmail   string            `json:"customer_email"`
	Metadata        map[string]string `json:"metadata"`
	CustomerDetails struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"customer_details"`
}

// paid reports whether the session needs no further payment confirmation.
// Delayed methods complete the session as "unpaid" and settle through async events.
func (s checkoutSession) paid() bool {
	return s.PaymentStatus == "" || s.PaymentStatus == "paid" || s.PaymentStatus == "no_payment_required"
}

func (s checkoutSession) paymentRef() string {
	if s.PaymentIntent != "" {
		return s.PaymentIntent
	}
	return s.ID
}

type stripeCharge struct {
	PaymentIntent  string `json:"payment_intent"`
	Amount         int64  `json:"amount"`
	AmountRefunded int64  `json:"amount_refunded"`
	Refunded       bool   `json:"refunded"`
}

func (h *StripeWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	payload, ok := readWebhookBody(w, r)
	if !ok {
		return
	}

	if h.Secret != "" {
		if err := verifyStripeSignature(payload, r.Header.Get("Stripe-Signature"), h.Secret, h.Tolerance, h.now()); err != nil {
			h.Logger.Warn("rejected stripe webhook", zap.Error(err))
			writeErrorResponse(w, http.StatusBadRequest, "INVALID_SIGNATURE", err.Error())
			return
		}
	}

	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_JSON", "invalid JSON body")
		return
	}
	log := h.Logger.With(zap.String("event_id", event.ID), zap.String("event_type", event.Type))

	switch event.Type {
	case "checkout.session.completed":
		h.completeCheckout(w, r, log, event)
	case "checkout.session.async_payment_succeeded":
		h.settleCheckout(w, r, log, event, entity.PurchaseCompleted)
	case "checkout.session.async_payment_failed":
		h.settleCheckout(w, r, log, event, entity.PurchaseFailed)
	case "charge.refunded":
		h.refund(w, r, log, event)
	default:
		log.Debug("ignoring stripe event")
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
	}
}

func (h *StripeWebhookHandler) completeCheckout(w http.ResponseWriter, r *http.Request, log *zap.Logger, event stripeEvent) {
	var session checkoutSession
	if err := json.Unmarshal(event.Data.Object, &session); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_JSON", "invalid checkout session")
		return
	}

	email := session.CustomerDetails.Email
	if email == "" {
		email = session.CustomerEmail
	}
	status := entity.PurchaseCompleted
	if !session.paid() {
		status = entity.PurchasePending
	}

	res, err := h.Checkout.Complete(r.Context(), usecase.CheckoutInput{
		Email:            email,
		Name:             session.CustomerDetails.Name,
		StripeCustomerID: session.Customer,
		ProductID:        session.Metadata["product_id"],
		ProductSlug:      session.Metadata["product_slug"],
		Amount:           session.AmountTotal,
		Currency:         session.Currency,
		PaymentRef:       session.paymentRef(),
		Status:           status,
	})
	if err != nil {
		writeUsecaseError(w, log, err)
		return
	}

	middleware.RecordPurchase(string(status))
	log.Info("stripe checkout recorded", zap.String("purchase_id", res.Purchase.ID))
	writeJSON(w, http.StatusOK, map[string]any{"received": true, "purchase_id": res.Purchase.ID})
}

func (h *StripeWebhookHandler) settleCheckout(w http.ResponseWriter, r *http.Request, log *zap.Logger, event stripeEvent, status entity.PurchaseStatus) {
	var session checkoutSession
	if err := json.Unmarshal(event.Data.Object, &session); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_JSON", "invalid checkout session")
		return
	}

	results, err := h.Checkout.Settle(r.Context(), session.paymentRef(), status)
	if usecase.DomainCode(err) == usecase.CodeNotFound {
		log.Info("settlement for unknown payment ignored", zap.String("payment_ref", session.paymentRef()))
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}
	if err != nil {
		writeUsecaseError(w, log, err)
		return
	}

	ids := make([]string, 0, len(results))
	for _, res := range results {
		middleware.RecordPurchase(string(status))
		ids = append(ids, res.Purchase.ID)
	}
	log.Info("delayed payment settled", zap.Strings("purchase_ids", ids), zap.String("status", string(status)))
	writeJSON(w, http.StatusOK, map[string]any{"received": true, "purchase_ids": ids})
}

func (h *StripeWebhookHandler) refund(w http.ResponseWriter, r *http.Request, log *zap.Logger, event stripeEvent) {
	var charge stripeCharge
	if err := json.Unmarshal(event.Data.Object, &charge); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_JSON", "invalid charge")
		return
	}
	if !charge.Refunded {
		log.Info("partial refund left purchase unchanged",
			zap.String("payment_intent", charge.PaymentIntent),
			zap.Int64("amount", charge.Amount),
			zap.Int64("amount_refunded", charge.AmountRefunded),
		)
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	err := h.Checkout.Refund(r.Context(), charge.PaymentIntent)
	if usecase.DomainCode(err) == usecase.CodeNotFound {
		// Charges from other products share the account.
		log.Info("refund for unknown payment ignored", zap.String("payment_intent", charge.PaymentIntent))
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}
	if err != nil {
		writeUsecaseError(w, log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

// verifyStripeSignature checks a "t=<unix>,v1=<hex>" header against HMAC-SHA256 of
// "<t>.<payload>". Any v1 entry may match, which covers secret rotation.
func verifyStripeSignature(payload []byte, header, secret string, tolerance time.Duration, now time.Time) error {
	if header == "" {
		return errMissingSignature
	}

	var (
		timestamp  string
		signatures [][]byte
	)
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			timestamp = value
		case "v1":
			if sig, err := hex.DecodeString(value); err == nil {
				signatures = append(signatures, sig)
			}
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return errMissingSignature
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return errMissingSignature
	}
	if tolerance > 0 {
		age := now.Sub(time.Unix(ts, 0))
		if age > tolerance || age < -tolerance {
			return errStaleSignature
		}
	}

	expected := signStripePayload(payload, timestamp, secret)
	for _, sig := range signatures {
		if hmac.Equal(sig, expected) {
			return nil
		}
	}
	return errBadSignature
}

func signStripePayload(payload []byte, timestamp, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	return mac.Sum(nil)
}

package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/xavierca1/healing-ledger/internal/entity"
	"github.com/xavierca1/healing-ledger/internal/usecase"
)

type EmailHandler struct {
	Delivery  *usecase.EmailDelivery
	Secret    string
	Tolerance time.Duration
	Logger    *zap.Logger
	now       func() time.Time
}

func NewEmailHandler(delivery *usecase.EmailDelivery, secret string, logger *zap.Logger) *EmailHandler {
	return &EmailHandler{
		Delivery:  delivery,
		Secret:    secret,
		Tolerance: 5 * time.Minute,
		Logger:    orNop(logger),
		now:       time.Now,
	}
}

type providerEvent struct {
	Type string `json:"type"`
	Data struct {
		EmailID string `json:"email_id"`
	} `json:"data"`
}

// ProviderCallback applies delivery status callbacks from the mail provider.
func (h *EmailHandler) ProviderCallback(w http.ResponseWriter, r *http.Request) {
	payload, ok := readWebhookBody(w, r)
	if !ok {
		return
	}

	if h.Secret != "" {
		err := verifyProviderSignature(payload,
			r.Header.Get("svix-id"), r.Header.Get("svix-timestamp"), r.Header.Get("svix-signature"),
			h.Secret, h.Tolerance, h.now())
		if err != nil {
			h.Logger.Warn("rejected mail provider webhook", zap.Error(err))
			writeErrorResponse(w, http.StatusBadRequest, "INVALID_SIGNATURE", err.Error())
			return
		}
	}

	var event providerEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_JSON", "invalid JSON body")
		return
	}

	applied, err := h.Delivery.HandleProviderEvent(r.Context(), event.Type, event.Data.EmailID)
	if err != nil {
		writeUsecaseError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"applied": applied})
}

func (h *EmailHandler) List(w http.ResponseWriter, r *http.Request) {
	status := entity.EmailStatus(r.URL.Query().Get("status"))
	page, err := h.Delivery.List(r.Context(), status, queryInt(r, "page", 0), queryInt(r, "limit", 0))
	if err != nil {
		writeUsecaseError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

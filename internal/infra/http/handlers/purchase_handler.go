package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/xavierca1/healing-ledger/internal/entity"
	"github.com/xavierca1/healing-ledger/internal/infra/http/middleware"
	"github.com/xavierca1/healing-ledger/internal/usecase"
)

type PurchaseHandler struct {
	Ledger *usecase.PurchaseLedger
	Logger *zap.Logger
}

func NewPurchaseHandler(ledger *usecase.PurchaseLedger, logger *zap.Logger) *PurchaseHandler {
	return &PurchaseHandler{Ledger: ledger, Logger: orNop(logger)}
}

func (h *PurchaseHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.Ledger.List(r.Context(), queryInt(r, "page", 0), queryInt(r, "limit", 0))
	if err != nil {
		writeUsecaseError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *PurchaseHandler) ListByCustomer(w http.ResponseWriter, r *http.Request) {
	items, err := h.Ledger.ListByCustomer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeUsecaseError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// Record books a purchase by hand, e.g. for comps or offline sales.
func (h *PurchaseHandler) Record(w http.ResponseWriter, r *http.Request) {
	var input usecase.RecordPurchaseInput
	if !decodeJSON(w, r, &input) {
		return
	}

	detail, err := h.Ledger.Record(r.Context(), input)
	if err != nil {
		writeUsecaseError(w, h.Logger, err)
		return
	}
	middleware.RecordPurchase(string(detail.Status))
	writeJSON(w, http.StatusCreated, detail)
}

func (h *PurchaseHandler) MarkEmailSent(w http.ResponseWriter, r *http.Request) {
	if err := h.Ledger.MarkEmailSent(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeUsecaseError(w, h.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PurchaseHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Status entity.PurchaseStatus `json:"status"`
	}
	if !decodeJSON(w, r, &input) {
		return
	}

	if err := h.Ledger.SetStatus(r.Context(), chi.URLParam(r, "id"), input.Status); err != nil {
		writeUsecaseError(w, h.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PurchaseHandler) Revenue(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Ledger.RevenueStats(r.Context(), queryInt(r, "days", usecase.DefaultWindowDays))
	if err != nil {
		writeUsecaseError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

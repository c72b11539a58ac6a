package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/xavierca1/healing-ledger/internal/infra/http/middleware"
	"github.com/xavierca1/healing-ledger/internal/usecase"
)

type LeadHandler struct {
	Leads  *usecase.LeadCapture
	Logger *zap.Logger
}

func NewLeadHandler(leads *usecase.LeadCapture, logger *zap.Logger) *LeadHandler {
	return &LeadHandler{Leads: leads, Logger: orNop(logger)}
}

// Submit answers 201 for a new lead and 200 when an existing email was refreshed.
func (h *LeadHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var input usecase.SubmitLeadInput
	if !decodeJSON(w, r, &input) {
		return
	}

	res, err := h.Leads.CreateFromSubmission(r.Context(), input)
	if err != nil {
		middleware.RecordLeadCaptured(sourceLabel(input.Source), "rejected")
		writeUsecaseError(w, h.Logger, err)
		return
	}

	status, outcome := http.StatusOK, "updated"
	if res.Created {
		status, outcome = http.StatusCreated, "created"
	}
	middleware.RecordLeadCaptured(res.Lead.Source, outcome)
	writeJSON(w, status, res)
}

func (h *LeadHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.Leads.List(r.Context(), queryInt(r, "page", 0), queryInt(r, "limit", 0))
	if err != nil {
		writeUsecaseError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *LeadHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Leads.Stats(r.Context())
	if err != nil {
		writeUsecaseError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func sourceLabel(source string) string {
	if source == "" {
		return "quiz"
	}
	if len(source) > 32 {
		return "other"
	}
	return source
}

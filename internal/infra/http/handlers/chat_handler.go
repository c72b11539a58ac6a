package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/xavierca1/healing-ledger/internal/entity"
	"github.com/xavierca1/healing-ledger/internal/infra/http/middleware"
	"github.com/xavierca1/healing-ledger/internal/usecase"
)

type ChatHandler struct {
	Chat   *usecase.ChatLedger
	Logger *zap.Logger
}

func NewChatHandler(chat *usecase.ChatLedger, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{Chat: chat, Logger: orNop(logger)}
}

func (h *ChatHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": h.Chat.StartSession()})
}

type appendMessageRequest struct {
	Role    entity.ChatRole `json:"role"`
	Content string          `json:"content"`
}

// AppendMessage stores a message. User messages also count as activity for the
// session's captured lead.
func (h *ChatHandler) AppendMessage(w http.ResponseWriter, r *http.Request) {
	var req appendMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sessionID := chi.URLParam(r, "id")

	msg, err := h.Chat.AppendMessage(r.Context(), sessionID, req.Role, req.Content)
	if err != nil {
		writeUsecaseError(w, h.Logger, err)
		return
	}

	if msg.Role == entity.RoleUser {
		if err := h.Chat.RecordActivity(r.Context(), sessionID); err != nil {
			h.Logger.Warn("record chat activity", zap.String("session_id", sessionID), zap.Error(err))
		}
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.Chat.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeUsecaseError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (h *ChatHandler) CaptureLead(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.Chat.CaptureLead(r.Context(), req.Email, chi.URLParam(r, "id"))
	if err != nil {
		middleware.RecordAILeadCaptured("rejected")
		writeUsecaseError(w, h.Logger, err)
		return
	}

	status, outcome := http.StatusOK, "updated"
	if res.Created {
		status, outcome = http.StatusCreated, "created"
	}
	middleware.RecordAILeadCaptured(outcome)
	writeJSON(w, status, res)
}

func (h *ChatHandler) ListLeads(w http.ResponseWriter, r *http.Request) {
	page, err := h.Chat.ListLeads(r.Context(), queryInt(r, "page", 0), queryInt(r, "limit", 0))
	if err != nil {
		writeUsecaseError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *ChatHandler) LeadStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Chat.LeadStats(r.Context())
	if err != nil {
		writeUsecaseError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *ChatHandler) RecentLeads(w http.ResponseWriter, r *http.Request) {
	leads, err := h.Chat.RecentLeads(r.Context(), queryInt(r, "limit", usecase.DefaultRecentLimit))
	if err != nil {
		writeUsecaseError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, leads)
}

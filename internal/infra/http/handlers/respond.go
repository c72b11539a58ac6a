package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/xavierca1/healing-ledger/internal/usecase"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeErrorResponse(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

var domainStatus = map[string]int{
	usecase.CodeNotFound:           http.StatusNotFound,
	usecase.CodeConflict:           http.StatusConflict,
	usecase.CodePreconditionFailed: http.StatusPreconditionFailed,
	usecase.CodeValidation:         http.StatusBadRequest,
}

// writeUsecaseError maps the use case error taxonomy onto HTTP. Technical failures are
// logged and reported without internals.
func writeUsecaseError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var de *usecase.DomainError
	if errors.As(err, &de) {
		status, ok := domainStatus[de.Code]
		if !ok {
			status = http.StatusUnprocessableEntity
		}
		writeErrorResponse(w, status, de.Code, de.Message)
		return
	}

	code := usecase.CodeDatabase
	var te *usecase.TechnicalError
	if errors.As(err, &te) {
		code = te.Code
	}
	logger.Error("request failed", zap.String("code", code), zap.Error(err))
	writeErrorResponse(w, http.StatusInternalServerError, code, "internal error")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_JSON", "invalid JSON body")
		return false
	}
	return true
}

// queryInt returns def for a missing or malformed parameter.
func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return def
	}
	return v
}

func orNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

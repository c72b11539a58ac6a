package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/xavierca1/healing-ledger/internal/entity"
	"github.com/xavierca1/healing-ledger/internal/usecase"
)

type ProductHandler struct {
	Catalog *usecase.CatalogService
	Logger  *zap.Logger
}

func NewProductHandler(catalog *usecase.CatalogService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{Catalog: catalog, Logger: orNop(logger)}
}

func (h *ProductHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	products, err := h.Catalog.ListActive(r.Context())
	if err != nil {
		writeUsecaseError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	products, err := h.Catalog.ListAll(r.Context())
	if err != nil {
		writeUsecaseError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) GetBySlug(w http.ResponseWriter, r *http.Request) {
	p, err := h.Catalog.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeUsecaseError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input usecase.CreateProductInput
	if !decodeJSON(w, r, &input) {
		return
	}

	p, err := h.Catalog.Create(r.Context(), input)
	if err != nil {
		writeUsecaseError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch entity.ProductPatch
	if !decodeJSON(w, r, &patch) {
		return
	}

	p, err := h.Catalog.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeUsecaseError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Catalog.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeUsecaseError(w, h.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProductHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Catalog.StatsWithSales(r.Context())
	if err != nil {
		writeUsecaseError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

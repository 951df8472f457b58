package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/schema"

	"catsync/internal/catalog"
)

// listQuery is the query-string form of a product listing request.
type listQuery struct {
	Category    string `schema:"category"`
	ShowDeleted bool   `schema:"show_deleted"`
	Limit       int    `schema:"limit"`
}

func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	var q listQuery
	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)
	if err := decoder.Decode(&q, r.URL.Query()); err != nil {
		slog.Warn("List products: invalid query parameters", "error", err)
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "Invalid query parameters")
		return
	}

	products, err := h.catalog.List(r.Context(), catalog.Query{
		Category:    q.Category,
		ShowDeleted: q.ShowDeleted,
		Limit:       q.Limit,
	})
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	if products == nil {
		products = []*catalog.Product{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.Get(r.Context(), r.PathValue("sku"))
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var in catalog.ProductInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
		return
	}

	p, err := h.catalog.Create(r.Context(), in)
	if err != nil {
		if validationError(err) {
			writeError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
			return
		}
		writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var in catalog.UpdateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
		return
	}

	p, err := h.catalog.Update(r.Context(), r.PathValue("sku"), in)
	if err != nil {
		if validationError(err) {
			writeError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
			return
		}
		writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.Delete(r.Context(), r.PathValue("sku")); err != nil {
		writeCatalogError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRestoreProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.Restore(r.Context(), r.PathValue("sku"))
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) handleImportProducts(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Products []catalog.ProductInput `json:"products"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
		return
	}
	if len(body.Products) == 0 {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "No products to import")
		return
	}

	result, err := h.catalog.Import(r.Context(), body.Products)
	if err != nil {
		if validationError(err) {
			writeError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
			return
		}
		writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// validationError reports whether the error came from input validation
// rather than the store.
func validationError(err error) bool {
	return err != nil && !isStoreError(err)
}

func isStoreError(err error) bool {
	return errors.Is(err, catalog.ErrNotFound) ||
		errors.Is(err, catalog.ErrExists) ||
		errors.Is(err, catalog.ErrVersionConflict)
}

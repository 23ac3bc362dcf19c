package web

import (
	"net/http"
	"strconv"

	"storefront-ledger/internal/app"
	"storefront-ledger/internal/core"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// apiInventoryView handles GET /api/inventory/view.
func (h *Handler) apiInventoryView(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.InventoryView(r.Context())
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiRestock handles POST /api/inventory/stock.
func (h *Handler) apiRestock(w http.ResponseWriter, r *http.Request) {
	var req core.ItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	level, err := h.svc.Restock(r.Context(), app.RestockRequest{SKU: req.SKU, Quantity: req.Quantity, Actor: actorFromRequest(r)})
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeJSON(w, level)
}

// apiListProducts handles GET /api/inventory/products.
func (h *Handler) apiListProducts(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListProducts(r.Context())
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiCreateProduct handles POST /api/inventory/products.
func (h *Handler) apiCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SKU        string                 `json:"sku"`
		Type       core.ProductType       `json:"type"`
		Name       string                 `json:"name"`
		BasePrice  decimal.Decimal        `json:"base_price"`
		Attributes core.ProductAttributes `json:"attributes"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.svc.CreateProduct(r.Context(), core.ProductInput{
		SKU:        req.SKU,
		Type:       req.Type,
		Name:       req.Name,
		BasePrice:  req.BasePrice,
		Attributes: req.Attributes,
	})
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeCreated(w, p)
}

// apiDeactivateProduct handles DELETE /api/inventory/products/{sku}.
func (h *Handler) apiDeactivateProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeactivateProduct(r.Context(), chi.URLParam(r, "sku")); err != nil {
		h.serviceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// apiListBundles handles GET /api/inventory/bundles.
func (h *Handler) apiListBundles(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListBundles(r.Context())
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiCreateBundle handles POST /api/inventory/bundles.
func (h *Handler) apiCreateBundle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SKU         string             `json:"sku"`
		Name        string             `json:"name"`
		Description string             `json:"description"`
		Price       decimal.Decimal    `json:"price"`
		Items       []core.ItemRequest `json:"items"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	b, err := h.svc.CreateBundle(r.Context(), core.BundleInput{
		SKU:         req.SKU,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Items:       req.Items,
	})
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeCreated(w, b)
}

// apiListTransfers handles GET /api/inventory/transfers?storeId=&limit=.
func (h *Handler) apiListTransfers(w http.ResponseWriter, r *http.Request) {
	storeID, ok := queryID(w, r, "storeId")
	if !ok {
		return
	}
	filter := core.TransferFilter{StoreID: storeID}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, "invalid limit: "+raw, "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		filter.Limit = limit
	}

	result, err := h.svc.ListTransfers(r.Context(), filter)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiAuditStock handles GET /api/inventory/audit/{sku}.
func (h *Handler) apiAuditStock(w http.ResponseWriter, r *http.Request) {
	audit, err := h.svc.AuditStock(r.Context(), chi.URLParam(r, "sku"))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	type response struct {
		*core.StockAudit
		Balanced bool `json:"balanced"`
	}
	writeJSON(w, response{StockAudit: audit, Balanced: audit.Balanced()})
}

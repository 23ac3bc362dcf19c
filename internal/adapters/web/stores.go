package web

import (
	"net/http"
	"strconv"

	"storefront-ledger/internal/app"
	"storefront-ledger/internal/core"
)

// itemsRequest is the body of allocate and return calls.
type itemsRequest struct {
	Items []core.ItemRequest `json:"items"`
}

// apiListStores handles GET /api/stores.
func (h *Handler) apiListStores(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListStores(r.Context())
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiCreateStore handles POST /api/stores.
func (h *Handler) apiCreateStore(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Owner string `json:"owner"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	st, err := h.svc.CreateStore(r.Context(), app.CreateStoreRequest{Name: req.Name, OwnerUsername: req.Owner})
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeCreated(w, st)
}

// apiStoreInventory handles GET /api/stores/{id}/inventory?q=.
func (h *Handler) apiStoreInventory(w http.ResponseWriter, r *http.Request) {
	storeID, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	result, err := h.svc.StoreInventory(r.Context(), storeID, r.URL.Query().Get("q"))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiAllocate handles POST /api/stores/{id}/allocate.
func (h *Handler) apiAllocate(w http.ResponseWriter, r *http.Request) {
	storeID, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req itemsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.Allocate(r.Context(), app.AllocationRequest{StoreID: storeID, Items: req.Items, Actor: actorFromRequest(r)})
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiReturnToMaster handles POST /api/stores/{id}/return.
func (h *Handler) apiReturnToMaster(w http.ResponseWriter, r *http.Request) {
	storeID, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req itemsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.ReturnToMaster(r.Context(), app.AllocationRequest{StoreID: storeID, Items: req.Items, Actor: actorFromRequest(r)})
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiReconcile handles POST /api/stores/{id}/reconcile?returnStock=true.
func (h *Handler) apiReconcile(w http.ResponseWriter, r *http.Request) {
	storeID, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	returnStock := false
	if raw := r.URL.Query().Get("returnStock"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, r, "invalid returnStock: "+raw, "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		returnStock = v
	}

	report, err := h.svc.Reconcile(r.Context(), app.ReconcileRequest{StoreID: storeID, ReturnStock: returnStock, Actor: actorFromRequest(r)})
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeJSON(w, report)
}

// apiReconciliationHistory handles GET /api/stores/{id}/reconciliations.
func (h *Handler) apiReconciliationHistory(w http.ResponseWriter, r *http.Request) {
	storeID, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	result, err := h.svc.ReconciliationHistory(r.Context(), storeID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiAssignUser handles POST /api/stores/{id}/assignments.
func (h *Handler) apiAssignUser(w http.ResponseWriter, r *http.Request) {
	storeID, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Username string `json:"username"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.AssignUser(r.Context(), storeID, req.Username); err != nil {
		h.serviceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

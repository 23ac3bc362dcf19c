package web

import (
	"net/http"

	"storefront-ledger/internal/app"
	"storefront-ledger/internal/core"

	"github.com/shopspring/decimal"
)

// apiCreateOrder handles POST /api/orders.
func (h *Handler) apiCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StoreID       int64            `json:"store_id"`
		Items         []core.OrderItem `json:"items"`
		Discount      decimal.Decimal  `json:"discount"`
		CustomerName  string           `json:"customer_name"`
		CustomerPhone string           `json:"customer_phone"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	order, err := h.svc.CreateOrder(r.Context(), app.CreateOrderRequest{
		StoreID:       req.StoreID,
		Items:         req.Items,
		Discount:      req.Discount,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		Actor:         actorFromRequest(r),
	})
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeCreated(w, order)
}

// apiSearchOrders handles GET /api/orders?customerName=&customerPhone=&storeId=.
func (h *Handler) apiSearchOrders(w http.ResponseWriter, r *http.Request) {
	storeID, ok := queryID(w, r, "storeId")
	if !ok {
		return
	}
	q := r.URL.Query()
	filter := core.OrderFilter{
		CustomerName:  q.Get("customerName"),
		CustomerPhone: q.Get("customerPhone"),
	}
	if storeID != 0 {
		filter.StoreIDs = []int64{storeID}
	}

	result, err := h.svc.SearchOrders(r.Context(), filter)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiGetOrder handles GET /api/orders/{id}.
func (h *Handler) apiGetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	order, err := h.svc.GetOrder(r.Context(), orderID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeJSON(w, order)
}

// apiOrderSummary handles GET /api/orders/summary?storeId=.
func (h *Handler) apiOrderSummary(w http.ResponseWriter, r *http.Request) {
	storeID, ok := queryID(w, r, "storeId")
	if !ok {
		return
	}
	var scope *int64
	if storeID != 0 {
		scope = &storeID
	}
	summary, err := h.svc.OrderSummary(r.Context(), scope)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeJSON(w, summary)
}

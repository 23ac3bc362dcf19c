package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"storefront-ledger/internal/app"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Options configures the HTTP handler.
type Options struct {
	AllowedOrigins []string
	JWTSecret      string
	TokenTTL       time.Duration
}

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc       app.ApplicationService
	logger    *zap.Logger
	router    chi.Router
	jwtSecret string
	tokenTTL  time.Duration
	schemas   map[string][]byte
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, logger *zap.Logger, opts Options) http.Handler {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = time.Hour
	}
	h := &Handler{
		svc:       svc,
		logger:    logger,
		jwtSecret: opts.JWTSecret,
		tokenTTL:  opts.TokenTTL,
		schemas:   buildSchemas(),
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(logger))
	r.Use(Recoverer(logger))
	r.Use(CORS(opts.AllowedOrigins))

	// ── Health (public) ───────────────────────────────────────────────────────
	r.Get("/api/health", h.health)

	// ── Auth (public API) ─────────────────────────────────────────────────────
	r.Post("/api/auth/login", h.login)
	r.Post("/api/auth/logout", h.logout)

	// ── Protected API routes (return 401 JSON if unauthenticated) ────────────
	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)
		r.Use(RequestBodyLimit(1 << 20)) // 1 MB

		r.Get("/api/auth/me", h.me)

		// ── Stores ────────────────────────────────────────────────────────────
		r.Get("/api/stores", h.apiListStores)
		r.Post("/api/stores", h.apiCreateStore)
		r.Get("/api/stores/{id}/inventory", h.apiStoreInventory)
		r.Post("/api/stores/{id}/allocate", h.apiAllocate)
		r.Post("/api/stores/{id}/return", h.apiReturnToMaster)
		r.Post("/api/stores/{id}/reconcile", h.apiReconcile)
		r.Get("/api/stores/{id}/reconciliations", h.apiReconciliationHistory)
		r.Post("/api/stores/{id}/assignments", h.apiAssignUser)

		// ── Inventory ─────────────────────────────────────────────────────────
		r.Get("/api/inventory/view", h.apiInventoryView)
		r.Post("/api/inventory/stock", h.apiRestock)
		r.Get("/api/inventory/products", h.apiListProducts)
		r.Post("/api/inventory/products", h.apiCreateProduct)
		r.Delete("/api/inventory/products/{sku}", h.apiDeactivateProduct)
		r.Get("/api/inventory/bundles", h.apiListBundles)
		r.Post("/api/inventory/bundles", h.apiCreateBundle)
		r.Get("/api/inventory/transfers", h.apiListTransfers)
		r.Get("/api/inventory/audit/{sku}", h.apiAuditStock)

		// ── Orders ────────────────────────────────────────────────────────────
		r.Post("/api/orders", h.apiCreateOrder)
		r.Get("/api/orders", h.apiSearchOrders)
		r.Get("/api/orders/summary", h.apiOrderSummary)
		r.Get("/api/orders/{id}", h.apiGetOrder)

		// ── Schemas ───────────────────────────────────────────────────────────
		r.Get("/api/schemas/{name}", h.apiSchema)
	})

	h.router = r
	return r
}

// health returns service status.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status string `json:"status"`
	}
	writeJSON(w, response{Status: "ok"})
}

// idParam parses a positive integer URL parameter. It writes a 400 and
// returns false when the value is not one.
func idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id < 1 {
		writeError(w, r, "invalid "+name+": "+chi.URLParam(r, name), "BAD_REQUEST", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// queryID parses an optional positive integer query parameter. Absent means 0.
func queryID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		writeError(w, r, "invalid "+name+": "+raw, "BAD_REQUEST", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}

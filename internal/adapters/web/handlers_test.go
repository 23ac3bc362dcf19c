package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"storefront-ledger/internal/app"
	"storefront-ledger/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeService answers the calls exercised here. Anything else panics through
// the nil embedded interface and is reported as a 500 by Recoverer.
type fakeService struct {
	app.ApplicationService

	allocateErr error
	lastAlloc   app.AllocationRequest
	lastRecon   app.ReconcileRequest
	lastFilter  core.OrderFilter
}

func (f *fakeService) AuthenticateUser(_ context.Context, username, password string) (*app.UserSession, error) {
	if username == "alice" && password == "s3cret" {
		return &app.UserSession{UserID: 7, Username: "alice", Role: core.RoleStoreAdmin}, nil
	}
	return nil, core.ErrInvalidCredentials
}

func (f *fakeService) ListStores(context.Context) (*app.StoreListResult, error) {
	return &app.StoreListResult{Stores: []core.Store{{ID: 1, Name: "Master Store", Type: core.StoreMaster}}}, nil
}

func (f *fakeService) Allocate(_ context.Context, req app.AllocationRequest) (*core.AllocationResult, error) {
	f.lastAlloc = req
	if f.allocateErr != nil {
		return nil, f.allocateErr
	}
	return &core.AllocationResult{FromStoreID: 1, ToStoreID: req.StoreID}, nil
}

func (f *fakeService) Reconcile(_ context.Context, req app.ReconcileRequest) (*core.ReconciliationReport, error) {
	f.lastRecon = req
	return &core.ReconciliationReport{StoreID: req.StoreID, InventoryReturned: req.ReturnStock}, nil
}

func (f *fakeService) SearchOrders(_ context.Context, filter core.OrderFilter) (*app.OrderListResult, error) {
	f.lastFilter = filter
	return &app.OrderListResult{Orders: []core.CustomerOrder{}}, nil
}

func (f *fakeService) GetOrder(_ context.Context, id int64) (*core.CustomerOrder, error) {
	return nil, fmt.Errorf("order id=%d: %w", id, core.ErrOrderNotFound)
}

const testSecret = "test-secret"

func newTestServer(t *testing.T, svc *fakeService) (http.Handler, string) {
	t.Helper()
	h := NewHandler(svc, zap.NewNop(), Options{JWTSecret: testSecret, TokenTTL: time.Minute})
	token, err := (&Handler{jwtSecret: testSecret, tokenTTL: time.Minute}).issueToken(7, "alice", core.RoleStoreAdmin)
	require.NoError(t, err)
	return h, token
}

func do(h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealthIsPublic(t *testing.T) {
	h, _ := newTestServer(t, &fakeService{})
	rec := do(h, http.MethodGet, "/api/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	h, _ := newTestServer(t, &fakeService{})

	rec := do(h, http.MethodGet, "/api/stores", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", decodeError(t, rec).Code)

	rec = do(h, http.MethodGet, "/api/stores", "not-a-jwt", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginIssuesUsableToken(t *testing.T) {
	h, _ := newTestServer(t, &fakeService{})

	rec := do(h, http.MethodPost, "/api/auth/login", "", `{"username":"alice","password":"s3cret"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var login struct {
		Token string `json:"token"`
		Role  string `json:"role"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	assert.Equal(t, core.RoleStoreAdmin, login.Role)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "auth_token", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	// Cookie and bearer header are both accepted.
	req := httptest.NewRequest(http.MethodGet, "/api/stores", nil)
	req.AddCookie(cookies[0])
	byCookie := httptest.NewRecorder()
	h.ServeHTTP(byCookie, req)
	assert.Equal(t, http.StatusOK, byCookie.Code)

	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/api/stores", login.Token, "").Code)

	rec = do(h, http.MethodPost, "/api/auth/login", "", `{"username":"alice","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAllocateRecordsActor(t *testing.T) {
	svc := &fakeService{}
	h, token := newTestServer(t, svc)

	rec := do(h, http.MethodPost, "/api/stores/2/allocate", token, `{"items":[{"sku":"KIT-1","quantity":5}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(2), svc.lastAlloc.StoreID)
	assert.Equal(t, []core.ItemRequest{{SKU: "KIT-1", Quantity: 5}}, svc.lastAlloc.Items)
	assert.Equal(t, core.Actor{UserID: 7, Username: "alice"}, svc.lastAlloc.Actor)
}

func TestDomainErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"shortfall", &core.InsufficientStockError{StoreID: 1, SKU: "NB-A5", Requested: 12, Available: 10}, http.StatusConflict, "INSUFFICIENT_STOCK"},
		{"unknown sku", &core.SkuNotFoundError{SKU: "GHOST"}, http.StatusNotFound, "SKU_NOT_FOUND"},
		{"unknown store", fmt.Errorf("store id=9: %w", core.ErrStoreNotFound), http.StatusNotFound, "STORE_NOT_FOUND"},
		{"no master", core.ErrMasterStoreUninitialized, http.StatusConflict, "MASTER_STORE_UNINITIALIZED"},
		{"bad input", fmt.Errorf("%w: quantity must be positive", core.ErrInvalidInput), http.StatusBadRequest, "BAD_REQUEST"},
		{"lock timeout", fmt.Errorf("%w: canceling statement", core.ErrLockTimeout), http.StatusServiceUnavailable, "TRY_AGAIN"},
		{"unexpected", fmt.Errorf("connection reset"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, token := newTestServer(t, &fakeService{allocateErr: tt.err})
			rec := do(h, http.MethodPost, "/api/stores/2/allocate", token, `{"items":[{"sku":"X","quantity":1}]}`)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec).Code)
		})
	}
}

func TestShortfallDetails(t *testing.T) {
	svc := &fakeService{allocateErr: &core.InsufficientStockError{StoreID: 1, SKU: "NB-A5", Requested: 12, Available: 10}}
	h, token := newTestServer(t, svc)

	rec := do(h, http.MethodPost, "/api/stores/2/allocate", token, `{"items":[{"sku":"NB-A5","quantity":12}]}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	var resp struct {
		Details shortfallDetails `json:"details"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "NB-A5", resp.Details.SKU)
	assert.Equal(t, 2, resp.Details.Shortfall)
}

func TestRetryableErrorsSetRetryAfter(t *testing.T) {
	h, token := newTestServer(t, &fakeService{allocateErr: core.ErrSerializationFailure})
	rec := do(h, http.MethodPost, "/api/stores/2/allocate", token, `{"items":[{"sku":"X","quantity":1}]}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestReconcileQueryFlag(t *testing.T) {
	svc := &fakeService{}
	h, token := newTestServer(t, svc)

	rec := do(h, http.MethodPost, "/api/stores/3/reconcile?returnStock=true", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, svc.lastRecon.ReturnStock)
	assert.Equal(t, int64(3), svc.lastRecon.StoreID)

	rec = do(h, http.MethodPost, "/api/stores/3/reconcile?returnStock=maybe", token, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodPost, "/api/stores/abc/reconcile", token, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchOrdersFilters(t *testing.T) {
	svc := &fakeService{}
	h, token := newTestServer(t, svc)

	rec := do(h, http.MethodGet, "/api/orders?customerName=pri&customerPhone=9800&storeId=4", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pri", svc.lastFilter.CustomerName)
	assert.Equal(t, "9800", svc.lastFilter.CustomerPhone)
	assert.Equal(t, []int64{4}, svc.lastFilter.StoreIDs)

	rec = do(h, http.MethodGet, "/api/orders/99", token, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "ORDER_NOT_FOUND", decodeError(t, rec).Code)
}

func TestInvalidJSONBody(t *testing.T) {
	h, token := newTestServer(t, &fakeService{})
	rec := do(h, http.MethodPost, "/api/stores/2/allocate", token, `{"items":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPanicsBecome500(t *testing.T) {
	h, token := newTestServer(t, &fakeService{})
	// InventoryView is not implemented by the fake.
	rec := do(h, http.MethodGet, "/api/inventory/view", token, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestReconciliationReportSchema(t *testing.T) {
	h, token := newTestServer(t, &fakeService{})

	rec := do(h, http.MethodGet, "/api/schemas/reconciliation-report", token, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var schema struct {
		Properties map[string]struct {
			Type string `json:"type"`
		} `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &schema))
	assert.Equal(t, "string", schema.Properties["totalRevenue"].Type)
	assert.Equal(t, "integer", schema.Properties["ordersReconciled"].Type)
	assert.Equal(t, "array", schema.Properties["soldItems"].Type)

	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/api/schemas/nope", token, "").Code)
}

package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront-ledger/internal/core"
	"storefront-ledger/internal/events"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Options tunes the application service.
type Options struct {
	// LockTimeout bounds how long one attempt waits on a stock row lock.
	LockTimeout time.Duration
	// MaxAttempts is how many times a mutation runs before a lock timeout or
	// serialization failure is returned to the caller.
	MaxAttempts int
}

type appService struct {
	pool        *pgxpool.Pool
	users       core.UserService
	stores      core.StoreService
	catalog     core.CatalogService
	ledger      core.StockLedger
	allocations core.AllocationService
	orders      core.OrderService
	recon       core.ReconciliationService
	publisher   events.Publisher
	logger      *zap.Logger
	maxAttempts int
}

// NewAppService wires the core services over pool and returns an ApplicationService.
func NewAppService(pool *pgxpool.Pool, publisher events.Publisher, logger *zap.Logger, opts Options) ApplicationService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}

	catalog := core.NewCatalogService(pool)
	ledger := core.NewStockLedger(pool, opts.LockTimeout)
	resolver := core.NewBundleResolver(catalog)

	return &appService{
		pool:        pool,
		users:       core.NewUserService(pool),
		stores:      core.NewStoreService(pool),
		catalog:     catalog,
		ledger:      ledger,
		allocations: core.NewAllocationService(ledger, resolver),
		orders:      core.NewOrderService(pool, ledger, resolver),
		recon:       core.NewReconciliationService(pool, ledger),
		publisher:   publisher,
		logger:      logger,
		maxAttempts: opts.MaxAttempts,
	}
}

// ── Users and stores ──────────────────────────────────────────────────────────

func (s *appService) AuthenticateUser(ctx context.Context, username, password string) (*UserSession, error) {
	u, err := s.users.Authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}
	return &UserSession{UserID: u.ID, Username: u.Username, Role: u.Role}, nil
}

func (s *appService) GetUser(ctx context.Context, userID int64) (*UserResult, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toUserResult(u), nil
}

func (s *appService) CreateUser(ctx context.Context, req CreateUserRequest) (*UserResult, error) {
	u, err := s.users.CreateUser(ctx, req.Username, req.Password, req.Role)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user created", zap.String("username", u.Username), zap.String("role", u.Role))
	return toUserResult(u), nil
}

func toUserResult(u *core.User) *UserResult {
	return &UserResult{
		UserID:    u.ID,
		Username:  u.Username,
		Role:      u.Role,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}

func (s *appService) BootstrapMaster(ctx context.Context, name string) (*core.Store, error) {
	return s.stores.BootstrapMaster(ctx, name)
}

func (s *appService) CreateStore(ctx context.Context, req CreateStoreRequest) (*core.Store, error) {
	var owner *int64
	if req.OwnerUsername != "" {
		u, err := s.users.GetByUsername(ctx, req.OwnerUsername)
		if err != nil {
			return nil, fmt.Errorf("owner %s: %w", req.OwnerUsername, err)
		}
		owner = &u.ID
	}

	st, err := s.stores.CreateStore(ctx, req.Name, core.StoreVirtual, owner)
	if err != nil {
		return nil, err
	}
	s.logger.Info("store created", zap.Int64("store_id", st.ID), zap.String("name", st.Name))
	return st, nil
}

func (s *appService) ListStores(ctx context.Context) (*StoreListResult, error) {
	stores, err := s.stores.ListStores(ctx)
	if err != nil {
		return nil, err
	}
	return &StoreListResult{Stores: stores}, nil
}

func (s *appService) AssignUser(ctx context.Context, storeID int64, username string) error {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	return s.stores.AssignUser(ctx, storeID, u.ID)
}

// ── Catalog ───────────────────────────────────────────────────────────────────

func (s *appService) CreateProduct(ctx context.Context, in core.ProductInput) (*core.Product, error) {
	return s.catalog.CreateProduct(ctx, in)
}

func (s *appService) ListProducts(ctx context.Context) (*ProductListResult, error) {
	products, err := s.catalog.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	return &ProductListResult{Products: products}, nil
}

func (s *appService) CreateBundle(ctx context.Context, in core.BundleInput) (*core.Bundle, error) {
	return s.catalog.CreateBundle(ctx, in)
}

func (s *appService) ListBundles(ctx context.Context) (*BundleListResult, error) {
	bundles, err := s.catalog.ListBundles(ctx)
	if err != nil {
		return nil, err
	}
	return &BundleListResult{Bundles: bundles}, nil
}

func (s *appService) DeactivateProduct(ctx context.Context, sku string) error {
	return s.catalog.DeactivateProduct(ctx, sku)
}

// ── Stock ─────────────────────────────────────────────────────────────────────

func (s *appService) Restock(ctx context.Context, req RestockRequest) (*core.StockLevel, error) {
	var level *core.StockLevel
	err := s.retry(ctx, "restock", func() error {
		var err error
		level, err = s.ledger.Restock(ctx, req.SKU, req.Quantity, req.Actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("master restocked",
		zap.String("sku", req.SKU), zap.Int("quantity", req.Quantity), zap.Int("on_hand", level.Quantity))
	s.publish(ctx, events.TypeStockRestocked, level.StoreID, level)
	return level, nil
}

func (s *appService) InventoryView(ctx context.Context) (*StockResult, error) {
	levels, err := s.ledger.InventoryView(ctx)
	if err != nil {
		return nil, err
	}
	res := &StockResult{Levels: levels}
	if len(levels) > 0 {
		res.StoreID = levels[0].StoreID
	}
	return res, nil
}

func (s *appService) StoreInventory(ctx context.Context, storeID int64, query string) (*StockResult, error) {
	levels, err := s.ledger.ListStoreStock(ctx, storeID, query)
	if err != nil {
		return nil, err
	}
	return &StockResult{StoreID: storeID, Levels: levels}, nil
}

func (s *appService) ListTransfers(ctx context.Context, filter core.TransferFilter) (*TransferListResult, error) {
	transfers, err := s.ledger.ListTransfers(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &TransferListResult{Transfers: transfers}, nil
}

func (s *appService) AuditStock(ctx context.Context, sku string) (*core.StockAudit, error) {
	p, err := s.catalog.FindProductBySKU(ctx, s.pool, sku)
	if err != nil {
		return nil, err
	}
	return s.ledger.Audit(ctx, p.ID)
}

func (s *appService) Allocate(ctx context.Context, req AllocationRequest) (*core.AllocationResult, error) {
	var res *core.AllocationResult
	err := s.retry(ctx, "allocate", func() error {
		var err error
		res, err = s.allocations.Allocate(ctx, req.StoreID, req.Items, req.Actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("stock allocated",
		zap.Int64("store_id", req.StoreID), zap.Int("products", len(res.Movements)), zap.String("by", req.Actor.Username))
	s.publish(ctx, events.TypeStockAllocated, req.StoreID, res)
	return res, nil
}

func (s *appService) ReturnToMaster(ctx context.Context, req AllocationRequest) (*core.AllocationResult, error) {
	var res *core.AllocationResult
	err := s.retry(ctx, "return", func() error {
		var err error
		res, err = s.allocations.ReturnToMaster(ctx, req.StoreID, req.Items, req.Actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("stock returned to master",
		zap.Int64("store_id", req.StoreID), zap.Int("products", len(res.Movements)), zap.String("by", req.Actor.Username))
	s.publish(ctx, events.TypeStockReturned, req.StoreID, res)
	return res, nil
}

// ── Orders ────────────────────────────────────────────────────────────────────

func (s *appService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*core.CustomerOrder, error) {
	var order *core.CustomerOrder
	err := s.retry(ctx, "create order", func() error {
		var err error
		order, err = s.orders.CreateOrder(ctx, core.OrderRequest{
			StoreID:       req.StoreID,
			Items:         req.Items,
			Discount:      req.Discount,
			CustomerName:  req.CustomerName,
			CustomerPhone: req.CustomerPhone,
		}, req.Actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("order created",
		zap.Int64("order_id", order.ID), zap.Int64("store_id", order.StoreID), zap.String("total", order.TotalAmount.StringFixed(2)))
	s.publish(ctx, events.TypeOrderCreated, order.StoreID, order)
	return order, nil
}

func (s *appService) GetOrder(ctx context.Context, orderID int64) (*core.CustomerOrder, error) {
	return s.orders.GetOrder(ctx, orderID)
}

func (s *appService) SearchOrders(ctx context.Context, filter core.OrderFilter) (*OrderListResult, error) {
	orders, err := s.orders.SearchOrders(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &OrderListResult{Orders: orders}, nil
}

func (s *appService) OrderSummary(ctx context.Context, storeID *int64) (*core.OrderSummary, error) {
	return s.orders.OrderSummary(ctx, storeID)
}

// ── Reconciliation ────────────────────────────────────────────────────────────

func (s *appService) Reconcile(ctx context.Context, req ReconcileRequest) (*core.ReconciliationReport, error) {
	var report *core.ReconciliationReport
	err := s.retry(ctx, "reconcile", func() error {
		var err error
		report, err = s.recon.Reconcile(ctx, req.StoreID, req.ReturnStock, req.Actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("store reconciled",
		zap.Int64("store_id", report.StoreID),
		zap.Int("orders", report.OrdersReconciled),
		zap.String("revenue", report.TotalRevenue.StringFixed(2)),
		zap.Bool("inventory_returned", report.InventoryReturned))
	s.publish(ctx, events.TypeStoreReconciled, report.StoreID, report)
	return report, nil
}

func (s *appService) ReconciliationHistory(ctx context.Context, storeID int64) (*ReconciliationHistoryResult, error) {
	logs, err := s.recon.History(ctx, storeID)
	if err != nil {
		return nil, err
	}
	return &ReconciliationHistoryResult{StoreID: storeID, Logs: logs}, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func (s *appService) retry(ctx context.Context, op string, fn func() error) error {
	return withRetry(ctx, s.maxAttempts, retryBackoff, s.logger.With(zap.String("op", op)), fn)
}

// publish emits an event for a committed change. Failures are logged only.
func (s *appService) publish(ctx context.Context, eventType string, storeID int64, payload any) {
	ev, err := events.New(eventType, storeID, payload)
	if err == nil {
		err = s.publisher.Publish(ctx, ev)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("failed to publish event", zap.String("event_type", eventType), zap.Error(err))
	}
}

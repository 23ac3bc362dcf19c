package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StoreService manages stores, the master-store bootstrap and admin assignments.
type StoreService interface {
	// BootstrapMaster creates the master store if none exists and returns it.
	BootstrapMaster(ctx context.Context, name string) (*Store, error)
	CreateStore(ctx context.Context, name string, storeType StoreType, ownerUserID *int64) (*Store, error)
	GetStore(ctx context.Context, storeID int64) (*Store, error)
	ListStores(ctx context.Context) ([]Store, error)
	MasterStore(ctx context.Context) (*Store, error)
	AssignUser(ctx context.Context, storeID, userID int64) error
	AssignedUsernames(ctx context.Context, storeID int64) ([]string, error)
}

type storeService struct {
	pool *pgxpool.Pool
}

func NewStoreService(pool *pgxpool.Pool) StoreService {
	return &storeService{pool: pool}
}

func (s *storeService) BootstrapMaster(ctx context.Context, name string) (*Store, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Master Store"
	}
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO stores (name, type) VALUES ($1, 'MASTER')
		ON CONFLICT (type) WHERE type = 'MASTER' DO NOTHING
	`, name); err != nil {
		return nil, fmt.Errorf("failed to bootstrap master store: %w", err)
	}
	return masterStore(ctx, s.pool)
}

func (s *storeService) CreateStore(ctx context.Context, name string, storeType StoreType, ownerUserID *int64) (*Store, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalidInput("store name is required")
	}
	if storeType == "" {
		storeType = StoreVirtual
	}
	if storeType != StoreMaster && storeType != StoreVirtual {
		return nil, invalidInput("unknown store type %q", storeType)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	st := &Store{}
	err = tx.QueryRow(ctx, `
		INSERT INTO stores (name, type, owner_user_id) VALUES ($1, $2, $3)
		RETURNING id, name, type, owner_user_id, created_at
	`, name, storeType, ownerUserID).Scan(&st.ID, &st.Name, &st.Type, &st.OwnerUserID, &st.CreatedAt)
	if err != nil {
		switch {
		case isPgCode(err, pgUniqueViolation):
			return nil, ErrMasterStoreExists
		case isPgCode(err, pgForeignKeyViolation):
			return nil, fmt.Errorf("owner: %w", ErrUserNotFound)
		}
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	// The owner is the store's first admin.
	if ownerUserID != nil {
		if _, err := tx.Exec(ctx,
			"INSERT INTO store_assignments (user_id, store_id) VALUES ($1, $2)",
			*ownerUserID, st.ID); err != nil {
			return nil, fmt.Errorf("failed to assign owner to store %s: %w", st.Name, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit store creation: %w", err)
	}
	return st, nil
}

func (s *storeService) GetStore(ctx context.Context, storeID int64) (*Store, error) {
	return getStore(ctx, s.pool, storeID)
}

func (s *storeService) ListStores(ctx context.Context) ([]Store, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, type, owner_user_id, created_at
		FROM stores
		ORDER BY CASE WHEN type = 'MASTER' THEN 0 ELSE 1 END, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stores: %w", err)
	}
	defer rows.Close()

	var stores []Store
	for rows.Next() {
		var st Store
		if err := rows.Scan(&st.ID, &st.Name, &st.Type, &st.OwnerUserID, &st.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan store: %w", err)
		}
		stores = append(stores, st)
	}
	return stores, rows.Err()
}

func (s *storeService) MasterStore(ctx context.Context) (*Store, error) {
	return masterStore(ctx, s.pool)
}

func (s *storeService) AssignUser(ctx context.Context, storeID, userID int64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO store_assignments (user_id, store_id) VALUES ($1, $2)
		ON CONFLICT (user_id, store_id) DO NOTHING
	`, userID, storeID)
	if err != nil {
		if isPgCode(err, pgForeignKeyViolation) {
			if _, serr := getStore(ctx, s.pool, storeID); serr != nil {
				return serr
			}
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to assign user %d to store %d: %w", userID, storeID, err)
	}
	return nil
}

func (s *storeService) AssignedUsernames(ctx context.Context, storeID int64) ([]string, error) {
	return assignedUsernames(ctx, s.pool, storeID)
}

// ── Shared helpers ────────────────────────────────────────────────────────────

const storeColumns = "id, name, type, owner_user_id, created_at"

func scanStore(row pgx.Row, storeID int64) (*Store, error) {
	st := &Store{}
	err := row.Scan(&st.ID, &st.Name, &st.Type, &st.OwnerUserID, &st.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("store id=%d: %w", storeID, ErrStoreNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load store %d: %w", storeID, err)
	}
	return st, nil
}

func getStore(ctx context.Context, q Querier, storeID int64) (*Store, error) {
	return scanStore(q.QueryRow(ctx, "SELECT "+storeColumns+" FROM stores WHERE id = $1", storeID), storeID)
}

// lockStoreShared takes a FOR SHARE lock on the store row. Orders and
// allocations hold it so that reconciliation, which takes the exclusive lock,
// never interleaves with them.
func lockStoreShared(ctx context.Context, tx pgx.Tx, storeID int64) (*Store, error) {
	return scanStore(tx.QueryRow(ctx, "SELECT "+storeColumns+" FROM stores WHERE id = $1 FOR SHARE", storeID), storeID)
}

func lockStoreExclusive(ctx context.Context, tx pgx.Tx, storeID int64) (*Store, error) {
	return scanStore(tx.QueryRow(ctx, "SELECT "+storeColumns+" FROM stores WHERE id = $1 FOR UPDATE", storeID), storeID)
}

func masterStore(ctx context.Context, q Querier) (*Store, error) {
	st := &Store{}
	err := q.QueryRow(ctx, "SELECT "+storeColumns+" FROM stores WHERE type = 'MASTER'").
		Scan(&st.ID, &st.Name, &st.Type, &st.OwnerUserID, &st.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrMasterStoreUninitialized
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load master store: %w", err)
	}
	return st, nil
}

func assignedUsernames(ctx context.Context, q Querier, storeID int64) ([]string, error) {
	rows, err := q.Query(ctx, `
		SELECT u.username
		FROM store_assignments sa
		JOIN users u ON u.id = sa.user_id
		WHERE sa.store_id = $1
		ORDER BY u.username
	`, storeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query store assignments: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan username: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

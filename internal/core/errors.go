package core

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Sentinel errors. Every one of them aborts the enclosing transaction.
var (
	ErrSkuNotFound              = errors.New("sku not found")
	ErrInsufficientStock        = errors.New("insufficient stock")
	ErrStoreNotFound            = errors.New("store not found")
	ErrOrderNotFound            = errors.New("order not found")
	ErrUserNotFound             = errors.New("user not found")
	ErrMasterStoreUninitialized = errors.New("master store is not initialized")
	ErrMasterStoreExists        = errors.New("a master store already exists")
	ErrInvalidInput             = errors.New("invalid input")

	// ErrLockTimeout and ErrSerializationFailure are retryable: the whole
	// operation can be attempted again from the start.
	ErrLockTimeout          = errors.New("timed out waiting for a stock lock")
	ErrSerializationFailure = errors.New("transaction could not be serialized")
)

// Postgres SQLSTATE codes the ledger reacts to.
const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgCheckViolation       = "23514"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

// Foreign keys of stock_levels, as named by Postgres.
const (
	stockStoreFK   = "stock_levels_store_id_fkey"
	stockProductFK = "stock_levels_product_id_fkey"
)

// InsufficientStockError reports a debit that would drive a stock row below zero.
// Requested is the total requested for the product across the whole operation.
type InsufficientStockError struct {
	StoreID   int64
	SKU       string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s in store %d: available %d, requested %d (short by %d)",
		e.SKU, e.StoreID, e.Available, e.Requested, e.Shortfall())
}

// Shortfall is how many units are missing.
func (e *InsufficientStockError) Shortfall() int {
	return e.Requested - e.Available
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// SkuNotFoundError names the SKU that resolved to neither a product nor a bundle.
type SkuNotFoundError struct {
	SKU string
}

func (e *SkuNotFoundError) Error() string {
	return fmt.Sprintf("sku %q is neither an active product nor an active bundle", e.SKU)
}

func (e *SkuNotFoundError) Is(target error) bool {
	return target == ErrSkuNotFound
}

// IsRetryable reports whether err is a lock timeout or serialization failure.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrLockTimeout) || errors.Is(err, ErrSerializationFailure)
}

// classifyPgError maps Postgres lock and serialization failures onto the ledger's
// retryable sentinels and keeps the original error in the chain.
func classifyPgError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgLockNotAvailable:
		return fmt.Errorf("%w: %w", ErrLockTimeout, err)
	case pgSerializationFailure, pgDeadlockDetected:
		return fmt.Errorf("%w: %w", ErrSerializationFailure, err)
	}
	return err
}

// stockRowFKError names the missing parent of a stock row insert that failed
// with a foreign-key violation.
func stockRowFKError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgForeignKeyViolation {
		return err
	}
	switch pgErr.ConstraintName {
	case stockProductFK:
		return fmt.Errorf("%w: %s", ErrSkuNotFound, pgErr.Detail)
	case stockStoreFK:
		return fmt.Errorf("%w: %s", ErrStoreNotFound, pgErr.Detail)
	}
	return fmt.Errorf("%w: %w", ErrInvalidInput, err)
}

func isPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Package apperr defines the error taxonomy shared by repositories, services
// and HTTP handlers. Callers match with errors.Is / errors.As.
package apperr

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	ErrValidation        = errors.New("validation")         // 400
	ErrNotFound          = errors.New("not found")          // 404
	ErrConflict          = errors.New("conflict")           // 409
	ErrInvalidTransition = errors.New("invalid transition") // 409
	ErrEmptyCart         = errors.New("cart is empty")      // 422
	ErrInsufficientStock = errors.New("insufficient stock") // 422
	ErrUnavailable       = errors.New("unavailable")        // 503, safe to retry
)

// InsufficientStockError names the product whose stock could not cover the request.
type InsufficientStockError struct {
	ProductID uint
	Requested uint
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// PersistenceError wraps a storage failure that is not a domain outcome.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Postgres SQLSTATEs that mean the transaction lost a race or ran out of time.
var retryableCodes = map[string]struct{}{
	"40001": {}, // serialization_failure
	"40P01": {}, // deadlock_detected
	"55P03": {}, // lock_not_available
	"57014": {}, // query_canceled (statement/lock timeout)
}

const uniqueViolation = "23505"

// Classify leaves domain errors untouched and maps storage errors onto the
// taxonomy. Anything it does not recognise becomes a PersistenceError.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case isDomain(err):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if _, ok := retryableCodes[pgErr.Code]; ok {
			return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
		}
		if pgErr.Code == uniqueViolation {
			return fmt.Errorf("%s: %w: %s", op, ErrConflict, pgErr.ConstraintName)
		}
	}

	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

func isDomain(err error) bool {
	for _, target := range []error{ErrValidation, ErrNotFound, ErrConflict, ErrInvalidTransition, ErrEmptyCart, ErrInsufficientStock, ErrUnavailable} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

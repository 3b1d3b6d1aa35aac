// services/errors.go
package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	// ErrValidation rejects malformed input; nothing is mutated.
	ErrValidation = errors.New("validation error")
	// ErrAlreadyCompletedToday guards a second habit completion on the same calendar day.
	ErrAlreadyCompletedToday = errors.New("habit already completed today")
	// ErrNotAuthenticated aborts sync or migration before any I/O.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrSyncFailed is a recoverable remote or network failure; the local store is unchanged.
	ErrSyncFailed = errors.New("sync failed")
	// ErrStorageTransactionFailed is a local write failure; the transaction was rolled back.
	ErrStorageTransactionFailed = errors.New("storage transaction failed")
	// ErrImportFormatInvalid rejects a backup before the destructive clear step.
	ErrImportFormatInvalid = errors.New("import format invalid")
	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("not found")
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// storageErr classifies an error returned by a store transaction. Errors that already carry a
// domain sentinel pass through untouched.
func storageErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrAlreadyCompletedToday),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrNotAuthenticated),
		errors.Is(err, ErrImportFormatInvalid),
		errors.Is(err, ErrStorageTransactionFailed):
		return err
	}
	return fmt.Errorf("%w: %w", ErrStorageTransactionFailed, err)
}

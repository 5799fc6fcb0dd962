package syncqueue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrStorageUnavailable marks failures to reach or open the database.
	ErrStorageUnavailable = errors.New("sync queue storage unavailable")
	// ErrTransactionFailed marks mutations that were rolled back.
	ErrTransactionFailed = errors.New("sync queue transaction failed")
	// ErrInvalidStatusKey marks requests naming an unknown status kind.
	ErrInvalidStatusKey = errors.New("invalid status key")
	// ErrInvalidArticleID marks requests with an empty article identifier.
	ErrInvalidArticleID = errors.New("invalid article id")
)

// Error kinds reported by ErrorKind.
const (
	KindStorageUnavailable = "storage_unavailable"
	KindTransactionFailed  = "transaction_failed"
	KindValidation         = "validation"
)

// ErrorKind classifies queue errors for callers that map failures to exit
// codes or retry decisions. Unknown errors return an empty string.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidStatusKey), errors.Is(err, ErrInvalidArticleID):
		return KindValidation
	case errors.Is(err, ErrStorageUnavailable):
		return KindStorageUnavailable
	case errors.Is(err, ErrTransactionFailed):
		return KindTransactionFailed
	default:
		return ""
	}
}

func wrap(marker error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", marker, operation, err)
}

// mutationError tags a failed write. Lost connections and closed stores are
// reported as unavailable storage; everything else rolled back.
func mutationError(operation string, err error) error {
	if isConnectionError(err) {
		return wrap(ErrStorageUnavailable, operation, err)
	}
	return wrap(ErrTransactionFailed, operation, err)
}

func readError(operation string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", operation, err)
	}
	return wrap(ErrStorageUnavailable, operation, err)
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, errStoreClosed) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "database is closed") ||
		strings.Contains(msg, "unable to open database") ||
		strings.Contains(msg, "SQLITE_CANTOPEN")
}

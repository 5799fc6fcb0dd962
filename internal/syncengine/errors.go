package syncengine

import "errors"

type temporary interface {
	Temporary() bool
}

// Retryable reports whether a failed delivery may succeed when the batch is
// sent again. Errors that do not classify themselves, such as transport
// failures, count as retryable.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var t temporary
	if errors.As(err, &t) {
		return t.Temporary()
	}
	return true
}

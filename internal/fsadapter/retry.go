package fsadapter

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
)

// retryDelay is the pause between the original attempt and its single
// retry. Transient failures on a network-mounted sync folder (the
// motivating case for spec.md §7's "retried at most once") typically
// clear within milliseconds; there is no reason to wait longer and every
// reason not to block a note's actor mailbox any longer than necessary.
const retryDelay = 20 * time.Millisecond

// retryTransient runs op once and, if it fails with ErrIo or
// ErrPermissionDenied, runs it exactly one more time (spec.md §7:
// "Retried at most once by the engine for transient PermissionDenied and
// Io; otherwise surfaced"). Any other error, or a second failure, is
// returned as-is.
func retryTransient(op func() error) error {
	backoff := retry.WithMaxRetries(1, retry.NewConstant(retryDelay))

	return retry.Do(context.Background(), backoff, func(_ context.Context) error {
		err := op()
		if err == nil {
			return nil
		}

		if errors.Is(err, ErrIo) || errors.Is(err, ErrPermissionDenied) {
			return retry.RetryableError(err)
		}

		return err
	})
}

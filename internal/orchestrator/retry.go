package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/rentfold/esign/pkg/provider"
)

const maxProviderRetries = 3

// withRetry runs a read-path provider call with bounded exponential backoff.
// Only transport-level retryable failures are retried; vendor rejections stop
// immediately. Mutating vendor calls never go through here: they are not
// idempotent and a failure after the request may have committed vendor-side.
func withRetry(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxElapsedTime = 10 * time.Second

	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		var pe *provider.Error
		if errors.As(err, &pe) && pe.Retryable {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(backoff.WithMaxRetries(b, maxProviderRetries), ctx))
}

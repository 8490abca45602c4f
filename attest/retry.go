package attest

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/tos-network/incofund/core/handle"
)

// RetryPolicy bounds how long a caller waits for a freshly committed handle
// to become decryptable.
type RetryPolicy struct {
	Attempts     int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

var DefaultRetryPolicy = RetryPolicy{
	Attempts:     6,
	InitialDelay: 250 * time.Millisecond,
	MaxDelay:     4 * time.Second,
	Multiplier:   2,
}

// Delay returns the wait before retry number attempt (starting at 1).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := p.InitialDelay
	for i := 1; i < attempt; i++ {
		d = time.Duration(float64(d) * p.Multiplier)
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// WaitDecrypt decrypts h, retrying while the oracle has not indexed the
// ciphertext yet. Permission failures and unclassified failures are returned
// immediately.
func (c *Client) WaitDecrypt(ctx context.Context, h handle.Handle, signer Signer, policy RetryPolicy) Result {
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var res Result
	for attempt := 1; ; attempt++ {
		res = c.Decrypt(ctx, h, signer)
		if res.Outcome != OutcomeNotFound || attempt >= attempts {
			return res
		}
		delay := policy.Delay(attempt)
		log.Debug("Ciphertext not indexed yet", "handle", h, "attempt", attempt, "retry", delay)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return unclassified(h, ctx.Err())
		case <-timer.C:
		}
	}
}

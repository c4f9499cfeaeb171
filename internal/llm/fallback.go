package llm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"bizlens/internal/port"
)

// circuitState tracks rate-limit backoff for a single provider.
type circuitState struct {
	mu      sync.RWMutex
	resetAt time.Time // zero value = closed (healthy)
}

func (c *circuitState) isOpenWithReset(now time.Time) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.resetAt, !c.resetAt.IsZero() && now.Before(c.resetAt)
}

func (c *circuitState) open(resetAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetAt = resetAt
}

// Fallback tries providers in order, skipping those with open circuits.
// It implements port.LLMClient. A permanent failure from one provider moves
// on to the next; only when every provider fails does the call fail.
type Fallback struct {
	clients  []port.LLMClient
	circuits []*circuitState
	names    []string
}

// NewFallback creates a Fallback from an ordered list of clients and their names.
func NewFallback(clients []port.LLMClient, names []string) *Fallback {
	circuits := make([]*circuitState, len(clients))
	for i := range circuits {
		circuits[i] = &circuitState{}
	}
	return &Fallback{
		clients:  clients,
		circuits: circuits,
		names:    names,
	}
}

func (f *Fallback) Complete(ctx context.Context, input port.CompletionInput) (*port.CompletionOutput, error) {
	now := time.Now()
	var lastErr error
	allTransient := true
	var earliestReset time.Time

	for i, c := range f.clients {
		if resetAt, open := f.circuits[i].isOpenWithReset(now); open {
			log.Printf("llm.Fallback: skipping %s (circuit open until %s)", f.names[i], resetAt.Format(time.RFC3339))
			if earliestReset.IsZero() || resetAt.Before(earliestReset) {
				earliestReset = resetAt
			}
			continue
		}

		out, err := c.Complete(ctx, input)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		log.Printf("llm.Fallback: %s failed: %v", f.names[i], err)
		lastErr = err

		var te *TransientError
		if errors.As(err, &te) {
			resetAt := now.Add(te.RetryAfter)
			f.circuits[i].open(resetAt)
			if earliestReset.IsZero() || resetAt.Before(earliestReset) {
				earliestReset = resetAt
			}
		} else {
			allTransient = false
		}
	}

	if lastErr == nil || allTransient {
		// Every provider is rate limited or backing off
		retryAfter := time.Until(earliestReset)
		if retryAfter < 0 {
			retryAfter = time.Second
		}
		return nil, NewRateLimitError("all", fmt.Errorf("all providers backing off"), int(retryAfter.Seconds()))
	}

	return nil, NewPermanentError("all", fmt.Errorf("all providers failed: %w", lastErr))
}

package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Default limits for completion-service calls
const (
	DefaultCallTimeout = 10 * time.Second
	DefaultMaxRetries  = 3
	DefaultCallBudget  = 20 // hard cap on calls per pipeline run
)

// Caller wraps a Client with a per-call timeout, bounded retries with
// exponential backoff, and a hard per-run call budget. One Caller is created
// per pipeline run or per scoring batch slot.
type Caller struct {
	client      Client
	callTimeout time.Duration
	maxRetries  int
	backoffBase time.Duration

	mu        sync.Mutex
	budget    int
	callsMade int
}

// CallerOption customizes a Caller
type CallerOption func(*Caller)

// WithCallTimeout overrides the per-call timeout
func WithCallTimeout(d time.Duration) CallerOption {
	return func(c *Caller) { c.callTimeout = d }
}

// WithMaxRetries overrides the retry budget per call
func WithMaxRetries(n int) CallerOption {
	return func(c *Caller) { c.maxRetries = n }
}

// WithCallBudget overrides the hard cap on calls for this caller's lifetime
func WithCallBudget(n int) CallerOption {
	return func(c *Caller) { c.budget = n }
}

// WithBackoffBase overrides the initial backoff delay (shortened in tests)
func WithBackoffBase(d time.Duration) CallerOption {
	return func(c *Caller) { c.backoffBase = d }
}

// NewCaller creates a Caller around the given client
func NewCaller(client Client, opts ...CallerOption) *Caller {
	c := &Caller{
		client:      client,
		callTimeout: DefaultCallTimeout,
		maxRetries:  DefaultMaxRetries,
		backoffBase: 500 * time.Millisecond,
		budget:      DefaultCallBudget,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CallsMade returns how many completion calls this caller has spent,
// counting each retry attempt against the budget.
func (c *Caller) CallsMade() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.callsMade
}

func (c *Caller) spend() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.callsMade >= c.budget {
		return ErrBudgetExhausted
	}
	c.callsMade++
	return nil
}

// GenerateContent calls the client with retry, timeout and budget enforcement
func (c *Caller) GenerateContent(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	return c.do(ctx, func(callCtx context.Context) (string, error) {
		return c.client.GenerateContent(callCtx, prompt, tier)
	})
}

// GenerateJSON calls the client with retry, timeout and budget enforcement
func (c *Caller) GenerateJSON(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	return c.do(ctx, func(callCtx context.Context) (string, error) {
		return c.client.GenerateJSON(callCtx, prompt, tier)
	})
}

func (c *Caller) do(ctx context.Context, call func(context.Context) (string, error)) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoffBase << (attempt - 1)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		if err := c.spend(); err != nil {
			if lastErr != nil {
				return "", fmt.Errorf("%w (last attempt: %v)", err, lastErr)
			}
			return "", err
		}

		callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
		text, err := call(callCtx)
		cancel()
		if err == nil {
			return text, nil
		}

		lastErr = Classify(err)
		if ctx.Err() != nil {
			return "", lastErr
		}
	}

	var upstream *UpstreamAIError
	if errors.As(lastErr, &upstream) {
		return "", lastErr
	}
	return "", Classify(lastErr)
}

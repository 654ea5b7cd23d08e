package profile

import (
	"context"
	"sync"

	"github.com/jonathan/job-scout/internal/llm"
)

// stubClient is a scripted llm.Client for stage tests
type stubClient struct {
	mu       sync.Mutex
	calls    int
	text     string
	jsonText string
	err      error
}

func (c *stubClient) GenerateContent(ctx context.Context, prompt string, tier llm.ModelTier) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	return c.text, nil
}

func (c *stubClient) GenerateJSON(ctx context.Context, prompt string, tier llm.ModelTier) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	return c.jsonText, nil
}

func (c *stubClient) Close() error { return nil }

func (c *stubClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// stubCaller wraps a stubClient in a fast-failing Caller
func stubCaller(client *stubClient) *llm.Caller {
	return llm.NewCaller(client, llm.WithMaxRetries(0), llm.WithBackoffBase(1))
}

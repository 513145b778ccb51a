package llm

import (
	"context"
	"time"

	"github.com/ca-srg/prodsearch/internal/dispatch"
)

// PooledClient runs every chat call on the shared worker pool under a fixed timeout
type PooledClient struct {
	next    ChatClient
	pool    *dispatch.Pool
	timeout time.Duration
}

// NewPooledClient wraps next so each call occupies one pool slot for at most timeout
func NewPooledClient(next ChatClient, pool *dispatch.Pool, timeout time.Duration) *PooledClient {
	return &PooledClient{next: next, pool: pool, timeout: timeout}
}

func (c *PooledClient) Chat(ctx context.Context, req *ChatRequest) (string, error) {
	return dispatch.Call(ctx, c.pool, c.timeout, func(ctx context.Context) (string, error) {
		return c.next.Chat(ctx, req)
	})
}

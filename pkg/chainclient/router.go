package chainclient

import (
	"context"
	"fmt"
)

// Router dispatches calls to the client configured for each chain
type Router struct {
	clients map[int]Client
}

var _ Client = (*Router)(nil)

// NewRouter creates a router over per-chain clients
func NewRouter(clients map[int]Client) *Router {
	copied := make(map[int]Client, len(clients))
	for chainID, c := range clients {
		copied[chainID] = c
	}
	return &Router{clients: copied}
}

// Chains returns the configured chain IDs
func (r *Router) Chains() []int {
	ids := make([]int, 0, len(r.clients))
	for chainID := range r.clients {
		ids = append(ids, chainID)
	}
	return ids
}

func (r *Router) client(chainID int) (Client, error) {
	c, ok := r.clients[chainID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownChain, chainID)
	}
	return c, nil
}

func (r *Router) Submit(ctx context.Context, chainID int, action Action, args Args) (SubmitResult, error) {
	c, err := r.client(chainID)
	if err != nil {
		return SubmitResult{}, err
	}
	return c.Submit(ctx, chainID, action, args)
}

func (r *Router) Read(ctx context.Context, chainID int, query Query) (string, error) {
	c, err := r.client(chainID)
	if err != nil {
		return "", err
	}
	return c.Read(ctx, chainID, query)
}

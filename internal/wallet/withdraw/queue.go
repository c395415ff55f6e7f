package withdraw

import "context"

// Queue is the durable FIFO the engine works on. Only the engine removes
// entries and only the allocator assigns tokens.
type Queue interface {
	// PeekHead returns the oldest pending request or ErrQueueEmpty.
	PeekHead(ctx context.Context) (*Request, error)

	// Persist stores the request's token. A stored token is never replaced;
	// persisting a different one fails with ErrTokenConflict.
	Persist(ctx context.Context, req *Request) error

	// RemoveHead completes the request with id, which must be the current head.
	RemoveHead(ctx context.Context, id string) error

	// Len counts pending requests.
	Len(ctx context.Context) (int, error)
}

// ListOptions filters Store.List, a zero value lists everything.
type ListOptions struct {
	Status Status
	Limit  int
}

// Store is the queue plus the operations used around the engine's lifetime:
// injecting requests before start and inspecting them after shutdown.
type Store interface {
	Queue

	Enqueue(ctx context.Context, req *Request) error

	// List returns requests in queue order, completed ones included unless filtered.
	List(ctx context.Context, opts ListOptions) ([]*Request, error)
}

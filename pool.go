package bind

import "context"

// defaultWorkerPoolSize bounds concurrent blocking provider executions when
// the app does not configure its own size.
const defaultWorkerPoolSize = 8

// workerPool is a bounded semaphore for blocking providers. A blocking
// provider occupies one slot for the duration of its call, so runaway
// blocking work cannot stall every in-flight request.
type workerPool struct {
	slots chan struct{}
}

func newWorkerPool(size int) *workerPool {
	return &workerPool{slots: make(chan struct{}, size)}
}

// run executes fn while holding a pool slot. Acquisition respects context
// cancellation: a disconnected client never waits for a slot.
func (p *workerPool) run(ctx context.Context, fn func() (any, error)) (any, error) {
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-p.slots }()
	return fn()
}

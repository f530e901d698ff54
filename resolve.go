package bind

import (
	"context"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"
)

// bindingContext is the per-request mutable state: the argument accumulator
// and the cleanup group. It is never shared between requests; the mutex
// guards concurrent writes from providers within one batch.
type bindingContext struct {
	conn    Connection
	cleanup *CleanupGroup
	state   bindState

	mu   sync.Mutex
	args Args
}

func newBindingContext(conn Connection) *bindingContext {
	return &bindingContext{
		conn:    conn,
		cleanup: NewCleanupGroup(),
		args:    make(Args),
	}
}

// snapshot copies the accumulated arguments for handing to a provider.
// Providers see a stable view even while batch peers are writing.
func (bc *bindingContext) snapshot() Args {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	out := make(Args, len(bc.args))
	for k, v := range bc.args {
		out[k] = v
	}
	return out
}

func (bc *bindingContext) has(key string) bool {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	_, ok := bc.args[key]
	return ok
}

func (bc *bindingContext) put(key string, v any) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	bc.args[key] = v
}

// resolveDependencies executes the batch plan. Batches run strictly in
// sequence; within a batch providers run concurrently with no ordering
// guarantee. Cancellation is observed between batches and before each
// provider so a disconnected client does not run avoidable work.
func (reg *Registration) resolveDependencies(bc *bindingContext) error {
	ctx := bc.conn.Context()

	for _, batch := range reg.batches {
		if err := ctx.Err(); err != nil {
			return err
		}

		if len(batch) == 1 {
			if err := reg.resolveOne(ctx, bc, batch[0]); err != nil {
				return err
			}
			continue
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, node := range batch {
			node := node
			g.Go(func() error {
				return reg.resolveOne(gctx, bc, node)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	return nil
}

// resolveOne resolves a single dependency name, memoized per request: a name
// referenced by several other dependencies or handler parameters is produced
// at most once. A result implementing io.Closer registers its teardown at
// the moment of acquisition.
func (reg *Registration) resolveOne(ctx context.Context, bc *bindingContext, node *dependencyNode) error {
	if bc.has(node.key) {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	args := bc.snapshot()
	if err := node.provider.plan.validator.validate(args); err != nil {
		return err
	}

	var (
		v   any
		err error
	)
	if node.provider.blocking {
		v, err = reg.pool.run(ctx, func() (any, error) {
			return node.provider.fn(ctx, args)
		})
	} else {
		v, err = node.provider.fn(ctx, args)
	}
	if err != nil {
		if IsCancellation(err) {
			return err
		}
		return fmt.Errorf("%w %q: %w", ErrProvider, node.key, err)
	}

	if closer, ok := v.(io.Closer); ok {
		bc.cleanup.AddCloser(closer)
	}
	bc.put(node.key, v)
	return nil
}

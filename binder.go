package bind

import (
	"log/slog"
)

// bindState enumerates the binder's state machine. Error is reachable from
// every state after Init; Cleanup runs on every path out of the machine.
type bindState int

const (
	stateInit bindState = iota
	stateBeforeHook
	stateExtract
	stateResolve
	stateValidate
	stateInvoke
	stateCleanup
	stateDone
	stateError
)

func (s bindState) String() string {
	switch s {
	case stateBeforeHook:
		return "before_hook"
	case stateExtract:
		return "extract_params"
	case stateResolve:
		return "resolve_dependencies"
	case stateValidate:
		return "validate"
	case stateInvoke:
		return "invoke"
	case stateCleanup:
		return "cleanup"
	case stateDone:
		return "done"
	case stateError:
		return "error"
	default:
		return "init"
	}
}

// Bind is the entry point exposed to the dispatch layer: given a connection,
// it returns the validated, fully typed argument set plus the cleanup handle
// the caller must Close after invoking the handler. On failure anything
// already acquired has been torn down and a structured error is returned.
func (reg *Registration) Bind(conn Connection) (Args, *CleanupGroup, error) {
	bc := newBindingContext(conn)
	if err := reg.bind(bc); err != nil {
		reg.closeCleanup(bc, err)
		return nil, nil, err
	}
	return bc.args, bc.cleanup, nil
}

// bind runs ExtractParams → ResolveDependencies → Validate. Callers own the
// cleanup group regardless of outcome.
func (reg *Registration) bind(bc *bindingContext) error {
	ctx := bc.conn.Context()

	bc.state = stateExtract
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := reg.plan.extract(bc.conn, reg, bc.args); err != nil {
		return err
	}

	bc.state = stateResolve
	if err := reg.resolveDependencies(bc); err != nil {
		return err
	}

	bc.state = stateValidate
	if err := ctx.Err(); err != nil {
		return err
	}
	return reg.plan.validator.validate(bc.args)
}

// Dispatch runs the full state machine for one request: guards and the
// before hook, binding, handler invocation, the after hook, exception
// mapping, and guaranteed cleanup. Merged middleware wraps the whole
// machine, outermost(App) first.
func (reg *Registration) Dispatch(conn Connection) (any, error) {
	d := reg.dispatchCore
	for i := len(reg.merged.middleware) - 1; i >= 0; i-- {
		d = reg.merged.middleware[i](d)
	}
	return d(conn)
}

func (reg *Registration) dispatchCore(conn Connection) (result any, err error) {
	ctx := conn.Context()
	bc := newBindingContext(conn)

	defer func() {
		result, err = reg.finishDispatch(conn, bc, result, err)
	}()

	// BeforeHook: guards authorize first, then the hook may short-circuit
	// directly past Invoke.
	bc.state = stateBeforeHook
	for _, guard := range reg.merged.guards {
		if err := guard(ctx, conn, reg); err != nil {
			return nil, err
		}
	}
	if reg.merged.before != nil {
		res, err := reg.merged.before(ctx, conn)
		if err != nil {
			return nil, err
		}
		if res != nil {
			return res, nil
		}
	}

	// ExtractParams → ResolveDependencies → Validate
	if err := reg.bind(bc); err != nil {
		return nil, err
	}

	// Invoke
	bc.state = stateInvoke
	result, err = reg.handler.fn(ctx, bc.args)
	if err != nil {
		return nil, err
	}

	if reg.merged.after != nil {
		result, err = reg.merged.after(ctx, result)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

// finishDispatch is the Cleanup state plus error recovery. Cleanup runs
// unconditionally; a teardown failure never suppresses the primary outcome.
// Cancellation is passed through untouched: no response can be produced for
// it. Other errors consult the merged exception handler map.
func (reg *Registration) finishDispatch(conn Connection, bc *bindingContext, result any, primary error) (any, error) {
	cleanupErr := reg.closeCleanup(bc, primary)

	if primary == nil {
		bc.state = stateDone
		return result, cleanupErr
	}
	bc.state = stateError
	if IsCancellation(primary) {
		return nil, primary
	}
	if handler, ok := reg.ExceptionHandlerFor(primary); ok {
		if recovered, rerr := handler(conn, primary); rerr == nil {
			return recovered, nil
		}
	}
	return nil, primary
}

// closeCleanup tears down every acquired resource and reports failures
// without masking the primary error.
func (reg *Registration) closeCleanup(bc *bindingContext, primary error) error {
	failedIn := bc.state
	bc.state = stateCleanup
	err := bc.cleanup.Close()
	if err == nil {
		return nil
	}
	reg.logger.LogAttrs(bc.conn.Context(), slog.LevelError, "cleanup failed",
		slog.String("method", reg.method),
		slog.String("pattern", reg.pattern),
		slog.String("state", failedIn.String()),
		slog.Any("error", err),
		slog.Bool("after_primary_error", primary != nil),
	)
	if primary != nil {
		return nil
	}
	return err
}

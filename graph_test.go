package bind_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/bind"
)

func constProvider(v any) bind.ProviderFunc {
	return func(_ context.Context, _ bind.Args) (any, error) {
		return v, nil
	}
}

func TestGraph_chain_layers_into_sequential_batches(t *testing.T) {
	t.Parallel()

	// c depends on b depends on a: three single-node batches in order.
	app := bind.NewApp(bind.WithDefaults(
		bind.WithDependencyFunc("a", constProvider(1)),
		bind.WithDependencyFunc("b", constProvider(2),
			bind.WithProviderParams(bind.Param{Name: "a"})),
		bind.WithDependencyFunc("c", constProvider(3),
			bind.WithProviderParams(bind.Param{Name: "b"})),
	))
	c := app.Controller("/items")

	reg, err := bind.Get(c, "/list", noopHandler, bind.WithParams(bind.Param{Name: "c"}))
	require.NoError(t, err)

	info := reg.Inspect()
	require.Len(t, info.Dependencies, 3)
	assert.Equal(t, bind.DependencyInfo{Name: "a", Batch: 0}, info.Dependencies[0])
	assert.Equal(t, bind.DependencyInfo{Name: "b", Batch: 1}, info.Dependencies[1])
	assert.Equal(t, bind.DependencyInfo{Name: "c", Batch: 2}, info.Dependencies[2])
}

func TestGraph_diamond_shares_one_batch_per_level(t *testing.T) {
	t.Parallel()

	// left and right both depend on base; top depends on both. Three
	// batches: {base}, {left, right}, {top}.
	app := bind.NewApp(bind.WithDefaults(
		bind.WithDependencyFunc("base", constProvider("base")),
		bind.WithDependencyFunc("left", constProvider("left"),
			bind.WithProviderParams(bind.Param{Name: "base"})),
		bind.WithDependencyFunc("right", constProvider("right"),
			bind.WithProviderParams(bind.Param{Name: "base"})),
		bind.WithDependencyFunc("top", constProvider("top"),
			bind.WithProviderParams(bind.Param{Name: "left"}, bind.Param{Name: "right"})),
	))
	c := app.Controller("/items")

	reg, err := bind.Get(c, "/list", noopHandler, bind.WithParams(bind.Param{Name: "top"}))
	require.NoError(t, err)

	batches := make(map[string]int)
	for _, dep := range reg.Inspect().Dependencies {
		batches[dep.Name] = dep.Batch
	}
	assert.Equal(t, map[string]int{"base": 0, "left": 1, "right": 1, "top": 2}, batches)
}

func TestGraph_unrequested_dependencies_are_not_resolved(t *testing.T) {
	t.Parallel()

	app := bind.NewApp(bind.WithDefaults(
		bind.WithDependencyFunc("used", constProvider(1)),
		bind.WithDependencyFunc("unused", constProvider(2)),
	))
	c := app.Controller("/items")

	reg, err := bind.Get(c, "/list", noopHandler, bind.WithParams(bind.Param{Name: "used"}))
	require.NoError(t, err)

	deps := reg.Inspect().Dependencies
	require.Len(t, deps, 1)
	assert.Equal(t, "used", deps[0].Name)
}

func TestGraph_cycle_detected_at_registration(t *testing.T) {
	t.Parallel()

	app := bind.NewApp(bind.WithDefaults(
		bind.WithDependencyFunc("a", constProvider(1),
			bind.WithProviderParams(bind.Param{Name: "b"})),
		bind.WithDependencyFunc("b", constProvider(2),
			bind.WithProviderParams(bind.Param{Name: "a"})),
	))
	c := app.Controller("/items")

	_, err := bind.Get(c, "/list", noopHandler, bind.WithParams(bind.Param{Name: "a"}))
	require.Error(t, err)
	assert.True(t, bind.IsConfigError(err))
	assert.Contains(t, err.Error(), "cyclic dependency detected")
	assert.Contains(t, err.Error(), "a -> b -> a")
}

func TestGraph_self_cycle_detected(t *testing.T) {
	t.Parallel()

	app := bind.NewApp(bind.WithDefaults(
		bind.WithDependencyFunc("a", constProvider(1),
			bind.WithProviderParams(bind.Param{Name: "a", Source: bind.SourceDependency})),
	))
	c := app.Controller("/items")

	_, err := bind.Get(c, "/list", noopHandler, bind.WithParams(bind.Param{Name: "a"}))
	require.Error(t, err)
	assert.True(t, bind.IsConfigError(err))
	assert.Contains(t, err.Error(), "a -> a")
}

func TestGraph_missing_dependency_is_config_error(t *testing.T) {
	t.Parallel()

	app := bind.NewApp()
	c := app.Controller("/items")

	_, err := bind.Get(c, "/list", noopHandler,
		bind.WithParams(bind.Param{Name: "db", Source: bind.SourceDependency}))
	require.Error(t, err)
	assert.True(t, bind.IsConfigError(err))
	assert.Contains(t, err.Error(), `dependency "db" is not provided by any layer`)
}

func TestGraph_blocking_flag_surfaces_in_introspection(t *testing.T) {
	t.Parallel()

	app := bind.NewApp(bind.WithDefaults(
		bind.WithDependencyFunc("report", constProvider("slow"), bind.Blocking()),
	))
	c := app.Controller("/items")

	reg, err := bind.Get(c, "/list", noopHandler, bind.WithParams(bind.Param{Name: "report"}))
	require.NoError(t, err)

	deps := reg.Inspect().Dependencies
	require.Len(t, deps, 1)
	assert.True(t, deps[0].Blocking)
}

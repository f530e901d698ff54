package bind_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/bind"
	"github.com/bjaus/bind/bindtest"
)

func ptr[T any](v T) *T { return &v }

// bindOne registers a handler with a single constrained query parameter and
// binds the given raw value.
func bindOne(t *testing.T, p bind.Param, values ...string) error {
	t.Helper()
	reg := registerEcho(t, "/list", p)
	conn := bindtest.NewConn()
	if len(values) > 0 {
		conn = conn.WithQuery(p.Name, values...)
	}
	_, cleanup, err := reg.Bind(conn)
	if err == nil {
		require.NoError(t, cleanup.Close())
	}
	return err
}

func TestConstraint_string_bounds(t *testing.T) {
	t.Parallel()

	p := bind.Param{Name: "q", Constraints: &bind.Constraints{
		MinLength: ptr(2),
		MaxLength: ptr(5),
	}}

	require.NoError(t, bindOne(t, p, "abc"))

	err := bindOne(t, p, "a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "constraint violation")

	var problem *bind.ProblemDetail
	require.ErrorAs(t, err, &problem)
	assert.Contains(t, problem.Errors[0].Message, "at least 2 characters")

	err = bindOne(t, p, "abcdef")
	require.Error(t, err)
	require.ErrorAs(t, err, &problem)
	assert.Contains(t, problem.Errors[0].Message, "at most 5 characters")
}

func TestConstraint_pattern_and_enum(t *testing.T) {
	t.Parallel()

	p := bind.Param{Name: "sort", Constraints: &bind.Constraints{
		Pattern: `^[a-z_]+$`,
		Enum:    []string{"name", "created_at"},
	}}

	require.NoError(t, bindOne(t, p, "name"))

	var problem *bind.ProblemDetail
	err := bindOne(t, p, "UPPER")
	require.Error(t, err)
	require.ErrorAs(t, err, &problem)
	require.Len(t, problem.Errors, 2)
	assert.Contains(t, problem.Errors[0].Message, "must match pattern")
	assert.Contains(t, problem.Errors[1].Message, "must be one of [name,created_at]")
}

func TestConstraint_numeric_bounds(t *testing.T) {
	t.Parallel()

	p := bind.Param{Name: "page", Type: bind.TypeInt, Constraints: &bind.Constraints{
		Min: ptr(1.0),
		Max: ptr(100.0),
	}}

	require.NoError(t, bindOne(t, p, "1"))
	require.NoError(t, bindOne(t, p, "100"))

	var problem *bind.ProblemDetail
	err := bindOne(t, p, "0")
	require.Error(t, err)
	require.ErrorAs(t, err, &problem)
	assert.Contains(t, problem.Errors[0].Message, "must be at least 1")

	err = bindOne(t, p, "101")
	require.Error(t, err)
	require.ErrorAs(t, err, &problem)
	assert.Contains(t, problem.Errors[0].Message, "must be at most 100")
}

func TestConstraint_exclusive_bounds(t *testing.T) {
	t.Parallel()

	p := bind.Param{Name: "rate", Type: bind.TypeFloat, Constraints: &bind.Constraints{
		Min:          ptr(0.0),
		Max:          ptr(1.0),
		ExclusiveMin: true,
		ExclusiveMax: true,
	}}

	require.NoError(t, bindOne(t, p, "0.5"))
	require.Error(t, bindOne(t, p, "0"))
	require.Error(t, bindOne(t, p, "1"))
}

func TestConstraint_multiple_of(t *testing.T) {
	t.Parallel()

	p := bind.Param{Name: "step", Type: bind.TypeInt, Constraints: &bind.Constraints{
		MultipleOf: ptr(5.0),
	}}

	require.NoError(t, bindOne(t, p, "15"))

	var problem *bind.ProblemDetail
	err := bindOne(t, p, "7")
	require.Error(t, err)
	require.ErrorAs(t, err, &problem)
	assert.Contains(t, problem.Errors[0].Message, "must be a multiple of 5")
}

func TestConstraint_item_bounds_on_plural(t *testing.T) {
	t.Parallel()

	p := bind.Param{Name: "tag", Plural: true, Constraints: &bind.Constraints{
		MinItems: ptr(1),
		MaxItems: ptr(2),
	}}

	require.NoError(t, bindOne(t, p, "a", "b"))

	var problem *bind.ProblemDetail
	err := bindOne(t, p, "a", "b", "c")
	require.Error(t, err)
	require.ErrorAs(t, err, &problem)
	assert.Contains(t, problem.Errors[0].Message, "must have at most 2 items")
}

func TestConstraint_const_value(t *testing.T) {
	t.Parallel()

	p := bind.Param{Name: "version", Constraints: &bind.Constraints{
		Const: "v2",
	}}

	require.NoError(t, bindOne(t, p, "v2"))

	var problem *bind.ProblemDetail
	err := bindOne(t, p, "v1")
	require.Error(t, err)
	require.ErrorAs(t, err, &problem)
	assert.Contains(t, problem.Errors[0].Message, "must be the constant value v2")
}

func TestConstraint_const_numeric_value(t *testing.T) {
	t.Parallel()

	// An untyped int constant must match the int64 an int-typed parameter
	// extracts to.
	p := bind.Param{Name: "limit", Type: bind.TypeInt, Constraints: &bind.Constraints{
		Const: 50,
	}}

	require.NoError(t, bindOne(t, p, "50"))

	var problem *bind.ProblemDetail
	err := bindOne(t, p, "49")
	require.Error(t, err)
	require.ErrorAs(t, err, &problem)
	assert.Contains(t, problem.Errors[0].Message, "must be the constant value 50")
}

func TestConstraint_lowercase_folds_before_checks(t *testing.T) {
	t.Parallel()

	p := bind.Param{Name: "code", Constraints: &bind.Constraints{
		LowerCase: true,
		Enum:      []string{"alpha", "beta"},
	}}

	require.NoError(t, bindOne(t, p, "ALPHA"))
	require.Error(t, bindOne(t, p, "gamma"))
}

func TestConstraint_all_violations_collected(t *testing.T) {
	t.Parallel()

	reg := registerEcho(t, "/list",
		bind.Param{Name: "q", Constraints: &bind.Constraints{MinLength: ptr(3)}},
		bind.Param{Name: "page", Type: bind.TypeInt, Constraints: &bind.Constraints{Min: ptr(1.0)}},
	)

	conn := bindtest.NewConn().WithQuery("q", "x").WithQuery("page", "0")
	_, _, err := reg.Bind(conn)
	require.Error(t, err)

	var problem *bind.ProblemDetail
	require.ErrorAs(t, err, &problem)
	require.Len(t, problem.Errors, 2)
	assert.Contains(t, problem.Detail, "2 constraint violation")
}

func TestConstraint_wrapped_merges_one_extra_level(t *testing.T) {
	t.Parallel()

	// Outer wins on collision; one extra nesting level contributes missing
	// fields.
	p := bind.Param{Name: "q", Constraints: &bind.Constraints{
		MinLength: ptr(3),
		Wrapped: &bind.Constraints{
			MinLength: ptr(10),
			MaxLength: ptr(5),
		},
	}}

	require.NoError(t, bindOne(t, p, "abc"))
	require.Error(t, bindOne(t, p, "ab"))
	require.Error(t, bindOne(t, p, "abcdef"))
}

func TestConstraint_wrapping_beyond_one_extra_level_ignored(t *testing.T) {
	t.Parallel()

	// The second wrapped level contributes MaxLength; the third declares a
	// MinLength that must never apply.
	p := bind.Param{Name: "q", Constraints: &bind.Constraints{
		Wrapped: &bind.Constraints{
			Wrapped: &bind.Constraints{
				MaxLength: ptr(4),
				Wrapped: &bind.Constraints{
					MinLength: ptr(3),
				},
			},
		},
	}}

	require.NoError(t, bindOne(t, p, "ab"))
	require.Error(t, bindOne(t, p, "abcde"))
}

package bind_test

import (
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/bind"
	"github.com/bjaus/bind/bindtest"
)

func TestExtract_query_singular_collapses_to_first(t *testing.T) {
	t.Parallel()

	reg := registerEcho(t, "/list", bind.Param{Name: "page", Type: bind.TypeInt})

	conn := bindtest.NewConn().WithQuery("page", "2", "9")
	args, cleanup, err := reg.Bind(conn)
	require.NoError(t, err)
	defer func() { require.NoError(t, cleanup.Close()) }()

	assert.Equal(t, int64(2), args["page"])
}

func TestExtract_query_strict_cardinality_rejects_repeats(t *testing.T) {
	t.Parallel()

	app := bind.NewApp(bind.WithStrictQueryCardinality())
	reg, err := bind.Get(app.Controller("/items"), "/list", noopHandler,
		bind.WithParams(bind.Param{Name: "page", Type: bind.TypeInt}))
	require.NoError(t, err)

	_, _, err = reg.Bind(bindtest.NewConn().WithQuery("page", "2", "9"))
	require.Error(t, err)

	var problem *bind.ProblemDetail
	require.ErrorAs(t, err, &problem)
	require.Len(t, problem.Errors, 1)
	assert.Equal(t, "page", problem.Errors[0].Field)
	assert.Contains(t, problem.Errors[0].Message, "more than once")

	// A single occurrence still binds.
	args, cleanup, err := reg.Bind(bindtest.NewConn().WithQuery("page", "2"))
	require.NoError(t, err)
	defer func() { require.NoError(t, cleanup.Close()) }()
	assert.Equal(t, int64(2), args["page"])
}

func TestExtract_query_plural_keeps_all_values_in_order(t *testing.T) {
	t.Parallel()

	reg := registerEcho(t, "/list", bind.Param{Name: "tag", Plural: true})

	conn := bindtest.NewConn().WithQuery("tag", "b", "a", "b")
	args, cleanup, err := reg.Bind(conn)
	require.NoError(t, err)
	defer func() { require.NoError(t, cleanup.Close()) }()

	assert.Equal(t, []any{"b", "a", "b"}, args["tag"])
}

func TestExtract_query_default_applies_when_absent(t *testing.T) {
	t.Parallel()

	reg := registerEcho(t, "/list",
		bind.Param{Name: "page", Type: bind.TypeInt, Default: int64(1)},
		bind.Param{Name: "limit", Type: bind.TypeInt},
	)

	args, cleanup, err := reg.Bind(bindtest.NewConn())
	require.NoError(t, err)
	defer func() { require.NoError(t, cleanup.Close()) }()

	assert.Equal(t, int64(1), args["page"])
	_, present := args["limit"]
	assert.False(t, present)
}

func TestExtract_required_missing_collects_all_fields(t *testing.T) {
	t.Parallel()

	reg := registerEcho(t, "/list",
		bind.Param{Name: "page", Type: bind.TypeInt, Required: true},
		bind.Param{Name: "q", Required: true},
	)

	_, _, err := reg.Bind(bindtest.NewConn())
	require.Error(t, err)

	var problem *bind.ProblemDetail
	require.ErrorAs(t, err, &problem)
	assert.Equal(t, http.StatusBadRequest, problem.Status)
	require.Len(t, problem.Errors, 2)

	fields := []string{problem.Errors[0].Field, problem.Errors[1].Field}
	assert.ElementsMatch(t, []string{"page", "q"}, fields)
}

func TestExtract_header_and_cookie_with_alias(t *testing.T) {
	t.Parallel()

	reg := registerEcho(t, "/list",
		bind.Param{Name: "trace", Source: bind.SourceHeader, Alias: "X-Trace-ID"},
		bind.Param{Name: "session", Source: bind.SourceCookie, Alias: "sid"},
	)

	conn := bindtest.NewConn().
		WithHeader("X-Trace-ID", "t-123").
		WithCookie("sid", "s-456")

	args, cleanup, err := reg.Bind(conn)
	require.NoError(t, err)
	defer func() { require.NoError(t, cleanup.Close()) }()

	assert.Equal(t, "t-123", args["trace"])
	assert.Equal(t, "s-456", args["session"])
}

func TestExtract_reserved_connection_attributes(t *testing.T) {
	t.Parallel()

	reg := registerEcho(t, "/list",
		bind.Param{Name: bind.ReservedRequest},
		bind.Param{Name: bind.ReservedState},
		bind.Param{Name: bind.ReservedHeaders},
		bind.Param{Name: bind.ReservedCookies},
		bind.Param{Name: bind.ReservedQuery},
	)

	state := bind.NewState()
	state.Set("started", true)
	conn := bindtest.NewConn().
		WithState(state).
		WithHeader("X-A", "1").
		WithCookie("c", "2").
		WithQuery("q", "3")

	args, cleanup, err := reg.Bind(conn)
	require.NoError(t, err)
	defer func() { require.NoError(t, cleanup.Close()) }()

	assert.Same(t, conn, args[bind.ReservedRequest])
	assert.Same(t, state, args[bind.ReservedState])
	assert.Equal(t, http.Header{"X-A": {"1"}}, args[bind.ReservedHeaders])
	assert.Equal(t, map[string]string{"c": "2"}, args[bind.ReservedCookies])
	assert.Equal(t, url.Values{"q": {"3"}}, args[bind.ReservedQuery])
}

func TestExtract_raw_body_and_decoded_data(t *testing.T) {
	t.Parallel()

	body := []byte(`{"name":"widget","qty":3}`)
	reg := registerEcho(t, "/list",
		bind.Param{Name: bind.ReservedBody},
		bind.Param{Name: bind.ReservedData},
	)

	args, cleanup, err := reg.Bind(bindtest.NewConn().WithBody(body))
	require.NoError(t, err)
	defer func() { require.NoError(t, cleanup.Close()) }()

	assert.Equal(t, body, args[bind.ReservedBody])
	assert.Equal(t, map[string]any{"name": "widget", "qty": float64(3)}, args[bind.ReservedData])
}

func TestExtract_body_read_failure_is_server_error(t *testing.T) {
	t.Parallel()

	reg := registerEcho(t, "/list", bind.Param{Name: bind.ReservedBody})

	transport := errors.New("connection reset")
	_, _, err := reg.Bind(bindtest.NewConn().WithBodyError(transport))
	require.Error(t, err)
	assert.ErrorIs(t, err, bind.ErrReadBody)
	assert.ErrorIs(t, err, transport)
	assert.False(t, bind.IsClientError(err))
}

func TestExtract_body_decode_failure_is_server_error(t *testing.T) {
	t.Parallel()

	reg := registerEcho(t, "/list", bind.Param{Name: bind.ReservedData})

	_, _, err := reg.Bind(bindtest.NewConn().WithBody([]byte(`{"broken`)))
	require.Error(t, err)
	assert.ErrorIs(t, err, bind.ErrDecodeBody)
	assert.False(t, bind.IsClientError(err))
}

func TestExtract_empty_body_decodes_to_nil(t *testing.T) {
	t.Parallel()

	reg := registerEcho(t, "/list", bind.Param{Name: bind.ReservedData})

	args, cleanup, err := reg.Bind(bindtest.NewConn())
	require.NoError(t, err)
	defer func() { require.NoError(t, cleanup.Close()) }()

	assert.Nil(t, args[bind.ReservedData])
}

func TestExtract_reserved_name_as_dependency_key_rejected(t *testing.T) {
	t.Parallel()

	app := bind.NewApp(bind.WithDefaults(
		bind.WithDependencyFunc("state", constProvider("shadow")),
	))

	_, err := bind.Get(app.Controller("/items"), "/list", noopHandler)
	require.Error(t, err)
	assert.True(t, bind.IsConfigError(err))
	assert.Contains(t, err.Error(), `reserved name "state"`)
}

func TestExtract_reserved_name_as_path_param_rejected(t *testing.T) {
	t.Parallel()

	app := bind.NewApp()
	_, err := bind.Get(app.Controller("/items"), "/{body}", noopHandler)
	require.Error(t, err)
	assert.True(t, bind.IsConfigError(err))
	assert.Contains(t, err.Error(), `reserved name "body"`)
}

func TestExtract_path_and_dependency_name_clash_rejected(t *testing.T) {
	t.Parallel()

	app := bind.NewApp(bind.WithDefaults(
		bind.WithDependencyFunc("item_id", constProvider(1)),
	))

	_, err := bind.Get(app.Controller("/items"), "/{item_id:int}", noopHandler)
	require.Error(t, err)
	assert.True(t, bind.IsConfigError(err))
	assert.Contains(t, err.Error(), "ambiguous parameter resolution")
	assert.Contains(t, err.Error(), "item_id")
}

func TestExtract_query_parse_failure_reported_per_value(t *testing.T) {
	t.Parallel()

	reg := registerEcho(t, "/list",
		bind.Param{Name: "ids", Type: bind.TypeInt, Plural: true},
	)

	_, _, err := reg.Bind(bindtest.NewConn().WithQuery("ids", "1", "x", "3"))
	require.Error(t, err)

	var problem *bind.ProblemDetail
	require.ErrorAs(t, err, &problem)
	require.Len(t, problem.Errors, 1)
	assert.Equal(t, "ids", problem.Errors[0].Field)
	assert.Equal(t, "x", problem.Errors[0].Value)
}

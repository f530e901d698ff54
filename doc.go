// Package bind is the layered-configuration and request-binding engine that
// sits beneath a declarative connection-handler dispatch system. Handlers
// are registered on a four-level ownership tree (App → Router → Controller →
// Handler); each level may override guards, dependencies, middleware,
// exception mappings, and roughly twenty other settings, and the engine
// folds the chain into one immutable merged configuration per handler at
// registration time.
//
// Registration also computes a static parameter plan (which connection
// source feeds each declared parameter) and a dependency batch plan
// (which providers can resolve concurrently). Configuration mistakes such as
// dependency cycles, ambiguous provider bindings, and duplicate route
// signatures are fatal errors surfaced at registration, never per request.
//
//	app := bind.NewApp()
//	api := app.Router("/api", bind.WithDependencyFunc("db", openDB))
//	items := api.Controller("/items")
//
//	reg, err := bind.Get(items, "/{item_id:int}", getItem,
//	    bind.WithParams(
//	        bind.Param{Name: "item_id"},
//	        bind.Param{Name: "db"},
//	    ),
//	)
//
// Per request, the transport hands the engine a Connection; Bind returns the
// validated, typed argument set plus a cleanup handle, and Dispatch runs the
// full pipeline including guards, hooks, and handler invocation. Any
// resource acquired during resolution is released exactly once, in reverse
// acquisition order, on every exit path.
//
//	args, cleanup, err := reg.Bind(conn)
//	defer cleanup.Close()
package bind

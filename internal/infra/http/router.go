package http

import (
	"net/http"
)

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Router is the routing surface the routes package registers against.
// Route-level middleware is applied in order, first entry outermost:
//
//	r.POST("/sheet", h.LoadSheet, loadLimit, bodyLimit)
type Router interface {
	GET(path string, handler http.HandlerFunc, middlewares ...Middleware)
	POST(path string, handler http.HandlerFunc, middlewares ...Middleware)
	PUT(path string, handler http.HandlerFunc, middlewares ...Middleware)
	PATCH(path string, handler http.HandlerFunc, middlewares ...Middleware)
	DELETE(path string, handler http.HandlerFunc, middlewares ...Middleware)

	// Group registers routes under prefix with shared middleware.
	Group(prefix string, fn func(Router), middlewares ...Middleware)

	// Use adds global middleware. Must be called before routes are added.
	Use(middlewares ...Middleware)

	// With returns a Router whose routes share the given middleware.
	With(middlewares ...Middleware) Router

	// Handler returns the root handler for http.Server.
	Handler() http.Handler

	// Walk iterates over all registered routes.
	Walk(fn func(method, path string, handler http.Handler) error) error
}

// Chain applies middlewares to a handler, first entry outermost.
func Chain(handler http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return handler
}

// ChainFunc is like Chain but accepts http.HandlerFunc.
func ChainFunc(handler http.HandlerFunc, middlewares ...Middleware) http.Handler {
	return Chain(handler, middlewares...)
}

package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// chiRouter is the Chi-backed Router. Route patterns registered through it
// are what the metrics middleware reports as the route label.
type chiRouter struct {
	mux chi.Router
}

var _ Router = (*chiRouter)(nil)

// NewChiRouter creates a Router backed by Chi with path normalisation.
//
// RealIP is applied so per-client rate limits key on the forwarded address
// when the API runs behind a load balancer.
func NewChiRouter() Router {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.CleanPath)
	r.Use(chimw.StripSlashes)
	return &chiRouter{mux: r}
}

// NewBareChiRouter creates a Router without any built-in middleware.
// Handler tests use it to exercise routes with exact request paths.
func NewBareChiRouter() Router {
	return &chiRouter{mux: chi.NewRouter()}
}

func (r *chiRouter) GET(path string, handler http.HandlerFunc, middlewares ...Middleware) {
	r.mux.Get(path, wrap(handler, middlewares))
}

func (r *chiRouter) POST(path string, handler http.HandlerFunc, middlewares ...Middleware) {
	r.mux.Post(path, wrap(handler, middlewares))
}

func (r *chiRouter) PUT(path string, handler http.HandlerFunc, middlewares ...Middleware) {
	r.mux.Put(path, wrap(handler, middlewares))
}

func (r *chiRouter) PATCH(path string, handler http.HandlerFunc, middlewares ...Middleware) {
	r.mux.Patch(path, wrap(handler, middlewares))
}

func (r *chiRouter) DELETE(path string, handler http.HandlerFunc, middlewares ...Middleware) {
	r.mux.Delete(path, wrap(handler, middlewares))
}

// Group mounts a sub-router under prefix. Group middleware runs before any
// route-level middleware.
func (r *chiRouter) Group(prefix string, fn func(Router), middlewares ...Middleware) {
	r.mux.Route(prefix, func(cr chi.Router) {
		for _, mw := range middlewares {
			cr.Use(mw)
		}
		fn(&chiRouter{mux: cr})
	})
}

// Use appends global middleware. Chi requires this before any route is
// registered on the same mux.
func (r *chiRouter) Use(middlewares ...Middleware) {
	for _, mw := range middlewares {
		r.mux.Use(mw)
	}
}

// With returns an inline router whose routes share the given middleware.
func (r *chiRouter) With(middlewares ...Middleware) Router {
	fns := make([]func(http.Handler) http.Handler, len(middlewares))
	for i, mw := range middlewares {
		fns[i] = mw
	}
	return &chiRouter{mux: r.mux.With(fns...)}
}

func (r *chiRouter) Handler() http.Handler {
	return r.mux
}

// Walk visits every registered route, skipping Chi's mount wildcards.
func (r *chiRouter) Walk(fn func(method, path string, handler http.Handler) error) error {
	return chi.Walk(r.mux, func(method, route string, handler http.Handler, _ ...func(http.Handler) http.Handler) error {
		if route == "/*" {
			return nil
		}
		return fn(method, route, handler)
	})
}

// wrap applies route middleware, first entry outermost.
func wrap(h http.HandlerFunc, middlewares []Middleware) http.HandlerFunc {
	if len(middlewares) == 0 {
		return h
	}
	return ChainFunc(h, middlewares...).ServeHTTP
}

// Package routing builds the chi router of the server from the route table
// in the configuration. Each route names a handler and, optionally, route
// specific middleware; both are resolved by name.
package routing

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/teilomillet/prompt2json/config"
	"github.com/teilomillet/prompt2json/errors"
	"github.com/teilomillet/prompt2json/server/middleware"
	"go.uber.org/zap"
)

// Middleware wraps a handler.
type Middleware = func(http.Handler) http.Handler

// Router handles configuration driven HTTP routing.
type Router struct {
	router     chi.Router
	handlers   map[string]http.Handler
	middleware map[string]Middleware
	logger     *zap.Logger
}

// NewRouter creates a router serving routes. global middleware wraps every
// request, including unmatched ones, in the given order. A route naming an
// unknown handler or middleware is an error.
func NewRouter(routes []config.RouteConfig, handlers map[string]http.Handler, named map[string]Middleware, logger *zap.Logger, global ...Middleware) (*Router, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Router{
		router:     chi.NewRouter(),
		handlers:   handlers,
		middleware: named,
		logger:     logger,
	}

	r.router.Use(global...)
	r.router.NotFound(notFound)
	r.router.MethodNotAllowed(methodNotAllowed)

	for _, route := range routes {
		if err := r.addRoute(route); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Router) addRoute(route config.RouteConfig) error {
	handler, ok := r.handlers[route.Handler]
	if !ok {
		return fmt.Errorf("route %s: unknown handler %q", route.Path, route.Handler)
	}

	chain := make([]Middleware, 0, len(route.Middleware))
	for _, name := range route.Middleware {
		mw, ok := r.middleware[name]
		if !ok {
			return fmt.Errorf("route %s: unknown middleware %q", route.Path, name)
		}
		chain = append(chain, mw)
	}

	methods := route.Methods
	if len(methods) == 0 {
		methods = []string{http.MethodGet}
	}

	r.router.Group(func(router chi.Router) {
		router.Use(chain...)
		for _, method := range methods {
			router.Method(method, route.Path, handler)
		}
	})

	r.logger.Debug("route registered",
		zap.String("path", route.Path),
		zap.String("handler", route.Handler),
		zap.Strings("methods", methods),
		zap.Strings("middleware", route.Middleware),
	)
	return nil
}

func notFound(w http.ResponseWriter, r *http.Request) {
	errors.WriteError(w, errors.NewNotFoundError(middleware.GetRequestID(r.Context()), r.URL.Path))
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	errors.WriteError(w, errors.NewMethodNotAllowedError(middleware.GetRequestID(r.Context()), r.Method))
}

// ServeHTTP implements the http.Handler interface.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}

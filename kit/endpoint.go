// Package kit provides the transport-agnostic endpoint plumbing shared by
// the MCP and HTTP surfaces: a generic Endpoint type, middleware chaining,
// and request-scoped context accessors.
package kit

import "context"

// Endpoint is a generic request handler. Both the MCP tool surface and the
// control HTTP API decode into a typed request and invoke an Endpoint.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware wraps an Endpoint with cross-cutting behaviour.
type Middleware func(Endpoint) Endpoint

// Chain composes middleware left to right: the first middleware is the
// outermost.
func Chain(mws ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}

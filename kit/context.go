package kit

import "context"

type contextKey string

const (
	// SessionIDKey identifies the automation session a request belongs to.
	SessionIDKey contextKey = "kit_session_id"
	// RequestIDKey identifies one planner or operator request.
	RequestIDKey contextKey = "kit_request_id"
	// TransportKey records which surface a request arrived on: "mcp", "http".
	TransportKey contextKey = "kit_transport"
)

func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, SessionIDKey, id)
}

func GetSessionID(ctx context.Context) string {
	v, _ := ctx.Value(SessionIDKey).(string)
	return v
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

func GetRequestID(ctx context.Context) string {
	v, _ := ctx.Value(RequestIDKey).(string)
	return v
}

func WithTransport(ctx context.Context, t string) context.Context {
	return context.WithValue(ctx, TransportKey, t)
}

// GetTransport returns the request transport, defaulting to "local" for
// calls that did not arrive over a served surface.
func GetTransport(ctx context.Context) string {
	if v, ok := ctx.Value(TransportKey).(string); ok {
		return v
	}
	return "local"
}

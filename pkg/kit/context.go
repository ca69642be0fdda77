package kit

import "context"

// Transport names the surface a request arrived on.
type Transport string

const (
	TransportHTTP Transport = "http"
	TransportMCP  Transport = "mcp"
)

type ctxKey int

const (
	transportKey ctxKey = iota
	requestIDKey
)

func WithTransport(ctx context.Context, t Transport) context.Context {
	return context.WithValue(ctx, transportKey, t)
}

// GetTransport defaults to HTTP when unset.
func GetTransport(ctx context.Context) Transport {
	if v, ok := ctx.Value(transportKey).(Transport); ok {
		return v
	}
	return TransportHTTP
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func GetRequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}

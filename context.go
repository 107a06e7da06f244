package taskdesk

import "context"

type requestIDContextKey struct{}

// WithRequestID attaches a caller-chosen X-Request-ID to ctx. Requests sent
// with ctx reuse it instead of generating one.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, requestID)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	requestID, _ := ctx.Value(requestIDContextKey{}).(string)
	return requestID
}

package obs

import "context"

type ctxKeyRoute struct{}

// WithRoutePattern attaches the matched chi route pattern to the context so
// downstream middleware can label metrics and spans with the template
// instead of the raw path.
func WithRoutePattern(ctx context.Context, pattern string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKeyRoute{}, pattern)
}

// RoutePatternFromContext returns the stored route pattern, or "".
func RoutePatternFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	pattern, _ := ctx.Value(ctxKeyRoute{}).(string)
	return pattern
}

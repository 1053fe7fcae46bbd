package views

import (
	"context"
	"fmt"
)

// HandlerOptions are the handler settings views need to build URLs.
type HandlerOptions struct {
	PathPrefix string
}

type handlerOptionsKey struct{}

func WithHandlerOptions(ctx context.Context, opts HandlerOptions) context.Context {
	return context.WithValue(ctx, handlerOptionsKey{}, opts)
}

func handlerOptions(ctx context.Context) HandlerOptions {
	opts, _ := ctx.Value(handlerOptionsKey{}).(HandlerOptions)
	return opts
}

// link builds a dashboard URL below the path prefix.
func link(ctx context.Context, format string, args ...any) string {
	return handlerOptions(ctx).PathPrefix + fmt.Sprintf(format, args...)
}

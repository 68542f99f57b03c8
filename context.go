package authmachine

import (
	"context"
	"maps"
)

type clientMetadataContextKey struct{}

// WithClientMetadata attaches provider client metadata to ctx. Engine
// operations that accept metadata merge it under their explicit
// ClientMetadata, which wins on conflicting keys.
func WithClientMetadata(ctx context.Context, md map[string]string) context.Context {
	merged := maps.Clone(clientMetadataFromContext(ctx))
	if merged == nil {
		merged = make(map[string]string, len(md))
	}
	maps.Copy(merged, md)
	return context.WithValue(ctx, clientMetadataContextKey{}, merged)
}

func clientMetadataFromContext(ctx context.Context) map[string]string {
	if ctx == nil {
		return nil
	}
	md, _ := ctx.Value(clientMetadataContextKey{}).(map[string]string)
	return md
}

// clientMetadata merges the context metadata with explicit.
func clientMetadata(ctx context.Context, explicit map[string]string) map[string]string {
	fromCtx := clientMetadataFromContext(ctx)
	if len(fromCtx) == 0 {
		return maps.Clone(explicit)
	}
	out := maps.Clone(fromCtx)
	maps.Copy(out, explicit)
	return out
}

package store

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// coalesce runs fn once for concurrent callers sharing key. A caller whose context
// ends stops waiting without cancelling the shared computation.
func coalesce(ctx context.Context, group *singleflight.Group, key string, fn func(context.Context) (any, error)) (any, error, bool) {
	resultChan := group.DoChan(key, func() (any, error) {
		return fn(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err(), false
	case res := <-resultChan:
		return res.Val, res.Err, res.Shared
	}
}

package health

import (
	"context"
	"time"

	"github.com/maypok86/otter"
)

const cacheKey = "health"

// Checker is anything that can probe the API.
type Checker interface {
	Check(ctx context.Context) Result
}

// CachedChecker answers from the last result until it is ttl old, so a
// dashboard polling the health endpoint does not hit the API on every request.
type CachedChecker struct {
	checker Checker
	results otter.Cache[string, Result]
}

func NewCachedChecker(checker Checker, ttl time.Duration) (*CachedChecker, error) {
	results, err := otter.MustBuilder[string, Result](16).
		WithTTL(ttl).
		Build()
	if err != nil {
		return nil, err
	}

	return &CachedChecker{
		checker: checker,
		results: results,
	}, nil
}

func (c *CachedChecker) Check(ctx context.Context) Result {
	if result, found := c.results.Get(cacheKey); found {
		return result
	}

	result := c.checker.Check(ctx)
	if ctx.Err() == nil {
		c.results.Set(cacheKey, result)
	}
	return result
}

// Invalidate drops the cached result.
func (c *CachedChecker) Invalidate() {
	c.results.Delete(cacheKey)
}

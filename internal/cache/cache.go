// Package cache provides content-addressed memoization of enrichment
// results over interchangeable backends.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/sells-group/enrich-cli/internal/model"
)

// Cache memoizes prior enrichment outcomes. An expired entry behaves as a
// miss. Backend failures never propagate: Get degrades to a miss and
// Set/Delete/Clear to no-ops, so a cache outage means "always call the
// model", never an aborted pipeline.
type Cache interface {
	Get(ctx context.Context, key string) (*model.RawModelResult, bool)
	Set(ctx context.Context, key string, result *model.RawModelResult, ttl time.Duration)
	Delete(ctx context.Context, key string)
	// Clear removes entries whose key contains pattern; an empty pattern
	// wipes the whole namespace. Maintenance/test path only.
	Clear(ctx context.Context, pattern string)
}

// Key derives the cache key for a request. The fingerprint component ties
// the entry to one exact version of the record payload.
func Key(req model.EnrichmentRequest) string {
	return fmt.Sprintf("%s:%s:%s", req.TenantID, req.ContentHash, req.Field)
}

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/enrich-cli/internal/model"
)

func sampleResult(field string) *model.RawModelResult {
	return &model.RawModelResult{
		Field:         field,
		Value:         "pinot noir",
		RawConfidence: 0.82,
		ModelID:       "claude-haiku-4-5-20251001",
		Usage:         model.TokenUsage{InputTokens: 200, OutputTokens: 12},
		ProducedAt:    time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestKey(t *testing.T) {
	req := model.EnrichmentRequest{TenantID: "r1", ContentHash: "h1", Field: "variety"}
	assert.Equal(t, "r1:h1:variety", Key(req))
}

func TestMemory_SetGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	c.Set(ctx, "k1", sampleResult("variety"), time.Minute)

	got, ok := c.Get(ctx, "k1")
	require.True(t, ok)
	assert.Equal(t, "variety", got.Field)
	assert.Equal(t, "pinot noir", got.Value)
	assert.Equal(t, 0.82, got.RawConfidence)
}

func TestMemory_MissOnUnknownKey(t *testing.T) {
	c := NewMemory()
	_, ok := c.Get(context.Background(), "nope")
	assert.False(t, ok)
}

func TestMemory_ExpiryBehavesAsMiss(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	c.nowFunc = func() time.Time { return now }

	c.Set(ctx, "k1", sampleResult("variety"), time.Minute)

	_, ok := c.Get(ctx, "k1")
	require.True(t, ok)

	now = now.Add(61 * time.Second)
	_, ok = c.Get(ctx, "k1")
	assert.False(t, ok)
	// Lazy expiry evicted the entry.
	assert.Equal(t, 0, c.Len())
}

func TestMemory_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	c.Set(ctx, "k1", sampleResult("variety"), time.Minute)

	first, ok := c.Get(ctx, "k1")
	require.True(t, ok)
	first.Value = "mutated"

	second, ok := c.Get(ctx, "k1")
	require.True(t, ok)
	assert.Equal(t, "pinot noir", second.Value)
}

func TestMemory_Delete(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	c.Set(ctx, "k1", sampleResult("variety"), time.Minute)
	c.Delete(ctx, "k1")
	_, ok := c.Get(ctx, "k1")
	assert.False(t, ok)
}

func TestMemory_ClearPattern(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	c.Set(ctx, "acme:h1:variety", sampleResult("variety"), time.Minute)
	c.Set(ctx, "acme:h2:region", sampleResult("region"), time.Minute)
	c.Set(ctx, "globex:h3:variety", sampleResult("variety"), time.Minute)

	c.Clear(ctx, "acme:")

	_, ok := c.Get(ctx, "acme:h1:variety")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "acme:h2:region")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "globex:h3:variety")
	assert.True(t, ok)
}

func TestMemory_ClearAll(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	c.Set(ctx, "a", sampleResult("x"), time.Minute)
	c.Set(ctx, "b", sampleResult("y"), time.Minute)

	c.Clear(ctx, "")
	assert.Equal(t, 0, c.Len())
}

func TestMemory_ZeroTTLIgnored(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	c.Set(ctx, "k1", sampleResult("variety"), 0)
	_, ok := c.Get(ctx, "k1")
	assert.False(t, ok)
}

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryCache_SetGet(t *testing.T) {
	c := NewInMemoryCache()
	ctx := context.Background()

	type payload struct {
		Value string
	}
	require.NoError(t, c.Set(ctx, "k1", payload{Value: "hi"}, time.Minute))

	var out payload
	ok, err := c.Get(ctx, "k1", &out)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "hi", out.Value)
}

func TestInMemoryCache_Expiry(t *testing.T) {
	c := NewInMemoryCache()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", "v", time.Nanosecond))
	time.Sleep(time.Millisecond)

	var out string
	ok, err := c.Get(ctx, "k1", &out)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInMemoryCache_Delete(t *testing.T) {
	c := NewInMemoryCache()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", "v", 0))
	require.NoError(t, c.Delete(ctx, "k1"))

	var out string
	ok, _ := c.Get(ctx, "k1", &out)
	assert.False(t, ok)
}

func TestInMemoryCache_DeletePattern(t *testing.T) {
	c := NewInMemoryCache()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, MemoryKey("sess-1"), "a", 0))
	require.NoError(t, c.Set(ctx, MemoryKey("sess-1")+":extra", "b", 0))
	require.NoError(t, c.Set(ctx, MemoryKey("sess-2"), "c", 0))

	require.NoError(t, c.DeletePattern(ctx, MemoryPattern("sess-1")))

	var out string
	ok, _ := c.Get(ctx, MemoryKey("sess-1"), &out)
	assert.False(t, ok)
	ok, _ = c.Get(ctx, MemoryKey("sess-2"), &out)
	assert.True(t, ok)
}

func TestIntentKeyIsStableAndHashed(t *testing.T) {
	k1 := IntentKey("restaurants near me")
	k2 := IntentKey("restaurants near me")
	k3 := IntentKey("something else")

	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
	assert.Contains(t, k1, "agent:intent:")
	assert.NotContains(t, k1, "restaurants")
}

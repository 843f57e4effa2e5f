package memo

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetComputesOnce(t *testing.T) {
	c := New[string, int](8)

	calls := 0
	compute := func() int {
		calls++
		return 42
	}

	assert.Equal(t, 42, c.Get("k", compute))
	assert.Equal(t, 42, c.Get("k", compute))
	assert.Equal(t, 1, calls, "second lookup must hit the cache")
}

func TestEvictionDropsLeastRecentlyUsed(t *testing.T) {
	const size = 4
	c := New[int, int](size)

	for i := 0; i < size; i++ {
		c.Get(i, func() int { return i })
	}
	assert.Equal(t, size, c.Len())

	// Touch key 0 so it is most recent, then insert one more.
	c.Get(0, func() int { return 0 })
	c.Get(size, func() int { return size })

	assert.Equal(t, size, c.Len())
	assert.True(t, c.Contains(0), "recently touched entry survives")
	assert.False(t, c.Contains(1), "least recently used entry is evicted")
}

func TestEvictionAtCapacityPlusOne(t *testing.T) {
	const size = 16
	c := New[string, bool](size)

	for i := 0; i <= size; i++ {
		key := fmt.Sprintf("key-%d", i)
		c.Get(key, func() bool { return true })
	}

	assert.Equal(t, size, c.Len())
	assert.False(t, c.Contains("key-0"), "oldest entry evicted after size+1 inserts")
	assert.True(t, c.Contains(fmt.Sprintf("key-%d", size)))
}

func TestNewNonPositiveSizeUsesDefault(t *testing.T) {
	c := New[string, int](0)
	for i := 0; i < DefaultSize; i++ {
		c.Get(fmt.Sprintf("k%d", i), func() int { return i })
	}
	assert.Equal(t, DefaultSize, c.Len())
}

func TestPairKeyOrderIndependent(t *testing.T) {
	assert.Equal(t, PairKey("alpha", "beta"), PairKey("beta", "alpha"))
	assert.NotEqual(t, PairKey("alpha", "beta"), PairKey("alpha", "gamma"))
}

func TestPairKeyNoAmbiguity(t *testing.T) {
	// "ab"+"c" must not collide with "a"+"bc".
	assert.NotEqual(t, PairKey("ab", "c"), PairKey("a", "bc"))
}

func TestContentHashStable(t *testing.T) {
	assert.Equal(t, ContentHash("same text"), ContentHash("same text"))
	assert.NotEqual(t, ContentHash("same text"), ContentHash("other text"))
}

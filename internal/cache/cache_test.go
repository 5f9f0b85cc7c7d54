package cache

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestCache_SetGetExpire(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	c := NewCacheWithClock(time.Minute, clock)
	defer c.Close()

	c.Set("cities:7:5", []byte(`[]`))

	data, ok := c.Get("cities:7:5")
	assert.True(t, ok)
	assert.Equal(t, []byte(`[]`), data)

	clock.Advance(2 * time.Minute)

	_, ok = c.Get("cities:7:5")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Size())

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats["hits"])
	assert.Equal(t, uint64(1), stats["misses"])
}

func TestCache_DeleteAndClear(t *testing.T) {
	c := NewCache(time.Minute)
	defer c.Close()

	c.Set("cities:7:5", []byte("b"))
	c.Set("phone:0171", []byte("c"))
	assert.Equal(t, 2, c.Size())

	c.Delete("phone:0171")
	assert.Equal(t, 1, c.Size())

	c.Set("x", []byte("y"))
	c.Clear()
	assert.Equal(t, 0, c.Size())
}

func TestCache_CloseIsIdempotent(t *testing.T) {
	c := NewCache(time.Second)
	c.Close()
	c.Close()
}

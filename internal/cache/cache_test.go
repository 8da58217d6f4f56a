package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetSetExpiry(t *testing.T) {
	c := New(10, 60)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	c.Set("node-cpu", []byte("page"))
	got, ok := c.Get("node-cpu")
	assert.True(t, ok)
	assert.Equal(t, []byte("page"), got)

	_, ok = c.Get("mem")
	assert.False(t, ok)

	now = now.Add(61 * time.Second)
	_, ok = c.Get("node-cpu")
	assert.False(t, ok)

	c.cleanup()
	size, max := c.Stats()
	assert.Equal(t, 0, size)
	assert.Equal(t, 10, max)
}

func TestEvictsOldest(t *testing.T) {
	c := New(2, 60)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	c.Set("a", []byte("1"))
	now = now.Add(time.Second)
	c.Set("b", []byte("2"))
	now = now.Add(time.Second)
	c.Set("b", []byte("3")) // overwrite does not evict
	_, ok := c.Get("a")
	assert.True(t, ok)

	c.Set("c", []byte("4"))
	_, ok = c.Get("a")
	assert.False(t, ok)
	got, _ := c.Get("b")
	assert.Equal(t, []byte("3"), got)
}

func TestPurgeAndRun(t *testing.T) {
	c := New(2, 60)
	c.Set("a", []byte("1"))
	c.Purge()
	size, _ := c.Stats()
	assert.Equal(t, 0, size)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}

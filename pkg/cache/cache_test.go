package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTTLSetGet(t *testing.T) {
	c := New()
	c.Set("key", 42, time.Minute)
	v, ok := c.Get("key")
	assert.True(t, ok)
	assert.Equal(t, 42, v)
}

func TestTTLMissingKey(t *testing.T) {
	c := New()
	_, ok := c.Get("missing")
	assert.False(t, ok)
}

func TestTTLExpiry(t *testing.T) {
	c := New()
	c.Set("key", "value", time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	_, ok := c.Get("key")
	assert.False(t, ok)
}

func TestTTLDelete(t *testing.T) {
	c := New()
	c.Set("key", "value", time.Minute)
	c.Delete("key")
	_, ok := c.Get("key")
	assert.False(t, ok)
}

func TestTTLOverwrite(t *testing.T) {
	c := New()
	c.Set("key", 1, time.Minute)
	c.Set("key", 2, time.Minute)
	v, ok := c.Get("key")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
}

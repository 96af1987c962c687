package redis

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientAcceptsURLAndAddr(t *testing.T) {
	c, err := NewClient("redis://:secret@localhost:6380/2")
	require.NoError(t, err)
	assert.Equal(t, "localhost:6380", c.client.Options().Addr)
	assert.Equal(t, 2, c.client.Options().DB)
	assert.Equal(t, "secret", c.client.Options().Password)
	_ = c.Close()

	c, err = NewClient("cache:6379")
	require.NoError(t, err)
	assert.Equal(t, "cache:6379", c.client.Options().Addr)
	_ = c.Close()
}

func TestNewClientRejectsBadInput(t *testing.T) {
	_, err := NewClient("")
	assert.Error(t, err)

	_, err = NewClient("http://localhost:6379")
	assert.Error(t, err)
}

func TestIsNil(t *testing.T) {
	assert.False(t, IsNil(errors.New("x")))
	assert.False(t, IsNil(nil))
}

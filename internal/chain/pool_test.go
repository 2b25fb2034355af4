package chain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/chainkit/internal/apperror"
	"github.com/fd1az/chainkit/internal/config"
)

func TestPool_Client(t *testing.T) {
	pool := NewPool(map[string]config.NetworkConfig{
		"mainnet": {RPCURL: "http://127.0.0.1:1"},
		"empty":   {},
	})
	defer pool.Close()
	ctx := context.Background()

	_, err := pool.Client(ctx, "unknown")
	assert.True(t, apperror.HasCode(err, apperror.CodeUnknownNetwork))

	_, err = pool.Client(ctx, "empty")
	assert.True(t, apperror.HasCode(err, apperror.CodeConfigurationError))

	// http dialing is lazy, so no node is needed
	c1, err := pool.Client(ctx, "mainnet")
	require.NoError(t, err)
	c2, err := pool.Client(ctx, "mainnet")
	require.NoError(t, err)
	assert.Same(t, c1, c2)
	assert.Equal(t, []string{"mainnet"}, pool.Connected())

	pool.Close()
	assert.Empty(t, pool.Connected())
}

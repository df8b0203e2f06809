// Package storetest holds the behaviour every tokenstore.Backend must share.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/fieldsales/internal/tokenstore"
)

// Run exercises backend against the Backend contract. newBackend must
// return an empty backend on every call.
func Run(t *testing.T, newBackend func(t *testing.T) tokenstore.Backend) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		b := newBackend(t)
		v, ok, err := b.Get(ctx, tokenstore.KeyToken)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, v)
	})

	t.Run("set and get", func(t *testing.T) {
		b := newBackend(t)
		require.NoError(t, b.SetAll(ctx, map[string]string{
			tokenstore.KeyToken:     "tok-1",
			tokenstore.KeyUser:      `{"id":1}`,
			tokenstore.KeyTimestamp: "1700000000000",
		}))

		for key, want := range map[string]string{
			tokenstore.KeyToken:     "tok-1",
			tokenstore.KeyUser:      `{"id":1}`,
			tokenstore.KeyTimestamp: "1700000000000",
		} {
			v, ok, err := b.Get(ctx, key)
			require.NoError(t, err)
			assert.True(t, ok, key)
			assert.Equal(t, want, v, key)
		}
	})

	t.Run("last write wins", func(t *testing.T) {
		b := newBackend(t)
		require.NoError(t, b.SetAll(ctx, map[string]string{tokenstore.KeyToken: "old"}))
		require.NoError(t, b.SetAll(ctx, map[string]string{tokenstore.KeyToken: "new"}))

		v, _, err := b.Get(ctx, tokenstore.KeyToken)
		require.NoError(t, err)
		assert.Equal(t, "new", v)
	})

	t.Run("delete", func(t *testing.T) {
		b := newBackend(t)
		require.NoError(t, b.SetAll(ctx, map[string]string{
			tokenstore.KeyToken: "tok",
			tokenstore.KeyUser:  "{}",
		}))
		require.NoError(t, b.Delete(ctx, tokenstore.Keys...))

		for _, key := range tokenstore.Keys {
			_, ok, err := b.Get(ctx, key)
			require.NoError(t, err)
			assert.False(t, ok, key)
		}
	})

	t.Run("delete missing is not an error", func(t *testing.T) {
		b := newBackend(t)
		assert.NoError(t, b.Delete(ctx, tokenstore.Keys...))
	})
}

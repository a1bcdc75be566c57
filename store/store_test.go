package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// adapterContract runs the behavior every Adapter must satisfy.
func adapterContract(t *testing.T, a Adapter) {
	ctx := context.Background()

	t.Run("get missing key", func(t *testing.T) {
		v, ok, err := a.Get(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, v)
	})

	t.Run("set and get", func(t *testing.T) {
		require.NoError(t, a.Set(ctx, "k", json.RawMessage(`{"a":1}`)))
		v, ok, err := a.Get(ctx, "k")
		require.NoError(t, err)
		require.True(t, ok)
		assert.JSONEq(t, `{"a":1}`, string(v))
	})

	t.Run("overwrite", func(t *testing.T) {
		require.NoError(t, a.Set(ctx, "k", json.RawMessage(`{"a":2}`)))
		v, ok, err := a.Get(ctx, "k")
		require.NoError(t, err)
		require.True(t, ok)
		assert.JSONEq(t, `{"a":2}`, string(v))
	})

	t.Run("has", func(t *testing.T) {
		ok, err := a.Has(ctx, "k")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = a.Has(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("key with path separators", func(t *testing.T) {
		require.NoError(t, a.Set(ctx, "@webchat/session", json.RawMessage(`{"s":true}`)))
		v, ok, err := a.Get(ctx, "@webchat/session")
		require.NoError(t, err)
		require.True(t, ok)
		assert.JSONEq(t, `{"s":true}`, string(v))
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, a.Delete(ctx, "k"))
		_, ok, err := a.Get(ctx, "k")
		require.NoError(t, err)
		assert.False(t, ok)

		// Deleting a missing key is not an error.
		require.NoError(t, a.Delete(ctx, "k"))
	})

	t.Run("clear", func(t *testing.T) {
		require.NoError(t, a.Set(ctx, "x", json.RawMessage(`1`)))
		require.NoError(t, a.Set(ctx, "y", json.RawMessage(`2`)))
		require.NoError(t, a.Clear(ctx))

		for _, key := range []string{"x", "y", "@webchat/session"} {
			_, ok, err := a.Get(ctx, key)
			require.NoError(t, err)
			assert.False(t, ok, "key %q should be gone", key)
		}
	})
}

func TestMemoryAdapter(t *testing.T) {
	adapterContract(t, NewMemoryAdapter())
}

func TestFileAdapter(t *testing.T) {
	adapterContract(t, NewFileAdapter(t.TempDir()))
}

func TestFileAdapterSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first := NewFileAdapter(dir)
	require.NoError(t, first.Set(ctx, "@webchat/session", json.RawMessage(`{"sessionId":"s1"}`)))

	second := NewFileAdapter(dir)
	v, ok, err := second.Get(ctx, "@webchat/session")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"sessionId":"s1"}`, string(v))
}

func TestFileAdapterClearMissingDir(t *testing.T) {
	a := NewFileAdapter("/nonexistent/webchat-test-dir")
	assert.NoError(t, a.Clear(context.Background()))
}

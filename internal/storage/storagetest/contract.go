// Package storagetest checks that an entity.ArtifactStore behaves the way the
// conversion pipeline relies on.
package storagetest

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waveconv/entity"
)

// Run exercises store. Keys are created under a fresh prefix per call.
func Run(t *testing.T, store entity.ArtifactStore) {
	ctx := context.Background()

	t.Run("put then get", func(t *testing.T) {
		payload := bytes.Repeat([]byte("opus"), 4096)
		ref, err := store.Put(ctx, "converted/a.oga", bytes.NewReader(payload), entity.OutputContentType)
		require.NoError(t, err)
		assert.Equal(t, "converted/a.oga", ref.Key)
		assert.Equal(t, int64(len(payload)), ref.Size)

		got, err := store.Get(ctx, "converted/a.oga")
		require.NoError(t, err)
		defer got.Body.Close()

		body, err := io.ReadAll(got.Body)
		require.NoError(t, err)
		assert.Equal(t, payload, body)
		assert.Equal(t, int64(len(payload)), got.Size)
		assert.False(t, got.ModTime.IsZero())
	})

	t.Run("last write wins", func(t *testing.T) {
		_, err := store.Put(ctx, "uploads/b.wav", strings.NewReader("first"), "")
		require.NoError(t, err)
		_, err = store.Put(ctx, "uploads/b.wav", strings.NewReader("second"), "")
		require.NoError(t, err)

		got, err := store.Get(ctx, "uploads/b.wav")
		require.NoError(t, err)
		defer got.Body.Close()
		body, _ := io.ReadAll(got.Body)
		assert.Equal(t, "second", string(body))
	})

	t.Run("get missing", func(t *testing.T) {
		_, err := store.Get(ctx, "converted/missing.oga")
		assert.ErrorIs(t, err, entity.ErrNotFound)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		_, err := store.Put(ctx, "uploads/c.mp3", strings.NewReader("x"), "")
		require.NoError(t, err)

		require.NoError(t, store.Delete(ctx, "uploads/c.mp3"))
		require.NoError(t, store.Delete(ctx, "uploads/c.mp3"))

		_, err = store.Get(ctx, "uploads/c.mp3")
		assert.ErrorIs(t, err, entity.ErrNotFound)
	})

	t.Run("list by prefix", func(t *testing.T) {
		_, err := store.Put(ctx, "converted/list-1.oga", strings.NewReader("1"), entity.OutputContentType)
		require.NoError(t, err)
		_, err = store.Put(ctx, "uploads/list-2.wav", strings.NewReader("22"), "")
		require.NoError(t, err)

		items, err := store.List(ctx, entity.OutputPrefix)
		require.NoError(t, err)

		keys := make([]string, 0, len(items))
		for _, it := range items {
			assert.True(t, strings.HasPrefix(it.Key, entity.OutputPrefix), it.Key)
			assert.False(t, it.ModTime.IsZero())
			keys = append(keys, it.Key)
		}
		assert.Contains(t, keys, "converted/list-1.oga")
		assert.NotContains(t, keys, "uploads/list-2.wav")
	})
}

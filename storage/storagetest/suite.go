// Package storagetest holds a conformance suite every storage.Engine must pass.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/poiesic/avlondb/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Opener returns a fresh, empty engine. The suite closes it.
type Opener func(t *testing.T) storage.Engine

// Run exercises the storage.Engine contract against engines from open.
func Run(t *testing.T, open Opener) {
	t.Run("get missing key", func(t *testing.T) {
		e := open(t)
		defer e.Close()

		_, err := e.Get(context.Background(), []byte("missing"))
		assert.ErrorIs(t, err, storage.ErrNotFound)

		ok, err := e.Has(context.Background(), []byte("missing"))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("set then get", func(t *testing.T) {
		e := open(t)
		defer e.Close()
		ctx := context.Background()

		require.NoError(t, e.Set(ctx, []byte("k"), []byte("v1")))
		got, err := e.Get(ctx, []byte("k"))
		require.NoError(t, err)
		assert.Equal(t, []byte("v1"), got)

		require.NoError(t, e.Set(ctx, []byte("k"), []byte("v2")))
		got, err = e.Get(ctx, []byte("k"))
		require.NoError(t, err)
		assert.Equal(t, []byte("v2"), got)

		ok, err := e.Has(ctx, []byte("k"))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("set if exists", func(t *testing.T) {
		e := open(t)
		defer e.Close()
		ctx := context.Background()

		err := e.SetIfExists(ctx, []byte("k"), []byte("v"))
		assert.ErrorIs(t, err, storage.ErrNotFound)
		_, err = e.Get(ctx, []byte("k"))
		assert.ErrorIs(t, err, storage.ErrNotFound, "failed conditional write must not create the key")

		require.NoError(t, e.Set(ctx, []byte("k"), []byte("old")))
		require.NoError(t, e.SetIfExists(ctx, []byte("k"), []byte("new")))
		got, err := e.Get(ctx, []byte("k"))
		require.NoError(t, err)
		assert.Equal(t, []byte("new"), got)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		e := open(t)
		defer e.Close()
		ctx := context.Background()

		require.NoError(t, e.Set(ctx, []byte("k"), []byte("v")))
		require.NoError(t, e.Delete(ctx, []byte("k")))
		require.NoError(t, e.Delete(ctx, []byte("k")))
		require.NoError(t, e.Delete(ctx, []byte("never")))

		_, err := e.Get(ctx, []byte("k"))
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("scan closed interval", func(t *testing.T) {
		e := open(t)
		defer e.Close()
		ctx := context.Background()

		// Insert out of order to make sure ordering comes from the engine.
		for _, i := range []int{7, 2, 9, 0, 5, 1, 8, 3, 6, 4} {
			key := fmt.Sprintf("key_%d", i)
			require.NoError(t, e.Set(ctx, []byte(key), []byte(fmt.Sprintf("v%d", i))))
		}
		require.NoError(t, e.Set(ctx, []byte("key_9x"), []byte("after")))
		require.NoError(t, e.Set(ctx, []byte("aaa"), []byte("before")))

		keys := scanKeys(t, e, "key_0", "key_9")
		assert.Equal(t, []string{
			"key_0", "key_1", "key_2", "key_3", "key_4",
			"key_5", "key_6", "key_7", "key_8", "key_9",
		}, keys)

		assert.Equal(t, []string{"key_3"}, scanKeys(t, e, "key_3", "key_3"))
		assert.Empty(t, scanKeys(t, e, "key_91", "key_92"))
		assert.Empty(t, scanKeys(t, e, "key_5", "key_2"))
	})

	t.Run("scan values", func(t *testing.T) {
		e := open(t)
		defer e.Close()
		ctx := context.Background()

		require.NoError(t, e.Set(ctx, []byte("a"), []byte("1")))
		require.NoError(t, e.Set(ctx, []byte("b"), []byte("2")))

		var values []string
		err := e.Scan(ctx, []byte("a"), []byte("b"), func(_, value []byte) error {
			values = append(values, string(value))
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"1", "2"}, values)
	})

	t.Run("scan stops on callback error", func(t *testing.T) {
		e := open(t)
		defer e.Close()
		ctx := context.Background()

		for i := 0; i < 5; i++ {
			require.NoError(t, e.Set(ctx, []byte(fmt.Sprintf("k%d", i)), []byte("v")))
		}
		stop := errors.New("stop")
		seen := 0
		err := e.Scan(ctx, []byte("k0"), []byte("k4"), func(_, _ []byte) error {
			seen++
			if seen == 2 {
				return stop
			}
			return nil
		})
		assert.ErrorIs(t, err, stop)
		assert.Equal(t, 2, seen)
	})

	t.Run("deleted keys are not scanned", func(t *testing.T) {
		e := open(t)
		defer e.Close()
		ctx := context.Background()

		require.NoError(t, e.Set(ctx, []byte("a"), []byte("1")))
		require.NoError(t, e.Set(ctx, []byte("b"), []byte("2")))
		require.NoError(t, e.Set(ctx, []byte("c"), []byte("3")))
		require.NoError(t, e.Delete(ctx, []byte("b")))

		assert.Equal(t, []string{"a", "c"}, scanKeys(t, e, "a", "c"))
	})

	t.Run("concurrent conditional writes and deletes", func(t *testing.T) {
		e := open(t)
		defer e.Close()
		ctx := context.Background()

		const n = 50
		for i := 0; i < n; i++ {
			require.NoError(t, e.Set(ctx, []byte(fmt.Sprintf("c%02d", i)), []byte("v")))
		}

		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			key := []byte(fmt.Sprintf("c%02d", i))
			wg.Add(2)
			go func() {
				defer wg.Done()
				_ = e.SetIfExists(ctx, key, []byte("updated"))
			}()
			go func() {
				defer wg.Done()
				assert.NoError(t, e.Delete(ctx, key))
			}()
		}
		wg.Wait()

		// Every delete lands and a conditional write never recreates a key.
		for i := 0; i < n; i++ {
			ok, err := e.Has(ctx, []byte(fmt.Sprintf("c%02d", i)))
			require.NoError(t, err)
			assert.False(t, ok)
		}
	})
}

func scanKeys(t *testing.T, e storage.Engine, start, end string) []string {
	t.Helper()
	var keys []string
	err := e.Scan(context.Background(), []byte(start), []byte(end), func(key, _ []byte) error {
		keys = append(keys, string(key))
		return nil
	})
	require.NoError(t, err)
	return keys
}

package avlondb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/poiesic/avlondb/codec"
	"github.com/poiesic/avlondb/storage"
	"github.com/poiesic/avlondb/storage/pebble"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Account struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Age      int    `json:"age"`
}

type Data struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

type Measurement struct {
	Sensor string  `json:"sensor"`
	Value  float64 `json:"reading"`
}

// forEachEngine runs fn against a fresh store for every bundled engine.
func forEachEngine(t *testing.T, fn func(t *testing.T, s *Store)) {
	t.Helper()
	for _, kind := range storage.Kinds() {
		t.Run(string(kind), func(t *testing.T) {
			s := openTestStore(t, kind)
			fn(t, s)
		})
	}
}

func openTestStore(t *testing.T, kind storage.Kind) *Store {
	t.Helper()
	var (
		s   *Store
		err error
	)
	if kind == storage.KindBadger {
		s, err = Open("", WithInMemory())
	} else {
		s, err = Open(filepath.Join(t.TempDir(), "store"), WithEngine(kind), WithSyncWrites(false))
	}
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		account := Account{Username: "johndoe", Password: "secretpassword", Age: 30}

		require.NoError(t, Save(ctx, s, account.Username, account))

		got, ok, err := Load[Account](ctx, s, "johndoe")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, account, got)
	})
}

func TestSave_Overwrites(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		require.NoError(t, Save(ctx, s, "k", Data{Name: "first", Value: 1}))
		require.NoError(t, Save(ctx, s, "k", Data{Name: "second", Value: 2}))

		got, ok, err := Load[Data](ctx, s, "k")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "second", got.Name)
	})
}

func TestLoad_NeverSaved(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s *Store) {
		got, ok, err := Load[Account](context.Background(), s, "never_saved")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Zero(t, got)
	})
}

func TestRemove_Idempotent(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		require.NoError(t, Save(ctx, s, "k", Data{Name: "x"}))

		require.NoError(t, Remove(ctx, s, "k"))
		require.NoError(t, Remove(ctx, s, "k"))
		require.NoError(t, s.Remove(ctx, "never_saved"))

		exists, err := s.Exists(ctx, "k")
		require.NoError(t, err)
		assert.False(t, exists)
	})
}

func TestUpdate(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s *Store) {
		ctx := context.Background()

		t.Run("missing key", func(t *testing.T) {
			err := Update(ctx, s, "missing_key", Data{Name: "x"})
			require.Error(t, err)

			var nf *NotFoundError
			require.True(t, errors.As(err, &nf))
			assert.Equal(t, "missing_key", nf.Key)
			assert.ErrorIs(t, err, ErrNotFound)

			_, ok, err := Load[Data](ctx, s, "missing_key")
			require.NoError(t, err)
			assert.False(t, ok, "failed update must not create the key")
		})

		t.Run("existing key", func(t *testing.T) {
			require.NoError(t, Save(ctx, s, "johndoe", Account{Username: "johndoe", Password: "secretpassword", Age: 30}))

			updated := Account{Username: "joker", Password: "123654987", Age: 99}
			require.NoError(t, Update(ctx, s, "johndoe", updated))

			got, ok, err := Load[Account](ctx, s, "johndoe")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, updated, got)
		})

		t.Run("removed key", func(t *testing.T) {
			require.NoError(t, Save(ctx, s, "gone", Data{Name: "x"}))
			require.NoError(t, Remove(ctx, s, "gone"))

			err := Update(ctx, s, "gone", Data{Name: "y"})
			assert.ErrorIs(t, err, ErrNotFound)
		})
	})
}

func TestLoadRange(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		for i := 0; i < 10; i++ {
			require.NoError(t, Save(ctx, s, fmt.Sprintf("key_%d", i), Data{Name: fmt.Sprintf("name_%d", i), Value: i}))
		}

		t.Run("full range in key order", func(t *testing.T) {
			got, err := LoadRange[Data](ctx, s, "key_0", "key_9")
			require.NoError(t, err)
			require.Len(t, got, 10)
			for i, d := range got {
				assert.Equal(t, i, d.Value)
			}
		})

		t.Run("single key closed range", func(t *testing.T) {
			got, err := LoadRange[Data](ctx, s, "key_3", "key_3")
			require.NoError(t, err)
			assert.Equal(t, []Data{{Name: "name_3", Value: 3}}, got)
		})

		t.Run("gap between keys", func(t *testing.T) {
			got, err := LoadRange[Data](ctx, s, "key_91", "key_92")
			require.NoError(t, err)
			assert.NotNil(t, got)
			assert.Empty(t, got)
		})

		t.Run("inverted bounds", func(t *testing.T) {
			got, err := LoadRange[Data](ctx, s, "key_9", "key_0")
			require.NoError(t, err)
			assert.Empty(t, got)
		})

		t.Run("byte order not numeric order", func(t *testing.T) {
			require.NoError(t, Save(ctx, s, "key_10", Data{Name: "ten", Value: 10}))
			defer Remove(ctx, s, "key_10")

			got, err := LoadRange[Data](ctx, s, "key_1", "key_2")
			require.NoError(t, err)
			require.Len(t, got, 3)
			assert.Equal(t, []int{1, 10, 2}, []int{got[0].Value, got[1].Value, got[2].Value})
		})
	})
}

func TestRemove_InvisibleToLoadAndRange(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		require.NoError(t, Save(ctx, s, "j", Data{Value: 1}))
		require.NoError(t, Save(ctx, s, "k", Data{Value: 2}))
		require.NoError(t, Save(ctx, s, "l", Data{Value: 3}))
		require.NoError(t, Remove(ctx, s, "k"))

		_, ok, err := Load[Data](ctx, s, "k")
		require.NoError(t, err)
		assert.False(t, ok)

		got, err := LoadRange[Data](ctx, s, "a", "z")
		require.NoError(t, err)
		assert.Equal(t, []Data{{Value: 1}, {Value: 3}}, got)
	})
}

func TestLoad_DecodeMismatch(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		require.NoError(t, Save(ctx, s, "acct", Account{Username: "a", Age: 1}))

		got, ok, err := Load[Data](ctx, s, "acct")
		require.Error(t, err)
		assert.False(t, ok)
		assert.Zero(t, got)
		assert.ErrorIs(t, err, ErrDecoding)
		assert.NotErrorIs(t, err, ErrNotFound)

		var de *DecodingError
		require.True(t, errors.As(err, &de))
		assert.Equal(t, "acct", de.Key)
		assert.Equal(t, "avlondb.Data", de.Type)
	})
}

func TestLoad_StoredJSONCompatibility(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s *Store) {
		ctx := context.Background()

		require.NoError(t, Save(ctx, s, "wide", json.RawMessage(`{"name":"x","value":3,"email":"e"}`)))
		got, ok, err := Load[Data](ctx, s, "wide")
		require.NoError(t, err, "fields the type does not declare are ignored")
		assert.True(t, ok)
		assert.Equal(t, Data{Name: "x", Value: 3}, got)

		require.NoError(t, Save(ctx, s, "narrow", json.RawMessage(`{"name":"y"}`)))
		_, ok, err = Load[Data](ctx, s, "narrow")
		assert.False(t, ok)
		assert.ErrorIs(t, err, ErrDecoding)
		assert.ErrorIs(t, err, codec.ErrMissingField)

		require.NoError(t, Save(ctx, s, "null", json.RawMessage(`null`)))
		_, ok, err = Load[Data](ctx, s, "null")
		assert.False(t, ok)
		assert.ErrorIs(t, err, codec.ErrNullValue)
	})
}

func TestLoadRange_DecodeFailureNamesKey(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		require.NoError(t, Save(ctx, s, "r1", Data{Value: 1}))
		require.NoError(t, Save(ctx, s, "r2", Account{Username: "intruder"}))
		require.NoError(t, Save(ctx, s, "r3", Data{Value: 3}))

		got, err := LoadRange[Data](ctx, s, "r1", "r3")
		assert.Nil(t, got)

		var de *DecodingError
		require.True(t, errors.As(err, &de))
		assert.Equal(t, "r2", de.Key)
	})
}

func TestEach(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		repo := NewRepository[Data](s, nil)
		for i := 0; i < 5; i++ {
			require.NoError(t, repo.Save(ctx, fmt.Sprintf("e%d", i), Data{Value: i}))
		}

		var keys []string
		err := repo.Each(ctx, "e1", "e3", func(key string, v Data) error {
			keys = append(keys, key)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"e1", "e2", "e3"}, keys)

		stop := errors.New("stop")
		err = repo.Each(ctx, "e0", "e4", func(key string, v Data) error {
			if v.Value == 2 {
				return stop
			}
			return nil
		})
		assert.Equal(t, stop, err)
	})
}

func TestSave_EncodingFailureWritesNothing(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		require.NoError(t, Save(ctx, s, "m", Measurement{Sensor: "t1", Value: 20.5}))

		err := Save(ctx, s, "nan", Measurement{Sensor: "t1", Value: math.NaN()})
		assert.ErrorIs(t, err, ErrEncoding)
		var ee *EncodingError
		require.True(t, errors.As(err, &ee))
		assert.Equal(t, "nan", ee.Key)

		exists, err := s.Exists(ctx, "nan")
		require.NoError(t, err)
		assert.False(t, exists)

		err = Update(ctx, s, "m", Measurement{Sensor: "t1", Value: math.Inf(1)})
		assert.ErrorIs(t, err, ErrEncoding)

		got, ok, err := Load[Measurement](ctx, s, "m")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 20.5, got.Value)
	})
}

func TestEmptyKeyRejected(t *testing.T) {
	s := openTestStore(t, storage.KindBadger)
	ctx := context.Background()

	assert.ErrorIs(t, Save(ctx, s, "", Data{}), storage.ErrEmptyKey)
	_, _, err := Load[Data](ctx, s, "")
	assert.ErrorIs(t, err, storage.ErrEmptyKey)
	assert.ErrorIs(t, Update(ctx, s, "", Data{}), storage.ErrEmptyKey)
	assert.ErrorIs(t, Remove(ctx, s, ""), storage.ErrEmptyKey)
}

func TestCanceledContext(t *testing.T) {
	s := openTestStore(t, storage.KindBadger)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, Save(ctx, s, "k", Data{}), context.Canceled)
	_, err := LoadRange[Data](ctx, s, "a", "z")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRepository_CustomCodec(t *testing.T) {
	s := openTestStore(t, storage.KindBadger)
	ctx := context.Background()

	upper := codec.Func[string]{
		EncodeFunc: func(v string) ([]byte, error) { return []byte("s:" + v), nil },
		DecodeFunc: func(data []byte) (string, error) {
			if len(data) < 2 || string(data[:2]) != "s:" {
				return "", errors.New("missing prefix")
			}
			return string(data[2:]), nil
		},
	}
	repo := NewRepository[string](s, upper)

	require.NoError(t, repo.Save(ctx, "greeting", "hello"))
	got, ok, err := repo.Load(ctx, "greeting")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hello", got)

	require.NoError(t, repo.Update(ctx, "greeting", "bye"))
	all, err := repo.LoadRange(ctx, "a", "z")
	require.NoError(t, err)
	assert.Equal(t, []string{"bye"}, all)

	// The same bytes are not valid JSON for another view of the store.
	_, _, err = Load[string](ctx, s, "greeting")
	assert.ErrorIs(t, err, ErrDecoding)

	exists, err := repo.Exists(ctx, "greeting")
	require.NoError(t, err)
	assert.True(t, exists)
	require.NoError(t, repo.Remove(ctx, "greeting"))
}

func TestConcurrentUpdateAndRemove(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		const n = 25
		for i := 0; i < n; i++ {
			require.NoError(t, Save(ctx, s, fmt.Sprintf("c%02d", i), Data{Value: i}))
		}

		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			key := fmt.Sprintf("c%02d", i)
			wg.Add(2)
			go func() {
				defer wg.Done()
				err := Update(ctx, s, key, Data{Value: -1})
				if err != nil && !errors.Is(err, ErrNotFound) {
					var ee *EngineError
					assert.True(t, errors.As(err, &ee), "unexpected error: %v", err)
				}
			}()
			go func() {
				defer wg.Done()
				assert.NoError(t, Remove(ctx, s, key))
			}()
		}
		wg.Wait()

		got, err := LoadRange[Data](ctx, s, "c00", "c99")
		require.NoError(t, err)
		assert.Empty(t, got, "an update must never resurrect a removed key")
	})
}

func TestOpen(t *testing.T) {
	t.Run("default engine on disk", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "test_db")
		s, err := Open(dir)
		require.NoError(t, err)
		defer s.Close()

		assert.Equal(t, storage.KindBadger, s.Engine())
		assert.Equal(t, dir, s.Path())
	})

	t.Run("data survives reopen", func(t *testing.T) {
		for _, kind := range storage.Kinds() {
			t.Run(string(kind), func(t *testing.T) {
				path := filepath.Join(t.TempDir(), "store")
				ctx := context.Background()

				s, err := Open(path, WithEngine(kind))
				require.NoError(t, err)
				require.NoError(t, Save(ctx, s, "k", Data{Name: "persisted"}))
				require.NoError(t, s.Close())

				s, err = Open(path, WithEngine(kind))
				require.NoError(t, err)
				defer s.Close()

				got, ok, err := Load[Data](ctx, s, "k")
				require.NoError(t, err)
				require.True(t, ok)
				assert.Equal(t, "persisted", got.Name)
			})
		}
	})

	t.Run("error with file path", func(t *testing.T) {
		tmpFile := filepath.Join(t.TempDir(), "not_a_dir")
		require.NoError(t, os.WriteFile(tmpFile, []byte("test"), 0644))

		s, err := Open(tmpFile)
		assert.Nil(t, s)
		var ce *ConstructionError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, tmpFile, ce.Path)
		assert.Equal(t, storage.KindBadger, ce.Engine)
		assert.ErrorIs(t, err, storage.ErrNotDirectory)
	})

	t.Run("error when already locked", func(t *testing.T) {
		dir := t.TempDir()
		first, err := Open(dir)
		require.NoError(t, err)
		defer first.Close()

		second, err := Open(dir)
		assert.Nil(t, second)
		var ce *ConstructionError
		assert.True(t, errors.As(err, &ce))
	})

	t.Run("error with empty path", func(t *testing.T) {
		_, err := Open("")
		assert.ErrorIs(t, err, ErrEmptyPath)
	})

	t.Run("in memory requires badger", func(t *testing.T) {
		_, err := Open("", WithInMemory(), WithEngine(storage.KindPebble))
		assert.ErrorIs(t, err, ErrInMemoryUnsupported)
	})

	t.Run("unknown engine", func(t *testing.T) {
		_, err := Open(t.TempDir(), WithEngine("leveldb"))
		assert.ErrorIs(t, err, storage.ErrUnknownEngine)
	})
}

func TestClose_Idempotent(t *testing.T) {
	s, err := Open("", WithInMemory())
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	err = Save(context.Background(), s, "k", Data{})
	var ee *EngineError
	require.True(t, errors.As(err, &ee))
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}

type countingEngine struct {
	storage.Engine
	closes int
}

func (c *countingEngine) Close() error {
	c.closes++
	return c.Engine.Close()
}

func TestWithEngineInstance(t *testing.T) {
	inner, err := Open("", WithInMemory())
	require.NoError(t, err)

	engine := &countingEngine{Engine: inner.engine}
	s, err := Open("wrapped", WithEngineInstance(storage.Kind("counting"), engine))
	require.NoError(t, err)
	assert.Equal(t, storage.Kind("counting"), s.Engine())

	ctx := context.Background()
	require.NoError(t, Save(ctx, s, "k", Data{Value: 7}))
	got, ok, err := Load[Data](ctx, s, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 7, got.Value)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, 1, engine.closes)
}

func TestWithEngineInstance_ReportsKind(t *testing.T) {
	dir := t.TempDir()
	engine, err := pebble.Open(dir, pebble.Options{NoSync: true})
	require.NoError(t, err)

	s, err := Open(dir, WithEngineInstance(storage.KindPebble, engine))
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, storage.KindPebble, s.Engine())
	assert.Equal(t, dir, s.Path())
}

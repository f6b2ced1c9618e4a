package memory

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigStore(t *testing.T) {
	store := NewConfigStore()
	require.NotNil(t, store)
	assert.Empty(t, store.Keys())
}

func TestNewConfigStore_Seeded(t *testing.T) {
	store := NewConfigStore(map[string]any{"autosuggest.enabled": true})

	assert.True(t, store.GetBool("autosuggest.enabled"))
	assert.Equal(t, []string{"autosuggest.enabled"}, store.Keys())
}

func TestConfigStore_SetAndGet(t *testing.T) {
	store := NewConfigStore()

	require.NoError(t, store.Set("key1", "original"))
	require.NoError(t, store.Set("key1", "updated"))

	val, ok := store.Get("key1")
	assert.True(t, ok)
	assert.Equal(t, "updated", val)

	_, ok = store.Get("missing")
	assert.False(t, ok)
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store := NewConfigStore()
	require.NoError(t, store.Set("str", "hello"))
	require.NoError(t, store.Set("int", 42))
	require.NoError(t, store.Set("int64", int64(15000)))
	require.NoError(t, store.Set("float", 2.0))
	require.NoError(t, store.Set("bool", true))
	require.NoError(t, store.Set("strings", []string{"a", "b"}))
	require.NoError(t, store.Set("anys", []any{"a", 1, "b"}))

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"string", store.GetString("str"), "hello"},
		{"string wrong type", store.GetString("int"), ""},
		{"int", store.GetInt("int"), 42},
		{"int64", store.GetInt("int64"), 15000},
		{"float", store.GetInt("float"), 2},
		{"int wrong type", store.GetInt("str"), 0},
		{"bool", store.GetBool("bool"), true},
		{"bool missing", store.GetBool("missing"), false},
		{"string slice", store.GetStringSlice("strings"), []string{"a", "b"}},
		{"any slice skips non-strings", store.GetStringSlice("anys"), []string{"a", "b"}},
		{"slice missing", store.GetStringSlice("missing"), []string(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestConfigStore_Delete(t *testing.T) {
	store := NewConfigStore()
	require.NoError(t, store.Set("stt.api_key", "secret"))

	require.NoError(t, store.Delete("stt.api_key"))
	require.NoError(t, store.Delete("never.set"))

	_, ok := store.Get("stt.api_key")
	assert.False(t, ok)
}

func TestConfigStore_NoOps(t *testing.T) {
	store := NewConfigStore()

	assert.NoError(t, store.Save())
	assert.NoError(t, store.Load())
	assert.Equal(t, ":memory:", store.Path())
}

func TestConfigStore_ConcurrentAccess(t *testing.T) {
	store := NewConfigStore()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			_ = store.Set("counter", n)
		}(i)
		go func() {
			defer wg.Done()
			_ = store.GetInt("counter")
			_ = store.Keys()
		}()
	}
	wg.Wait()

	_, ok := store.Get("counter")
	assert.True(t, ok)
}

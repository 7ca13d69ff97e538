package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateHash(t *testing.T) {
	assert.Len(t, generateHash("hello"), 16)
	assert.Equal(t, generateHash("hello"), generateHash("hello"))
	assert.NotEqual(t, generateHash("hello"), generateHash("world"))
}

func TestRendered_CachesPerVersion(t *testing.T) {
	store := New(t.TempDir())
	v1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	v2 := v1.Add(time.Minute)

	calls := 0
	render := func() string {
		calls++
		return "<p>hi</p>"
	}

	assert.Equal(t, "<p>hi</p>", store.Rendered("post", v1, render))
	assert.Equal(t, "<p>hi</p>", store.Rendered("post", v1, render))
	assert.Equal(t, 1, calls)

	store.Rendered("post", v2, render)
	assert.Equal(t, 2, calls)

	// writing v2 replaced v1
	_, ok := store.Read("post", v1)
	assert.False(t, ok)
}

func TestClear(t *testing.T) {
	store := New(t.TempDir())
	version := time.Now()

	require.NoError(t, store.Write("hello", version, "a"))
	require.NoError(t, store.Write("hello-world", version, "b"))

	require.NoError(t, store.Clear("hello"))

	_, ok := store.Read("hello", version)
	assert.False(t, ok)
	html, ok := store.Read("hello-world", version)
	assert.True(t, ok)
	assert.Equal(t, "b", html)
}

func TestClearOld(t *testing.T) {
	store := New(t.TempDir())
	version := time.Now()

	require.NoError(t, store.Write("old", version, "a"))
	require.NoError(t, store.Write("new", version, "b"))

	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(store.Path("old", version), past, past))

	require.NoError(t, store.ClearOld(24*time.Hour))

	_, ok := store.Read("old", version)
	assert.False(t, ok)
	_, ok = store.Read("new", version)
	assert.True(t, ok)
}

func TestNilStore(t *testing.T) {
	store := New("")
	assert.Nil(t, store)

	assert.Equal(t, "x", store.Rendered("post", time.Now(), func() string { return "x" }))
	assert.NoError(t, store.Clear("post"))
	assert.NoError(t, store.ClearOld(time.Hour))
}

func TestPath(t *testing.T) {
	store := New("/tmp/cache")
	path := store.Path("my-post", time.Unix(0, 0))

	assert.Equal(t, "/tmp/cache", filepath.Dir(path))
	assert.Regexp(t, `^my-post_[0-9a-f]{16}\.html$`, filepath.Base(path))
}

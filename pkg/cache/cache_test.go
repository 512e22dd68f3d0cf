package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/agentstation/utc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoverageSatisfies(t *testing.T) {
	tests := []struct {
		name   string
		stored Coverage
		req    Coverage
		want   bool
	}{
		{name: "fewer pages", stored: FirstPages(3), req: FirstPages(1), want: true},
		{name: "same pages", stored: FirstPages(3), req: FirstPages(3), want: true},
		{name: "more pages", stored: FirstPages(1), req: FirstPages(3), want: false},
		{name: "subset of page set", stored: PageSet(1, 4, 7), req: PageSet(4, 7), want: true},
		{name: "page outside set", stored: PageSet(1, 4), req: PageSet(2), want: false},
		{name: "page set within first pages", stored: FirstPages(5), req: PageSet(2, 5), want: true},
		{name: "page set beyond first pages", stored: FirstPages(5), req: PageSet(6), want: false},
		{name: "first pages within page set", stored: PageSet(1, 2, 3), req: FirstPages(2), want: true},
		{name: "first pages with gap", stored: PageSet(1, 3), req: FirstPages(2), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.stored.Satisfies(tt.req))
		})
	}
}

func TestCoverageStrictSuperset(t *testing.T) {
	assert.True(t, FirstPages(3).StrictSuperset(FirstPages(1)))
	assert.False(t, FirstPages(3).StrictSuperset(FirstPages(3)))
	assert.False(t, FirstPages(1).StrictSuperset(FirstPages(3)))
	assert.True(t, PageSet(1, 2, 5).StrictSuperset(PageSet(2, 5)))
	assert.False(t, PageSet(2, 5).StrictSuperset(PageSet(5, 2)))
	assert.False(t, PageSet(9).StrictSuperset(FirstPages(1)))
}

type backendFactory func(t *testing.T) Cache

func backends() map[string]backendFactory {
	return map[string]backendFactory{
		"json": func(t *testing.T) Cache {
			c, err := OpenFile(filepath.Join(t.TempDir(), "cache.json"))
			require.NoError(t, err)
			return c
		},
		"badger": func(t *testing.T) Cache {
			c, err := OpenBadger("", WithInMemory())
			require.NoError(t, err)
			t.Cleanup(func() { _ = c.Close() })
			return c
		},
	}
}

func TestCacheMonotonic(t *testing.T) {
	const url = "https://example.com/minutes.pdf"

	for name, newCache := range backends() {
		t.Run(name, func(t *testing.T) {
			c := newCache(t)

			_, ok, err := c.Check(url, FirstPages(1))
			require.NoError(t, err)
			assert.False(t, ok, "empty cache")

			written, err := c.Add(url, "text1", FirstPages(1), KindText)
			require.NoError(t, err)
			assert.True(t, written)

			_, ok, err = c.Check(url, FirstPages(3))
			require.NoError(t, err)
			assert.False(t, ok, "narrower stored coverage must not satisfy a wider request")

			written, err = c.Add(url, "text2", FirstPages(3), KindText)
			require.NoError(t, err)
			assert.True(t, written)

			text, ok, err := c.Check(url, FirstPages(1))
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "text2", text)

			written, err = c.Add(url, "text3", FirstPages(2), KindText)
			require.NoError(t, err)
			assert.False(t, written, "coverage never shrinks")

			written, err = c.Add(url, "text4", FirstPages(3), KindImage)
			require.NoError(t, err)
			assert.False(t, written, "equal coverage is a no-op")

			text, ok, err = c.Check(url, FirstPages(3))
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "text2", text)
		})
	}
}

func TestFileCachePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cache.json")
	created := utc.Now()

	c, err := OpenFile(path, WithClock(func() utc.Time { return created }))
	require.NoError(t, err)
	_, err = c.Add("https://example.com/a", "alpha", PageSet(2, 3), KindImage)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type": "image"`)
	assert.Contains(t, string(data), `"maxPages": null`)

	reopened, err := OpenFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.Len())

	text, ok, err := reopened.Check("https://example.com/a", PageSet(3))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "alpha", text)
}

func TestFileCacheFailedWriteLeavesCacheUnchanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	c, err := OpenFile(path)
	require.NoError(t, err)

	_, err = c.Add("https://example.com/a", "one page", FirstPages(1), KindText)
	require.NoError(t, err)

	// A directory in place of the file makes the rename fail.
	require.NoError(t, os.Remove(path))
	require.NoError(t, os.MkdirAll(filepath.Join(path, "blocker"), 0o755))

	tests := []struct {
		name string
		url  string
		cov  Coverage
	}{
		{name: "new url", url: "https://example.com/b", cov: FirstPages(3)},
		{name: "wider coverage", url: "https://example.com/a", cov: FirstPages(3)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			written, err := c.Add(tt.url, "never stored", tt.cov, KindText)
			require.Error(t, err)
			assert.False(t, written)

			text, ok, err := c.Check(tt.url, tt.cov)
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Empty(t, text)
		})
	}

	assert.Equal(t, 1, c.Len())
	text, ok, err := c.Check("https://example.com/a", FirstPages(1))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "one page", text)
}

func TestFileCacheInMemory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	c, err := OpenFile(path, WithInMemory())
	require.NoError(t, err)

	written, err := c.Add("https://example.com/a", "alpha", FirstPages(2), KindText)
	require.NoError(t, err)
	assert.True(t, written)

	text, ok, err := c.Check("https://example.com/a", FirstPages(1))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "alpha", text)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestOpenFileRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := OpenFile(path)
	require.Error(t, err)
}

func TestOpenBackends(t *testing.T) {
	dir := t.TempDir()

	c, err := Open(BackendJSON, dir)
	require.NoError(t, err)
	require.NoError(t, c.Close())

	c, err = Open(BackendBadger, dir)
	require.NoError(t, err)
	require.NoError(t, c.Close())

	_, err = Open("redis", dir)
	require.Error(t, err)
}

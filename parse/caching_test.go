package parse

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/liliyayaqiqi/cxxtract/entity"
)

func TestCacheKeyStability(t *testing.T) {
	source := []byte("void f() {}\n")

	first := CacheKey(source, "repo", "src/f.cpp")
	second := CacheKey(source, "repo", "src/f.cpp")
	require.Equal(t, first, second)
}

func TestCacheKeyDiscriminates(t *testing.T) {
	source := []byte("void f() {}\n")
	base := CacheKey(source, "repo", "src/f.cpp")

	require.NotEqual(t, base, CacheKey([]byte("void g() {}\n"), "repo", "src/f.cpp"))
	require.NotEqual(t, base, CacheKey(source, "other", "src/f.cpp"))
	require.NotEqual(t, base, CacheKey(source, "repo", "src/g.cpp"))
}

func TestLoadMissingCacheFile(t *testing.T) {
	cache := LoadExtractionCache(filepath.Join(t.TempDir(), "missing.json"))

	require.NotNil(t, cache)
	require.Empty(t, cache.Cache)

	_, exists := cache.Lookup("nope")
	require.False(t, exists)
}

func TestCacheRoundTrip(t *testing.T) {
	cacheFile := filepath.Join(t.TempDir(), "cache", "extraction.json")

	docstring := "/// cached"
	stored := &CachedExtraction{
		Entities: []entity.ExtractedEntity{
			{
				GlobalURI:  "repo::src/f.cpp::Function::f",
				RepoName:   "repo",
				FilePath:   "src/f.cpp",
				EntityType: entity.Function,
				EntityName: "f",
				Docstring:  &docstring,
				CodeText:   "void f() {}",
				StartLine:  2,
				EndLine:    2,
			},
		},
		ParseErrors: 0,
	}

	cache := LoadExtractionCache(cacheFile)
	key := CacheKey([]byte("void f() {}\n"), "repo", "src/f.cpp")
	cache.Store(key, stored)
	require.NoError(t, cache.Write())

	reloaded := LoadExtractionCache(cacheFile)
	cached, exists := reloaded.Lookup(key)
	require.True(t, exists)
	require.Equal(t, stored.Entities, cached.Entities)
	require.Equal(t, stored.ParseErrors, cached.ParseErrors)
}

func TestCacheRoundTripGzip(t *testing.T) {
	cacheFile := filepath.Join(t.TempDir(), "extraction.json.gz")

	cache := LoadExtractionCache(cacheFile)
	key := CacheKey([]byte("struct S {};\n"), "repo", "s.hpp")
	cache.Store(key, &CachedExtraction{
		Entities: []entity.ExtractedEntity{{
			GlobalURI:  "repo::s.hpp::Struct::S",
			EntityType: entity.Struct,
			EntityName: "S",
		}},
	})
	require.NoError(t, cache.Write())

	reloaded := LoadExtractionCache(cacheFile)
	cached, exists := reloaded.Lookup(key)
	require.True(t, exists)
	require.Equal(t, "S", cached.Entities[0].EntityName)
}

// countingExtractor records how often extraction actually runs, so cache
// hits are observable.
type countingExtractor struct {
	calls int
}

func (ce *countingExtractor) ExtractSource(
	sourceCode []byte,
	repoName string,
	filePath string,
) ([]entity.ExtractedEntity, int) {
	ce.calls++

	return []entity.ExtractedEntity{{
		GlobalURI:  entity.AssembleURI(repoName, filePath, entity.Function, "f"),
		RepoName:   repoName,
		FilePath:   filePath,
		EntityType: entity.Function,
		EntityName: "f",
		CodeText:   string(sourceCode),
		StartLine:  1,
		EndLine:    1,
	}}, 1
}

func TestCachingExtractorSkipsUnchangedFiles(t *testing.T) {
	cacheFile := filepath.Join(t.TempDir(), "extraction.json")
	counting := &countingExtractor{}

	caching := NewCachingExtractor(counting, cacheFile)
	source := []byte("void f() {}\n")

	first, firstErrors := caching.ExtractSource(source, "repo", "src/f.cpp")
	second, secondErrors := caching.ExtractSource(source, "repo", "src/f.cpp")

	require.Equal(t, 1, counting.calls)
	require.Equal(t, first, second)
	require.Equal(t, firstErrors, secondErrors)

	// Different content misses and re-extracts.
	caching.ExtractSource([]byte("void g() {}\n"), "repo", "src/f.cpp")
	require.Equal(t, 2, counting.calls)
}

func TestCachingExtractorPersistsAcrossInstances(t *testing.T) {
	cacheFile := filepath.Join(t.TempDir(), "extraction.json")
	source := []byte("void f() {}\n")

	first := NewCachingExtractor(&countingExtractor{}, cacheFile)
	fresh, _ := first.ExtractSource(source, "repo", "src/f.cpp")
	require.NoError(t, first.WriteCache())

	counting := &countingExtractor{}
	second := NewCachingExtractor(counting, cacheFile)
	cached, _ := second.ExtractSource(source, "repo", "src/f.cpp")

	require.Zero(t, counting.calls)
	require.Equal(t, fresh, cached)
}

func TestUncachedExtractorPassesThrough(t *testing.T) {
	counting := &countingExtractor{}
	uncached := NewUncachedExtractor(counting)

	source := []byte("void f() {}\n")
	uncached.ExtractSource(source, "repo", "src/f.cpp")
	uncached.ExtractSource(source, "repo", "src/f.cpp")

	require.Equal(t, 2, counting.calls)
	require.NoError(t, uncached.WriteCache())
}

func TestCorruptCacheFileIsRegenerated(t *testing.T) {
	cacheFile := filepath.Join(t.TempDir(), "extraction.json")
	require.NoError(t, os.WriteFile(cacheFile, []byte("{ not json"), 0644))

	cache := LoadExtractionCache(cacheFile)
	require.Empty(t, cache.Cache)
}

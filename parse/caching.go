// Package parse provides a content-hash keyed cache for per-file
// extraction results, so unchanged files skip re-parsing across runs.
package parse

import (
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/liliyayaqiqi/cxxtract/entity"
)

var computedBinaryChecksum *string = nil

// Cache entries are only valid for the binary that produced them: any
// change to the extraction logic must invalidate the whole cache. We
// fingerprint by taking the sha256 checksum of the running executable.
func binaryChecksum() string {
	if computedBinaryChecksum == nil {
		executablePath, err := os.Executable()
		if err != nil {
			log.Fatalf("Error reading executable path: %s\n", err)
		}

		if resolvedPath, err := filepath.EvalSymlinks(executablePath); err == nil {
			executablePath = resolvedPath
		}

		executableBytes, err := os.ReadFile(executablePath)
		if err != nil {
			log.Fatalf(
				"Error reading executable '%s' for fingerprinting:\n%s\n",
				executablePath,
				err,
			)
		}

		checksumBytes := sha256.Sum256(executableBytes)
		checksum := hex.EncodeToString(checksumBytes[:])
		computedBinaryChecksum = &checksum
	}

	return *computedBinaryChecksum
}

// CachedExtraction is one file's extraction output.
type CachedExtraction struct {
	Entities    []entity.ExtractedEntity `json:"entities"`
	ParseErrors int                      `json:"parse_errors"`
}

// CacheableExtractor is implemented by language-specific extractors whose
// per-file output is a pure function of the inputs and can therefore be
// cached by content.
type CacheableExtractor interface {
	ExtractSource(sourceCode []byte, repoName string, filePath string) ([]entity.ExtractedEntity, int)
}

// Extractor is the parent interface implemented by the cached/uncached
// wrapper types here.
type Extractor interface {
	ExtractSource(sourceCode []byte, repoName string, filePath string) ([]entity.ExtractedEntity, int)
	WriteCache() error
}

// CachingExtractor wraps a CacheableExtractor with a content-hash cache:
// unchanged files return their previous result without re-parsing.
type CachingExtractor struct {
	extractor CacheableExtractor
	cache     *ExtractionCache
}

func NewCachingExtractor(extractor CacheableExtractor, cacheFile string) *CachingExtractor {
	return &CachingExtractor{
		extractor: extractor,
		cache:     LoadExtractionCache(cacheFile),
	}
}

// Wrap builds a CachingExtractor sharing this already-loaded cache. The
// directory walker uses this to give every worker its own extractor while
// all workers hit one cache.
func (c *ExtractionCache) Wrap(extractor CacheableExtractor) *CachingExtractor {
	return &CachingExtractor{
		extractor: extractor,
		cache:     c,
	}
}

func (cx *CachingExtractor) ExtractSource(
	sourceCode []byte,
	repoName string,
	filePath string,
) ([]entity.ExtractedEntity, int) {

	key := CacheKey(sourceCode, repoName, filePath)
	if cached, exists := cx.cache.Lookup(key); exists {
		// file has not changed, return cached result
		return cached.Entities, cached.ParseErrors
	}

	entities, parseErrors := cx.extractor.ExtractSource(sourceCode, repoName, filePath)
	cx.cache.Store(key, &CachedExtraction{
		Entities:    entities,
		ParseErrors: parseErrors,
	})

	return entities, parseErrors
}

func (cx *CachingExtractor) WriteCache() error {
	return cx.cache.Write()
}

// UncachedExtractor is the pass-through shape for runs without a cache
// file.
type UncachedExtractor struct {
	extractor CacheableExtractor
}

func NewUncachedExtractor(extractor CacheableExtractor) *UncachedExtractor {
	return &UncachedExtractor{extractor: extractor}
}

func (ux *UncachedExtractor) ExtractSource(
	sourceCode []byte,
	repoName string,
	filePath string,
) ([]entity.ExtractedEntity, int) {
	return ux.extractor.ExtractSource(sourceCode, repoName, filePath)
}

func (ux *UncachedExtractor) WriteCache() error {
	return nil
}

// ExtractionCache maps content keys to extraction results. Safe for
// concurrent Lookup/Store from walker workers.
type ExtractionCache struct {
	BinaryChecksum string                       `json:"binary_checksum"`
	Cache          map[string]*CachedExtraction `json:"extraction_cache"`

	mu        sync.Mutex
	cacheFile string
}

// CacheKey derives a cache key from the file content plus the identity
// inputs baked into each record. Repo name and relative path participate
// because they are embedded in every record: the same bytes extracted
// under a different repo name must miss.
func CacheKey(sourceCode []byte, repoName string, relPath string) string {
	h := xxhash.New()
	h.Write(sourceCode)
	h.WriteString("\x00")
	h.WriteString(repoName)
	h.WriteString("\x00")
	h.WriteString(relPath)

	return strconv.FormatUint(h.Sum64(), 16)
}

// LoadExtractionCache reads cacheFile if it exists. A missing file, an
// unreadable file or a binary-checksum mismatch all yield an empty cache
// that will be regenerated; loading never fails a run.
func LoadExtractionCache(cacheFile string) *ExtractionCache {
	cache := &ExtractionCache{
		BinaryChecksum: binaryChecksum(),
		Cache:          make(map[string]*CachedExtraction),
		cacheFile:      cacheFile,
	}

	file, err := os.Open(cacheFile)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("WARN: unreadable extraction cache file '%s': %s\n", cacheFile, err)
		}
		return cache
	}
	defer file.Close()

	var reader io.Reader = file
	if filepath.Ext(cacheFile) == ".gz" {
		gzipReader, err := gzip.NewReader(reader)
		if err != nil {
			log.Printf("WARN: corrupt gzipped cache file '%s': %s\n", cacheFile, err)
			return cache
		}
		reader = gzipReader
		defer gzipReader.Close()
	}

	var loaded ExtractionCache
	if err := json.NewDecoder(reader).Decode(&loaded); err != nil {
		log.Printf("WARN: unable to parse extraction cache file '%s': %s\n", cacheFile, err)
		return cache
	}

	if loaded.BinaryChecksum != cache.BinaryChecksum {
		log.Printf(
			"WARN: binary checksum %s does not match cache checksum %s from %s. "+
				"The cache file will be regenerated.",
			cache.BinaryChecksum,
			loaded.BinaryChecksum,
			cacheFile,
		)
		return cache
	}

	if loaded.Cache != nil {
		cache.Cache = loaded.Cache
	}

	return cache
}

func (c *ExtractionCache) Lookup(key string) (*CachedExtraction, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cached, exists := c.Cache[key]
	return cached, exists
}

func (c *ExtractionCache) Store(key string, result *CachedExtraction) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Cache[key] = result
}

// Write persists the cache to its backing file, gzipped when the file name
// carries a .gz extension.
func (c *ExtractionCache) Write() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cacheFileDir := filepath.Dir(c.cacheFile)
	if _, err := os.Stat(cacheFileDir); os.IsNotExist(err) {
		if err := os.MkdirAll(cacheFileDir, 0755); err != nil {
			return fmt.Errorf("creating parent directory of cache file: %w", err)
		}
	}

	file, err := os.Create(c.cacheFile)
	if err != nil {
		return fmt.Errorf("opening cache file %s for writing: %w", c.cacheFile, err)
	}
	defer file.Close()

	var writer io.Writer = file
	if filepath.Ext(c.cacheFile) == ".gz" {
		gzipWriter := gzip.NewWriter(writer)
		writer = gzipWriter
		defer gzipWriter.Close()
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "    ")
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("writing extraction cache to %s: %w", c.cacheFile, err)
	}

	return nil
}

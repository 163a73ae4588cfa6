// Package walker discovers C++ source files under a repository root and
// drives per-file entity extraction with deterministic ordering.
package walker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/emirpasic/gods/sets/treeset"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/liliyayaqiqi/cxxtract/cpp"
	"github.com/liliyayaqiqi/cxxtract/entity"
	"github.com/liliyayaqiqi/cxxtract/parse"
)

// ErrInvalidInput marks caller bugs: empty repo names, non-C++ extensions.
var ErrInvalidInput = errors.New("invalid input")

var EXCLUDED_DIR_NAMES = map[string]bool{
	".git":                true,
	"build":               true,
	"cmake-build-debug":   true,
	"cmake-build-release": true,
	"node_modules":        true,
	".vscode":             true,
	".idea":               true,
	"__pycache__":         true,
}

// Options configures a Walker. Use DefaultOptions as the base.
type Options struct {
	// RepoRoot anchors repository-relative paths. Empty means: the parent
	// directory of the file for ExtractFile, the walked root for
	// ExtractDirectory.
	RepoRoot string

	// ContinueOnError keeps a directory run going past per-file failures,
	// counting them into stats instead of aborting.
	ContinueOnError bool

	// ExcludeGlobs are doublestar patterns matched against repo-relative
	// directory paths, on top of the static EXCLUDED_DIR_NAMES set.
	ExcludeGlobs []string

	// Workers bounds the per-file parallelism. Zero means GOMAXPROCS.
	Workers int

	// CacheFile enables the extraction cache when non-empty.
	CacheFile string

	Extraction cpp.Config
}

func DefaultOptions() Options {
	return Options{
		ContinueOnError: true,
		Extraction:      cpp.DefaultConfig(),
	}
}

type Walker struct {
	options Options
	logger  *zap.Logger
	cache   *parse.ExtractionCache
}

func New(options Options, logger *zap.Logger) (*Walker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	for _, pattern := range options.ExcludeGlobs {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("%w: bad exclude pattern %q", ErrInvalidInput, pattern)
		}
	}

	w := &Walker{options: options, logger: logger}
	if options.CacheFile != "" {
		w.cache = parse.LoadExtractionCache(options.CacheFile)
	}

	return w, nil
}

// ExtractFile extracts every entity from a single C++ source file. Wrong
// extensions and empty repo names fail fast; parse failures yield an empty
// sequence, not an error.
func (w *Walker) ExtractFile(path string, repoName string) ([]entity.ExtractedEntity, error) {
	if repoName == "" {
		return nil, fmt.Errorf("%w: empty repo name", ErrInvalidInput)
	}
	if !cpp.SOURCE_EXTENSIONS[filepath.Ext(path)] {
		return nil, fmt.Errorf("%w: not a C++ source file: %s", ErrInvalidInput, path)
	}

	repoRoot := w.options.RepoRoot
	if repoRoot == "" {
		repoRoot = filepath.Dir(path)
	}

	relPath, err := repoRelativePath(repoRoot, path)
	if err != nil {
		return nil, err
	}

	sourceCode, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading source file %s: %w", path, err)
	}

	entities, _ := w.newExtractor().ExtractSource(sourceCode, repoName, relPath)

	return entities, nil
}

// ExtractDirectory recursively discovers C++ files under root and extracts
// them. Files are processed in lexicographic repo-relative order, so two
// runs over an unchanged tree produce byte-identical output streams.
// Parallelism is coarse-grained: one file per worker, one parser per
// worker, results stitched back in discovery order.
func (w *Walker) ExtractDirectory(
	ctx context.Context,
	root string,
	repoName string,
) ([]entity.ExtractedEntity, *entity.ExtractionStats, error) {

	stats := &entity.ExtractionStats{}

	if repoName == "" {
		return nil, stats, fmt.Errorf("%w: empty repo name", ErrInvalidInput)
	}

	repoRoot := w.options.RepoRoot
	if repoRoot == "" {
		repoRoot = root
	}

	relPaths, absPaths, err := w.discoverFiles(root, repoRoot)
	if err != nil {
		return nil, stats, err
	}

	workers := w.options.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(relPaths) && len(relPaths) > 0 {
		workers = len(relPaths)
	}

	results := make([][]entity.ExtractedEntity, len(relPaths))
	indexes := make(chan int)

	group, groupCtx := errgroup.WithContext(ctx)
	for range workers {
		group.Go(func() error {
			extractor := w.newExtractor()

			for i := range indexes {
				if err := groupCtx.Err(); err != nil {
					return err
				}
				if err := w.extractOne(extractor, relPaths[i], absPaths[i], repoName, results, i, stats); err != nil {
					return err
				}
			}

			return nil
		})
	}

	group.Go(func() error {
		defer close(indexes)
		for i := range relPaths {
			select {
			case indexes <- i:
			case <-groupCtx.Done():
				return groupCtx.Err()
			}
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		return nil, stats, err
	}

	merged := make([]entity.ExtractedEntity, 0)
	seenURIs := treeset.NewWithStringComparator()
	for _, fileEntities := range results {
		for _, e := range fileEntities {
			if seenURIs.Contains(e.GlobalURI) {
				// Overloads collide on URI by design; observe, never
				// disambiguate.
				stats.AddDuplicateURIs(1)
				w.logger.Debug("duplicate global URI", zap.String("uri", e.GlobalURI))
			} else {
				seenURIs.Add(e.GlobalURI)
			}
			merged = append(merged, e)
		}
	}

	if w.cache != nil {
		if err := w.cache.Write(); err != nil {
			w.logger.Warn("writing extraction cache", zap.Error(err))
		}
	}

	w.logger.Info(
		"extraction run complete",
		zap.String("repo", repoName),
		zap.Uint64("files_processed", stats.Snapshot().FilesProcessed),
		zap.Uint64("entities_extracted", stats.Snapshot().EntitiesExtracted),
	)

	return merged, stats, nil
}

// newExtractor builds one per-worker extractor, wrapped in the shared
// extraction cache when one is configured.
func (w *Walker) newExtractor() parse.Extractor {
	base := cpp.NewExtractor(w.options.Extraction, w.logger)
	if w.cache != nil {
		return w.cache.Wrap(base)
	}

	return parse.NewUncachedExtractor(base)
}

func (w *Walker) extractOne(
	extractor parse.Extractor,
	relPath string,
	absPath string,
	repoName string,
	results [][]entity.ExtractedEntity,
	index int,
	stats *entity.ExtractionStats,
) error {
	sourceCode, err := os.ReadFile(absPath)
	if err != nil {
		if w.options.ContinueOnError {
			w.logger.Warn("skipping unreadable file", zap.String("file", absPath), zap.Error(err))
			stats.AddFilesFailed(1)
			return nil
		}
		return fmt.Errorf("reading source file %s: %w", absPath, err)
	}

	entities, parseErrors := extractor.ExtractSource(sourceCode, repoName, relPath)

	results[index] = entities
	stats.AddFilesProcessed(1)
	stats.AddEntitiesExtracted(uint64(len(entities)))
	stats.AddParseErrors(uint64(parseErrors))

	return nil
}

// discoverFiles enumerates C++ files depth-first, applies directory
// exclusions, and returns them sorted lexicographically by repo-relative
// path.
func (w *Walker) discoverFiles(root string, repoRoot string) ([]string, []string, error) {
	ordered := treeset.NewWithStringComparator()
	relToAbs := make(map[string]string)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if w.options.ContinueOnError {
				w.logger.Warn("skipping unreadable path", zap.String("path", path), zap.Error(err))
				return nil
			}
			return err
		}

		if d.IsDir() {
			if path == root {
				return nil
			}
			if EXCLUDED_DIR_NAMES[d.Name()] {
				return filepath.SkipDir
			}
			rel, relErr := repoRelativePath(repoRoot, path)
			if relErr == nil && w.matchesExcludeGlob(rel) {
				return filepath.SkipDir
			}
			return nil
		}

		if !cpp.SOURCE_EXTENSIONS[filepath.Ext(path)] {
			return nil
		}

		rel, relErr := repoRelativePath(repoRoot, path)
		if relErr != nil {
			return relErr
		}

		ordered.Add(rel)
		relToAbs[rel] = path
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("walking %s: %w", root, err)
	}

	relPaths := make([]string, 0, ordered.Size())
	absPaths := make([]string, 0, ordered.Size())

	it := ordered.Iterator()
	for it.Next() {
		rel := it.Value().(string)
		relPaths = append(relPaths, rel)
		absPaths = append(absPaths, relToAbs[rel])
	}

	return relPaths, absPaths, nil
}

func (w *Walker) matchesExcludeGlob(relPath string) bool {
	for _, pattern := range w.options.ExcludeGlobs {
		if matched, err := doublestar.Match(pattern, relPath); err == nil && matched {
			return true
		}
	}

	return false
}

// repoRelativePath computes the forward-slash repository-relative path.
func repoRelativePath(repoRoot string, path string) (string, error) {
	rel, err := filepath.Rel(repoRoot, path)
	if err != nil {
		return "", fmt.Errorf("computing repo-relative path for %s: %w", path, err)
	}

	return filepath.ToSlash(rel), nil
}

// DictList flattens entities into plain key/value records with the
// serialized field names.
func DictList(entities []entity.ExtractedEntity) []map[string]any {
	records := make([]map[string]any, 0, len(entities))
	for i := range entities {
		records = append(records, entities[i].Record())
	}

	return records
}

// WriteJSONL emits one JSON record per line, in stream order.
func WriteJSONL(out io.Writer, entities []entity.ExtractedEntity) error {
	encoder := json.NewEncoder(out)
	for i := range entities {
		if err := encoder.Encode(&entities[i]); err != nil {
			return fmt.Errorf("encoding record %s: %w", entities[i].GlobalURI, err)
		}
	}

	return nil
}

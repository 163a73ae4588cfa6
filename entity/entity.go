// Package entity defines the output record produced by the structural C++
// extraction pipeline, along with the run statistics and the Global URI
// assembly rule shared with the semantic indexing layer.
package entity

import (
	"strings"
	"sync/atomic"
)

// EntityType tags the syntactic kind of an extracted entity.
type EntityType string

const (
	Class    EntityType = "Class"
	Struct   EntityType = "Struct"
	Function EntityType = "Function"
)

// ExtractedEntity is a single canonical entity record. Records are created
// once during traversal and never mutated afterwards.
type ExtractedEntity struct {
	GlobalURI   string     `json:"global_uri"`
	RepoName    string     `json:"repo_name"`
	FilePath    string     `json:"file_path"`
	EntityType  EntityType `json:"entity_type"`
	EntityName  string     `json:"entity_name"`
	Docstring   *string    `json:"docstring"`
	CodeText    string     `json:"code_text"`
	StartLine   int        `json:"start_line"`
	EndLine     int        `json:"end_line"`
	IsTemplated bool       `json:"is_templated"`
}

// Record flattens the entity into a plain key/value form for downstream
// consumers that do not want to depend on the Go struct. Field names match
// the JSON serialization exactly. A missing docstring is a nil value, not an
// absent key.
func (e *ExtractedEntity) Record() map[string]any {
	var docstring any
	if e.Docstring != nil {
		docstring = *e.Docstring
	}

	return map[string]any{
		"global_uri":   e.GlobalURI,
		"repo_name":    e.RepoName,
		"file_path":    e.FilePath,
		"entity_type":  string(e.EntityType),
		"entity_name":  e.EntityName,
		"docstring":    docstring,
		"code_text":    e.CodeText,
		"start_line":   e.StartLine,
		"end_line":     e.EndLine,
		"is_templated": e.IsTemplated,
	}
}

// AssembleURI joins the already-normalized identity components into the
// Global URI. The separator is not escaped: file paths use forward slashes
// and entity names use "::" internally, which is acceptable because the
// first two segments are positional. The semantic indexing layer must
// produce byte-identical URIs for the same entity, so this must stay a
// literal concatenation.
func AssembleURI(repoName string, filePath string, entityType EntityType, entityName string) string {
	return strings.Join(
		[]string{repoName, filePath, string(entityType), entityName},
		"::",
	)
}

// ExtractionStats holds per-run counters. Counters are monotonic and safe
// for concurrent increment from walker workers; they are never reset
// mid-run.
type ExtractionStats struct {
	FilesProcessed    uint64 `json:"files_processed"`
	FilesFailed       uint64 `json:"files_failed"`
	EntitiesExtracted uint64 `json:"entities_extracted"`
	ParseErrors       uint64 `json:"parse_errors"`
	DuplicateURIs     uint64 `json:"duplicate_uris"`
}

func (s *ExtractionStats) AddFilesProcessed(n uint64) {
	atomic.AddUint64(&s.FilesProcessed, n)
}

func (s *ExtractionStats) AddFilesFailed(n uint64) {
	atomic.AddUint64(&s.FilesFailed, n)
}

func (s *ExtractionStats) AddEntitiesExtracted(n uint64) {
	atomic.AddUint64(&s.EntitiesExtracted, n)
}

func (s *ExtractionStats) AddParseErrors(n uint64) {
	atomic.AddUint64(&s.ParseErrors, n)
}

func (s *ExtractionStats) AddDuplicateURIs(n uint64) {
	atomic.AddUint64(&s.DuplicateURIs, n)
}

// Snapshot returns a plain copy safe to serialize while workers may still
// be incrementing the live counters.
func (s *ExtractionStats) Snapshot() ExtractionStats {
	return ExtractionStats{
		FilesProcessed:    atomic.LoadUint64(&s.FilesProcessed),
		FilesFailed:       atomic.LoadUint64(&s.FilesFailed),
		EntitiesExtracted: atomic.LoadUint64(&s.EntitiesExtracted),
		ParseErrors:       atomic.LoadUint64(&s.ParseErrors),
		DuplicateURIs:     atomic.LoadUint64(&s.DuplicateURIs),
	}
}

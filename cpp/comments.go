package cpp

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// IsDocComment reports whether a comment's source text uses one of the
// documentation dialects (`///`, `/**`, `//!`, `/*!`).
func IsDocComment(text string) bool {
	for _, prefix := range DOC_COMMENT_PREFIXES {
		if strings.HasPrefix(text, prefix) {
			return true
		}
	}

	return false
}

/* collectAdjacentComments walks the named previous siblings of the outer
 * node backward, collecting the contiguous run of comment tokens with no
 * blank-line gap. Attribution is positional, not structural: a plain
 * `// TODO` line interleaved with `///` lines belongs to the same block as
 * long as no blank line separates them.
 */
func collectAdjacentComments(outer *sitter.Node, sourceCode []byte) []string {
	collected := make([]string, 0)
	expectedLine := int(outer.StartPoint().Row) + 1

	for sibling := outer.PrevNamedSibling(); sibling != nil; sibling = sibling.PrevNamedSibling() {
		if sibling.Type() != "comment" {
			break
		}

		gap := expectedLine - (int(sibling.EndPoint().Row) + 1)
		if gap > 1 {
			break
		}

		collected = append([]string{sibling.Content(sourceCode)}, collected...)
		expectedLine = int(sibling.StartPoint().Row) + 1
	}

	return collected
}

// docstringFor aggregates the adjacent comment block preceding the outer
// node. Returns nil when no adjacent comments exist. Plain comments are
// preserved alongside doc comments: informal documentation still counts.
func docstringFor(outer *sitter.Node, sourceCode []byte, normalize bool) *string {
	collected := collectAdjacentComments(outer, sourceCode)
	if len(collected) == 0 {
		return nil
	}

	text := strings.Join(collected, "\n")
	if normalize {
		text = NormalizeDocComment(text)
	}
	if text == "" {
		return nil
	}

	return &text
}

// NormalizeDocComment strips comment delimiters and the leading `*` gutter
// of block comments, leaving only the documentation text. Applied after
// aggregation, so adjacency logic always operates on raw text.
func NormalizeDocComment(text string) string {
	lines := strings.Split(text, "\n")
	normalized := make([]string, 0, len(lines))

	for _, line := range lines {
		stripped := strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(stripped, "///"):
			stripped = strings.TrimPrefix(stripped, "///")
		case strings.HasPrefix(stripped, "//!"):
			stripped = strings.TrimPrefix(stripped, "//!")
		case strings.HasPrefix(stripped, "//"):
			stripped = strings.TrimPrefix(stripped, "//")
		case strings.HasPrefix(stripped, "/**"):
			stripped = strings.TrimPrefix(stripped, "/**")
		case strings.HasPrefix(stripped, "/*!"):
			stripped = strings.TrimPrefix(stripped, "/*!")
		case strings.HasPrefix(stripped, "/*"):
			stripped = strings.TrimPrefix(stripped, "/*")
		case strings.HasPrefix(stripped, "*") && !strings.HasPrefix(stripped, "*/"):
			stripped = strings.TrimPrefix(stripped, "*")
		}

		stripped = strings.TrimSuffix(stripped, "*/")
		stripped = strings.TrimSpace(stripped)

		if stripped != "" {
			normalized = append(normalized, stripped)
		}
	}

	return strings.Join(normalized, "\n")
}

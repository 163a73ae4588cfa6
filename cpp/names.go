package cpp

import (
	"strings"
	"unicode"

	sitter "github.com/smacker/go-tree-sitter"
)

// declaratorName descends a declarator subtree to its innermost name-bearing
// node and returns the raw name text. Handles plain identifiers, qualified
// identifiers (kept verbatim), destructor names, operator names, conversion
// operators and field identifiers. Returns "" when no name can be found,
// which callers treat as a dropped entity.
func declaratorName(node *sitter.Node, sourceCode []byte) string {
	if node == nil {
		return ""
	}

	nodeType := node.Type()

	if isNameBearing(nodeType) {
		return node.Content(sourceCode)
	}

	if isDeclaratorWrapper(nodeType) {
		if declarator := node.ChildByFieldName("declarator"); declarator != nil {
			if name := declaratorName(declarator, sourceCode); name != "" {
				return name
			}
		}

		// Some wrappers (e.g. reference_declarator) attach the inner
		// declarator as an anonymous child rather than a field.
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			if child.Type() == "parameter_list" {
				continue
			}
			if name := declaratorName(child, sourceCode); name != "" {
				return name
			}
		}
	}

	return ""
}

// canonicalName normalizes a raw declarator name: whitespace is removed
// (modulo the single space the operator keyword keeps before a word-form
// symbol such as `operator new`), and names that still carry comment tokens
// are rejected. Returns "" for anything that cannot be normalized.
func canonicalName(raw string) string {
	name := collapseName(raw)
	if strings.Contains(name, "//") || strings.Contains(name, "/*") {
		return ""
	}

	return name
}

// qualifyName prepends the active namespace stack. Anonymous namespaces
// contribute empty segments which are transparent: they never show up in
// the joined name.
func qualifyName(namespaces []string, name string) string {
	var s strings.Builder

	for _, segment := range namespaces {
		if segment == "" {
			continue
		}
		s.WriteString(segment)
		s.WriteString("::")
	}
	s.WriteString(name)

	return s.String()
}

/* collapseName removes every whitespace run from a name. The one exception
 * is an `operator` keyword followed by a word-form symbol: `operator new`,
 * `operator delete[]` and conversion operators like `operator bool` keep a
 * single separating space, because gluing the keyword to the identifier
 * would manufacture a different token. Symbol-form operators are joined
 * tight: `operator ==` becomes `operator==`.
 */
func collapseName(name string) string {
	var s strings.Builder
	runes := []rune(name)

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if !unicode.IsSpace(r) {
			s.WriteRune(r)
			continue
		}

		j := i
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}

		if j < len(runes) && endsWithOperatorKeyword(s.String()) {
			next := runes[j]
			if unicode.IsLetter(next) || next == '_' {
				s.WriteRune(' ')
			}
		}

		i = j - 1
	}

	return s.String()
}

func endsWithOperatorKeyword(prefix string) bool {
	if !strings.HasSuffix(prefix, "operator") {
		return false
	}

	head := prefix[:len(prefix)-len("operator")]
	if head == "" {
		return true
	}

	// Qualified operators: the keyword must sit right after a scope
	// separator, not be the tail of a longer identifier.
	return strings.HasSuffix(head, ":")
}

package cpp

const (
	LANGUAGE_NAME = "cpp"
)

var (
	// SOURCE_EXTENSIONS is the set of file extensions the directory walker
	// treats as C++ translation units or headers.
	SOURCE_EXTENSIONS = map[string]bool{
		".cpp": true,
		".cc":  true,
		".cxx": true,
		".h":   true,
		".hpp": true,
		".hxx": true,
	}

	// DOC_COMMENT_PREFIXES are the comment dialects treated as
	// documentation. Anything else is a plain comment.
	DOC_COMMENT_PREFIXES = []string{"///", "/**", "//!", "/*!"}
)

// C++ tree-sitter grammar:
// https://github.com/tree-sitter/tree-sitter-cpp/blob/master/src/node-types.json

func isPreprocConditional(nodeType string) bool {
	switch nodeType {
	case "preproc_if",
		"preproc_ifdef",
		"preproc_elif",
		"preproc_else":
		return true

	default:
		return false
	}
}

func isClassLike(nodeType string) bool {
	switch nodeType {
	case "class_specifier",
		"struct_specifier":
		return true

	default:
		return false
	}
}

// Declarator wrappers that carry the entity name somewhere beneath them.
func isDeclaratorWrapper(nodeType string) bool {
	switch nodeType {
	case "function_declarator",
		"pointer_declarator",
		"reference_declarator",
		"array_declarator",
		"parenthesized_declarator",
		"init_declarator":
		return true

	default:
		return false
	}
}

// Nodes that directly carry an entity name.
func isNameBearing(nodeType string) bool {
	switch nodeType {
	case "identifier",
		"field_identifier",
		"type_identifier",
		"qualified_identifier",
		"destructor_name",
		"operator_name",
		"operator_cast":
		return true

	default:
		return false
	}
}

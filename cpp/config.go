package cpp

import "log"

// DeclarationPolicy controls whether body-less function declarations are
// extracted as entities. Definitions are always extracted; this only
// affects declarations like `void init();`.
type DeclarationPolicy string

const (
	// DECLARATIONS_LINKAGE_ONLY extracts function declarations only when
	// they appear inside a linkage specification body, e.g.
	// `extern "C" { void init(); }`. This matches the historical behavior
	// the downstream stores were built against.
	DECLARATIONS_LINKAGE_ONLY DeclarationPolicy = "linkage-only"

	// DECLARATIONS_NONE drops all body-less function declarations.
	DECLARATIONS_NONE DeclarationPolicy = "none"

	// DECLARATIONS_ALL extracts every function declaration regardless of
	// its enclosing context.
	DECLARATIONS_ALL DeclarationPolicy = "all"
)

func DeclarationPolicyValue(value string) DeclarationPolicy {
	switch DeclarationPolicy(value) {
	case DECLARATIONS_LINKAGE_ONLY:
		return DECLARATIONS_LINKAGE_ONLY
	case DECLARATIONS_NONE:
		return DECLARATIONS_NONE
	case DECLARATIONS_ALL:
		return DECLARATIONS_ALL
	default:
		log.Fatalf(
			"Invalid declaration policy: %s. Accepted values are %s, %s or %s",
			value,
			DECLARATIONS_LINKAGE_ONLY,
			DECLARATIONS_NONE,
			DECLARATIONS_ALL,
		)
		panic("unreachable")
	}
}

func (p DeclarationPolicy) String() string {
	return string(p)
}

// Config holds the per-extractor knobs. The zero value is not meaningful;
// use DefaultConfig.
type Config struct {
	// DeclarationPolicy governs body-less function declarations.
	DeclarationPolicy DeclarationPolicy

	// NormalizeDocstrings strips comment delimiters (`///`, `/**`, `*/`,
	// leading `*` gutters) from aggregated docstrings. Off by default:
	// downstream hashing depends on raw text being preserved.
	NormalizeDocstrings bool
}

func DefaultConfig() Config {
	return Config{
		DeclarationPolicy:   DECLARATIONS_LINKAGE_ONLY,
		NormalizeDocstrings: false,
	}
}

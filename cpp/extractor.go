package cpp

import (
	"bytes"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/liliyayaqiqi/cxxtract/entity"
)

// Extractor turns C++ source bytes into a stream of canonical entity
// records. It owns a reusable parser and is single-thread owned; the
// directory walker instantiates one per worker.
type Extractor struct {
	parser *Parser
	config Config
	logger *zap.Logger
}

func NewExtractor(config Config, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Extractor{
		parser: NewParser(),
		config: config,
		logger: logger,
	}
}

// ExtractSource parses sourceCode and extracts every top-level class,
// struct and function definition in source order. Returns the entity
// records plus a parse-error count: one when the tree contains error
// regions (or the parser fails outright), plus one for each candidate
// dropped because its name could not be recovered from an error-marked
// subtree.
func (x *Extractor) ExtractSource(
	sourceCode []byte,
	repoName string,
	filePath string,
) ([]entity.ExtractedEntity, int) {

	tree, err := x.parser.ParseBytes(sourceCode)
	if err != nil {
		x.logger.Warn("C++ parser failed", zap.String("file", filePath), zap.Error(err))
		return nil, 1
	}
	defer tree.Close()

	rootNode := tree.RootNode()

	f := &fileExtraction{
		extractor:  x,
		sourceCode: sourceCode,
		repoName:   repoName,
		filePath:   filePath,
		entities:   make([]entity.ExtractedEntity, 0),
	}

	if rootNode.HasError() {
		f.parseErrors++
		if x.logger.Core().Enabled(zapcore.DebugLevel) {
			for _, treeErr := range QueryErrors(sourceCode, rootNode) {
				x.logger.Debug(
					"recovering from partial parse",
					zap.String("file", filePath),
					zap.Error(treeErr),
				)
			}
		}
	}

	f.walkContainer(rootNode, nil, false)

	return f.entities, f.parseErrors
}

// fileExtraction carries the per-file traversal state. The namespace stack
// is threaded through the recursion as a parameter, never stored globally.
type fileExtraction struct {
	extractor   *Extractor
	sourceCode  []byte
	repoName    string
	filePath    string
	entities    []entity.ExtractedEntity
	parseErrors int
}

func (f *fileExtraction) walkContainer(node *sitter.Node, namespaces []string, inLinkage bool) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		f.dispatch(node.NamedChild(i), namespaces, inLinkage)
	}
}

func (f *fileExtraction) dispatch(node *sitter.Node, namespaces []string, inLinkage bool) {
	nodeType := node.Type()

	switch {
	case nodeType == "namespace_definition":
		f.enterNamespace(node, namespaces)

	case nodeType == "linkage_specification":
		// extern "C" { ... } is transparent: no namespace segment.
		body := node.ChildByFieldName("body")
		if body == nil {
			return
		}
		if body.Type() == "declaration_list" {
			f.walkContainer(body, namespaces, true)
		} else {
			// extern "C" void f(); attaches the declaration directly.
			f.dispatch(body, namespaces, true)
		}

	case isPreprocConditional(nodeType):
		// Conditional branches are traversed as-is; no macro expansion.
		f.walkContainer(node, namespaces, inLinkage)

	case nodeType == "template_declaration":
		f.extractTemplate(node, node, namespaces, inLinkage)

	case isClassLike(nodeType):
		f.extractClassLike(node, node, namespaces, false)

	case nodeType == "function_definition":
		f.extractFunction(node, node, namespaces, false)

	case nodeType == "declaration":
		f.handleDeclaration(node, node, namespaces, inLinkage, false)

	case nodeType == "ERROR":
		// We might end up with some gibberish, but do our best to recover
		// from tree-sitter parse errors.
		f.walkContainer(node, namespaces, inLinkage)
	}
}

func (f *fileExtraction) enterNamespace(node *sitter.Node, namespaces []string) {
	body := node.ChildByFieldName("body")
	if body == nil {
		return
	}

	// Anonymous namespaces push an empty segment, which qualifyName treats
	// as transparent. C++17 nested specifiers (`namespace a::b`) come back
	// as a single "a::b" segment and join cleanly.
	segment := ""
	if nameNode := node.ChildByFieldName("name"); nameNode != nil {
		segment = canonicalName(nameNode.Content(f.sourceCode))
	}

	next := make([]string, 0, len(namespaces)+1)
	next = append(next, namespaces...)
	next = append(next, segment)

	f.walkContainer(body, next, false)
}

// extractTemplate inspects the inner node of a template declaration. The
// outer (template) node is used uniformly for doc-comment search, byte
// range and line range, so code_text always starts at the template prefix.
func (f *fileExtraction) extractTemplate(
	node *sitter.Node,
	outer *sitter.Node,
	namespaces []string,
	inLinkage bool,
) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		inner := node.NamedChild(i)
		innerType := inner.Type()

		switch {
		case isClassLike(innerType):
			f.extractClassLike(inner, outer, namespaces, true)
			return

		case innerType == "function_definition":
			f.extractFunction(inner, outer, namespaces, true)
			return

		case innerType == "declaration":
			f.handleDeclaration(inner, outer, namespaces, inLinkage, true)
			return

		case innerType == "template_declaration":
			// Out-of-class member templates nest a second wrapper; the
			// outermost one still owns the byte range.
			f.extractTemplate(inner, outer, namespaces, inLinkage)
			return
		}
	}
}

func (f *fileExtraction) handleDeclaration(
	node *sitter.Node,
	outer *sitter.Node,
	namespaces []string,
	inLinkage bool,
	isTemplated bool,
) {
	// A declaration wrapping a class/struct specifier with a body is
	// unwrapped: the inner specifier is the entity.
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if isClassLike(child.Type()) && child.ChildByFieldName("body") != nil {
			classOuter := child
			if outer != node {
				classOuter = outer
			}
			f.extractClassLike(child, classOuter, namespaces, isTemplated)
			return
		}
	}

	declarator := node.ChildByFieldName("declarator")
	if declarator == nil || !hasFunctionDeclarator(declarator) {
		// Variables, typedefs, using-declarations: skipped.
		return
	}

	if !f.declarationExtractable(inLinkage) {
		f.drop(node, "function declaration without body")
		return
	}

	f.extractFunction(node, outer, namespaces, isTemplated)
}

func (f *fileExtraction) declarationExtractable(inLinkage bool) bool {
	switch f.extractor.config.DeclarationPolicy {
	case DECLARATIONS_ALL:
		return true
	case DECLARATIONS_LINKAGE_ONLY:
		return inLinkage
	default:
		return false
	}
}

func (f *fileExtraction) extractClassLike(
	inner *sitter.Node,
	outer *sitter.Node,
	namespaces []string,
	isTemplated bool,
) {
	nameNode := inner.ChildByFieldName("name")
	if nameNode == nil {
		f.drop(inner, "anonymous class/struct")
		return
	}

	if inner.ChildByFieldName("body") == nil {
		f.drop(inner, "forward declaration")
		return
	}

	name := canonicalName(nameNode.Content(f.sourceCode))
	if name == "" {
		f.dropUnnameable(outer)
		return
	}

	entityType := entity.Class
	if inner.Type() == "struct_specifier" {
		entityType = entity.Struct
	}

	f.emit(outer, entityType, qualifyName(namespaces, name), isTemplated)
}

func (f *fileExtraction) extractFunction(
	inner *sitter.Node,
	outer *sitter.Node,
	namespaces []string,
	isTemplated bool,
) {
	declarator := inner.ChildByFieldName("declarator")
	name := canonicalName(declaratorName(declarator, f.sourceCode))
	if name == "" {
		f.dropUnnameable(outer)
		return
	}

	f.emit(outer, entity.Function, qualifyName(namespaces, name), isTemplated)
}

func (f *fileExtraction) emit(
	outer *sitter.Node,
	entityType entity.EntityType,
	entityName string,
	isTemplated bool,
) {
	codeText := decodeUTF8Lossy(f.sourceCode[outer.StartByte():outer.EndByte()])

	f.entities = append(f.entities, entity.ExtractedEntity{
		GlobalURI:   entity.AssembleURI(f.repoName, f.filePath, entityType, entityName),
		RepoName:    f.repoName,
		FilePath:    f.filePath,
		EntityType:  entityType,
		EntityName:  entityName,
		Docstring:   docstringFor(outer, f.sourceCode, f.extractor.config.NormalizeDocstrings),
		CodeText:    codeText,
		StartLine:   int(outer.StartPoint().Row) + 1,
		EndLine:     int(outer.EndPoint().Row) + 1,
		IsTemplated: isTemplated,
	})
}

// drop records a silent skip: anonymous classes, forward declarations,
// filtered declarations.
func (f *fileExtraction) drop(node *sitter.Node, reason string) {
	f.extractor.logger.Debug(
		"dropping entity",
		zap.String("file", f.filePath),
		zap.Int("line", int(node.StartPoint().Row)+1),
		zap.String("reason", reason),
	)
}

// dropUnnameable handles candidates whose name could not be canonicalized.
// Inside an error-marked subtree that counts as a parse error; otherwise
// it is an ordinary drop.
func (f *fileExtraction) dropUnnameable(outer *sitter.Node) {
	if outer.HasError() {
		f.parseErrors++
	}
	f.drop(outer, "unnameable declarator")
}

func hasFunctionDeclarator(node *sitter.Node) bool {
	if node.Type() == "function_declarator" {
		return true
	}

	if isDeclaratorWrapper(node.Type()) {
		for i := 0; i < int(node.NamedChildCount()); i++ {
			if hasFunctionDeclarator(node.NamedChild(i)) {
				return true
			}
		}
	}

	return false
}

// decodeUTF8Lossy decodes a source slice with lossy replacement so that
// extraction is total and downstream hashing stays deterministic.
func decodeUTF8Lossy(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}

	return string(bytes.ToValidUTF8(b, []byte("�")))
}

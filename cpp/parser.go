package cpp

import (
	"context"
	"fmt"
	"os"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/cpp"
)

var CPP_LANG = cpp.GetLanguage()

func cppErrorQuery() *sitter.Query {
	query, err := sitter.NewQuery([]byte(`(ERROR) @error`), CPP_LANG)

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error querying for tree-sitter errors, exiting...\n")
		panic(err)
	}

	return query
}

var ERROR_QUERY = cppErrorQuery()

// Parser wraps a reusable tree-sitter C++ parser. A Parser is single-thread
// owned: the directory walker instantiates one per worker.
type Parser struct {
	parser *sitter.Parser
}

func NewParser() *Parser {
	parser := sitter.NewParser()
	parser.SetLanguage(CPP_LANG)

	return &Parser{parser: parser}
}

// ParseBytes turns source bytes into a syntax tree. Ill-formed input never
// fails: the GLR parser marks error regions inside the tree instead, and
// downstream traversal treats those markers as data.
func (p *Parser) ParseBytes(source []byte) (*sitter.Tree, error) {
	tree, err := p.parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil, fmt.Errorf("parsing C++ source: %w", err)
	}

	return tree, nil
}

// ParseFile reads path in binary mode and parses it. The only failure modes
// are file-system errors; syntax errors do not fail.
func (p *Parser) ParseFile(path string) (*sitter.Tree, []byte, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading source file %s: %w", path, err)
	}

	tree, err := p.ParseBytes(source)
	if err != nil {
		return nil, nil, err
	}

	return tree, source, nil
}

// QueryErrors reports every error region under node as one error per
// occurrence, pointing at the offending source line. Used for debug
// output only; extraction itself recovers from partial parses.
//
// Taken from https://github.com/aspect-build/aspect-cli/blob/v1.509.25/gazelle/common/treesitter/queries.go#L93.
func QueryErrors(sourceCode []byte, node *sitter.Node) []error {
	if !node.HasError() {
		return nil
	}

	errors := make([]error, 0)

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(ERROR_QUERY, node)

	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}

		for _, c := range m.Captures {
			at := c.Node
			atStart := at.StartPoint()
			show := c.Node

			// Navigate up the AST to include the full source line
			if atStart.Column > 0 {
				for show.StartPoint().Row > 0 && show.StartPoint().Row == atStart.Row {
					show = show.Parent()
				}
			}

			// Extract only that line from the parent Node
			lineI := int(atStart.Row - show.StartPoint().Row)
			colI := int(atStart.Column)
			lines := strings.Split(show.Content(sourceCode), "\n")
			if lineI >= len(lines) {
				continue
			}

			pre := fmt.Sprintf("     %d: ", atStart.Row+1)
			msg := pre + lines[lineI]
			arw := strings.Repeat(" ", len(pre)+colI) + "^"

			errors = append(errors, fmt.Errorf("%s\n%s", msg, arw))
		}
	}

	return errors
}

// Package tsresolver resolves TypeScript and TSX symbols with
// tree-sitter. It walks top-level declarations only: nested helpers are
// covered by their enclosing symbol's span.
package tsresolver

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tstypes "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"github.com/repoctx/repoctx/internal/models"
	"github.com/repoctx/repoctx/internal/resolver"
)

type TSResolver struct{}

func New() *TSResolver { return &TSResolver{} }

// Resolve parses the file and returns top-level symbol spans. It never
// fails: any parse problem yields nil and the caller falls back to
// line-window chunking.
func (r *TSResolver) Resolve(path, text string) []models.Span {
	code := []byte(text)
	parser := tree_sitter.NewParser()
	defer parser.Close()

	lang := tree_sitter.NewLanguage(tstypes.LanguageTypescript())
	if strings.HasSuffix(path, ".tsx") || strings.HasSuffix(path, ".jsx") {
		lang = tree_sitter.NewLanguage(tstypes.LanguageTSX())
	}
	if err := parser.SetLanguage(lang); err != nil {
		return nil
	}

	tree := parser.Parse(code, nil)
	if tree == nil {
		return nil
	}
	defer tree.Close()

	var spans []models.Span
	root := tree.RootNode()
	for i := uint(0); i < root.ChildCount(); i++ {
		spans = appendDecl(spans, unwrapExport(root.Child(i)), code)
	}
	return spans
}

// unwrapExport descends through export statements to the declaration.
func unwrapExport(n *tree_sitter.Node) *tree_sitter.Node {
	if n.Kind() != "export_statement" {
		return n
	}
	if d := n.ChildByFieldName("declaration"); d != nil {
		return d
	}
	return n
}

func appendDecl(spans []models.Span, n *tree_sitter.Node, code []byte) []models.Span {
	switch n.Kind() {
	case "function_declaration", "generator_function_declaration":
		spans = append(spans, span(n, childIdentifier(n, code), models.SymbolFunction))
	case "class_declaration", "abstract_class_declaration":
		spans = appendClass(spans, n, code)
	case "interface_declaration", "enum_declaration", "type_alias_declaration":
		spans = append(spans, span(n, childIdentifier(n, code), models.SymbolClass))
	case "module", "internal_module":
		spans = append(spans, span(n, childIdentifier(n, code), models.SymbolModule))
	}
	return spans
}

// appendClass emits one span per method so large classes chunk along
// method boundaries; a class without methods becomes one class span.
func appendClass(spans []models.Span, n *tree_sitter.Node, code []byte) []models.Span {
	className := childIdentifier(n, code)
	body := n.ChildByFieldName("body")
	if body == nil {
		return append(spans, span(n, className, models.SymbolClass))
	}
	found := false
	for i := uint(0); i < body.NamedChildCount(); i++ {
		m := body.NamedChild(i)
		if m.Kind() != "method_definition" {
			continue
		}
		name := childIdentifier(m, code)
		if className != "" {
			name = className + "." + name
		}
		spans = append(spans, span(m, name, models.SymbolMethod))
		found = true
	}
	if !found {
		return append(spans, span(n, className, models.SymbolClass))
	}
	return spans
}

func span(n *tree_sitter.Node, fqn string, kind models.SymbolKind) models.Span {
	return models.Span{
		FQN:       fqn,
		Kind:      kind,
		StartLine: int(n.StartPosition().Row) + 1,
		EndLine:   int(n.EndPosition().Row) + 1,
	}
}

func childIdentifier(n *tree_sitter.Node, code []byte) string {
	if c := n.ChildByFieldName("name"); c != nil {
		return string(code[c.StartByte():c.EndByte()])
	}
	for i := uint(0); i < n.NamedChildCount(); i++ {
		c := n.NamedChild(i)
		kind := c.Kind()
		if kind == "identifier" || kind == "property_identifier" || kind == "type_identifier" {
			return string(code[c.StartByte():c.EndByte()])
		}
	}
	return ""
}

var _ resolver.Resolver = (*TSResolver)(nil)

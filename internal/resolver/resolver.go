// Package resolver maps file text to symbol spans. Resolution is best
// effort: a resolver never returns an error, it returns zero spans and
// the chunker falls back to line windows. One unparsable file must
// never abort indexing of the rest of the repository.
package resolver

import (
	"path/filepath"
	"strings"

	"github.com/repoctx/repoctx/internal/models"
)

type Resolver interface {
	// Resolve returns symbol spans for the file, best effort. A nil
	// result means line-window chunking.
	Resolve(path, text string) []models.Span
}

type entry struct {
	resolver Resolver
	source   models.SourceType
}

// Registry selects a resolver variant and a source type by file
// extension. Unknown extensions get the no-op resolver.
type Registry struct {
	byExt    map[string]entry
	fallback entry
}

// NewRegistry returns a registry with the built-in variants registered.
func NewRegistry(code Resolver) *Registry {
	reg := &Registry{
		byExt:    make(map[string]entry),
		fallback: entry{resolver: Noop{}, source: models.SourceCode},
	}
	for _, ext := range []string{".ts", ".tsx", ".js", ".jsx"} {
		reg.Register(ext, code, models.SourceCode)
	}
	for _, ext := range []string{".md", ".markdown"} {
		reg.Register(ext, Markdown{}, models.SourceDoc)
	}
	reg.Register(".txt", Noop{}, models.SourceDoc)
	for _, ext := range []string{".json", ".yaml", ".yml", ".toml", ".ini"} {
		reg.Register(ext, Noop{}, models.SourceConfig)
	}
	return reg
}

// Register binds an extension (with leading dot) to a resolver variant.
func (r *Registry) Register(ext string, res Resolver, source models.SourceType) {
	r.byExt[strings.ToLower(ext)] = entry{resolver: res, source: source}
}

// ForFile returns the resolver and source type for a path.
func (r *Registry) ForFile(path string) (Resolver, models.SourceType) {
	if e, ok := r.byExt[strings.ToLower(filepath.Ext(path))]; ok {
		return e.resolver, e.source
	}
	return r.fallback.resolver, r.fallback.source
}

// Noop is the universal fallback variant: no spans, so every file it
// covers is chunked as fixed line windows.
type Noop struct{}

func (Noop) Resolve(string, string) []models.Span { return nil }

// Markdown resolves ATX headings into module-kind spans: each heading
// opens a span that runs until the next heading or end of file.
type Markdown struct{}

func (Markdown) Resolve(_, text string) []models.Span {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	var spans []models.Span
	for i, line := range lines {
		title, ok := headingTitle(line)
		if !ok {
			continue
		}
		if len(spans) > 0 {
			spans[len(spans)-1].EndLine = i // previous span ends on line i (1-based i+1-1)
		}
		spans = append(spans, models.Span{
			FQN:       title,
			Kind:      models.SymbolModule,
			StartLine: i + 1,
			EndLine:   len(lines),
		})
	}
	return spans
}

func headingTitle(line string) (string, bool) {
	trimmed := strings.TrimLeft(line, "#")
	hashes := len(line) - len(trimmed)
	if hashes < 1 || hashes > 6 || !strings.HasPrefix(trimmed, " ") {
		return "", false
	}
	title := strings.TrimSpace(trimmed)
	if title == "" {
		return "", false
	}
	return title, true
}

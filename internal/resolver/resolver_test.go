package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repoctx/repoctx/internal/models"
)

func TestRegistrySelectsByExtension(t *testing.T) {
	reg := NewRegistry(Noop{})

	_, source := reg.ForFile("src/app.ts")
	assert.Equal(t, models.SourceCode, source)

	res, source := reg.ForFile("README.md")
	assert.Equal(t, models.SourceDoc, source)
	assert.IsType(t, Markdown{}, res)

	_, source = reg.ForFile("config.yaml")
	assert.Equal(t, models.SourceConfig, source)

	res, source = reg.ForFile("Makefile")
	assert.Equal(t, models.SourceCode, source)
	assert.IsType(t, Noop{}, res)
}

func TestRegistryCaseInsensitiveExtension(t *testing.T) {
	reg := NewRegistry(Noop{})
	_, source := reg.ForFile("NOTES.MD")
	assert.Equal(t, models.SourceDoc, source)
}

func TestNoopResolvesNothing(t *testing.T) {
	assert.Nil(t, Noop{}.Resolve("x.txt", "some\ncontent"))
}

func TestMarkdownHeadings(t *testing.T) {
	text := "# Title\n\nintro text\n\n## Install\n\nsteps\n\n## Usage\n\nexample\n"
	spans := Markdown{}.Resolve("README.md", text)

	require.Len(t, spans, 3)
	assert.Equal(t, "Title", spans[0].FQN)
	assert.Equal(t, models.SymbolModule, spans[0].Kind)
	assert.Equal(t, 1, spans[0].StartLine)
	assert.Equal(t, 4, spans[0].EndLine)

	assert.Equal(t, "Install", spans[1].FQN)
	assert.Equal(t, 5, spans[1].StartLine)
	assert.Equal(t, 8, spans[1].EndLine)

	assert.Equal(t, "Usage", spans[2].FQN)
	assert.Equal(t, 9, spans[2].StartLine)
}

func TestMarkdownIgnoresNonHeadings(t *testing.T) {
	spans := Markdown{}.Resolve("doc.md", "#not a heading\n####### seven\nplain\n")
	assert.Empty(t, spans)
}

func TestMarkdownNoHeadings(t *testing.T) {
	assert.Empty(t, Markdown{}.Resolve("doc.md", "just\nprose\n"))
}

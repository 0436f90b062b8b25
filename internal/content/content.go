// Package content abstracts where repository files come from. Indexing
// reads a snapshot of files through a Provider; retrieval never touches
// it.
package content

import (
	"context"
	"errors"

	"github.com/repoctx/repoctx/internal/models"
)

// ErrUnreachable marks a snapshot that could not be enumerated at all.
// A run that hits it fails before any store mutation.
var ErrUnreachable = errors.New("content source unreachable")

type Provider interface {
	// ListFiles returns the files of a repository snapshot at the given
	// commit. Entries flagged binary carry no text.
	ListFiles(ctx context.Context, repoID, commit string) ([]models.FileEntry, error)
}

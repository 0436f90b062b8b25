package models

import "time"

type SymbolKind string

const (
	SymbolFunction SymbolKind = "function"
	SymbolMethod   SymbolKind = "method"
	SymbolClass    SymbolKind = "class"
	SymbolModule   SymbolKind = "module"
	SymbolUnknown  SymbolKind = "unknown"
)

func StringToSymbolKind(s string) SymbolKind {
	switch SymbolKind(s) {
	case SymbolFunction, SymbolMethod, SymbolClass, SymbolModule:
		return SymbolKind(s)
	default:
		return SymbolUnknown
	}
}

type SourceType string

const (
	SourceCode   SourceType = "code"
	SourceDoc    SourceType = "doc"
	SourceConfig SourceType = "config"
)

// MaxPathLen is the longest file path the catalog accepts.
const MaxPathLen = 1024

// CommitHexLen is the commit hash length for the supported VCS.
const CommitHexLen = 40

// ValidCommit reports whether s is a full-length lowercase hex commit hash.
func ValidCommit(s string) bool {
	if len(s) != CommitHexLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// Span is a symbol boundary reported by a resolver. Lines are 1-based
// and inclusive.
type Span struct {
	FQN       string
	Kind      SymbolKind
	StartLine int
	EndLine   int
}

// FileEntry is one file of a repository snapshot as delivered by a
// content provider.
type FileEntry struct {
	Path     string
	Text     string
	IsBinary bool
}

// Chunk is the unit of indexed content. (RepoID, Path, StartLine,
// EndLine, Commit) uniquely identifies a chunk version; VectorID is
// empty until the chunk's embedding has been upserted into the vector
// store.
type Chunk struct {
	RepoID      string
	Path        string
	StartLine   int
	EndLine     int
	Commit      string
	SymbolFQN   string
	SymbolKind  SymbolKind
	Source      SourceType
	ContentHash string
	VectorID    string
	EmbedModel  string
	EmbedDim    int
	CreatedAt   time.Time
	EmbeddedAt  *time.Time
}

// RunState is the lifecycle state of one index run.
type RunState string

const (
	RunPending     RunState = "pending"
	RunEnumerating RunState = "enumerating"
	RunDiffing     RunState = "diffing"
	RunEmbedding   RunState = "embedding"
	RunReconciling RunState = "reconciling"
	RunComplete    RunState = "complete"
	RunPartial     RunState = "partial"
	RunFailed      RunState = "failed"
)

// Terminal reports whether the state is one of the three terminal states.
func (s RunState) Terminal() bool {
	return s == RunComplete || s == RunPartial || s == RunFailed
}

// Failure kinds surfaced on a PARTIAL run report.
const (
	FailureEmbedUnavailable = "embedding_unavailable"
	FailureEmbedRejected    = "embedding_rejected"
	FailureStoreUnavailable = "store_unavailable"
	FailureCancelled        = "cancelled"
)

// ChunkFailure records one chunk location that did not reach a
// successful terminal outcome, and why.
type ChunkFailure struct {
	Path      string
	StartLine int
	EndLine   int
	Kind      string
	Reason    string
}

// RunReport is the only information a run surfaces outward: terminal
// state, counters, and the failed locations of a PARTIAL run.
type RunReport struct {
	RunID          string
	RepoID         string
	Commit         string
	State          RunState
	Embedded       int
	CarriedForward int
	Deleted        int
	Failures       []ChunkFailure
	Err            string
	StartedAt      time.Time
	FinishedAt     time.Time
}

// ScoredChunk is one retrieval hit.
type ScoredChunk struct {
	Chunk Chunk
	Score float32
}

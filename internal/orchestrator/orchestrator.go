// Package orchestrator drives index runs. A run walks the fixed state
// sequence pending, enumerating, diffing, embedding, reconciling and
// ends complete, partial, or failed. At most one run per repository is
// in flight; concurrent starts coalesce onto the running one.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/repoctx/repoctx/internal/catalog"
	"github.com/repoctx/repoctx/internal/content"
	"github.com/repoctx/repoctx/internal/embeddings"
	"github.com/repoctx/repoctx/internal/models"
	"github.com/repoctx/repoctx/internal/resolver"
	"github.com/repoctx/repoctx/internal/vectorstore"
)

// Options tune run behavior. Zero values fall back to defaults.
type Options struct {
	MaxChunkLines  int
	EmbedBatchSize int
	EmbedFanOut    int
	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	// RetainHistory keeps catalog rows and vectors of superseded
	// commits instead of purging them after a run.
	RetainHistory bool
}

func DefaultOptions() Options {
	return Options{
		MaxChunkLines:  0, // chunker default
		EmbedBatchSize: 16,
		EmbedFanOut:    4,
		RetryAttempts:  3,
		RetryBaseDelay: 100 * time.Millisecond,
		RetryMaxDelay:  2 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.EmbedBatchSize <= 0 {
		o.EmbedBatchSize = def.EmbedBatchSize
	}
	if o.EmbedFanOut <= 0 {
		o.EmbedFanOut = def.EmbedFanOut
	}
	if o.RetryAttempts <= 0 {
		o.RetryAttempts = def.RetryAttempts
	}
	if o.RetryBaseDelay <= 0 {
		o.RetryBaseDelay = def.RetryBaseDelay
	}
	if o.RetryMaxDelay <= 0 {
		o.RetryMaxDelay = def.RetryMaxDelay
	}
	return o
}

type run struct {
	id     string
	repoID string
	cancel context.CancelFunc
	done   chan struct{}
}

type Orchestrator struct {
	provider  content.Provider
	resolvers *resolver.Registry
	embedder  embeddings.Embedder
	cache     *embeddings.Cache
	vec       vectorstore.Store
	cat       catalog.Catalog
	opts      Options

	mu      sync.Mutex
	active  map[string]*run              // repo id -> in-flight run
	runs    map[string]*run              // run id -> run
	reports map[string]*models.RunReport // run id -> latest report
}

func New(
	provider content.Provider,
	resolvers *resolver.Registry,
	embedder embeddings.Embedder,
	cache *embeddings.Cache,
	vec vectorstore.Store,
	cat catalog.Catalog,
	opts Options,
) *Orchestrator {
	if cache == nil {
		cache = embeddings.NewCache(0)
	}
	return &Orchestrator{
		provider:  provider,
		resolvers: resolvers,
		embedder:  embedder,
		cache:     cache,
		vec:       vec,
		cat:       cat,
		opts:      opts.withDefaults(),
		active:    make(map[string]*run),
		runs:      make(map[string]*run),
		reports:   make(map[string]*models.RunReport),
	}
}

// StartIndexRun begins indexing a repository snapshot and returns the
// run id without waiting for completion. When a run for the repository
// is already in flight, the in-flight run's id is returned instead of
// starting a second one.
func (o *Orchestrator) StartIndexRun(_ context.Context, repoID, commit string) (string, error) {
	if repoID == "" {
		return "", fmt.Errorf("repository id must not be empty")
	}
	if !models.ValidCommit(commit) {
		return "", fmt.Errorf("commit must be a %d-char lowercase hex hash, got %q", models.CommitHexLen, commit)
	}

	o.mu.Lock()
	if r, ok := o.active[repoID]; ok {
		o.mu.Unlock()
		return r.id, nil
	}
	runCtx, cancel := context.WithCancel(context.Background())
	r := &run{
		id:     uuid.NewString(),
		repoID: repoID,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	o.active[repoID] = r
	o.runs[r.id] = r
	o.reports[r.id] = &models.RunReport{
		RunID:     r.id,
		RepoID:    repoID,
		Commit:    commit,
		State:     models.RunPending,
		StartedAt: time.Now().UTC(),
	}
	o.mu.Unlock()

	go o.execute(runCtx, r, repoID, commit)
	return r.id, nil
}

// Wait blocks until the run reaches a terminal state and returns its
// report.
func (o *Orchestrator) Wait(ctx context.Context, runID string) (*models.RunReport, error) {
	o.mu.Lock()
	r, ok := o.runs[runID]
	o.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown run %s", runID)
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-r.done:
	}
	rep, _ := o.Report(runID)
	return rep, nil
}

// Report returns a snapshot of the run's report. Non-terminal runs
// report their current state with partial counters.
func (o *Orchestrator) Report(runID string) (*models.RunReport, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	rep, ok := o.reports[runID]
	if !ok {
		return nil, false
	}
	cp := *rep
	cp.Failures = append([]models.ChunkFailure(nil), rep.Failures...)
	return &cp, true
}

// Cancel requests cancellation of a run. The run settles already
// applied work and ends partial; it is never rolled back.
func (o *Orchestrator) Cancel(runID string) bool {
	o.mu.Lock()
	r, ok := o.runs[runID]
	o.mu.Unlock()
	if !ok {
		return false
	}
	r.cancel()
	return true
}

func (o *Orchestrator) setState(runID string, state models.RunState) {
	o.mu.Lock()
	if rep, ok := o.reports[runID]; ok {
		rep.State = state
	}
	o.mu.Unlock()
}

func (o *Orchestrator) failRun(runID string, err error) {
	o.mu.Lock()
	if rep, ok := o.reports[runID]; ok {
		rep.State = models.RunFailed
		rep.Err = err.Error()
	}
	o.mu.Unlock()
}

func (o *Orchestrator) addFailure(runID string, f models.ChunkFailure) {
	o.mu.Lock()
	if rep, ok := o.reports[runID]; ok {
		rep.Failures = append(rep.Failures, f)
	}
	o.mu.Unlock()
}

func (o *Orchestrator) finish(r *run) {
	o.mu.Lock()
	if rep, ok := o.reports[r.id]; ok {
		rep.FinishedAt = time.Now().UTC()
	}
	if o.active[r.repoID] == r {
		delete(o.active, r.repoID)
	}
	o.mu.Unlock()
	r.cancel()
	close(r.done)
}

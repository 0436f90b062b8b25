package orchestrator

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catmem "github.com/repoctx/repoctx/internal/catalog/memory"
	contentmem "github.com/repoctx/repoctx/internal/content/memory"
	"github.com/repoctx/repoctx/internal/embeddings"
	"github.com/repoctx/repoctx/internal/models"
	"github.com/repoctx/repoctx/internal/resolver"
	vecmem "github.com/repoctx/repoctx/internal/vectorstore/memory"
)

const (
	commitA = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	commitB = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

// testEmbedder wraps the deterministic local embedder with call
// counting, failure injection, and an optional gate for concurrency
// tests.
type testEmbedder struct {
	inner *embeddings.LocalEmbedder

	mu         sync.Mutex
	calls      int
	texts      []string
	failSubstr string

	block   chan struct{}
	started chan struct{}
}

func newTestEmbedder() *testEmbedder {
	return &testEmbedder{inner: embeddings.NewLocal(8)}
}

func (e *testEmbedder) Model() string  { return e.inner.Model() }
func (e *testEmbedder) Dimension() int { return e.inner.Dimension() }

func (e *testEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.inner.EmbedQuery(ctx, text)
}

func (e *testEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if e.started != nil {
		select {
		case e.started <- struct{}{}:
		default:
		}
	}
	if e.block != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-e.block:
		}
	}

	e.mu.Lock()
	e.calls++
	e.texts = append(e.texts, texts...)
	fail := e.failSubstr
	e.mu.Unlock()

	if fail != "" {
		for _, t := range texts {
			if strings.Contains(t, fail) {
				return nil, embeddings.ErrUnavailable
			}
		}
	}
	return e.inner.EmbedBatch(ctx, texts)
}

func (e *testEmbedder) setFail(substr string) {
	e.mu.Lock()
	e.failSubstr = substr
	e.mu.Unlock()
}

func (e *testEmbedder) embeddedTexts() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.texts...)
}

func (e *testEmbedder) reset() {
	e.mu.Lock()
	e.calls = 0
	e.texts = nil
	e.mu.Unlock()
}

type env struct {
	provider *contentmem.Provider
	cat      *catmem.Store
	vec      *vecmem.Store
	emb      *testEmbedder
	orch     *Orchestrator
}

func newEnv(opts Options) *env {
	if opts.RetryAttempts == 0 {
		opts.RetryAttempts = 2
	}
	if opts.RetryBaseDelay == 0 {
		opts.RetryBaseDelay = time.Millisecond
	}
	if opts.RetryMaxDelay == 0 {
		opts.RetryMaxDelay = 4 * time.Millisecond
	}
	e := &env{
		provider: contentmem.New(),
		cat:      catmem.New(),
		vec:      vecmem.New(),
		emb:      newTestEmbedder(),
	}
	e.orch = New(e.provider, resolver.NewRegistry(resolver.Noop{}), e.emb,
		embeddings.NewCache(0), e.vec, e.cat, opts)
	return e
}

func files(m map[string]string) []models.FileEntry {
	out := make([]models.FileEntry, 0, len(m))
	for path, text := range m {
		out = append(out, models.FileEntry{Path: path, Text: text})
	}
	return out
}

func (e *env) runAndWait(t *testing.T, repoID, commit string) *models.RunReport {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	runID, err := e.orch.StartIndexRun(ctx, repoID, commit)
	require.NoError(t, err)
	rep, err := e.orch.Wait(ctx, runID)
	require.NoError(t, err)
	return rep
}

// assertConsistent checks the cross-store invariant: every catalog row
// with a vector id points at a vector that exists.
func (e *env) assertConsistent(t *testing.T, repoID, commit string) {
	t.Helper()
	rows, err := e.cat.ListByCommit(context.Background(), repoID, commit)
	require.NoError(t, err)
	for _, ch := range rows {
		if ch.VectorID != "" {
			assert.True(t, e.vec.Has(ch.VectorID),
				"row %s:%d-%d references missing vector %s", ch.Path, ch.StartLine, ch.EndLine, ch.VectorID)
		}
	}
}

func TestFirstIndexRunCompletes(t *testing.T) {
	e := newEnv(Options{})
	e.provider.SetSnapshot("repo", commitA, files(map[string]string{
		"a.txt": "alpha content",
		"b.txt": "beta content",
		"c.txt": "gamma content",
	}))

	rep := e.runAndWait(t, "repo", commitA)

	assert.Equal(t, models.RunComplete, rep.State)
	assert.Equal(t, 3, rep.Embedded)
	assert.Zero(t, rep.CarriedForward)
	assert.Zero(t, rep.Deleted)
	assert.Empty(t, rep.Failures)
	assert.False(t, rep.FinishedAt.IsZero())

	commit, err := e.cat.LastIndexedCommit(context.Background(), "repo")
	require.NoError(t, err)
	assert.Equal(t, commitA, commit)

	rows, err := e.cat.ListByCommit(context.Background(), "repo", commitA)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	e.assertConsistent(t, "repo", commitA)
}

func TestRerunSameContentCarriesEverything(t *testing.T) {
	e := newEnv(Options{})
	snap := files(map[string]string{
		"a.txt": "alpha content",
		"b.txt": "beta content",
	})
	e.provider.SetSnapshot("repo", commitA, snap)
	e.provider.SetSnapshot("repo", commitB, snap)

	first := e.runAndWait(t, "repo", commitA)
	require.Equal(t, models.RunComplete, first.State)
	e.emb.reset()

	second := e.runAndWait(t, "repo", commitB)

	assert.Equal(t, models.RunComplete, second.State)
	assert.Zero(t, second.Embedded)
	assert.Equal(t, 2, second.CarriedForward)
	assert.Empty(t, e.emb.embeddedTexts(), "unchanged chunks must not be re-embedded")

	commit, err := e.cat.LastIndexedCommit(context.Background(), "repo")
	require.NoError(t, err)
	assert.Equal(t, commitB, commit)
	e.assertConsistent(t, "repo", commitB)
}

func TestIncrementalChangedAddedRemoved(t *testing.T) {
	e := newEnv(Options{})
	e.provider.SetSnapshot("repo", commitA, files(map[string]string{
		"keep.txt":   "kept content",
		"change.txt": "old content",
		"remove.txt": "doomed content",
	}))
	e.provider.SetSnapshot("repo", commitB, files(map[string]string{
		"keep.txt":   "kept content",
		"change.txt": "new content",
		"added.txt":  "fresh content",
	}))

	first := e.runAndWait(t, "repo", commitA)
	require.Equal(t, models.RunComplete, first.State)

	removedRows, err := e.cat.ListByCommit(context.Background(), "repo", commitA)
	require.NoError(t, err)
	var removedVec string
	for _, ch := range removedRows {
		if ch.Path == "remove.txt" {
			removedVec = ch.VectorID
		}
	}
	require.NotEmpty(t, removedVec)
	e.emb.reset()

	second := e.runAndWait(t, "repo", commitB)

	assert.Equal(t, models.RunComplete, second.State)
	assert.Equal(t, 2, second.Embedded, "changed and added chunks re-embed")
	assert.Equal(t, 1, second.CarriedForward)
	assert.Equal(t, 1, second.Deleted)

	texts := e.emb.embeddedTexts()
	assert.ElementsMatch(t, []string{"new content", "fresh content"}, texts)

	// superseded commit purged, removed chunk's vector gone
	oldRows, err := e.cat.ListByCommit(context.Background(), "repo", commitA)
	require.NoError(t, err)
	assert.Empty(t, oldRows)
	assert.False(t, e.vec.Has(removedVec))
	e.assertConsistent(t, "repo", commitB)
}

func TestRetainHistoryKeepsSupersededCommit(t *testing.T) {
	e := newEnv(Options{RetainHistory: true})
	e.provider.SetSnapshot("repo", commitA, files(map[string]string{"a.txt": "v1"}))
	e.provider.SetSnapshot("repo", commitB, files(map[string]string{"a.txt": "v2"}))

	e.runAndWait(t, "repo", commitA)
	e.runAndWait(t, "repo", commitB)

	oldRows, err := e.cat.ListByCommit(context.Background(), "repo", commitA)
	require.NoError(t, err)
	assert.Len(t, oldRows, 1)
	// the old row still points at a live vector
	e.assertConsistent(t, "repo", commitA)
	e.assertConsistent(t, "repo", commitB)
}

func TestDuplicateChunksShareOneVector(t *testing.T) {
	e := newEnv(Options{})
	e.provider.SetSnapshot("repo", commitA, files(map[string]string{
		"one.txt": "identical content",
		"two.txt": "identical content",
	}))

	rep := e.runAndWait(t, "repo", commitA)

	assert.Equal(t, models.RunComplete, rep.State)
	assert.Equal(t, 2, rep.Embedded)
	assert.Len(t, e.emb.embeddedTexts(), 1, "identical content embeds once")
	assert.Equal(t, 1, e.vec.Len())

	rows, err := e.cat.ListByCommit(context.Background(), "repo", commitA)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, rows[0].VectorID, rows[1].VectorID)
}

func TestDeleteOfSharedVectorIsGuarded(t *testing.T) {
	e := newEnv(Options{RetainHistory: true})
	e.provider.SetSnapshot("repo", commitA, files(map[string]string{
		"one.txt": "identical content",
		"two.txt": "identical content",
	}))
	e.provider.SetSnapshot("repo", commitB, files(map[string]string{
		"one.txt": "identical content",
	}))

	e.runAndWait(t, "repo", commitA)
	rep := e.runAndWait(t, "repo", commitB)

	assert.Equal(t, models.RunComplete, rep.State)
	assert.Equal(t, 1, rep.CarriedForward)
	assert.Equal(t, 1, rep.Deleted)

	// the surviving duplicate still resolves
	e.assertConsistent(t, "repo", commitB)
	rows, err := e.cat.ListByCommit(context.Background(), "repo", commitB)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, e.vec.Has(rows[0].VectorID))
}

func TestRerunSameCommitRemovesVanishedChunks(t *testing.T) {
	e := newEnv(Options{})
	e.provider.SetSnapshot("repo", commitA, files(map[string]string{
		"a.txt": "stays around",
		"b.txt": "goes away",
	}))
	first := e.runAndWait(t, "repo", commitA)
	require.Equal(t, models.RunComplete, first.State)

	var goneVec string
	rows, err := e.cat.ListByCommit(context.Background(), "repo", commitA)
	require.NoError(t, err)
	for _, ch := range rows {
		if ch.Path == "b.txt" {
			goneVec = ch.VectorID
		}
	}
	require.NotEmpty(t, goneVec)

	// the same commit is re-staged without b.txt
	e.provider.SetSnapshot("repo", commitA, files(map[string]string{
		"a.txt": "stays around",
	}))
	rep := e.runAndWait(t, "repo", commitA)

	assert.Equal(t, models.RunComplete, rep.State)
	assert.Equal(t, 1, rep.CarriedForward)
	assert.Equal(t, 1, rep.Deleted)

	rows, err = e.cat.ListByCommit(context.Background(), "repo", commitA)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "a.txt", rows[0].Path)
	assert.False(t, e.vec.Has(goneVec), "vanished chunk's vector is deleted")
	e.assertConsistent(t, "repo", commitA)
}

func TestConcurrentStartsCoalesce(t *testing.T) {
	e := newEnv(Options{})
	e.emb.block = make(chan struct{})
	e.emb.started = make(chan struct{}, 1)
	e.provider.SetSnapshot("repo", commitA, files(map[string]string{"a.txt": "content"}))

	ctx := context.Background()
	first, err := e.orch.StartIndexRun(ctx, "repo", commitA)
	require.NoError(t, err)

	select {
	case <-e.emb.started:
	case <-time.After(5 * time.Second):
		t.Fatal("run never reached the embedder")
	}

	second, err := e.orch.StartIndexRun(ctx, "repo", commitA)
	require.NoError(t, err)
	assert.Equal(t, first, second, "concurrent starts for one repository coalesce")

	close(e.emb.block)
	rep, err := e.orch.Wait(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, models.RunComplete, rep.State)

	// after the run settles, a new start gets a new run
	third, err := e.orch.StartIndexRun(ctx, "repo", commitA)
	require.NoError(t, err)
	assert.NotEqual(t, first, third)
	_, err = e.orch.Wait(ctx, third)
	require.NoError(t, err)
}

func TestDifferentRepositoriesRunIndependently(t *testing.T) {
	e := newEnv(Options{})
	e.provider.SetSnapshot("repo-a", commitA, files(map[string]string{"a.txt": "content a"}))
	e.provider.SetSnapshot("repo-b", commitA, files(map[string]string{"b.txt": "content b"}))

	ctx := context.Background()
	ra, err := e.orch.StartIndexRun(ctx, "repo-a", commitA)
	require.NoError(t, err)
	rb, err := e.orch.StartIndexRun(ctx, "repo-b", commitA)
	require.NoError(t, err)
	assert.NotEqual(t, ra, rb)

	repA, err := e.orch.Wait(ctx, ra)
	require.NoError(t, err)
	repB, err := e.orch.Wait(ctx, rb)
	require.NoError(t, err)
	assert.Equal(t, models.RunComplete, repA.State)
	assert.Equal(t, models.RunComplete, repB.State)
}

func TestEmbeddingOutageEndsPartialAndRecovers(t *testing.T) {
	e := newEnv(Options{EmbedBatchSize: 1})
	e.emb.setFail("beta")
	e.provider.SetSnapshot("repo", commitA, files(map[string]string{
		"good.txt": "alpha content",
		"bad.txt":  "beta content",
	}))

	rep := e.runAndWait(t, "repo", commitA)

	assert.Equal(t, models.RunPartial, rep.State)
	assert.Equal(t, 1, rep.Embedded)
	require.Len(t, rep.Failures, 1)
	assert.Equal(t, "bad.txt", rep.Failures[0].Path)
	assert.Equal(t, models.FailureEmbedUnavailable, rep.Failures[0].Kind)

	// a partial run still advances the index pointer
	commit, err := e.cat.LastIndexedCommit(context.Background(), "repo")
	require.NoError(t, err)
	assert.Equal(t, commitA, commit)

	// failed chunk has no row, so nothing dangles
	rows, err := e.cat.ListByCommit(context.Background(), "repo", commitA)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	e.assertConsistent(t, "repo", commitA)

	// service recovers; re-running the same commit embeds only the
	// chunk that failed
	e.emb.setFail("")
	e.emb.reset()
	rep = e.runAndWait(t, "repo", commitA)

	assert.Equal(t, models.RunComplete, rep.State)
	assert.Equal(t, 1, rep.Embedded)
	assert.Equal(t, 1, rep.CarriedForward)
	assert.Equal(t, []string{"beta content"}, e.emb.embeddedTexts())
	e.assertConsistent(t, "repo", commitA)
}

func TestCancellationSettlesPartial(t *testing.T) {
	e := newEnv(Options{})
	e.emb.block = make(chan struct{})
	e.emb.started = make(chan struct{}, 1)
	e.provider.SetSnapshot("repo", commitA, files(map[string]string{"a.txt": "content"}))

	ctx := context.Background()
	runID, err := e.orch.StartIndexRun(ctx, "repo", commitA)
	require.NoError(t, err)

	select {
	case <-e.emb.started:
	case <-time.After(5 * time.Second):
		t.Fatal("run never reached the embedder")
	}
	require.True(t, e.orch.Cancel(runID))

	rep, err := e.orch.Wait(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, models.RunPartial, rep.State)
	require.NotEmpty(t, rep.Failures)
	assert.Equal(t, models.FailureCancelled, rep.Failures[0].Kind)
}

func TestCancelledRunPreservesPriorCommit(t *testing.T) {
	e := newEnv(Options{})
	e.provider.SetSnapshot("repo", commitA, files(map[string]string{
		"stable.txt":  "stable content",
		"changed.txt": "old content",
	}))
	e.provider.SetSnapshot("repo", commitB, files(map[string]string{
		"stable.txt":  "stable content",
		"changed.txt": "new content",
	}))

	first := e.runAndWait(t, "repo", commitA)
	require.Equal(t, models.RunComplete, first.State)

	rows, err := e.cat.ListByCommit(context.Background(), "repo", commitA)
	require.NoError(t, err)
	var stableVec string
	for _, ch := range rows {
		if ch.Path == "stable.txt" {
			stableVec = ch.VectorID
		}
	}
	require.NotEmpty(t, stableVec)

	// the next run blocks in the embedder and is cancelled mid-flight
	e.emb.block = make(chan struct{})
	e.emb.started = make(chan struct{}, 1)
	ctx := context.Background()
	runID, err := e.orch.StartIndexRun(ctx, "repo", commitB)
	require.NoError(t, err)
	select {
	case <-e.emb.started:
	case <-time.After(5 * time.Second):
		t.Fatal("run never reached the embedder")
	}
	require.True(t, e.orch.Cancel(runID))
	rep, err := e.orch.Wait(ctx, runID)
	require.NoError(t, err)
	require.Equal(t, models.RunPartial, rep.State)

	// the cancelled run must not touch the previous commit's state
	assert.True(t, e.vec.Has(stableVec), "vector of unchanged chunk must survive a cancelled run")
	oldRows, err := e.cat.ListByCommit(context.Background(), "repo", commitA)
	require.NoError(t, err)
	assert.Len(t, oldRows, 2)

	// the retry finishes the job, then the old commit is swept
	e.emb.block = nil
	e.emb.started = nil
	rep = e.runAndWait(t, "repo", commitB)
	assert.Equal(t, models.RunComplete, rep.State)
	e.assertConsistent(t, "repo", commitB)

	oldRows, err = e.cat.ListByCommit(context.Background(), "repo", commitA)
	require.NoError(t, err)
	assert.Empty(t, oldRows, "superseded commit is swept once a run completes")
}

func TestEnumerationFailureFailsBeforeMutation(t *testing.T) {
	e := newEnv(Options{})
	// no snapshot staged for this commit

	rep := e.runAndWait(t, "repo", commitA)

	assert.Equal(t, models.RunFailed, rep.State)
	assert.NotEmpty(t, rep.Err)
	assert.Zero(t, rep.Embedded)

	commit, err := e.cat.LastIndexedCommit(context.Background(), "repo")
	require.NoError(t, err)
	assert.Empty(t, commit, "a failed run must not advance the index pointer")
	assert.Zero(t, e.vec.Len())
}

func TestBinaryFilesAreSkipped(t *testing.T) {
	e := newEnv(Options{})
	e.provider.SetSnapshot("repo", commitA, []models.FileEntry{
		{Path: "text.txt", Text: "real content"},
		{Path: "blob.bin", IsBinary: true},
	})

	rep := e.runAndWait(t, "repo", commitA)

	assert.Equal(t, models.RunComplete, rep.State)
	assert.Equal(t, 1, rep.Embedded)
}

func TestStartValidation(t *testing.T) {
	e := newEnv(Options{})
	ctx := context.Background()

	_, err := e.orch.StartIndexRun(ctx, "", commitA)
	assert.Error(t, err)

	_, err = e.orch.StartIndexRun(ctx, "repo", "not-a-commit")
	assert.Error(t, err)

	_, err = e.orch.StartIndexRun(ctx, "repo", strings.ToUpper(commitA))
	assert.Error(t, err, "commit hashes are lowercase hex")
}

func TestUnknownRunID(t *testing.T) {
	e := newEnv(Options{})

	_, ok := e.orch.Report("nope")
	assert.False(t, ok)

	_, err := e.orch.Wait(context.Background(), "nope")
	assert.Error(t, err)

	assert.False(t, e.orch.Cancel("nope"))
}

func TestReportIsASnapshot(t *testing.T) {
	e := newEnv(Options{})
	e.provider.SetSnapshot("repo", commitA, files(map[string]string{"a.txt": "content"}))

	rep := e.runAndWait(t, "repo", commitA)
	got, ok := e.orch.Report(rep.RunID)
	require.True(t, ok)
	assert.Equal(t, models.RunComplete, got.State)

	// mutating the snapshot does not touch the orchestrator's copy
	got.Failures = append(got.Failures, models.ChunkFailure{Path: "x"})
	again, _ := e.orch.Report(rep.RunID)
	assert.Empty(t, again.Failures)
}

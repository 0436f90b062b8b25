package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/repoctx/repoctx/internal/catalog"
	"github.com/repoctx/repoctx/internal/chunker"
	"github.com/repoctx/repoctx/internal/embeddings"
	"github.com/repoctx/repoctx/internal/logger"
	"github.com/repoctx/repoctx/internal/models"
	"github.com/repoctx/repoctx/internal/vectorstore"
)

// candidate is one chunk produced by enumeration, before diffing
// decides its fate.
type candidate struct {
	loc    catalog.Location
	text   string
	hash   string
	fqn    string
	kind   models.SymbolKind
	source models.SourceType
}

// diffPlan is the outcome of the diffing phase.
type diffPlan struct {
	toEmbed []candidate
	carry   []models.Chunk // rows reusing an existing vector
	deletes []models.Chunk // baseline rows whose location vanished
}

type failInfo struct {
	kind   string
	reason string
}

func (o *Orchestrator) execute(ctx context.Context, r *run, repoID, commit string) {
	defer o.finish(r)

	o.setState(r.id, models.RunEnumerating)
	cands, err := o.enumerate(ctx, repoID, commit)
	if err != nil {
		if ctx.Err() != nil {
			o.settleCancelled(r.id)
			return
		}
		logger.Warn("index run %s failed during enumeration: %v", r.id, err)
		o.failRun(r.id, fmt.Errorf("enumerate %s: %w", repoID, err))
		return
	}

	o.setState(r.id, models.RunDiffing)
	plan, err := o.diff(ctx, repoID, commit, cands)
	if err != nil {
		if ctx.Err() != nil {
			o.settleCancelled(r.id)
			return
		}
		logger.Warn("index run %s failed during diffing: %v", r.id, err)
		o.failRun(r.id, fmt.Errorf("diff %s: %w", repoID, err))
		return
	}
	logger.Debug("run %s: %d to embed, %d carried, %d vanished",
		r.id, len(plan.toEmbed), len(plan.carry), len(plan.deletes))

	o.setState(r.id, models.RunEmbedding)
	vecs, embedFails := o.embedAll(ctx, plan.toEmbed)

	o.setState(r.id, models.RunReconciling)
	o.reconcile(ctx, r.id, repoID, commit, plan, vecs, embedFails)

	o.finalize(ctx, r.id, repoID, commit)
}

// enumerate lists the snapshot and chunks every indexable file. Any
// listing error is structural: the run fails before touching a store.
func (o *Orchestrator) enumerate(ctx context.Context, repoID, commit string) ([]candidate, error) {
	files, err := o.provider.ListFiles(ctx, repoID, commit)
	if err != nil {
		return nil, err
	}
	var cands []candidate
	seen := make(map[catalog.Location]bool)
	for _, f := range files {
		if f.IsBinary {
			logger.Debug("skipping binary file %s", f.Path)
			continue
		}
		if len(f.Path) > models.MaxPathLen {
			logger.Warn("skipping file with oversized path: %.64s...", f.Path)
			continue
		}
		res, source := o.resolvers.ForFile(f.Path)
		spans := res.Resolve(f.Path, f.Text)
		for _, p := range chunker.Split(f.Text, spans, o.opts.MaxChunkLines) {
			loc := catalog.Location{Path: f.Path, StartLine: p.StartLine, EndLine: p.EndLine}
			if seen[loc] {
				continue
			}
			seen[loc] = true
			kind := p.Kind
			if kind == "" {
				kind = models.SymbolUnknown
			}
			cands = append(cands, candidate{
				loc:    loc,
				text:   p.Text,
				hash:   chunker.Hash(p.Text),
				fqn:    p.SymbolFQN,
				kind:   kind,
				source: source,
			})
		}
	}
	return cands, nil
}

// diff compares candidates against the catalog baseline. A candidate
// whose location and content hash match an embedded baseline row is
// carried forward with the existing vector; everything else is
// embedded. Baseline locations missing from the snapshot are marked
// for deletion.
func (o *Orchestrator) diff(ctx context.Context, repoID, commit string, cands []candidate) (*diffPlan, error) {
	prevCommit, err := o.cat.LastIndexedCommit(ctx, repoID)
	if err != nil {
		return nil, err
	}
	plan := &diffPlan{}

	var baseline []models.Chunk
	if prevCommit != "" {
		baseline, err = o.cat.ListByCommit(ctx, repoID, prevCommit)
		if err != nil {
			return nil, err
		}
	}
	// rows an interrupted earlier run already wrote at the target commit
	var resumed []models.Chunk
	if commit != prevCommit {
		resumed, err = o.cat.ListByCommit(ctx, repoID, commit)
		if err != nil {
			return nil, err
		}
	}

	sameModel := true
	if prevCommit != "" {
		prevModel, prevDim, err := o.cat.EmbeddedModel(ctx, repoID, prevCommit)
		if err != nil {
			return nil, err
		}
		if prevModel != "" && prevModel != o.embedder.Model() {
			sameModel = false
		} else if dim := o.embedder.Dimension(); prevModel != "" && dim != 0 && prevDim != dim {
			sameModel = false
		}
		if !sameModel {
			logger.Info("embedding model changed for %s, re-embedding everything", repoID)
		}
	}

	byLoc := make(map[catalog.Location]models.Chunk, len(baseline)+len(resumed))
	for _, ch := range baseline {
		byLoc[chunkLocation(ch)] = ch
	}
	for _, ch := range resumed {
		// same-commit rows win over the previous commit's
		byLoc[chunkLocation(ch)] = ch
	}

	live := make(map[catalog.Location]bool, len(cands))
	for _, c := range cands {
		live[c.loc] = true
		base, ok := byLoc[c.loc]
		if ok && sameModel && base.ContentHash == c.hash && base.VectorID != "" {
			plan.carry = append(plan.carry, carriedRow(base, c, repoID, commit))
			continue
		}
		plan.toEmbed = append(plan.toEmbed, c)
	}

	for _, ch := range baseline {
		if !live[chunkLocation(ch)] {
			plan.deletes = append(plan.deletes, ch)
		}
	}
	for _, ch := range resumed {
		if !live[chunkLocation(ch)] {
			plan.deletes = append(plan.deletes, ch)
		}
	}
	return plan, nil
}

// embedAll resolves vectors for every distinct content hash, from the
// cache where possible and the embedding service otherwise. Batches go
// out concurrently; a failed batch marks its hashes failed without
// aborting the others.
func (o *Orchestrator) embedAll(ctx context.Context, toEmbed []candidate) (map[string][]float32, map[string]failInfo) {
	vecs := make(map[string][]float32)
	fails := make(map[string]failInfo)
	textByHash := make(map[string]string)
	var pending []string
	for _, c := range toEmbed {
		if _, ok := textByHash[c.hash]; ok {
			continue
		}
		textByHash[c.hash] = c.text
		if v, ok := o.cache.Get(c.hash); ok {
			vecs[c.hash] = v
			continue
		}
		pending = append(pending, c.hash)
	}
	if len(pending) == 0 {
		return vecs, fails
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(o.opts.EmbedFanOut))

	bs := o.opts.EmbedBatchSize
	for start := 0; start < len(pending); start += bs {
		end := start + bs
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		if err := sem.Acquire(gctx, 1); err != nil {
			mu.Lock()
			for _, h := range pending[start:] {
				fails[h] = failInfo{kind: models.FailureCancelled, reason: err.Error()}
			}
			mu.Unlock()
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			texts := make([]string, len(batch))
			for i, h := range batch {
				texts[i] = textByHash[h]
			}
			result, err := retryWithBackoff(gctx,
				o.opts.RetryAttempts, o.opts.RetryBaseDelay, o.opts.RetryMaxDelay,
				embeddings.Retryable,
				func(ctx context.Context) ([][]float32, error) {
					return o.embedder.EmbedBatch(ctx, texts)
				})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				kind := classifyEmbedErr(err)
				for _, h := range batch {
					fails[h] = failInfo{kind: kind, reason: err.Error()}
				}
			case len(result) != len(batch):
				reason := fmt.Sprintf("got %d vectors for %d inputs", len(result), len(batch))
				for _, h := range batch {
					fails[h] = failInfo{kind: models.FailureEmbedRejected, reason: reason}
				}
			default:
				for i, h := range batch {
					vecs[h] = result[i]
					o.cache.Add(h, result[i])
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	return vecs, fails
}

func classifyEmbedErr(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return models.FailureCancelled
	case errors.Is(err, embeddings.ErrUnavailable):
		return models.FailureEmbedUnavailable
	default:
		return models.FailureEmbedRejected
	}
}

// reconcile applies the plan to both stores, vector store strictly
// first for every chunk. Failures are recorded per chunk and never
// abort the rest of the run.
func (o *Orchestrator) reconcile(ctx context.Context, runID, repoID, commit string, plan *diffPlan, vecs map[string][]float32, embedFails map[string]failInfo) {
	// deletions: vector first, row second, so a surviving row never
	// points at a removed vector
	deletedLocs := make(map[catalog.Location]bool)
	for _, ch := range plan.deletes {
		loc := chunkLocation(ch)
		if ctx.Err() != nil {
			o.addFailure(runID, locationFailure(loc, models.FailureCancelled, "run cancelled"))
			continue
		}
		if ch.Commit == commit {
			if !o.deleteRow(ctx, runID, repoID, ch) {
				continue
			}
		}
		if !deletedLocs[loc] {
			deletedLocs[loc] = true
			o.bump(runID, func(rep *models.RunReport) { rep.Deleted++ })
		}
	}

	for _, ch := range plan.carry {
		if ctx.Err() != nil {
			o.addFailure(runID, locationFailure(chunkLocation(ch), models.FailureCancelled, "run cancelled"))
			continue
		}
		if err := o.cat.Upsert(ctx, ch); err != nil {
			o.addFailure(runID, locationFailure(chunkLocation(ch), models.FailureStoreUnavailable, err.Error()))
			continue
		}
		o.bump(runID, func(rep *models.RunReport) { rep.CarriedForward++ })
	}

	// one vector per distinct hash; duplicate chunks share it
	byHash := make(map[string][]candidate)
	var order []string
	for _, c := range plan.toEmbed {
		if _, ok := byHash[c.hash]; !ok {
			order = append(order, c.hash)
		}
		byHash[c.hash] = append(byHash[c.hash], c)
	}

	model := o.embedder.Model()
	for _, h := range order {
		group := byHash[h]
		if ctx.Err() != nil {
			o.failGroup(runID, group, models.FailureCancelled, "run cancelled")
			continue
		}
		if fi, ok := embedFails[h]; ok {
			o.failGroup(runID, group, fi.kind, fi.reason)
			continue
		}
		vec, ok := vecs[h]
		if !ok {
			o.failGroup(runID, group, models.FailureEmbedRejected, "no vector produced")
			continue
		}

		vid := uuid.NewString()
		_, err := retryWithBackoff(ctx,
			o.opts.RetryAttempts, o.opts.RetryBaseDelay, o.opts.RetryMaxDelay,
			vectorstore.Retryable,
			func(ctx context.Context) (struct{}, error) {
				return struct{}{}, o.vec.Upsert(ctx, vid, repoID, vec)
			})
		if err != nil {
			o.failGroup(runID, group, storeFailureKind(err), err.Error())
			continue
		}

		dim := o.embedder.Dimension()
		if dim == 0 {
			dim = len(vec)
		}
		now := time.Now().UTC()
		for _, c := range group {
			row := models.Chunk{
				RepoID:      repoID,
				Path:        c.loc.Path,
				StartLine:   c.loc.StartLine,
				EndLine:     c.loc.EndLine,
				Commit:      commit,
				SymbolFQN:   c.fqn,
				SymbolKind:  c.kind,
				Source:      c.source,
				ContentHash: c.hash,
				VectorID:    vid,
				EmbedModel:  model,
				EmbedDim:    dim,
				EmbeddedAt:  &now,
			}
			if err := o.cat.Upsert(ctx, row); err != nil {
				o.addFailure(runID, locationFailure(c.loc, models.FailureStoreUnavailable, err.Error()))
				continue
			}
			o.bump(runID, func(rep *models.RunReport) { rep.Embedded++ })
		}
	}
}

// deleteRow removes one current-commit row and, when no other row
// references its vector, the vector first. Returns false when the row
// must be kept because the vector delete failed.
func (o *Orchestrator) deleteRow(ctx context.Context, runID, repoID string, ch models.Chunk) bool {
	loc := chunkLocation(ch)
	if ch.VectorID != "" {
		n, err := o.cat.CountByVectorID(ctx, repoID, ch.VectorID)
		if err != nil {
			o.addFailure(runID, locationFailure(loc, models.FailureStoreUnavailable, err.Error()))
			return false
		}
		if n <= 1 {
			_, err := retryWithBackoff(ctx,
				o.opts.RetryAttempts, o.opts.RetryBaseDelay, o.opts.RetryMaxDelay,
				vectorstore.Retryable,
				func(ctx context.Context) (struct{}, error) {
					return struct{}{}, o.vec.Delete(ctx, ch.VectorID)
				})
			if err != nil {
				o.addFailure(runID, locationFailure(loc, storeFailureKind(err), err.Error()))
				return false
			}
		}
	}
	if err := o.cat.DeleteByLocation(ctx, repoID, loc, ch.Commit); err != nil {
		o.addFailure(runID, locationFailure(loc, models.FailureStoreUnavailable, err.Error()))
		return false
	}
	return true
}

// finalize settles the terminal state and moves the repository's index
// pointer. A partial run advances the pointer too: its successful
// chunks are already consistent, and the next run retries only the
// failed ones.
func (o *Orchestrator) finalize(ctx context.Context, runID, repoID, commit string) {
	cancelled := ctx.Err() != nil

	// bookkeeping must outlive a cancelled run context
	bg := context.Background()
	if err := o.cat.SetLastIndexedCommit(bg, repoID, commit); err != nil {
		logger.Warn("failed to advance index pointer for %s: %v", repoID, err)
		o.mu.Lock()
		if rep, ok := o.reports[runID]; ok {
			rep.State = models.RunPartial
			rep.Err = err.Error()
		}
		o.mu.Unlock()
		return
	}

	complete := !cancelled
	o.mu.Lock()
	if rep, ok := o.reports[runID]; ok {
		if len(rep.Failures) == 0 && !cancelled {
			rep.State = models.RunComplete
		} else {
			rep.State = models.RunPartial
			complete = false
		}
	}
	o.mu.Unlock()

	// Superseded commits are swept only after a complete run. A partial
	// or cancelled run may have skipped carry-forward upserts, and the
	// earlier commits' rows and vectors are what the retry needs to
	// restore those chunks.
	if complete && !o.opts.RetainHistory {
		o.purgeSuperseded(bg, repoID, commit)
	}
}

// purgeSuperseded removes the rows of every commit other than the
// current one, and any vectors only those commits referenced. Runs
// after a complete run only, so every live chunk has a row at the
// current commit. Best effort: retrieval never reads superseded
// commits, so leftovers are invisible and the next sweep retries them.
func (o *Orchestrator) purgeSuperseded(ctx context.Context, repoID, commit string) {
	commits, err := o.cat.ListCommits(ctx, repoID)
	if err != nil {
		logger.Warn("skipping superseded-commit sweep of %s: %v", repoID, err)
		return
	}
	cur, err := o.cat.ListByCommit(ctx, repoID, commit)
	if err != nil {
		logger.Warn("skipping superseded-commit sweep of %s: %v", repoID, err)
		return
	}
	live := make(map[string]bool, len(cur))
	for _, ch := range cur {
		if ch.VectorID != "" {
			live[ch.VectorID] = true
		}
	}
	dropped := make(map[string]bool)
	for _, old := range commits {
		if old == commit {
			continue
		}
		prev, err := o.cat.ListByCommit(ctx, repoID, old)
		if err != nil {
			logger.Warn("skipping purge of %s@%.8s: %v", repoID, old, err)
			continue
		}
		for _, ch := range prev {
			if ch.VectorID == "" || live[ch.VectorID] || dropped[ch.VectorID] {
				continue
			}
			if err := o.vec.Delete(ctx, ch.VectorID); err != nil {
				logger.Warn("leaving vector %s of %s@%.8s behind: %v", ch.VectorID, repoID, old, err)
				continue
			}
			dropped[ch.VectorID] = true
		}
		if err := o.cat.PurgeCommit(ctx, repoID, old); err != nil {
			logger.Warn("failed to purge catalog rows of %s@%.8s: %v", repoID, old, err)
		}
	}
}

// settleCancelled ends a run cancelled before any store mutation.
// Nothing was written, so the repository's index state is untouched.
func (o *Orchestrator) settleCancelled(runID string) {
	o.mu.Lock()
	if rep, ok := o.reports[runID]; ok {
		rep.State = models.RunPartial
		rep.Err = "run cancelled"
	}
	o.mu.Unlock()
}

func (o *Orchestrator) bump(runID string, f func(*models.RunReport)) {
	o.mu.Lock()
	if rep, ok := o.reports[runID]; ok {
		f(rep)
	}
	o.mu.Unlock()
}

func (o *Orchestrator) failGroup(runID string, group []candidate, kind, reason string) {
	for _, c := range group {
		o.addFailure(runID, locationFailure(c.loc, kind, reason))
	}
}

func storeFailureKind(err error) string {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return models.FailureCancelled
	}
	return models.FailureStoreUnavailable
}

func locationFailure(loc catalog.Location, kind, reason string) models.ChunkFailure {
	return models.ChunkFailure{
		Path:      loc.Path,
		StartLine: loc.StartLine,
		EndLine:   loc.EndLine,
		Kind:      kind,
		Reason:    reason,
	}
}

func chunkLocation(ch models.Chunk) catalog.Location {
	return catalog.Location{Path: ch.Path, StartLine: ch.StartLine, EndLine: ch.EndLine}
}

func carriedRow(base models.Chunk, c candidate, repoID, commit string) models.Chunk {
	return models.Chunk{
		RepoID:      repoID,
		Path:        c.loc.Path,
		StartLine:   c.loc.StartLine,
		EndLine:     c.loc.EndLine,
		Commit:      commit,
		SymbolFQN:   c.fqn,
		SymbolKind:  c.kind,
		Source:      c.source,
		ContentHash: c.hash,
		VectorID:    base.VectorID,
		EmbedModel:  base.EmbedModel,
		EmbedDim:    base.EmbedDim,
		EmbeddedAt:  base.EmbeddedAt,
	}
}

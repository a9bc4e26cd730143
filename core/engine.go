// Package core runs compiled patterns over a file set: it schedules files on
// a bounded worker pool, consults the optimizer before parsing, matches,
// plans rewrites and assembles a deterministic report.
package core

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/termfx/structq/binding"
	"github.com/termfx/structq/internal/logging"
	"github.com/termfx/structq/loader"
	"github.com/termfx/structq/matcher"
	"github.com/termfx/structq/optimizer"
	"github.com/termfx/structq/pattern"
	"github.com/termfx/structq/rewrite"
	"github.com/termfx/structq/tree"
)

// Engine executes query runs. It holds no per-run state and may run
// several requests concurrently.
type Engine struct {
	workers int
	logger  *slog.Logger
	journal Journal
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers bounds the number of files processed at once. Values below 1
// select GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithLogger sets the logger for per-file failures and run summaries.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = logging.OrDiscard(l) }
}

// WithJournal records every finished run.
func WithJournal(j Journal) Option {
	return func(e *Engine) { e.journal = j }
}

// NewEngine creates an engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		workers: runtime.GOMAXPROCS(0),
		logger:  logging.NewDiscardLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Workers returns the worker bound.
func (e *Engine) Workers() int { return e.workers }

// Compile compiles req.Source unless req.Pattern is already set.
func (req Request) Compile(ctx context.Context) (*pattern.Pattern, error) {
	if req.Grammar == nil {
		return nil, errors.New("request has no grammar")
	}
	p := req.Pattern
	if p == nil {
		var err error
		p, err = pattern.CompileContext(ctx, req.Source, req.Grammar, pattern.Options{StrictLint: req.StrictLint})
		if err != nil {
			return nil, err
		}
	}
	if p.Language != "" && !strings.EqualFold(p.Language, req.Grammar.Language()) {
		return nil, fmt.Errorf("pattern compiled for %s cannot run on %s files", p.Language, req.Grammar.Language())
	}
	return p, nil
}

// run is the shared read-only state of one Run plus the loader cache.
type run struct {
	req   Request
	p     *pattern.Pattern
	pred  *optimizer.Predicate
	cache *loader.Cache
}

type skipStage int

const (
	notSkipped skipStage = iota
	skippedPath
	skippedContent
	skippedTree
)

type fileResult struct {
	done      bool
	status    FileStatus
	skip      skipStage
	searched  bool
	digest    string
	matches   []MatchResult
	output    *FileOutput
	conflicts []rewrite.Conflict
	err       *FileError
}

// Run executes req. A CompileError or an enumeration failure aborts the run
// before any file is read; every other failure is reported per file and
// never affects the results of other files. Files not processed because ctx
// was canceled are reported with ERR_CANCELED.
func (e *Engine) Run(ctx context.Context, req Request) (*Report, error) {
	started := time.Now()

	p, err := req.Compile(ctx)
	if err != nil {
		return nil, err
	}
	if req.Files == nil {
		return nil, errors.New("request has no file enumerator")
	}
	paths, err := req.Files.Files(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerate files: %w", err)
	}

	src := req.Reader
	if src == nil {
		src = loader.OS{}
	}
	r := &run{
		req:   req,
		p:     p,
		pred:  optimizer.Derive(p),
		cache: loader.New(src, req.Grammar),
	}
	e.logger.Debug("run started",
		"pattern", p.Source,
		"language", req.Grammar.Language(),
		"mode", req.Mode.String(),
		"files", len(paths),
		"optimizer", r.pred.Describe(),
	)

	results := make([]fileResult, len(paths))
	var g errgroup.Group
	g.SetLimit(e.workers)
	for i, path := range paths {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			results[i] = r.process(ctx, path)
			return nil
		})
	}
	// Workers never fail the group; failures live in results.
	_ = g.Wait()

	report := e.assemble(r, paths, results)
	report.StartedAt = started
	report.Stats.Duration = time.Since(started)

	if e.journal != nil {
		id, err := e.journal.RecordRun(context.WithoutCancel(ctx), report)
		if err != nil {
			e.logger.Warn("journal run", "error", err)
		} else {
			report.RunID = id
		}
	}

	e.logger.Info("run finished",
		"run_id", report.RunID,
		"files", report.Stats.Files,
		"searched", report.Stats.Searched,
		"matches", report.Stats.Matches,
		"rewritten", report.Stats.Rewritten,
		"failed", report.Stats.Failed,
		"canceled", report.Stats.Canceled,
		"reads", report.Stats.Loader.Reads,
		"parses", report.Stats.Loader.Parses,
		"duration", report.Stats.Duration,
	)
	return report, nil
}

// process runs the per-file pipeline: path check, stat, read, content check,
// parse, tree check, match and, in rewrite mode, plan and apply.
func (r *run) process(ctx context.Context, path string) fileResult {
	res := fileResult{done: true}
	fail := func(fe *FileError) fileResult {
		res.status = StatusFailed
		res.err = fe
		res.matches = nil
		res.output = nil
		return res
	}

	if err := ctx.Err(); err != nil {
		return fail(fileError(path, CodeCanceled, err))
	}
	if r.pred.CheckPath(path) == optimizer.No {
		res.status, res.skip = StatusSkipped, skippedPath
		return res
	}

	f := r.cache.Open(path)
	if _, err := f.Metadata(); err != nil {
		return fail(classify(path, err))
	}
	content, err := f.Content()
	if err != nil {
		return fail(classify(path, err))
	}
	sum := sha256.Sum256(content)
	res.digest = hex.EncodeToString(sum[:])

	if r.pred.CheckContent(path, content) == optimizer.No {
		res.status, res.skip = StatusSkipped, skippedContent
		return res
	}

	t, err := f.Tree(ctx)
	if err != nil {
		return fail(classify(path, err))
	}
	if r.pred.CheckTree(t) == optimizer.No {
		res.status, res.skip = StatusSkipped, skippedTree
		return res
	}

	res.searched = true
	m := matcher.New(r.p, matcher.WithPath(path), matcher.TriviaInsensitive(!r.req.TriviaSensitive))
	rewriting := r.req.Mode == ModeRewrite && r.p.HasRewrite()
	var edits []rewrite.Edit
	order := 0
	for n := range tree.Walk(t.Root()) {
		if err := ctx.Err(); err != nil {
			return fail(fileError(path, CodeCanceled, err))
		}
		for env := range m.Match(n, nil) {
			res.matches = append(res.matches, newMatchResult(path, n, env))
			if rewriting {
				edits = append(edits, rewrite.Edits(path, env, content, order)...)
			}
			order++
			if r.req.MatchMode == matcher.ModeFirst {
				break
			}
		}
	}

	res.status = StatusNoMatch
	if len(res.matches) > 0 {
		res.status = StatusMatched
	}
	if len(edits) == 0 {
		return res
	}

	kept, conflicts, err := rewrite.Plan(edits, r.req.Policy)
	res.conflicts = conflicts
	if err != nil {
		res.status = StatusFailed
		res.err = fileError(path, CodeConflict, err)
		return res
	}
	after := rewrite.Apply(content, kept)
	diff, _ := rewrite.Diff(path, content, after)
	res.output = &FileOutput{
		Path:    path,
		Content: after,
		Diff:    diff,
		Edits:   kept,
		Changed: !bytes.Equal(content, after),
	}
	if res.output.Changed {
		res.status = StatusRewritten
	}
	return res
}

func newMatchResult(path string, n tree.Node, env *binding.Env) MatchResult {
	start, end := n.StartPoint(), n.EndPoint()
	mr := MatchResult{
		Path:    path,
		Span:    n.Span(),
		Start:   Position{Line: start.Line + 1, Column: start.Column + 1},
		End:     Position{Line: end.Line + 1, Column: end.Column + 1},
		Kind:    n.Kind(),
		Text:    n.Text(),
		Effects: len(env.Effects()),
		Env:     env,
	}
	if names := env.Names(); len(names) > 0 {
		mr.Bindings = make(map[string]string, len(names))
		for name, v := range env.Materialize() {
			mr.Bindings[name] = v.String()
		}
	}
	return mr
}

// assemble builds the report in enumeration order.
func (e *Engine) assemble(r *run, paths []string, results []fileResult) *Report {
	report := &Report{
		Pattern:   r.p.Source,
		Language:  r.req.Grammar.Language(),
		Mode:      r.req.Mode.String(),
		Optimizer: r.pred.Describe(),
		Matches:   []MatchResult{},
		Files:     make([]FileSummary, 0, len(paths)),
	}
	for _, w := range r.p.Warnings {
		report.Warnings = append(report.Warnings, w.String())
	}

	st := &report.Stats
	st.Files = len(paths)
	for i, path := range paths {
		res := results[i]
		if !res.done {
			res = fileResult{status: StatusFailed, err: fileError(path, CodeCanceled, context.Canceled)}
		}

		switch res.skip {
		case skippedPath:
			st.SkippedPath++
		case skippedContent:
			st.SkippedContent++
		case skippedTree:
			st.SkippedTree++
		}
		if res.searched {
			st.Searched++
		}
		if len(res.matches) > 0 {
			st.MatchedFiles++
			st.Matches += len(res.matches)
			report.Matches = append(report.Matches, res.matches...)
		}
		if res.output != nil {
			report.Outputs = append(report.Outputs, *res.output)
			if res.output.Changed {
				st.Rewritten++
			}
		}
		for _, c := range res.conflicts {
			e.logger.Warn("rewrite conflict", "path", path, "kept", c.Kept.Span.String(), "dropped", c.Dropped.Span.String())
		}
		report.Conflicts = append(report.Conflicts, res.conflicts...)
		st.Conflicts += len(res.conflicts)

		if res.err != nil {
			report.Errors = append(report.Errors, *res.err)
			if res.err.Code == CodeCanceled {
				st.Canceled++
			} else {
				st.Failed++
				e.logger.Warn("file failed", "path", path, "code", string(res.err.Code), "error", res.err.Message)
			}
		}

		report.Files = append(report.Files, FileSummary{
			Path:    path,
			Status:  res.status,
			Matches: len(res.matches),
			Error:   res.err,
			Digest:  res.digest,
		})
	}
	st.Loader = r.cache.Stats()
	return report
}

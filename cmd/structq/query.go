package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/termfx/structq/core"
	"github.com/termfx/structq/matcher"
	"github.com/termfx/structq/providers"
	"github.com/termfx/structq/rewrite"
	"github.com/termfx/structq/writer"
)

// queryFlags are the flags shared by search, rewrite and rules run.
type queryFlags struct {
	pattern         string
	rule            string
	lang            string
	include         []string
	exclude         []string
	workers         int
	maxDepth        int
	maxFiles        int
	all             bool
	policy          string
	triviaSensitive bool
	followSymlinks  bool

	// rewrite only
	write  bool
	diff   bool
	backup bool
}

func (qf *queryFlags) register(cmd *cobra.Command, rewriting bool) {
	f := cmd.Flags()
	f.StringVarP(&qf.pattern, "pattern", "p", "", "pattern source")
	f.StringVar(&qf.rule, "rule", "", "run a stored rule by name instead of --pattern")
	f.StringVarP(&qf.lang, "lang", "l", "", "target language (inferred from file arguments if omitted)")
	f.StringSliceVar(&qf.include, "include", nil, "include globs, relative to each path")
	f.StringSliceVar(&qf.exclude, "exclude", nil, "exclude globs, relative to each path")
	f.IntVarP(&qf.workers, "workers", "w", 0, "files processed at once (0: config or GOMAXPROCS)")
	f.IntVar(&qf.maxDepth, "max-depth", 0, "maximum directory depth (0: unlimited)")
	f.IntVar(&qf.maxFiles, "max-files", 0, "maximum files per path (0: unlimited)")
	f.BoolVar(&qf.all, "all", false, "report every binding of a node, not just the first")
	f.BoolVar(&qf.triviaSensitive, "trivia-sensitive", false, "compare comments and spacing in back-references")
	f.BoolVar(&qf.followSymlinks, "follow-symlinks", false, "follow symbolic links")
	if rewriting {
		f.StringVar(&qf.policy, "policy", "", "overlapping edits: drop-later or reject")
		f.BoolVar(&qf.write, "write", false, "write rewritten files in place")
		f.BoolVar(&qf.diff, "diff", false, "print diffs even with --write")
		f.BoolVar(&qf.backup, "backup", false, "keep a timestamped copy of each rewritten file")
	}
}

func newSearchCmd(a *app) *cobra.Command {
	qf := &queryFlags{}
	cmd := &cobra.Command{
		Use:   "search [paths...]",
		Short: "Find code matching a pattern",
		Long: `Search files for nodes matching a pattern and print each match as
path:line:column: text. Paths default to the working directory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runQuery(cmd, qf, core.ModeSearch, args)
		},
	}
	qf.register(cmd, false)
	return cmd
}

func newRewriteCmd(a *app) *cobra.Command {
	qf := &queryFlags{}
	cmd := &cobra.Command{
		Use:   "rewrite [paths...]",
		Short: "Rewrite code matching a pattern",
		Long: `Apply a pattern's => rewrite to every match. Without --write the
unified diff is printed and no file is touched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runQuery(cmd, qf, core.ModeRewrite, args)
		},
	}
	qf.register(cmd, true)
	return cmd
}

// resolvePattern returns the pattern source and the language it was stored
// with, from --pattern or --rule.
func (a *app) resolvePattern(ctx context.Context, qf *queryFlags) (string, string, error) {
	switch {
	case qf.pattern != "" && qf.rule != "":
		return "", "", errors.New("--pattern and --rule are mutually exclusive")
	case qf.pattern != "":
		return qf.pattern, "", nil
	case qf.rule != "":
		r, err := a.findRule(ctx, qf.rule)
		if err != nil {
			return "", "", err
		}
		return r.Pattern, r.Language, nil
	default:
		return "", "", errors.New("a pattern is required (--pattern or --rule)")
	}
}

// resolveGrammar picks the grammar from, in order, the flag, the rule, the
// config and the extension of the first file argument.
func (a *app) resolveGrammar(lang, ruleLang string, paths []string) (providers.Grammar, error) {
	for _, l := range []string{lang, ruleLang, a.cfg.Language} {
		if l == "" {
			continue
		}
		g, ok := a.registry.Get(l)
		if !ok {
			return nil, fmt.Errorf("unsupported language %q (supported: %s)", l, strings.Join(a.registry.Languages(), ", "))
		}
		return g, nil
	}
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			if g, ok := a.registry.ForPath(p); ok {
				return g, nil
			}
		}
	}
	return nil, errors.New("cannot infer the language; pass --lang")
}

func (a *app) runQuery(cmd *cobra.Command, qf *queryFlags, mode core.Mode, paths []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	source, ruleLang, err := a.resolvePattern(ctx, qf)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		paths = []string{"."}
	}
	g, err := a.resolveGrammar(qf.lang, ruleLang, paths)
	if err != nil {
		return err
	}

	policy := a.cfg.ConflictPolicy()
	if qf.policy != "" {
		if policy, err = rewrite.ParsePolicy(qf.policy); err != nil {
			return err
		}
	}
	matchMode := matcher.ModeFirst
	if qf.all || a.cfg.AllMatches {
		matchMode = matcher.ModeAll
	}

	req := core.Request{
		Source:          source,
		Grammar:         g,
		Files:           a.enumerator(cmd, qf, g, paths),
		Mode:            mode,
		MatchMode:       matchMode,
		Policy:          policy,
		TriviaSensitive: qf.triviaSensitive || !a.cfg.TriviaInsensitive,
		StrictLint:      a.cfg.StrictLint,
	}

	workers := a.cfg.Workers
	if qf.workers > 0 {
		workers = qf.workers
	}
	opts := []core.Option{core.WithWorkers(workers), core.WithLogger(a.logger)}
	store, err := a.openStore()
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
		opts = append(opts, core.WithJournal(store))
	}

	report, err := core.NewEngine(opts...).Run(ctx, req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if mode == core.ModeRewrite && qf.write {
		if err := a.writeOutputs(cmd, qf, report); err != nil {
			return err
		}
	}
	if a.jsonOut {
		if err := writeJSON(out, report); err != nil {
			return err
		}
	} else {
		printReport(out, cmd.ErrOrStderr(), report, mode, !qf.write || qf.diff)
	}

	if n := report.Stats.Failed + report.Stats.Canceled; n > 0 {
		return fmt.Errorf("%d of %d files failed", n, report.Stats.Files)
	}
	return nil
}

// enumerator walks each path with the scope built from flags and config.
func (a *app) enumerator(cmd *cobra.Command, qf *queryFlags, g providers.Grammar, paths []string) core.Enumerator {
	scope := core.Scope{
		Include:        a.cfg.Include,
		Exclude:        a.cfg.Exclude,
		MaxDepth:       a.cfg.MaxDepth,
		MaxFiles:       a.cfg.MaxFiles,
		FollowSymlinks: a.cfg.FollowSymlinks || qf.followSymlinks,
		Language:       g.Language(),
	}
	if cmd.Flags().Changed("include") {
		scope.Include = qf.include
	}
	if cmd.Flags().Changed("exclude") {
		scope.Exclude = qf.exclude
	}
	if qf.maxDepth > 0 {
		scope.MaxDepth = qf.maxDepth
	}
	if qf.maxFiles > 0 {
		scope.MaxFiles = qf.maxFiles
	}
	return multiWalker{scope: scope, roots: paths}
}

// multiWalker enumerates several roots in argument order, dropping paths
// already produced by an earlier root.
type multiWalker struct {
	scope core.Scope
	roots []string
}

func (m multiWalker) Files(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	var files []string
	for _, root := range m.roots {
		scope := m.scope
		scope.Root = root
		found, err := core.NewFileWalker(scope).Files(ctx)
		if err != nil {
			return nil, err
		}
		for _, f := range found {
			if _, dup := seen[f]; dup {
				continue
			}
			seen[f] = struct{}{}
			files = append(files, f)
		}
	}
	return files, nil
}

func (a *app) writeOutputs(cmd *cobra.Command, qf *queryFlags, report *core.Report) error {
	cfg := writer.DefaultConfig()
	cfg.Backup = qf.backup
	w := writer.New(cfg)
	defer w.Cleanup()

	var files []writer.File
	for _, o := range report.Outputs {
		if o.Changed {
			files = append(files, writer.File{Path: o.Path, Content: o.Content})
		}
	}
	n, err := w.WriteAll(files)
	a.logger.Info("files written", "count", n, "requested", len(files))
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// printReport renders a report for humans: matches or diffs on out, errors
// and the summary on errOut.
func printReport(out, errOut io.Writer, report *core.Report, mode core.Mode, showDiff bool) {
	for _, w := range report.Warnings {
		fmt.Fprintf(errOut, "warning: %s\n", w)
	}
	if mode == core.ModeRewrite && report.Stats.Rewritten > 0 {
		if showDiff {
			for _, o := range report.Outputs {
				if o.Changed {
					fmt.Fprint(out, o.Diff)
				}
			}
		}
	} else {
		for _, m := range report.Matches {
			fmt.Fprintf(out, "%s:%d:%d: %s%s\n", m.Path, m.Start.Line, m.Start.Column, firstLine(m.Text), formatBindings(m.Bindings))
		}
	}
	for _, c := range report.Conflicts {
		fmt.Fprintf(errOut, "conflict: %s\n", c)
	}
	for _, e := range report.Errors {
		fmt.Fprintf(errOut, "error: %s\n", e.Error())
	}

	st := report.Stats
	summary := fmt.Sprintf("%d matches in %d of %d files", st.Matches, st.MatchedFiles, st.Files)
	if mode == core.ModeRewrite {
		summary += fmt.Sprintf(", %d rewritten", st.Rewritten)
	}
	if report.RunID != "" {
		summary += " (run " + report.RunID + ")"
	}
	fmt.Fprintln(errOut, summary)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}

func formatBindings(b map[string]string) string {
	if len(b) == 0 {
		return ""
	}
	names := make([]string, 0, len(b))
	for name := range b {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+firstLine(b[name]))
	}
	return "  {" + strings.Join(parts, ", ") + "}"
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/termfx/structq/db"
	"github.com/termfx/structq/internal/config"
	"github.com/termfx/structq/internal/logging"
	"github.com/termfx/structq/providers"
	"github.com/termfx/structq/providers/golang"
	"github.com/termfx/structq/providers/javascript"
	"github.com/termfx/structq/providers/php"
	"github.com/termfx/structq/providers/plain"
	"github.com/termfx/structq/providers/python"
	"github.com/termfx/structq/providers/typescript"
)

const version = "0.4.0"

// app is the state shared by all subcommands of one invocation.
type app struct {
	configFile string
	dbDSN      string
	verbose    int
	quiet      bool
	jsonOut    bool

	cfg      *config.Config
	logger   *slog.Logger
	logFile  *os.File
	registry *providers.Registry
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "structq",
		Short: "Structural search and rewrite for source code",
		Long: `structq matches code by syntax tree rather than by text.

Patterns are code snippets in backticks with $VARIABLES, combined with
where-clauses and an optional => rewrite:

  structq search -l go -p '` + "`fmt.Println($...ARGS)`" + `' .
  structq rewrite -l go -p '` + "`errors.New($MSG)` => `fmt.Errorf($MSG)`" + `' --write .`,
		Version:           version,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) { a.teardown() },
	}
	root.SetVersionTemplate("structq version {{.Version}}\n")

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "config file (default: .structq.{yaml,toml,json} in the working directory)")
	pf.StringVar(&a.dbDSN, "db", "", "rule store and run journal DSN: a SQLite path, :memory: or a libsql URL")
	pf.CountVarP(&a.verbose, "verbose", "v", "increase log verbosity (-v info, -vv debug)")
	pf.BoolVarP(&a.quiet, "quiet", "q", false, "disable logging")
	pf.BoolVar(&a.jsonOut, "json", false, "print machine-readable JSON")

	root.AddCommand(
		newSearchCmd(a),
		newRewriteCmd(a),
		newExplainCmd(a),
		newRulesCmd(a),
		newRunsCmd(a),
		newLanguagesCmd(a),
	)
	return root
}

// setup loads configuration, builds the logger and registers grammars.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	dir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}
	cfg, err := config.Load(dir, a.configFile)
	if err != nil {
		return err
	}
	if a.dbDSN != "" {
		cfg.DB.DSN = a.dbDSN
	}
	a.cfg = cfg

	level := logging.LevelFromString(cfg.Log.Level)
	if a.verbose > 0 || a.quiet {
		level = logging.LevelFromVerbosity(a.verbose, a.quiet)
	}
	format := logging.ParseFormat(cfg.Log.Format)
	if cfg.Log.File != "" {
		logger, f, err := logging.NewFileLogger(cfg.Log.File, level, format)
		if err != nil {
			return err
		}
		a.logger, a.logFile = logger, f
	} else {
		a.logger = logging.NewLogger(cmd.ErrOrStderr(), level, format)
	}
	if cfg.File != "" {
		a.logger.Debug("config loaded", "file", cfg.File)
	}

	a.registry = newRegistry()
	return nil
}

func (a *app) teardown() {
	if a.logFile != nil {
		a.logFile.Close()
		a.logFile = nil
	}
}

// newRegistry registers every built-in grammar.
func newRegistry() *providers.Registry {
	r := providers.NewRegistry()
	for _, g := range []providers.Grammar{
		golang.New(),
		python.New(),
		javascript.New(),
		typescript.New(),
		php.New(),
		plain.New(),
	} {
		r.Register(g)
	}
	return r
}

// openStore connects to the configured database, or returns nil when none
// is configured.
func (a *app) openStore() (*db.Store, error) {
	if a.cfg.DB.DSN == "" {
		return nil, nil
	}
	store, err := db.Open(a.cfg.DB.DSN, a.cfg.DB.Debug, db.WithRetention(a.cfg.DB.Retention))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return store, nil
}

// requireStore is openStore for commands that cannot work without one.
func (a *app) requireStore() (*db.Store, error) {
	store, err := a.openStore()
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("no database configured; pass --db or set %s_DB_DSN", config.EnvPrefix)
	}
	return store, nil
}

func newLanguagesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List supported languages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			langs := a.registry.Languages()
			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), langs)
			}
			for _, l := range langs {
				g, _ := a.registry.Get(l)
				fmt.Fprintf(cmd.OutOrStdout(), "%-12s %v\n", l, g.Extensions())
			}
			return nil
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

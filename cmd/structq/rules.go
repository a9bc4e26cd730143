package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/termfx/structq/core"
	"github.com/termfx/structq/internal/config"
	"github.com/termfx/structq/pattern"
)

func newRulesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage stored rules",
		Long: `Rules are named patterns. They live in the database given by --db and
in the rule file named by the "rules" config setting; the database wins
when both define a name.`,
	}
	cmd.AddCommand(
		newRulesAddCmd(a),
		newRulesListCmd(a),
		newRulesRemoveCmd(a),
		newRulesImportCmd(a),
		newRulesExportCmd(a),
		newRulesRunCmd(a),
	)
	return cmd
}

func newRulesAddCmd(a *app) *cobra.Command {
	var r core.Rule
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Compile a pattern and store it under a name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r.Name = args[0]
			if err := a.checkRule(cmd.Context(), r); err != nil {
				return err
			}
			store, err := a.requireStore()
			if err != nil {
				return err
			}
			defer store.Close()

			saved, err := store.SaveRule(cmd.Context(), r)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), saved)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved rule %s (%s)\n", saved.Name, saved.ID)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&r.Pattern, "pattern", "p", "", "pattern source")
	f.StringVarP(&r.Language, "lang", "l", "", "language the pattern is written for")
	f.StringVar(&r.Description, "description", "", "what the rule finds")
	f.StringSliceVar(&r.Tags, "tag", nil, "tags")
	cmd.MarkFlagRequired("pattern")
	cmd.MarkFlagRequired("lang")
	return cmd
}

// checkRule compiles the rule so broken patterns are never stored.
func (a *app) checkRule(ctx context.Context, r core.Rule) error {
	g, err := a.resolveGrammar(r.Language, "", nil)
	if err != nil {
		return err
	}
	if _, err := pattern.CompileContext(ctx, r.Pattern, g, pattern.Options{StrictLint: a.cfg.StrictLint}); err != nil {
		return fmt.Errorf("rule %s: %w", r.Name, err)
	}
	return nil
}

func newRulesListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rules, err := a.allRules(cmd.Context())
			if err != nil {
				return err
			}
			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), rules)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tLANGUAGE\tTAGS\tPATTERN")
			for _, r := range rules {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Name, r.Language, strings.Join(r.Tags, ","), firstLine(r.Pattern))
			}
			return tw.Flush()
		},
	}
}

func newRulesRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <name>",
		Aliases: []string{"remove"},
		Short:   "Delete a stored rule",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.requireStore()
			if err != nil {
				return err
			}
			defer store.Close()
			return store.DeleteRule(cmd.Context(), args[0])
		},
	}
}

func newRulesImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Store every rule of a YAML or TOML rule file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rules, err := config.LoadRules(args[0])
			if err != nil {
				return err
			}
			for _, r := range rules {
				if err := a.checkRule(cmd.Context(), fromConfigRule(r)); err != nil {
					return err
				}
			}
			store, err := a.requireStore()
			if err != nil {
				return err
			}
			defer store.Close()
			for _, r := range rules {
				if _, err := store.SaveRule(cmd.Context(), fromConfigRule(r)); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d rules\n", len(rules))
			return nil
		},
	}
}

func newRulesExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export <file>",
		Short: "Write all rules to a YAML or TOML rule file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rules, err := a.allRules(cmd.Context())
			if err != nil {
				return err
			}
			out := make([]config.Rule, 0, len(rules))
			for _, r := range rules {
				out = append(out, config.Rule{
					Name:        r.Name,
					Language:    r.Language,
					Pattern:     r.Pattern,
					Description: r.Description,
					Tags:        r.Tags,
				})
			}
			if err := config.SaveRules(args[0], out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d rules\n", len(out))
			return nil
		},
	}
}

func newRulesRunCmd(a *app) *cobra.Command {
	qf := &queryFlags{}
	var rewriting bool
	cmd := &cobra.Command{
		Use:   "run <name> [paths...]",
		Short: "Run a rule",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			qf.rule = args[0]
			mode := core.ModeSearch
			if rewriting {
				mode = core.ModeRewrite
			}
			return a.runQuery(cmd, qf, mode, args[1:])
		},
	}
	qf.register(cmd, true)
	cmd.Flags().MarkHidden("rule")
	cmd.Flags().MarkHidden("pattern")
	cmd.Flags().BoolVar(&rewriting, "rewrite", false, "apply the rule's rewrite")
	return cmd
}

func fromConfigRule(r config.Rule) core.Rule {
	return core.Rule{
		Name:        r.Name,
		Language:    r.Language,
		Pattern:     r.Pattern,
		Description: r.Description,
		Tags:        r.Tags,
	}
}

// fileRules reads the configured rule file, if any.
func (a *app) fileRules() ([]core.Rule, error) {
	if a.cfg.Rules == "" {
		return nil, nil
	}
	rules, err := config.LoadRules(a.cfg.Rules)
	if err != nil {
		return nil, err
	}
	out := make([]core.Rule, 0, len(rules))
	for _, r := range rules {
		out = append(out, fromConfigRule(r))
	}
	return out, nil
}

// findRule looks a rule up in the store, then in the rule file.
func (a *app) findRule(ctx context.Context, name string) (core.Rule, error) {
	store, err := a.openStore()
	if err != nil {
		return core.Rule{}, err
	}
	if store != nil {
		defer store.Close()
		r, err := store.Rule(ctx, name)
		if err == nil {
			return r, nil
		}
		if !errors.Is(err, core.ErrRuleNotFound) {
			return core.Rule{}, err
		}
	}
	rules, err := a.fileRules()
	if err != nil {
		return core.Rule{}, err
	}
	for _, r := range rules {
		if r.Name == name {
			return r, nil
		}
	}
	return core.Rule{}, fmt.Errorf("%w: %s", core.ErrRuleNotFound, name)
}

// allRules merges stored and file rules by name, stored first.
func (a *app) allRules(ctx context.Context) ([]core.Rule, error) {
	var rules []core.Rule
	seen := make(map[string]bool)

	store, err := a.openStore()
	if err != nil {
		return nil, err
	}
	if store != nil {
		defer store.Close()
		stored, err := store.Rules(ctx)
		if err != nil {
			return nil, err
		}
		for _, r := range stored {
			seen[r.Name] = true
			rules = append(rules, r)
		}
	}

	fromFile, err := a.fileRules()
	if err != nil {
		return nil, err
	}
	for _, r := range fromFile {
		if !seen[r.Name] {
			seen[r.Name] = true
			rules = append(rules, r)
		}
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].Name < rules[j].Name })
	return rules, nil
}

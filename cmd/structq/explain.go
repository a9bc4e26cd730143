package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/termfx/structq/core"
	"github.com/termfx/structq/pattern"
)

func newExplainCmd(a *app) *cobra.Command {
	var (
		source string
		rule   string
		lang   string
	)
	cmd := &cobra.Command{
		Use:   "explain",
		Short: "Compile a pattern and show its canonical form and pre-filter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			qf := &queryFlags{pattern: source, rule: rule}
			src, ruleLang, err := a.resolvePattern(cmd.Context(), qf)
			if err != nil {
				return err
			}
			g, err := a.resolveGrammar(lang, ruleLang, nil)
			if err != nil {
				return err
			}
			p, err := pattern.CompileContext(cmd.Context(), src, g, pattern.Options{StrictLint: a.cfg.StrictLint})
			if err != nil {
				return err
			}
			ex := core.Explain(p)
			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), ex)
			}
			fmt.Fprint(cmd.OutOrStdout(), ex.String())
			return nil
		},
	}
	cmd.Flags().StringVarP(&source, "pattern", "p", "", "pattern source")
	cmd.Flags().StringVar(&rule, "rule", "", "explain a stored rule by name")
	cmd.Flags().StringVarP(&lang, "lang", "l", "", "target language")
	return cmd
}

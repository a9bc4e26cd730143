package core

import (
	"fmt"
	"strings"

	"github.com/termfx/structq/optimizer"
	"github.com/termfx/structq/pattern"
)

// Explanation describes a compiled pattern without running it.
type Explanation struct {
	Source    string   `json:"source"`
	Language  string   `json:"language"`
	Canonical string   `json:"canonical"`
	Variables []string `json:"variables"`
	Rewrite   bool     `json:"rewrite"`
	Optimizer string   `json:"optimizer"`
	Trivial   bool     `json:"trivial"`
	Warnings  []string `json:"warnings,omitempty"`
}

// Explain reports the canonical form, variables and pre-filter of p.
func Explain(p *pattern.Pattern) Explanation {
	pred := optimizer.Derive(p)
	ex := Explanation{
		Source:    p.Source,
		Language:  p.Language,
		Canonical: p.String(),
		Variables: p.Variables(),
		Rewrite:   p.HasRewrite(),
		Optimizer: pred.Describe(),
		Trivial:   pred.IsTrivial(),
	}
	for _, w := range p.Warnings {
		ex.Warnings = append(ex.Warnings, w.String())
	}
	return ex
}

func (ex Explanation) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "pattern:   %s\n", ex.Source)
	fmt.Fprintf(&sb, "language:  %s\n", ex.Language)
	fmt.Fprintf(&sb, "canonical: %s\n", ex.Canonical)
	fmt.Fprintf(&sb, "variables: %s\n", strings.Join(ex.Variables, ", "))
	fmt.Fprintf(&sb, "rewrite:   %t\n", ex.Rewrite)
	fmt.Fprintf(&sb, "prefilter: %s\n", ex.Optimizer)
	for _, w := range ex.Warnings {
		fmt.Fprintf(&sb, "warning:   %s\n", w)
	}
	return sb.String()
}

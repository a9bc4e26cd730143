// Package rewrite turns recorded match effects into text edits, resolves
// overlapping edits and applies them.
package rewrite

import (
	"bytes"
	"fmt"
	"slices"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/termfx/structq/binding"
	"github.com/termfx/structq/pattern"
	"github.com/termfx/structq/tree"
)

// Edit replaces Span of the file at Path with Replacement. Order is the
// position of the producing match in traversal order; lower wins conflicts.
type Edit struct {
	Path        string    `json:"path"`
	Span        tree.Span `json:"span"`
	Replacement string    `json:"replacement"`
	Order       int       `json:"order"`
}

// Policy decides what happens to overlapping edits.
type Policy int

const (
	// DropLater keeps the earlier edit and reports the later one as a
	// conflict.
	DropLater Policy = iota
	// Reject fails the whole file.
	Reject
)

func (p Policy) String() string {
	if p == Reject {
		return "reject"
	}
	return "drop-later"
}

// ParsePolicy parses "drop-later" or "reject". The empty string is
// DropLater.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "drop-later", "drop_later", "droplater":
		return DropLater, nil
	case "reject":
		return Reject, nil
	}
	return DropLater, fmt.Errorf("unknown conflict policy %q (want drop-later or reject)", s)
}

// Conflict records an edit dropped because it overlaps a kept one.
type Conflict struct {
	Path    string `json:"path"`
	Kept    Edit   `json:"kept"`
	Dropped Edit   `json:"dropped"`
}

func (c Conflict) String() string {
	return fmt.Sprintf("%s: edit at %s overlaps edit at %s", c.Path, c.Dropped.Span, c.Kept.Span)
}

// ConflictError is returned by Plan under the Reject policy.
type ConflictError struct {
	Conflict Conflict
}

func (e *ConflictError) Error() string { return "rewrite conflict: " + e.Conflict.String() }

// Render expands tmpl with the bindings of env. Nodes and lists render as
// their verbatim source text; unbound variables render as nothing.
func Render(tmpl *pattern.Template, env *binding.Env, source []byte) string {
	var sb strings.Builder
	for _, part := range tmpl.Parts {
		if part.Var == "" {
			sb.WriteString(part.Text)
			continue
		}
		v, ok := env.Lookup(part.Var)
		if !ok {
			continue
		}
		if span, ok := binding.SpanOf(v); ok {
			sb.Write(source[span.Start:span.End])
			continue
		}
		sb.WriteString(v.String())
	}
	return sb.String()
}

// Edits renders every effect recorded in env.
func Edits(path string, env *binding.Env, source []byte, order int) []Edit {
	effects := env.Effects()
	out := make([]Edit, 0, len(effects))
	for _, eff := range effects {
		out = append(out, Edit{
			Path:        path,
			Span:        eff.Node.Span(),
			Replacement: Render(eff.Template, env, source),
			Order:       order,
		})
	}
	return out
}

// Plan orders edits and removes overlaps. Edits are considered in Order; an
// edit overlapping one already kept is a conflict. Exact duplicates are
// dropped silently.
func Plan(edits []Edit, policy Policy) ([]Edit, []Conflict, error) {
	sorted := slices.Clone(edits)
	slices.SortStableFunc(sorted, func(a, b Edit) int { return a.Order - b.Order })

	var kept []Edit
	var conflicts []Conflict
next:
	for _, e := range sorted {
		for _, k := range kept {
			if !k.Span.Overlaps(e.Span) {
				continue
			}
			if k.Span == e.Span && k.Replacement == e.Replacement {
				continue next
			}
			c := Conflict{Path: e.Path, Kept: k, Dropped: e}
			if policy == Reject {
				return nil, append(conflicts, c), &ConflictError{Conflict: c}
			}
			conflicts = append(conflicts, c)
			continue next
		}
		kept = append(kept, e)
	}

	slices.SortFunc(kept, func(a, b Edit) int { return a.Span.Start - b.Span.Start })
	return kept, conflicts, nil
}

// Apply applies edits in one pass. Edits are expected not to overlap, as
// returned by Plan; an edit that starts inside an earlier one, or whose span
// lies outside content, is skipped.
func Apply(content []byte, edits []Edit) []byte {
	sorted := slices.Clone(edits)
	slices.SortStableFunc(sorted, func(a, b Edit) int { return a.Span.Start - b.Span.Start })

	var out bytes.Buffer
	out.Grow(len(content))
	pos := 0
	for _, e := range sorted {
		if e.Span.Start < pos || e.Span.End < e.Span.Start || e.Span.End > len(content) {
			continue
		}
		out.Write(content[pos:e.Span.Start])
		out.WriteString(e.Replacement)
		pos = e.Span.End
	}
	out.Write(content[pos:])
	return out.Bytes()
}

// Diff returns a unified diff between before and after, or "" when they are
// equal.
func Diff(path string, before, after []byte) (string, error) {
	if bytes.Equal(before, after) {
		return "", nil
	}
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(before)),
		B:        difflib.SplitLines(string(after)),
		FromFile: "a/" + path,
		ToFile:   "b/" + path,
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", fmt.Errorf("diff %s: %w", path, err)
	}
	return text, nil
}

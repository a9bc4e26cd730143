package tree

import (
	"iter"
	"strings"
)

// Walk yields n and its descendants depth-first, left-to-right. Trivia nodes
// are skipped together with their subtrees.
func Walk(n Node) iter.Seq[Node] {
	return func(yield func(Node) bool) {
		walk(n, yield)
	}
}

func walk(n Node, yield func(Node) bool) bool {
	if n.IsTrivia() {
		return true
	}
	if !yield(n) {
		return false
	}
	for _, id := range n.data().children {
		if !walk(Node{t: n.t, id: id}, yield) {
			return false
		}
	}
	return true
}

// Ancestors yields the strict ancestors of n, nearest first.
func Ancestors(n Node) iter.Seq[Node] {
	return func(yield func(Node) bool) {
		for p := n.Parent(); p.IsValid(); p = p.Parent() {
			if !yield(p) {
				return
			}
		}
	}
}

// Innermost returns the deepest node whose span is exactly s, if any.
func Innermost(root Node, s Span) (Node, bool) {
	var found Node
	cur := root
	for {
		if cur.Span() == s {
			found = cur
		}
		next := Node{}
		for _, c := range cur.Children() {
			if c.Span().Contains(s) && !c.IsTrivia() {
				next = c
				break
			}
		}
		if !next.IsValid() {
			break
		}
		cur = next
	}
	return found, found.IsValid()
}

// Equal reports whether two nodes are structurally equal: same kind and same
// text. When triviaInsensitive is set, comments and whitespace between tokens
// are ignored.
func Equal(a, b Node, triviaInsensitive bool) bool {
	if a.Kind() != b.Kind() {
		return false
	}
	if !triviaInsensitive {
		return a.Text() == b.Text()
	}
	ac, bc := a.SignificantChildren(), b.SignificantChildren()
	if len(ac) != len(bc) {
		return false
	}
	if len(ac) == 0 {
		return a.Text() == b.Text()
	}
	if gapText(a) != gapText(b) {
		return false
	}
	for i := range ac {
		if !Equal(ac[i], bc[i], true) {
			return false
		}
	}
	return true
}

// gapText returns the bytes of n not covered by any child, with whitespace
// removed. Grammars that keep token content outside of child nodes (string
// literals, for instance) are compared through it.
func gapText(n Node) string {
	var sb strings.Builder
	src := n.t.source
	pos := n.Span().Start
	for _, c := range n.Children() {
		cs := c.Span()
		sb.WriteString(strings.Join(strings.Fields(string(src[pos:cs.Start])), ""))
		pos = cs.End
	}
	sb.WriteString(strings.Join(strings.Fields(string(src[pos:n.Span().End])), ""))
	return sb.String()
}

// Uncovered reports whether n has non-whitespace source bytes that no child
// covers. Such nodes behave like leaves for structural comparison.
func Uncovered(n Node) bool {
	if n.IsLeaf() {
		return false
	}
	src := n.t.source
	pos := n.Span().Start
	for _, c := range n.Children() {
		cs := c.Span()
		if strings.TrimSpace(string(src[pos:cs.Start])) != "" {
			return true
		}
		pos = cs.End
	}
	return strings.TrimSpace(string(src[pos:n.Span().End])) != ""
}

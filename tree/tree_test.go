package tree

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// call builds `foo(bar) // c` by hand:
// (call (ident "foo") (args "(" (ident "bar") ")") (comment))
func call(t *testing.T, src string, argStart, argEnd int) *Tree {
	t.Helper()
	b := NewBuilder("test", []byte(src))
	root := b.Add(NoNode, Attrs{Kind: "call", Span: Span{0, len(src)}, Named: true})
	b.Add(root, Attrs{Kind: "ident", Field: "function", Span: Span{0, 3}, Named: true})
	args := b.Add(root, Attrs{Kind: "args", Field: "arguments", Span: Span{3, argEnd + 1}, Named: true})
	b.Add(args, Attrs{Kind: "(", Span: Span{3, 4}})
	b.Add(args, Attrs{Kind: "ident", Span: Span{argStart, argEnd}, Named: true})
	b.Add(args, Attrs{Kind: ")", Span: Span{argEnd, argEnd + 1}})
	if argEnd+1 < len(src) {
		b.Add(root, Attrs{Kind: "comment", Span: Span{argEnd + 2, len(src)}, Named: true, Trivia: true})
	}
	tr, err := b.Finish()
	require.NoError(t, err)
	return tr
}

func TestBuilderAndAccessors(t *testing.T) {
	tr := call(t, "foo(bar) // c", 4, 7)

	root := tr.Root()
	assert.Equal(t, "call", root.Kind())
	assert.Equal(t, "test", tr.Language())
	assert.Equal(t, 3, len(root.Children()))
	assert.Equal(t, 2, len(root.SignificantChildren()))
	assert.False(t, root.Parent().IsValid())

	fn, ok := root.ChildByField("function")
	require.True(t, ok)
	assert.Equal(t, "foo", fn.Text())
	assert.Equal(t, "function", fn.Field())

	args, ok := root.ChildByField("arguments")
	require.True(t, ok)
	arg := args.Child(1)
	assert.Equal(t, "bar", arg.Text())
	assert.True(t, arg.IsNamed())
	assert.False(t, args.Child(0).IsNamed())
	assert.Equal(t, args.ID(), arg.Parent().ID())
	assert.Equal(t, " ", args.TrailingTrivia())
	assert.Equal(t, "", arg.LeadingTrivia())

	assert.True(t, tr.HasKind("comment"))
	assert.Equal(t, 2, tr.KindCount("ident"))
	assert.False(t, tr.HasKind("missing"))
}

func TestBuilderRejectsBrokenSpans(t *testing.T) {
	tests := []struct {
		name  string
		build func(b *Builder)
	}{
		{
			name: "child outside parent",
			build: func(b *Builder) {
				r := b.Add(NoNode, Attrs{Kind: "r", Span: Span{0, 3}})
				b.Add(r, Attrs{Kind: "c", Span: Span{2, 5}})
			},
		},
		{
			name: "overlapping siblings",
			build: func(b *Builder) {
				r := b.Add(NoNode, Attrs{Kind: "r", Span: Span{0, 6}})
				b.Add(r, Attrs{Kind: "a", Span: Span{0, 3}})
				b.Add(r, Attrs{Kind: "b", Span: Span{2, 4}})
			},
		},
		{
			name: "decreasing siblings",
			build: func(b *Builder) {
				r := b.Add(NoNode, Attrs{Kind: "r", Span: Span{0, 6}})
				b.Add(r, Attrs{Kind: "a", Span: Span{3, 4}})
				b.Add(r, Attrs{Kind: "b", Span: Span{0, 1}})
			},
		},
		{
			name: "span past source",
			build: func(b *Builder) {
				b.Add(NoNode, Attrs{Kind: "r", Span: Span{0, 99}})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder("test", []byte("abcdef"))
			tt.build(b)
			_, err := b.Finish()
			assert.ErrorIs(t, err, ErrSpanInvariant)
		})
	}
}

func TestBuilderNoRoot(t *testing.T) {
	_, err := NewBuilder("test", nil).Finish()
	assert.Error(t, err)
}

func TestWalkSkipsTrivia(t *testing.T) {
	tr := call(t, "foo(bar) // c", 4, 7)
	var kinds []string
	for n := range Walk(tr.Root()) {
		kinds = append(kinds, n.Kind())
	}
	assert.Equal(t, []string{"call", "ident", "args", "(", "ident", ")"}, kinds)
}

func TestWalkStopsEarly(t *testing.T) {
	tr := call(t, "foo(bar)", 4, 7)
	n := 0
	for range Walk(tr.Root()) {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}

func TestAncestors(t *testing.T) {
	tr := call(t, "foo(bar)", 4, 7)
	args, _ := tr.Root().ChildByField("arguments")
	var kinds []string
	for a := range Ancestors(args.Child(1)) {
		kinds = append(kinds, a.Kind())
	}
	assert.Equal(t, []string{"args", "call"}, kinds)
}

func TestInnermost(t *testing.T) {
	tr := call(t, "foo(bar)", 4, 7)
	n, ok := Innermost(tr.Root(), Span{4, 7})
	require.True(t, ok)
	assert.Equal(t, "bar", n.Text())

	n, ok = Innermost(tr.Root(), Span{0, 8})
	require.True(t, ok)
	assert.Equal(t, "call", n.Kind())

	_, ok = Innermost(tr.Root(), Span{1, 5})
	assert.False(t, ok)
}

func TestEqual(t *testing.T) {
	a := call(t, "foo(bar)", 4, 7)
	b := call(t, "foo(bar) // c", 4, 7)
	c := call(t, "foo( bar)", 5, 8)
	d := call(t, "foo(baz)", 4, 7)

	assert.True(t, Equal(a.Root(), b.Root(), true))
	assert.False(t, Equal(a.Root(), b.Root(), false))
	assert.True(t, Equal(a.Root(), c.Root(), true))
	assert.False(t, Equal(a.Root(), c.Root(), false))
	assert.False(t, Equal(a.Root(), d.Root(), true))
}

func TestPosition(t *testing.T) {
	b := NewBuilder("test", []byte("ab\ncd\n\nef"))
	b.Add(NoNode, Attrs{Kind: "r", Span: Span{0, 9}})
	tr, err := b.Finish()
	require.NoError(t, err)

	assert.Equal(t, Point{0, 0}, tr.Position(0))
	assert.Equal(t, Point{1, 1}, tr.Position(4))
	assert.Equal(t, Point{2, 0}, tr.Position(6))
	assert.Equal(t, Point{3, 1}, tr.Position(8))
}

func TestSpanOverlaps(t *testing.T) {
	assert.True(t, Span{0, 3}.Overlaps(Span{2, 5}))
	assert.False(t, Span{0, 3}.Overlaps(Span{3, 5}))
	assert.True(t, Span{2, 2}.Overlaps(Span{2, 2}))
	assert.False(t, Span{2, 2}.Overlaps(Span{2, 4}))
	assert.True(t, Span{3, 3}.Overlaps(Span{2, 4}))
}

func TestString(t *testing.T) {
	tr := call(t, "foo(bar)", 4, 7)
	assert.Equal(t, `(call function: (ident "foo") arguments: (args "(" (ident "bar") ")"))`, tr.Root().String())
	assert.Equal(t, "<invalid>", Node{}.String())
	assert.True(t, slices.ContainsFunc(tr.Root().Children(), func(n Node) bool { return n.Kind() == "args" }))
}

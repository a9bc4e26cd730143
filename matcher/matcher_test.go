package matcher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/termfx/structq/binding"
	"github.com/termfx/structq/pattern"
	"github.com/termfx/structq/providers/golang"
	"github.com/termfx/structq/providers/plain"
	"github.com/termfx/structq/tree"
)

func compile(t *testing.T, src string) *pattern.Pattern {
	t.Helper()
	p, err := pattern.Compile(src, plain.New(), pattern.Options{})
	require.NoError(t, err)
	return p
}

func parse(t *testing.T, src string) *tree.Tree {
	t.Helper()
	tr, err := plain.New().Parse(context.Background(), []byte(src))
	require.NoError(t, err)
	return tr
}

// bound collects the text bound to name in every result.
func bound(results []Result, name string) []string {
	var out []string
	for _, r := range results {
		v, ok := r.Env.Lookup(name)
		if !ok {
			out = append(out, "<unbound>")
			continue
		}
		out = append(out, v.String())
	}
	return out
}

func collect(t *testing.T, pat, src string, mode Mode, opts ...Option) []Result {
	t.Helper()
	var out []Result
	for r := range FindAll(compile(t, pat), parse(t, src), mode, opts...) {
		out = append(out, r)
	}
	return out
}

func TestCallWithOneArgument(t *testing.T) {
	results := collect(t, "`foo($X)`", "foo(a)\nbar(b)\nfoo(c)\nfoo(d, e)\n", ModeFirst)
	require.Len(t, results, 2)
	assert.Equal(t, []string{"a", "c"}, bound(results, "X"))
	assert.Equal(t, "foo(a)", results[0].Node.Text())
	assert.Equal(t, "foo(c)", results[1].Node.Text())
}

func TestBackReference(t *testing.T) {
	src := "foo(a, a)\nfoo(a, b)\nfoo(a b, a /* note */ b)\n"

	results := collect(t, "`foo($X, $X)`", src, ModeFirst)
	require.Len(t, results, 2)
	assert.Equal(t, []string{"a", "a b"}, bound(results, "X"))

	strict := collect(t, "`foo($X, $X)`", src, ModeFirst, TriviaInsensitive(false))
	require.Len(t, strict, 1)
	assert.Equal(t, "foo(a, a)", strict[0].Node.Text())
}

func TestBackReferenceLaw(t *testing.T) {
	p := compile(t, "`pair($A, $B)` where { $A <: $B }")
	tr := parse(t, "pair(x, x)\npair(x, y)\npair(1, 1)\n")
	for r := range FindAll(p, tr, ModeAll) {
		a, _ := r.Env.Lookup("A")
		b, _ := r.Env.Lookup("B")
		assert.True(t, binding.Equal(a, b, true), "A=%s B=%s", a, b)
	}
}

func TestRest(t *testing.T) {
	results := collect(t, "`foo($...ARGS)`", "foo()\nfoo(1, 2)\n", ModeFirst)
	require.Len(t, results, 2)
	assert.Equal(t, []string{"", "1, 2"}, bound(results, "ARGS"))
}

func TestRestBacktracks(t *testing.T) {
	results := collect(t, "`foo($...A, $B)`", "foo(1, 2, 3)\n", ModeAll)
	require.Len(t, results, 1)
	assert.Equal(t, []string{"1, 2"}, bound(results, "A"))
	assert.Equal(t, []string{"3"}, bound(results, "B"))
}

func TestModes(t *testing.T) {
	pat := "$N:item where { contains($W:number) }"
	src := "f(1, 2)\n"

	all := collect(t, pat, src, ModeAll)
	assert.Equal(t, []string{"1", "2"}, bound(all, "W"))

	first := collect(t, pat, src, ModeFirst)
	assert.Equal(t, []string{"1"}, bound(first, "W"))
}

func TestNegationIsTransparent(t *testing.T) {
	results := collect(t, `$X:word where { not regex("^a") }`, "apple banana cherry\n", ModeFirst)
	assert.Equal(t, []string{"banana", "cherry"}, bound(results, "X"))

	results = collect(t, "$X:item where { not contains($Y:number) }", "f(a)\ng(1)\n", ModeFirst)
	require.Len(t, results, 1)
	assert.Equal(t, "f(a)", results[0].Node.Text())
	assert.Equal(t, []string{"X"}, results[0].Env.Names())
}

func TestNegationLaw(t *testing.T) {
	tr := parse(t, "f(a)\ng(1)\nh\n")
	inner := compile(t, "`f($_)`")
	negated := compile(t, "not `f($_)`")

	for n := range tree.Walk(tr.Root()) {
		env, _ := binding.Empty().Bind("K", binding.TextValue{Text: "k"})
		var innerMatched bool
		for range Match(inner, n, env) {
			innerMatched = true
		}
		var outs []*binding.Env
		for e := range Match(negated, n, env) {
			outs = append(outs, e)
		}
		if innerMatched {
			assert.Empty(t, outs, n.Text())
			continue
		}
		require.Len(t, outs, 1, n.Text())
		assert.Same(t, env, outs[0])
	}
}

func TestWithin(t *testing.T) {
	results := collect(t, "$X:number where { within(`f($...)`) }", "f(1)\ng(2)\n", ModeFirst)
	assert.Equal(t, []string{"1"}, bound(results, "X"))
}

func TestFilename(t *testing.T) {
	pat := `$X:word where { filename("*.conf") }`
	assert.Len(t, collect(t, pat, "a\n", ModeFirst, WithPath("etc/app.conf")), 1)
	assert.Empty(t, collect(t, pat, "a\n", ModeFirst, WithPath("etc/app.txt")))
	assert.Empty(t, collect(t, pat, "a\n", ModeFirst))

	deep := `$X:word where { filename("etc/**/*.conf") }`
	assert.Len(t, collect(t, deep, "a\n", ModeFirst, WithPath("etc/nginx/site.conf")), 1)
	assert.Empty(t, collect(t, deep, "a\n", ModeFirst, WithPath("var/site.conf")))
}

func TestNear(t *testing.T) {
	results := collect(t, "$D:document where { contains($X:word), near($X, 2) }", "a\n1\nb\nc\n", ModeAll)
	assert.Equal(t, []string{"a", "b"}, bound(results, "X"))
}

func TestMatchPredicate(t *testing.T) {
	results := collect(t, "$X:item where { $X <: `f($_)` }", "f(a)\nf(a, b)\ng(c)\n", ModeFirst)
	require.Len(t, results, 1)
	assert.Equal(t, "f(a)", results[0].Node.Text())

	results = collect(t, "`f($...A)` where { $A <: [$_, \",\", $_] }", "f(a, b)\nf(a)\n", ModeFirst)
	require.Len(t, results, 1)
	assert.Equal(t, "f(a, b)", results[0].Node.Text())
}

func TestKindAndRegex(t *testing.T) {
	results := collect(t, `$X where { kind("number"), regex("^4") }`, "42 7 43\n", ModeFirst)
	assert.Equal(t, []string{"42", "43"}, bound(results, "X"))
}

func TestAlternationOrder(t *testing.T) {
	results := collect(t, `$X:item where { or { contains($V:number), contains($V:word) } }`, "f(1)\n", ModeAll)
	assert.Equal(t, []string{"1", "f"}, bound(results, "V"))
}

func TestRewriteRecordsEffect(t *testing.T) {
	results := collect(t, "`foo($X)` => `bar($X)`", "foo(a)\n", ModeFirst)
	require.Len(t, results, 1)

	effects := results[0].Env.Effects()
	require.Len(t, effects, 1)
	assert.Equal(t, "foo(a)", effects[0].Node.Text())
	assert.Equal(t, "`bar(${X})`", effects[0].Template.String())
}

func TestDeterministicAndRestartable(t *testing.T) {
	p := compile(t, "`f($...A)`")
	tr := parse(t, "f(1)\nf(2, 3)\nf()\n")
	seq := FindAll(p, tr, ModeAll)

	var first, second []string
	for r := range seq {
		first = append(first, r.Node.Text())
	}
	for r := range seq {
		second = append(second, r.Node.Text())
	}
	assert.Equal(t, []string{"f(1)", "f(2, 3)", "f()"}, first)
	assert.Equal(t, first, second)

	for r := range seq {
		assert.Equal(t, "f(1)", r.Node.Text())
		break
	}
}

func TestGoCalls(t *testing.T) {
	g := golang.New()
	p, err := pattern.Compile("`fmt.Println($...ARGS)`", g, pattern.Options{})
	require.NoError(t, err)

	src := "package main\n\nimport \"fmt\"\n\nfunc main() {\n\tfmt.Println(\"a\", 1)\n\tfmt.Printf(\"%d\", 2)\n\tfmt.Println()\n}\n"
	tr, err := g.Parse(context.Background(), []byte(src))
	require.NoError(t, err)

	var results []Result
	for r := range FindAll(p, tr, ModeFirst) {
		results = append(results, r)
	}
	require.Len(t, results, 2)
	assert.Equal(t, []string{`"a", 1`, ""}, bound(results, "ARGS"))
	assert.Equal(t, 5, results[0].Node.StartPoint().Line)
}

func findGo(t *testing.T, pat, src string) []Result {
	t.Helper()
	g := golang.New()
	p, err := pattern.Compile(pat, g, pattern.Options{})
	require.NoError(t, err)
	tr, err := g.Parse(context.Background(), []byte(src))
	require.NoError(t, err)

	var results []Result
	for r := range FindAll(p, tr, ModeFirst) {
		results = append(results, r)
	}
	return results
}

func TestGoSnippetMatchesEveryContext(t *testing.T) {
	src := "package p\n\nvar s string\n\nfunc f(b []byte) {\n\t_ = string(b)\n}\n"
	results := findGo(t, "`string`", src)
	require.Len(t, results, 2)

	assert.Equal(t, "type_identifier", results[0].Node.Kind())
	assert.Equal(t, 2, results[0].Node.StartPoint().Line)
	assert.Equal(t, "identifier", results[1].Node.Kind())
	assert.Equal(t, 5, results[1].Node.StartPoint().Line)
}

func TestGoTextSnippet(t *testing.T) {
	src := "package p\n\nfunc f(x int) {\n\tswitch x {\n\tcase 1:\n\t\tg()\n\tcase 2:\n\t\th()\n\t}\n}\n"
	results := findGo(t, "`case $X: $...BODY`", src)
	require.Len(t, results, 2)
	assert.Equal(t, []string{"1", "2"}, bound(results, "X"))
	assert.Equal(t, []string{"g()", "h()"}, bound(results, "BODY"))
	assert.Equal(t, "expression_case", results[0].Node.Kind())

	// A repeated variable must bind the same text each time.
	src = "package p\n\nfunc f() {\n\tswitch {\n\tcase g: g()\n\tcase h: k()\n\t}\n}\n"
	results = findGo(t, "`case $X: $X()`", src)
	require.Len(t, results, 1)
	assert.Equal(t, []string{"g"}, bound(results, "X"))
}

package pattern

import (
	"context"
	"regexp"
	"strings"

	"github.com/termfx/structq/tree"
)

// SnippetGrammar is the part of a grammar the compiler needs to turn
// backtick snippets into tree shapes. ParseSnippet returns one node per
// distinct parse, in snippet-context order.
type SnippetGrammar interface {
	Language() string
	MetavariablePrefix() string
	ParseSnippet(ctx context.Context, snippet string) ([]tree.Node, error)
	ResolveKind(alias string) []string
}

// restMarker follows the metavariable prefix to encode `$...` in snippet text.
const restMarker = "___"

var (
	exactVariable = regexp.MustCompile(`^(\$[A-Za-z_][A-Za-z0-9_]*|\^_|\$\.\.\.([A-Za-z_][A-Za-z0-9_]*)?)$`)
	identifier    = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// expanded is a snippet after escape processing and metavariable encoding.
type expanded struct {
	text      string
	bracketed bool
}

// expandSnippet processes escapes (\n \$ \^ \` \" \\) and rewrites every
// metavariable to prefix-encoded form so that the grammar sees an identifier.
func expandSnippet(raw, prefix string) expanded {
	var sb strings.Builder
	out := expanded{}
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c == '\\' && i+1 < len(raw) {
			i++
			switch raw[i] {
			case 'n':
				sb.WriteByte('\n')
			case '$', '^', '`', '"', '\\':
				sb.WriteByte(raw[i])
			default:
				sb.WriteByte('\\')
				sb.WriteByte(raw[i])
			}
			continue
		}
		if c != '$' {
			sb.WriteByte(c)
			continue
		}

		rest := raw[i+1:]
		switch {
		case strings.HasPrefix(rest, "{"):
			end := strings.IndexByte(rest, '}')
			if end < 0 {
				sb.WriteByte(c)
				continue
			}
			out.bracketed = true
			sb.WriteString(prefix + rest[1:end])
			i += end + 1
		case strings.HasPrefix(rest, "..."):
			name := leadingIdent(rest[3:])
			sb.WriteString(prefix + restMarker + name)
			i += 3 + len(name)
		case len(rest) > 0 && isIdentifierStart(rest[0]):
			name := leadingIdent(rest)
			sb.WriteString(prefix + name)
			i += len(name)
		default:
			sb.WriteByte(c)
		}
	}
	out.text = sb.String()
	return out
}

func leadingIdent(s string) string {
	end := 0
	for end < len(s) && isIdentifierChar(s[end]) {
		end++
	}
	if end > 0 && !isIdentifierStart(s[0]) {
		return ""
	}
	return s[:end]
}

// exactSnippet handles snippets whose whole body is one metavariable.
func exactSnippet(body string) (Node, bool) {
	body = strings.TrimSpace(body)
	if !exactVariable.MatchString(body) {
		return nil, false
	}
	switch {
	case body == "$_" || body == "^_":
		return &Wildcard{}, true
	case strings.HasPrefix(body, "$..."):
		return &Rest{Name: body[4:]}, true
	default:
		return &Variable{Name: body[1:]}, true
	}
}

// decodeMetavar recognizes prefix-encoded metavariables in grammar output.
func decodeMetavar(text, prefix string) (Node, bool) {
	name, ok := strings.CutPrefix(text, prefix)
	if !ok {
		return nil, false
	}
	switch {
	case name == "_":
		return &Wildcard{}, true
	case strings.HasPrefix(name, restMarker):
		rest := name[len(restMarker):]
		if rest != "" && !identifier.MatchString(rest) {
			return nil, false
		}
		return &Rest{Name: rest}, true
	case identifier.MatchString(name):
		return &Variable{Name: name}, true
	}
	return nil, false
}

// lowerTree converts a parsed snippet into Kind, Literal and metavariable
// nodes. Trivia is dropped. Nodes whose text is not fully covered by their
// children (string literals, for instance) become literals.
func lowerTree(n tree.Node, prefix string) Node {
	text := n.Text()
	if v, ok := decodeMetavar(text, prefix); ok {
		return v
	}
	if n.IsLeaf() || tree.Uncovered(n) {
		return &Literal{Text: text, Kind: n.Kind()}
	}
	kids := n.SignificantChildren()
	elems := make([]Node, 0, len(kids))
	for _, k := range kids {
		elems = append(elems, lowerTree(k, prefix))
	}
	return &Kind{Kind: n.Kind(), Children: &Sequence{Elems: elems}}
}

// textPiece is a literal field or a metavariable of a text snippet.
type textPiece struct {
	lit   string
	name  string
	isVar bool
	rest  bool
	space bool
}

// textSnippet compiles a snippet the grammar cannot parse into a Text node.
// Whitespace between fields matches any run of whitespace, `$X` binds the
// shortest non-empty text that lets the rest match, `$...X` may bind nothing,
// and `$_` or an unnamed `$...` skip text without binding.
func textSnippet(raw string) (*Text, error) {
	body := strings.TrimSpace(raw)
	var (
		pieces []textPiece
		cur    strings.Builder
		space  bool
	)
	flush := func() {
		if cur.Len() > 0 {
			pieces = append(pieces, textPiece{lit: cur.String(), space: space})
			cur.Reset()
			space = false
		}
	}

	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case c == '\\' && i+1 < len(body):
			i++
			switch body[i] {
			case 'n':
				flush()
				space = true
			case '$', '^', '`', '"', '\\':
				cur.WriteByte(body[i])
			default:
				cur.WriteByte('\\')
				cur.WriteByte(body[i])
			}
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			flush()
			space = true
		case c == '$':
			rest := body[i+1:]
			p := textPiece{isVar: true}
			switch {
			case strings.HasPrefix(rest, "..."):
				p.name = leadingIdent(rest[3:])
				p.rest = true
				i += 3 + len(p.name)
			case len(rest) > 0 && isIdentifierStart(rest[0]):
				p.name = leadingIdent(rest)
				i += len(p.name)
			default:
				cur.WriteByte(c)
				continue
			}
			flush()
			if p.name == "_" {
				p.name = ""
			}
			p.space, space = space, false
			pieces = append(pieces, p)
		default:
			cur.WriteByte(c)
		}
	}
	flush()

	t := &Text{Source: body}
	var re strings.Builder
	re.WriteString(`(?s)^\s*`)
	for i, p := range pieces {
		if i > 0 {
			if p.space && !p.isVar && !pieces[i-1].isVar {
				re.WriteString(`\s+`)
			} else {
				re.WriteString(`\s*`)
			}
		}
		switch {
		case !p.isVar:
			t.Fields = append(t.Fields, p.lit)
			re.WriteString(regexp.QuoteMeta(p.lit))
		case p.name != "" && p.rest:
			t.Vars = append(t.Vars, p.name)
			re.WriteString(`(.*?)`)
		case p.name != "":
			t.Vars = append(t.Vars, p.name)
			re.WriteString(`(.+?)`)
		case p.rest:
			re.WriteString(`.*?`)
		default:
			re.WriteString(`.+?`)
		}
	}
	re.WriteString(`\s*$`)

	var err error
	if t.Regexp, err = regexp.Compile(re.String()); err != nil {
		return nil, err
	}
	return t, nil
}

// parseTemplate splits a rewrite template into text and variable parts.
func parseTemplate(raw string, pos Position) (*Template, error) {
	t := &Template{}
	var text strings.Builder
	flush := func() {
		if text.Len() > 0 {
			t.Parts = append(t.Parts, TemplatePart{Text: text.String()})
			text.Reset()
		}
	}

	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c == '\\' && i+1 < len(raw) {
			i++
			switch raw[i] {
			case 'n':
				text.WriteByte('\n')
			case '$', '^', '`', '"', '\\':
				text.WriteByte(raw[i])
			default:
				text.WriteByte('\\')
				text.WriteByte(raw[i])
			}
			continue
		}
		if c != '$' {
			text.WriteByte(c)
			continue
		}

		rest := raw[i+1:]
		var name string
		switch {
		case strings.HasPrefix(rest, "{"):
			end := strings.IndexByte(rest, '}')
			if end < 0 {
				return nil, errorf(ECSyntax, pos, "unterminated ${ in template")
			}
			name = rest[1:end]
			if !identifier.MatchString(name) {
				return nil, errorf(ECSyntax, pos, "invalid variable name %q in template", name)
			}
			i += end + 1
		case strings.HasPrefix(rest, "..."):
			name = leadingIdent(rest[3:])
			if name == "" {
				return nil, errorf(ECUndefinedVariable, pos, "an unnamed rest cannot be referenced in a template")
			}
			i += 3 + len(name)
		case len(rest) > 0 && isIdentifierStart(rest[0]):
			name = leadingIdent(rest)
			i += len(name)
		default:
			text.WriteByte(c)
			continue
		}
		if name == "_" {
			return nil, errorf(ECUndefinedVariable, pos, "$_ cannot be referenced in a template")
		}
		flush()
		t.Parts = append(t.Parts, TemplatePart{Var: name})
	}
	flush()
	return t, nil
}

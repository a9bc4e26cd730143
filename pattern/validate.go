package pattern

import (
	"maps"
	"slices"
)

// validator runs the compile-time checks over a lowered pattern.
type validator struct {
	pos      map[Node]Position
	warnings []Warning

	// bound holds variables bound outside negations, seen holds every
	// variable bound anywhere.
	bound map[string]bool
	seen  map[string]bool
	kinds map[string]*Variable
}

func (v *validator) validate(root Node) error {
	v.bound = make(map[string]bool)
	v.seen = make(map[string]bool)
	v.kinds = make(map[string]*Variable)

	var err error
	Walk(root, func(n Node, negated bool) bool {
		if err != nil {
			return false
		}
		err = v.collect(n, negated)
		return err == nil
	})
	if err != nil {
		return err
	}
	if err := v.restPlacement(root, false); err != nil {
		return err
	}
	if err := v.references(root, map[string]bool{}); err != nil {
		return err
	}
	v.lint(root)
	return nil
}

func (v *validator) collect(n Node, negated bool) error {
	switch n := n.(type) {
	case *Variable:
		if n.Name == "_" {
			return nil
		}
		v.seen[n.Name] = true
		if !negated {
			v.bound[n.Name] = true
		}
		if len(n.Kinds) == 0 {
			return nil
		}
		prev, ok := v.kinds[n.Name]
		if !ok {
			v.kinds[n.Name] = n
			return nil
		}
		if !sameKinds(prev.Kinds, n.Kinds) {
			return errorf(ECConflictingConstraint, v.pos[n], "$%s is constrained to both %s and %s", n.Name, prev.Constraint, n.Constraint)
		}
	case *Rest:
		if n.Name == "" {
			return nil
		}
		v.seen[n.Name] = true
		if !negated {
			v.bound[n.Name] = true
		}
	case *Text:
		for _, name := range n.Vars {
			v.seen[name] = true
			if !negated {
				v.bound[name] = true
			}
		}
	case *Rewrite:
		if negated {
			return errorf(ECRewritePlacement, v.pos[n], "a rewrite cannot appear under 'not'")
		}
	}
	return nil
}

func sameKinds(a, b []string) bool {
	a, b = slices.Clone(a), slices.Clone(b)
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(slices.Compact(a), slices.Compact(b))
}

// restPlacement allows a Rest only as a direct element of a Sequence, at most
// once per Sequence.
func (v *validator) restPlacement(n Node, inSequence bool) error {
	switch n := n.(type) {
	case *Rest:
		if !inSequence {
			return errorf(ECRestPlacement, v.pos[n], "%s is only allowed inside a sequence", n)
		}
	case *Sequence:
		rests := 0
		for _, e := range n.Elems {
			if _, ok := e.(*Rest); ok {
				rests++
				if rests > 1 {
					return errorf(ECRestPlacement, v.pos[e], "a sequence may contain at most one rest")
				}
			}
			if err := v.restPlacement(e, true); err != nil {
				return err
			}
		}
	case *Kind:
		return v.restPlacement(n.Children, false)
	case *Alternation:
		return v.restPlacementAll(n.Branches)
	case *Conjunction:
		return v.restPlacementAll(n.Parts)
	case *Negation:
		return v.restPlacement(n.Inner, false)
	case *Predicate:
		if n.Pattern != nil {
			return v.restPlacement(n.Pattern, false)
		}
	case *Rewrite:
		return v.restPlacement(n.Inner, inSequence)
	}
	return nil
}

func (v *validator) restPlacementAll(nodes []Node) error {
	for _, n := range nodes {
		if err := v.restPlacement(n, false); err != nil {
			return err
		}
	}
	return nil
}

// references checks template and predicate variable references. A template
// may only use variables bound by the rewrite's own pattern or by nodes that
// must match together with it: enclosing rewrites, conjunction parts and
// sequence siblings. Bindings from other alternation branches do not count.
func (v *validator) references(n Node, scope map[string]bool) error {
	switch n := n.(type) {
	case *Rewrite:
		scope = maps.Clone(scope)
		maps.Copy(scope, bindings(n.Inner))
		for _, name := range n.Template.Variables() {
			switch {
			case scope[name]:
			case v.bound[name]:
				return errorf(ECUndefinedVariable, v.pos[n], "template references $%s, which is not bound where this rewrite applies", name)
			default:
				return errorf(ECUndefinedVariable, v.pos[n], "template references $%s, which the pattern never binds", name)
			}
		}
		return v.references(n.Inner, scope)
	case *Conjunction:
		return v.together(n.Parts, scope)
	case *Sequence:
		return v.together(n.Elems, scope)
	case *Kind:
		return v.references(n.Children, scope)
	case *Alternation:
		for _, b := range n.Branches {
			if err := v.references(b, scope); err != nil {
				return err
			}
		}
	case *Negation:
		return v.references(n.Inner, scope)
	case *Predicate:
		if n.Var != "" && !v.seen[n.Var] {
			return errorf(ECUndefinedVariable, v.pos[n], "%s references $%s, which the pattern never binds", n.Name, n.Var)
		}
		if n.Pattern != nil {
			return v.references(n.Pattern, scope)
		}
	}
	return nil
}

// together checks nodes that match as a unit; each sees what the others bind.
func (v *validator) together(parts []Node, scope map[string]bool) error {
	for i, p := range parts {
		inner := maps.Clone(scope)
		for j, q := range parts {
			if j != i {
				maps.Copy(inner, bindings(q))
			}
		}
		if err := v.references(p, inner); err != nil {
			return err
		}
	}
	return nil
}

// bindings returns the variables n may bind outside negations.
func bindings(n Node) map[string]bool {
	names := make(map[string]bool)
	Walk(n, func(n Node, negated bool) bool {
		if negated {
			return false
		}
		switch n := n.(type) {
		case *Variable:
			if n.Name != "_" {
				names[n.Name] = true
			}
		case *Rest:
			if n.Name != "" {
				names[n.Name] = true
			}
		case *Text:
			for _, name := range n.Vars {
				names[name] = true
			}
		}
		return true
	})
	return names
}

// lint reports alternation branches that can never be the first to match.
func (v *validator) lint(root Node) {
	Walk(root, func(n Node, _ bool) bool {
		alt, ok := n.(*Alternation)
		if !ok {
			return true
		}
		for i, b := range alt.Branches {
		scan:
			for _, prev := range alt.Branches[:i] {
				switch {
				case prev.String() == b.String():
					v.warn(b, alt, "duplicate alternation branch %s", b)
				case alwaysMatches(prev):
					v.warn(b, alt, "branch %s follows %s, which always matches", b, prev)
				default:
					continue
				}
				break scan
			}
		}
		return true
	})
}

func (v *validator) warn(n, parent Node, format string, args ...any) {
	pos, ok := v.pos[n]
	if !ok {
		pos = v.pos[parent]
	}
	e := errorf(ECUnreachable, pos, format, args...)
	v.warnings = append(v.warnings, Warning{Code: e.Code, Pos: e.Pos, Msg: e.Msg})
}

func alwaysMatches(n Node) bool {
	switch n := n.(type) {
	case *Wildcard:
		return true
	case *Conjunction:
		for _, p := range n.Parts {
			if !alwaysMatches(p) {
				return false
			}
		}
		return true
	}
	return false
}

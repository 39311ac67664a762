package interp

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/davecgh/go-spew/spew"

	"github.com/vercel-labs/just-bash/ast"
	"github.com/vercel-labs/just-bash/value"
)

const maxAliasDepth = 16

// execSimple runs one SimpleCommand: substitute aliases (up to
// maxAliasDepth levels), apply its assignments, set up redirects, expand
// its words, then dispatch argv[0].
func (ip *Interp) execSimple(c *ast.SimpleCommand) (int, error) {
	words, err := ip.expandWithAliases(c.Words, 0)
	if err != nil {
		ip.writeStderr(err.Error() + "\n")
		return 1, nil
	}

	if len(words) == 0 {
		return ip.applyPersistentAssignments(c.Assignments)
	}

	restore, err := ip.applyTemporaryAssignments(c.Assignments)
	if err != nil {
		ip.writeStderr(err.Error() + "\n")
		return 1, nil
	}
	defer restore()

	io, flush, err := ip.setupRedirects(c.Redirects)
	if err != nil {
		ip.writeStderr(err.Error() + "\n")
		return 1, nil
	}
	defer flush()

	argv, err := ip.expander.ExpandWords(words)
	if err != nil {
		ip.writeStderr(err.Error() + "\n")
		return 1, nil
	}
	if len(argv) == 0 {
		return 0, nil
	}

	if len(argv) > 0 {
		ip.stack.Set("_", value.NewScalar(argv[len(argv)-1]))
	}

	ip.traceSimple(argv, c.Assignments)

	return ip.dispatch(argv, io)
}

// traceSimple renders `set -o xtrace`/`shopt -s verbose` diagnostics to
// stderr ahead of dispatch. xtrace prints the argv line prefixed with a
// literal "+ " (PS4 is not consulted); verbose, when the command has
// assignments, dumps the top frame's bindings for the assigned names via
// spew, which is more legible than a hand-rolled %+v for maps holding
// *value.Value.
func (ip *Interp) traceSimple(argv []string, assigns []*ast.Assignment) {
	flags := ip.stack.Top().Flags
	if !flags.Xtrace && !flags.Verbose {
		return
	}
	if flags.Xtrace {
		ip.writeStderr("+ " + strings.Join(argv, " ") + "\n")
	}
	if flags.Verbose && len(assigns) > 0 {
		names := make([]string, len(assigns))
		for i, a := range assigns {
			names[i] = a.Name
		}
		snapshot := make(map[string]*value.Value, len(names))
		for _, name := range names {
			if v, ok := ip.stack.Top().Vars[name]; ok {
				snapshot[name] = v
			}
		}
		ip.writeStderr(spew.Sdump(snapshot))
	}
}

// expandWithAliases substitutes an alias body for argv[0] when aliases
// are enabled, re-expanding the result up to
// maxAliasDepth times to catch an alias expanding to another alias.
func (ip *Interp) expandWithAliases(words []*ast.Word, depth int) ([]*ast.Word, error) {
	if depth > maxAliasDepth || len(words) == 0 || !ip.stack.Top().Flags.Aliases {
		return words, nil
	}
	lit, ok := literalText(words[0])
	if !ok {
		return words, nil
	}
	body, ok := ip.stack.Top().Aliases[lit]
	if !ok {
		return words, nil
	}
	aliasScript, err := ip.parseCached(body, "<alias>")
	if err != nil || len(aliasScript.Lists) == 0 {
		return words, nil
	}
	firstPipeline := aliasScript.Lists[0].Pipelines[0]
	sc, ok := firstPipeline.Commands[0].(*ast.SimpleCommand)
	if !ok {
		return words, nil
	}
	expanded := append(append([]*ast.Word(nil), sc.Words...), words[1:]...)
	return ip.expandWithAliases(expanded, depth+1)
}

// literalText returns a word's text if it is made entirely of Literal
// parts (so alias-name matching doesn't trigger on quoted or expanded
// text).
func literalText(w *ast.Word) (string, bool) {
	var b strings.Builder
	for _, p := range w.Parts {
		lit, ok := p.(*ast.Literal)
		if !ok {
			return "", false
		}
		b.WriteString(lit.Text)
	}
	return b.String(), true
}

func (ip *Interp) applyPersistentAssignments(assigns []*ast.Assignment) (int, error) {
	for _, a := range assigns {
		v, err := ip.buildAssignValue(a)
		if err != nil {
			ip.writeStderr(err.Error() + "\n")
			return 1, nil
		}
		if err := ip.commitAssignment(a, v); err != nil {
			ip.writeStderr(err.Error() + "\n")
			return 1, nil
		}
	}
	return 0, nil
}

// applyTemporaryAssignments implements `VAR=val cmd`: the binding is
// visible only for the duration of this one command dispatch.
func (ip *Interp) applyTemporaryAssignments(assigns []*ast.Assignment) (func(), error) {
	if len(assigns) == 0 {
		return func() {}, nil
	}
	top := ip.stack.Top()
	type saved struct {
		name    string
		existed bool
		val     *value.Value
	}
	restore := func(saves []saved) {
		for i := len(saves) - 1; i >= 0; i-- {
			if saves[i].existed {
				top.Vars[saves[i].name] = saves[i].val
			} else {
				delete(top.Vars, saves[i].name)
			}
		}
	}
	var saves []saved
	for _, a := range assigns {
		v, err := ip.buildAssignValue(a)
		if err != nil {
			restore(saves)
			return func() {}, err
		}
		prev, existed := top.Vars[a.Name]
		saves = append(saves, saved{a.Name, existed, prev})
		v.Attrs |= value.AttrExported
		top.Vars[a.Name] = v
	}
	return func() { restore(saves) }, nil
}

func (ip *Interp) buildAssignValue(a *ast.Assignment) (*value.Value, error) {
	switch {
	case a.IsArray:
		elems, err := ip.expander.ExpandWords(a.Elements)
		if err != nil {
			return nil, err
		}
		return value.NewIndexed(elems), nil
	case a.IsAssocArray:
		v := value.NewAssoc()
		for i := range a.AssocKeys {
			k, err := ip.expander.ExpandAssignmentValue(a.AssocKeys[i])
			if err != nil {
				return nil, err
			}
			val, err := ip.expander.ExpandAssignmentValue(a.AssocVals[i])
			if err != nil {
				return nil, err
			}
			v.SetAssoc(k, val)
		}
		return v, nil
	default:
		s, err := ip.expander.ExpandAssignmentValue(a.Value)
		if err != nil {
			return nil, err
		}
		return value.NewScalar(s), nil
	}
}

// commitAssignment applies a (possibly indexed, possibly +=) assignment
// to the current frame, honoring readonly and declare -i/-l/-u attributes
// on the existing binding.
func (ip *Interp) commitAssignment(a *ast.Assignment, v *value.Value) error {
	existing, hadPrev := ip.stack.Lookup(a.Name)
	if hadPrev && existing.Attrs.Has(value.AttrReadonly) {
		return fmt.Errorf("%s: readonly variable", a.Name)
	}

	if a.Index != nil {
		idxStr, err := ip.expander.ExpandAssignmentValue(a.Index)
		if err != nil {
			return err
		}
		target := existing
		if target == nil || target.Kind == value.Scalar {
			target = value.NewIndexed(nil)
		}
		if n, err := strconv.Atoi(idxStr); err == nil {
			s := v.AsScalar()
			if a.Append {
				if prev, ok := target.Indexed[n]; ok {
					s = prev + s
				}
			}
			target.SetIndex(n, s)
		} else {
			if target.Kind != value.Associative {
				target = value.NewAssoc()
			}
			s := v.AsScalar()
			if a.Append {
				s = target.Assoc[idxStr] + s
			}
			target.SetAssoc(idxStr, s)
		}
		ip.stack.Set(a.Name, target)
		return nil
	}

	if a.Append && hadPrev {
		switch {
		case v.Kind == value.Indexed && existing.Kind == value.Indexed:
			merged := value.NewIndexed(existing.Elements())
			for _, e := range v.Elements() {
				merged.SetIndex(merged.NextIndex(), e)
			}
			merged.Attrs = existing.Attrs
			v = merged
		default:
			nv := *existing
			nv.Scalar = existing.AsScalar() + v.AsScalar()
			v = &nv
		}
	} else if hadPrev {
		v.Attrs = existing.Attrs
	}
	if v.Attrs.Has(value.AttrInteger) {
		v.Scalar = value.CoerceInteger(v.Scalar)
	}
	if v.Attrs.Has(value.AttrLower) || v.Attrs.Has(value.AttrUpper) {
		v.Scalar = value.ApplyCase(v.Attrs, v.Scalar)
	}
	ip.stack.Set(a.Name, v)
	return nil
}

package expand

import (
	"fmt"
	"strings"

	"github.com/vercel-labs/just-bash/ast"
)

// expandBraces resolves every ast.BraceExpansion part in w into literal
// text, producing the cartesian product of words when the word contains
// more than one brace group.
func expandBraces(w *ast.Word) []*ast.Word {
	variants := [][]ast.WordPart{nil}
	for _, part := range w.Parts {
		be, ok := part.(*ast.BraceExpansion)
		if !ok {
			for i := range variants {
				variants[i] = append(variants[i], part)
			}
			continue
		}
		alternatives := braceAlternatives(be)
		if len(alternatives) <= 1 {
			// Not actually expandable (single item, no comma, no range):
			// Bash leaves a malformed or trivial brace group literal.
			lit := &ast.Literal{Text: be.Prefix + "{" + strings.Join(alternatives, ",") + "}" + be.Suffix}
			for i := range variants {
				variants[i] = append(variants[i], ast.WordPart(lit))
			}
			continue
		}
		var next [][]ast.WordPart
		for _, v := range variants {
			for _, alt := range alternatives {
				nv := append(append([]ast.WordPart(nil), v...), ast.WordPart(&ast.Literal{Text: alt}))
				next = append(next, nv)
			}
		}
		variants = next
	}
	out := make([]*ast.Word, 0, len(variants))
	for _, v := range variants {
		out = append(out, &ast.Word{Parts: v})
	}
	return out
}

// braceAlternatives renders a BraceExpansion's items or range into the
// fully prefixed/suffixed literal strings that replace it.
func braceAlternatives(be *ast.BraceExpansion) []string {
	var bodies []string
	if be.Range != nil {
		bodies = rangeAlternatives(be.Range)
	} else {
		for _, item := range be.Items {
			bodies = append(bodies, item.String())
		}
	}
	out := make([]string, 0, len(bodies))
	for _, b := range bodies {
		out = append(out, be.Prefix+b+be.Suffix)
	}
	return out
}

func rangeAlternatives(r *ast.BraceRange) []string {
	step := r.Step
	if step <= 0 {
		step = 1
	}
	var out []string
	if r.Char {
		from, to := rune(r.From), rune(r.To)
		if from <= to {
			for c := from; c <= to; c += rune(step) {
				out = append(out, string(c))
			}
		} else {
			for c := from; c >= to; c -= rune(step) {
				out = append(out, string(c))
			}
		}
		return out
	}
	width := r.Width
	format := func(n int) string {
		if r.Zero {
			return fmt.Sprintf("%0*d", width, n)
		}
		return fmt.Sprintf("%d", n)
	}
	if r.From <= r.To {
		for n := r.From; n <= r.To; n += step {
			out = append(out, format(n))
		}
	} else {
		for n := r.From; n >= r.To; n -= step {
			out = append(out, format(n))
		}
	}
	return out
}

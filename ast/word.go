package ast

import "strings"

// Word is a sequence of parts produced by the lexer/parser; the expander
// walks Parts in order and concatenates the resulting fragments.
type Word struct {
	span
	Parts []WordPart
}

func (w *Word) String() string {
	var b strings.Builder
	for _, p := range w.Parts {
		b.WriteString(p.String())
	}
	return b.String()
}

// WordPart is the sum type of word constituents.
type WordPart interface {
	Node
	isWordPart()
}

// Literal is unquoted, unescaped literal text (may still contain glob
// metacharacters to be resolved during pathname expansion).
type Literal struct {
	span
	Text string
}

func (p *Literal) isWordPart()    {}
func (p *Literal) String() string { return p.Text }

// SingleQuoted is literal text with quoting metadata: never expanded,
// never word-split, never globbed.
type SingleQuoted struct {
	span
	Text string
}

func (p *SingleQuoted) isWordPart()    {}
func (p *SingleQuoted) String() string { return "'" + p.Text + "'" }

// DoubleQuoted wraps nested parts that are expanded but not word-split or
// globbed as a unit (except "$@" which the expander special-cases).
type DoubleQuoted struct {
	span
	Parts []WordPart
}

func (p *DoubleQuoted) isWordPart() {}
func (p *DoubleQuoted) String() string {
	var b strings.Builder
	b.WriteByte('"')
	for _, q := range p.Parts {
		b.WriteString(q.String())
	}
	b.WriteByte('"')
	return b.String()
}

// AnsiCQuoted is $'...' content, already escape-processed into Text.
type AnsiCQuoted struct {
	span
	Text string
}

func (p *AnsiCQuoted) isWordPart()    {}
func (p *AnsiCQuoted) String() string { return "$'" + p.Text + "'" }

// ParameterExpansion covers every `$name`, `${...}` form.
type ParameterExpansion struct {
	span
	Parameter string     // variable name, possibly with [subscript] already split into Index
	Index     *Word      // non-nil for name[subscript]; subscript "@"/"*" handled via AllElements
	AllElements bool      // ${name[@]} / ${name[*]}
	AllStar     bool      // true selects [*] semantics over [@]
	Operation ParamOp
	Arg       *Word   // operand word for the operation (default value, pattern, replacement, offset/length expr text)
	Arg2      *Word   // second operand (pattern replacement's replacement text)
	Braced    bool    // ${...} vs bare $name
}

func (p *ParameterExpansion) isWordPart()    {}
func (p *ParameterExpansion) String() string { return "${" + p.Parameter + "}" }

// ParamOp enumerates the ${...} modifier operations.
type ParamOp int

const (
	ParamPlain ParamOp = iota
	ParamDefaultValue      // ${p:-word}
	ParamAssignDefault     // ${p:=word}
	ParamUseAlternative    // ${p:+word}
	ParamErrorIfUnset      // ${p:?word}
	ParamRemovePrefix      // ${p#pattern}
	ParamRemovePrefixLong  // ${p##pattern}
	ParamRemoveSuffix      // ${p%pattern}
	ParamRemoveSuffixLong  // ${p%%pattern}
	ParamReplaceFirst      // ${p/pat/rep}
	ParamReplaceAll        // ${p//pat/rep}
	ParamReplacePrefix     // ${p/#pat/rep}
	ParamReplaceSuffix     // ${p/%pat/rep}
	ParamSubstring         // ${p:offset:length}
	ParamLength            // ${#p}
	ParamIndirection       // ${!p}
	ParamVarNamePrefix     // ${!prefix*} / ${!prefix@}
	ParamArrayKeys         // ${!name[@]}
	ParamCaseUpperFirst    // ${p^}
	ParamCaseUpperAll      // ${p^^}
	ParamCaseLowerFirst    // ${p,}
	ParamCaseLowerAll      // ${p,,}
)

// CommandSubstitution runs Body in a subshell frame and substitutes its
// captured, trailing-newline-trimmed stdout.
type CommandSubstitution struct {
	span
	Body      *Script
	Backtick  bool // $(...) vs `...`
}

func (p *CommandSubstitution) isWordPart()    {}
func (p *CommandSubstitution) String() string { return "$(...)" }

// ArithmeticExpansion is `$(( expr ))` used as a word part.
type ArithmeticExpansion struct {
	span
	Expr *ArithExpr
}

func (p *ArithmeticExpansion) isWordPart()    {}
func (p *ArithmeticExpansion) String() string { return "$((...))" }

// BraceExpansion is `a{b,c}d` or `{1..5}` / `{1..9..2}`, expanded before
// every later phase and never re-entered (no cross-product explosion
// before later phases).
type BraceExpansion struct {
	span
	Prefix   string
	Items    []*Word  // comma-list alternatives ({a,b,c}); empty when Range != nil
	Range    *BraceRange
	Suffix   string
}

type BraceRange struct {
	From, To int
	Step     int // always positive; sign of iteration is derived from From/To
	Zero     bool // zero-padded per widest endpoint, e.g. {01..10}
	Width    int
	Char     bool // character range {a..z}
}

func (p *BraceExpansion) isWordPart()    {}
func (p *BraceExpansion) String() string { return p.Prefix + "{...}" + p.Suffix }

// TildeExpansion is a leading `~` or `~name`.
type TildeExpansion struct {
	span
	User string // empty for bare ~
}

func (p *TildeExpansion) isWordPart()    {}
func (p *TildeExpansion) String() string { return "~" + p.User }

// Glob is a literal pathname-expansion pattern fragment (kept distinct
// from Literal so the expander knows it survived quote-stripping eligible
// for globbing).
type Glob struct {
	span
	Pattern string
}

func (p *Glob) isWordPart()    {}
func (p *Glob) String() string { return p.Pattern }

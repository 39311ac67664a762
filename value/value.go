// Package value implements the shell value model: scalars, insertion-
// ordered indexed arrays, insertion-ordered associative arrays, and the
// per-variable attribute bits (exported, readonly, integer, case
// transforms).
package value

import (
	"fmt"
	"sort"
	"strconv"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Kind discriminates a Value's representation.
type Kind int

const (
	Scalar Kind = iota
	Indexed
	Associative
)

// Attr is a bitset of variable attributes (declare -x/-r/-i/-l/-u).
type Attr int

const (
	AttrNone     Attr = 0
	AttrExported Attr = 1 << iota
	AttrReadonly
	AttrInteger
	AttrLower
	AttrUpper
	AttrLocal // set on bindings pushed by `local`, for saved-value restore
)

func (a Attr) Has(f Attr) bool { return a&f != 0 }

// Value is a shell variable's value plus its attributes. The zero Value is
// an unset scalar with no attributes.
type Value struct {
	Kind  Kind
	Attrs Attr

	Scalar string

	// Indexed holds values by index; IndexOrder lists indices in the
	// order they were first assigned so iteration (`${a[@]}`) is
	// insertion-ordered rather than sorted, matching Bash's de-facto
	// ordering for sparse arrays built incrementally.
	Indexed    map[int]string
	IndexOrder []int

	Assoc      map[string]string
	AssocOrder []string
}

// NewScalar builds an unset-free scalar value.
func NewScalar(s string) *Value {
	return &Value{Kind: Scalar, Scalar: s}
}

// NewIndexed builds an indexed array from a slice, indices 0..n-1.
func NewIndexed(elems []string) *Value {
	v := &Value{Kind: Indexed, Indexed: make(map[int]string, len(elems)), IndexOrder: make([]int, 0, len(elems))}
	for i, e := range elems {
		v.SetIndex(i, e)
	}
	return v
}

// NewAssoc builds an empty associative array.
func NewAssoc() *Value {
	return &Value{Kind: Associative, Assoc: make(map[string]string)}
}

// SetIndex assigns indexed[i] = s, tracking insertion order for new keys.
func (v *Value) SetIndex(i int, s string) {
	if v.Indexed == nil {
		v.Indexed = make(map[int]string)
	}
	if _, exists := v.Indexed[i]; !exists {
		v.IndexOrder = append(v.IndexOrder, i)
	}
	v.Indexed[i] = s
}

// SetAssoc assigns assoc[key] = s, tracking insertion order for new keys.
func (v *Value) SetAssoc(key, s string) {
	if v.Assoc == nil {
		v.Assoc = make(map[string]string)
	}
	if _, exists := v.Assoc[key]; !exists {
		v.AssocOrder = append(v.AssocOrder, key)
	}
	v.Assoc[key] = s
}

// NextIndex returns the append index for `arr+=(x)` / `arr[i]=`-less pushes.
func (v *Value) NextIndex() int {
	max := -1
	for _, i := range v.IndexOrder {
		if i > max {
			max = i
		}
	}
	return max + 1
}

// AsScalar renders the value as a single string: the scalar itself, or
// element 0 of an array (Bash's `$arr` without a subscript).
func (v *Value) AsScalar() string {
	switch v.Kind {
	case Scalar:
		return v.Scalar
	case Indexed:
		if s, ok := v.Indexed[0]; ok {
			return s
		}
		return ""
	case Associative:
		return ""
	}
	return ""
}

// Elements returns the array's values in insertion order (for Indexed and
// Associative) or a single-element slice for Scalar.
func (v *Value) Elements() []string {
	switch v.Kind {
	case Scalar:
		return []string{v.Scalar}
	case Indexed:
		out := make([]string, 0, len(v.IndexOrder))
		for _, i := range v.IndexOrder {
			out = append(out, v.Indexed[i])
		}
		return out
	case Associative:
		out := make([]string, 0, len(v.AssocOrder))
		for _, k := range v.AssocOrder {
			out = append(out, v.Assoc[k])
		}
		return out
	}
	return nil
}

// Keys returns ${!name[@]}: sorted numeric indices for Indexed, insertion
// order for Associative.
func (v *Value) Keys() []string {
	switch v.Kind {
	case Indexed:
		idx := append([]int(nil), v.IndexOrder...)
		sort.Ints(idx)
		out := make([]string, len(idx))
		for i, k := range idx {
			out[i] = strconv.Itoa(k)
		}
		return out
	case Associative:
		return append([]string(nil), v.AssocOrder...)
	default:
		return nil
	}
}

// Len implements ${#name} / ${#name[@]}.
func (v *Value) Len() int {
	switch v.Kind {
	case Scalar:
		return len([]rune(v.Scalar))
	case Indexed:
		return len(v.IndexOrder)
	case Associative:
		return len(v.AssocOrder)
	}
	return 0
}

// ApplyCase renders s through the value's declare -l/-u attribute, if any,
// using Unicode-aware case folding.
func ApplyCase(attrs Attr, s string) string {
	if attrs.Has(AttrLower) {
		return cases.Lower(language.Und).String(s)
	}
	if attrs.Has(AttrUpper) {
		return cases.Upper(language.Und).String(s)
	}
	return s
}

// CoerceInteger renders s as a base-10 integer string if AttrInteger is
// set, per `declare -i`. Non-numeric input collapses to 0, matching
// Bash's treatment of unparsable integer-attribute assignments.
func CoerceInteger(s string) string {
	n, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		return "0"
	}
	return strconv.FormatInt(n, 10)
}

func (v *Value) String() string {
	switch v.Kind {
	case Scalar:
		return v.Scalar
	case Indexed:
		return fmt.Sprintf("%v", v.Elements())
	case Associative:
		return fmt.Sprintf("%v", v.Assoc)
	}
	return ""
}

package expand

import (
	"strconv"

	"github.com/vercel-labs/just-bash/ast"
	"github.com/vercel-labs/just-bash/value"
)

// frameAccessor adapts an Expander to arith.Accessor, resolving variables
// through the dynamic-scope frame stack and indexed array elements through
// value.Value's Indexed map.
type frameAccessor struct {
	e *Expander
}

func (a *frameAccessor) Get(name string) (string, bool) {
	if name == "RANDOM" {
		return "0", true
	}
	v, ok := a.e.Stack.Lookup(name)
	if !ok {
		return "", false
	}
	return v.AsScalar(), true
}

func (a *frameAccessor) GetIndex(name string, idx int64) (string, bool) {
	v, ok := a.e.Stack.Lookup(name)
	if !ok {
		return "", false
	}
	if v.Kind == value.Associative {
		s, ok := v.Assoc[strconv.FormatInt(idx, 10)]
		return s, ok
	}
	s, ok := v.Indexed[int(idx)]
	return s, ok
}

func (a *frameAccessor) Set(name, val string) {
	v, ok := a.e.Stack.Lookup(name)
	if !ok {
		a.e.Stack.Set(name, value.NewScalar(val))
		return
	}
	nv := *v
	nv.Scalar = val
	a.e.Stack.Set(name, &nv)
}

func (a *frameAccessor) SetIndex(name string, idx int64, val string) {
	v, ok := a.e.Stack.Lookup(name)
	if !ok || v.Kind == value.Scalar {
		v = value.NewIndexed(nil)
		a.e.Stack.Set(name, v)
	}
	v.SetIndex(int(idx), val)
}

func (a *frameAccessor) RunCommandSubst(sub *ast.CommandSubstitution) (string, error) {
	return a.e.runCommandSubst(sub)
}

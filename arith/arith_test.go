package arith_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vercel-labs/just-bash/ast"
	"github.com/vercel-labs/just-bash/arith"
)

type fakeAccessor struct {
	vars map[string]string
}

func newFake() *fakeAccessor { return &fakeAccessor{vars: map[string]string{}} }

func (f *fakeAccessor) Get(name string) (string, bool) {
	v, ok := f.vars[name]
	return v, ok
}
func (f *fakeAccessor) GetIndex(name string, idx int64) (string, bool) { return "", false }
func (f *fakeAccessor) Set(name, value string)                        { f.vars[name] = value }
func (f *fakeAccessor) SetIndex(name string, idx int64, value string) {}
func (f *fakeAccessor) RunCommandSubst(sub *ast.CommandSubstitution) (string, error) {
	return "", nil
}

func evalStr(t *testing.T, expr string, acc arith.Accessor) int64 {
	t.Helper()
	e, err := arith.Parse(expr)
	require.NoError(t, err)
	v, err := arith.Eval(e, acc)
	require.NoError(t, err)
	return v
}

func TestEvalArithmetic(t *testing.T) {
	acc := newFake()
	assert.EqualValues(t, 7, evalStr(t, "3 + 4", acc))
	assert.EqualValues(t, 1, evalStr(t, "10 % 4 / 2", acc))
	assert.EqualValues(t, 8, evalStr(t, "2 ** 3", acc))
	assert.EqualValues(t, 1, evalStr(t, "(1 == 1) && (2 > 1)", acc))
	assert.EqualValues(t, 6, evalStr(t, "-2 * -3", acc))
}

func TestEvalAssignmentAndRecursiveVar(t *testing.T) {
	acc := newFake()
	evalStr(t, "x = 5", acc)
	assert.Equal(t, "5", acc.vars["x"])
	assert.EqualValues(t, 10, evalStr(t, "x * 2", acc))

	acc.vars["y"] = "x + 1"
	assert.EqualValues(t, 6, evalStr(t, "y", acc))
}

func TestEvalIncrementDecrement(t *testing.T) {
	acc := newFake()
	acc.vars["i"] = "0"
	assert.EqualValues(t, 0, evalStr(t, "i++", acc))
	assert.Equal(t, "1", acc.vars["i"])
	assert.EqualValues(t, 2, evalStr(t, "++i", acc))
}

func TestEvalDivisionByZero(t *testing.T) {
	acc := newFake()
	e, err := arith.Parse("1 / 0")
	require.NoError(t, err)
	_, err = arith.Eval(e, acc)
	assert.Error(t, err)
}

func TestEvalTernary(t *testing.T) {
	acc := newFake()
	assert.EqualValues(t, 9, evalStr(t, "1 ? 9 : 2", acc))
	assert.EqualValues(t, 2, evalStr(t, "0 ? 9 : 2", acc))
}

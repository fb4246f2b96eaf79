package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrecedenceOrdering(t *testing.T) {
	assert.Less(t, Precedence(LPAREN), Precedence(OR))
	assert.Less(t, Precedence(OR), Precedence(AND))
	assert.Less(t, Precedence(AND), Precedence(EQ))
	assert.Less(t, Precedence(EQ), Precedence(ADD))
	assert.Less(t, Precedence(ADD), Precedence(MULT))
	assert.Less(t, Precedence(MULT), Precedence(MAX))
}

func TestPrecedenceLeftAssociativeTiers(t *testing.T) {
	// operators sharing a tier compare equal, confirming left-associativity
	// is a property of evaluation order, not of distinct precedence.
	assert.Equal(t, Precedence(OR), Precedence(OR_VEC))
	assert.Equal(t, Precedence(AND), Precedence(AND_VEC))
	assert.Equal(t, Precedence(LE), Precedence(NE))
	assert.Equal(t, Precedence(ADD), Precedence(SUB))
	assert.Equal(t, Precedence(MULT), Precedence(DIV))
}

func TestKindPredicates(t *testing.T) {
	assert.True(t, LE.IsComparison())
	assert.True(t, NE.IsComparison())
	assert.False(t, ADD.IsComparison())

	assert.True(t, OR.IsLogical())
	assert.True(t, AND_VEC.IsLogical())
	assert.False(t, EQ.IsLogical())

	assert.True(t, ADD.IsArithmetic())
	assert.False(t, OR.IsArithmetic())

	assert.True(t, MAX.IsFunction())
	assert.True(t, MIN.IsFunction())
	assert.True(t, AVG.IsFunction())
	assert.False(t, FUNC.IsFunction())
}

func TestFuncKindFor(t *testing.T) {
	assert.Equal(t, FuncMax, FuncKindFor(MAX))
	assert.Equal(t, FuncMin, FuncKindFor(MIN))
	assert.Equal(t, FuncAvg, FuncKindFor(AVG))
	assert.Equal(t, NoFunc, FuncKindFor(ADD))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "<=", LE.String())
	assert.Equal(t, "&&", AND_VEC.String())
	assert.Equal(t, "%MIN", MIN.String())
}

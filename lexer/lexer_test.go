package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/skx/vcffilter/token"
)

func lexAll(t *testing.T, input string) []token.Token {
	t.Helper()
	l := New(input)
	var out []token.Token
	for {
		tok := l.NextToken()
		out = append(out, tok)
		if tok.Kind == token.EOF || tok.Kind == token.ERROR {
			break
		}
	}
	return out
}

func TestNumericLiterals(t *testing.T) {
	toks := lexAll(t, "3 43.5 -17 .5 1e-4 1E+10")
	want := []string{"3", "43.5", "-", "17", ".5", "1e-4", "1E+10"}
	var got []string
	for _, tok := range toks {
		if tok.Kind == token.EOF {
			break
		}
		got = append(got, tok.Literal)
	}
	assert.Equal(t, want, got)
}

func TestOperators(t *testing.T) {
	toks := lexAll(t, "<= >= == != && || < > = ( ) & | + - * /")
	want := []token.Kind{
		token.LE, token.BE, token.EQ, token.NE, token.AND_VEC, token.OR_VEC,
		token.LT, token.BT, token.EQ, token.LPAREN, token.RPAREN,
		token.AND, token.OR, token.ADD, token.SUB, token.MULT, token.DIV,
		token.EOF,
	}
	var got []token.Kind
	for _, tok := range toks {
		got = append(got, tok.Kind)
	}
	assert.Equal(t, want, got)
}

func TestFunctionOpenings(t *testing.T) {
	toks := lexAll(t, "%MAX(DV)")
	assert.Equal(t, token.MAX, toks[0].Kind)
	assert.Equal(t, token.LPAREN, toks[1].Kind)
	assert.Equal(t, token.VAL, toks[2].Kind)
	assert.Equal(t, "DV", toks[2].Literal)
	assert.Equal(t, token.RPAREN, toks[3].Kind)
}

func TestNamespacePrefixKeptInLiteral(t *testing.T) {
	toks := lexAll(t, "INFO/DP FORMAT/GQ FMT/DV")
	assert.Equal(t, "INFO/DP", toks[0].Literal)
	assert.Equal(t, "FORMAT/GQ", toks[1].Literal)
	assert.Equal(t, "FMT/DV", toks[2].Literal)
}

func TestSubscriptStaysInLiteral(t *testing.T) {
	toks := lexAll(t, "DP4[0]")
	assert.Equal(t, token.VAL, toks[0].Kind)
	assert.Equal(t, "DP4[0]", toks[0].Literal)
}

func TestQuotedStrings(t *testing.T) {
	toks := lexAll(t, `"PASS" 'snp'`)
	assert.Equal(t, token.VAL, toks[0].Kind)
	assert.Equal(t, `"PASS"`, toks[0].Literal)
	assert.Equal(t, token.VAL, toks[1].Kind)
	assert.Equal(t, `'snp'`, toks[1].Literal)
}

func TestUnterminatedStringIsError(t *testing.T) {
	toks := lexAll(t, `"PASS`)
	assert.Equal(t, token.ERROR, toks[0].Kind)
}

func TestSpecialNames(t *testing.T) {
	toks := lexAll(t, "%QUAL %TYPE %FILTER")
	assert.Equal(t, []string{"%QUAL", "%TYPE", "%FILTER"}, []string{toks[0].Literal, toks[1].Literal, toks[2].Literal})
	for _, tok := range toks[:3] {
		assert.Equal(t, token.VAL, tok.Kind)
	}
}

func TestWhitespaceInsensitivity(t *testing.T) {
	a := lexAll(t, "QUAL>10")
	b := lexAll(t, "QUAL  >   10")
	assert.Equal(t, a, b)
}

func TestMinusBeforeIdentifierIsOperator(t *testing.T) {
	// '-' is only ever folded into a numeric literal by the compiler's
	// unary-minus rewrite, never by the lexer itself: "-DP" lexes as
	// two tokens, SUB then the identifier DP.
	toks := lexAll(t, "-DP")
	assert.Equal(t, token.SUB, toks[0].Kind)
	assert.Equal(t, token.VAL, toks[1].Kind)
	assert.Equal(t, "DP", toks[1].Literal)
}

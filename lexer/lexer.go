// Package lexer tokenizes a filter-expression string into the token
// stream the compiler's shunting-yard stage consumes.
package lexer

import (
	"fmt"
	"strings"

	"github.com/skx/vcffilter/token"
)

// Lexer holds our object-state: a byte cursor over the expression
// string being tokenized.
type Lexer struct {
	input string
	pos   int
}

// New creates a Lexer over the given expression text.
func New(input string) *Lexer {
	return &Lexer{input: input}
}

// ErrUnterminatedString is returned (wrapped with the offending
// expression) when a quoted string literal is never closed.
type ErrUnterminatedString struct {
	Expression string
}

func (e *ErrUnterminatedString) Error() string {
	return fmt.Sprintf("missing closing quote in: %s", e.Expression)
}

func (l *Lexer) rest() string {
	return l.input[l.pos:]
}

func (l *Lexer) eof() bool {
	return l.pos >= len(l.input)
}

func (l *Lexer) peekAt(off int) byte {
	if l.pos+off >= len(l.input) {
		return 0
	}
	return l.input[l.pos+off]
}

func (l *Lexer) skipWhitespace() {
	for !l.eof() && isSpace(l.input[l.pos]) {
		l.pos++
	}
}

// NextToken returns the next token in the stream, advancing the cursor
// past whatever it consumed. At end of input it returns token.EOF; on
// an unterminated string, or a byte that starts no token (a lone '!'),
// it returns token.ERROR with the remaining input text as the literal
// (see ErrUnterminatedString for the typed form the compiler raises
// for the unterminated-string case).
func (l *Lexer) NextToken() token.Token {
	l.skipWhitespace()

	if l.eof() {
		return token.Token{Kind: token.EOF}
	}

	ch := l.input[l.pos]

	// Numeric literal: d.ddde[+-]dd. Only consumed if what follows is
	// end-of-string, whitespace, or non-alphanumeric punctuation - this
	// stops us from eating "3rd" or similar as a number.
	if isDigit(ch) || ch == '.' {
		if lit, ok := l.tryReadNumber(); ok {
			return token.Token{Kind: token.VAL, Literal: lit}
		}
	}

	// Function openings: consumed up to (but not including) the '('.
	if strings.HasPrefix(l.rest(), "%MAX(") {
		l.pos += 4
		return token.Token{Kind: token.MAX, Literal: "%MAX"}
	}
	if strings.HasPrefix(l.rest(), "%MIN(") {
		l.pos += 4
		return token.Token{Kind: token.MIN, Literal: "%MIN"}
	}
	if strings.HasPrefix(l.rest(), "%AVG(") {
		l.pos += 4
		return token.Token{Kind: token.AVG, Literal: "%AVG"}
	}

	// Quoted string literal.
	if ch == '"' || ch == '\'' {
		return l.readQuoted(ch)
	}

	// Two-character operators, then single-character operators.
	if tok, ok := l.tryReadOperator(); ok {
		return tok
	}

	// Otherwise: a run of non-operator, non-whitespace bytes - an
	// identifier (with an optional INFO/FORMAT/FMT namespace prefix,
	// optional [idx] subscript, or a special name like %QUAL/%TYPE/%FILTER).
	return l.readIdentifierRun()
}

// tryReadNumber attempts to parse a floating-point literal starting at
// the cursor. It returns ok=false (without consuming anything) if the
// text does not look like a complete, properly terminated number.
func (l *Lexer) tryReadNumber() (string, bool) {
	start := l.pos
	i := l.pos
	n := len(l.input)

	sawDigits := false
	for i < n && isDigit(l.input[i]) {
		i++
		sawDigits = true
	}
	if i < n && l.input[i] == '.' {
		i++
		for i < n && isDigit(l.input[i]) {
			i++
			sawDigits = true
		}
	}
	if !sawDigits {
		return "", false
	}
	if i < n && (l.input[i] == 'e' || l.input[i] == 'E') {
		j := i + 1
		if j < n && (l.input[j] == '+' || l.input[j] == '-') {
			j++
		}
		if j < n && isDigit(l.input[j]) {
			for j < n && isDigit(l.input[j]) {
				j++
			}
			i = j
		}
	}

	// terminator must be EOF, whitespace, or non-alphanumeric punctuation.
	if i < n && isAlnum(l.input[i]) {
		return "", false
	}

	l.pos = i
	return l.input[start:i], true
}

func (l *Lexer) readQuoted(quote byte) token.Token {
	start := l.pos
	i := l.pos + 1
	for i < len(l.input) && l.input[i] != quote {
		i++
	}
	if i >= len(l.input) {
		return token.Token{Kind: token.ERROR, Literal: l.input[start:]}
	}
	i++ // include closing quote
	lit := l.input[start:i]
	l.pos = i
	return token.Token{Kind: token.VAL, Literal: lit}
}

func (l *Lexer) tryReadOperator() (token.Token, bool) {
	two := l.peekAt(0)
	next := l.peekAt(1)

	switch {
	case two == '<' && next == '=':
		l.pos += 2
		return token.Token{Kind: token.LE, Literal: "<="}, true
	case two == '>' && next == '=':
		l.pos += 2
		return token.Token{Kind: token.BE, Literal: ">="}, true
	case two == '=' && next == '=':
		l.pos += 2
		return token.Token{Kind: token.EQ, Literal: "=="}, true
	case two == '!' && next == '=':
		l.pos += 2
		return token.Token{Kind: token.NE, Literal: "!="}, true
	case two == '&' && next == '&':
		l.pos += 2
		return token.Token{Kind: token.AND_VEC, Literal: "&&"}, true
	case two == '|' && next == '|':
		l.pos += 2
		return token.Token{Kind: token.OR_VEC, Literal: "||"}, true
	}

	switch two {
	case '<':
		l.pos++
		return token.Token{Kind: token.LT, Literal: "<"}, true
	case '>':
		l.pos++
		return token.Token{Kind: token.BT, Literal: ">"}, true
	case '=':
		// "=" is documented as equivalent to "==", but as a single
		// byte rather than the two-character form above. "A=B=C" lexes
		// cleanly either way; it is compiler.Compile's type-check pass
		// that rejects chaining the result of one comparison into
		// another.
		l.pos++
		return token.Token{Kind: token.EQ, Literal: "="}, true
	case '(':
		l.pos++
		return token.Token{Kind: token.LPAREN, Literal: "("}, true
	case ')':
		l.pos++
		return token.Token{Kind: token.RPAREN, Literal: ")"}, true
	case '&':
		l.pos++
		return token.Token{Kind: token.AND, Literal: "&"}, true
	case '|':
		l.pos++
		return token.Token{Kind: token.OR, Literal: "|"}, true
	case '+':
		l.pos++
		return token.Token{Kind: token.ADD, Literal: "+"}, true
	case '-':
		l.pos++
		return token.Token{Kind: token.SUB, Literal: "-"}, true
	case '*':
		l.pos++
		return token.Token{Kind: token.MULT, Literal: "*"}, true
	case '/':
		l.pos++
		return token.Token{Kind: token.DIV, Literal: "/"}, true
	}
	return token.Token{}, false
}

// readIdentifierRun consumes a run of bytes that are not operators,
// parens, quotes, or whitespace. An optional INFO/FORMAT/FMT namespace
// prefix is skipped over (so its embedded '/' doesn't end the scan
// early) but is still included in the returned literal; the compiler's
// binding step strips it again when resolving against the schema.
func (l *Lexer) readIdentifierRun() token.Token {
	start := l.pos
	i := l.pos
	n := len(l.input)

	switch {
	case strings.HasPrefix(l.input[i:], "INFO/"):
		i += len("INFO/")
	case strings.HasPrefix(l.input[i:], "FORMAT/"):
		i += len("FORMAT/")
	case strings.HasPrefix(l.input[i:], "FMT/"):
		i += len("FMT/")
	}

	for i < n && !isBreak(l.input[i]) {
		i++
	}
	if i == start {
		// Nothing recognizable consumed: emit ERROR for the remaining
		// text so the compiler can report a clean diagnostic.
		lit := l.input[start:]
		l.pos = n
		return token.Token{Kind: token.ERROR, Literal: lit}
	}
	l.pos = i
	return token.Token{Kind: token.VAL, Literal: l.input[start:i]}
}

func isBreak(ch byte) bool {
	switch ch {
	case '"', '\'', '<', '>', '=', '!', '&', '|', '(', ')', '+', '-', '*', '/':
		return true
	}
	return isSpace(ch)
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isAlpha(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}

func isAlnum(ch byte) bool {
	return isDigit(ch) || isAlpha(ch)
}

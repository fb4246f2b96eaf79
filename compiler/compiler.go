// Package compiler turns a filter expression string into a compiled
// program.Program bound against a concrete vcf.Header, using a
// shunting-yard algorithm to reorder infix operators into the postfix
// form the evaluator walks (spec.md §4.2).
package compiler

import (
	"fmt"
	"io"
	"strings"

	"github.com/skx/vcffilter/lexer"
	"github.com/skx/vcffilter/program"
	"github.com/skx/vcffilter/stack"
	"github.com/skx/vcffilter/token"
	"github.com/skx/vcffilter/value"
	"github.com/skx/vcffilter/vcf"
)

// CompileError reports a problem found while compiling an expression;
// Expression is preserved so a caller can echo the offending filter
// back to the user alongside Reason.
type CompileError struct {
	Expression string
	Reason     string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("cannot compile %q: %s", e.Expression, e.Reason)
}

// item is one entry of the shunting-yard's operator stack or output
// queue, before VAL literals are bound against the header.
type item struct {
	kind    token.Kind
	literal string
	fn      token.FuncKind
}

// exprKind is the simulated type of one entry on the compile-time
// type-check stack: the raw numeric/string payload a VAL token binds
// to, or the boolean result a comparison/logical operator leaves
// behind once it has consumed its operands.
type exprKind int

const (
	kindNumeric exprKind = iota
	kindString
	kindBool
)

// exprInfo is one compile-time type-check stack entry. special marks
// an unfolded %TYPE/%FILTER operand: the only operators that make
// sense against it are == and != (spec.md §4.2), so any other use is
// rejected here rather than silently falling back to a lexicographic
// string comparison.
type exprInfo struct {
	kind    exprKind
	special bool
}

// Compile parses expr, binds every field reference against header,
// and returns the resulting postfix program together with the set of
// record sections a real unpacker would need to materialize to
// satisfy it.
func Compile(header vcf.Header, expr string) (*program.Program, vcf.UnpackHint, error) {
	toks, err := scan(expr)
	if err != nil {
		return nil, 0, &CompileError{Expression: expr, Reason: err.Error()}
	}

	toks = rewriteUnaryMinus(toks)

	postfix, err := shuntingYard(expr, toks)
	if err != nil {
		return nil, 0, err
	}

	postfix = foldAdjacentComparison(postfix, matchFilterComparison)
	postfix = foldAdjacentComparison(postfix, matchTypeComparison)

	prog := &program.Program{NumSamples: header.NumSamples()}
	var hint vcf.UnpackHint
	var typeStack []exprInfo

	pop2 := func() (exprInfo, exprInfo, bool) {
		if len(typeStack) < 2 {
			return exprInfo{}, exprInfo{}, false
		}
		b := typeStack[len(typeStack)-1]
		a := typeStack[len(typeStack)-2]
		typeStack = typeStack[:len(typeStack)-2]
		return a, b, true
	}

	for _, it := range postfix {
		switch {
		case it.kind == token.VAL:
			bv, err := bindValue(header, it.literal)
			if err != nil {
				return nil, 0, &CompileError{Expression: expr, Reason: err.Error()}
			}
			hint |= bv.hint
			prog.Tokens = append(prog.Tokens, program.ProgramToken{Kind: token.VAL, Setter: bv.setter, Literal: it.literal})
			typeStack = append(typeStack, exprInfo{kind: bv.kind, special: bv.special})

		case it.kind == token.FUNC:
			if len(typeStack) < 1 {
				return nil, 0, &CompileError{Expression: expr, Reason: "function applied to nothing"}
			}
			arg := typeStack[len(typeStack)-1]
			typeStack = typeStack[:len(typeStack)-1]
			if arg.kind != kindNumeric {
				return nil, 0, &CompileError{Expression: expr, Reason: fmt.Sprintf("%s cannot be applied to a string field", it.fn)}
			}
			prog.Tokens = append(prog.Tokens, program.ProgramToken{Kind: token.FUNC, Func: it.fn})
			typeStack = append(typeStack, exprInfo{kind: kindNumeric})

		case it.kind.IsArithmetic():
			a, b, ok := pop2()
			if !ok {
				return nil, 0, &CompileError{Expression: expr, Reason: "arithmetic operator missing an operand"}
			}
			if a.kind != kindNumeric || b.kind != kindNumeric {
				return nil, 0, &CompileError{Expression: expr, Reason: "arithmetic operators cannot be applied to string fields or comparison results"}
			}
			prog.Tokens = append(prog.Tokens, program.ProgramToken{Kind: it.kind})
			typeStack = append(typeStack, exprInfo{kind: kindNumeric})

		case it.kind.IsComparison():
			a, b, ok := pop2()
			if !ok {
				return nil, 0, &CompileError{Expression: expr, Reason: "comparison operator missing an operand"}
			}
			if a.kind == kindBool || b.kind == kindBool {
				return nil, 0, &CompileError{Expression: expr, Reason: "cannot compare the result of another comparison (chained comparisons like A=B=C are not supported)"}
			}
			if (a.special || b.special) && it.kind != token.EQ && it.kind != token.NE {
				return nil, 0, &CompileError{Expression: expr, Reason: "%TYPE and %FILTER only support == and != comparisons"}
			}
			if a.kind != b.kind {
				return nil, 0, &CompileError{Expression: expr, Reason: "cannot compare a string field against a numeric one"}
			}
			prog.Tokens = append(prog.Tokens, program.ProgramToken{Kind: it.kind})
			typeStack = append(typeStack, exprInfo{kind: kindBool})

		case it.kind.IsLogical():
			a, b, ok := pop2()
			if !ok {
				return nil, 0, &CompileError{Expression: expr, Reason: "logical operator missing an operand"}
			}
			if a.kind != kindBool || b.kind != kindBool {
				return nil, 0, &CompileError{Expression: expr, Reason: "logical operators require boolean operands produced by a comparison, not raw fields"}
			}
			prog.Tokens = append(prog.Tokens, program.ProgramToken{Kind: it.kind})
			typeStack = append(typeStack, exprInfo{kind: kindBool})

		default:
			return nil, 0, &CompileError{Expression: expr, Reason: fmt.Sprintf("unexpected token %s in compiled form", it.kind)}
		}
	}

	if len(typeStack) != 1 {
		return nil, 0, &CompileError{Expression: expr, Reason: "expression does not reduce to a single boolean result"}
	}
	if typeStack[0].kind != kindBool {
		return nil, 0, &CompileError{Expression: expr, Reason: "expression does not reduce to a boolean result"}
	}

	return prog, hint, nil
}

// scan runs the lexer to completion, returning an error if it ever
// emits token.ERROR.
func scan(expr string) ([]token.Token, error) {
	l := lexer.New(expr)
	var toks []token.Token
	for {
		tok := l.NextToken()
		if tok.Kind == token.ERROR {
			if tok.Literal != "" && (tok.Literal[0] == '"' || tok.Literal[0] == '\'') {
				return nil, &lexer.ErrUnterminatedString{Expression: tok.Literal}
			}
			return nil, fmt.Errorf("unexpected input at %q", tok.Literal)
		}
		if tok.Kind == token.EOF {
			break
		}
		toks = append(toks, tok)
	}
	return toks, nil
}

// rewriteUnaryMinus rewrites a leading or post-operator '-' into the
// two tokens "-1" and '*', so "-DP" compiles the same as "-1 * DP"
// (spec.md §4.2); a '-' following a VAL or ')' is left as binary
// subtraction.
func rewriteUnaryMinus(toks []token.Token) []token.Token {
	out := make([]token.Token, 0, len(toks)+1)
	prevIsOperand := false
	for _, tok := range toks {
		if tok.Kind == token.SUB && !prevIsOperand {
			out = append(out, token.Token{Kind: token.VAL, Literal: "-1"})
			out = append(out, token.Token{Kind: token.MULT, Literal: "*"})
			prevIsOperand = false
			continue
		}
		out = append(out, tok)
		prevIsOperand = tok.Kind == token.VAL || tok.Kind == token.RPAREN
	}
	return out
}

// shuntingYard reorders an infix token stream into postfix item order
// using token.Precedence, with function calls treated as a single
// high-precedence prefix operator resolved at their closing paren.
func shuntingYard(expr string, toks []token.Token) ([]item, error) {
	var output []item
	ops := stack.New[item](len(toks))

	popToOutput := func() {
		op, _ := ops.Pop()
		output = append(output, op)
	}

	for _, tok := range toks {
		switch {
		case tok.Kind == token.VAL:
			output = append(output, item{kind: token.VAL, literal: tok.Literal})

		case tok.Kind.IsFunction():
			ops.Push(item{kind: tok.Kind})

		case tok.Kind == token.LPAREN:
			ops.Push(item{kind: token.LPAREN})

		case tok.Kind == token.RPAREN:
			for {
				top, ok := ops.Peek()
				if !ok {
					return nil, &CompileError{Expression: expr, Reason: "unbalanced parentheses"}
				}
				if top.kind == token.LPAREN {
					ops.Pop()
					break
				}
				popToOutput()
			}
			if top, ok := ops.Peek(); ok && top.kind.IsFunction() {
				ops.Pop()
				output = append(output, item{kind: token.FUNC, fn: token.FuncKindFor(top.kind)})
			}

		default: // operator
			for {
				top, ok := ops.Peek()
				if !ok || top.kind == token.LPAREN {
					break
				}
				if top.kind.IsFunction() || token.Precedence(top.kind) >= token.Precedence(tok.Kind) {
					popToOutput()
					continue
				}
				break
			}
			ops.Push(item{kind: tok.Kind})
		}
	}

	for !ops.Empty() {
		top, _ := ops.Peek()
		if top.kind == token.LPAREN {
			return nil, &CompileError{Expression: expr, Reason: "unbalanced parentheses"}
		}
		popToOutput()
	}

	if len(output) == 0 {
		return nil, &CompileError{Expression: expr, Reason: "empty expression"}
	}
	return output, nil
}

// foldAdjacentComparison scans postfix items for an adjacent
// [operand, operand, EQ|NE] triplet and lets match decide whether to
// collapse it into a single pre-resolved VAL item; this is how
// "%FILTER op literal" and "%TYPE op literal" (in either operand
// order) get rewritten away from a generic string comparison into a
// Setter with the field's actual comparison semantics baked in.
func foldAdjacentComparison(items []item, match func(a, b, op item) (literal string, ok bool)) []item {
	out := make([]item, 0, len(items))
	for i := 0; i < len(items); i++ {
		if i+2 < len(items) && (items[i+2].kind == token.EQ || items[i+2].kind == token.NE) {
			if lit, ok := match(items[i], items[i+1], items[i+2]); ok {
				out = append(out, item{kind: token.VAL, literal: lit})
				i += 2
				continue
			}
		}
		out = append(out, items[i])
	}
	return out
}

func negateTag(negate bool) string {
	if negate {
		return "!"
	}
	return "="
}

// filterCompareLiteral is the sentinel literal prefix matchFilterComparison
// rewrites a %FILTER comparison into; bindValue recognizes it and binds
// directly to filterEqualsSetter rather than a generic string Setter.
const filterCompareLiteral = "\x00filtereq:"

// matchFilterComparison recognizes "%FILTER op literal" (in either
// operand order), folding it into a sentinel VAL resolved by
// filterEqualsSetter - the only place "." gets its special meaning of
// "no FILTER tag set" rather than literal text to match against
// (spec.md §4.3).
func matchFilterComparison(a, b, op item) (string, bool) {
	negate := op.kind == token.NE
	switch {
	case a.kind == token.VAL && a.literal == "%FILTER" && b.kind == token.VAL && isQuoted(b.literal):
		return filterCompareLiteral + negateTag(negate) + unquote(b.literal), true
	case b.kind == token.VAL && b.literal == "%FILTER" && a.kind == token.VAL && isQuoted(a.literal):
		return filterCompareLiteral + negateTag(negate) + unquote(a.literal), true
	}
	return "", false
}

// typeCompareLiteral is the sentinel literal prefix matchTypeComparison
// rewrites a %TYPE comparison into; bindValue resolves the normalized
// name against vcf.ParseVariantType, so "snp"/"snps"/"SNP" all mean
// the same thing regardless of the record's own exact spelling.
const typeCompareLiteral = "\x00typeeq:"

// matchTypeComparison recognizes "%TYPE op literal" (in either operand
// order), folding it into a sentinel VAL resolved by comparing
// VariantType values directly rather than their string rendering.
func matchTypeComparison(a, b, op item) (string, bool) {
	negate := op.kind == token.NE
	switch {
	case a.kind == token.VAL && a.literal == "%TYPE" && b.kind == token.VAL && isQuoted(b.literal):
		return typeCompareLiteral + negateTag(negate) + unquote(b.literal), true
	case b.kind == token.VAL && b.literal == "%TYPE" && a.kind == token.VAL && isQuoted(a.literal):
		return typeCompareLiteral + negateTag(negate) + unquote(a.literal), true
	}
	return "", false
}

func isQuoted(lit string) bool {
	return len(lit) >= 2 && (lit[0] == '"' || lit[0] == '\'') && lit[len(lit)-1] == lit[0]
}

func unquote(lit string) string {
	return lit[1 : len(lit)-1]
}

// boundValue is what bindValue resolves one VAL literal to: the
// Setter the compiled program will call per record, the simulated
// type-check stack entry it leaves behind, and the record sections a
// real unpacker would need to materialize to satisfy it.
type boundValue struct {
	setter  value.Setter
	kind    exprKind
	special bool
	hint    vcf.UnpackHint
}

// bindValue resolves one VAL literal to a Setter and its compile-time
// type-check info.
func bindValue(header vcf.Header, literal string) (boundValue, error) {
	switch {
	case strings.HasPrefix(literal, filterCompareLiteral):
		rest := literal[len(filterCompareLiteral):]
		negate := rest[0] == '!'
		name := rest[1:]
		return boundValue{setter: filterEqualsSetter(header, name, negate), kind: kindBool, hint: vcf.UnpackFilter}, nil

	case strings.HasPrefix(literal, typeCompareLiteral):
		rest := literal[len(typeCompareLiteral):]
		negate := rest[0] == '!'
		name := rest[1:]
		want, ok := vcf.ParseVariantType(name)
		if !ok {
			return boundValue{}, fmt.Errorf("%q is not a valid %%TYPE value", name)
		}
		return boundValue{setter: typeEqualsSetter(want, negate), kind: kindBool, hint: vcf.UnpackString}, nil

	case isQuoted(literal):
		v, err := value.ParseLiteral(literal)
		if err != nil {
			return boundValue{}, err
		}
		return boundValue{setter: value.ConstSetter(v), kind: kindString}, nil

	case literal == "%QUAL" || literal == "QUAL":
		return boundValue{setter: value.QualSetter(), kind: kindNumeric}, nil

	case literal == "%TYPE":
		return boundValue{setter: value.TypeSetter(), kind: kindString, special: true, hint: vcf.UnpackString}, nil

	case literal == "%FILTER":
		return boundValue{setter: filterSetter(header), kind: kindString, special: true, hint: vcf.UnpackFilter}, nil
	}

	// a bare numeric literal, e.g. the compiler's own "-1" rewrite.
	if v, err := value.ParseLiteral(literal); err == nil {
		return boundValue{setter: value.ConstSetter(v), kind: kindNumeric}, nil
	}

	name := literal
	var category vcf.FieldCategory
	forcedCategory := false
	switch {
	case strings.HasPrefix(name, "INFO/"):
		name = name[len("INFO/"):]
		category, forcedCategory = vcf.CategoryInfo, true
	case strings.HasPrefix(name, "FORMAT/"):
		name = name[len("FORMAT/"):]
		category, forcedCategory = vcf.CategoryFormat, true
	case strings.HasPrefix(name, "FMT/"):
		name = name[len("FMT/"):]
		category, forcedCategory = vcf.CategoryFormat, true
	}

	base, idx, subscripted := parseSubscript(name)

	id, ok := header.LookupID(base)
	if !ok {
		return boundValue{}, fmt.Errorf("%q is not defined in the header", base)
	}

	if !forcedCategory {
		category = header.Category(id)
	} else if header.Category(id) != category {
		return boundValue{}, fmt.Errorf("%q is not an %s field", base, categoryName(category))
	}

	switch category {
	case vcf.CategoryInfo:
		if header.Type(id) == vcf.Flag {
			return boundValue{setter: value.InfoFlagSetter(id), kind: kindNumeric, hint: vcf.UnpackInfo}, nil
		}
		arity := header.Arity(id)
		if subscripted {
			if arity != 0 && idx >= arity {
				return boundValue{}, fmt.Errorf("subscript %d out of range for %q", idx, base)
			}
			return boundValue{setter: value.InfoVectorSetter(id, idx), kind: kindNumeric, hint: vcf.UnpackInfo}, nil
		}
		if arity != 1 {
			return boundValue{}, fmt.Errorf("arrays must be subscripted: %q", base)
		}
		kind := kindNumeric
		h := vcf.UnpackInfo
		if header.Type(id) == vcf.String {
			kind = kindString
			h |= vcf.UnpackString
		}
		return boundValue{setter: value.InfoScalarSetter(id), kind: kind, hint: h}, nil

	case vcf.CategoryFormat:
		arity := header.Arity(id)
		numSamples := header.NumSamples()
		if subscripted {
			if arity != 0 && idx >= arity {
				return boundValue{}, fmt.Errorf("subscript %d out of range for %q", idx, base)
			}
			switch header.Type(id) {
			case vcf.Integer:
				return boundValue{setter: value.FormatIntElementSetter(id, idx, arity, numSamples), kind: kindNumeric, hint: vcf.UnpackFormat}, nil
			case vcf.Float:
				return boundValue{setter: value.FormatFloatElementSetter(id, idx, arity, numSamples), kind: kindNumeric, hint: vcf.UnpackFormat}, nil
			case vcf.String:
				return boundValue{}, fmt.Errorf("%q is a string FORMAT field and cannot be subscripted", base)
			}
		}
		if arity != 1 {
			return boundValue{}, fmt.Errorf("arrays must be subscripted: %q", base)
		}
		switch header.Type(id) {
		case vcf.Integer:
			return boundValue{setter: value.FormatIntSetter(id, numSamples), kind: kindNumeric, hint: vcf.UnpackFormat}, nil
		case vcf.Float:
			return boundValue{setter: value.FormatFloatSetter(id, numSamples), kind: kindNumeric, hint: vcf.UnpackFormat}, nil
		case vcf.String:
			return boundValue{setter: value.FormatStringSetter(id, numSamples), kind: kindString, hint: vcf.UnpackFormat | vcf.UnpackString}, nil
		}
	}

	return boundValue{}, fmt.Errorf("%q cannot be used as a filter operand", literal)
}

func categoryName(c vcf.FieldCategory) string {
	switch c {
	case vcf.CategoryInfo:
		return "INFO"
	case vcf.CategoryFormat:
		return "FORMAT"
	case vcf.CategoryFilter:
		return "FILTER"
	}
	return "unknown"
}

// parseSubscript splits "DP4[0]" into ("DP4", 0, true); a name with no
// "[...]" suffix returns (name, 0, false).
func parseSubscript(name string) (string, int, bool) {
	open := strings.IndexByte(name, '[')
	if open < 0 || !strings.HasSuffix(name, "]") {
		return name, 0, false
	}
	idxStr := name[open+1 : len(name)-1]
	idx := 0
	for _, c := range idxStr {
		if c < '0' || c > '9' {
			return name, 0, false
		}
		idx = idx*10 + int(c-'0')
	}
	return name[:open], idx, true
}

// filterNameLookup is the optional reverse-lookup capability a Header
// implementation can provide so %FILTER's tags render back to text;
// MemHeader implements it. A Header that doesn't is still usable for
// every field; only the textual %FILTER rendering (used outside the
// folded ==/!= literal pattern) is affected, with every tag rendered
// as "".
type filterNameLookup interface {
	FilterName(id int) string
}

// filterSetter renders %FILTER as its textual "."/tag;tag;... form,
// used when %FILTER appears outside the folded ==/!= pattern (e.g.
// compared against another string field).
func filterSetter(header vcf.Header) value.Setter {
	namer, ok := header.(filterNameLookup)
	if !ok {
		return value.FilterSetter(func(int) string { return "" })
	}
	return value.FilterSetter(namer.FilterName)
}

// filterEqualsSetter produces the pre-evaluated boolean result of a
// "%FILTER == name" / "%FILTER != name" comparison, resolving name
// against the header up front so per-record work is just a scan of
// FilterIDs(). name=="." means "no FILTER tag is set on this record".
func filterEqualsSetter(header vcf.Header, name string, negate bool) value.Setter {
	wantID, hasID := header.LookupID(name)
	return func(r vcf.Record) value.Value {
		ids := r.FilterIDs()
		var res bool
		if name == "." {
			res = len(ids) == 0
		} else if hasID {
			for _, id := range ids {
				if id == wantID {
					res = true
					break
				}
			}
		}
		if negate {
			res = !res
		}
		site := value.Fail
		if res {
			site = value.Pass
		}
		return value.Value{Site: true, PassSite: site}
	}
}

// typeEqualsSetter produces the pre-evaluated boolean result of a
// "%TYPE == literal" / "%TYPE != literal" comparison, comparing the
// record's VariantType directly rather than going through a string
// rendering of it.
func typeEqualsSetter(want vcf.VariantType, negate bool) value.Setter {
	return func(r vcf.Record) value.Value {
		res := r.VariantType() == want
		if negate {
			res = !res
		}
		site := value.Fail
		if res {
			site = value.Pass
		}
		return value.Value{Site: true, PassSite: site}
	}
}

// WriteManual writes a short usage summary of the expression language
// to w, covering the operators, functions, and special field forms
// Compile understands.
func WriteManual(w io.Writer) {
	fmt.Fprint(w, `Filter expression syntax:

  Fields:
    QUAL                 site quality (same as %QUAL)
    %TYPE                 variant class: snp(s), indel(s), mnp(s), other, ref
                           (case-insensitive; only ==/!= are supported)
    %FILTER                FILTER tags, "PASS" or "."=unfiltered
                           (only ==/!= are supported)
    INFO/NAME              site-level INFO field; arrays must be subscripted
    NAME                   INFO or FORMAT field, whichever category the
                           header gives NAME (not always site-level)
    INFO/NAME[idx]         one element of a vector INFO field
    FORMAT/NAME, FMT/NAME  per-sample FORMAT field; arrays must be subscripted
    FORMAT/NAME[idx]       one element of a per-sample vector FORMAT field

  Functions (reduce a FORMAT field across samples to one number):
    %MAX(NAME)  %MIN(NAME)  %AVG(NAME)

  Operators, lowest to highest precedence:
    |  ||           OR
    &  &&           AND
    == != < <= > >=  comparisons ('=' is accepted as a synonym for '==')
    +  -            addition, subtraction
    *  /            multiplication, division

  '|' and '&' combine site verdicts and pass a single sample mask
  through as-is; '||' and '&&' always broadcast a site verdict into the
  sample mask.

  Parentheses group sub-expressions; a leading '-' negates the value
  that follows it. Chained comparisons like "A=B=C" are not supported.
`)
}

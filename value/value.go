// Package value defines the runtime value that flows across the
// evaluator's stack (package program) - a scalar-or-vector numeric or
// string buffer plus a tri-state site verdict and an optional
// per-sample pass mask - and the Setter functions that populate one
// fresh Value per record for each way a VAL token can be bound to a
// vcf.Header/vcf.Record pair (site QUAL, %TYPE, %FILTER, INFO scalar,
// subscripted INFO vector element, INFO flag, and per-sample FORMAT
// int/float/string).
//
// Missing data is represented internally as math.NaN() in the Nums
// buffer: NaN propagates through +,-,*,/ and compares false under
// ==, <, <=, > and >=. It compares true under !=, so the comparison
// and arithmetic helpers check for a missing operand explicitly.
package value

import (
	"math"
	"strconv"
	"strings"

	"github.com/skx/vcffilter/token"
	"github.com/skx/vcffilter/vcf"
)

// TriState is the tri-valued site-level filter verdict: a program has
// not yet produced one (Unset), or it failed/passed.
type TriState int

const (
	Unset TriState = iota - 1
	Fail
	Pass
)

func (t TriState) String() string {
	switch t {
	case Fail:
		return "fail"
	case Pass:
		return "pass"
	}
	return "unset"
}

// Value is one entry on the evaluator's stack: either a numeric/string
// buffer not yet compared against anything, or the boolean result of a
// comparison or logical combination (PassSite/PassSamples populated,
// Nums/Strs irrelevant from that point on).
type Value struct {
	// Site reports whether this value carries exactly one entry that
	// applies uniformly to the whole record (a QUAL, a constant, an
	// INFO field), as opposed to one entry per sample (a FORMAT field).
	Site bool

	// Nums holds the numeric payload: len 1 if Site, else len
	// NumSamples. A NaN entry means "missing" for that element/sample.
	Nums []float64

	// IsStr and Strs hold the string payload when this value came from
	// a quoted literal, %TYPE, %FILTER, or a FORMAT string field. A nil
	// entry in Strs means "missing" for that sample.
	IsStr bool
	Strs  [][]byte

	// PassSite/PassSamples hold the boolean result once this Value has
	// been produced by a comparison or logical operator rather than a
	// VAL setter. PassSamples is nil until a per-sample boolean result
	// exists.
	PassSite    TriState
	PassSamples []bool
}

// IsMissing reports whether f is this engine's missing-value sentinel.
func IsMissing(f float64) bool {
	return math.IsNaN(f)
}

// Missing is the canonical missing-value sentinel for a Nums entry.
func Missing() float64 {
	return math.NaN()
}

// NewConst returns a site-level numeric Value that is the same on
// every record.
func NewConst(n float64) Value {
	return Value{Site: true, Nums: []float64{n}, PassSite: Unset}
}

// NewStringConst returns a site-level string Value that is the same
// on every record.
func NewStringConst(s string) Value {
	return Value{Site: true, IsStr: true, Strs: [][]byte{[]byte(s)}, PassSite: Unset}
}

// ParseLiteral turns a lexed VAL literal into a constant Value: a
// quoted literal ("PASS" or 'PASS') becomes a string constant, a bare
// literal is parsed as a float.
func ParseLiteral(lit string) (Value, error) {
	if len(lit) >= 2 && (lit[0] == '"' || lit[0] == '\'') && lit[len(lit)-1] == lit[0] {
		return NewStringConst(lit[1 : len(lit)-1]), nil
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return Value{}, err
	}
	return NewConst(f), nil
}

// Setter produces a fresh Value for one record. Compile builds one of
// these per VAL token by closing over whatever schema id/subscript it
// resolved the token's literal to; Evaluate calls it once per record.
type Setter func(r vcf.Record) Value

// ConstSetter wraps a compile-time constant so it can be called like
// any other Setter.
func ConstSetter(v Value) Setter {
	return func(vcf.Record) Value { return v }
}

// QualSetter reads the site QUAL value.
func QualSetter() Setter {
	return func(r vcf.Record) Value {
		q, ok := r.Quality()
		if !ok {
			return Value{Site: true, Nums: []float64{Missing()}, PassSite: Unset}
		}
		return Value{Site: true, Nums: []float64{q}, PassSite: Unset}
	}
}

// TypeSetter reads the site variant classification as a string, for
// comparison against "snp"/"indel"/"mnp"/"other"/"ref".
func TypeSetter() Setter {
	return func(r vcf.Record) Value {
		return Value{Site: true, IsStr: true, Strs: [][]byte{[]byte(typeName(r.VariantType()))}, PassSite: Unset}
	}
}

func typeName(vt vcf.VariantType) string {
	switch vt {
	case vcf.VariantSNP:
		return "snp"
	case vcf.VariantIndel:
		return "indel"
	case vcf.VariantMNP:
		return "mnp"
	case vcf.VariantRef:
		return "ref"
	default:
		return "other"
	}
}

// FilterIDLookup resolves a FILTER tag name to its schema id, the way
// a Header does for any other field.
type FilterIDLookup func(name string) (id int, ok bool)

// FilterSetter reads the set of FILTER tags present on the record as
// a pseudo-string value: "." if FilterIDs is empty, otherwise the
// tags joined by ';', matching %FILTER's textual rendering in the
// original VCF format. package compiler folds the common "%FILTER ==
// literal" / "%FILTER != literal" pattern into its own pre-evaluated
// Setter before this one is ever reached; FilterSetter only backs the
// rarer case of %FILTER appearing outside that pattern.
func FilterSetter(idToName func(id int) string) Setter {
	return func(r vcf.Record) Value {
		ids := r.FilterIDs()
		if len(ids) == 0 {
			return Value{Site: true, IsStr: true, Strs: [][]byte{[]byte(".")}, PassSite: Unset}
		}
		names := make([]string, len(ids))
		for i, id := range ids {
			names[i] = idToName(id)
		}
		return Value{Site: true, IsStr: true, Strs: [][]byte{[]byte(strings.Join(names, ";"))}, PassSite: Unset}
	}
}

// InfoScalarSetter reads a non-subscripted INFO field (arity 1).
func InfoScalarSetter(id int) Setter {
	return func(r vcf.Record) Value {
		iv, ok := r.InfoValue(id)
		if !ok {
			return Value{Site: true, Nums: []float64{Missing()}, PassSite: Unset}
		}
		if iv.IsString {
			return Value{Site: true, IsStr: true, Strs: [][]byte{[]byte(iv.Str)}, PassSite: Unset}
		}
		return Value{Site: true, Nums: []float64{iv.Num}, PassSite: Unset}
	}
}

// InfoVectorSetter reads one subscripted element (e.g. DP4[idx]) of a
// vector INFO field.
func InfoVectorSetter(id, idx int) Setter {
	return func(r vcf.Record) Value {
		f, ok := r.InfoValueAt(id, idx)
		if !ok {
			return Value{Site: true, Nums: []float64{Missing()}, PassSite: Unset}
		}
		return Value{Site: true, Nums: []float64{f}, PassSite: Unset}
	}
}

// InfoFlagSetter reads a FLAG-type INFO field as 1/0 (present/absent);
// a flag is never "missing", it is simply set or not.
func InfoFlagSetter(id int) Setter {
	return func(r vcf.Record) Value {
		n := 0.0
		if r.InfoPresent(id) {
			n = 1.0
		}
		return Value{Site: true, Nums: []float64{n}, PassSite: Unset}
	}
}

// FormatIntSetter reads a per-sample, arity-1 int32 FORMAT field,
// translating the Int32Missing/Int32VectorEnd sentinels into this
// engine's NaN.
func FormatIntSetter(id, numSamples int) Setter {
	return func(r vcf.Record) Value {
		nums := make([]float64, numSamples)
		raw, ok := r.FormatInt32(id)
		for i := range nums {
			if !ok || i >= len(raw) || raw[i] == vcf.Int32Missing || raw[i] == vcf.Int32VectorEnd {
				nums[i] = Missing()
				continue
			}
			nums[i] = float64(raw[i])
		}
		return Value{Nums: nums, PassSite: Unset}
	}
}

// FormatFloatSetter reads a per-sample, arity-1 float32 FORMAT field.
func FormatFloatSetter(id, numSamples int) Setter {
	return func(r vcf.Record) Value {
		nums := make([]float64, numSamples)
		raw, ok := r.FormatFloat32(id)
		for i := range nums {
			if !ok || i >= len(raw) || vcf.IsFloat32Missing(raw[i]) {
				nums[i] = Missing()
				continue
			}
			nums[i] = float64(raw[i])
		}
		return Value{Nums: nums, PassSite: Unset}
	}
}

// formatStride treats arity<1 (an unknown/variable declared length) as
// a stride of 1, so a subscript of 0 degrades gracefully to the plain
// per-sample layout instead of indexing out of bounds.
func formatStride(arity int) int {
	if arity < 1 {
		return 1
	}
	return arity
}

// FormatIntElementSetter reads one subscripted element (e.g. AD[idx])
// of a multi-valued int32 FORMAT field. Record.FormatInt32 returns
// such a field flattened row-major by sample: sample i's element j
// lives at i*arity+j.
func FormatIntElementSetter(id, idx, arity, numSamples int) Setter {
	stride := formatStride(arity)
	return func(r vcf.Record) Value {
		nums := make([]float64, numSamples)
		raw, ok := r.FormatInt32(id)
		for i := range nums {
			pos := i*stride + idx
			if !ok || pos >= len(raw) || raw[pos] == vcf.Int32Missing || raw[pos] == vcf.Int32VectorEnd {
				nums[i] = Missing()
				continue
			}
			nums[i] = float64(raw[pos])
		}
		return Value{Nums: nums, PassSite: Unset}
	}
}

// FormatFloatElementSetter is FormatIntElementSetter for a multi-valued
// float32 FORMAT field.
func FormatFloatElementSetter(id, idx, arity, numSamples int) Setter {
	stride := formatStride(arity)
	return func(r vcf.Record) Value {
		nums := make([]float64, numSamples)
		raw, ok := r.FormatFloat32(id)
		for i := range nums {
			pos := i*stride + idx
			if !ok || pos >= len(raw) || vcf.IsFloat32Missing(raw[pos]) {
				nums[i] = Missing()
				continue
			}
			nums[i] = float64(raw[pos])
		}
		return Value{Nums: nums, PassSite: Unset}
	}
}

// FormatStringSetter reads a per-sample string FORMAT field, trimming
// each sample's value at its first NUL byte (the original on-disk
// padding scheme for fixed-width string vectors).
func FormatStringSetter(id, numSamples int) Setter {
	return func(r vcf.Record) Value {
		strs := make([][]byte, numSamples)
		raw, ok := r.FormatString(id)
		for i := range strs {
			if !ok || i >= len(raw) {
				strs[i] = nil
				continue
			}
			strs[i] = trimNUL(raw[i])
		}
		return Value{IsStr: true, Strs: strs, PassSite: Unset}
	}
}

func trimNUL(b []byte) []byte {
	for i, c := range b {
		if c == 0 {
			return b[:i]
		}
	}
	return b
}

// broadcastNums returns a numSamples-length slice: if v is site-level
// its single entry is repeated, otherwise its own per-sample buffer is
// returned as-is (the compiler guarantees it already has this length).
func broadcastNums(v Value, numSamples int) []float64 {
	if v.Site {
		out := make([]float64, numSamples)
		n := Missing()
		if len(v.Nums) > 0 {
			n = v.Nums[0]
		}
		for i := range out {
			out[i] = n
		}
		return out
	}
	return v.Nums
}

func broadcastStrs(v Value, numSamples int) [][]byte {
	if v.Site {
		out := make([][]byte, numSamples)
		var s []byte
		if len(v.Strs) > 0 {
			s = v.Strs[0]
		}
		for i := range out {
			out[i] = s
		}
		return out
	}
	return v.Strs
}

func arithNum(a, b float64, op token.Kind) float64 {
	if IsMissing(a) || IsMissing(b) {
		return Missing()
	}
	switch op {
	case token.ADD:
		return a + b
	case token.SUB:
		return a - b
	case token.MULT:
		return a * b
	case token.DIV:
		if b == 0 {
			return Missing()
		}
		return a / b
	}
	return Missing()
}

// Arith applies one of +,-,*,/ elementwise, broadcasting a site-level
// scalar operand across the other operand's samples. Either operand
// touching a missing element makes that element's result missing.
func Arith(a, b Value, op token.Kind, numSamples int) Value {
	if a.Site && b.Site {
		av, bv := Missing(), Missing()
		if len(a.Nums) > 0 {
			av = a.Nums[0]
		}
		if len(b.Nums) > 0 {
			bv = b.Nums[0]
		}
		return Value{Site: true, Nums: []float64{arithNum(av, bv, op)}, PassSite: Unset}
	}
	an := broadcastNums(a, numSamples)
	bn := broadcastNums(b, numSamples)
	out := make([]float64, numSamples)
	for i := range out {
		out[i] = arithNum(an[i], bn[i], op)
	}
	return Value{Nums: out, PassSite: Unset}
}

func compareNum(a, b float64, op token.Kind) bool {
	if IsMissing(a) || IsMissing(b) {
		return false
	}
	switch op {
	case token.LT:
		return a < b
	case token.LE:
		return a <= b
	case token.BT:
		return a > b
	case token.BE:
		return a >= b
	case token.EQ:
		return a == b
	case token.NE:
		return a != b
	}
	return false
}

func compareStr(a, b []byte, op token.Kind) bool {
	if a == nil || b == nil {
		return false
	}
	sa, sb := string(a), string(b)
	switch op {
	case token.EQ:
		return sa == sb
	case token.NE:
		return sa != sb
	case token.LT:
		return sa < sb
	case token.LE:
		return sa <= sb
	case token.BT:
		return sa > sb
	case token.BE:
		return sa >= sb
	}
	return false
}

// Compare applies one comparison operator, producing a boolean result:
// a single site-level verdict if both operands are site-level, or a
// per-sample mask (with PassSite set by OR-reducing across samples)
// once either operand carries a per-sample buffer. A missing element
// on either side makes that element's comparison false, for every
// operator including !=.
func Compare(a, b Value, op token.Kind, numSamples int) Value {
	if a.IsStr || b.IsStr {
		as := broadcastStrs(a, numSamples)
		bs := broadcastStrs(b, numSamples)
		if a.Site && b.Site {
			res := compareStr(as[0], bs[0], op)
			return Value{Site: true, PassSite: boolToTri(res)}
		}
		mask := make([]bool, numSamples)
		any := false
		for i := range mask {
			mask[i] = compareStr(as[i], bs[i], op)
			any = any || mask[i]
		}
		return Value{PassSite: boolToTri(any), PassSamples: mask}
	}

	if a.Site && b.Site {
		av, bv := Missing(), Missing()
		if len(a.Nums) > 0 {
			av = a.Nums[0]
		}
		if len(b.Nums) > 0 {
			bv = b.Nums[0]
		}
		res := compareNum(av, bv, op)
		return Value{Site: true, PassSite: boolToTri(res)}
	}

	an := broadcastNums(a, numSamples)
	bn := broadcastNums(b, numSamples)
	mask := make([]bool, numSamples)
	any := false
	for i := range mask {
		mask[i] = compareNum(an[i], bn[i], op)
		any = any || mask[i]
	}
	return Value{PassSite: boolToTri(any), PassSamples: mask}
}

func boolToTri(b bool) TriState {
	if b {
		return Pass
	}
	return Fail
}

func triToBool(t TriState) bool {
	return t == Pass
}

func combineMasks(a, b []bool, and bool) []bool {
	out := make([]bool, len(a))
	for i := range out {
		if and {
			out[i] = a[i] && b[i]
		} else {
			out[i] = a[i] || b[i]
		}
	}
	return out
}

func broadcastMask(mask []bool, site TriState, n int) []bool {
	if mask != nil {
		return mask
	}
	out := make([]bool, n)
	for i := range out {
		out[i] = triToBool(site)
	}
	return out
}

// CombineLogical implements the site-or-vector pair of logical
// combinators (spec.md §4.4): '|'/'&' (vec=false) combine at the site
// level and pass a single existing per-sample mask through unchanged
// rather than forcing a broadcast (two masks are combined elementwise),
// while '||'/'&&' (vec=true) always produce
// a full per-sample mask by broadcasting a pure site-level operand's
// verdict across every sample first.
func CombineLogical(a, b Value, vec, and bool, numSamples int) Value {
	var site TriState
	if and {
		site = boolToTri(triToBool(a.PassSite) && triToBool(b.PassSite))
	} else {
		site = boolToTri(triToBool(a.PassSite) || triToBool(b.PassSite))
	}

	if !vec {
		switch {
		case a.PassSamples != nil && b.PassSamples != nil:
			return Value{PassSite: site, PassSamples: combineMasks(a.PassSamples, b.PassSamples, and)}
		case a.PassSamples != nil:
			return Value{PassSite: site, PassSamples: a.PassSamples}
		case b.PassSamples != nil:
			return Value{PassSite: site, PassSamples: b.PassSamples}
		default:
			return Value{Site: true, PassSite: site}
		}
	}

	am := broadcastMask(a.PassSamples, a.PassSite, numSamples)
	bm := broadcastMask(b.PassSamples, b.PassSite, numSamples)
	return Value{PassSite: site, PassSamples: combineMasks(am, bm, and)}
}

// ReduceFunc applies %MAX/%MIN/%AVG across a per-sample buffer,
// ignoring missing elements; if every element is missing the result
// is itself missing. %AVG computes the true arithmetic mean.
func ReduceFunc(v Value, fn token.FuncKind) Value {
	var vals []float64
	for _, f := range v.Nums {
		if !IsMissing(f) {
			vals = append(vals, f)
		}
	}
	if len(vals) == 0 {
		return Value{Site: true, Nums: []float64{Missing()}, PassSite: Unset}
	}
	var result float64
	switch fn {
	case token.FuncMax:
		result = vals[0]
		for _, f := range vals[1:] {
			if f > result {
				result = f
			}
		}
	case token.FuncMin:
		result = vals[0]
		for _, f := range vals[1:] {
			if f < result {
				result = f
			}
		}
	case token.FuncAvg:
		sum := 0.0
		for _, f := range vals {
			sum += f
		}
		result = sum / float64(len(vals))
	}
	return Value{Site: true, Nums: []float64{result}, PassSite: Unset}
}

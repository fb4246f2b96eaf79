package compiler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skx/vcffilter/vcf"
)

func newHeader(numSamples int) *vcf.MemHeader {
	return vcf.NewMemHeader(numSamples,
		vcf.FieldDef{Name: "DP", Type: vcf.Integer, Arity: 1, Category: vcf.CategoryFormat},
		vcf.FieldDef{Name: "GQ", Type: vcf.Integer, Arity: 1, Category: vcf.CategoryFormat},
		vcf.FieldDef{Name: "DV", Type: vcf.Integer, Arity: 1, Category: vcf.CategoryFormat},
		vcf.FieldDef{Name: "AD", Type: vcf.Integer, Arity: 2, Category: vcf.CategoryFormat},
		vcf.FieldDef{Name: "DP4", Type: vcf.Float, Arity: 4, Category: vcf.CategoryInfo},
		vcf.FieldDef{Name: "AF", Type: vcf.Float, Arity: 1, Category: vcf.CategoryInfo},
		vcf.FieldDef{Name: "PASS", Type: vcf.Flag, Arity: 0, Category: vcf.CategoryFilter},
		vcf.FieldDef{Name: "q10", Type: vcf.Flag, Arity: 0, Category: vcf.CategoryFilter},
	)
}

func fieldID(t *testing.T, h *vcf.MemHeader, name string) int {
	t.Helper()
	id, ok := h.LookupID(name)
	require.True(t, ok)
	return id
}

func TestCompileQualThreshold(t *testing.T) {
	h := newHeader(0)
	prog, _, err := Compile(h, "QUAL>10")
	require.NoError(t, err)

	res, err := prog.Evaluate(vcf.NewMemRecord().WithQual(30))
	require.NoError(t, err)
	assert.True(t, res.Pass)

	res, err = prog.Evaluate(vcf.NewMemRecord().WithQual(3))
	require.NoError(t, err)
	assert.False(t, res.Pass)
}

func TestCompileTypeEquality(t *testing.T) {
	h := newHeader(0)
	prog, hint, err := Compile(h, `%TYPE="snp"`)
	require.NoError(t, err)
	assert.NotZero(t, hint&vcf.UnpackString)

	res, err := prog.Evaluate(vcf.NewMemRecord().WithVariantType(vcf.VariantSNP))
	require.NoError(t, err)
	assert.True(t, res.Pass)

	res, err = prog.Evaluate(vcf.NewMemRecord().WithVariantType(vcf.VariantIndel))
	require.NoError(t, err)
	assert.False(t, res.Pass)
}

func TestCompileTypeEqualityPluralAndCaseInsensitive(t *testing.T) {
	h := newHeader(0)

	for _, lit := range []string{`"snps"`, `"SNP"`, `"Snps"`} {
		prog, _, err := Compile(h, `%TYPE=`+lit)
		require.NoError(t, err)

		res, err := prog.Evaluate(vcf.NewMemRecord().WithVariantType(vcf.VariantSNP))
		require.NoError(t, err)
		assert.True(t, res.Pass, "literal %s should match a SNP record", lit)
	}

	prog, _, err := Compile(h, `%TYPE!="indels"`)
	require.NoError(t, err)
	res, err := prog.Evaluate(vcf.NewMemRecord().WithVariantType(vcf.VariantIndel))
	require.NoError(t, err)
	assert.False(t, res.Pass)
}

func TestCompileTypeRejectsUnknownLiteral(t *testing.T) {
	h := newHeader(0)
	_, _, err := Compile(h, `%TYPE="bogus"`)
	assert.Error(t, err)
}

func TestCompileFilterPassAndDot(t *testing.T) {
	h := newHeader(0)
	passID := fieldID(t, h, "PASS")
	q10ID := fieldID(t, h, "q10")

	prog, hint, err := Compile(h, `%FILTER="PASS"`)
	require.NoError(t, err)
	assert.NotZero(t, hint&vcf.UnpackFilter)

	res, err := prog.Evaluate(vcf.NewMemRecord().WithFilters(passID))
	require.NoError(t, err)
	assert.True(t, res.Pass)

	res, err = prog.Evaluate(vcf.NewMemRecord().WithFilters(q10ID))
	require.NoError(t, err)
	assert.False(t, res.Pass)

	dotProg, _, err := Compile(h, `%FILTER="."`)
	require.NoError(t, err)
	res, err = dotProg.Evaluate(vcf.NewMemRecord())
	require.NoError(t, err)
	assert.True(t, res.Pass)
}

func TestCompileFormatFieldMixedMissing(t *testing.T) {
	h := newHeader(3)
	dpID := fieldID(t, h, "DP")

	prog, hint, err := Compile(h, "FMT/DP>10")
	require.NoError(t, err)
	assert.NotZero(t, hint&vcf.UnpackFormat)

	rec := vcf.NewMemRecord().WithFormatInt(dpID, []int32{20, 5, vcf.Int32Missing})
	res, err := prog.Evaluate(rec)
	require.NoError(t, err)
	assert.True(t, res.Pass)
	assert.Equal(t, []bool{true, false, false}, res.SampleMask)
}

func TestCompileMinFunctionsAnd(t *testing.T) {
	h := newHeader(2)
	dvID := fieldID(t, h, "DV")
	dpID := fieldID(t, h, "DP")

	prog, _, err := Compile(h, "%MIN(DV)>5 & %MIN(DP)>10")
	require.NoError(t, err)

	pass := vcf.NewMemRecord().
		WithFormatInt(dvID, []int32{6, 7}).
		WithFormatInt(dpID, []int32{11, 12})
	res, err := prog.Evaluate(pass)
	require.NoError(t, err)
	assert.True(t, res.Pass)

	fail := vcf.NewMemRecord().
		WithFormatInt(dvID, []int32{4, 7}).
		WithFormatInt(dpID, []int32{11, 12})
	res, err = prog.Evaluate(fail)
	require.NoError(t, err)
	assert.False(t, res.Pass)
}

func TestCompileArithmeticOverSubscriptedVector(t *testing.T) {
	h := newHeader(0)
	dp4ID := fieldID(t, h, "DP4")

	prog, _, err := Compile(h, "(INFO/DP4[0]+INFO/DP4[1])/(INFO/DP4[2]+INFO/DP4[3]) > 0.3")
	require.NoError(t, err)

	rec := vcf.NewMemRecord().WithInfoVector(dp4ID, []float64{10, 10, 10, 40})
	res, err := prog.Evaluate(rec)
	require.NoError(t, err)
	assert.True(t, res.Pass) // 20/50 = 0.4
}

func TestCompileOrVsOrVecMaskBroadcast(t *testing.T) {
	h := newHeader(2)
	gqID := fieldID(t, h, "GQ")

	nonVec, _, err := Compile(h, "QUAL>10 | FMT/GQ>10")
	require.NoError(t, err)
	vecProg, _, err := Compile(h, "QUAL>10 || FMT/GQ>10")
	require.NoError(t, err)

	rec := vcf.NewMemRecord().WithQual(50).WithFormatInt(gqID, []int32{20, 1})

	a, err := nonVec.Evaluate(rec)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false}, a.SampleMask)

	b, err := vecProg.Evaluate(rec)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, true}, b.SampleMask)
}

func TestCompileUnaryMinus(t *testing.T) {
	h := newHeader(0)
	prog, _, err := Compile(h, "-AF > -5")
	require.NoError(t, err)

	afID := fieldID(t, h, "AF")
	res, err := prog.Evaluate(vcf.NewMemRecord().WithInfoFloat(afID, 2))
	require.NoError(t, err)
	assert.True(t, res.Pass) // -2 > -5
}

func TestCompileUndefinedFieldIsError(t *testing.T) {
	h := newHeader(0)
	_, _, err := Compile(h, "INFO/NOPE>1")
	assert.Error(t, err)
}

func TestCompileInfoArrayMustBeSubscripted(t *testing.T) {
	h := newHeader(0)
	_, _, err := Compile(h, "INFO/DP4>1")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "arrays must be subscripted")
}

func TestCompileFormatArrayMustBeSubscripted(t *testing.T) {
	h := newHeader(2)
	_, _, err := Compile(h, "FORMAT/AD>1")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "arrays must be subscripted")
}

func TestCompileFormatArraySubscriptHonoured(t *testing.T) {
	h := newHeader(2)
	adID := fieldID(t, h, "AD")

	prog, hint, err := Compile(h, "FORMAT/AD[1]>4")
	require.NoError(t, err)
	assert.NotZero(t, hint&vcf.UnpackFormat)

	// sample0 = [1,5] (ref=1,alt=5); sample1 = [10,2]
	rec := vcf.NewMemRecord().WithFormatInt(adID, []int32{1, 5, 10, 2})
	res, err := prog.Evaluate(rec)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false}, res.SampleMask)
}

func TestCompileChainedComparisonIsError(t *testing.T) {
	h := newHeader(0)
	_, _, err := Compile(h, "QUAL=10=10")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "chained comparisons")
}

func TestCompileLogicalRequiresComparisonOperands(t *testing.T) {
	h := newHeader(2)
	_, _, err := Compile(h, "QUAL & FMT/DP")
	assert.Error(t, err)
}

func TestCompileFilterOnlySupportsEqualityOperators(t *testing.T) {
	h := newHeader(0)
	_, _, err := Compile(h, `%FILTER>"PASS"`)
	assert.Error(t, err)
}

func TestCompileBareFieldDoesNotReduceToBoolean(t *testing.T) {
	h := newHeader(0)
	_, _, err := Compile(h, "QUAL")
	assert.Error(t, err)
}

func TestCompileStringNumberMismatchIsError(t *testing.T) {
	h := newHeader(0)
	_, _, err := Compile(h, `%TYPE>5`)
	assert.Error(t, err)
}

func TestCompileUnbalancedParensIsError(t *testing.T) {
	h := newHeader(0)
	_, _, err := Compile(h, "(QUAL>10")
	assert.Error(t, err)
}

func TestWriteManualMentionsCoreOperators(t *testing.T) {
	var sb strings.Builder
	WriteManual(&sb)
	out := sb.String()
	assert.Contains(t, out, "%MAX")
	assert.Contains(t, out, "||")
}

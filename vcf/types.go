// Package vcf defines the external collaborator interfaces the filter
// engine compiles and evaluates against (spec.md §6: a header that maps
// field names to schema identifiers, and a record that can be queried
// for site- and sample-level values), along with a minimal in-memory
// implementation of both used by tests and by cmd/vcffilter.
//
// Parsing an actual VCF/BCF file is out of scope here - see SPEC_FULL.md.
package vcf

import (
	"math"
	"strings"
)

// Sentinel values a Record implementation uses to mark an individual
// per-sample or per-element entry missing or past the end of a
// variable-length vector, mirroring bcf_int32_missing/
// bcf_int32_vector_end/bcf_float_missing in the original bcftools
// encoding. The filter engine's setters (package value) translate
// these into its own internal "missing" representation (a NaN in the
// value token's float64 buffer) as they read each field.
const (
	Int32Missing   int32 = math.MinInt32
	Int32VectorEnd int32 = math.MinInt32 + 1
)

// IsFloat32Missing reports whether v is the missing-value sentinel for
// a float32 FORMAT/INFO entry. Any NaN is treated as missing: unlike
// bcftools, which reserves one specific NaN bit pattern, this engine
// never produces a NaN through legitimate arithmetic on present values
// (see package value's use of math.NaN as its own missing marker), so
// there is no ambiguity to resolve by matching an exact bit pattern.
func IsFloat32Missing(v float32) bool {
	return math.IsNaN(float64(v))
}

// FieldType is the scalar type of a schema field.
type FieldType int

const (
	Integer FieldType = iota
	Float
	Flag
	String
)

// FieldCategory says where a field lives.
type FieldCategory int

const (
	CategoryInfo FieldCategory = iota
	CategoryFormat
	CategoryFilter
)

// VariantType is the variant class of a site, as returned by
// Record.VariantType. A site's classification is reported as a single
// value, not a bitwise-OR of classes present.
type VariantType int

const (
	VariantSNP VariantType = iota + 1
	VariantIndel
	VariantMNP
	VariantOther
	VariantRef
)

// ParseVariantType maps a %TYPE literal operand to a VariantType,
// case-insensitively and accepting both singular and plural spellings
// (mirrors the original %TYPE post-pass, which uses strcasecmp against
// both forms). ok is false for anything else.
func ParseVariantType(s string) (VariantType, bool) {
	switch strings.ToLower(s) {
	case "snp", "snps":
		return VariantSNP, true
	case "indel", "indels":
		return VariantIndel, true
	case "mnp", "mnps":
		return VariantMNP, true
	case "other":
		return VariantOther, true
	case "ref":
		return VariantRef, true
	}
	return 0, false
}

// UnpackHint is a bitmask of record sections a real unpacker would need
// to materialize in order to satisfy a compiled program; Compile ORs
// these together as it binds fields and returns the result so a caller
// wired to a real record reader knows what to unpack before evaluating.
type UnpackHint int

const (
	UnpackString UnpackHint = 1 << iota
	UnpackInfo
	UnpackFormat
	UnpackFilter
)

// Header maps field names the expression language can reference to the
// schema metadata the compiler needs to bind a value token.
type Header interface {
	// LookupID resolves a bare field name (no INFO/FORMAT/FMT prefix,
	// no [idx] subscript) to its schema id. ok is false if undefined.
	LookupID(name string) (id int, ok bool)

	// Type reports the scalar type of the field with the given id.
	Type(id int) FieldType

	// Arity reports the field's declared vector length; 1 means scalar.
	Arity(id int) int

	// Category reports whether id is an INFO, FORMAT, or FILTER field.
	Category(id int) FieldCategory

	// NumSamples is the number of samples records against this header
	// carry - needed up front so per-sample value tokens can size their
	// pass-mask at compile time.
	NumSamples() int
}

// InfoValue is the value read back from a site-level INFO field: Num
// holds it (integer or float fields alike) unless IsString, in which
// case Str holds the value.
type InfoValue struct {
	IsString bool
	Str      string
	Num      float64
}

// Record is one variant-call line: its site-level annotations, its
// per-sample FORMAT vectors, and its FILTER tags.
type Record interface {
	// Quality returns the site QUAL value; ok is false if missing.
	Quality() (float64, bool)

	// VariantType classifies the site's REF/ALT.
	VariantType() VariantType

	// InfoValue returns the scalar (arity==1) INFO value for id; ok is
	// false if the field is absent on this record.
	InfoValue(id int) (InfoValue, bool)

	// InfoValueAt returns the element at the given 0-based index of a
	// vector INFO field; ok is false if absent, out of range, or a
	// vector-end sentinel was hit before reaching idx.
	InfoValueAt(id int, idx int) (float64, bool)

	// InfoPresent reports whether a FLAG-type INFO field is set.
	InfoPresent(id int) bool

	// FormatInt32 returns the per-sample int32 vector for a FORMAT
	// field; ok is false if the field isn't present on this record. For
	// an arity-1 field this has one entry per sample; for a field with
	// Header.Arity(id) > 1 it is flattened row-major by sample, i.e.
	// sample i's element j lives at i*arity+j.
	FormatInt32(id int) ([]int32, bool)

	// FormatFloat32 is FormatInt32 for a float32 FORMAT field.
	FormatFloat32(id int) ([]float32, bool)

	// FormatString returns one byte slice per sample (already trimmed
	// to each sample's meaningful, NUL-free prefix is NOT required here -
	// the evaluator performs that trimming itself per spec.md §4.4.1).
	FormatString(id int) ([][]byte, bool)

	// FilterIDs returns the schema ids of the FILTER tags set on this
	// record; an empty slice means "no filter set".
	FilterIDs() []int
}

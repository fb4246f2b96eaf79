package vcf

// FieldDef describes one schema entry for MemHeader.
type FieldDef struct {
	Name     string
	Type     FieldType
	Arity    int
	Category FieldCategory
}

// MemHeader is a minimal in-memory Header, keyed by field name, used
// by tests and cmd/vcffilter. It is not a VCF/BCF header parser.
type MemHeader struct {
	fields    []FieldDef
	byName    map[string]int
	numSample int
}

// NewMemHeader builds a MemHeader from an ordered list of field
// definitions; each field's schema id is its index in defs.
func NewMemHeader(numSamples int, defs ...FieldDef) *MemHeader {
	h := &MemHeader{
		fields:    defs,
		byName:    make(map[string]int, len(defs)),
		numSample: numSamples,
	}
	for i, d := range defs {
		h.byName[d.Name] = i
	}
	return h
}

func (h *MemHeader) LookupID(name string) (int, bool) {
	id, ok := h.byName[name]
	return id, ok
}

func (h *MemHeader) Type(id int) FieldType {
	return h.fields[id].Type
}

func (h *MemHeader) Arity(id int) int {
	return h.fields[id].Arity
}

func (h *MemHeader) Category(id int) FieldCategory {
	return h.fields[id].Category
}

func (h *MemHeader) NumSamples() int {
	return h.numSample
}

// FilterName returns the field name registered for schema id. It
// satisfies the optional reverse-lookup interface package compiler
// uses to render %FILTER's tags back to text.
func (h *MemHeader) FilterName(id int) string {
	if id < 0 || id >= len(h.fields) {
		return ""
	}
	return h.fields[id].Name
}

// MemRecord is a minimal in-memory Record used by tests and
// cmd/vcffilter. Per-sample or per-element missing values are
// represented using the Int32Missing/Int32VectorEnd/IsFloat32Missing
// sentinels, exactly as a real record reader would encode them.
type MemRecord struct {
	qual    *float64
	vtype   VariantType
	info    map[int]InfoValue
	infoVec map[int][]float64 // vector INFO fields; NaN marks a missing element
	flags   map[int]bool

	fmtInt   map[int][]int32
	fmtFloat map[int][]float32
	fmtStr   map[int][][]byte

	filters []int
}

// NewMemRecord returns an empty record; use the With* builders to
// populate it.
func NewMemRecord() *MemRecord {
	return &MemRecord{
		info:     make(map[int]InfoValue),
		infoVec:  make(map[int][]float64),
		flags:    make(map[int]bool),
		fmtInt:   make(map[int][]int32),
		fmtFloat: make(map[int][]float32),
		fmtStr:   make(map[int][][]byte),
	}
}

func (r *MemRecord) WithQual(q float64) *MemRecord {
	r.qual = &q
	return r
}

func (r *MemRecord) WithVariantType(vt VariantType) *MemRecord {
	r.vtype = vt
	return r
}

func (r *MemRecord) WithInfoFloat(id int, v float64) *MemRecord {
	r.info[id] = InfoValue{Num: v}
	return r
}

func (r *MemRecord) WithInfoString(id int, v string) *MemRecord {
	r.info[id] = InfoValue{IsString: true, Str: v}
	return r
}

// WithInfoVector sets a subscriptable vector INFO field; use math.NaN()
// for elements past the end / missing.
func (r *MemRecord) WithInfoVector(id int, values []float64) *MemRecord {
	r.infoVec[id] = values
	return r
}

func (r *MemRecord) WithFlag(id int, present bool) *MemRecord {
	r.flags[id] = present
	return r
}

// WithFormatInt sets a per-sample int32 FORMAT field; use
// Int32Missing/Int32VectorEnd for samples with no value. For a field
// with arity > 1, values must be numSamples*arity long, flattened
// row-major by sample (sample i's element j at i*arity+j).
func (r *MemRecord) WithFormatInt(id int, values []int32) *MemRecord {
	r.fmtInt[id] = values
	return r
}

// WithFormatFloat sets a per-sample float32 FORMAT field; use a NaN
// (any NaN - see IsFloat32Missing) for samples with no value. Follows
// the same flattened row-major layout as WithFormatInt for arity > 1.
func (r *MemRecord) WithFormatFloat(id int, values []float32) *MemRecord {
	r.fmtFloat[id] = values
	return r
}

func (r *MemRecord) WithFormatString(id int, values [][]byte) *MemRecord {
	r.fmtStr[id] = values
	return r
}

func (r *MemRecord) WithFilters(ids ...int) *MemRecord {
	r.filters = ids
	return r
}

func (r *MemRecord) Quality() (float64, bool) {
	if r.qual == nil {
		return 0, false
	}
	return *r.qual, true
}

func (r *MemRecord) VariantType() VariantType {
	return r.vtype
}

func (r *MemRecord) InfoValue(id int) (InfoValue, bool) {
	v, ok := r.info[id]
	return v, ok
}

func (r *MemRecord) InfoValueAt(id int, idx int) (float64, bool) {
	vals, ok := r.infoVec[id]
	if !ok || idx < 0 || idx >= len(vals) {
		return 0, false
	}
	v := vals[idx]
	if v != v { // NaN: missing or vector-end
		return 0, false
	}
	return v, true
}

func (r *MemRecord) InfoPresent(id int) bool {
	return r.flags[id]
}

func (r *MemRecord) FormatInt32(id int) ([]int32, bool) {
	v, ok := r.fmtInt[id]
	return v, ok
}

func (r *MemRecord) FormatFloat32(id int) ([]float32, bool) {
	v, ok := r.fmtFloat[id]
	return v, ok
}

func (r *MemRecord) FormatString(id int) ([][]byte, bool) {
	v, ok := r.fmtStr[id]
	return v, ok
}

func (r *MemRecord) FilterIDs() []int {
	return r.filters
}

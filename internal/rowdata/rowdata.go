package rowdata

import "github.com/apecloud/dts/internal/position"

// RowType discriminates an insert/update/delete row-change event.
type RowType int

const (
	RowTypeInsert RowType = iota
	RowTypeUpdate
	RowTypeDelete
)

func (t RowType) String() string {
	switch t {
	case RowTypeInsert:
		return "insert"
	case RowTypeUpdate:
		return "update"
	case RowTypeDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// RowData is the uniform internal row-change event every decoder emits
// and every sinker consumes (spec.md §3). Exactly one of Before/After is
// set for Insert and Delete; both are set for Update.
//
// Invariant: for RowTypeUpdate, both Before and After must be non-nil
// and their key columns (per the owning TbMeta's IDCols) must be
// non-null. Callers that build RowData directly (tests, fakes) are
// responsible for this; the constructors below set Before/After by row
// type but do not check key columns, since validating "key columns are
// non-null" requires the TbMeta that callers may not have handy at
// construction time.
type RowData struct {
	Schema   string
	Tb       string
	RowType  RowType
	Before   map[string]ColValue
	After    map[string]ColValue
	Position position.Position
	DataSize uint64
}

// NewInsert builds an Insert RowData; After only.
func NewInsert(schema, tb string, after map[string]ColValue, pos position.Position) RowData {
	return RowData{Schema: schema, Tb: tb, RowType: RowTypeInsert, After: after, Position: pos}
}

// NewDelete builds a Delete RowData; Before only.
func NewDelete(schema, tb string, before map[string]ColValue, pos position.Position) RowData {
	return RowData{Schema: schema, Tb: tb, RowType: RowTypeDelete, Before: before, Position: pos}
}

// NewUpdate builds an Update RowData; both Before and After are set.
func NewUpdate(schema, tb string, before, after map[string]ColValue, pos position.Position) RowData {
	return RowData{Schema: schema, Tb: tb, RowType: RowTypeUpdate, Before: before, After: after, Position: pos}
}

// IDColValues extracts the id-column values this row should be keyed by
// for partitioning and batched DELETE/SELECT construction. For Update
// and Delete rows the key is read from Before (the row as it existed
// before this change); for Insert it is read from After.
func (r RowData) IDColValues(idCols []string) map[string]ColValue {
	src := r.After
	if r.RowType == RowTypeDelete || r.RowType == RowTypeUpdate {
		src = r.Before
	}
	out := make(map[string]ColValue, len(idCols))
	for _, c := range idCols {
		if v, ok := src[c]; ok {
			out[c] = v
		}
	}
	return out
}

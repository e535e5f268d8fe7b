package rowdata

// ColType is a dialect-specific physical column type tag. MysqlColType
// and PgColType values both flow through this alias; the codec packages
// are the only consumers that interpret the string.
type ColType string

// Column describes one column's name, physical type, and nullability in
// declaration order.
type Column struct {
	Name     string
	Type     ColType
	Nullable bool
}

// Key is one named primary or unique constraint and its ordered column
// list.
type Key struct {
	Name string
	Cols []string
}

// TbMeta is the per-table descriptor returned by the metadata manager
// (spec.md §4.1): the ordered column list, the key_map of every primary
// and unique constraint, and the id_cols/order_col/partition_col derived
// from it by ParseRdbCols.
type TbMeta struct {
	Schema string
	Tb     string
	Cols   []Column

	// KeyMap lists every primary and unique constraint in the order the
	// metadata manager's INFORMATION_SCHEMA query returned them. The
	// primary key, when present, is named "primary". Order matters:
	// ParseRdbCols breaks ties among equal-length unique keys by this
	// slice's order, so it must be stable across restarts (a plain Go
	// map cannot offer that guarantee).
	KeyMap []Key

	RdbTbMeta
}

// RdbTbMeta holds the fields ParseRdbCols derives from a TbMeta's
// KeyMap and column list. It is split out from TbMeta so codec and
// filter code that only needs the derived shape can take it by value
// without carrying the full column list.
type RdbTbMeta struct {
	IDCols       []string
	OrderCol     string
	HasOrderCol  bool
	PartitionCol string
}

// ColNames returns the table's column names in declaration order.
func (m TbMeta) ColNames() []string {
	names := make([]string, len(m.Cols))
	for i, c := range m.Cols {
		names[i] = c.Name
	}
	return names
}

// NewTbMeta builds a TbMeta and derives its RdbTbMeta via ParseRdbCols.
func NewTbMeta(schema, tb string, cols []Column, keyMap []Key) TbMeta {
	m := TbMeta{Schema: schema, Tb: tb, Cols: cols, KeyMap: keyMap}
	m.RdbTbMeta = ParseRdbCols(keyMap, m.ColNames())
	return m
}

// ParseRdbCols derives (order_col, partition_col, id_cols) from a
// table's key_map and full column list (spec.md §4.1):
//
//   - if a "primary" key exists, id_cols is its column list;
//   - else id_cols is the unique key with the fewest columns, the first
//     one encountered (in keyMap order) winning ties;
//   - else id_cols is every column.
//
// order_col is id_cols[0] only when id_cols has exactly one column.
// partition_col is always id_cols[0].
func ParseRdbCols(keyMap []Key, cols []string) RdbTbMeta {
	var idCols []string
	for _, k := range keyMap {
		if k.Name == "primary" && len(k.Cols) > 0 {
			idCols = k.Cols
			break
		}
	}
	if idCols == nil {
		for _, k := range keyMap {
			if k.Name == "primary" || len(k.Cols) == 0 {
				continue
			}
			if idCols == nil || len(k.Cols) < len(idCols) {
				idCols = k.Cols
			}
		}
	}
	if idCols == nil {
		idCols = cols
	}

	r := RdbTbMeta{IDCols: idCols}
	if len(idCols) == 1 {
		r.OrderCol = idCols[0]
		r.HasOrderCol = true
	}
	if len(idCols) > 0 {
		r.PartitionCol = idCols[0]
	}
	return r
}

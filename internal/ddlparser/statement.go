package ddlparser

// Kind discriminates the recognized DDL statement shapes (spec.md
// §4.3).
type Kind int

const (
	KindCreateDatabase Kind = iota
	KindDropDatabase
	KindAlterDatabase
	KindCreateSchema
	KindDropSchema
	KindAlterSchema
	KindCreateTable
	KindDropTable
	KindAlterTable
	KindAlterTableRename
	KindAlterTableSetSchema
	KindTruncateTable
	KindRenameTable
	KindCreateIndex
	KindDropIndex
)

// TableRef names one (schema, tb) pair. Schema is empty when the
// statement did not qualify the name.
type TableRef struct {
	Schema, Tb string
}

// Statement is a parsed DDL statement. Exactly the fields relevant to
// Kind are populated; every variant carries Unparsed, the verbatim
// remainder of the source text after the recognized prefix, so that
// to_sql can reproduce column lists, index column lists, and other
// clauses this parser does not itself interpret.
type Statement struct {
	Kind    Kind
	Dialect Dialect
	// DefaultSchema threads the default schema/database a DDL targeting only a
	// bare table name is resolved against (e.g. a MySQL "USE db;" seen
	// earlier in the same session), following
	// dt-common's DdlData.default_schema.
	DefaultSchema string
	Unparsed      string

	// CreateDatabase / DropDatabase / AlterDatabase / CreateSchema /
	// DropSchema / AlterSchema
	Db          string
	IfExists    bool
	IfNotExists bool

	// CreateTable
	Table       TableRef
	Temporary   bool
	TempKind    string // PostgreSQL: "TEMPORARY" | "TEMP", optionally prefixed by "GLOBAL " or "LOCAL "; "" otherwise
	Unlogged    bool

	// DropTable / TruncateTable (multi-target)
	Targets []TableRef
	Only    bool

	// AlterTable / AlterTableRename / AlterTableSetSchema
	RenameTo  TableRef
	NewSchema string

	// RenameTable (MySQL multi-pair)
	RenamePairs [][2]TableRef

	// CreateIndex / DropIndex
	IndexName     string
	IndexTargets  []string
	Unique        bool
	Fulltext      bool
	Spatial       bool
	Concurrently  bool
	Using         string
}

// AffectedTables returns every (schema, tb) pair this statement
// references, for metadata-cache invalidation (spec.md §4.1) — both
// sides of a rename are included.
func (s *Statement) AffectedTables() []TableRef {
	resolve := func(r TableRef) TableRef {
		if r.Schema == "" {
			r.Schema = s.DefaultSchema
		}
		return r
	}

	switch s.Kind {
	case KindCreateTable:
		return []TableRef{resolve(s.Table)}
	case KindDropTable, KindTruncateTable:
		out := make([]TableRef, len(s.Targets))
		for i, t := range s.Targets {
			out[i] = resolve(t)
		}
		return out
	case KindAlterTable:
		return []TableRef{resolve(s.Table)}
	case KindAlterTableRename:
		return []TableRef{resolve(s.Table), resolve(s.RenameTo)}
	case KindAlterTableSetSchema:
		return []TableRef{resolve(s.Table), {Schema: s.NewSchema, Tb: s.Table.Tb}}
	case KindRenameTable:
		var out []TableRef
		for _, pair := range s.RenamePairs {
			out = append(out, resolve(pair[0]), resolve(pair[1]))
		}
		return out
	case KindCreateIndex:
		return []TableRef{resolve(s.Table)}
	case KindDropIndex:
		if s.Dialect == DialectMySQL {
			return []TableRef{resolve(s.Table)}
		}
		return nil
	default:
		return nil
	}
}

package filter

import (
	"strings"

	"github.com/apecloud/dts/internal/config"
)

// Router implements the db/tb/field remapping described in spec.md
// §4.6. Maps are parsed from comma-separated "key:value" pairs.
type Router struct {
	dbMap    map[string]string
	tbMap    map[string]string
	fieldMap map[string]map[string]string // "db.tb" -> old field -> new field
}

// RouterFromConfig builds a Router from the [router] section. field_map
// entries are grouped by "db.tb": a raw value like
// "db1.tb1.col1:new_col1,db1.tb1.col2:new_col2" yields one remap table
// per table.
func RouterFromConfig(rc config.RouterConfig) *Router {
	r := &Router{
		dbMap:    parseMap(rc.DbMap),
		tbMap:    parseMap(rc.TbMap),
		fieldMap: make(map[string]map[string]string),
	}
	for key, newCol := range parseMap(rc.FieldMap) {
		idx := strings.LastIndex(key, ".")
		if idx < 0 {
			continue
		}
		tbKey, oldCol := key[:idx], key[idx+1:]
		if r.fieldMap[tbKey] == nil {
			r.fieldMap[tbKey] = make(map[string]string)
		}
		r.fieldMap[tbKey][oldCol] = newCol
	}
	return r
}

func parseMap(raw string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		idx := strings.LastIndex(pair, ":")
		if idx < 0 {
			continue
		}
		out[pair[:idx]] = pair[idx+1:]
	}
	return out
}

// GetDbMap looks up a destination database name: exact db, else "*",
// else passthrough.
func (r *Router) GetDbMap(db string) string {
	if v, ok := r.dbMap[db]; ok {
		return v
	}
	if v, ok := r.dbMap["*"]; ok {
		return v
	}
	return db
}

// GetTbMap looks up a destination (db, tb): "db.tb" in tb_map, else db
// in db_map, else "*" in db_map, else passthrough (spec.md §4.6).
func (r *Router) GetTbMap(db, tb string) (string, string) {
	if v, ok := r.tbMap[db+"."+tb]; ok {
		idx := strings.LastIndex(v, ".")
		if idx >= 0 {
			return v[:idx], v[idx+1:]
		}
		return v, tb
	}
	return r.GetDbMap(db), tb
}

// GetFieldMap returns the old-column to new-column remap table for
// (db, tb), or nil if none is configured.
func (r *Router) GetFieldMap(db, tb string) map[string]string {
	return r.fieldMap[db+"."+tb]
}

// Reverse builds a router with every mapping inverted, for sinks that
// emit identifiers in source space and need to be mapped back.
func (r *Router) Reverse() *Router {
	rev := &Router{
		dbMap:    invert(r.dbMap),
		tbMap:    invert(r.tbMap),
		fieldMap: make(map[string]map[string]string),
	}
	for tbKey, cols := range r.fieldMap {
		rev.fieldMap[tbKey] = invert(cols)
	}
	return rev
}

func invert(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}

// Package filter implements the filter and router engine (spec.md
// §4.6): do/ignore rules over databases, tables, events, DDL types, and
// structures, plus the db/tb/field remapping router.
package filter

import (
	"regexp"
	"strings"
	"sync"

	"github.com/apecloud/dts/internal/config"
	"github.com/apecloud/dts/internal/dtserr"
)

type tbKey struct{ db, tb string }

// Filter evaluates the do/ignore rule sets from [filter] against
// incoming schema, table, event, DDL, and structure names. It is safe
// for concurrent use; filter_tb results are memoized in a (db,tb)→bool
// cache guarded by a mutex, matching the single shared filter instance
// every pipeline worker consults.
type Filter struct {
	dialect Dialect

	doDbs        map[string]struct{}
	ignoreDbs    map[string]struct{}
	doTbs        map[tbKey]struct{}
	ignoreTbs    map[tbKey]struct{}
	doEvents     map[string]struct{}
	doStructures map[string]struct{}
	doDdls       map[string]struct{}
	ignoreCmds   map[string]struct{}

	mu    sync.Mutex
	cache map[tbKey]bool
}

// FromConfig builds a Filter from the [filter] section of a task
// configuration.
func FromConfig(fc config.FilterConfig, dialect Dialect) (*Filter, error) {
	f := &Filter{
		dialect: dialect,
		cache:   make(map[tbKey]bool),
	}

	var err error
	if f.doDbs, err = parseSingleSet(fc.DoDbs, dialect); err != nil {
		return nil, err
	}
	if f.ignoreDbs, err = parseSingleSet(fc.IgnoreDbs, dialect); err != nil {
		return nil, err
	}
	if f.doTbs, err = parsePairSet(fc.DoTbs, dialect); err != nil {
		return nil, err
	}
	if f.ignoreTbs, err = parsePairSet(fc.IgnoreTbs, dialect); err != nil {
		return nil, err
	}
	if f.doEvents, err = parseSingleSet(fc.DoEvents, dialect); err != nil {
		return nil, err
	}
	if f.doStructures, err = parseSingleSet(fc.DoStructures, dialect); err != nil {
		return nil, err
	}
	if f.doDdls, err = parseSingleSet(fc.DoDdls, dialect); err != nil {
		return nil, err
	}
	if f.ignoreCmds, err = parseSingleSet(fc.IgnoreCmds, dialect); err != nil {
		return nil, err
	}
	return f, nil
}

func parseSingleSet(raw string, d Dialect) (map[string]struct{}, error) {
	toks := ParseTokens(raw, d)
	set := make(map[string]struct{}, len(toks))
	for _, t := range toks {
		set[t] = struct{}{}
	}
	return set, nil
}

func parsePairSet(raw string, d Dialect) (map[tbKey]struct{}, error) {
	toks := ParseTokens(raw, d)
	if len(toks)%2 != 0 {
		return nil, dtserr.NewConfigError("table filter list has an odd number of tokens: " + raw)
	}
	set := make(map[tbKey]struct{}, len(toks)/2)
	for i := 0; i < len(toks); i += 2 {
		set[tbKey{db: toks[i], tb: toks[i+1]}] = struct{}{}
	}
	return set, nil
}

// matchAll reports whether set is exactly {"*"}.
func matchAll(set map[string]struct{}) bool {
	if len(set) != 1 {
		return false
	}
	_, ok := set["*"]
	return ok
}

func containDb(set map[string]struct{}, db string, d Dialect) bool {
	for pattern := range set {
		if matchToken(pattern, db, d) {
			return true
		}
	}
	return false
}

func containTb(set map[tbKey]struct{}, db, tb string, d Dialect) bool {
	for k := range set {
		if matchToken(k.db, db, d) && matchToken(k.tb, tb, d) {
			return true
		}
	}
	return false
}

// matchToken implements spec.md §4.6's matching semantics: a pattern
// fully enclosed in the dialect's escape pair matches literally after
// unescaping; otherwise '*' and '?' are wildcards, '.' is literal, and
// the match is anchored at both ends.
func matchToken(pattern, item string, d Dialect) bool {
	if IsEscaped(pattern, d) {
		return Unescape(pattern, d) == item
	}
	re := wildcardToRegexp(pattern)
	return re.MatchString(item)
}

func wildcardToRegexp(pattern string) *regexp.Regexp {
	var b strings.Builder
	b.WriteByte('^')
	for i := 0; i < len(pattern); i++ {
		switch c := pattern[i]; c {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".?")
		case '.':
			b.WriteString(`\.`)
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	b.WriteByte('$')
	// The pattern alphabet here is fully controlled (wildcards expanded,
	// everything else quoted), so compilation cannot fail.
	return regexp.MustCompile(b.String())
}

// FilterDb reports whether db should be skipped entirely: true if
// ignore_dbs matches db or ignore_tbs matches db.* ; otherwise false iff
// do_dbs matches db or some do_tbs entry's db half matches.
func (f *Filter) FilterDb(db string) bool {
	if containTb(f.ignoreTbs, db, "*", f.dialect) || containDb(f.ignoreDbs, db, f.dialect) {
		return true
	}
	keep := containDb(f.doDbs, db, f.dialect) || f.doTbDbMatches(db)
	return !keep
}

func (f *Filter) doTbDbMatches(db string) bool {
	for k := range f.doTbs {
		if matchToken(k.db, db, f.dialect) {
			return true
		}
	}
	return false
}

// FilterTb reports whether (db, tb) should be skipped, memoized per
// (db, tb) pair.
func (f *Filter) FilterTb(db, tb string) bool {
	key := tbKey{db, tb}

	f.mu.Lock()
	if v, ok := f.cache[key]; ok {
		f.mu.Unlock()
		return v
	}
	f.mu.Unlock()

	ignore := containTb(f.ignoreTbs, db, tb, f.dialect) || containDb(f.ignoreDbs, db, f.dialect)
	keep := containTb(f.doTbs, db, tb, f.dialect) || containDb(f.doDbs, db, f.dialect)
	result := ignore || !keep

	f.mu.Lock()
	f.cache[key] = result
	f.mu.Unlock()
	return result
}

// FilterEvent additionally requires do_events to contain eventType or
// be "*" before falling back to FilterTb.
func (f *Filter) FilterEvent(db, tb, eventType string) bool {
	if !matchAll(f.doEvents) {
		if _, ok := f.doEvents[eventType]; !ok {
			return true
		}
	}
	return f.FilterTb(db, tb)
}

// FilterAllDdl reports whether do_ddls is empty, meaning no DDL
// statement is ever kept.
func (f *Filter) FilterAllDdl() bool {
	return len(f.doDdls) == 0
}

// FilterDdl reports whether a DDL statement of ddlType against (db, tb)
// should be skipped. tb == "" addresses a database-level statement.
func (f *Filter) FilterDdl(db, tb, ddlType string) bool {
	if !matchAll(f.doDdls) {
		if _, ok := f.doDdls[ddlType]; !ok {
			return true
		}
	}
	if tb == "" {
		return f.FilterDb(db)
	}
	return f.FilterTb(db, tb)
}

// FilterStructure reports whether a struct-migration object of
// structureType should be skipped.
func (f *Filter) FilterStructure(structureType string) bool {
	if matchAll(f.doStructures) {
		return false
	}
	_, ok := f.doStructures[structureType]
	return !ok
}

// FilterCmd reports whether a Redis command should be skipped.
func (f *Filter) FilterCmd(cmd string) bool {
	_, ok := f.ignoreCmds[cmd]
	return ok
}

// AddIgnoreTb adds a (db, tb) pair to ignore_tbs at runtime, used when a
// downstream component (e.g. struct migration skipping a heartbeat
// table) discovers a table that must be excluded after the filter was
// built. It invalidates any cached decision for that pair.
func (f *Filter) AddIgnoreTb(db, tb string) {
	if f.ignoreTbs == nil {
		f.ignoreTbs = make(map[tbKey]struct{})
	}
	f.ignoreTbs[tbKey{db, tb}] = struct{}{}

	f.mu.Lock()
	delete(f.cache, tbKey{db, tb})
	f.mu.Unlock()
}

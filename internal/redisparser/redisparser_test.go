package redisparser

import (
	"testing"

	"github.com/apecloud/dts/internal/dtserr"
)

func TestCalcSlotMatchesReferenceValues(t *testing.T) {
	cases := map[string]uint16{
		"somekey":                       11058,
		"中文":                            13257,
		"set_key_3_  😀":                 16210,
		"foo{hash_tag}":                 2515,
		"bar{hash_tag}":                 2515,
		"aaaaa{hash_tag}aaaaa":          2515,
		"中文{hash_tag}set_key_3_  😀":     2515,
		"set_key_3_  😀{hash_tag}中文":     2515,
	}
	for key, want := range cases {
		if got := CalcSlot([]byte(key)); got != want {
			t.Errorf("CalcSlot(%q) = %d, want %d", key, got, want)
		}
	}
}

func TestCalcSlotEmptyHashTagFallsBackToWholeKey(t *testing.T) {
	key := []byte("foo{}bar")
	want := crc16(key) & (slotCount - 1)
	if got := CalcSlot(key); got != want {
		t.Fatalf("expected empty hash tag to fall back to whole-key CRC, got %d want %d", got, want)
	}
}

func newParser(t *testing.T) *KeyParser {
	t.Helper()
	p, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestParseKeyFromArgvSingleKeyCommand(t *testing.T) {
	p := newParser(t)
	cmd, group, keys, idx, err := p.ParseKeyFromArgv([]string{"get", "foo"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmd != "GET" || group != "string" {
		t.Fatalf("unexpected cmd/group: %q/%q", cmd, group)
	}
	if len(keys) != 1 || keys[0] != "foo" || idx[0] != 2 {
		t.Fatalf("unexpected keys/idx: %v %v", keys, idx)
	}
}

func TestParseKeyFromArgvMsetSteppedPairs(t *testing.T) {
	p := newParser(t)
	_, _, keys, idx, err := p.ParseKeyFromArgv([]string{"MSET", "a", "1", "b", "2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Fatalf("unexpected keys: %v", keys)
	}
	if idx[0] != 2 || idx[1] != 4 {
		t.Fatalf("unexpected idx: %v", idx)
	}
}

func TestParseKeyFromArgvDelVariadic(t *testing.T) {
	p := newParser(t)
	_, _, keys, _, err := p.ParseKeyFromArgv([]string{"DEL", "a", "b", "c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keys) != 3 {
		t.Fatalf("expected 3 keys, got %v", keys)
	}
}

func TestParseKeyFromArgvRenameBothSides(t *testing.T) {
	p := newParser(t)
	_, _, keys, _, err := p.ParseKeyFromArgv([]string{"RENAME", "old", "new"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keys) != 2 || keys[0] != "old" || keys[1] != "new" {
		t.Fatalf("unexpected keys: %v", keys)
	}
}

func TestParseKeyFromArgvSortKeywordStore(t *testing.T) {
	p := newParser(t)
	_, _, keys, idx, err := p.ParseKeyFromArgv([]string{"SORT", "mylist", "STORE", "dest"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keys) != 2 || keys[0] != "mylist" || keys[1] != "dest" {
		t.Fatalf("unexpected keys: %v", keys)
	}
	if idx[0] != 2 || idx[1] != 4 {
		t.Fatalf("unexpected idx: %v", idx)
	}
}

func TestParseKeyFromArgvKeynumZunionstore(t *testing.T) {
	p := newParser(t)
	_, _, keys, _, err := p.ParseKeyFromArgv([]string{"ZUNIONSTORE", "dest", "2", "k1", "k2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keys) != 3 || keys[0] != "dest" || keys[1] != "k1" || keys[2] != "k2" {
		t.Fatalf("unexpected keys: %v", keys)
	}
}

func TestParseKeyFromArgvContainerCommand(t *testing.T) {
	p := newParser(t)
	cmd, _, keys, _, err := p.ParseKeyFromArgv([]string{"XGROUP", "CREATE", "stream1", "group1", "$"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmd != "XGROUP-CREATE" {
		t.Fatalf("unexpected cmd name: %q", cmd)
	}
	if len(keys) != 1 || keys[0] != "stream1" {
		t.Fatalf("unexpected keys: %v", keys)
	}
}

func TestParseKeyFromArgvUnknownCommand(t *testing.T) {
	p := newParser(t)
	_, _, _, _, err := p.ParseKeyFromArgv([]string{"NOTACOMMAND", "x"})
	var rerr *dtserr.RedisCmdError
	if err == nil {
		t.Fatal("expected an error for an unknown command")
	}
	if !asRedisCmdError(err, &rerr) {
		t.Fatalf("expected a *dtserr.RedisCmdError, got %T: %v", err, err)
	}
}

func asRedisCmdError(err error, target **dtserr.RedisCmdError) bool {
	if e, ok := err.(*dtserr.RedisCmdError); ok {
		*target = e
		return true
	}
	return false
}

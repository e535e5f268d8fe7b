// Package redisparser implements the Redis command key parser used
// only by the Redis sink (spec.md §4.8): it derives which argv
// positions of a RESP command carry keys, and computes the cluster
// hash slot a key belongs to.
package redisparser

import (
	"embed"
	"encoding/json"
	"fmt"
)

//go:embed data/container_commands.json data/command_metas.json
var dataFS embed.FS

// KeySpec is one begin-search/find-keys rule a command carries. A
// command may list more than one — SORT, for instance, has a mandatory
// key found by index and an optional destination key found by the
// STORE keyword.
type KeySpec struct {
	BeginSearchType      string `json:"begin_search_type"`
	BeginSearchIndex     int    `json:"begin_search_index"`
	BeginSearchStartFrom int    `json:"begin_search_start_from"`
	BeginSearchKeyword   string `json:"begin_search_keyword"`

	FindKeysType           string `json:"find_keys_type"`
	FindKeysRangeLastKey   int    `json:"find_keys_range_last_key"`
	FindKeysRangeLimit     int    `json:"find_keys_range_limit"`
	FindKeysRangeKeyStep   int    `json:"find_keys_range_key_step"`
	FindKeysKeynumIndex    int    `json:"find_keys_keynum_index"`
	FindKeysKeynumFirstKey int    `json:"find_keys_keynum_first_key"`
	FindKeysKeynumKeyStep  int    `json:"find_keys_keynum_key_step"`
}

// CmdMeta is one command's metadata record: its name (upper-cased, and
// CMD-SUBCMD for container commands), its command group, and its
// key-specs.
type CmdMeta struct {
	Name    string    `json:"name"`
	Group   string    `json:"group"`
	KeySpec []KeySpec `json:"key_spec"`
}

func loadContainerCommands() (map[string]struct{}, error) {
	b, err := dataFS.ReadFile("data/container_commands.json")
	if err != nil {
		return nil, fmt.Errorf("read container_commands.json: %w", err)
	}
	var names []string
	if err := json.Unmarshal(b, &names); err != nil {
		return nil, fmt.Errorf("parse container_commands.json: %w", err)
	}
	out := make(map[string]struct{}, len(names))
	for _, n := range names {
		out[n] = struct{}{}
	}
	return out, nil
}

func loadCmdMetas() (map[string]CmdMeta, error) {
	b, err := dataFS.ReadFile("data/command_metas.json")
	if err != nil {
		return nil, fmt.Errorf("read command_metas.json: %w", err)
	}
	var metas []CmdMeta
	if err := json.Unmarshal(b, &metas); err != nil {
		return nil, fmt.Errorf("parse command_metas.json: %w", err)
	}
	out := make(map[string]CmdMeta, len(metas))
	for _, m := range metas {
		out[m.Name] = m
	}
	return out, nil
}

package redisparser

import (
	"strconv"
	"strings"

	"github.com/apecloud/dts/internal/dtserr"
)

// KeyParser extracts the keys a Redis command touches, and the cluster
// slot a key maps to, from two static tables loaded once at
// construction (spec.md §4.8).
type KeyParser struct {
	containerCmds map[string]struct{}
	cmdMetas      map[string]CmdMeta
}

// New loads the embedded container-command set and command-metadata
// table.
func New() (*KeyParser, error) {
	containers, err := loadContainerCommands()
	if err != nil {
		return nil, err
	}
	metas, err := loadCmdMetas()
	if err != nil {
		return nil, err
	}
	return &KeyParser{containerCmds: containers, cmdMetas: metas}, nil
}

// ParseKeyFromArgv resolves the effective command name (CMD-SUBCMD for
// container commands), its command group, and every key the command
// touches paired with its 1-based argv index.
func (p *KeyParser) ParseKeyFromArgv(argv []string) (cmdName, group string, keys []string, keyIndexes []int, err error) {
	if len(argv) == 0 {
		return "", "", nil, nil, dtserr.NewUnexpected("empty redis command argv")
	}

	cmdName = strings.ToUpper(argv[0])
	if _, ok := p.containerCmds[cmdName]; ok {
		if len(argv) < 2 {
			return "", "", nil, nil, &dtserr.RedisCmdError{Cmd: cmdName, Msg: "container command missing subcommand"}
		}
		cmdName = cmdName + "-" + strings.ToUpper(argv[1])
	}

	meta, ok := p.cmdMetas[cmdName]
	if !ok {
		return "", "", nil, nil, &dtserr.RedisCmdError{Cmd: cmdName, Msg: "unknown command"}
	}
	group = meta.Group

	argCount := len(argv)
	for _, spec := range meta.KeySpec {
		begin, err := beginSearch(cmdName, argv, argCount, spec)
		if err != nil {
			return "", "", nil, nil, err
		}

		switch spec.FindKeysType {
		case "range":
			lastKeyIdx := spec.FindKeysRangeLastKey
			if lastKeyIdx >= 0 {
				lastKeyIdx = begin + lastKeyIdx
			} else {
				lastKeyIdx = argCount + lastKeyIdx
			}

			limit := int(^uint(0) >> 1) // math.MaxInt, matching Rust's i32::max_value() sentinel for "no limit"
			if spec.FindKeysRangeLimit >= 2 {
				limit = (argCount - begin) / spec.FindKeysRangeLimit
			}

			step := spec.FindKeysRangeKeyStep
			if step <= 0 {
				step = 1
			}
			for idx := begin; idx <= lastKeyIdx; idx += step {
				if idx < 0 || idx >= argCount {
					break
				}
				keys = append(keys, argv[idx])
				keyIndexes = append(keyIndexes, idx+1)
				limit--
				if limit <= 0 {
					break
				}
			}

		case "keynum":
			keynumIdx := begin + spec.FindKeysKeynumIndex
			if keynumIdx < 0 || keynumIdx > argCount {
				return "", "", nil, nil, &dtserr.RedisCmdError{Cmd: cmdName, Msg: "wrong keynumidx"}
			}
			count, perr := strconv.Atoi(argv[keynumIdx])
			if perr != nil {
				return "", "", nil, nil, &dtserr.RedisCmdError{Cmd: cmdName, Msg: "keynum argument is not an integer"}
			}
			step := spec.FindKeysKeynumKeyStep
			if step <= 0 {
				step = 1
			}
			idx := begin + spec.FindKeysKeynumFirstKey
			for n := 0; n < count; n++ {
				if idx < 0 || idx >= argCount {
					break
				}
				keys = append(keys, argv[idx])
				keyIndexes = append(keyIndexes, idx+1)
				idx += step
			}

		default:
			return "", "", nil, nil, &dtserr.RedisCmdError{Cmd: cmdName, Msg: "unsupported find_keys_type: " + spec.FindKeysType}
		}
	}

	return cmdName, group, keys, keyIndexes, nil
}

// beginSearch resolves the 0-based argv index a key-spec's key search
// should start from.
func beginSearch(cmdName string, argv []string, argCount int, spec KeySpec) (int, error) {
	switch spec.BeginSearchType {
	case "index":
		return spec.BeginSearchIndex, nil

	case "keyword":
		idx, step := spec.BeginSearchStartFrom, 1
		if idx <= 0 {
			idx, step = argCount+spec.BeginSearchStartFrom, -1
		}
		for {
			if idx <= 0 || idx >= argCount {
				return 0, &dtserr.RedisCmdError{Cmd: cmdName, Msg: "keyword not found: " + spec.BeginSearchKeyword}
			}
			if strings.EqualFold(argv[idx], spec.BeginSearchKeyword) {
				return idx + 1, nil
			}
			idx += step
		}

	default:
		return 0, &dtserr.RedisCmdError{Cmd: cmdName, Msg: "unsupported begin_search_type: " + spec.BeginSearchType}
	}
}

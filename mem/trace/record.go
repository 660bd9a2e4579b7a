// Package trace reads memory-access traces and replays them against a cache.
package trace

import "fmt"

// Op is the operation character of a trace record.
type Op byte

// Operations found in traces. Only loads, stores and modifies touch the data
// cache. Instruction fetches and any other operation are ignored.
const (
	OpLoad        Op = 'L'
	OpStore       Op = 'S'
	OpModify      Op = 'M'
	OpInstruction Op = 'I'
)

// NumAccesses returns how many cache accesses the operation performs.
func (o Op) NumAccesses() int {
	switch o {
	case OpLoad, OpStore:
		return 1
	case OpModify:
		return 2
	default:
		return 0
	}
}

func (o Op) String() string {
	return string(rune(o))
}

// Record is one memory reference of a trace. Size is kept for reporting; the
// cache treats every reference as a single line access.
type Record struct {
	Op      Op
	Address uint64
	Size    int
}

func (r Record) String() string {
	return fmt.Sprintf("%c %x,%d", r.Op, r.Address, r.Size)
}

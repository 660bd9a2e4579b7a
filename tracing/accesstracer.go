// Package tracing records cache activity into a data recorder.
package tracing

import (
	"fmt"

	"github.com/sarchlab/cachesim/datarecording"
	"github.com/sarchlab/cachesim/mem/cache"
	"github.com/sarchlab/cachesim/sim/hooking"
	"github.com/sarchlab/cachesim/stats"
)

// Names of the tables written by the AccessTracer.
const (
	AccessTable     = "access"
	RunSummaryTable = "run_summary"
)

// AccessEntry is one row of the access table. Tags are stored as hex strings
// because SQLite integers cannot hold every 64-bit tag.
type AccessEntry struct {
	Seq        int64
	SetID      int64
	Tag        string
	Outcome    string
	EvictedTag string
	Time       int64
}

// RunSummaryEntry is one row of the run summary table.
type RunSummaryEntry struct {
	ID        string
	SetBits   int
	Lines     int
	BlockBits int
	Trace     string
	Hits      int64
	Misses    int64
	Evictions int64
}

// RunInfo identifies a simulation run in the summary table.
type RunInfo struct {
	ID       string
	Geometry cache.Geometry
	Trace    string
}

// AccessTracer is a cache hook that writes every access into a data
// recorder.
type AccessTracer struct {
	recorder datarecording.DataRecorder
	seq      int64
}

// NewAccessTracer creates the tracer and its tables.
func NewAccessTracer(recorder datarecording.DataRecorder) *AccessTracer {
	t := &AccessTracer{
		recorder: recorder,
	}

	t.recorder.CreateTable(AccessTable, AccessEntry{})
	t.recorder.CreateTable(RunSummaryTable, RunSummaryEntry{})

	return t
}

// NumAccesses returns the number of accesses recorded.
func (t *AccessTracer) NumAccesses() int64 {
	return t.seq
}

// Func records cache accesses and ignores everything else.
func (t *AccessTracer) Func(ctx hooking.HookCtx) {
	if ctx.Pos != cache.HookPosAccess {
		return
	}

	item, ok := ctx.Item.(cache.AccessItem)
	if !ok {
		return
	}

	entry := AccessEntry{
		Seq:     t.seq,
		SetID:   int64(item.SetID),
		Tag:     hexTag(item.Tag),
		Outcome: item.Outcome.Kind.String(),
		Time:    int64(item.Time),
	}

	if item.Outcome.Evicted() {
		entry.EvictedTag = hexTag(item.Outcome.EvictedTag)
	}

	t.recorder.InsertData(AccessTable, entry)
	t.seq++
}

// Finish records the summary of the run and flushes the recorder.
func (t *AccessTracer) Finish(run RunInfo, summary stats.Summary) {
	t.recorder.InsertData(RunSummaryTable, RunSummaryEntry{
		ID:        run.ID,
		SetBits:   run.Geometry.SetBits,
		Lines:     run.Geometry.Lines,
		BlockBits: run.Geometry.BlockBits,
		Trace:     run.Trace,
		Hits:      int64(summary.Hits),
		Misses:    int64(summary.Misses),
		Evictions: int64(summary.Evictions),
	})

	t.recorder.Flush()
}

func hexTag(tag uint64) string {
	return fmt.Sprintf("%x", tag)
}

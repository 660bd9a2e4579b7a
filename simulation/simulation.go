// Package simulation puts together the cache, the trace driver, and the
// optional recording and monitoring services of one simulation session.
package simulation

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sarchlab/cachesim/datarecording"
	"github.com/sarchlab/cachesim/mem/cache"
	"github.com/sarchlab/cachesim/mem/trace"
	"github.com/sarchlab/cachesim/monitoring"
	"github.com/sarchlab/cachesim/sim/hooking"
	"github.com/sarchlab/cachesim/stats"
	"github.com/sarchlab/cachesim/tracing"
	"github.com/sirupsen/logrus"
)

// A Simulation owns one cache and the counters of the accesses made to it.
// Simulations share no state, so several of them can run concurrently.
type Simulation struct {
	id         string
	cache      *cache.Cache
	aggregator *stats.Aggregator
	driver     *trace.Driver
	logger     logrus.FieldLogger

	recorder datarecording.DataRecorder
	tracer   *tracing.AccessTracer

	monitor    *monitoring.Monitor
	monitorURL string
	progress   *progressTracker
}

// ID returns the unique ID of the simulation.
func (s *Simulation) ID() string {
	return s.id
}

// Cache returns the simulated cache.
func (s *Simulation) Cache() *cache.Cache {
	return s.cache
}

// Aggregator returns the counters of the simulation.
func (s *Simulation) Aggregator() *stats.Aggregator {
	return s.aggregator
}

// Driver returns the driver that replays traces.
func (s *Simulation) Driver() *trace.Driver {
	return s.driver
}

// MonitorURL returns the address of the monitoring server, or an empty string
// if monitoring is off.
func (s *Simulation) MonitorURL() string {
	return s.monitorURL
}

// RunTraceFile replays the trace file at path and returns the counters.
func (s *Simulation) RunTraceFile(path string) (stats.Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return stats.Summary{}, fmt.Errorf("opening trace: %w", err)
	}
	defer f.Close()

	var size int64

	info, err := f.Stat()
	if err == nil {
		size = info.Size()
	}

	return s.run(f, path, size)
}

// RunReader replays a trace read from r and returns the counters.
func (s *Simulation) RunReader(r io.Reader) (stats.Summary, error) {
	return s.run(r, "", 0)
}

func (s *Simulation) run(
	r io.Reader,
	name string,
	size int64,
) (stats.Summary, error) {
	if s.progress != nil {
		bar := s.monitor.CreateProgressBar(progressBarName(name), uint64(size))
		s.progress.start(bar)

		defer s.monitor.CompleteProgressBar(bar)
		defer s.progress.stop()
	}

	numRecords, err := s.driver.Run(trace.NewReader(r))
	summary := s.aggregator.Summary()

	if s.tracer != nil {
		s.tracer.Finish(tracing.RunInfo{
			ID:       s.id,
			Geometry: s.cache.Geometry(),
			Trace:    name,
		}, summary)
	}

	if err != nil {
		return summary, err
	}

	s.logger.WithFields(logrus.Fields{
		"trace":   name,
		"records": numRecords,
		"summary": summary.String(),
	}).Debug("trace replayed")

	return summary, nil
}

// Terminate stops the monitoring server and closes the recorder.
func (s *Simulation) Terminate() error {
	var errs []error

	if s.monitor != nil {
		errs = append(errs, s.monitor.StopServer())
	}

	if s.recorder != nil {
		errs = append(errs, s.recorder.Close())
	}

	return errors.Join(errs...)
}

func progressBarName(name string) string {
	if name == "" {
		return "trace"
	}

	return name
}

// progressTracker moves the active progress bar forward as the driver reads
// through the trace. The bytes of the record being replayed are in progress
// until the record ends.
type progressTracker struct {
	bar        *monitoring.ProgressBar
	reported   int64
	inProgress uint64
}

func (p *progressTracker) start(bar *monitoring.ProgressBar) {
	p.bar = bar
	p.reported = 0
	p.inProgress = 0
}

func (p *progressTracker) stop() {
	p.bar = nil
}

func (p *progressTracker) Func(ctx hooking.HookCtx) {
	if p.bar == nil {
		return
	}

	item := ctx.Item.(trace.RecordItem)

	switch ctx.Pos {
	case trace.HookPosRecordStart:
		if item.BytesRead > p.reported {
			p.inProgress = uint64(item.BytesRead - p.reported)
			p.bar.IncrementInProgress(p.inProgress)
		}
	case trace.HookPosRecordEnd:
		p.bar.MoveInProgressToFinished(p.inProgress)
		p.inProgress = 0

		if item.BytesRead > p.reported {
			p.reported = item.BytesRead
		}
	}
}

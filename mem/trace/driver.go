package trace

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sarchlab/cachesim/mem/cache"
	"github.com/sarchlab/cachesim/sim/hooking"
	"github.com/sirupsen/logrus"
)

// Hook positions of the driver. The hook item is a RecordItem.
var (
	HookPosRecordStart = &hooking.HookPos{Name: "RecordStart"}
	HookPosRecordEnd   = &hooking.HookPos{Name: "RecordEnd"}
)

// RecordItem describes the processing of one record to the hooks. Outcomes is
// empty at the start of a record and for ignored operations.
type RecordItem struct {
	Index     int
	Record    Record
	Outcomes  []cache.Outcome
	BytesRead int64
}

// A Cache is what the driver replays records against.
type Cache interface {
	Geometry() cache.Geometry
	Access(setID int, tag uint64) cache.Outcome
}

// Driver replays trace records against a cache, one record at a time and in
// order.
type Driver struct {
	hooking.HookableBase

	cache   Cache
	verbose io.Writer
	logger  logrus.FieldLogger

	numRecords int
}

// NewDriver creates a driver for the given cache.
func NewDriver(c Cache) *Driver {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	return &Driver{
		cache:  c,
		logger: logger,
	}
}

// WithVerboseOutput makes the driver write one line per handled record to w.
func (d *Driver) WithVerboseOutput(w io.Writer) *Driver {
	d.verbose = w
	return d
}

// WithLogger sets the logger used to report truncated traces.
func (d *Driver) WithLogger(logger logrus.FieldLogger) *Driver {
	d.logger = logger
	return d
}

// NumRecords returns the number of records seen, including ignored ones.
func (d *Driver) NumRecords() int {
	return d.numRecords
}

// Process replays a single record and returns the outcomes of its accesses.
// Records with an unknown operation produce no outcome.
func (d *Driver) Process(rec Record) ([]cache.Outcome, error) {
	return d.process(rec, 0)
}

func (d *Driver) process(rec Record, bytesRead int64) ([]cache.Outcome, error) {
	item := RecordItem{
		Index:     d.numRecords,
		Record:    rec,
		BytesRead: bytesRead,
	}
	d.numRecords++

	d.invokeRecordHook(HookPosRecordStart, item)

	numAccesses := rec.Op.NumAccesses()
	if numAccesses > 0 {
		tag, setID := d.cache.Geometry().Decompose(rec.Address)

		for i := 0; i < numAccesses; i++ {
			item.Outcomes = append(item.Outcomes, d.cache.Access(setID, tag))
		}
	}

	d.invokeRecordHook(HookPosRecordEnd, item)

	if numAccesses == 0 {
		return nil, nil
	}

	return item.Outcomes, d.writeVerbose(rec, item.Outcomes)
}

// Run replays all the records of r. A malformed line ends the trace without
// an error. It returns the number of records read.
func (d *Driver) Run(r *Reader) (int, error) {
	processed := 0

	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return processed, nil
		}

		if errors.Is(err, ErrMalformedRecord) {
			d.logger.WithFields(logrus.Fields{
				"line":  r.Line(),
				"error": err,
			}).Warn("trace truncated at malformed line")

			return processed, nil
		}

		if err != nil {
			return processed, fmt.Errorf("reading trace: %w", err)
		}

		_, err = d.process(rec, r.BytesRead())
		if err != nil {
			return processed, fmt.Errorf("writing verbose output: %w", err)
		}

		processed++
	}
}

func (d *Driver) writeVerbose(rec Record, outcomes []cache.Outcome) error {
	if d.verbose == nil {
		return nil
	}

	labels := make([]string, 0, len(outcomes)+1)
	for _, o := range outcomes {
		labels = append(labels, o.Labels()...)
	}

	_, err := fmt.Fprintf(d.verbose, "%s %s\n", rec, strings.Join(labels, " "))

	return err
}

func (d *Driver) invokeRecordHook(pos *hooking.HookPos, item RecordItem) {
	if d.NumHooks() == 0 {
		return
	}

	d.InvokeHook(hooking.HookCtx{
		Domain: d,
		Pos:    pos,
		Item:   item,
	})
}

package simulation

import (
	"fmt"
	"io"

	"github.com/rs/xid"
	"github.com/sarchlab/cachesim/datarecording"
	"github.com/sarchlab/cachesim/mem/cache"
	"github.com/sarchlab/cachesim/mem/trace"
	"github.com/sarchlab/cachesim/monitoring"
	"github.com/sarchlab/cachesim/stats"
	"github.com/sarchlab/cachesim/tracing"
	"github.com/sirupsen/logrus"
)

// Builder can be used to build a simulation.
type Builder struct {
	geometry       cache.Geometry
	verbose        io.Writer
	recordingOn    bool
	outputFileName string
	monitorOn      bool
	monitorPort    int
	logger         logrus.FieldLogger
}

// MakeBuilder creates a new builder. By default, the simulated cache has a
// single direct-mapped line and nothing is recorded or monitored.
func MakeBuilder() Builder {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	return Builder{
		geometry: cache.Geometry{SetBits: 0, Lines: 1, BlockBits: 0},
		logger:   logger,
	}
}

// WithGeometry sets the geometry of the simulated cache.
func (b Builder) WithGeometry(g cache.Geometry) Builder {
	b.geometry = g
	return b
}

// WithVerboseOutput makes the simulation write one line per trace record.
func (b Builder) WithVerboseOutput(w io.Writer) Builder {
	b.verbose = w
	return b
}

// WithRecording records every access into a SQLite database. An empty file
// name picks one derived from the simulation ID.
func (b Builder) WithRecording(filename string) Builder {
	b.recordingOn = true
	b.outputFileName = filename

	return b
}

// WithMonitoring turns on the monitoring server.
func (b Builder) WithMonitoring() Builder {
	b.monitorOn = true
	return b
}

// WithMonitorPort sets the port number for the monitoring server.
func (b Builder) WithMonitorPort(port int) Builder {
	b.monitorPort = port
	return b
}

// WithLogger sets the logger used by the simulation.
func (b Builder) WithLogger(logger logrus.FieldLogger) Builder {
	b.logger = logger
	return b
}

func (b Builder) parametersMustBeValid() {
	if !b.monitorOn && b.monitorPort != 0 {
		panic("monitor port cannot be set when monitoring is disabled")
	}
}

// Build builds the simulation.
func (b Builder) Build() (*Simulation, error) {
	b.parametersMustBeValid()

	c, err := cache.MakeBuilder().WithGeometry(b.geometry).Build()
	if err != nil {
		return nil, err
	}

	s := &Simulation{
		id:         xid.New().String(),
		cache:      c,
		aggregator: stats.NewAggregator(),
		logger:     b.logger,
	}

	s.logger = b.logger.WithField("simulation", s.id)

	c.AcceptHook(s.aggregator)

	s.driver = trace.NewDriver(c).WithLogger(s.logger)
	if b.verbose != nil {
		s.driver.WithVerboseOutput(b.verbose)
	}

	if b.recordingOn {
		err = b.buildRecording(s)
		if err != nil {
			return nil, err
		}
	}

	if b.monitorOn {
		err = b.buildMonitor(s)
		if err != nil {
			s.Terminate()
			return nil, err
		}
	}

	s.logger.WithField("geometry", b.geometry.String()).Debug("simulation built")

	return s, nil
}

func (b Builder) buildRecording(s *Simulation) error {
	outputPath := b.outputFileName
	if outputPath == "" {
		outputPath = "csim_" + s.id
	}

	recorder, err := datarecording.New(outputPath)
	if err != nil {
		return fmt.Errorf("creating recorder: %w", err)
	}

	s.recorder = recorder
	s.tracer = tracing.NewAccessTracer(recorder)
	s.cache.AcceptHook(s.tracer)

	return nil
}

func (b Builder) buildMonitor(s *Simulation) error {
	s.monitor = monitoring.NewMonitor().
		WithLogger(s.logger).
		WithPortNumber(b.monitorPort)
	s.monitor.RegisterSummarizer(s.aggregator)
	s.monitor.RegisterGeometry(b.geometry)

	s.progress = &progressTracker{}
	s.driver.AcceptHook(s.progress)

	url, err := s.monitor.StartServer()
	if err != nil {
		return err
	}

	s.monitorURL = url

	return nil
}

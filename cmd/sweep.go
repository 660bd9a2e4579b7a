package cmd

import (
	"bufio"
	"fmt"
	"io"
	"runtime"

	"github.com/sarchlab/cachesim/mem/cache"
	"github.com/sarchlab/cachesim/simulation"
	"github.com/sarchlab/cachesim/stats"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// SweepConfig describes a replay of one trace against many geometries.
type SweepConfig struct {
	TracePath string
	SetBits   []int
	Lines     []int
	BlockBits []int
	Parallel  int
	LogLevel  string
}

// Geometries returns the cartesian product of the swept parameters, with the
// block bits varying fastest.
func (c SweepConfig) Geometries() []cache.Geometry {
	geometries := make([]cache.Geometry, 0,
		len(c.SetBits)*len(c.Lines)*len(c.BlockBits))

	for _, s := range c.SetBits {
		for _, e := range c.Lines {
			for _, b := range c.BlockBits {
				geometries = append(geometries,
					cache.Geometry{SetBits: s, Lines: e, BlockBits: b})
			}
		}
	}

	return geometries
}

// Validate checks the sweep before any simulation is built.
func (c SweepConfig) Validate() error {
	if c.TracePath == "" {
		return fmt.Errorf("%w: trace file is required", ErrInvalidConfig)
	}

	if c.Parallel < 1 {
		return fmt.Errorf("%w: parallelism must be at least 1", ErrInvalidConfig)
	}

	geometries := c.Geometries()
	if len(geometries) == 0 {
		return fmt.Errorf("%w: empty sweep", ErrInvalidConfig)
	}

	for _, g := range geometries {
		err := validateGeometry(g)
		if err != nil {
			return err
		}
	}

	return nil
}

func newSweepCommand(stdout, stderr io.Writer, defaults envDefaults) *cobra.Command {
	cfg := SweepConfig{
		SetBits:   []int{0},
		Lines:     []int{1},
		BlockBits: []int{0},
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Replay one trace against many cache geometries.",
		Long: "sweep replays the same trace against every combination of the " +
			"given set bits, lines, and block bits. Each geometry is simulated " +
			"by an independent session and one summary line is printed per " +
			"geometry, in input order.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger(cfg.LogLevel, stderr)
			if err != nil {
				return err
			}

			err = cfg.Validate()
			if err != nil {
				return err
			}

			cmd.SilenceUsage = true

			return runSweep(cmd, cfg, logger, stdout)
		},
	}

	fs := sweepCmd.Flags()
	fs.StringVarP(&cfg.TracePath, "trace", "t", "", "trace file to replay")
	fs.IntSliceVarP(&cfg.SetBits, "set-bits", "s", cfg.SetBits,
		"set index bits to sweep")
	fs.IntSliceVarP(&cfg.Lines, "lines", "E", cfg.Lines,
		"lines per set to sweep")
	fs.IntSliceVarP(&cfg.BlockBits, "block-bits", "b", cfg.BlockBits,
		"block offset bits to sweep")
	fs.IntVar(&cfg.Parallel, "parallel", runtime.NumCPU(),
		"number of geometries simulated at the same time")
	fs.StringVar(&cfg.LogLevel, "log-level", defaults.logLevel,
		"log level (env "+EnvLogLevel+")")

	err := sweepCmd.MarkFlagRequired("trace")
	if err != nil {
		panic(err)
	}

	return sweepCmd
}

func runSweep(
	cmd *cobra.Command,
	cfg SweepConfig,
	logger *logrus.Logger,
	stdout io.Writer,
) error {
	geometries := cfg.Geometries()
	summaries := make([]stats.Summary, len(geometries))

	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(cfg.Parallel)

	for i, geometry := range geometries {
		i, geometry := i, geometry

		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			summary, err := simulateGeometry(geometry, cfg.TracePath, logger)
			if err != nil {
				return fmt.Errorf("geometry %s: %w", geometry, err)
			}

			summaries[i] = summary

			return nil
		})
	}

	err := g.Wait()
	if err != nil {
		return err
	}

	out := bufio.NewWriter(stdout)

	for i, geometry := range geometries {
		fmt.Fprintf(out, "%s %s\n", geometry, summaries[i])
	}

	return out.Flush()
}

func simulateGeometry(
	geometry cache.Geometry,
	tracePath string,
	logger logrus.FieldLogger,
) (stats.Summary, error) {
	s, err := simulation.MakeBuilder().
		WithGeometry(geometry).
		WithLogger(logger).
		Build()
	if err != nil {
		return stats.Summary{}, err
	}

	defer func() {
		err := s.Terminate()
		if err != nil {
			logger.WithError(err).WithField("geometry", geometry.String()).
				Warn("terminating simulation")
		}
	}()

	return s.RunTraceFile(tracePath)
}

// Package cmd provides the command-line interface of csim.
package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/pkg/browser"
	"github.com/sarchlab/cachesim/simulation"
	"github.com/sarchlab/cachesim/stats"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// NewRootCommand creates the csim command. Simulation output goes to stdout
// and logs go to stderr.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	var cfg Config

	defaults := loadEnvDefaults()

	rootCmd := &cobra.Command{
		Use:   "csim",
		Short: "csim replays a memory trace against a set-associative LRU cache.",
		Long: `csim replays a memory trace against a set-associative cache ` +
			`with LRU replacement and reports the number of hits, misses, ` +
			`and evictions.`,
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

			return runSimulation(cfg, logger, stdout)
		},
	}

	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	fs := rootCmd.Flags()
	bindGeometryFlags(fs, &cfg.Geometry)
	fs.StringVarP(&cfg.TracePath, "trace", "t", "", "trace file to replay")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", false,
		"print the outcome of every trace record")
	bindOperationalFlags(fs, &cfg, defaults)

	for _, name := range []string{"set-bits", "lines", "block-bits", "trace"} {
		err := rootCmd.MarkFlagRequired(name)
		if err != nil {
			panic(err)
		}
	}

	rootCmd.AddCommand(newSweepCommand(stdout, stderr, defaults))
	rootCmd.AddCommand(newReportCommand(stdout))

	return rootCmd
}

// Execute runs the csim command and exits the process.
func Execute() {
	err := NewRootCommand(os.Stdout, os.Stderr).Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

func runSimulation(cfg Config, logger *logrus.Logger, stdout io.Writer) error {
	out := bufio.NewWriter(stdout)
	defer out.Flush()

	builder := simulation.MakeBuilder().
		WithGeometry(cfg.Geometry).
		WithLogger(logger)

	if cfg.Verbose {
		builder = builder.WithVerboseOutput(out)
	}

	if cfg.Record {
		builder = builder.WithRecording(cfg.RecordDB)
	}

	if cfg.Monitor {
		builder = builder.WithMonitoring().WithMonitorPort(cfg.MonitorPort)
	}

	s, err := builder.Build()
	if err != nil {
		return err
	}

	defer func() {
		err := s.Terminate()
		if err != nil {
			logger.WithError(err).Warn("terminating simulation")
		}
	}()

	if cfg.OpenBrowser {
		err = browser.OpenURL(s.MonitorURL())
		if err != nil {
			logger.WithError(err).WithField("url", s.MonitorURL()).
				Warn("cannot open browser")
		}
	}

	summary, err := s.RunTraceFile(cfg.TracePath)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(out, summary.String())
	if err != nil {
		return err
	}

	if cfg.ResultsPath != "" {
		err = stats.WriteResultsFile(cfg.ResultsPath, summary)
		if err != nil {
			return err
		}
	}

	return out.Flush()
}

package cmd

import (
	"bufio"
	"fmt"
	"io"

	"github.com/sarchlab/cachesim/datarecording"
	"github.com/sarchlab/cachesim/mem/cache"
	"github.com/sarchlab/cachesim/tracing"
	"github.com/spf13/cobra"
)

func newReportCommand(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "report <database>",
		Short: "Print the runs stored in a recorded database.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return printRunSummaries(cmd, args[0], stdout)
		},
	}
}

func printRunSummaries(cmd *cobra.Command, dbFile string, stdout io.Writer) error {
	reader, err := datarecording.NewReader(dbFile)
	if err != nil {
		return err
	}
	defer reader.Close()

	reader.MapTable(tracing.RunSummaryTable, tracing.RunSummaryEntry{})

	runs, _, err := reader.Query(cmd.Context(), tracing.RunSummaryTable,
		datarecording.QueryParams{OrderBy: "rowid"})
	if err != nil {
		return fmt.Errorf("reading %s: %w", tracing.RunSummaryTable, err)
	}

	out := bufio.NewWriter(stdout)

	for _, r := range runs {
		run := r.(tracing.RunSummaryEntry)
		geometry := cache.Geometry{
			SetBits:   run.SetBits,
			Lines:     run.Lines,
			BlockBits: run.BlockBits,
		}

		fmt.Fprintf(out, "%s %s %s hits:%d misses:%d evictions:%d\n",
			run.ID, geometry, run.Trace, run.Hits, run.Misses, run.Evictions)
	}

	return out.Flush()
}

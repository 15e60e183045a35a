package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ucp-transcoder/internal/ledger"
	"github.com/ucp-transcoder/pkg/writer"
)

var (
	runsJSON  bool
	runsLimit int
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect conversion runs recorded in the local run ledger",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent conversion runs",
	RunE:  runRunsList,
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsListCmd)

	runsListCmd.Flags().BoolVar(&runsJSON, "json", false, "Print runs as a JSON array instead of a table")
	runsListCmd.Flags().IntVar(&runsLimit, "limit", 20, "Maximum number of runs to list")
}

func runRunsList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	db, err := ledger.OpenDB(ledgerDBPath)
	if err != nil {
		return err
	}
	led, err := ledger.NewGormLedger(db, nil)
	if err != nil {
		return err
	}

	runs, err := led.ListRuns(ctx, runsLimit)
	if err != nil {
		return err
	}

	if runsJSON {
		w := writer.NewPrettyJSONWriter[[]*ledger.ConversionRun]()
		return w.Write(runs, os.Stdout)
	}

	printRunsTable(runs)
	return nil
}

func printRunsTable(runs []*ledger.ConversionRun) {
	fmt.Printf("%-36s %-8s %-6s %-6s %-6s %-10s %s\n", "RUN UUID", "STATUS", "PP", "TP", "DP", "STARTED", "OUTPUT")
	for _, r := range runs {
		fmt.Printf("%-36s %-8s %-6d %-6d %-6d %-10s %s\n",
			r.RunUUID, r.Status, r.PipelineDegree, r.TensorDegree, r.DataDegree,
			r.StartTime.Format("2006-01-02"), r.OutputFolder)
		if r.Status == ledger.RunStatusFailed && r.FailureMessage != "" {
			fmt.Printf("  failure: %s\n", r.FailureMessage)
		}
	}
}

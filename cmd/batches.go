package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/algebrix/internal/ui/components"
)

var batchesCmd = &cobra.Command{
	Use:   "batches",
	Short: "List stored batches, most recently imported first",
	Args:  cobra.NoArgs,
	RunE: withEnv(func(cmd *cobra.Command, args []string, env *runtimeEnv) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		batches, err := env.backend.Batches().ListBatches(ctx)
		if err != nil {
			return err
		}
		if len(batches) == 0 {
			fmt.Fprintln(out, "No batches stored. Run `algebrix sync` to fetch one.")
			return nil
		}

		progress, err := env.backend.Progress().Get(ctx)
		if err != nil {
			return err
		}
		var current string
		if progress != nil && progress.CurrentBatchID != nil {
			current = *progress.CurrentBatchID
		}

		rows := make([][]string, 0, len(batches))
		for _, b := range batches {
			stats, err := env.backend.Batches().BatchStats(ctx, b.ID)
			if err != nil {
				return err
			}
			marker := ""
			if b.ID == current {
				marker = "●"
			}
			rows = append(rows, []string{
				marker,
				b.ID,
				b.GenerationDate.Format(time.DateOnly),
				b.ImportedAt.Local().Format(time.DateTime),
				fmt.Sprintf("%d/%d", stats.Completed, stats.Total),
			})
		}
		fmt.Fprintln(out, components.Table([]string{"", "Batch", "Generated", "Imported", "Solved"}, rows))
		return nil
	}),
}

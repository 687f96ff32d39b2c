package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/algebrix/internal/ui/components"
	"github.com/abhisek/algebrix/internal/ui/theme"
)

const barWidth = 40

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show learning statistics",
	Args:  cobra.NoArgs,
	RunE: withEnv(func(cmd *cobra.Command, args []string, env *runtimeEnv) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		svc := env.practice()

		progress, err := svc.Progress(ctx)
		if err != nil {
			return err
		}

		fmt.Fprintln(out, theme.Title.Render("Progress"))
		fmt.Fprintf(out, "%s %d   %s %d\n",
			theme.Label.Render("Attempted"), progress.ProblemsAttempted,
			theme.Label.Render("Correct"), progress.ProblemsCorrect)
		fmt.Fprintln(out, components.Fraction("Accuracy", progress.ProblemsCorrect, progress.ProblemsAttempted, barWidth).View())

		if progress.CurrentBatchID != nil {
			stats, err := env.backend.Batches().BatchStats(ctx, *progress.CurrentBatchID)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, components.Fraction("Batch   ", stats.Completed, stats.Total, barWidth).View())
		}

		last, ok, err := env.reconciler().LastSyncTime(ctx)
		if err != nil {
			return err
		}
		if ok {
			fmt.Fprintf(out, "%s %s\n", theme.Label.Render("Last sync"), last.Local().Format(time.DateTime))
		} else {
			fmt.Fprintf(out, "%s never\n", theme.Label.Render("Last sync"))
		}

		topics, err := svc.TopicAccuracy(ctx)
		if err != nil {
			return err
		}
		if len(topics) == 0 {
			return nil
		}
		rows := make([][]string, 0, len(topics))
		for _, t := range topics {
			rows = append(rows, []string{
				string(t.ProblemType),
				fmt.Sprint(t.Attempted),
				fmt.Sprint(t.Correct),
				fmt.Sprint(t.Incorrect),
				fmt.Sprintf("%.0f%%", t.Rate()*100),
			})
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, theme.Title.Render("By topic"))
		fmt.Fprintln(out, components.Table([]string{"Topic", "Attempted", "Correct", "Incorrect", "Accuracy"}, rows))
		return nil
	}),
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset learner progress",
	Long: `Zero the attempted and correct counters and mark every problem unsolved.

With --all, every stored batch and problem is deleted as well.`,
	Args: cobra.NoArgs,
	RunE: withEnv(func(cmd *cobra.Command, args []string, env *runtimeEnv) error {
		svc := env.practice()
		if all, _ := cmd.Flags().GetBool("all"); all {
			if err := svc.ClearAll(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Deleted all batches and reset progress.")
			return nil
		}
		if err := svc.ResetProgress(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Progress reset.")
		return nil
	}),
}

func init() {
	resetCmd.Flags().Bool("all", false, "Also delete every stored batch and problem")
}

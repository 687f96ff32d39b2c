package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/algebrix/internal/store"
	"github.com/abhisek/algebrix/internal/ui/theme"
)

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Show the next unsolved problem of the current batch",
	Args:  cobra.NoArgs,
	RunE: withEnv(func(cmd *cobra.Command, args []string, env *runtimeEnv) error {
		out := cmd.OutOrStdout()
		p, err := env.practice().NextProblem(cmd.Context())
		if err != nil {
			return err
		}
		if p == nil {
			fmt.Fprintln(out, "No more problems available!")
			return nil
		}

		fmt.Fprintln(out, theme.Label.Render(fmt.Sprintf("%s · %s · %s", p.ID, p.ProblemType, p.Difficulty)))
		fmt.Fprintln(out, theme.Body.Render(p.Direction))
		fmt.Fprintln(out, "  "+theme.Math.Render(p.Equation))
		fmt.Fprintln(out, theme.Hint.Render(fmt.Sprintf("Answer with: algebrix submit %s <answer>", p.ID)))
		return nil
	}),
}

var submitCmd = &cobra.Command{
	Use:   "submit <problem-id> <answer>",
	Short: "Check an answer and record it",
	Long: `Check an answer against the problem's canonical answer and record it.

Several roots may be given separated by commas, e.g. "x = 2, x = -3".
A problem that already has a recorded answer is checked but not counted again.`,
	Args: cobra.MinimumNArgs(2),
	RunE: withEnv(func(cmd *cobra.Command, args []string, env *runtimeEnv) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		id, raw := args[0], strings.Join(args[1:], " ")

		p, err := env.backend.Batches().GetProblem(ctx, id)
		if err != nil {
			return err
		}
		if p == nil {
			return fmt.Errorf("problem %s: %w", id, store.ErrNotFound)
		}

		svc := env.practice()
		correct, recorded, err := svc.NewSession().Submit(ctx, p, raw)
		if err != nil {
			return err
		}
		if correct {
			fmt.Fprintln(out, theme.Correct.Render("Correct!"))
		} else {
			fmt.Fprintln(out, theme.Incorrect.Render("Not quite.")+" The answer is "+theme.Math.Render(p.Answer.String()))
		}
		if !recorded {
			fmt.Fprintln(out, theme.Hint.Render("Already answered; progress unchanged."))
			return nil
		}

		progress, err := svc.Progress(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%d of %d correct\n", progress.ProblemsCorrect, progress.ProblemsAttempted)
		return nil
	}),
}

var solutionCmd = &cobra.Command{
	Use:   "solution <problem-id>",
	Short: "Show the worked solution of a problem",
	Args:  cobra.ExactArgs(1),
	RunE: withEnv(func(cmd *cobra.Command, args []string, env *runtimeEnv) error {
		out := cmd.OutOrStdout()
		p, err := env.practice().ShowSolution(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Fprintln(out, theme.Math.Render(p.Equation))
		for i, step := range p.SolutionSteps {
			fmt.Fprintf(out, "%2d. %s\n", i+1, theme.Body.Render(step.Explanation))
			if step.MathExpression != "" {
				fmt.Fprintln(out, "    "+theme.Math.Render(step.MathExpression))
			}
		}
		fmt.Fprintln(out, theme.Label.Render("Answer: ")+theme.Correct.Render(p.Answer.String()))
		return nil
	}),
}

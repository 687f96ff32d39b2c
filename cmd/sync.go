package cmd

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/algebrix/internal/batchsync"
	"github.com/abhisek/algebrix/internal/ui/theme"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch the latest published batch and reconcile it with local problems",
	Long: `Fetch the latest published problem batch and reconcile it with the local store.

A batch whose id is already stored is skipped. A batch generated on the same
UTC day as a stored one replaces it, problems included. Anything else is
imported alongside the existing batches. If the fetch fails, nothing changes.

Syncs run at most once per sync.interval unless --force is given.`,
	Args: cobra.NoArgs,
	RunE: withEnv(func(cmd *cobra.Command, args []string, env *runtimeEnv) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		url, _ := cmd.Flags().GetString("url")
		if url == "" {
			url = env.cfg.Sync.SourceURL
		}
		if url == "" {
			return errors.New("no batch source configured: set sync.source_url or pass --url")
		}

		rec := env.reconciler()
		if force, _ := cmd.Flags().GetBool("force"); !force {
			due, err := rec.ShouldSync(ctx, env.cfg.Sync.Interval)
			if err != nil {
				return err
			}
			if !due {
				last, _, err := rec.LastSyncTime(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Last synced %s; next sync due after %s. Use --force to sync now.\n",
					last.Local().Format(time.DateTime), last.Add(env.cfg.Sync.Interval).Local().Format(time.DateTime))
				return nil
			}
		}

		fetcher := batchsync.WithRetry(
			batchsync.NewHTTPFetcher(url, env.cfg.Sync.Timeout),
			env.cfg.Sync.Retry,
			env.logger,
		)
		res, err := rec.Sync(ctx, fetcher)
		if err != nil {
			if batchsync.IsFetchFailure(err) {
				return fmt.Errorf("%w\nlocal problems are unchanged", err)
			}
			return err
		}
		printResult(out, res)
		return nil
	}),
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Reconcile a batch from a local JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: withEnv(func(cmd *cobra.Command, args []string, env *runtimeEnv) error {
		res, err := env.reconciler().Import(cmd.Context(), &batchsync.FileFetcher{Path: args[0]})
		if err != nil {
			return err
		}
		printResult(cmd.OutOrStdout(), res)
		return nil
	}),
}

func init() {
	syncCmd.Flags().String("url", "", "Batch source URL (overrides sync.source_url)")
	syncCmd.Flags().Bool("force", false, "Sync even if the sync interval has not elapsed")
}

func printResult(w io.Writer, res batchsync.Result) {
	switch res.Disposition {
	case batchsync.SkippedExisting:
		fmt.Fprintf(w, "%s batch %s is already stored\n",
			theme.Label.Render(string(res.Disposition)), res.BatchID)
	case batchsync.ReplacedExisting:
		fmt.Fprintf(w, "%s batch %s replaced %s (%d problems)\n",
			theme.Title.Render(string(res.Disposition)), res.BatchID, res.ReplacedID, res.Problems)
	default:
		fmt.Fprintf(w, "%s batch %s (%d problems)\n",
			theme.Title.Render(string(res.Disposition)), res.BatchID, res.Problems)
	}
}

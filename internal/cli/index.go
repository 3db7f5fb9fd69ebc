package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ppiankov/originality/internal/index"
)

var resetAll bool

// indexCmd represents the index command
var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Inspect and maintain the vector index",
	Long: `Inspect and maintain the per-repository vector index that code
similarity is measured against.`,
}

var indexListCmd = &cobra.Command{
	Use:   "list",
	Short: "List indexed repositories",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withIndex(cmd.Context(), func(ctx context.Context, store index.Store) error {
			repos, err := store.Repositories(ctx)
			if err != nil {
				return fmt.Errorf("list repositories: %w", err)
			}
			for _, r := range repos {
				fmt.Println(r)
			}
			fmt.Fprintf(os.Stderr, "%d repositories\n", len(repos))
			return nil
		})
	},
}

var indexStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show entry counts and dimensions per repository",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withIndex(cmd.Context(), func(ctx context.Context, store index.Store) error {
			stats, err := store.Stats(ctx)
			if err != nil {
				return fmt.Errorf("index stats: %w", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "REPOSITORY\tENTRIES\tDIMENSION")
			total := 0
			for _, s := range stats {
				fmt.Fprintf(w, "%s\t%d\t%d\n", s.RepoID, s.Entries, s.Dimension)
				total += s.Entries
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "%d repositories, %d entries\n", len(stats), total)
			return nil
		})
	},
}

var indexResetCmd = &cobra.Command{
	Use:   "reset [owner/repo]",
	Short: "Delete one repository's index, or all with --all",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 && !resetAll {
			return fmt.Errorf("name a repository or pass --all")
		}
		return withIndex(cmd.Context(), func(ctx context.Context, store index.Store) error {
			targets := args
			if resetAll {
				repos, err := store.Repositories(ctx)
				if err != nil {
					return fmt.Errorf("list repositories: %w", err)
				}
				targets = repos
			}
			for _, repo := range targets {
				if err := store.Delete(ctx, repo); err != nil {
					return fmt.Errorf("delete %s: %w", repo, err)
				}
				fmt.Fprintf(os.Stderr, "✓ Deleted %s\n", repo)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.AddCommand(indexListCmd)
	indexCmd.AddCommand(indexStatsCmd)
	indexCmd.AddCommand(indexResetCmd)

	indexResetCmd.Flags().BoolVar(&resetAll, "all", false, "delete every repository's index")
}

// withIndex opens the configured store for the duration of fn
func withIndex(ctx context.Context, fn func(context.Context, index.Store) error) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	store, err := index.New(cfg.Index, logger)
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	defer store.Close()

	return fn(ctx, store)
}

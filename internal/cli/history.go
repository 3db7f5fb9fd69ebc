package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ppiankov/originality/internal/history"
)

var (
	historyLimit int
	historyJSON  bool
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history [owner/repo]",
	Short: "List past analyses stored in Postgres",
	Long: `History lists analyses recorded in the database named by DATABASE_URL
(or history.database_url), newest first.

Example:
  originality history
  originality history owner/repo --limit 5 --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of runs")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "print runs as JSON")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, _, err := setup()
	if err != nil {
		return err
	}
	if cfg.History.DatabaseURL == "" {
		return fmt.Errorf("no database configured: set DATABASE_URL or history.database_url")
	}

	ctx := cmd.Context()
	store, err := history.NewPostgresStore(ctx, cfg.History.DatabaseURL)
	if err != nil {
		return err
	}
	defer store.Close()

	repository := ""
	if len(args) == 1 {
		repository = args[0]
	}
	runs, err := store.List(ctx, repository, historyLimit)
	if err != nil {
		return err
	}

	if historyJSON {
		data, err := json.MarshalIndent(runs, "", "  ")
		if err != nil {
			return fmt.Errorf("encode runs: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ANALYZED\tREPOSITORY\tSCORE\tVERDICT\tREPORT")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%.1f\t%s\t%s\n", r.AnalyzedAt.Format("2006-01-02 15:04"), r.Repository, r.OriginalityScore, r.Verdict, r.ReportURL)
	}
	return w.Flush()
}

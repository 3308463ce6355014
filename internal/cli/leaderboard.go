package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"morse-quiz-service/internal/config"
	"morse-quiz-service/internal/domain"
)

// NewLeaderboardCmd prints the current standings from the configured store.
func NewLeaderboardCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "leaderboard",
		Short: "Print the current top 10",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			log := newLogger(cfg)
			defer func() { _ = log.Sync() }()

			b, err := buildBackend(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer b.Close()

			lb, err := b.service.Leaderboard(ctx)
			if err != nil {
				return err
			}
			return printLeaderboard(lb)
		},
	}
}

func printLeaderboard(lb domain.Leaderboard) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tNAME\tSCORE\tCORRECT\tTIME")
	for _, e := range lb.Entries {
		fmt.Fprintf(w, "%d\t%s\t%.0f%%\t%d/%d\t%ds\n",
			e.Rank, e.DisplayName, e.ScorePercent, e.CorrectCount, lb.TotalQuestions, e.TotalTimeSeconds)
	}
	if lb.Partial {
		fmt.Fprintln(w, "\t(partial: some answers could not be read)")
	}
	return w.Flush()
}

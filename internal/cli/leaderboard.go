package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yolodolo42/pokemint/internal/ui"
)

var leaderboardCmd = &cobra.Command{
	Use:     "leaderboard",
	Aliases: []string{"hunters"},
	Short:   "Show the Shiny Hunters Hall of Fame",
	RunE:    runLeaderboard,
}

func init() {
	rootCmd.AddCommand(leaderboardCmd)
}

func runLeaderboard(cmd *cobra.Command, args []string) error {
	rt, err := startRuntime(cmd, runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	s := rt.app.Snapshot()
	fmt.Fprint(cmd.OutOrStdout(), ui.HallOfFame(s.Hunters, s.LeaderboardErr))
	if s.LeaderboardErr != nil && len(s.Hunters) == 0 {
		return fmt.Errorf("failed to load leaderboard: %w", s.LeaderboardErr)
	}
	return nil
}

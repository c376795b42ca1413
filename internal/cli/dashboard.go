package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yolodolo42/pokemint/internal/config"
	"github.com/yolodolo42/pokemint/internal/logging"
	"github.com/yolodolo42/pokemint/internal/ui"
	"github.com/yolodolo42/pokemint/internal/wallet"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Interactive dashboard (default command)",
	Long: `The dashboard shows the wallet session, the current mint and the Hall of
Fame, updating as the chain changes. Logs go to dashboard.log in the data
directory while it runs.`,
	RunE: runDashboard,
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}

// dashboardLogger writes logs to a file because the dashboard owns the
// terminal.
func dashboardLogger(cfg *config.Config) (*zap.Logger, func(), error) {
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(cfg.DataDir, "dashboard.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	logger, err := logging.NewWriter(f, cfg.LogLevel)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return logger, func() { f.Close() }, nil
}

func runDashboard(cmd *cobra.Command, args []string) error {
	var prompter *ui.SessionPrompter
	rt, err := startRuntime(cmd, runtimeOptions{
		prompter: func(cfg *config.Config) wallet.Prompter {
			prompter = ui.NewSessionPrompter(cfg.Password)
			return prompter
		},
		logger: dashboardLogger,
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	return ui.RunDashboard(cmd.Context(), rt.app, prompter)
}

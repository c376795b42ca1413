package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/yolodolo42/pokemint/internal/dapp"
	"github.com/yolodolo42/pokemint/internal/session"
	"github.com/yolodolo42/pokemint/internal/ui"
	"github.com/yolodolo42/pokemint/internal/wallet"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show wallet, network and mint status",
	RunE:  runStatus,
}

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Authorize a keystore account",
	Long: `Connect asks for the keystore password and authorizes one account.
The wallet must be on the configured network; otherwise nothing is asked.`,
	RunE: runConnect,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(connectCmd)
}

func printSession(w io.Writer, s dapp.Snapshot) {
	fmt.Fprintf(w, "Network:  %s (%s)\n", s.NetworkName, s.Network)
	fmt.Fprintf(w, "Contract: %s\n", s.Contract.Hex())
	if banner := ui.NetworkBanner(s.Session); banner != "" {
		fmt.Fprintln(w, banner)
	}
	fmt.Fprintln(w, ui.SessionLine(s.Session))
}

func runStatus(cmd *cobra.Command, args []string) error {
	rt, err := startRuntime(cmd, runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	s := rt.app.Snapshot()
	out := cmd.OutOrStdout()
	printSession(out, s)
	if s.Session.ChainID != nil {
		fmt.Fprintf(out, "Wallet chain: %s\n", s.Session.ChainID)
	}
	if s.LeaderboardErr != nil {
		fmt.Fprintf(out, "Leaderboard: unavailable (%v)\n", s.LeaderboardErr)
	} else {
		fmt.Fprintf(out, "Leaderboard: %d shiny hunter(s)\n", len(s.Hunters))
	}
	return nil
}

func runConnect(cmd *cobra.Command, args []string) error {
	rt, err := startRuntime(cmd, runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	s, err := connect(cmd, rt)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), ui.SessionLine(s))
	return nil
}

// connect authorizes an account unless one is already connected, printing
// the network banner when the wallet is on the wrong network.
func connect(cmd *cobra.Command, rt *runtime) (session.Session, error) {
	s := rt.app.Snapshot().Session
	if s.State == session.Connected {
		return s, nil
	}

	s, err := rt.app.Connect(cmd.Context())
	switch {
	case err == nil:
		return s, nil
	case errors.Is(err, wallet.ErrNoWallet):
		return s, fmt.Errorf("no wallet found; create one with 'pokemint wallet create'")
	case errors.Is(err, session.ErrWrongNetwork):
		if banner := ui.NetworkBanner(s); banner != "" {
			fmt.Fprintln(cmd.ErrOrStderr(), banner)
		}
		return s, err
	case errors.Is(err, wallet.ErrUserRejected):
		return s, fmt.Errorf("connection request rejected: %w", err)
	}
	return s, err
}

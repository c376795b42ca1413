package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yolodolo42/pokemint/internal/dapp"
	"github.com/yolodolo42/pokemint/internal/mint"
	"github.com/yolodolo42/pokemint/internal/ui"
)

var errMintFailed = errors.New("mint failed")

var mintCmd = &cobra.Command{
	Use:   "mint",
	Short: "Mint a Pokemon NFT",
	Long: `Mint connects an account if needed, submits mintNFT() for approval and
waits until the transaction is mined. There is no timeout: interrupt to stop
waiting. The transaction itself cannot be recalled once sent.`,
	RunE: runMint,
}

func init() {
	rootCmd.AddCommand(mintCmd)
	mintCmd.Flags().Duration("token-wait", 30*time.Second, "How long to wait for the minted token id after confirmation")
}

// printProgress prints each attempt stage once until updates closes.
func printProgress(w io.Writer, updates <-chan dapp.Snapshot, done chan<- struct{}) {
	defer close(done)
	last := mint.Idle
	for s := range updates {
		a := s.Mint
		if a.Status == last || a.Status.Terminal() || a.Status == mint.Idle {
			continue
		}
		last = a.Status
		fmt.Fprintln(w, ui.MintStatus(a, time.Now(), 0))
		if a.Status == mint.Mining && s.ExplorerTxURL != "" {
			fmt.Fprintln(w, ui.LinkStyle.Render(s.ExplorerTxURL))
		}
	}
}

func runMint(cmd *cobra.Command, args []string) error {
	tokenWait, _ := cmd.Flags().GetDuration("token-wait")

	rt, err := startRuntime(cmd, runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	if _, err := connect(cmd, rt); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	updates, cancel := rt.app.Subscribe()
	done := make(chan struct{})
	go printProgress(out, updates, done)

	attempt, err := rt.app.Mint(cmd.Context())
	cancel()
	<-done
	if err != nil {
		return err
	}

	fmt.Fprintln(out, ui.MintStatus(attempt, time.Now(), 0))
	if attempt.Status != mint.Success {
		if attempt.Err != nil {
			rt.logger.Debug("mint attempt failed", zap.Uint64("attempt", attempt.ID), zap.Error(attempt.Err))
			fmt.Fprintln(cmd.ErrOrStderr(), ui.DimStyle.Render(attempt.Err.Error()))
		}
		return errMintFailed
	}

	s := waitForToken(rt.app, attempt.ID, tokenWait)
	if s.TokenURL != "" {
		fmt.Fprintln(out, ui.MintStatus(s.Mint, time.Now(), 0))
		fmt.Fprintln(out, ui.TokenNotice(s.TokenURL))
	} else if s.ExplorerTxURL != "" {
		fmt.Fprintln(out, ui.LinkStyle.Render(s.ExplorerTxURL))
	}
	return nil
}

// waitForToken waits up to d for the mint event of attempt id to arrive.
func waitForToken(app *dapp.App, id uint64, d time.Duration) dapp.Snapshot {
	updates, cancel := app.Subscribe()
	defer cancel()

	s := app.Snapshot()
	timer := time.NewTimer(d)
	defer timer.Stop()
	for {
		if s.Mint.ID != id || s.Mint.MintedTokenID != nil {
			return s
		}
		select {
		case next, ok := <-updates:
			if !ok {
				return s
			}
			s = next
		case <-timer.C:
			return s
		}
	}
}

package ui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/yolodolo42/pokemint/internal/leaderboard"
	"github.com/yolodolo42/pokemint/internal/mint"
	"github.com/yolodolo42/pokemint/internal/session"
	"github.com/yolodolo42/pokemint/internal/wallet"
	"github.com/yolodolo42/pokemint/internal/web3"
)

// DefaultStuckAfter is how long a transaction may mine before it is flagged.
const DefaultStuckAfter = 3 * time.Minute

// ShortAddress renders 0x1234…abcd.
func ShortAddress(a common.Address) string {
	hex := a.Hex()
	return hex[:6] + "…" + hex[len(hex)-4:]
}

// SessionLine describes the wallet session in one line.
func SessionLine(s session.Session) string {
	switch s.State {
	case session.NoWallet:
		return ErrorStyle.Render(SymbolCross+" No wallet found.") + " " +
			DimStyle.Render("Create or import one with 'pokemint wallet create|import'.")
	case session.WalletPresentDisconnected:
		return PendingStyle.Render(SymbolBullet + " Wallet not connected")
	case session.WrongNetwork:
		return ErrorStyle.Render(SymbolCross + " Wallet on the wrong network")
	case session.Connected:
		if s.Account == nil {
			return SuccessStyle.Render(SymbolCheck + " Connected")
		}
		return SuccessStyle.Render(SymbolCheck+" Connected ") + AddressStyle.Render(s.Account.Hex())
	default:
		return DimStyle.Render("Checking wallet...")
	}
}

// NetworkBanner is the wrong-network warning, or "" when there is none.
func NetworkBanner(s session.Session) string {
	if s.Warning == "" {
		return ""
	}
	return BannerStyle.Render(SymbolWarn + " " + s.Warning)
}

// MintStatus renders the mint attempt. A transaction mining for longer than
// stuckAfter is flagged; zero disables the flag.
func MintStatus(a mint.Attempt, now time.Time, stuckAfter time.Duration) string {
	switch a.Status {
	case mint.Submitting:
		return PendingStyle.Render("Waiting for wallet approval...")
	case mint.Mining:
		elapsed := a.Elapsed(now).Truncate(time.Second)
		line := PendingStyle.Render(fmt.Sprintf("Transaction is mining (%s)", elapsed))
		if stuckAfter > 0 && elapsed >= stuckAfter {
			line += "\n" + ErrorStyle.Render(SymbolWarn+" This is taking longer than usual. The transaction may be stuck; check the explorer.")
		}
		return line
	case mint.Success:
		line := SuccessStyle.Render(SymbolCheck + " NFT minting successful!")
		if a.MintedTokenID != nil {
			line += " " + SpeciesStyle.Render("Token #"+a.MintedTokenID.String())
		}
		return line
	case mint.Failed:
		return ErrorStyle.Render(SymbolCross + " " + FailureReason(a.Err))
	default:
		return ""
	}
}

// FailureReason turns a mint failure into a user-facing sentence.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, wallet.ErrUserRejected):
		return "Transaction rejected in the wallet."
	case errors.Is(err, web3.ErrNetworkChanged):
		return "The wallet switched networks. The transaction was abandoned."
	default:
		return "Transaction failed. Please try again."
	}
}

// TokenNotice links the minted token.
func TokenNotice(url string) string {
	if url == "" {
		return ""
	}
	return LinkStyle.Render(url) + "\n" +
		DimStyle.Render("(It may take up to 10 minutes for your NFT to generate)")
}

// HallOfFame renders the leaderboard.
func HallOfFame(records []leaderboard.Record, err error) string {
	var b strings.Builder
	b.WriteString(SectionStyle.Render(SymbolStar + " Shiny Hunters Hall of Fame"))
	b.WriteString("\n")
	if len(records) == 0 {
		if err != nil {
			b.WriteString(ErrorStyle.Render("Leaderboard unavailable: " + err.Error()))
		} else {
			b.WriteString(DimStyle.Render("No shinies have been hunted yet."))
		}
		b.WriteString("\n")
		return b.String()
	}
	for _, r := range records {
		b.WriteString(fmt.Sprintf("  %s  %s\n",
			SpeciesStyle.Render(fmt.Sprintf("%-12s", r.Species)),
			AddressStyle.Render(r.Winner.Hex()),
		))
	}
	if err != nil {
		b.WriteString(DimStyle.Render("(stale: " + err.Error() + ")"))
		b.WriteString("\n")
	}
	return b.String()
}

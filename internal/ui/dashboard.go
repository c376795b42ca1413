package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/yolodolo42/pokemint/internal/dapp"
	"github.com/yolodolo42/pokemint/internal/leaderboard"
	"github.com/yolodolo42/pokemint/internal/mint"
	"github.com/yolodolo42/pokemint/internal/session"
	"github.com/yolodolo42/pokemint/internal/wallet"
	"github.com/yolodolo42/pokemint/internal/web3"
)

// Controller is the application surface the dashboard drives.
type Controller interface {
	Subscribe() (<-chan dapp.Snapshot, func())
	Snapshot() dapp.Snapshot
	Connect(ctx context.Context) (session.Session, error)
	Mint(ctx context.Context) (mint.Attempt, error)
	Refresh(ctx context.Context) ([]leaderboard.Record, error)
	SwitchNetwork(ctx context.Context, name string) error
	Networks() []string
	WalletNetwork() string
}

type mode int

const (
	modeIdle mode = iota
	modeConfirmMint
	modePassword
	modeNetwork
)

type snapshotMsg dapp.Snapshot

type updatesClosedMsg struct{}

type tickMsg time.Time

// actionMsg reports the end of a user-triggered operation.
type actionMsg struct {
	action string
	err    error
}

// Dashboard is the interactive bubbletea model.
type Dashboard struct {
	ctx        context.Context
	ctrl       Controller
	prompter   *SessionPrompter
	updates    <-chan dapp.Snapshot
	cancel     func()
	stuckAfter time.Duration

	snap     dapp.Snapshot
	now      time.Time
	spinner  spinner.Model
	password Prompt
	selector *Selector
	mode     mode
	busy     string
	errMsg   string
	quitting bool
}

// NewDashboard subscribes to ctrl. Call Close when the program ends.
func NewDashboard(ctx context.Context, ctrl Controller, prompter *SessionPrompter, stuckAfter time.Duration) *Dashboard {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = PendingStyle

	updates, cancel := ctrl.Subscribe()
	return &Dashboard{
		ctx:        ctx,
		ctrl:       ctrl,
		prompter:   prompter,
		updates:    updates,
		cancel:     cancel,
		stuckAfter: stuckAfter,
		snap:       ctrl.Snapshot(),
		now:        time.Now(),
		spinner:    sp,
		password:   NewPrompt("Keystore password (enter to unlock, esc to cancel)", true),
	}
}

// Close stops the snapshot subscription.
func (d *Dashboard) Close() {
	d.cancel()
}

func (d *Dashboard) Init() tea.Cmd {
	return tea.Batch(d.waitForSnapshot(), d.spinner.Tick, tick())
}

func (d *Dashboard) waitForSnapshot() tea.Cmd {
	ch := d.updates
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return updatesClosedMsg{}
		}
		return snapshotMsg(s)
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (d *Dashboard) run(action string, fn func(ctx context.Context) error) tea.Cmd {
	d.busy = action
	d.errMsg = ""
	ctx := d.ctx
	return func() tea.Msg {
		return actionMsg{action: action, err: fn(ctx)}
	}
}

func (d *Dashboard) connect() tea.Cmd {
	return d.run("connect", func(ctx context.Context) error {
		_, err := d.ctrl.Connect(ctx)
		return err
	})
}

func (d *Dashboard) mint() tea.Cmd {
	return d.run("mint", func(ctx context.Context) error {
		_, err := d.ctrl.Mint(ctx)
		return err
	})
}

func (d *Dashboard) refresh() tea.Cmd {
	return d.run("refresh", func(ctx context.Context) error {
		_, err := d.ctrl.Refresh(ctx)
		return err
	})
}

func (d *Dashboard) switchNetwork(name string) tea.Cmd {
	return d.run("switch", func(ctx context.Context) error {
		return d.ctrl.SwitchNetwork(ctx, name)
	})
}

func (d *Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case snapshotMsg:
		d.snap = dapp.Snapshot(msg)
		return d, d.waitForSnapshot()

	case updatesClosedMsg:
		return d, nil

	case tickMsg:
		d.now = time.Time(msg)
		return d, tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		d.spinner, cmd = d.spinner.Update(msg)
		return d, cmd

	case actionMsg:
		d.busy = ""
		if msg.err != nil {
			if msg.action == "connect" && errors.Is(msg.err, wallet.ErrUserRejected) {
				d.prompter.SetPassword("")
			}
			d.errMsg = describeActionError(msg.action, msg.err)
		}
		return d, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			d.quitting = true
			return d, tea.Quit
		}
		return d.handleKey(msg)
	}
	return d, nil
}

func (d *Dashboard) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch d.mode {
	case modeConfirmMint:
		d.mode = modeIdle
		if msg.String() == "y" {
			return d, d.mint()
		}
		return d, nil

	case modePassword:
		switch msg.Type {
		case tea.KeyEnter:
			d.prompter.SetPassword(d.password.Value())
			d.password.Reset()
			d.password.Blur()
			d.mode = modeIdle
			return d, d.connect()
		case tea.KeyEsc:
			d.password.Reset()
			d.password.Blur()
			d.mode = modeIdle
			return d, nil
		}
		_, cmd := d.password.Update(msg)
		return d, cmd

	case modeNetwork:
		d.selector.Update(msg)
		if d.selector.Active() {
			return d, nil
		}
		d.mode = modeIdle
		if d.selector.Cancelled() {
			return d, nil
		}
		name := d.selector.Selected()
		if name == "" || name == d.ctrl.WalletNetwork() {
			return d, nil
		}
		return d, d.switchNetwork(name)
	}

	if d.busy != "" && msg.String() != "q" {
		return d, nil
	}

	switch msg.String() {
	case "q":
		d.quitting = true
		return d, tea.Quit
	case "c":
		if !d.snap.Session.CanConnect() {
			return d, nil
		}
		if d.prompter.HasPassword() {
			return d, d.connect()
		}
		d.mode = modePassword
		return d, d.password.Focus()
	case "m":
		if d.snap.Session.State != session.Connected || d.snap.Mint.Status.InFlight() {
			return d, nil
		}
		d.mode = modeConfirmMint
	case "r":
		return d, d.refresh()
	case "n":
		if !d.snap.Session.WalletAvailable {
			return d, nil
		}
		d.selector = NewNetworkSelector(d.ctrl.Networks(), d.ctrl.WalletNetwork())
		d.mode = modeNetwork
	}
	return d, nil
}

func describeActionError(action string, err error) string {
	switch {
	case errors.Is(err, wallet.ErrUserRejected):
		return "Request rejected: " + err.Error()
	case errors.Is(err, session.ErrWrongNetwork):
		return "Switch the wallet to the required network first."
	case errors.Is(err, mint.ErrMintInProgress):
		return "A mint is already in progress."
	case errors.Is(err, web3.ErrNetworkChanged):
		return "The wallet changed network. Please try again."
	}
	return fmt.Sprintf("%s failed: %v", action, err)
}

func (d *Dashboard) View() string {
	if d.quitting {
		return "Goodbye!\n"
	}

	s := d.snap
	var b strings.Builder

	title := "pokemint"
	if s.NetworkName != "" {
		title += " · " + s.NetworkName
	}
	b.WriteString(TitleStyle.Render("  "+title) + "\n\n")

	if banner := NetworkBanner(s.Session); banner != "" {
		b.WriteString(banner + "\n\n")
	}
	b.WriteString(SessionLine(s.Session) + "\n")
	b.WriteString(DimStyle.Render(fmt.Sprintf("Contract %s on %s", s.Contract.Hex(), s.Network)) + "\n\n")

	if status := MintStatus(s.Mint, d.now, d.stuckAfter); status != "" {
		if s.Mint.Status.InFlight() {
			status = d.spinner.View() + " " + status
		}
		b.WriteString(status + "\n")
		if s.ExplorerTxURL != "" {
			b.WriteString(LinkStyle.Render(s.ExplorerTxURL) + "\n")
		}
		if notice := TokenNotice(s.TokenURL); notice != "" {
			b.WriteString(notice + "\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(HallOfFame(s.Hunters, s.LeaderboardErr))
	b.WriteString("\n")

	switch d.mode {
	case modeConfirmMint:
		b.WriteString(PromptStyle.Render(fmt.Sprintf("Mint a Pokemon NFT on %s? (y/N)", s.Network)) + "\n")
	case modePassword:
		b.WriteString(d.password.View() + "\n")
	case modeNetwork:
		b.WriteString(d.selector.View())
	}

	if d.busy != "" && d.busy != "mint" {
		b.WriteString(fmt.Sprintf("%s %s...\n", d.spinner.View(), d.busy))
	}
	if d.errMsg != "" {
		b.WriteString(ErrorStyle.Render(d.errMsg) + "\n")
	}

	b.WriteString("\n" + HelpStyle.Render("  c connect • m mint • r refresh • n network • q quit"))
	return b.String()
}

// RunDashboard runs the dashboard until the user quits or ctx ends.
func RunDashboard(ctx context.Context, ctrl Controller, prompter *SessionPrompter) error {
	d := NewDashboard(ctx, ctrl, prompter, DefaultStuckAfter)
	defer d.Close()

	p := tea.NewProgram(d, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

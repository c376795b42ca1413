package wallet

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math/big"
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/term"
)

// ApprovalRequest describes a transaction awaiting the user's approval.
type ApprovalRequest struct {
	From     common.Address
	To       common.Address
	Network  string
	ChainID  *big.Int
	Nonce    uint64
	GasLimit uint64
	MaxCost  string // formatted, including the currency symbol
	Action   string
}

// Prompter mediates the wallet's user interaction. Both methods may block for
// as long as the user takes and return ErrUserRejected when declined.
type Prompter interface {
	// Authorize asks the user to pick one of candidates and unlock it.
	Authorize(ctx context.Context, candidates []common.Address) (common.Address, string, error)
	// ApproveTransaction asks the user to confirm a transaction.
	ApproveTransaction(ctx context.Context, req ApprovalRequest) error
}

// TerminalPrompter prompts on a terminal. Passwords are read without echo
// when the input is a TTY.
type TerminalPrompter struct {
	in  *bufio.Reader
	fd  int
	tty bool
	out io.Writer
}

// NewTerminalPrompter prompts on stdin/stderr.
func NewTerminalPrompter() *TerminalPrompter {
	fd := int(os.Stdin.Fd())
	return &TerminalPrompter{
		in:  bufio.NewReader(os.Stdin),
		fd:  fd,
		tty: term.IsTerminal(fd),
		out: os.Stderr,
	}
}

// NewReaderPrompter prompts on arbitrary streams; input is never treated as a
// TTY.
func NewReaderPrompter(in io.Reader, out io.Writer) *TerminalPrompter {
	return &TerminalPrompter{in: bufio.NewReader(in), fd: -1, out: out}
}

func (p *TerminalPrompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (p *TerminalPrompter) readSecret() (string, error) {
	if p.tty {
		b, err := term.ReadPassword(p.fd)
		fmt.Fprintln(p.out)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	return p.readLine()
}

// Authorize lists candidates, asks for a choice when there is more than one,
// then reads the keystore password. An empty answer declines.
func (p *TerminalPrompter) Authorize(ctx context.Context, candidates []common.Address) (common.Address, string, error) {
	if len(candidates) == 0 {
		return common.Address{}, "", ErrNoWallet
	}

	chosen := candidates[0]
	if len(candidates) > 1 {
		fmt.Fprintln(p.out, "Connect which account?")
		for i, addr := range candidates {
			fmt.Fprintf(p.out, "  %d. %s\n", i+1, addr.Hex())
		}
		fmt.Fprint(p.out, "Account number (empty to cancel): ")
		answer, err := p.readLine()
		if err != nil || answer == "" {
			return common.Address{}, "", ErrUserRejected
		}
		n, err := strconv.Atoi(answer)
		if err != nil || n < 1 || n > len(candidates) {
			return common.Address{}, "", fmt.Errorf("%w: invalid choice %q", ErrUserRejected, answer)
		}
		chosen = candidates[n-1]
	}

	fmt.Fprintf(p.out, "Password for %s (empty to cancel): ", chosen.Hex())
	password, err := p.readSecret()
	if err != nil || password == "" {
		return common.Address{}, "", ErrUserRejected
	}
	return chosen, password, nil
}

// ApproveTransaction prints the request and waits for an explicit "y".
func (p *TerminalPrompter) ApproveTransaction(ctx context.Context, req ApprovalRequest) error {
	fmt.Fprintln(p.out, "─────────────────────────────────────────────────────────")
	if req.Action != "" {
		fmt.Fprintf(p.out, "Action:    %s\n", req.Action)
	}
	fmt.Fprintf(p.out, "From:      %s\n", req.From.Hex())
	fmt.Fprintf(p.out, "To:        %s\n", req.To.Hex())
	fmt.Fprintf(p.out, "Network:   %s (chain %s)\n", req.Network, req.ChainID)
	fmt.Fprintf(p.out, "Nonce:     %d\n", req.Nonce)
	fmt.Fprintf(p.out, "Gas limit: %d\n", req.GasLimit)
	fmt.Fprintf(p.out, "Max cost:  %s\n", req.MaxCost)
	fmt.Fprintln(p.out, "─────────────────────────────────────────────────────────")
	fmt.Fprint(p.out, "Confirm transaction? [y/N]: ")

	answer, err := p.readLine()
	if err != nil {
		return ErrUserRejected
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return nil
	default:
		return ErrUserRejected
	}
}

// StaticPrompter answers prompts from preset values, for unattended runs and
// the dashboard.
type StaticPrompter struct {
	Account     *common.Address // nil picks the first candidate
	Password    string          // empty declines authorization
	AutoApprove bool
}

func (p StaticPrompter) Authorize(ctx context.Context, candidates []common.Address) (common.Address, string, error) {
	if len(candidates) == 0 {
		return common.Address{}, "", ErrNoWallet
	}
	if p.Password == "" {
		return common.Address{}, "", fmt.Errorf("%w: no password configured", ErrUserRejected)
	}
	if p.Account == nil {
		return candidates[0], p.Password, nil
	}
	for _, c := range candidates {
		if c == *p.Account {
			return c, p.Password, nil
		}
	}
	return common.Address{}, "", fmt.Errorf("%w: account %s not in keystore", ErrUserRejected, p.Account.Hex())
}

func (p StaticPrompter) ApproveTransaction(ctx context.Context, req ApprovalRequest) error {
	if !p.AutoApprove {
		return fmt.Errorf("%w: transactions need --yes in unattended mode", ErrUserRejected)
	}
	return nil
}

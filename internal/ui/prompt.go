package ui

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/ethereum/go-ethereum/common"

	"github.com/yolodolo42/pokemint/internal/wallet"
)

// Prompt is a single-line input with a styled prefix
type Prompt struct {
	label   string
	input   textinput.Model
	focused bool
}

// NewPrompt creates a prompt. A secret prompt masks its input.
func NewPrompt(label string, secret bool) Prompt {
	ti := textinput.New()
	ti.CharLimit = 256
	ti.Width = 40
	if secret {
		ti.EchoMode = textinput.EchoPassword
		ti.EchoCharacter = '•'
	}

	return Prompt{
		label: label,
		input: ti,
	}
}

// Focus sets focus on the prompt
func (p *Prompt) Focus() tea.Cmd {
	p.focused = true
	return p.input.Focus()
}

// Blur removes focus from the prompt
func (p *Prompt) Blur() {
	p.focused = false
	p.input.Blur()
}

// Focused returns whether the prompt has focus
func (p *Prompt) Focused() bool {
	return p.focused
}

// Value returns the current input value
func (p *Prompt) Value() string {
	return p.input.Value()
}

// Reset clears the input
func (p *Prompt) Reset() {
	p.input.Reset()
}

// Update handles input events
func (p *Prompt) Update(msg tea.Msg) (*Prompt, tea.Cmd) {
	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	return p, cmd
}

// View renders the prompt
func (p *Prompt) View() string {
	style := SelectorDim
	if p.focused {
		style = PromptStyle
	}
	return HelpStyle.Render(p.label) + "\n" + style.Render(SymbolPrompt) + " " + p.input.View()
}

// SessionPrompter is the wallet prompter behind the dashboard. The keystore
// password is entered in the dashboard before connecting, and transactions
// are approved there before Mint is called, so ApproveTransaction always
// succeeds.
type SessionPrompter struct {
	mu       sync.Mutex
	password string
}

func NewSessionPrompter(password string) *SessionPrompter {
	return &SessionPrompter{password: password}
}

func (p *SessionPrompter) SetPassword(password string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.password = password
}

func (p *SessionPrompter) HasPassword() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.password != ""
}

// Authorize picks the first keystore account.
func (p *SessionPrompter) Authorize(ctx context.Context, candidates []common.Address) (common.Address, string, error) {
	if len(candidates) == 0 {
		return common.Address{}, "", wallet.ErrNoWallet
	}
	p.mu.Lock()
	password := p.password
	p.mu.Unlock()
	if password == "" {
		return common.Address{}, "", fmt.Errorf("%w: no password entered", wallet.ErrUserRejected)
	}
	return candidates[0], password, nil
}

func (p *SessionPrompter) ApproveTransaction(ctx context.Context, req wallet.ApprovalRequest) error {
	return nil
}

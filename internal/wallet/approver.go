package wallet

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"mintdrop/internal/ledger"
)

// Approver asks the identity holder to confirm an action. A decline is reported as
// ledger.ErrUserRejected.
type Approver interface {
	ApproveConnect(ctx context.Context, id Identity) error
	ApproveClaim(ctx context.Context, id Identity, prompt ledger.ClaimPrompt) error
}

// AutoApprove confirms everything. Used by the HTTP daemon where the presenter already
// collected consent before calling the claim endpoint.
type AutoApprove struct{}

func (AutoApprove) ApproveConnect(context.Context, Identity) error { return nil }

func (AutoApprove) ApproveClaim(context.Context, Identity, ledger.ClaimPrompt) error { return nil }

// PromptApprover asks on a terminal and accepts only an explicit "y" or "yes".
type PromptApprover struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer
}

func NewPromptApprover(in io.Reader, out io.Writer) *PromptApprover {
	return &PromptApprover{in: bufio.NewReader(in), out: out}
}

func (p *PromptApprover) ApproveConnect(ctx context.Context, id Identity) error {
	return p.ask(ctx, fmt.Sprintf("Connect wallet %s? [y/N] ", id.Short()))
}

func (p *PromptApprover) ApproveClaim(ctx context.Context, id Identity, prompt ledger.ClaimPrompt) error {
	question := fmt.Sprintf("Claim %d token(s) from %s for %s %s each as %s? [y/N] ",
		prompt.Quantity, Identity(prompt.Contract).Short(), prompt.Price.Decimal(), prompt.Price.Symbol, id.Short())
	return p.ask(ctx, question)
}

func (p *PromptApprover) ask(ctx context.Context, question string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := fmt.Fprint(p.out, question); err != nil {
		return err
	}
	line, err := p.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return nil
	default:
		return ledger.ErrUserRejected
	}
}

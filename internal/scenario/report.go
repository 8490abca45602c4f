package scenario

import (
	"context"
	"fmt"
	"io"

	"github.com/gagliardetto/solana-go"
	"github.com/olekukonko/tablewriter"
	"github.com/tos-network/incofund/accounts"
	"github.com/tos-network/incofund/attest"
	"github.com/tos-network/incofund/core/handle"
	"github.com/tos-network/incofund/core/layout"
	"github.com/tos-network/incofund/params"
	"golang.org/x/sync/errgroup"
)

// Entry is one decrypted balance of a snapshot.
type Entry struct {
	Label   string
	Account solana.PublicKey
	Reader  *accounts.Party
	Handle  handle.Handle
	Result  attest.Result
}

// Display renders the entry's amount, or its failure outcome.
func (e Entry) Display() string {
	if e.Result.Outcome != attest.OutcomeOK {
		return e.Result.Outcome.String()
	}
	s, err := attest.FormatAmount(e.Result.Plaintext, params.Decimals)
	if err != nil {
		return e.Result.Plaintext
	}
	return s
}

// Report is a snapshot of every scenario balance and the campaign state.
type Report struct {
	Balances     []Entry
	Total        Entry
	Contributors uint64
	Finalized    bool
}

// Entry returns the balance entry with the given label.
func (r *Report) Entry(label string) (Entry, bool) {
	for _, e := range r.Balances {
		if e.Label == label {
			return e, true
		}
	}
	if r.Total.Label == label {
		return r.Total, true
	}
	return Entry{}, false
}

// Print writes the report as a table.
func (r *Report) Print(w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Balance", "Account", "Amount"})
	table.SetAutoWrapText(false)
	for _, e := range r.Balances {
		table.Append([]string{e.Label, e.Account.String(), e.Display()})
	}
	table.Append([]string{r.Total.Label, r.Total.Account.String(), r.Total.Display()})
	table.Append([]string{"contributors", "", fmt.Sprint(r.Contributors)})
	table.Append([]string{"finalized", "", fmt.Sprint(r.Finalized)})
	table.Render()
}

// Snapshot reads every balance of sc and the campaign total concurrently and
// decrypts each one as its owner.
func (r *Runner) Snapshot(ctx context.Context, sc *Context) (*Report, error) {
	report := &Report{Balances: make([]Entry, 0, len(sc.Users)+2)}
	for i, user := range sc.Users {
		report.Balances = append(report.Balances, Entry{Label: user.Name, Account: sc.UserAccounts[i], Reader: user})
	}
	report.Balances = append(report.Balances,
		Entry{Label: "vault", Account: sc.Vault, Reader: sc.Creator},
		Entry{Label: "payout", Account: sc.Payout, Reader: sc.Creator},
	)
	report.Total = Entry{Label: "total", Account: sc.Funding, Reader: sc.Creator}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Parallel)
	for i := range report.Balances {
		e := &report.Balances[i]
		g.Go(func() error {
			return r.fill(gctx, e, false)
		})
	}
	g.Go(func() error {
		return r.fill(gctx, &report.Total, true)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	data, err := r.reader.AccountData(ctx, sc.Funding)
	if err != nil {
		return nil, err
	}
	campaign, err := layout.DecodeFunding(data)
	if err != nil {
		return nil, fmt.Errorf("scenario: campaign %s: %w", sc.Funding, err)
	}
	report.Contributors = campaign.ContributorCount
	report.Finalized = campaign.IsFinalized
	return report, nil
}

func (r *Runner) fill(ctx context.Context, e *Entry, total bool) error {
	data, err := r.reader.AccountData(ctx, e.Account)
	if err != nil {
		return fmt.Errorf("scenario: read %s: %w", e.Label, err)
	}
	var ok bool
	if total {
		e.Handle, ok, err = layout.FundingTotalHandle(data)
	} else {
		e.Handle, ok, err = layout.BalanceHandle(data)
	}
	if err != nil {
		return fmt.Errorf("scenario: decode %s: %w", e.Label, err)
	}
	if !ok {
		return fmt.Errorf("scenario: %s account %s does not exist", e.Label, e.Account)
	}
	if e.Handle.IsZero() {
		// Nothing was ever credited; there is no ciphertext to decrypt.
		e.Result = attest.Result{Handle: e.Handle, Outcome: attest.OutcomeOK, Plaintext: "0"}
		return nil
	}
	e.Result = r.oracle.WaitDecrypt(ctx, e.Handle, e.Reader, r.cfg.Retry)
	return nil
}

package orchestrator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/tos-network/incofund"
	"github.com/tos-network/incofund/core/handle"
	"github.com/tos-network/incofund/core/program"
)

var (
	ErrInvalidTransition = errors.New("orchestrator: invalid state transition")
	ErrNotPrepared       = errors.New("orchestrator: operation not prepared")
	ErrSubmissionFailed  = errors.New("orchestrator: submission failed")
	ErrAccountNotFound   = errors.New("orchestrator: account not found")
	ErrCampaignNotFound  = errors.New("orchestrator: campaign not found")
	ErrCampaignFinalized = errors.New("orchestrator: campaign finalized")
	ErrNotCreator        = errors.New("orchestrator: signer is not the campaign creator")
	ErrTotalMismatch     = errors.New("orchestrator: logged total differs from campaign snapshot")
	ErrSkew              = errors.New("orchestrator: ledger diverged from resolution")
)

// SubmissionError reports a transaction the ledger rejected or failed to
// execute.
type SubmissionError struct {
	Err     error
	Logs    []string
	Program *program.Error // nil unless a program error could be decoded
}

func newSubmissionError(err error) *SubmissionError {
	serr := &SubmissionError{Err: err}
	var le incofund.LogError
	if errors.As(err, &le) {
		serr.Logs = le.TxLogs()
	}
	if e, ok := program.ErrorFromLogs(serr.Logs); ok {
		serr.Program = e
	}
	return serr
}

func (e *SubmissionError) Error() string {
	if e.Program != nil {
		return fmt.Sprintf("%v: %v", ErrSubmissionFailed, e.Program)
	}
	return fmt.Sprintf("%v: %v", ErrSubmissionFailed, e.Err)
}

func (e *SubmissionError) Unwrap() []error { return []error{ErrSubmissionFailed, e.Err} }

func (e *SubmissionError) TxLogs() []string { return e.Logs }

// Mismatch is an account whose ledger handle differs from the expected one.
type Mismatch struct {
	Account solana.PublicKey
	Want    handle.Handle
	Have    handle.Handle
	Absent  bool
}

func (m Mismatch) String() string {
	if m.Absent {
		return fmt.Sprintf("%s: want %s, account absent", m.Account, m.Want)
	}
	return fmt.Sprintf("%s: want %s, have %s", m.Account, m.Want, m.Have)
}

// SkewError reports accounts that no longer hold the handles an operation
// was resolved against. Before submission it compares the handles observed
// at preparation; after commit it compares the resolved handles.
type SkewError struct {
	Committed  bool
	Mismatches []Mismatch
}

func (e *SkewError) Error() string {
	parts := make([]string, len(e.Mismatches))
	for i, m := range e.Mismatches {
		parts[i] = m.String()
	}
	stage := "prepared"
	if e.Committed {
		stage = "committed"
	}
	return fmt.Sprintf("%v (%s): %s", ErrSkew, stage, strings.Join(parts, "; "))
}

func (e *SkewError) Unwrap() error { return ErrSkew }

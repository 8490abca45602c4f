package simledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/tos-network/incofund/core/program"
)

// computeBudget is the per-transaction unit limit reported in logs.
const computeBudget = 200_000

// Units charged per executed instruction.
var instructionUnits = map[string]uint64{
	program.InitializeMintName:    6_500,
	program.InitializeAccountName: 7_200,
	program.MintToName:            14_800,
	program.TransferName:          18_300,
	program.InitializeName:        24_100,
	program.DepositName:           41_700,
	program.WithdrawName:          44_900,
}

// programError is a custom error raised by a simulated program.
type programError struct {
	code uint32
}

func (e *programError) Error() string {
	if pe, ok := program.LookupError(e.code); ok {
		return pe.Error()
	}
	return fmt.Sprintf("custom program error: %#x", e.code)
}

func fail(code uint32) error {
	return &programError{code: code}
}

// meta is an instruction account together with its message privileges.
type meta struct {
	key      solana.PublicKey
	signer   bool
	writable bool
}

// execution runs the instructions of one transaction against a state copy.
type execution struct {
	ledger *Ledger
	st     *state
	logs   []string
	units  uint64
}

type receipt struct {
	logs  []string
	units uint64
	err   json.RawMessage // nil on success
}

func (e *execution) log(format string, args ...interface{}) {
	e.logs = append(e.logs, "Program log: "+fmt.Sprintf(format, args...))
}

func (e *execution) run(tx *solana.Transaction) *receipt {
	msg := tx.Message
	keys := msg.AccountKeys
	for i, ix := range msg.Instructions {
		if int(ix.ProgramIDIndex) >= len(keys) {
			return e.abort(json.RawMessage(fmt.Sprintf(`{"InstructionError":[%d,"ProgramAccountNotFound"]}`, i)))
		}
		pid := keys[ix.ProgramIDIndex]
		accs := make([]meta, 0, len(ix.Accounts))
		for _, idx := range ix.Accounts {
			if int(idx) >= len(keys) {
				return e.abort(json.RawMessage(fmt.Sprintf(`{"InstructionError":[%d,"NotEnoughAccountKeys"]}`, i)))
			}
			accs = append(accs, meta{
				key:      keys[idx],
				signer:   isSigner(&msg, int(idx)),
				writable: isWritable(&msg, int(idx)),
			})
		}
		if err := e.invoke(pid, accs, ix.Data, 1); err != nil {
			var perr *programError
			if errors.As(err, &perr) {
				return e.abort(program.CustomErrorJSON(i, perr.code))
			}
			return e.abort(json.RawMessage(fmt.Sprintf(`{"InstructionError":[%d,"UnsupportedProgramId"]}`, i)))
		}
	}
	return &receipt{logs: e.logs, units: e.units}
}

func (e *execution) abort(raw json.RawMessage) *receipt {
	return &receipt{logs: e.logs, units: e.units, err: raw}
}

var errUnsupportedProgram = errors.New("simledger: unsupported program")

// invoke dispatches one instruction and writes the surrounding runtime logs.
func (e *execution) invoke(pid solana.PublicKey, accs []meta, data []byte, depth int) error {
	e.logs = append(e.logs, fmt.Sprintf("Program %s invoke [%d]", pid, depth))
	cfg := e.ledger.cfg

	var err error
	switch pid {
	case cfg.TokenProgram:
		err = e.token(accs, data)
	case cfg.FundingProgram:
		err = e.funding(accs, data)
	default:
		err = errUnsupportedProgram
	}
	var used uint64
	if name, nerr := program.Name(data); nerr == nil && depth == 1 {
		used = instructionUnits[name]
		e.units += used
	}
	if err != nil {
		var perr *programError
		if errors.As(err, &perr) && depth == 1 {
			if pe, ok := program.LookupError(perr.code); ok && perr.code < 6000 {
				e.log("AnchorError occurred. Error Code: %s. Error Number: %d. Error Message: %s.", pe.Name, pe.Code, pe.Msg)
			}
		}
		e.logs = append(e.logs, fmt.Sprintf("Program %s failed: %s", pid, failureText(err)))
		return err
	}
	if depth == 1 {
		e.logs = append(e.logs, fmt.Sprintf("Program %s consumed %d of %d compute units", pid, used, computeBudget))
	}
	e.logs = append(e.logs, fmt.Sprintf("Program %s success", pid))
	return nil
}

// cpi runs fn as a cross-program invocation of the token program.
func (e *execution) cpi(pid solana.PublicKey, name string, fn func() error) error {
	if pid != e.ledger.cfg.TokenProgram {
		return errUnsupportedProgram
	}
	e.logs = append(e.logs, fmt.Sprintf("Program %s invoke [2]", pid))
	e.log("Instruction: %s", instructionTitle(name))
	if err := fn(); err != nil {
		e.logs = append(e.logs, fmt.Sprintf("Program %s failed: %s", pid, failureText(err)))
		return err
	}
	e.logs = append(e.logs, fmt.Sprintf("Program %s success", pid))
	return nil
}

func failureText(err error) string {
	var perr *programError
	if errors.As(err, &perr) {
		return fmt.Sprintf("custom program error: %#x", perr.code)
	}
	return err.Error()
}

// instructionTitle renders an instruction name the way program logs do,
// e.g. "mint_to" becomes "MintTo".
func instructionTitle(name string) string {
	parts := strings.Split(name, "_")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, "")
}

func isSigner(msg *solana.Message, idx int) bool {
	return idx < int(msg.Header.NumRequiredSignatures)
}

func isWritable(msg *solana.Message, idx int) bool {
	h := msg.Header
	signed := int(h.NumRequiredSignatures)
	if idx < signed {
		return idx < signed-int(h.NumReadonlySignedAccounts)
	}
	return idx < len(msg.AccountKeys)-int(h.NumReadonlyUnsignedAccounts)
}

func requireAccounts(accs []meta, n int) error {
	if len(accs) < n {
		return fail(program.CodeAccountNotEnoughKeys)
	}
	return nil
}

func requireSigner(m meta) error {
	if !m.signer {
		return fail(program.CodeConstraintSigner)
	}
	return nil
}

func requireWritable(ms ...meta) error {
	for _, m := range ms {
		if !m.writable {
			return fail(program.CodeConstraintMut)
		}
	}
	return nil
}

func (e *execution) requireLightning(m meta) error {
	if m.key != e.ledger.cfg.Lightning {
		return fail(program.CodeConstraintAddress)
	}
	return nil
}

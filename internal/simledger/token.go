package simledger

import (
	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"github.com/tos-network/incofund/core/derive"
	"github.com/tos-network/incofund/core/handle"
	"github.com/tos-network/incofund/core/layout"
	"github.com/tos-network/incofund/core/program"
)

func (e *execution) token(accs []meta, data []byte) error {
	name, err := program.Name(data)
	if err != nil {
		return fail(program.CodeInstructionFallbackNotFound)
	}
	e.log("Instruction: %s", instructionTitle(name))
	switch name {
	case program.InitializeMintName:
		return e.initializeMint(accs, data)
	case program.InitializeAccountName:
		return e.initializeAccount(accs)
	case program.MintToName:
		return e.mintTo(accs, data)
	case program.TransferName:
		return e.transferInstruction(accs, data)
	default:
		return fail(program.CodeInstructionFallbackNotFound)
	}
}

func (e *execution) initializeMint(accs []meta, data []byte) error {
	if err := requireAccounts(accs, program.InitMintAccounts); err != nil {
		return err
	}
	args, err := program.DecodeInitializeMint(data)
	if err != nil {
		return fail(program.CodeInstructionDidNotDeserialize)
	}
	mint := accs[program.InitMintMint]
	if err := requireSigner(mint); err != nil {
		return err
	}
	if err := requireSigner(accs[program.InitMintPayer]); err != nil {
		return err
	}
	if err := e.requireLightning(accs[program.InitMintLightning]); err != nil {
		return err
	}
	if e.st.exists(mint.key) {
		return fail(program.CodeAlreadyInUse)
	}
	authority := args.MintAuthority
	e.st.accounts[mint.key] = layout.EncodeMint(&layout.Mint{
		MintAuthority:   &authority,
		Decimals:        args.Decimals,
		IsInitialized:   true,
		FreezeAuthority: args.FreezeAuthority,
	})
	return nil
}

func (e *execution) initializeAccount(accs []meta) error {
	if err := requireAccounts(accs, program.InitAccountAccounts); err != nil {
		return err
	}
	account := accs[program.InitAccountAccount]
	if err := requireSigner(account); err != nil {
		return err
	}
	if err := requireSigner(accs[program.InitAccountPayer]); err != nil {
		return err
	}
	if err := e.requireLightning(accs[program.InitAccountLightning]); err != nil {
		return err
	}
	return e.createBalance(account.key, accs[program.InitAccountMint].key, accs[program.InitAccountOwner].key)
}

// createBalance opens a balance account holding the zero handle.
func (e *execution) createBalance(account, mint, owner solana.PublicKey) error {
	if e.st.exists(account) {
		return fail(program.CodeAlreadyInUse)
	}
	if _, err := e.st.mint(mint); err != nil {
		return err
	}
	e.st.accounts[account] = layout.EncodeBalanceAccount(&layout.BalanceAccount{
		Mint:  mint,
		Owner: owner,
		State: layout.StateInitialized,
	})
	return nil
}

func (e *execution) mintTo(accs []meta, data []byte) error {
	if err := requireAccounts(accs, program.MintToAccounts); err != nil {
		return err
	}
	args, err := program.DecodeCiphertextArgs(data, program.MintToName)
	if err != nil {
		return fail(program.CodeInstructionDidNotDeserialize)
	}
	mintMeta, accMeta, authority := accs[program.MintToMint], accs[program.MintToAccount], accs[program.MintToAuthority]
	if err := requireWritable(mintMeta, accMeta); err != nil {
		return err
	}
	if err := requireSigner(authority); err != nil {
		return err
	}
	if err := e.requireLightning(accs[program.MintToLightning]); err != nil {
		return err
	}
	mint, err := e.st.mint(mintMeta.key)
	if err != nil {
		return err
	}
	if mint.MintAuthority == nil || *mint.MintAuthority != authority.key {
		return fail(program.CodeOwnerMismatch)
	}
	acc, err := e.st.balance(accMeta.key)
	if err != nil {
		return err
	}
	if acc.Mint != mintMeta.key {
		return fail(program.CodeMintMismatch)
	}
	if acc.State == layout.StateFrozen {
		return fail(program.CodeInvalidState)
	}
	amount, err := decrypt(args.Ciphertext, args.InputType)
	if err != nil {
		return fail(program.CodeInstructionDidNotDeserialize)
	}
	acc.Amount = e.st.issue(addSaturating(e.st.value(acc.Amount), amount))
	mint.Supply = e.st.issue(addSaturating(e.st.value(mint.Supply), amount))
	e.st.accounts[accMeta.key] = layout.EncodeBalanceAccount(acc)
	e.st.accounts[mintMeta.key] = layout.EncodeMint(mint)
	e.log("Balance handle: %s", acc.Amount)

	rem := accs[program.MintToAccounts:]
	if len(rem) >= 2 {
		return e.allow(rem[0], rem[1], acc.Amount)
	}
	return nil
}

func (e *execution) transferInstruction(accs []meta, data []byte) error {
	if err := requireAccounts(accs, program.TransferAccounts); err != nil {
		return err
	}
	args, err := program.DecodeCiphertextArgs(data, program.TransferName)
	if err != nil {
		return fail(program.CodeInstructionDidNotDeserialize)
	}
	authority := accs[program.TransferAuthority]
	if err := requireSigner(authority); err != nil {
		return err
	}
	if err := e.requireLightning(accs[program.TransferLightning]); err != nil {
		return err
	}
	amount, err := decrypt(args.Ciphertext, args.InputType)
	if err != nil {
		return fail(program.CodeInstructionDidNotDeserialize)
	}
	return e.transfer(accs[program.TransferSource], accs[program.TransferDestination], authority.key, amount, accs[program.TransferAccounts:])
}

// transfer moves amount from source to destination. An insufficient source
// balance moves zero instead of failing, so the outcome stays confidential.
// Remaining accounts grant the new source balance, then the new destination
// balance.
func (e *execution) transfer(source, destination meta, authority solana.PublicKey, amount *uint256.Int, rem []meta) error {
	if err := requireWritable(source, destination); err != nil {
		return err
	}
	src, err := e.st.balance(source.key)
	if err != nil {
		return err
	}
	if _, err := e.st.balance(destination.key); err != nil {
		return err
	}
	if src.Owner != authority {
		return fail(program.CodeOwnerMismatch)
	}
	if src.State == layout.StateFrozen {
		return fail(program.CodeInvalidState)
	}
	moved := amount
	if e.st.value(src.Amount).Lt(amount) {
		moved = new(uint256.Int)
	}
	src.Amount = e.st.issue(subSaturating(e.st.value(src.Amount), moved))
	e.st.accounts[source.key] = layout.EncodeBalanceAccount(src)

	dst, err := e.st.balance(destination.key)
	if err != nil {
		return err
	}
	if dst.Mint != src.Mint {
		return fail(program.CodeMintMismatch)
	}
	if dst.State == layout.StateFrozen {
		return fail(program.CodeInvalidState)
	}
	dst.Amount = e.st.issue(addSaturating(e.st.value(dst.Amount), moved))
	e.st.accounts[destination.key] = layout.EncodeBalanceAccount(dst)

	if len(rem) >= 2 {
		if err := e.allow(rem[0], rem[1], src.Amount); err != nil {
			return err
		}
	}
	if len(rem) >= 4 {
		if err := e.allow(rem[2], rem[3], dst.Amount); err != nil {
			return err
		}
	}
	return nil
}

// allow grants party access to h. The allowance account must be the one
// derived from (h, party).
func (e *execution) allow(allowance, party meta, h handle.Handle) error {
	want, err := derive.AllowanceAddressIn(e.ledger.cfg.Lightning, h, party.key)
	if err != nil || want.Key != allowance.key {
		return fail(program.CodeConstraintSeeds)
	}
	if err := requireWritable(allowance); err != nil {
		return err
	}
	e.st.allow(h, party.key)
	b := h.Bytes()
	data := make([]byte, 0, len(b)+len(party.key)+1)
	data = append(data, b[:]...)
	data = append(data, party.key[:]...)
	e.st.accounts[allowance.key] = append(data, 1)
	return nil
}

package simledger

import (
	"github.com/holiman/uint256"
	"github.com/tos-network/incofund/core/derive"
	"github.com/tos-network/incofund/core/layout"
	"github.com/tos-network/incofund/core/program"
	"github.com/tos-network/incofund/params"
)

func (e *execution) funding(accs []meta, data []byte) error {
	name, err := program.Name(data)
	if err != nil {
		return fail(program.CodeInstructionFallbackNotFound)
	}
	e.log("Instruction: %s", instructionTitle(name))
	switch name {
	case program.InitializeName:
		return e.initializeCampaign(accs)
	case program.DepositName:
		return e.deposit(accs, data)
	case program.WithdrawName:
		return e.withdraw(accs, data)
	default:
		return fail(program.CodeInstructionFallbackNotFound)
	}
}

func (e *execution) initializeCampaign(accs []meta) error {
	if err := requireAccounts(accs, program.InitVaultAccounts); err != nil {
		return err
	}
	cfg := e.ledger.cfg
	signer, funding, vault, mint := accs[program.InitVaultSigner], accs[program.InitVaultFunding], accs[program.InitVaultVault], accs[program.InitVaultMint]
	if err := requireSigner(signer); err != nil {
		return err
	}
	if err := requireWritable(funding, vault); err != nil {
		return err
	}
	if want, err := derive.FundingAddress(cfg.FundingProgram, signer.key); err != nil || want.Key != funding.key {
		return fail(program.CodeConstraintSeeds)
	}
	if want, err := derive.VaultAddress(cfg.FundingProgram, funding.key, mint.key); err != nil || want.Key != vault.key {
		return fail(program.CodeConstraintSeeds)
	}
	if err := e.requireLightning(accs[program.InitVaultLightning]); err != nil {
		return err
	}
	if e.st.exists(funding.key) {
		return fail(program.CodeAlreadyInUse)
	}
	err := e.cpi(accs[program.InitVaultToken].key, program.InitializeAccountName, func() error {
		return e.createBalance(vault.key, mint.key, funding.key)
	})
	if err != nil {
		return err
	}
	e.st.accounts[funding.key] = layout.EncodeFunding(&layout.Funding{
		Creator:   signer.key,
		Vault:     vault.key,
		Mint:      mint.key,
		Total:     e.st.issue(new(uint256.Int)),
		CreatedAt: cfg.Now().Unix(),
	})
	return nil
}

func (e *execution) deposit(accs []meta, data []byte) error {
	if err := requireAccounts(accs, program.DepositAccounts); err != nil {
		return err
	}
	ct, err := program.DecodeAmount(data, program.DepositName)
	if err != nil {
		return fail(program.CodeInstructionDidNotDeserialize)
	}
	cfg := e.ledger.cfg
	signer, source, vault, mint, fundingMeta := accs[program.DepositSigner], accs[program.DepositSource], accs[program.DepositVault], accs[program.DepositMint], accs[program.DepositFunding]
	if err := requireSigner(signer); err != nil {
		return err
	}
	if err := requireWritable(fundingMeta); err != nil {
		return err
	}
	funding, err := e.st.funding(fundingMeta.key)
	if err != nil {
		return err
	}
	if want, err := derive.VaultAddress(cfg.FundingProgram, fundingMeta.key, mint.key); err != nil || want.Key != vault.key {
		return fail(program.CodeConstraintSeeds)
	}
	if want, err := derive.FundingAddress(cfg.FundingProgram, funding.Creator); err != nil || want.Key != fundingMeta.key {
		return fail(program.CodeConstraintSeeds)
	}
	if err := e.requireLightning(accs[program.DepositLightning]); err != nil {
		return err
	}
	amount, err := decrypt(ct, params.InputType)
	if err != nil {
		return fail(program.CodeInstructionDidNotDeserialize)
	}
	err = e.cpi(accs[program.DepositToken].key, program.TransferName, func() error {
		return e.transfer(source, vault, signer.key, amount, accs[program.DepositAccounts:])
	})
	if err != nil {
		return err
	}
	// The running total grows by the requested amount.
	e.st.issue(amount)
	funding.Total = e.st.issue(addSaturating(e.st.value(funding.Total), amount))
	funding.ContributorCount++
	e.st.accounts[fundingMeta.key] = layout.EncodeFunding(funding)
	return nil
}

func (e *execution) withdraw(accs []meta, data []byte) error {
	if err := requireAccounts(accs, program.WithdrawAccounts); err != nil {
		return err
	}
	ct, err := program.DecodeAmount(data, program.WithdrawName)
	if err != nil {
		return fail(program.CodeInstructionDidNotDeserialize)
	}
	cfg := e.ledger.cfg
	taker, destination, vault, fundingMeta := accs[program.WithdrawTaker], accs[program.WithdrawDestination], accs[program.WithdrawVault], accs[program.WithdrawFunding]
	if err := requireSigner(taker); err != nil {
		return err
	}
	if err := requireWritable(fundingMeta); err != nil {
		return err
	}
	funding, err := e.st.funding(fundingMeta.key)
	if err != nil {
		return err
	}
	if want, err := derive.VaultAddress(cfg.FundingProgram, fundingMeta.key, funding.Mint); err != nil || want.Key != vault.key {
		return fail(program.CodeConstraintSeeds)
	}
	if want, err := derive.FundingAddress(cfg.FundingProgram, taker.key); err != nil || want.Key != fundingMeta.key {
		return fail(program.CodeConstraintSeeds)
	}
	if err := e.requireLightning(accs[program.WithdrawLightning]); err != nil {
		return err
	}
	if taker.key != funding.Creator {
		return fail(program.CodeOwnerMismatch)
	}
	amount, err := decrypt(ct, params.InputType)
	if err != nil {
		return fail(program.CodeInstructionDidNotDeserialize)
	}
	// The campaign account signs for its vault.
	err = e.cpi(accs[program.WithdrawToken].key, program.TransferName, func() error {
		return e.transfer(vault, destination, fundingMeta.key, amount, nil)
	})
	if err != nil {
		return err
	}
	e.st.issue(amount)
	funding.Total = e.st.issue(subSaturating(e.st.value(funding.Total), amount))
	e.st.accounts[fundingMeta.key] = layout.EncodeFunding(funding)
	e.log("   %s %s", params.TotalLogLabel, funding.Total)

	rem := accs[program.WithdrawAccounts:]
	if len(rem) >= 2 {
		vaultAcc, err := e.st.balance(vault.key)
		if err != nil {
			return err
		}
		if err := e.allow(rem[0], rem[1], vaultAcc.Amount); err != nil {
			return err
		}
	}
	if len(rem) >= 4 {
		if err := e.allow(rem[2], rem[3], funding.Total); err != nil {
			return err
		}
	}
	return nil
}

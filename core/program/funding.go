package program

import (
	"github.com/gagliardetto/solana-go"
)

// Account positions of the funding program instructions.
const (
	InitVaultSigner = iota
	InitVaultFunding
	InitVaultVault
	InitVaultMint
	InitVaultSystem
	InitVaultLightning
	InitVaultToken
	InitVaultAccounts
)

const (
	DepositSigner = iota
	DepositSource
	DepositVault
	DepositMint
	DepositFunding
	DepositLightning
	DepositToken
	DepositSystem
	DepositAccounts
)

const (
	WithdrawTaker = iota
	WithdrawDestination
	WithdrawVault
	WithdrawFunding
	WithdrawLightning
	WithdrawToken
	WithdrawSystem
	WithdrawAccounts
)

// FundingProgram builds instructions for a deployed funding program.
type FundingProgram struct {
	ID        solana.PublicKey
	Token     solana.PublicKey
	Lightning solana.PublicKey
}

// Initialize opens the campaign of signer: funding and vault are the derived
// campaign and vault addresses.
func (p FundingProgram) Initialize(signer, funding, vault, mint solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(p.ID, solana.AccountMetaSlice{
		solana.NewAccountMeta(signer, true, true),
		solana.NewAccountMeta(funding, true, false),
		solana.NewAccountMeta(vault, true, false),
		solana.NewAccountMeta(mint, false, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
		solana.NewAccountMeta(p.Lightning, false, false),
		solana.NewAccountMeta(p.Token, false, false),
	}, newEncoder(InitializeName).bytes())
}

// Deposit moves an encrypted amount from source into the campaign vault and
// adds it to the campaign's encrypted total.
func (p FundingProgram) Deposit(signer, source, vault, mint, funding solana.PublicKey, ciphertext []byte, remaining solana.AccountMetaSlice) (solana.Instruction, error) {
	if len(ciphertext) == 0 {
		return nil, ErrEmptyCiphertext
	}
	accounts := append(solana.AccountMetaSlice{
		solana.NewAccountMeta(signer, true, true),
		solana.NewAccountMeta(source, true, false),
		solana.NewAccountMeta(vault, true, false),
		solana.NewAccountMeta(mint, false, false),
		solana.NewAccountMeta(funding, true, false),
		solana.NewAccountMeta(p.Lightning, false, false),
		solana.NewAccountMeta(p.Token, false, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}, remaining...)
	return solana.NewInstruction(p.ID, accounts, newEncoder(DepositName).vec(ciphertext).bytes()), nil
}

// Withdraw moves an encrypted amount out of the vault of taker's campaign.
func (p FundingProgram) Withdraw(taker, destination, vault, funding solana.PublicKey, ciphertext []byte, remaining solana.AccountMetaSlice) (solana.Instruction, error) {
	if len(ciphertext) == 0 {
		return nil, ErrEmptyCiphertext
	}
	accounts := append(solana.AccountMetaSlice{
		solana.NewAccountMeta(taker, true, true),
		solana.NewAccountMeta(destination, true, false),
		solana.NewAccountMeta(vault, true, false),
		solana.NewAccountMeta(funding, true, false),
		solana.NewAccountMeta(p.Lightning, false, false),
		solana.NewAccountMeta(p.Token, false, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}, remaining...)
	return solana.NewInstruction(p.ID, accounts, newEncoder(WithdrawName).vec(ciphertext).bytes()), nil
}

// DecodeAmount decodes the ciphertext argument of deposit and withdraw.
func DecodeAmount(data []byte, name string) ([]byte, error) {
	d, err := newDecoder(data, name)
	if err != nil {
		return nil, err
	}
	ct, err := d.vec()
	if err != nil {
		return nil, err
	}
	return ct, d.done()
}

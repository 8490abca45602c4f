package program

import (
	"github.com/gagliardetto/solana-go"
)

// Account positions of the token program instructions. Accounts past the
// declared ones are "remaining accounts" and carry allowance bindings.
const (
	InitMintMint = iota
	InitMintPayer
	InitMintSystem
	InitMintLightning
	InitMintAccounts
)

const (
	InitAccountAccount = iota
	InitAccountMint
	InitAccountOwner
	InitAccountPayer
	InitAccountSystem
	InitAccountLightning
	InitAccountAccounts
)

const (
	MintToMint = iota
	MintToAccount
	MintToAuthority
	MintToLightning
	MintToSystem
	MintToAccounts
)

const (
	TransferSource = iota
	TransferDestination
	TransferAuthority
	TransferLightning
	TransferSystem
	TransferAccounts
)

// TokenProgram builds instructions for a deployed confidential token program.
type TokenProgram struct {
	ID        solana.PublicKey
	Lightning solana.PublicKey
}

// InitializeMintArgs are the arguments of initialize_mint.
type InitializeMintArgs struct {
	Decimals        uint8
	MintAuthority   solana.PublicKey
	FreezeAuthority *solana.PublicKey
}

// CiphertextArgs are the arguments shared by every instruction moving an
// encrypted amount.
type CiphertextArgs struct {
	Ciphertext []byte
	InputType  uint8
}

func (p TokenProgram) InitializeMint(mint, payer solana.PublicKey, args InitializeMintArgs) solana.Instruction {
	data := newEncoder(InitializeMintName).
		u8(args.Decimals).
		pubkey(args.MintAuthority).
		optionPubkey(args.FreezeAuthority).
		bytes()
	return solana.NewInstruction(p.ID, solana.AccountMetaSlice{
		solana.NewAccountMeta(mint, true, true),
		solana.NewAccountMeta(payer, true, true),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
		solana.NewAccountMeta(p.Lightning, false, false),
	}, data)
}

func (p TokenProgram) InitializeAccount(account, mint, owner, payer solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(p.ID, solana.AccountMetaSlice{
		solana.NewAccountMeta(account, true, true),
		solana.NewAccountMeta(mint, false, false),
		solana.NewAccountMeta(owner, false, false),
		solana.NewAccountMeta(payer, true, true),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
		solana.NewAccountMeta(p.Lightning, false, false),
	}, newEncoder(InitializeAccountName).bytes())
}

// MintTo mints an encrypted amount into account. Remaining accounts bind the
// account's new handle to the parties allowed to decrypt it.
func (p TokenProgram) MintTo(mint, account, authority solana.PublicKey, args CiphertextArgs, remaining solana.AccountMetaSlice) (solana.Instruction, error) {
	if len(args.Ciphertext) == 0 {
		return nil, ErrEmptyCiphertext
	}
	accounts := append(solana.AccountMetaSlice{
		solana.NewAccountMeta(mint, true, false),
		solana.NewAccountMeta(account, true, false),
		solana.NewAccountMeta(authority, false, true),
		solana.NewAccountMeta(p.Lightning, false, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}, remaining...)
	data := newEncoder(MintToName).vec(args.Ciphertext).u8(args.InputType).bytes()
	return solana.NewInstruction(p.ID, accounts, data), nil
}

// Transfer moves an encrypted amount between two balance accounts.
func (p TokenProgram) Transfer(source, destination, authority solana.PublicKey, args CiphertextArgs, remaining solana.AccountMetaSlice) (solana.Instruction, error) {
	if len(args.Ciphertext) == 0 {
		return nil, ErrEmptyCiphertext
	}
	accounts := append(solana.AccountMetaSlice{
		solana.NewAccountMeta(source, true, false),
		solana.NewAccountMeta(destination, true, false),
		solana.NewAccountMeta(authority, false, true),
		solana.NewAccountMeta(p.Lightning, false, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}, remaining...)
	data := newEncoder(TransferName).vec(args.Ciphertext).u8(args.InputType).bytes()
	return solana.NewInstruction(p.ID, accounts, data), nil
}

func DecodeInitializeMint(data []byte) (InitializeMintArgs, error) {
	d, err := newDecoder(data, InitializeMintName)
	if err != nil {
		return InitializeMintArgs{}, err
	}
	var args InitializeMintArgs
	if args.Decimals, err = d.u8(); err != nil {
		return InitializeMintArgs{}, err
	}
	if args.MintAuthority, err = d.pubkey(); err != nil {
		return InitializeMintArgs{}, err
	}
	if args.FreezeAuthority, err = d.optionPubkey(); err != nil {
		return InitializeMintArgs{}, err
	}
	return args, d.done()
}

// DecodeCiphertextArgs decodes mint_to and transfer arguments.
func DecodeCiphertextArgs(data []byte, name string) (CiphertextArgs, error) {
	d, err := newDecoder(data, name)
	if err != nil {
		return CiphertextArgs{}, err
	}
	var args CiphertextArgs
	if args.Ciphertext, err = d.vec(); err != nil {
		return CiphertextArgs{}, err
	}
	if args.InputType, err = d.u8(); err != nil {
		return CiphertextArgs{}, err
	}
	return args, d.done()
}

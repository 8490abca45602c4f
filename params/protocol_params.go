package params

// Confidential token parameters.
const (
	// Decimals is the decimal precision of the confidential mint.
	Decimals uint8 = 9

	// TokenMultiplier converts whole tokens into base units (10^Decimals).
	TokenMultiplier uint64 = 1_000_000_000

	// InputType tags ciphertexts produced by the encryption service.
	InputType uint8 = 0

	// HandleSize is the byte length of an encrypted-value handle.
	HandleSize = 16
)

// Program derived address seeds.
var (
	FundingSeed = []byte("vault-1")     // seeds: [FundingSeed, creator]
	VaultSeed   = []byte("vault-ata-1") // seeds: [VaultSeed, funding, mint]
)

// Account layout offsets, counted from the start of the account data
// (the 8-byte discriminator included).
const (
	DiscriminatorSize = 8

	BalanceMintOffset   = 8
	BalanceOwnerOffset  = 40
	BalanceHandleOffset = 72 // encrypted amount, 16 bytes little-endian

	FundingCreatorOffset = 8
	FundingVaultOffset   = 40
	FundingMintOffset    = 72
	FundingTotalOffset   = 104 // encrypted running total, 16 bytes little-endian
	FundingCountOffset   = 120
	FundingCreatedOffset = 128
	FundingFinalOffset   = 136
	FundingAccountSize   = 137
)

// TotalLogLabel marks the log line the funding program emits with the
// running total handle after a withdrawal.
const TotalLogLabel = "Updated funding handle:"

// Lamport amounts used when funding fresh parties on development networks.
const (
	LamportsPerSol     uint64 = 1_000_000_000
	DefaultAirdropSize uint64 = 2 * LamportsPerSol
)

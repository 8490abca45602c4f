package params

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// Well-known program ids.
var (
	// IncoLightningProgramID is the confidential compute program that owns
	// allowance records.
	IncoLightningProgramID = solana.MustPublicKeyFromBase58("5sjEbPiqgZrYwR31ahR6Uk9wf5awoX61YGg7jExQSwaj")

	// FundingProgramID is the deployed funding-vault program.
	FundingProgramID = solana.MustPublicKeyFromBase58("9SUAHZ5CLyv6BdfGQLdb15KE1DanR9m6TdqHbq7ZaQWG")
)

var (
	errMissingRPC   = errors.New("network: missing rpc endpoint")
	errMissingToken = errors.New("network: token program id not configured")
)

// Network describes the endpoints and program ids a client talks to.
type Network struct {
	Name            string
	RPCEndpoint     string
	OracleEndpoint  string // attested decryption service
	EncryptEndpoint string // encryption service

	TokenProgram     solana.PublicKey
	FundingProgram   solana.PublicKey
	LightningProgram solana.PublicKey
}

// LocalnetNetwork targets a local validator with the programs deployed from
// the workspace. The token program id differs per deployment and must be set.
var LocalnetNetwork = &Network{
	Name:             "localnet",
	RPCEndpoint:      "http://127.0.0.1:8899",
	OracleEndpoint:   "http://127.0.0.1:8950",
	EncryptEndpoint:  "http://127.0.0.1:8950",
	FundingProgram:   FundingProgramID,
	LightningProgram: IncoLightningProgramID,
}

// DevnetNetwork targets the public development cluster.
var DevnetNetwork = &Network{
	Name:             "devnet",
	RPCEndpoint:      "https://api.devnet.solana.com",
	FundingProgram:   FundingProgramID,
	LightningProgram: IncoLightningProgramID,
}

// NetworkByName returns a copy of the named preset.
func NetworkByName(name string) (*Network, error) {
	var n *Network
	switch strings.ToLower(name) {
	case "", "localnet", "local":
		n = LocalnetNetwork
	case "devnet":
		n = DevnetNetwork
	default:
		return nil, fmt.Errorf("unknown network %q", name)
	}
	cpy := *n
	return &cpy, nil
}

// Validate reports whether the network is usable for submitting operations.
func (n *Network) Validate() error {
	if n.RPCEndpoint == "" {
		return errMissingRPC
	}
	if n.TokenProgram.IsZero() {
		return errMissingToken
	}
	if n.FundingProgram.IsZero() || n.LightningProgram.IsZero() {
		return fmt.Errorf("network %s: program ids not configured", n.Name)
	}
	return nil
}

func (n *Network) String() string {
	return fmt.Sprintf("{Name: %s RPC: %s Token: %v Funding: %v Lightning: %v}",
		n.Name, n.RPCEndpoint, n.TokenProgram, n.FundingProgram, n.LightningProgram)
}

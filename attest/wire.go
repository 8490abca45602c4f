package attest

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gagliardetto/solana-go"
	"github.com/tos-network/incofund/core/handle"
)

// messageDomain prefixes every signed challenge so a decryption signature can
// never be replayed as a transaction signature or vice versa.
const messageDomain = "incofund attested decrypt v1"

var ErrBadSignature = errors.New("attest: invalid request signature")

// DecryptRequest is the body of a decryption request.
type DecryptRequest struct {
	Address   string   `json:"address"`
	Nonce     string   `json:"nonce"`
	Handles   []string `json:"handles"`
	Signature string   `json:"signature"` // base58 ed25519 signature over ChallengeMessage
}

// DecryptResponse carries one decimal plaintext per requested handle, or an
// error message.
type DecryptResponse struct {
	Plaintexts []string `json:"plaintexts,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// EncryptRequest is the body of an encryption request.
type EncryptRequest struct {
	Plaintext string `json:"plaintext"`
}

type EncryptResponse struct {
	Ciphertext hexutil.Bytes `json:"ciphertext"`
	Error      string        `json:"error,omitempty"`
}

// ChallengeMessage builds the message a party signs to request decryption.
func ChallengeMessage(nonce string, address solana.PublicKey, handles []handle.Handle) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s\nnonce:%s\naddress:%s\n", messageDomain, nonce, address)
	for _, h := range handles {
		fmt.Fprintf(&buf, "handle:%s\n", h)
	}
	return buf.Bytes()
}

// Signer signs decryption challenges on behalf of a party.
type Signer interface {
	PublicKey() solana.PublicKey
	SignMessage(msg []byte) ([]byte, error)
}

// NewDecryptRequest signs a request for handles.
func NewDecryptRequest(nonce string, handles []handle.Handle, signer Signer) (*DecryptRequest, error) {
	addr := signer.PublicKey()
	sig, err := signer.SignMessage(ChallengeMessage(nonce, addr, handles))
	if err != nil {
		return nil, fmt.Errorf("attest: sign challenge: %w", err)
	}
	req := &DecryptRequest{
		Address:   addr.String(),
		Nonce:     nonce,
		Handles:   make([]string, len(handles)),
		Signature: solana.SignatureFromBytes(sig).String(),
	}
	for i, h := range handles {
		req.Handles[i] = h.String()
	}
	return req, nil
}

// Verify checks the request signature and returns the authenticated party
// and the requested handles.
func (req *DecryptRequest) Verify() (solana.PublicKey, []handle.Handle, error) {
	addr, err := solana.PublicKeyFromBase58(req.Address)
	if err != nil {
		return solana.PublicKey{}, nil, fmt.Errorf("attest: bad address: %w", err)
	}
	if req.Nonce == "" {
		return solana.PublicKey{}, nil, errors.New("attest: missing nonce")
	}
	handles := make([]handle.Handle, len(req.Handles))
	for i, s := range req.Handles {
		if handles[i], err = handle.FromDecimal(s); err != nil {
			return solana.PublicKey{}, nil, fmt.Errorf("attest: bad handle %q: %w", s, err)
		}
	}
	sig, err := solana.SignatureFromBase58(req.Signature)
	if err != nil {
		return solana.PublicKey{}, nil, ErrBadSignature
	}
	if !ed25519.Verify(ed25519.PublicKey(addr[:]), ChallengeMessage(req.Nonce, addr, handles), sig[:]) {
		return solana.PublicKey{}, nil, ErrBadSignature
	}
	return addr, handles, nil
}

package simledger

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/tos-network/incofund/attest"
	"github.com/tos-network/incofund/core/handle"
)

// oracleError is a decryption refusal. Its message follows the wording the
// client classifies on.
type oracleError struct {
	status int
	msg    string
}

func (e *oracleError) Error() string { return e.msg }

func errNotIndexed(h handle.Handle) error {
	return &oracleError{http.StatusNotFound, fmt.Sprintf("ciphertext for handle %s not found", h)}
}

func errNotAllowed(party solana.PublicKey, h handle.Handle) error {
	return &oracleError{http.StatusForbidden, fmt.Sprintf("address %s is not allowed to decrypt handle %s", party, h)}
}

// Decrypt returns the plaintexts behind handles if party may read all of
// them. Handles still inside their indexing lag are reported missing.
func (l *Ledger) Decrypt(handles []handle.Handle, party solana.PublicKey) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]string, len(handles))
	for i, h := range handles {
		v, ok := l.st.values[h]
		if !ok {
			return nil, errNotIndexed(h)
		}
		if n := l.lag[h]; n > 0 {
			l.lag[h] = n - 1
			return nil, errNotIndexed(h)
		}
		if !l.st.isAllowed(h, party) {
			return nil, errNotAllowed(party, h)
		}
		out[i] = v.Dec()
	}
	return out, nil
}

// Oracle serves the attested decryption and encryption endpoints over HTTP.
type Oracle struct {
	ledger *Ledger
	mux    *http.ServeMux
}

// NewOracle creates the HTTP front of the ledger's decryption oracle.
func NewOracle(l *Ledger) *Oracle {
	o := &Oracle{ledger: l, mux: http.NewServeMux()}
	o.mux.HandleFunc("/decrypt", o.handleDecrypt)
	o.mux.HandleFunc("/encrypt", o.handleEncrypt)
	return o
}

func (o *Oracle) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	o.mux.ServeHTTP(w, r)
}

func (o *Oracle) handleDecrypt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, attest.DecryptResponse{Error: "method not allowed"})
		return
	}
	var req attest.DecryptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, attest.DecryptResponse{Error: "malformed request: " + err.Error()})
		return
	}
	party, handles, err := req.Verify()
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, attest.DecryptResponse{Error: err.Error()})
		return
	}
	if !o.ledger.useNonce(party, req.Nonce) {
		writeJSON(w, http.StatusUnauthorized, attest.DecryptResponse{Error: "nonce already used"})
		return
	}
	plaintexts, err := o.ledger.Decrypt(handles, party)
	if err != nil {
		status := http.StatusInternalServerError
		if oerr, ok := err.(*oracleError); ok {
			status = oerr.status
		}
		writeJSON(w, status, attest.DecryptResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, attest.DecryptResponse{Plaintexts: plaintexts})
}

func (o *Oracle) handleEncrypt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, attest.EncryptResponse{Error: "method not allowed"})
		return
	}
	var req attest.EncryptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, attest.EncryptResponse{Error: "malformed request: " + err.Error()})
		return
	}
	amount, err := strconv.ParseUint(req.Plaintext, 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, attest.EncryptResponse{Error: "invalid plaintext"})
		return
	}
	writeJSON(w, http.StatusOK, attest.EncryptResponse{Ciphertext: Encrypt(amount)})
}

func (l *Ledger) useNonce(party solana.PublicKey, nonce string) bool {
	key := party.String() + "/" + nonce
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, seen := l.nonces[key]; seen {
		return false
	}
	l.nonces[key] = struct{}{}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

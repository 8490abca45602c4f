// Package attest implements the client side of the attested decryption
// service: a party proves its identity by signing a challenge and receives
// the plaintext behind handles it has been allowed to read.
package attest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tos-network/incofund/core/handle"
)

var (
	ErrUnauthorized = errors.New("attest: party not allowed to decrypt handle")
	ErrNotFound     = errors.New("attest: ciphertext not indexed")
)

// Outcome classifies a decryption attempt.
type Outcome uint8

const (
	OutcomeOK Outcome = iota
	OutcomeUnauthorized
	OutcomeNotFound
	OutcomeUnclassified
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeUnauthorized:
		return "not_allowed"
	case OutcomeNotFound:
		return "ciphertext_not_found"
	case OutcomeUnclassified:
		return "unclassified"
	default:
		return fmt.Sprintf("outcome(%d)", uint8(o))
	}
}

// Classify maps an oracle failure message to an outcome. Messages naming a
// missing permission win over messages naming a missing ciphertext.
func Classify(message string) Outcome {
	m := strings.ToLower(message)
	switch {
	case strings.Contains(m, "not allowed"):
		return OutcomeUnauthorized
	case strings.Contains(m, "ciphertext"):
		return OutcomeNotFound
	default:
		return OutcomeUnclassified
	}
}

// UnclassifiedError carries the raw text of a failure that is neither a
// permission nor an indexing problem.
type UnclassifiedError struct {
	Detail string
}

func (e *UnclassifiedError) Error() string {
	return "attest: decryption failed: " + e.Detail
}

// Result is the outcome of decrypting one handle. Plaintext is the decimal
// value and is only set for OutcomeOK.
type Result struct {
	Handle    handle.Handle
	Outcome   Outcome
	Plaintext string
	Detail    string
}

func failure(h handle.Handle, detail string) Result {
	return Result{Handle: h, Outcome: Classify(detail), Detail: detail}
}

func unclassified(h handle.Handle, err error) Result {
	return Result{Handle: h, Outcome: OutcomeUnclassified, Detail: err.Error()}
}

// Err converts a failed result into an error matchable with errors.Is/As.
func (r Result) Err() error {
	switch r.Outcome {
	case OutcomeOK:
		return nil
	case OutcomeUnauthorized:
		return fmt.Errorf("%w: %s", ErrUnauthorized, r.Detail)
	case OutcomeNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, r.Detail)
	default:
		return &UnclassifiedError{Detail: r.Detail}
	}
}

// Amount parses the plaintext as a base-unit amount.
func (r Result) Amount() (uint64, error) {
	if err := r.Err(); err != nil {
		return 0, err
	}
	h, err := handle.FromDecimal(r.Plaintext)
	if err != nil {
		return 0, err
	}
	v, ok := h.Uint64()
	if !ok {
		return 0, fmt.Errorf("attest: plaintext %s exceeds 64 bits", r.Plaintext)
	}
	return v, nil
}

func (r Result) String() string {
	if r.Outcome == OutcomeOK {
		return r.Plaintext
	}
	return fmt.Sprintf("%v: %s", r.Outcome, r.Detail)
}

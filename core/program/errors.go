package program

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
)

// Error is a program error decoded from a transaction failure.
type Error struct {
	Code uint32
	Name string
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("program error %d (%s): %s", e.Code, e.Name, e.Msg)
}

// Custom error codes of the funding program start at 6000.
const customErrorBase = 6000

const (
	CodeNotRentExempt uint32 = customErrorBase + iota
	CodeInsufficientFunds
	CodeInvalidMint
	CodeMintMismatch
	CodeOwnerMismatch
	CodeAlreadyInUse
	CodeUninitializedState
	CodeNativeNotSupported
	CodeNonNativeHasBalance
	CodeInvalidInstruction
	CodeInvalidState
	CodeOverflow
	CodeAuthorityTypeNotSupported
	CodeMintDecimalsMismatch
	CodeNonNativeNotSupported
)

// Framework error codes raised by account constraint checks.
const (
	CodeInstructionFallbackNotFound  uint32 = 101
	CodeInstructionDidNotDeserialize uint32 = 102
	CodeConstraintMut                uint32 = 2000
	CodeConstraintSigner             uint32 = 2002
	CodeConstraintSeeds              uint32 = 2006
	CodeConstraintAddress            uint32 = 2012
	CodeAccountDidNotDeserialize     uint32 = 3003
	CodeAccountNotEnoughKeys         uint32 = 3005
	CodeAccountNotInitialized        uint32 = 3012
)

var knownErrors = map[uint32]*Error{
	CodeNotRentExempt:             {CodeNotRentExempt, "NotRentExempt", "Lamport balance below rent-exempt threshold"},
	CodeInsufficientFunds:         {CodeInsufficientFunds, "InsufficientFunds", "Insufficient funds"},
	CodeInvalidMint:               {CodeInvalidMint, "InvalidMint", "Invalid Mint"},
	CodeMintMismatch:              {CodeMintMismatch, "MintMismatch", "Account not associated with this Mint"},
	CodeOwnerMismatch:             {CodeOwnerMismatch, "OwnerMismatch", "Owner does not match"},
	CodeAlreadyInUse:              {CodeAlreadyInUse, "AlreadyInUse", "Account already in use"},
	CodeUninitializedState:        {CodeUninitializedState, "UninitializedState", "State is uninitialized"},
	CodeNativeNotSupported:        {CodeNativeNotSupported, "NativeNotSupported", "Native tokens not supported"},
	CodeNonNativeHasBalance:       {CodeNonNativeHasBalance, "NonNativeHasBalance", "Non-native account has balance"},
	CodeInvalidInstruction:        {CodeInvalidInstruction, "InvalidInstruction", "Invalid instruction"},
	CodeInvalidState:              {CodeInvalidState, "InvalidState", "Invalid state"},
	CodeOverflow:                  {CodeOverflow, "Overflow", "Overflow"},
	CodeAuthorityTypeNotSupported: {CodeAuthorityTypeNotSupported, "AuthorityTypeNotSupported", "Authority type not supported"},
	CodeMintDecimalsMismatch:      {CodeMintDecimalsMismatch, "MintDecimalsMismatch", "Mint decimals mismatch"},
	CodeNonNativeNotSupported:     {CodeNonNativeNotSupported, "NonNativeNotSupported", "Non-native not supported"},

	CodeInstructionFallbackNotFound:  {CodeInstructionFallbackNotFound, "InstructionFallbackNotFound", "Fallback functions are not supported"},
	CodeInstructionDidNotDeserialize: {CodeInstructionDidNotDeserialize, "InstructionDidNotDeserialize", "The program could not deserialize the given instruction"},
	CodeConstraintMut:                {CodeConstraintMut, "ConstraintMut", "A mut constraint was violated"},
	CodeConstraintSigner:             {CodeConstraintSigner, "ConstraintSigner", "A signer constraint was violated"},
	CodeConstraintSeeds:              {CodeConstraintSeeds, "ConstraintSeeds", "A seeds constraint was violated"},
	CodeConstraintAddress:            {CodeConstraintAddress, "ConstraintAddress", "An address constraint was violated"},
	CodeAccountDidNotDeserialize:     {CodeAccountDidNotDeserialize, "AccountDidNotDeserialize", "Failed to deserialize the account"},
	CodeAccountNotEnoughKeys:         {CodeAccountNotEnoughKeys, "AccountNotEnoughKeys", "Not enough account keys given to the instruction"},
	CodeAccountNotInitialized:        {CodeAccountNotInitialized, "AccountNotInitialized", "The program expected this account to be already initialized"},
}

// LookupError returns the known error for code.
func LookupError(code uint32) (*Error, bool) {
	e, ok := knownErrors[code]
	return e, ok
}

func errorForCode(code uint32) *Error {
	if e, ok := knownErrors[code]; ok {
		return e
	}
	return &Error{Code: code, Name: "Unknown", Msg: fmt.Sprintf("custom program error: %#x", code)}
}

// CustomErrorJSON renders the transaction error value reported when
// instruction index fails with a custom code.
func CustomErrorJSON(index int, code uint32) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"InstructionError":[%d,{"Custom":%d}]}`, index, code))
}

// ParseCustomError extracts the failing instruction index and custom error
// code from a transaction error value.
func ParseCustomError(raw json.RawMessage) (int, uint32, bool) {
	var outer struct {
		InstructionError []json.RawMessage `json:"InstructionError"`
	}
	if err := json.Unmarshal(raw, &outer); err != nil || len(outer.InstructionError) != 2 {
		return 0, 0, false
	}
	var (
		index  int
		detail struct {
			Custom *uint32 `json:"Custom"`
		}
	)
	if err := json.Unmarshal(outer.InstructionError[0], &index); err != nil {
		return 0, 0, false
	}
	if err := json.Unmarshal(outer.InstructionError[1], &detail); err != nil || detail.Custom == nil {
		return 0, 0, false
	}
	return index, *detail.Custom, true
}

var customLogRe = regexp.MustCompile(`custom program error: 0x([0-9a-fA-F]+)`)

// ErrorFromLogs scans execution logs for the first custom program error.
func ErrorFromLogs(logs []string) (*Error, bool) {
	for _, line := range logs {
		m := customLogRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		code, err := strconv.ParseUint(m[1], 16, 32)
		if err != nil {
			continue
		}
		return errorForCode(uint32(code)), true
	}
	return nil, false
}

// DecodeError derives the program error behind a failed transaction from its
// error value, falling back to the logs. It returns nil when the failure is
// not a custom program error.
func DecodeError(raw json.RawMessage, logs []string) *Error {
	if _, code, ok := ParseCustomError(raw); ok {
		return errorForCode(code)
	}
	if e, ok := ErrorFromLogs(logs); ok {
		return e
	}
	return nil
}

package ledgerclient

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
)

// SendError is a transaction rejected by the ledger. Preflight failures carry
// the simulated execution error and logs.
type SendError struct {
	Code    int
	Message string
	Err     json.RawMessage // instruction error, nil if not a preflight failure
	Logs    []string
}

func (e *SendError) Error() string {
	if len(e.Err) > 0 {
		return fmt.Sprintf("%s: %s", e.Message, e.Err)
	}
	return e.Message
}

func (e *SendError) TxLogs() []string { return e.Logs }

type preflightData struct {
	Err  json.RawMessage `json:"err"`
	Logs []string        `json:"logs"`
}

// newSendError extracts the preflight result from a JSON-RPC error. Errors
// that are not JSON-RPC errors are returned unchanged.
func newSendError(err error) error {
	var rpcErr rpc.Error
	if !errors.As(err, &rpcErr) {
		return err
	}
	serr := &SendError{Code: rpcErr.ErrorCode(), Message: rpcErr.Error()}
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) && dataErr.ErrorData() != nil {
		// The error data is delivered as a decoded JSON value.
		raw, merr := json.Marshal(dataErr.ErrorData())
		if merr == nil {
			var data preflightData
			if json.Unmarshal(raw, &data) == nil {
				if string(data.Err) != "null" {
					serr.Err = data.Err
				}
				serr.Logs = data.Logs
			}
		}
	}
	return serr
}

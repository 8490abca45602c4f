package resolve

import (
	"encoding/json"
	"fmt"

	"github.com/tos-network/incofund"
	"github.com/tos-network/incofund/core/program"
)

// SimulationError reports a simulated execution that failed. Nothing was
// committed and no handles were resolved.
type SimulationError struct {
	Err     json.RawMessage
	Logs    []string
	Program *program.Error // nil unless a program error could be decoded
}

func newSimulationError(sim *incofund.SimulationResult) *SimulationError {
	return &SimulationError{
		Err:     sim.Err,
		Logs:    sim.Logs,
		Program: program.DecodeError(sim.Err, sim.Logs),
	}
}

func (e *SimulationError) Error() string {
	if e.Program != nil {
		return fmt.Sprintf("%v: %v", ErrSimulationFailed, e.Program)
	}
	return fmt.Sprintf("%v: %s", ErrSimulationFailed, e.Err)
}

func (e *SimulationError) Unwrap() error { return ErrSimulationFailed }

func (e *SimulationError) TxLogs() []string { return e.Logs }

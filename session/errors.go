package session

import "fmt"

// VariableUnavailableError reports that a variable could not be inspected at the current execution
// position: the metadata carries no location hint for it there, or the data location it points into was
// not captured by the trace.
type VariableUnavailableError struct {
	// Name describes the requested variable name.
	Name string

	// PC describes the program counter at which inspection was attempted.
	PC uint64

	// Reason describes why the variable is unavailable.
	Reason string
}

func (e *VariableUnavailableError) Error() string {
	return fmt.Sprintf("variable %v is unavailable at pc %d: %v", e.Name, e.PC, e.Reason)
}

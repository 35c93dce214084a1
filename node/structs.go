package node

import (
	"encoding/hex"
	"strings"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/ariadne-eth/ariadne/tracing"
)

// txTraceResult describes the document the node's struct-log tracer returns for
// debug_traceTransaction and debug_traceCall.
type txTraceResult struct {
	// Gas describes the total gas the traced execution consumed.
	Gas uint64 `json:"gas"`

	// Failed indicates whether the traced execution reverted or otherwise failed.
	Failed bool `json:"failed"`

	// ReturnValue describes the hex-encoded final return data: return values on success, the revert
	// payload on failure.
	ReturnValue string `json:"returnValue"`

	// StructLogs describes the per-instruction log entries.
	StructLogs []structLogEntry `json:"structLogs"`
}

// structLogEntry describes one per-instruction entry of a struct-log trace. Field encodings follow the
// canonical tracer output: stack words as hex strings, memory as a list of 32-byte hex chunks.
type structLogEntry struct {
	PC         uint64   `json:"pc"`
	Op         string   `json:"op"`
	Gas        uint64   `json:"gas"`
	GasCost    uint64   `json:"gasCost"`
	Depth      int      `json:"depth"`
	Error      string   `json:"error,omitempty"`
	Stack      []string `json:"stack,omitempty"`
	Memory     []string `json:"memory,omitempty"`
	ReturnData string   `json:"returnData,omitempty"`
}

// parseSteps converts the wire-format struct logs into execution steps, capping the stream at maxSteps
// when a cap is set. It returns the steps and whether the cap truncated the trace.
func parseSteps(logs []structLogEntry, maxSteps uint64) ([]*tracing.ExecutionStep, bool, error) {
	truncated := false
	if maxSteps > 0 && uint64(len(logs)) > maxSteps {
		logs = logs[:maxSteps]
		truncated = true
	}

	steps := make([]*tracing.ExecutionStep, len(logs))
	for i, entry := range logs {
		step := &tracing.ExecutionStep{
			Index:   i,
			PC:      entry.PC,
			Opcode:  entry.Op,
			Depth:   entry.Depth,
			Gas:     entry.Gas,
			GasCost: entry.GasCost,
			Error:   entry.Error,
		}

		if len(entry.Stack) > 0 {
			step.Stack = make([]uint256.Int, len(entry.Stack))
			for j, wordText := range entry.Stack {
				if err := parseStackWord(&step.Stack[j], wordText); err != nil {
					return nil, false, errors.WithMessagef(err, "could not parse stack word %v of step %d", wordText, i)
				}
			}
		}

		if len(entry.Memory) > 0 {
			memory, err := decodeHexBlob(strings.Join(entry.Memory, ""))
			if err != nil {
				return nil, false, errors.WithMessagef(err, "could not parse the memory of step %d", i)
			}
			step.Memory = memory
		}

		if entry.ReturnData != "" {
			returnData, err := decodeHexBlob(entry.ReturnData)
			if err != nil {
				return nil, false, errors.WithMessagef(err, "could not parse the return data of step %d", i)
			}
			step.ReturnData = returnData
		}

		steps[i] = step
	}
	return steps, truncated, nil
}

// parseStackWord parses one hex stack word. Nodes disagree on the 0x prefix across versions, so both
// forms are accepted.
func parseStackWord(word *uint256.Int, text string) error {
	if !strings.HasPrefix(text, "0x") && !strings.HasPrefix(text, "0X") {
		text = "0x" + text
	}
	return word.SetFromHex(text)
}

// decodeHexBlob decodes a hex byte string, tolerating a 0x prefix and an odd leading nibble.
func decodeHexBlob(text string) ([]byte, error) {
	text = strings.TrimPrefix(strings.TrimPrefix(text, "0x"), "0X")
	if len(text)%2 == 1 {
		text = "0" + text
	}
	return hex.DecodeString(text)
}

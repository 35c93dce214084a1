package tracing

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"

	"github.com/ariadne-eth/ariadne/abiutils"
	"github.com/ariadne-eth/ariadne/logging/colors"
)

// RenderCallTree renders the reconstructed call tree as an indented, human-readable
// listing. Each frame prints a header line with its kind, qualified name, decoded
// arguments, gas and source line, followed by its children and an exit marker describing
// how the frame ended.
func RenderCallTree(root *CallFrame, colorized bool) string {
	r := &treeRenderer{colorized: colorized}
	lines := r.frameLines(0, root)
	output := []string{"[Execution Trace]"}
	output = append(output, lines...)
	return strings.Join(output, "\n")
}

// treeRenderer carries the render settings across the recursive walk.
type treeRenderer struct {
	colorized bool
}

// paint applies a color function when colorization is enabled.
func (r *treeRenderer) paint(colorFunc func(s any) string, text string) string {
	if !r.colorized {
		return text
	}
	return colorFunc(text)
}

// frameLines renders one frame and its children, indented by call depth.
func (r *treeRenderer) frameLines(depth int, frame *CallFrame) []string {
	prefix := strings.Repeat("\t", depth) + " -> "
	lines := []string{prefix + r.headerLine(frame)}

	// Everything that happened inside the frame prints one level deeper.
	prefix = "\t" + prefix
	for _, child := range frame.Children {
		lines = append(lines, r.frameLines(depth+1, child)...)
	}
	if exit := r.exitLine(frame); exit != "" {
		lines = append(lines, prefix+exit)
	}
	return lines
}

// headerLine renders the frame's entry line.
func (r *treeRenderer) headerLine(frame *CallFrame) string {
	var label string
	switch frame.Kind {
	case FrameInternal:
		label = r.paint(colors.Cyan, "[internal]")
	case FrameEntry:
		label = r.paint(colors.CyanBold, "[entry]")
	default:
		detail := fmt.Sprintf("%v: %v", frame.Kind, frame.ContractAddress.String())
		if frame.CallValue != nil {
			detail += fmt.Sprintf(", value: %v", frame.CallValue)
		}
		label = r.paint(colors.GreenBold, "["+detail+"]")
	}

	line := fmt.Sprintf("%v %v(%v)", label, frame.DisplayName(), r.argumentList(frame))
	if frame.Source != nil && frame.Source.File != nil {
		line += fmt.Sprintf(" (%v:%d)", frame.Source.File.Path, frame.Source.Line)
	}
	if frame.Terminated() {
		line += fmt.Sprintf(" [gas: %d]", frame.GasUsed)
	}
	return line
}

// argumentList renders a frame's decoded arguments as name=value pairs, falling back to
// the raw input when nothing was decoded.
func (r *treeRenderer) argumentList(frame *CallFrame) string {
	if len(frame.Args) > 0 {
		parts := make([]string, len(frame.Args))
		for i, arg := range frame.Args {
			parts[i] = fmt.Sprintf("%v=%v", arg.Name, renderArgumentValue(arg))
		}
		return strings.Join(parts, ", ")
	}
	if len(frame.Input) > 0 {
		return fmt.Sprintf("msg_data=%v", hex.EncodeToString(frame.Input))
	}
	return ""
}

// exitLine renders the marker describing how the frame ended, or an empty string when the
// frame needs none (internal frames that returned normally).
func (r *treeRenderer) exitLine(frame *CallFrame) string {
	if frame.Truncated {
		return r.paint(colors.YellowBold, "[trace truncated]")
	}
	if frame.VMError != "" {
		return r.paint(colors.RedBold, fmt.Sprintf("[vm error: %v]", frame.VMError))
	}
	if frame.Reverted {
		var details []string
		if frame.RevertInferred() {
			details = append(details, "inferred")
		}
		if frame.RevertReason != "" {
			details = append(details, fmt.Sprintf("reason: '%v'", frame.RevertReason))
		}
		if len(details) > 0 {
			return r.paint(colors.RedBold, fmt.Sprintf("[revert (%v)]", strings.Join(details, ", ")))
		}
		return r.paint(colors.RedBold, "[revert]")
	}
	if frame.Kind == FrameInternal {
		return ""
	}
	return r.paint(colors.Green, fmt.Sprintf("[return (%v)]", r.returnValues(frame)))
}

// returnValues renders a frame's return data, decoded through the resolved method's output
// types when possible and as raw bytes otherwise.
func (r *treeRenderer) returnValues(frame *CallFrame) string {
	if len(frame.Output) == 0 {
		return ""
	}
	if len(frame.Selector) == 4 && frame.Contract != nil && frame.Contract.Info != nil {
		if method := frame.Contract.Info.MethodBySelector(frame.Selector); method != nil {
			if values, err := method.Outputs.Unpack(frame.Output); err == nil {
				if text, err := abiutils.EncodeABIArgumentsToString(method.Outputs, values); err == nil {
					return text
				}
			}
		}
	}
	return fmt.Sprintf("return_data=%v", hex.EncodeToString(frame.Output))
}

// renderArgumentValue renders one decoded argument value, or "?" when the value could not
// be recovered.
func renderArgumentValue(arg DecodedArgument) string {
	if arg.Value == nil {
		return "?"
	}
	// Re-derive the ABI type from its canonical name; argument types always originate
	// from a parsed ABI, so this cannot fail for values the builder produced.
	method, err := abiutils.ParseSignature("render(" + arg.TypeName + ")")
	if err != nil || len(method.Inputs) != 1 {
		return fmt.Sprintf("%v", arg.Value)
	}
	text, err := abiutils.EncodeABIArgumentToString(&method.Inputs[0].Type, arg.Value)
	if err != nil {
		return fmt.Sprintf("%v", arg.Value)
	}
	return text
}

// jsonArgument is the machine-readable form of one decoded argument.
type jsonArgument struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

// jsonCallFrame is the machine-readable form of one call frame, shaped after the node
// call-tracer format with symbolication fields added.
type jsonCallFrame struct {
	Type           string           `json:"type"`
	From           string           `json:"from,omitempty"`
	To             string           `json:"to"`
	Contract       string           `json:"contract,omitempty"`
	Function       string           `json:"function,omitempty"`
	Selector       string           `json:"selector,omitempty"`
	Value          *hexutil.Big     `json:"value,omitempty"`
	Gas            hexutil.Uint64   `json:"gas"`
	GasUsed        hexutil.Uint64   `json:"gasUsed"`
	Input          hexutil.Bytes    `json:"input,omitempty"`
	Output         hexutil.Bytes    `json:"output,omitempty"`
	Error          string           `json:"error,omitempty"`
	RevertReason   string           `json:"revertReason,omitempty"`
	RevertInferred bool             `json:"revertInferred,omitempty"`
	SourceLocation string           `json:"sourceLocation,omitempty"`
	DecodedArgs    []jsonArgument   `json:"decodedArgs,omitempty"`
	EntryStep      int              `json:"entryStep"`
	ExitStep       *int             `json:"exitStep,omitempty"`
	Truncated      bool             `json:"truncated,omitempty"`
	Calls          []*jsonCallFrame `json:"calls,omitempty"`
}

// jsonTraceDocument is the top-level machine-readable trace document.
type jsonTraceDocument struct {
	TxHash       string         `json:"txHash,omitempty"`
	Status       string         `json:"status"`
	GasUsed      hexutil.Uint64 `json:"gasUsed"`
	RevertReason string         `json:"revertReason,omitempty"`
	Truncated    bool           `json:"truncated,omitempty"`
	CallTree     *jsonCallFrame `json:"callTree"`
}

// RenderJSON renders the trace and its call tree as an indented JSON document.
func RenderJSON(trace *TransactionTrace, root *CallFrame) (string, error) {
	document := &jsonTraceDocument{
		Status:       "success",
		GasUsed:      hexutil.Uint64(trace.GasUsed),
		RevertReason: root.RevertReason,
		Truncated:    trace.Truncated,
		CallTree:     jsonFrame(root),
	}
	if trace.TxHash != (common.Hash{}) {
		document.TxHash = trace.TxHash.Hex()
	}
	if trace.Failed {
		document.Status = "reverted"
	}
	encoded, err := json.MarshalIndent(document, "", "  ")
	if err != nil {
		return "", errors.WithMessage(err, "could not encode the trace document")
	}
	return string(encoded), nil
}

// jsonFrame converts one call frame and its children to the machine-readable form.
func jsonFrame(frame *CallFrame) *jsonCallFrame {
	out := &jsonCallFrame{
		Type:           strings.ToUpper(frame.Kind.String()),
		To:             frame.ContractAddress.Hex(),
		Contract:       frame.ContractName,
		Function:       frame.Function,
		Gas:            hexutil.Uint64(frame.GasAtEntry),
		GasUsed:        hexutil.Uint64(frame.GasUsed),
		Input:          frame.Input,
		Output:         frame.Output,
		RevertReason:   frame.RevertReason,
		RevertInferred: frame.RevertInferred(),
		EntryStep:      frame.EntryStep,
		Truncated:      frame.Truncated,
	}
	if frame.Parent != nil {
		out.From = frame.Parent.ContractAddress.Hex()
	}
	if len(frame.Selector) > 0 {
		out.Selector = hexutil.Encode(frame.Selector)
	}
	if frame.CallValue != nil && frame.CallValue.Sign() > 0 {
		out.Value = (*hexutil.Big)(frame.CallValue)
	}
	if frame.VMError != "" {
		out.Error = frame.VMError
	} else if frame.Reverted {
		out.Error = "execution reverted"
	}
	if frame.Source != nil && frame.Source.File != nil {
		out.SourceLocation = fmt.Sprintf("%v:%d:%d", frame.Source.File.Path, frame.Source.Line, frame.Source.Column)
	}
	if frame.Terminated() {
		exit := frame.ExitStep
		out.ExitStep = &exit
	}
	for _, arg := range frame.Args {
		out.DecodedArgs = append(out.DecodedArgs, jsonArgument{
			Name:  arg.Name,
			Type:  arg.TypeName,
			Value: renderArgumentValue(arg),
		})
	}
	for _, child := range frame.Children {
		out.Calls = append(out.Calls, jsonFrame(child))
	}
	return out
}

// RenderRawTrace renders the flat instruction listing of a trace: one line per step with
// its program counter, opcode, gas figures, depth and topmost stack word.
func RenderRawTrace(trace *TransactionTrace) string {
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("%6v  %-7v  %-16v  %-12v  %-9v  %-5v  %v\n", "step", "pc", "opcode", "gas", "cost", "depth", "stack top"))
	for _, step := range trace.Steps {
		top := "-"
		if word := step.StackBack(0); word != nil {
			top = word.Hex()
		}
		builder.WriteString(fmt.Sprintf("%6d  %-7d  %-16v  %-12d  %-9d  %-5d  %v\n", step.Index, step.PC, step.Opcode, step.Gas, step.GasCost, step.Depth, top))
	}
	if trace.Truncated {
		builder.WriteString("... trace truncated\n")
	}
	return builder.String()
}

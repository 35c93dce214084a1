package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ariadne-eth/ariadne/logging/colors"
	"github.com/ariadne-eth/ariadne/session"
	"github.com/ariadne-eth/ariadne/tracing"
)

// runInteractiveSession drives a stepping session over the analyzed trace from stdin, gdb-style: one
// command per line, a position report after every stop, until quit or EOF.
func runInteractiveSession(trace *tracing.TransactionTrace, root *tracing.CallFrame) error {
	debugSession, err := session.New(trace, root)
	if err != nil {
		return err
	}

	fmt.Printf("Interactive session over %d steps. Type \"help\" for commands.\n", len(trace.Steps))
	printPosition(debugSession)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("(ariadne) ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		command, arguments := fields[0], fields[1:]
		switch command {
		case "quit", "q", "exit":
			return nil
		case "help", "h":
			printSessionHelp()
		case "step", "s":
			reportStop(debugSession, debugSession.StepInto())
		case "next", "n":
			reportStop(debugSession, debugSession.StepOver())
		case "stepi", "si":
			reportStop(debugSession, debugSession.StepInstruction())
		case "continue", "c":
			reportStop(debugSession, debugSession.Continue())
		case "break", "b":
			setBreakpoint(debugSession, arguments)
		case "delete", "d":
			deleteBreakpoint(debugSession, arguments)
		case "breakpoints":
			listBreakpoints(debugSession)
		case "backtrace", "bt":
			printBacktrace(debugSession)
		case "print", "p":
			printVariable(debugSession, arguments)
		case "list", "l":
			printSourceContext(debugSession)
		case "info":
			printVariables(debugSession)
		default:
			fmt.Printf("unknown command %q; type \"help\" for the command list\n", command)
		}
	}
}

// reportStop announces why navigation stopped, then the position it stopped at.
func reportStop(debugSession *session.Session, status session.Status) {
	switch status {
	case session.StatusAtBreakpoint:
		hit := debugSession.HitBreakpoint()
		fmt.Printf("%v breakpoint %d, %v\n", colors.YellowBold("Hit"), hit.ID, hit.String())
	case session.StatusFinished:
		outcome := colors.Green(debugSession.FinalStatus())
		if debugSession.FinalStatus() == "reverted" {
			outcome = colors.RedBold(debugSession.FinalStatus())
		}
		fmt.Printf("Execution finished: %v\n", outcome)
	}
	printPosition(debugSession)
}

// printPosition prints the cursor's step, instruction, frame, and resolved source line.
func printPosition(debugSession *session.Session) {
	step := debugSession.CurrentStep()
	frame := debugSession.CurrentFrame()
	fmt.Printf("step %d: pc=%d %v in %v", debugSession.Cursor(), step.PC, colors.Cyan(step.Opcode), colors.Bold(frame.DisplayName()))
	if location := debugSession.CurrentLocation(); location != nil && location.File != nil {
		fmt.Printf(" at %v:%d", location.File.Path, location.Line)
	}
	fmt.Println()
	if location := debugSession.CurrentLocation(); location != nil && location.File != nil {
		if text := location.File.LineContents(location.Line); len(text) > 0 {
			fmt.Printf("  %d\t%v\n", location.Line, strings.TrimRight(string(text), "\r\n"))
		}
	}
}

// setBreakpoint parses the break command's argument as a program counter or a file:line position.
func setBreakpoint(debugSession *session.Session, arguments []string) {
	if len(arguments) != 1 {
		fmt.Println("usage: break <pc> or break <file:line>")
		return
	}
	target := arguments[0]

	if separator := strings.LastIndex(target, ":"); separator > 0 {
		line, err := strconv.Atoi(target[separator+1:])
		if err != nil || line < 1 {
			fmt.Printf("%q is not a line number\n", target[separator+1:])
			return
		}
		breakpoint := debugSession.SetBreakpointAtLine(target[:separator], line)
		fmt.Printf("Breakpoint %d set at %v\n", breakpoint.ID, breakpoint.String())
		return
	}

	pc, err := strconv.ParseUint(strings.TrimPrefix(target, "0x"), pcBase(target), 64)
	if err != nil {
		fmt.Printf("%q is not a program counter or file:line position\n", target)
		return
	}
	breakpoint := debugSession.SetBreakpointAtPC(pc)
	fmt.Printf("Breakpoint %d set at %v\n", breakpoint.ID, breakpoint.String())
}

// pcBase selects the numeric base for a break target: hex with a 0x prefix, decimal otherwise.
func pcBase(target string) int {
	if strings.HasPrefix(target, "0x") {
		return 16
	}
	return 10
}

// deleteBreakpoint removes the breakpoint named by the delete command.
func deleteBreakpoint(debugSession *session.Session, arguments []string) {
	if len(arguments) != 1 {
		fmt.Println("usage: delete <breakpoint-id>")
		return
	}
	id, err := strconv.Atoi(arguments[0])
	if err != nil || !debugSession.ClearBreakpoint(id) {
		fmt.Printf("no breakpoint %v exists\n", arguments[0])
		return
	}
	fmt.Printf("Deleted breakpoint %d\n", id)
}

// listBreakpoints prints every registered breakpoint.
func listBreakpoints(debugSession *session.Session) {
	breakpoints := debugSession.Breakpoints()
	if len(breakpoints) == 0 {
		fmt.Println("no breakpoints set")
		return
	}
	for _, breakpoint := range breakpoints {
		fmt.Printf("%d: %v\n", breakpoint.ID, breakpoint.String())
	}
}

// printBacktrace prints the active call chain, innermost frame first.
func printBacktrace(debugSession *session.Session) {
	for i, frame := range debugSession.Backtrace() {
		fmt.Printf("#%d %v", i, frame.DisplayName())
		if frame.Kind.IsExternal() {
			fmt.Printf(" [%v]", frame.ContractAddress.Hex())
		}
		fmt.Println()
	}
}

// printVariable inspects and prints a single named variable at the cursor.
func printVariable(debugSession *session.Session, arguments []string) {
	if len(arguments) != 1 {
		fmt.Println("usage: print <variable-name>")
		return
	}
	variable, err := debugSession.Inspect(arguments[0])
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Printf("%v %v = %v\n", variable.TypeName, variable.Name, formatValue(variable.Value))
}

// printVariables lists every variable with a valid location hint at the cursor.
func printVariables(debugSession *session.Session) {
	variables, err := debugSession.Variables()
	if err != nil {
		fmt.Println(err)
		return
	}
	if len(variables) == 0 {
		fmt.Println("no variables are in scope at the current position")
		return
	}
	for _, variable := range variables {
		fmt.Printf("%v %v (%v) = %v\n", variable.TypeName, variable.Name, variable.Location, formatValue(variable.Value))
	}
}

// formatValue renders an inspected value, distinguishing unavailable data from empty values.
func formatValue(value any) string {
	if value == nil {
		return colors.DarkGray("<unavailable>")
	}
	if raw, ok := value.([]byte); ok {
		return fmt.Sprintf("0x%x", raw)
	}
	return fmt.Sprintf("%v", value)
}

// printSourceContext prints the source listing around the cursor.
func printSourceContext(debugSession *session.Session) {
	path, lines, err := debugSession.SourceContext(3)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(path)
	for _, line := range lines {
		marker := "  "
		if line.Current {
			marker = colors.YellowBold("=>")
		}
		fmt.Printf("%v %4d\t%v\n", marker, line.Number, strings.TrimRight(line.Text, "\r\n"))
	}
}

// printSessionHelp prints the command reference for the interactive session.
func printSessionHelp() {
	fmt.Print(`Commands:
  step, s             advance to the next source line, entering calls
  next, n             advance to the next source line, stepping over calls
  stepi, si           advance one EVM instruction
  continue, c         run until a breakpoint or the end of the trace
  break, b <target>   set a breakpoint at a pc (decimal or 0x hex) or file:line
  delete, d <id>      remove a breakpoint
  breakpoints         list breakpoints
  backtrace, bt       print the active call chain
  print, p <name>     inspect a variable at the current position
  info                list every variable in scope
  list, l             show the source around the current line
  help, h             show this message
  quit, q             leave the session
`)
}

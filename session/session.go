package session

import (
	"strconv"

	"github.com/pkg/errors"

	"github.com/ariadne-eth/ariadne/ethdebug"
	"github.com/ariadne-eth/ariadne/tracing"
)

// Status describes the state of an interactive session.
type Status int

const (
	// StatusRunning indicates the cursor sits at an ordinary step and navigation may continue.
	StatusRunning Status = iota

	// StatusAtBreakpoint indicates the last advance stopped on a registered breakpoint.
	StatusAtBreakpoint

	// StatusFinished indicates the cursor reached the final step of the trace.
	StatusFinished
)

// Session supports stepwise navigation of a traced transaction: a monotonic cursor over the flat
// instruction trace, a breakpoint set, and variable inspection against the frame active at the cursor.
// The session never mutates the call tree or the trace; independent sessions over distinct traces are
// fully isolated.
type Session struct {
	trace *tracing.TransactionTrace
	root  *tracing.CallFrame

	cursor int
	status Status

	breakpoints   []*Breakpoint
	nextID        int
	hitBreakpoint *Breakpoint
}

// New opens a session over a built call tree and the trace it was built from, with the cursor at the
// first step.
func New(trace *tracing.TransactionTrace, root *tracing.CallFrame) (*Session, error) {
	if trace == nil || len(trace.Steps) == 0 || root == nil {
		return nil, errors.New("an interactive session requires a non-empty trace and its call tree")
	}
	s := &Session{trace: trace, root: root, nextID: 1}
	if len(trace.Steps) == 1 {
		s.status = StatusFinished
	}
	return s, nil
}

// Status returns the session's current state.
func (s *Session) Status() Status {
	return s.status
}

// FinalStatus describes the overall outcome of the traced transaction.
func (s *Session) FinalStatus() string {
	if s.trace.Failed {
		return "reverted"
	}
	return "success"
}

// Cursor returns the index of the step the session currently sits at.
func (s *Session) Cursor() int {
	return s.cursor
}

// CurrentStep returns the step at the cursor.
func (s *Session) CurrentStep() *tracing.ExecutionStep {
	return s.trace.Steps[s.cursor]
}

// CurrentFrame returns the innermost call frame active at the cursor.
func (s *Session) CurrentFrame() *tracing.CallFrame {
	if frame := s.root.FrameAt(s.cursor); frame != nil {
		return frame
	}
	return s.root
}

// Backtrace returns the chain of frames active at the cursor, innermost first.
func (s *Session) Backtrace() []*tracing.CallFrame {
	path := s.root.PathAt(s.cursor)
	reversed := make([]*tracing.CallFrame, len(path))
	for i, frame := range path {
		reversed[len(path)-1-i] = frame
	}
	return reversed
}

// HitBreakpoint returns the breakpoint the session last stopped on, or nil when it is not stopped at
// one.
func (s *Session) HitBreakpoint() *Breakpoint {
	if s.status != StatusAtBreakpoint {
		return nil
	}
	return s.hitBreakpoint
}

// CurrentLocation returns the resolved source location at the cursor, or nil when the executing
// position is unsymbolicated.
func (s *Session) CurrentLocation() *ethdebug.SourceLocation {
	return s.locationAt(s.cursor)
}

// locationAt resolves the source location of the given step against the contract executing it.
func (s *Session) locationAt(i int) *ethdebug.SourceLocation {
	frame := s.root.FrameAt(i)
	if frame == nil || frame.Contract == nil || frame.Contract.Info == nil {
		return nil
	}
	return frame.Contract.Info.SourceLocationAt(frame.Environment, s.trace.Steps[i].PC)
}

// StepInstruction advances the cursor by exactly one step.
func (s *Session) StepInstruction() Status {
	s.advance()
	return s.status
}

// StepInto advances the cursor until execution reaches a different resolved source line, entering any
// frames opened along the way.
func (s *Session) StepInto() Status {
	startKey := lineKey(s.locationAt(s.cursor))
	for s.advance() {
		if key := lineKey(s.locationAt(s.cursor)); key != "" && key != startKey {
			break
		}
	}
	return s.status
}

// StepOver advances the cursor until execution reaches a different resolved source line within the
// current frame or one of its callers, skipping over the interior of any frame entered along the way.
func (s *Session) StepOver() Status {
	startKey := lineKey(s.locationAt(s.cursor))
	startDepth := len(s.root.PathAt(s.cursor))
	for s.advance() {
		if len(s.root.PathAt(s.cursor)) > startDepth {
			continue
		}
		if key := lineKey(s.locationAt(s.cursor)); key != "" && key != startKey {
			break
		}
	}
	return s.status
}

// Continue advances the cursor until a breakpoint fires or the trace ends.
func (s *Session) Continue() Status {
	for s.advance() {
	}
	return s.status
}

// advance moves the cursor one step forward and re-evaluates the session state. It returns true while
// navigation may keep running: reaching the final step or a breakpoint stops the walk.
func (s *Session) advance() bool {
	if s.cursor+1 >= len(s.trace.Steps) {
		s.status = StatusFinished
		return false
	}
	s.cursor++
	s.status = StatusRunning
	s.hitBreakpoint = nil
	if s.cursor == len(s.trace.Steps)-1 {
		s.status = StatusFinished
		return false
	}

	location := s.locationAt(s.cursor)
	for _, breakpoint := range s.breakpoints {
		if breakpoint.matches(s.trace.Steps[s.cursor].PC, location) {
			s.status = StatusAtBreakpoint
			s.hitBreakpoint = breakpoint
			return false
		}
	}
	return true
}

// SetBreakpointAtPC registers a breakpoint on a program counter.
func (s *Session) SetBreakpointAtPC(pc uint64) *Breakpoint {
	breakpoint := &Breakpoint{ID: s.nextID, PC: pc, HasPC: true}
	s.nextID++
	s.breakpoints = append(s.breakpoints, breakpoint)
	return breakpoint
}

// SetBreakpointAtLine registers a breakpoint on a source file position.
func (s *Session) SetBreakpointAtLine(file string, line int) *Breakpoint {
	breakpoint := &Breakpoint{ID: s.nextID, File: file, Line: line}
	s.nextID++
	s.breakpoints = append(s.breakpoints, breakpoint)
	return breakpoint
}

// ClearBreakpoint removes the breakpoint with the given identifier, reporting whether one was removed.
func (s *Session) ClearBreakpoint(id int) bool {
	for i, breakpoint := range s.breakpoints {
		if breakpoint.ID == id {
			s.breakpoints = append(s.breakpoints[:i], s.breakpoints[i+1:]...)
			return true
		}
	}
	return false
}

// Breakpoints returns the registered breakpoints in registration order.
func (s *Session) Breakpoints() []*Breakpoint {
	return s.breakpoints
}

// ContextLine describes one source line of a listing around the cursor.
type ContextLine struct {
	// Number describes the 1-based line number.
	Number int

	// Text describes the line contents.
	Text string

	// Current indicates this is the line the cursor executes.
	Current bool
}

// SourceContext returns the source lines surrounding the cursor's resolved location, radius lines in
// each direction, for display by a front-end's list command.
func (s *Session) SourceContext(radius int) (string, []ContextLine, error) {
	location := s.locationAt(s.cursor)
	if location == nil || location.File == nil {
		return "", nil, errors.New("no source is mapped at the current position")
	}

	first := location.Line - radius
	if first < 1 {
		first = 1
	}
	last := location.Line + radius
	if count := location.File.LineCount(); last > count {
		last = count
	}

	lines := make([]ContextLine, 0, last-first+1)
	for number := first; number <= last; number++ {
		lines = append(lines, ContextLine{
			Number:  number,
			Text:    string(location.File.LineContents(number)),
			Current: number == location.Line,
		})
	}
	return location.File.Path, lines, nil
}

// lineKey collapses a resolved location to a file/line identity for line-granular stepping. An empty
// key stands for unsymbolicated positions, which stepping passes through.
func lineKey(location *ethdebug.SourceLocation) string {
	if location == nil || location.File == nil {
		return ""
	}
	return location.File.Path + ":" + strconv.Itoa(location.Line)
}

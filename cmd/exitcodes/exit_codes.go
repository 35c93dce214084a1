package exitcodes

const (
	// ================================
	// Platform-universal exit codes
	// ================================

	// ExitCodeSuccess indicates no errors or failures had occurred.
	ExitCodeSuccess = 0

	// ExitCodeGeneralError indicates some type of general error occurred.
	ExitCodeGeneralError = 1

	// ================================
	// Application-specific exit codes
	// ================================
	// Note: Despite not being standardized, exit codes 2-5 are often used for common use cases, so we avoid them.

	// ExitCodeTraceError indicates that there was an error fetching or analyzing a trace. Note that an error with
	// error code ExitCodeGeneralError and ExitCodeTraceError are mutually exclusive errors
	ExitCodeTraceError = 6

	// ExitCodeHandledError indicates an error that was already reported to the user by the command that
	// produced it, so the top-level handler should not print it again.
	ExitCodeHandledError = 7
)

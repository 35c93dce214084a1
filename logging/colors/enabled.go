package colors

// enabled tracks whether ANSI coloring is currently in effect. It is set during init based on platform support and
// may be cleared explicitly for machine-readable output modes.
var enabled bool

// DisableColor turns off ANSI coloring for all ColorFunc invocations. This is used when output is piped or when a
// machine-readable mode must stay free of escape codes.
func DisableColor() {
	enabled = false
}

// Enabled returns whether ANSI coloring is currently in effect.
func Enabled() bool {
	return enabled
}

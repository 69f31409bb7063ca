package agent

import "regexp"

// ansiPattern matches CSI sequences, OSC sequences, lone two-byte escapes,
// and carriage returns. Forced pseudo-terminals emit all of these and the
// chat transport can render none of them.
var ansiPattern = regexp.MustCompile("\x1b\\[[^@-~]*[@-~]|\x1b\\][^\x07]*\x07|\x1b[^\\[\\]].|\r")

// StripANSI removes terminal escape sequences and carriage returns.
func StripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

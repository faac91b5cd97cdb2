package game

import "fmt"

// DebugAssertions turns invariant violations into panics. Tests enable it.
var DebugAssertions = false

// assertInvariant panics with msg when cond is false and DebugAssertions is set
func assertInvariant(cond bool, msg string, args ...any) {
	if cond || !DebugAssertions {
		return
	}
	panic("invariant violated: " + fmt.Sprintf(msg, args...))
}

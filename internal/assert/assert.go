// Package assert panics on broken internal invariants. It is for values the
// program generated itself, never for user input.
package assert

import (
	"fmt"
)

// Length panics unless value has exactly expected bytes
func Length(what, value string, expected int) {
	if len(value) != expected {
		panic(fmt.Sprintf("assert.Length: %s expected %d bytes, got %d", what, expected, len(value)))
	}
}

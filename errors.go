package suballoc

import (
	"fmt"
	"os"
)

// fatalf reports a diagnostic to stderr and then panics with the same text.
// Corruption and invalid-free are not recoverable: the arena state
// afterwards is assumed unsalvageable, so this never returns.
func fatalf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, "suballoc: "+msg)
	panic("suballoc: " + msg)
}

// checkMagic aborts with a corruption diagnostic if got != want.
func checkMagic(offset uint32, want, got uint32) {
	if got != want {
		fatalf("corrupt header at offset %d: want magic %#x, got %#x", offset, want, got)
	}
}

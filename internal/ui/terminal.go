package ui

import (
	"os"

	"golang.org/x/term"
)

// IsTerminal reports whether stdout is attached to a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd())) // #nosec G115 -- fd fits in int
}

// IsInteractive reports whether stdin is a terminal, i.e. whether a prompt
// can be answered.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) // #nosec G115 -- fd fits in int
}

// ShouldUseColor follows the NO_COLOR and CLICOLOR_FORCE conventions and
// otherwise colors only terminal output.
func ShouldUseColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("CLICOLOR_FORCE") != "" && os.Getenv("CLICOLOR_FORCE") != "0" {
		return true
	}
	return IsTerminal()
}

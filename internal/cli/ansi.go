// Package cli — ANSI color constants (disabled on Windows cmd.exe).
package cli

import (
	"github.com/bjornrobertsson/coder-audit-simple/internal/terminal"
)

// ANSI escape sequences. Empty when ColorDisabled() (e.g. Windows cmd.exe).
var (
	ansiReset  string
	ansiBold   string
	ansiGreen  string
	ansiYellow string
	ansiRed    string
	ansiCyan   string
	ansiGray   string
)

func init() {
	if terminal.ColorDisabled() {
		return
	}
	ansiReset = "\033[0m"
	ansiBold = "\033[1m"
	ansiGreen = "\033[32m"
	ansiYellow = "\033[33m"
	ansiRed = "\033[31m"
	ansiCyan = "\033[36m"
	ansiGray = "\033[90m"
}

// disableColors blanks the escape sequences, honoring output.colors=false.
func disableColors() {
	ansiReset = ""
	ansiBold = ""
	ansiGreen = ""
	ansiYellow = ""
	ansiRed = ""
	ansiCyan = ""
	ansiGray = ""
}

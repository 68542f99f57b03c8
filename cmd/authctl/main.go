// Command authctl drives an authmachine engine from the shell against Cognito
// or an in-memory directory.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/MrEthical07/authmachine"
)

const (
	exitOK            = 0
	exitError         = 1
	exitNotAuthorized = 2
	exitValidation    = 3
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, authmachine.ErrNotAuthorized), errors.Is(err, authmachine.ErrSessionExpired):
		return exitNotAuthorized
	case errors.Is(err, authmachine.ErrValidation):
		return exitValidation
	default:
		return exitError
	}
}

// Package main provides the entry point for the pagedex CLI.
package main

import (
	"fmt"
	"os"

	"github.com/Aman-CERP/pagedex/cmd/pagedex/cmd"
	dexerrors "github.com/Aman-CERP/pagedex/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		_, _ = fmt.Fprint(os.Stderr, dexerrors.FormatForCLI(err))
		os.Exit(1)
	}
}

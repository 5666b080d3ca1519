// Command bitdiag runs the binary diagnostic against a local file or stdin.
//
//	bitdiag rates   report.txt
//	bitdiag ratings report.txt
//	bitdiag report  --json < report.txt
//	bitdiag dive    --aim course.txt
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/bitdiag/bitdiag/pkg/course"
	"github.com/bitdiag/bitdiag/pkg/diagnostic"
)

// Exit codes. Usage errors are reported by cobra with exitUsage.
const (
	exitOK        = 0
	exitFailure   = 1
	exitUsage     = 2
	exitInvalid   = 3
	exitUnderflow = 4
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	root := newRootCmd()
	root.SetArgs(args)
	err := root.Execute()
	if err == nil {
		return exitOK
	}
	fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
	return exitCode(err)
}

func exitCode(err error) int {
	var ue usageError
	switch {
	case errors.As(err, &ue):
		return exitUsage
	case errors.Is(err, diagnostic.ErrUnderflow):
		return exitUnderflow
	case errors.Is(err, diagnostic.ErrInvalidInput), errors.Is(err, course.ErrInvalidCommand):
		return exitInvalid
	default:
		return exitFailure
	}
}

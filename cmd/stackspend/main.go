package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/stackspend/stackspend/internal/logging"
)

const exitCanceled = 130

func main() {
	os.Exit(run(Execute, os.Stderr))
}

// run executes the CLI and reports a failure on stderr. It returns the process exit code.
func run(execute func() error, stderr io.Writer) int {
	err := execute()
	if err == nil {
		return 0
	}
	code, cause, quiet := classify(err)
	if !quiet {
		report(stderr, code, cause)
	}
	return code
}

// classify maps err to an exit code and the error worth printing.
func classify(err error) (code int, cause error, quiet bool) {
	var ee *exitError
	switch {
	case errors.As(err, &ee):
		cause = err
		if ee.err != nil {
			cause = ee.err
		}
		return ee.code, cause, ee.silent
	case errors.Is(err, context.Canceled):
		return exitCanceled, err, false
	}
	return 1, err, false
}

// report prints plain text for interactive commands. Long-running commands get one log
// record in the configured format instead, so log shippers see why the process exited.
func report(w io.Writer, code int, err error) {
	cmd := currentCommandExecutionContext()
	if !cmd.UsesStructuredLog {
		if code == exitCanceled {
			fmt.Fprintln(w, "canceled")
			return
		}
		fmt.Fprintln(w, err)
		return
	}

	cfg, cfgErr := logging.LoadConfigFromEnv()
	if cfgErr != nil {
		cfg = logging.DefaultConfig()
	}
	msg := "command failed"
	if code == exitCanceled {
		msg = "command canceled"
	}
	logging.NewLogger(cfg, w, cmd.CommandPath).Error(msg, "exit_code", code, "error", err)
}

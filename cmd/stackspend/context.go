package main

import (
	"sync/atomic"

	"github.com/spf13/cobra"
)

// structuredLogAnnotation marks commands whose output is structured logs rather than text
// meant for a terminal.
const structuredLogAnnotation = "stackspend/structured-log"

type commandExecutionContext struct {
	CommandPath       string
	UsesStructuredLog bool
}

var currentCommand atomic.Pointer[commandExecutionContext]

func setCommandExecutionContext(ctx commandExecutionContext) {
	currentCommand.Store(&ctx)
}

func resetCommandExecutionContext() {
	currentCommand.Store(nil)
}

func currentCommandExecutionContext() commandExecutionContext {
	if ctx := currentCommand.Load(); ctx != nil {
		return *ctx
	}
	return commandExecutionContext{}
}

func structured() map[string]string {
	return map[string]string{structuredLogAnnotation: "true"}
}

func commandUsesStructuredLogging(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[structuredLogAnnotation] == "true" {
			return true
		}
	}
	return false
}

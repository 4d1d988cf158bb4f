package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/stackspend/stackspend/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:           "stackspend",
	Short:         "StackSpend tracks SaaS applications, their contracts and what they cost.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandExecutionContext{
			CommandPath:       cmd.CommandPath(),
			UsesStructuredLog: commandUsesStructuredLogging(cmd),
		}
		setCommandExecutionContext(ctx)
		if !ctx.UsesStructuredLog {
			return nil
		}
		_, err := logging.BootstrapFromEnv(logging.BootstrapOptions{Command: ctx.CommandPath})
		return err
	},
}

func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.AddCommand(serveCmd, workerCmd, migrateCmd, seedCmd, usersCmd, apiCmd)
}

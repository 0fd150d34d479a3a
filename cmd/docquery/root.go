package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/relabs-tech/docquery/core/logger"
)

type rootOptions struct {
	Verbose bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "docquery",
		Short: "Semantic document queries for MongoDB",
		Long: `docquery translates semantic document queries, which use $objMatch for nested
documents, into native MongoDB filters, and serves collections through a query API.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.Verbose {
				logger.InitLogger(logrus.DebugLevel)
			}
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(newTranslateCommand())
	cmd.AddCommand(newServeCommand(opts))
	return cmd
}

// Package cmd provides the CLI commands for docsift.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/docsift/docsift/pkg/version"
)

// NewRootCmd creates the root command for the docsift CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docsift",
		Short: "Full-text search over markdown content",
		Long: `Docsift builds a SQLite FTS5 index from a tree of markdown/MDX files
and serves it over a small HTTP API.

Configuration comes from .docsift.yaml in the working directory, DOCSIFT_*
environment variables, and command-line flags, in increasing precedence.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("docsift version {{.Version}}\n")

	cmd.AddCommand(newWriteCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

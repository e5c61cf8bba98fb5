package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/accesshub/accesshub/internal/interfaces/cli/migrate"
	"github.com/accesshub/accesshub/internal/interfaces/cli/server"
	"github.com/accesshub/accesshub/internal/interfaces/cli/sweep"
	"github.com/accesshub/accesshub/internal/shared/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "accesshub",
		Short:   "AccessHub - access control terminal monitoring",
		Long:    `AccessHub keeps access-control terminals connected, ingests their access logs and streams them to operators.`,
		Version: version.String(),
	}

	rootCmd.AddCommand(
		server.NewCommand(),
		migrate.NewCommand(),
		sweep.NewCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

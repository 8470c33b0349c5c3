// dnsbot is a Discord bot that lets guild members manage DNS records on
// Cloudflare zones registered by the bot owners.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

// Version and BuildDate are set via ldflags during build.
// Example: -ldflags="-X main.Version=v1.0.0 -X main.BuildDate=2026-01-03"
var (
	Version   = "dev"
	BuildDate = "unknown"
)

var configPath string

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "dnsbot",
		Short:         "Discord bot for self-service Cloudflare DNS records",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"path to a YAML or TOML config file (env: DNSBOT_CONFIG)")

	root.AddCommand(
		newServeCommand(),
		newDomainsCommand(),
		newLedgerCommand(),
		newVersionCommand(),
	)
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "dnsbot %s (built %s, %s)\n", Version, BuildDate, runtime.Version())
		},
	}
}

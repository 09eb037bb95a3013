package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// rootCmd is the main command for the 'quince' binary, mirroring
// distribution-distribution's registry.RootCmd shape: a bare root plus
// subcommands, each owning its own flags.
var rootCmd = &cobra.Command{
	Use:   "quince",
	Short: "quince is a minimal QUIC client/server driver",
	Long:  "quince drives a qcore connection over UDP, as a client or a server.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Usage()
	},
}

func init() {
	rootCmd.AddCommand(clientCmd)
	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

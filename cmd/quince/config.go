package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	ccfg "github.com/eeverettrbx/qcore/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "print the default quince config as YAML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := yaml.Marshal(ccfg.Default())
		if err != nil {
			return err
		}
		fmt.Fprint(os.Stdout, string(out))
		return nil
	},
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is stamped into the child environment as AGENTSH_VERSION.
const version = "0.1.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of agentsh",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("agentsh version %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

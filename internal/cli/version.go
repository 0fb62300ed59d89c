package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the build version reported by the version command.
const Version = "0.1.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the xrplpayd version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("xrplpayd %s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tetherdev/tether"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of tether",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tether version %s\n", tether.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tetherdev/tether/internal/cli"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a document without opening any channels",
	Run: func(cmd *cobra.Command, args []string) {
		path, _ := cmd.Flags().GetString("file")
		if !cmd.Flags().Changed("file") && len(args) > 0 {
			path = args[0]
		}
		if err := cli.Validate(os.Stdout, path); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

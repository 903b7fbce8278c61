package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tetherdev/tether/internal/cli"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the binding runtime",
	Long:  `Loads the document, opens a channel per binding, and runs until signaled.`,
	Run: func(cmd *cobra.Command, args []string) {
		path, _ := cmd.Flags().GetString("file")
		if !cmd.Flags().Changed("file") && len(args) > 0 {
			path = args[0]
		}
		listen, _ := cmd.Flags().GetString("listen")
		watch, _ := cmd.Flags().GetBool("watch")
		level, _ := cmd.Flags().GetString("log-level")

		err := cli.Run(cmd.Context(), cli.RunOptions{
			DocumentPath: path,
			ListenAddr:   listen,
			Watch:        watch,
			LogLevel:     level,
		})
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("listen", "", "Serve diagnostics/metrics on this address (e.g. :8090)")
	runCmd.Flags().BoolP("watch", "w", false, "Reload the document on change and re-resolve bindings")
}

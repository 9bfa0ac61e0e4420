// vlt is the command-line front-end for the vault: persistent threads,
// a code index, and the Oracle query pipeline over both.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"vlt/internal/logging"
)

var (
	debugFlag bool
	dirFlag   string
)

var rootCmd = &cobra.Command{
	Use:   "vlt",
	Short: "vlt - persistent memory and code intelligence for a project",
	Long: `vlt keeps a project's long-term memory: discussion threads, an
indexed view of the source tree, and an Oracle that answers questions
by retrieving from code, documentation, and past discussion.

Configuration lives in vlt.toml, searched upward from the working
directory. Credentials come from the environment (VLT_API_KEY,
VLT_VAULT_URL, VLT_SYNC_TOKEN) or from 'vlt config set-key'.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.Init(debugFlag)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&dirFlag, "dir", "C", ".", "directory to locate vlt.toml from")

	rootCmd.AddCommand(threadCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(overviewCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

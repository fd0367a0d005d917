package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonny/chatbridge/pkg/version"
)

var rootCmd = &cobra.Command{
	Use:   "chatbridge",
	Short: "Normalize chat platform webhooks into one activity stream",
	Long: "chatbridge runs GroupMe, WeChat and Slack adapters behind a common " +
		"connect/listen/send contract and logs every normalized activity.",
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and exit",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.String())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

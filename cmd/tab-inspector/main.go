package main

import (
	"os"

	"github.com/spf13/cobra"
)

const appName = "tab-inspector"

var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "Watch browser tabs and snapshot their interactive elements",
	Long: `tab-inspector attaches to a browser's remote debugging port and:
  - tracks opened, closed and navigated tabs
  - renders each page as a compact indexed element tree
  - highlights CSS selectors on demand`,
	SilenceUsage: true,
	RunE:         runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(tabsCmd)
	rootCmd.AddCommand(snapshotCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

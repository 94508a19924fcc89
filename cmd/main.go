package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "signal-trackers",
	Short: "A CLI for managing the SignalTrackers services",
	Long:  `SignalTrackers ingests macro-market indicators, classifies the prevailing regime, and delivers alerts and daily briefings.`,
}

func main() {

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Whoops. There was an error while executing your CLI '%s'", err)
		os.Exit(1)
	}
}

package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "outreach",
	Short: "Multi-step outreach sequencing engine",
	Long: `outreach runs automated multi-step sequences toward prospective
leads: emails, automated voice calls, and timed waits, driven by
persisted workflow runs and verified telephony callbacks.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

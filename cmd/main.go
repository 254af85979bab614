package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

var rootCmd = &cobra.Command{
	Use:     "agent-tools",
	Short:   "MiniPay payment tools for LLM agents",
	Version: Version,
	Long: `agent-tools exposes the MiniPay payment backend as agent tools.

Every tool returns a JSON envelope with a "success" field; failures are
reported inside the envelope, never as a crash.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, listCmd, callCmd, historyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

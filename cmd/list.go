package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/akylbek/payment-system/agent-tools/internal/config"
	"github.com/akylbek/payment-system/agent-tools/internal/tools"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the tool definitions as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		adapter := tools.NewAdapter(tools.NewClientFactory(cfg.MiniPay()))

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(adapter.Definitions())
	},
}

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/akylbek/payment-system/agent-tools/internal/api"
	"github.com/akylbek/payment-system/agent-tools/internal/config"
	"github.com/akylbek/payment-system/agent-tools/internal/telemetry"
)

var callCmd = &cobra.Command{
	Use:   "call <tool> [json-args]",
	Short: "Invoke one tool and print its envelope",
	Long: `Invoke a single tool against the configured MiniPay backend.

Examples:
  agent-tools call check_backend_health
  agent-tools call create_charge '{"amount":5000,"customer":"cust_123"}'
  agent-tools call refund_charge '{"transaction_id":"txn_abc"}'`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		if err := telemetry.InitTelemetry(api.ServiceName, cfg.JaegerEndpoint, cfg.LogLevel); err != nil {
			return fmt.Errorf("initialize telemetry: %w", err)
		}
		defer telemetry.Shutdown(cmd.Context())

		s, err := buildStack(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		var raw json.RawMessage
		if len(args) == 2 {
			raw = json.RawMessage(args[1])
		}

		fmt.Fprintln(cmd.OutOrStdout(), s.dispatcher.Dispatch(cmd.Context(), args[0], raw))
		return nil
	},
}

package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func ledgerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ledger",
		Short: "Show the orchestrator's channel-quality ledger",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			entries, err := httpClient.Ledger(context.Background())
			if err != nil {
				return fmt.Errorf("get ledger: %w", err)
			}

			out, err := formatLedger(entries, outputFormat)
			if err != nil {
				return fmt.Errorf("format ledger: %w", err)
			}

			fmt.Print(out)
			return nil
		},
	}
}

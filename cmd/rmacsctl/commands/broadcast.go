package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func broadcastCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "broadcast",
		Short: "Force an immediate operating-frequency broadcast",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := httpClient.Broadcast(context.Background()); err != nil {
				return fmt.Errorf("broadcast: %w", err)
			}

			fmt.Println("Broadcast triggered.")
			return nil
		},
	}
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show recent journal events",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		jnl, err := openJournal(cfg)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer jnl.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		events, err := jnl.EventRepo().Recent(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			fmt.Println("No events recorded.")
			return nil
		}

		for _, e := range events {
			status := "ok"
			if !e.Success {
				status = "FAIL"
			}
			fmt.Printf("%6d  %s  %-10s  %-18s  %-4s  %s\n",
				e.Sequence, e.Timestamp.Format("15:04:05"), e.Kind, e.Op, status, e.Detail)
		}
		return nil
	},
}

func init() {
	eventsCmd.Flags().Int("limit", 50, "Maximum number of events to show")
}

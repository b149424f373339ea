package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List locally journaled practice sessions",
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

		snaps, err := jnl.SessionRepo().List(cmd.Context())
		if err != nil {
			return err
		}
		if len(snaps) == 0 {
			fmt.Println("No sessions recorded.")
			return nil
		}

		for _, s := range snaps {
			fmt.Printf("%s  %-8s  block %d/%d  attempted %d  mastery %.2f  %s\n",
				s.SessionID, s.Status, s.BlockIndex, s.TotalBlocks,
				s.Attempted, s.Mastery, s.UpdatedAt.Format("2006-01-02 15:04"))
		}
		return nil
	},
}

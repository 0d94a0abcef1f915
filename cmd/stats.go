package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zenlearn/helix/internal/tubes"
)

var statsCmd = &cobra.Command{
	Use:   "stats <user>",
	Short: "Show a learner's queues, tube states, and recent repositions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID := args[0]
		limit, _ := cmd.Flags().GetInt("limit")

		eng, st, log, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer st.Close()
		defer log.Sync()

		ctx := cmd.Context()
		restored, err := eng.RestoreUser(ctx, userID)
		if err != nil {
			return err
		}
		if !restored {
			fmt.Printf("No state for user %s. Run 'helix seed' first.\n", userID)
			return nil
		}

		active, err := eng.ActiveTube(userID)
		if err != nil {
			return err
		}
		fmt.Printf("User %s  (boundary level %d, live tube %s)\n\n",
			userID, eng.BoundaryLevel(userID), active)

		states, err := eng.Tubes().States(userID)
		if err != nil {
			return err
		}
		for _, tube := range tubes.All() {
			units, err := eng.StitchQueue(userID, string(tube))
			if err != nil {
				return err
			}
			order := make([]string, len(units))
			for i, u := range units {
				order[i] = u.ID
			}
			fmt.Printf("%s [%-9s] %s\n", tube, states[tube], strings.Join(order, " "))
		}

		records, err := st.EventRepo().RepositionsForUser(ctx, userID, limit)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("\nNo repositions recorded yet.")
			return nil
		}
		fmt.Printf("\nRecent repositions (most recent first):\n")
		for _, r := range records {
			fmt.Printf("  %s  %s  %-8s  skip=%-2d pos %d->%d  %d/%d @ %dms\n",
				r.Timestamp.Format("2006-01-02 15:04:05"),
				r.PathID, r.StitchID, r.SkipNumber,
				r.PreviousPosition, r.NewPosition,
				r.CorrectCount, r.TotalCount, r.AvgResponseTimeMs)
		}
		return nil
	},
}

func init() {
	statsCmd.Flags().Int("limit", 10, "Max repositions to show (0 for all)")
}

package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/aaronzipp/scavenger-hunt/internal/game"
	"github.com/aaronzipp/scavenger-hunt/internal/store"
)

func newStandingsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "standings [GAME]",
		Short: "List games, or show one game's leaderboard",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			now := time.Now()
			if len(args) == 0 {
				snaps, err := st.List(ctx)
				if err != nil {
					return err
				}
				return writeGames(cmd.OutOrStdout(), snaps, now)
			}
			snap, err := st.Get(ctx, args[0])
			if err != nil {
				return err
			}
			return writeStandings(cmd.OutOrStdout(), snap, now)
		},
	}
}

func writeGames(w io.Writer, snaps []store.Snapshot, now time.Time) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "GAME\tNAME\tMODE\tTEAMS\tCAPTURED\tUPDATED")
	for _, s := range snaps {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d/%d\t%s\n",
			s.Game.ID, s.Game.Name, s.Game.Mode, len(s.Game.Teams),
			len(s.Game.CapturedTasks), len(s.Game.Points),
			humanize.RelTime(s.UpdatedAt, now, "ago", "from now"))
	}
	return tw.Flush()
}

func writeStandings(w io.Writer, snap store.Snapshot, now time.Time) error {
	g := snap.Game
	fmt.Fprintf(w, "%s (updated %s, version %d)\n", g.Name, humanize.RelTime(snap.UpdatedAt, now, "ago", "from now"), snap.Version)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tTEAM\tCOLOR\tCAPTURES\tPOINTS")
	for i, s := range game.GetEliminationLeaderboard(g, g.Teams) {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%v\n",
			humanize.Ordinal(i+1), s.Team.Name, s.Color, humanize.Comma(int64(s.CaptureCount)), s.CapturedTasks)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if left := len(g.Points) - len(g.CapturedTasks); left > 0 {
		fmt.Fprintf(w, "%d of %d points still open\n", left, len(g.Points))
	}
	return nil
}

package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aaronzipp/scavenger-hunt/internal/models"
	"github.com/aaronzipp/scavenger-hunt/internal/seed"
	"github.com/aaronzipp/scavenger-hunt/internal/store"
)

func newSeedCommand(a *app) *cobra.Command {
	var replace bool
	cmd := &cobra.Command{
		Use:   "seed FILE...",
		Short: "Load game definitions from YAML files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			out := cmd.OutOrStdout()
			for _, path := range args {
				g, err := seed.LoadFile(path)
				if err != nil {
					return err
				}
				snap, err := st.Create(ctx, g)
				switch {
				case err == nil:
					fmt.Fprintf(out, "created %s (%d points, %d teams)\n", snap.Game.ID, len(snap.Game.Points), len(snap.Game.Teams))
				case errors.Is(err, store.ErrExists) && replace:
					snap, err = st.Update(ctx, g.ID, func(models.Game) (models.Game, error) { return g, nil })
					if err != nil {
						return fmt.Errorf("replace %s: %w", g.ID, err)
					}
					fmt.Fprintf(out, "replaced %s (version %d)\n", snap.Game.ID, snap.Version)
				case errors.Is(err, store.ErrExists):
					fmt.Fprintf(out, "skipped %s: already exists (use --replace)\n", g.ID)
				default:
					return fmt.Errorf("create %s: %w", path, err)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&replace, "replace", false, "overwrite games that already exist")
	return cmd
}

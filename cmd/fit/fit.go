package fit

import (
	"github.com/spf13/cobra"

	"github.com/ninanor/villrein-go/internal/conf"
	"github.com/ninanor/villrein-go/internal/pipeline"
)

// Command creates the fit command, which runs the growth model over every
// (area, draw) cell of the posterior sample.
func Command(settings *conf.Settings) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "fit",
		Short: "Fit the growth model and estimate carrying capacities",
		Long:  `Run one Ricker growth model fit per posterior draw and area, propagating abundance uncertainty into a carrying capacity sample checkpoint.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := pipeline.New(settings)
			if err != nil {
				return err
			}
			_, err = p.Capacity(cmd.Context(), force)
			return err
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Recompute even when a checkpoint exists")
	cmd.Flags().IntVarP(&settings.Fit.Workers, "workers", "j", settings.Fit.Workers, "Number of parallel fit workers, 0 uses all cores")

	return cmd
}

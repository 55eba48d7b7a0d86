package reference

import (
	"github.com/spf13/cobra"

	"github.com/ninanor/villrein-go/internal/conf"
	"github.com/ninanor/villrein-go/internal/pipeline"
)

// Command creates the reference command, which derives the per-area
// reference values from the carrying capacity sample.
func Command(settings *conf.Settings) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "reference",
		Short: "Compute per-area reference values",
		Long:  `Summarize fitted carrying capacities into reference values, filling areas without a direct estimate through the habitat area regression.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := pipeline.New(settings)
			if err != nil {
				return err
			}
			_, err = p.Reference(cmd.Context(), force)
			return err
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Recompute even when a checkpoint exists")
	cmd.Flags().IntVar(&settings.Reference.MinAreas, "min-areas", settings.Reference.MinAreas, "Minimum number of areas with a direct estimate")

	return cmd
}

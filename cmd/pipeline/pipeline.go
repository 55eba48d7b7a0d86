package pipeline

import (
	"github.com/spf13/cobra"

	"github.com/ninanor/villrein-go/internal/conf"
	"github.com/ninanor/villrein-go/internal/pipeline"
)

// Command creates the pipeline command, which runs every stage in
// dependency order with checkpoint reuse.
func Command(settings *conf.Settings) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Run all pipeline stages",
		Long:  `Run resampling, detectability estimation, growth model fitting, reference value computation and indicator assembly in order, reusing existing stage checkpoints unless forced.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := pipeline.New(settings)
			if err != nil {
				return err
			}
			_, err = p.Run(cmd.Context(), force)
			return err
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Recompute all stages even when checkpoints exist")

	return cmd
}

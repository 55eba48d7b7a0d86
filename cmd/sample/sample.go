package sample

import (
	"github.com/spf13/cobra"

	"github.com/ninanor/villrein-go/internal/conf"
	"github.com/ninanor/villrein-go/internal/pipeline"
)

// Command creates the sample command, which resamples the posterior
// abundance ensembles into the unified draw sample.
func Command(settings *conf.Settings) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Resample posterior abundance draws",
		Long:  `Filter the upstream posterior ensembles against the reported credible bands and align a fixed number of draws per area into the shared sample checkpoint.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := pipeline.New(settings)
			if err != nil {
				return err
			}
			_, err = p.Sample(force)
			return err
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Recompute even when a checkpoint exists")

	return cmd
}

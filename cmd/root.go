package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ninanor/villrein-go/cmd/config"
	"github.com/ninanor/villrein-go/cmd/export"
	"github.com/ninanor/villrein-go/cmd/fit"
	"github.com/ninanor/villrein-go/cmd/indicator"
	pipelinecmd "github.com/ninanor/villrein-go/cmd/pipeline"
	"github.com/ninanor/villrein-go/cmd/reference"
	"github.com/ninanor/villrein-go/cmd/sample"
	"github.com/ninanor/villrein-go/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "villrein",
		Short: "Wild reindeer population indicator pipeline",
	}

	// Set up the global flags for the root command.
	setupFlags(rootCmd, settings)

	subcommands := []*cobra.Command{
		sample.Command(settings),
		fit.Command(settings),
		reference.Command(settings),
		indicator.Command(settings),
		pipelinecmd.Command(settings),
		export.Command(settings),
		config.Command(settings),
	}

	rootCmd.AddCommand(subcommands...)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// Parse the command line flags
		if err := cmd.Flags().Parse(args); err != nil {
			return err
		}
		// Inspecting the configuration must work even when it is not yet
		// valid for a pipeline run.
		if cmd.Name() == "config" {
			return nil
		}
		return conf.ValidateSettings(settings)
	}

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&settings.Input.PosteriorDir, "posterior-dir", viper.GetString("input.posteriordir"), "Directory with per-area posterior draw files")
	rootCmd.PersistentFlags().StringVar(&settings.Input.IntervalFile, "intervals", viper.GetString("input.intervalfile"), "CSV file with reported credible bands")
	rootCmd.PersistentFlags().StringVar(&settings.Input.HarvestFile, "harvest", viper.GetString("input.harvestfile"), "CSV file with harvest totals")
	rootCmd.PersistentFlags().StringVar(&settings.Input.SurveyFile, "survey", viper.GetString("input.surveyfile"), "CSV file with minimum count surveys")
	rootCmd.PersistentFlags().StringVar(&settings.Output.ArtifactDir, "artifact-dir", viper.GetString("output.artifactdir"), "Directory for stage checkpoint artifacts")
	rootCmd.PersistentFlags().Uint64Var(&settings.Sampler.Seed, "seed", viper.GetUint64("sampler.seed"), "Seed for posterior draw resampling")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %v", err)
	}

	return nil
}

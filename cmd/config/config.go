package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ninanor/villrein-go/internal/conf"
)

// Command creates the config command, which prints the effective
// configuration after defaults, file and flags are merged.
func Command(settings *conf.Settings) *cobra.Command {
	var save bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Long:  `Print the merged configuration as YAML. With --save, write it back to the primary config file location.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if save {
				paths, err := conf.GetDefaultConfigPaths()
				if err != nil {
					return err
				}
				return conf.SaveYAMLConfig(filepath.Join(paths[0], "config.yaml"), settings)
			}

			out, err := yaml.Marshal(settings)
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(out)
			return err
		},
	}

	cmd.Flags().BoolVar(&save, "save", false, "Write the effective configuration to the config file")

	return cmd
}

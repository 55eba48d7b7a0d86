package export

import (
	"github.com/spf13/cobra"

	"github.com/ninanor/villrein-go/internal/conf"
	"github.com/ninanor/villrein-go/internal/pipeline"
)

// Command creates the export command, which writes the assembled indicator
// table to the configured database. The write is destructive for rows of a
// previous run, so it only happens with an explicit --confirm.
func Command(settings *conf.Settings) *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the indicator table to the database",
		Long:  `Write the assembled indicator table to the configured SQLite database, replacing rows from earlier runs. Without --confirm the command reports what would be written and leaves the database untouched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := pipeline.New(settings)
			if err != nil {
				return err
			}
			return p.Export(cmd.Context(), confirm)
		},
	}

	cmd.Flags().BoolVar(&confirm, "confirm", false, "Actually write to the database")

	return cmd
}

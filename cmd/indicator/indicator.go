package indicator

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ninanor/villrein-go/internal/conf"
	"github.com/ninanor/villrein-go/internal/indicator"
	"github.com/ninanor/villrein-go/internal/pipeline"
)

// Command creates the indicator command, which assembles the published
// indicator table for the configured assessment years.
func Command(settings *conf.Settings) *cobra.Command {
	var force bool
	var output string

	cmd := &cobra.Command{
		Use:   "indicator",
		Short: "Assemble the indicator table",
		Long:  `Merge the posterior abundance summary with survey based estimates, scale by the per-area reference values and write the indicator table checkpoint.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := pipeline.New(settings)
			if err != nil {
				return err
			}
			records, err := p.Indicator(cmd.Context(), force)
			if err != nil {
				return err
			}

			out := io.Writer(os.Stdout)
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}
			return writeTable(out, records)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Recompute even when a checkpoint exists")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the table as CSV to a file instead of stdout")

	return cmd
}

// writeTable renders indicator records as CSV.
func writeTable(w io.Writer, records []indicator.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"area", "year", "value", "lower", "upper", "unit", "datasource"}); err != nil {
		return err
	}
	for i := range records {
		r := &records[i]
		rec := []string{
			r.AreaID,
			r.YearLabel,
			strconv.FormatFloat(r.Value, 'f', 4, 64),
			strconv.FormatFloat(r.Lower, 'f', 4, 64),
			strconv.FormatFloat(r.Upper, 'f', 4, 64),
			r.Unit,
			string(r.Datasource),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("writing indicator table: %w", err)
	}
	return nil
}

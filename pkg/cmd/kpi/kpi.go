package kpi

import (
	"fmt"
	"strings"

	"github.com/MakeNowJust/heredoc"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	utilflag "github.com/MaineK00n/vulstrack/pkg/cmd/util/flag"
	"github.com/MaineK00n/vulstrack/pkg/cmd/util/output"
	"github.com/MaineK00n/vulstrack/pkg/server"
	"github.com/MaineK00n/vulstrack/pkg/tracker"
	"github.com/MaineK00n/vulstrack/pkg/tracker/filter"
)

func NewCmd() *cobra.Command {
	options := struct {
		db         utilflag.DB
		client     string
		month      string
		months     string
		window     int
		noRollover bool
	}{
		db:     utilflag.NewDB(),
		window: tracker.DefaultWindow,
	}

	cmd := &cobra.Command{
		Use:   "kpi <type>",
		Short: "compute a kpi",
		Long:  fmt.Sprintf("compute a kpi. types: [%s]", strings.Join(server.Types, ", ")),
		Example: heredoc.Doc(`
		$ vulstrack kpi status_distribution --client Acme
		$ vulstrack kpi monthly_trend --window 12
		$ vulstrack kpi comprehensive_table --months 2024-01,2024-02
		$ vulstrack kpi global_overview --month 2024-03
		`),
		Args:      cobra.ExactArgs(1),
		ValidArgs: server.Types,
		RunE: func(_ *cobra.Command, args []string) error {
			dbc, err := options.db.Open()
			if err != nil {
				return errors.Wrap(err, "open db")
			}
			defer dbc.Close()

			t := tracker.New(dbc, tracker.WithRolloverOnRead(!options.noRollover))
			v, err := server.Compute(t, args[0], options.client, options.month, filter.SplitMonths(options.months), options.window)
			if err != nil {
				return errors.Wrapf(err, "kpi %s", args[0])
			}
			return output.JSON(v)
		},
	}

	options.db.AddFlags(cmd)
	cmd.Flags().StringVarP(&options.client, "client", "", "", "client name")
	cmd.Flags().StringVarP(&options.month, "month", "", "", "release month (YYYY-MM)")
	cmd.Flags().StringVarP(&options.months, "months", "", "", "comma separated release months (YYYY-MM)")
	cmd.Flags().IntVarP(&options.window, "window", "", options.window, "number of months of monthly_trend")
	cmd.Flags().BoolVarP(&options.noRollover, "no-rollover", "", false, "do not roll treatment dates over before reading")

	return cmd
}

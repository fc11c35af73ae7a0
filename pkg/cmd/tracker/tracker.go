package tracker

import (
	"strconv"

	"github.com/MakeNowJust/heredoc"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	utilflag "github.com/MaineK00n/vulstrack/pkg/cmd/util/flag"
	"github.com/MaineK00n/vulstrack/pkg/cmd/util/output"
	"github.com/MaineK00n/vulstrack/pkg/tracker"
	"github.com/MaineK00n/vulstrack/pkg/tracker/filter"
	"github.com/MaineK00n/vulstrack/pkg/types"
)

func NewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tracker <subcommand>",
		Short: "vulstrack Tracking Operation",
		Example: heredoc.Doc(`
			$ vulstrack tracker list --client Acme --month 2024-03
			$ vulstrack tracker update 12 --status "Clos (Traité)" --comment "patched"
			$ vulstrack tracker delete 12
			$ vulstrack tracker delete --group CERTFR-2024-AVI-0001 Acme
			$ vulstrack tracker rollover
		`),
	}

	cmd.AddCommand(
		newListCmd(),
		newUpdateCmd(),
		newDeleteCmd(),
		newRolloverCmd(),
	)

	return cmd
}

func newListCmd() *cobra.Command {
	options := struct {
		db         utilflag.DB
		query      tracker.Query
		noRollover bool
	}{
		db: utilflag.NewDB(),
	}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "list consolidated records",
		Example: heredoc.Doc(`
		$ vulstrack tracker list
		$ vulstrack tracker list --client Acme --start-date 2024-01-01 --end-date 2024-03-31
		`),
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			dbc, err := options.db.Open()
			if err != nil {
				return errors.Wrap(err, "open db")
			}
			defer dbc.Close()

			rs, err := tracker.New(dbc, tracker.WithRolloverOnRead(!options.noRollover)).Records(options.query)
			if err != nil {
				return errors.Wrap(err, "records")
			}
			if rs == nil {
				rs = []types.Record{}
			}
			return output.JSON(rs)
		},
	}

	options.db.AddFlags(cmd)
	cmd.Flags().StringVarP(&options.query.Client, "client", "", "", "client name")
	cmd.Flags().StringVarP(&options.query.Month, "month", "", "", "release month (YYYY-MM)")
	cmd.Flags().StringVarP(&options.query.StartDate, "start-date", "", "", "first release date (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&options.query.EndDate, "end-date", "", "", "last release date (YYYY-MM-DD)")
	cmd.Flags().BoolVarP(&options.noRollover, "no-rollover", "", false, "do not roll treatment dates over before reading")

	return cmd
}

func newUpdateCmd() *cobra.Command {
	options := struct {
		db  utilflag.DB
		row bool
	}{
		db: utilflag.NewDB(),
	}

	cmd := &cobra.Command{
		Use:   "update <row id>",
		Short: "update the record of a tracking row",
		Long:  "update every tracking row of the (bulletin, client) pair of the row, or the row only with --row",
		Example: heredoc.Doc(`
		$ vulstrack tracker update 12 --status WIP
		$ vulstrack tracker update 12 --status "Clos (Non concerné)" --comment "not deployed"
		$ vulstrack tracker update 12 --row --date 2024-03-01
		`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return errors.Wrapf(err, "parse row id %s", args[0])
			}

			var e tracker.Edit
			if cmd.Flags().Changed("status") {
				v, _ := cmd.Flags().GetString("status")
				s, err := types.ParseStatus(v)
				if err != nil {
					return errors.Wrap(err, "parse status")
				}
				e.Status = &s
			}
			if cmd.Flags().Changed("comment") {
				v, _ := cmd.Flags().GetString("comment")
				e.Comment = &v
			}
			if cmd.Flags().Changed("date") {
				v, _ := cmd.Flags().GetString("date")
				if err := filter.ValidateDate("date", v); err != nil {
					return errors.Wrap(err, "validate date")
				}
				e.TreatmentDate = &v
			}
			if cmd.Flags().Changed("team") {
				v, _ := cmd.Flags().GetString("team")
				e.ResponsibleTeam = &v
			}
			if cmd.Flags().Changed("product") {
				v, _ := cmd.Flags().GetString("product")
				e.Product = &v
			}
			if e.TrackingUpdate.IsEmpty() && e.Product == nil {
				return errors.New("nothing to update. use --status, --comment, --date, --team or --product")
			}

			dbc, err := options.db.Open()
			if err != nil {
				return errors.Wrap(err, "open db")
			}
			defer dbc.Close()

			t := tracker.New(dbc)
			var r *types.TrackingRow
			if options.row {
				r, err = t.UpdateRow(uint(id), e.TrackingUpdate)
			} else {
				r, err = t.UpdateRecord(uint(id), e)
			}
			if err != nil {
				return errors.Wrap(err, "update")
			}
			return output.JSON(r)
		},
	}

	options.db.AddFlags(cmd)
	cmd.Flags().StringP("status", "", "", "new status")
	cmd.Flags().StringP("comment", "", "", "new comment")
	cmd.Flags().StringP("date", "", "", "new treatment date (YYYY-MM-DD)")
	cmd.Flags().StringP("team", "", "", "new responsible team")
	cmd.Flags().StringP("product", "", "", "new product name of the bulletin")
	cmd.Flags().BoolVarP(&options.row, "row", "", false, "update the given row only")

	return cmd
}

func newDeleteCmd() *cobra.Command {
	options := struct {
		db    utilflag.DB
		group bool
	}{
		db: utilflag.NewDB(),
	}

	cmd := &cobra.Command{
		Use:   "delete (<row id> | --group <bulletin id> <client>)",
		Short: "delete tracking rows",
		Example: heredoc.Doc(`
		$ vulstrack tracker delete 12
		$ vulstrack tracker delete --group CERTFR-2024-AVI-0001 Acme
		`),
		Args: cobra.RangeArgs(1, 2),
		RunE: func(_ *cobra.Command, args []string) error {
			if options.group && len(args) != 2 || !options.group && len(args) != 1 {
				return errors.New("expected <row id> or --group <bulletin id> <client>")
			}

			dbc, err := options.db.Open()
			if err != nil {
				return errors.Wrap(err, "open db")
			}
			defer dbc.Close()

			t := tracker.New(dbc)
			if options.group {
				n, err := t.DeleteRecord(args[0], args[1])
				if err != nil {
					return errors.Wrap(err, "delete record")
				}
				return output.JSON(map[string]int64{"deleted": n})
			}

			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return errors.Wrapf(err, "parse row id %s", args[0])
			}
			if err := t.DeleteRow(uint(id)); err != nil {
				return errors.Wrap(err, "delete row")
			}
			return output.JSON(map[string]int64{"deleted": 1})
		},
	}

	options.db.AddFlags(cmd)
	cmd.Flags().BoolVarP(&options.group, "group", "", false, "delete every row of a (bulletin, client) pair")

	return cmd
}

func newRolloverCmd() *cobra.Command {
	options := struct {
		db utilflag.DB
	}{
		db: utilflag.NewDB(),
	}

	cmd := &cobra.Command{
		Use:   "rollover",
		Short: "move the treatment date of ongoing rows to today",
		Example: heredoc.Doc(`
		$ vulstrack tracker rollover
		`),
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			dbc, err := options.db.Open()
			if err != nil {
				return errors.Wrap(err, "open db")
			}
			defer dbc.Close()

			n, err := tracker.New(dbc).Rollover()
			if err != nil {
				return errors.Wrap(err, "rollover")
			}
			return output.JSON(map[string]int64{"rows": n})
		},
	}

	options.db.AddFlags(cmd)

	return cmd
}

package export

import (
	"context"

	"github.com/MakeNowJust/heredoc"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	utilconfig "github.com/MaineK00n/vulstrack/pkg/cmd/util/config"
	utilflag "github.com/MaineK00n/vulstrack/pkg/cmd/util/flag"
	"github.com/MaineK00n/vulstrack/pkg/cmd/util/output"
	"github.com/MaineK00n/vulstrack/pkg/config/util"
	"github.com/MaineK00n/vulstrack/pkg/export"
)

func NewCmd() *cobra.Command {
	options := struct {
		config   string
		db       utilflag.DB
		dir      string
		compress bool
		workers  int
		clients  []string
		month    string
	}{
		config: util.DefaultPath(),
		db:     utilflag.NewDB(),
	}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "export consolidated records, one file per client",
		Example: heredoc.Doc(`
		$ vulstrack export
		$ vulstrack export --dir exports --compress --workers 8
		$ vulstrack export --client Acme --client Globex --month 2024-03
		`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := utilconfig.Load(cmd, options.config, &options.db)
			if err != nil {
				return errors.Wrap(err, "load config")
			}
			if cmd.Flags().Changed("dir") {
				c.Export.Dir = options.dir
			}
			if cmd.Flags().Changed("compress") {
				c.Export.Compress = options.compress
			}
			if cmd.Flags().Changed("workers") {
				c.Export.Workers = options.workers
			}

			dbc, err := options.db.Open()
			if err != nil {
				return errors.Wrap(err, "open db")
			}
			defer dbc.Close()

			m, err := export.Export(context.Background(), dbc,
				export.WithDir(c.Export.Dir),
				export.WithCompress(c.Export.Compress),
				export.WithConcurrency(c.Export.Workers),
				export.WithClients(options.clients),
				export.WithMonth(options.month),
			)
			if err != nil {
				return errors.Wrap(err, "export")
			}
			return output.JSON(m)
		},
	}

	cmd.Flags().StringVarP(&options.config, "config", "c", options.config, "vulstrack config file path")
	options.db.AddFlags(cmd)
	cmd.Flags().StringVarP(&options.dir, "dir", "", "", "export directory")
	cmd.Flags().BoolVarP(&options.compress, "compress", "", false, "compress files with zstd")
	cmd.Flags().IntVarP(&options.workers, "workers", "", 4, "number of clients exported concurrently")
	cmd.Flags().StringSliceVarP(&options.clients, "client", "", nil, "export the given clients only")
	cmd.Flags().StringVarP(&options.month, "month", "", "", "release month (YYYY-MM)")

	return cmd
}

package init

import (
	"github.com/MakeNowJust/heredoc"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	utilflag "github.com/MaineK00n/vulstrack/pkg/cmd/util/flag"
	db "github.com/MaineK00n/vulstrack/pkg/db/init"
)

func NewCmd() *cobra.Command {
	options := struct {
		db   utilflag.DB
		keep bool
	}{
		db:   utilflag.NewDB(),
		keep: false,
	}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "initialize vulstrack db",
		Example: heredoc.Doc(`
		$ vulstrack db init
		$ vulstrack db init --keep
		$ vulstrack db init --dbtype postgres --dbpath "host=localhost user=vulstrack dbname=vulstrack"
		`),
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			utilflag.SetDebug(options.db.Debug)
			if err := db.Init(db.WithDBType(options.db.Type.String()), db.WithDBPath(options.db.Path), db.WithKeepData(options.keep), db.WithDebug(options.db.Debug)); err != nil {
				return errors.Wrap(err, "db init")
			}
			return nil
		},
	}

	options.db.AddFlags(cmd)
	cmd.Flags().BoolVarP(&options.keep, "keep", "", options.keep, "keep stored data and only migrate the schema")

	return cmd
}

package ingest

import (
	"github.com/MakeNowJust/heredoc"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	utilflag "github.com/MaineK00n/vulstrack/pkg/cmd/util/flag"
	"github.com/MaineK00n/vulstrack/pkg/cmd/util/output"
	db "github.com/MaineK00n/vulstrack/pkg/db/add"
)

func NewCmd() *cobra.Command {
	options := struct {
		db         utilflag.DB
		noProgress bool
	}{
		db:         utilflag.NewDB(),
		noProgress: false,
	}

	cmd := &cobra.Command{
		Use:   "import <bulletin json>...",
		Short: "import bulletins into vulstrack db",
		Example: heredoc.Doc(`
		$ vulstrack import CERTFR-2024-AVI-0001.json
		$ vulstrack import --no-progress bulletins/*.json
		`),
		Args: cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			utilflag.SetDebug(options.db.Debug)
			r, err := db.Add(args, db.WithDBType(options.db.Type.String()), db.WithDBPath(options.db.Path), db.WithNoProgress(options.noProgress), db.WithDebug(options.db.Debug))
			if err != nil {
				return errors.Wrap(err, "import")
			}
			return output.JSON(r)
		},
	}

	options.db.AddFlags(cmd)
	cmd.Flags().BoolVarP(&options.noProgress, "no-progress", "", options.noProgress, "hide progress bar")

	return cmd
}

package db

import (
	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	dbInitCmd "github.com/MaineK00n/vulstrack/pkg/cmd/db/init"
)

func NewCmdDB() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db <subcommand>",
		Short: "vulstrack DB Operation",
		Example: heredoc.Doc(`
			$ vulstrack db init
		`),
	}

	cmd.AddCommand(dbInitCmd.NewCmd())

	return cmd
}

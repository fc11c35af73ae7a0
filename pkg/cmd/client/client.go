package client

import (
	"strconv"

	"github.com/MakeNowJust/heredoc"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	utilflag "github.com/MaineK00n/vulstrack/pkg/cmd/util/flag"
	"github.com/MaineK00n/vulstrack/pkg/cmd/util/output"
	"github.com/MaineK00n/vulstrack/pkg/types"
)

func NewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client <subcommand>",
		Short: "vulstrack Client Operation",
		Example: heredoc.Doc(`
			$ vulstrack client add Acme
			$ vulstrack client list
			$ vulstrack client edit 1 "Acme Corp"
			$ vulstrack client remove 1
		`),
	}

	cmd.AddCommand(
		newAddCmd(),
		newListCmd(),
		newEditCmd(),
		newRemoveCmd(),
	)

	return cmd
}

func newAddCmd() *cobra.Command {
	options := struct {
		db utilflag.DB
	}{
		db: utilflag.NewDB(),
	}

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "add a client",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			dbc, err := options.db.Open()
			if err != nil {
				return errors.Wrap(err, "open db")
			}
			defer dbc.Close()

			c, err := dbc.PutClient(args[0])
			if err != nil {
				return errors.Wrap(err, "put client")
			}
			return output.JSON(c)
		},
	}

	options.db.AddFlags(cmd)

	return cmd
}

func newListCmd() *cobra.Command {
	options := struct {
		db utilflag.DB
	}{
		db: utilflag.NewDB(),
	}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "list clients",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			dbc, err := options.db.Open()
			if err != nil {
				return errors.Wrap(err, "open db")
			}
			defer dbc.Close()

			cs, err := dbc.GetClients()
			if err != nil {
				return errors.Wrap(err, "get clients")
			}
			if cs == nil {
				cs = []types.Client{}
			}
			return output.JSON(cs)
		},
	}

	options.db.AddFlags(cmd)

	return cmd
}

func newEditCmd() *cobra.Command {
	options := struct {
		db utilflag.DB
	}{
		db: utilflag.NewDB(),
	}

	cmd := &cobra.Command{
		Use:   "edit <client id> <name>",
		Short: "rename a client",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return errors.Wrapf(err, "parse client id %s", args[0])
			}

			dbc, err := options.db.Open()
			if err != nil {
				return errors.Wrap(err, "open db")
			}
			defer dbc.Close()

			if err := dbc.UpdateClient(uint(id), args[1]); err != nil {
				return errors.Wrap(err, "update client")
			}
			return output.JSON(types.Client{ID: uint(id), Name: args[1]})
		},
	}

	options.db.AddFlags(cmd)

	return cmd
}

func newRemoveCmd() *cobra.Command {
	options := struct {
		db utilflag.DB
	}{
		db: utilflag.NewDB(),
	}

	cmd := &cobra.Command{
		Use:   "remove <client id>",
		Short: "remove a client and its products",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return errors.Wrapf(err, "parse client id %s", args[0])
			}

			dbc, err := options.db.Open()
			if err != nil {
				return errors.Wrap(err, "open db")
			}
			defer dbc.Close()

			if err := dbc.DeleteClient(uint(id)); err != nil {
				return errors.Wrap(err, "delete client")
			}
			return nil
		},
	}

	options.db.AddFlags(cmd)

	return cmd
}

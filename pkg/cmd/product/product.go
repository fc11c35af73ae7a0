package product

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
		Use:   "product <subcommand>",
		Short: "vulstrack Product Operation",
		Example: heredoc.Doc(`
			$ vulstrack product add 1 FortiOS --team "Network Team"
			$ vulstrack product list --client-id 1
			$ vulstrack product edit 3 1 FortiGate --team "Network Team"
			$ vulstrack product remove 3
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

func parseID(kind, s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "parse %s id %s", kind, s)
	}
	return uint(id), nil
}

func newAddCmd() *cobra.Command {
	options := struct {
		db   utilflag.DB
		team string
	}{
		db:   utilflag.NewDB(),
		team: types.DefaultResponsibleTeam,
	}

	cmd := &cobra.Command{
		Use:   "add <client id> <name>",
		Short: "add a product watched for a client",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			cid, err := parseID("client", args[0])
			if err != nil {
				return err
			}

			dbc, err := options.db.Open()
			if err != nil {
				return errors.Wrap(err, "open db")
			}
			defer dbc.Close()

			p, err := dbc.PutProduct(types.Product{Name: args[1], ClientID: cid, ResponsibleResolution: options.team})
			if err != nil {
				return errors.Wrap(err, "put product")
			}
			return output.JSON(p)
		},
	}

	options.db.AddFlags(cmd)
	cmd.Flags().StringVarP(&options.team, "team", "", options.team, "team responsible for the resolution")

	return cmd
}

func newListCmd() *cobra.Command {
	options := struct {
		db       utilflag.DB
		clientID uint
	}{
		db: utilflag.NewDB(),
	}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "list products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dbc, err := options.db.Open()
			if err != nil {
				return errors.Wrap(err, "open db")
			}
			defer dbc.Close()

			var cid *uint
			if cmd.Flags().Changed("client-id") {
				cid = &options.clientID
			}
			ps, err := dbc.GetProducts(cid)
			if err != nil {
				return errors.Wrap(err, "get products")
			}
			if ps == nil {
				ps = []types.Product{}
			}
			return output.JSON(ps)
		},
	}

	options.db.AddFlags(cmd)
	cmd.Flags().UintVarP(&options.clientID, "client-id", "", 0, "list the products of a client only")

	return cmd
}

func newEditCmd() *cobra.Command {
	options := struct {
		db   utilflag.DB
		team string
	}{
		db:   utilflag.NewDB(),
		team: types.DefaultResponsibleTeam,
	}

	cmd := &cobra.Command{
		Use:   "edit <product id> <client id> <name>",
		Short: "edit a product",
		Args:  cobra.ExactArgs(3),
		RunE: func(_ *cobra.Command, args []string) error {
			id, err := parseID("product", args[0])
			if err != nil {
				return err
			}
			cid, err := parseID("client", args[1])
			if err != nil {
				return err
			}

			dbc, err := options.db.Open()
			if err != nil {
				return errors.Wrap(err, "open db")
			}
			defer dbc.Close()

			p := types.Product{ID: id, Name: args[2], ClientID: cid, ResponsibleResolution: options.team}
			if err := dbc.UpdateProduct(p); err != nil {
				return errors.Wrap(err, "update product")
			}
			return output.JSON(p)
		},
	}

	options.db.AddFlags(cmd)
	cmd.Flags().StringVarP(&options.team, "team", "", options.team, "team responsible for the resolution")

	return cmd
}

func newRemoveCmd() *cobra.Command {
	options := struct {
		db utilflag.DB
	}{
		db: utilflag.NewDB(),
	}

	cmd := &cobra.Command{
		Use:   "remove <product id>",
		Short: "remove a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			id, err := parseID("product", args[0])
			if err != nil {
				return err
			}

			dbc, err := options.db.Open()
			if err != nil {
				return errors.Wrap(err, "open db")
			}
			defer dbc.Close()

			if err := dbc.DeleteProduct(id); err != nil {
				return errors.Wrap(err, "delete product")
			}
			return nil
		},
	}

	options.db.AddFlags(cmd)

	return cmd
}

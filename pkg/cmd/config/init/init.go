package init

import (
	"github.com/MakeNowJust/heredoc"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	config "github.com/MaineK00n/vulstrack/pkg/config/init"
	"github.com/MaineK00n/vulstrack/pkg/config/util"
)

func NewCmd() *cobra.Command {
	options := struct {
		config string
	}{
		config: util.DefaultPath(),
	}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "initialize vulstrack config",
		Example: heredoc.Doc(`
		$ vulstrack config init
		`),
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := config.Init(config.WithConfig(options.config)); err != nil {
				return errors.Wrap(err, "config init")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&options.config, "config", "C", options.config, "use config.json path")

	return cmd
}

package config

import (
	"github.com/spf13/cobra"

	cmdInit "github.com/MaineK00n/vulstrack/pkg/cmd/config/init"
)

func NewCmdConfig() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "vulstrack Config Operation",
	}

	cmd.AddCommand(
		cmdInit.NewCmd(),
	)

	return cmd
}

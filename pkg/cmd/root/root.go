package root

import (
	"github.com/spf13/cobra"

	clientCmd "github.com/MaineK00n/vulstrack/pkg/cmd/client"
	configCmd "github.com/MaineK00n/vulstrack/pkg/cmd/config"
	dbCmd "github.com/MaineK00n/vulstrack/pkg/cmd/db"
	exportCmd "github.com/MaineK00n/vulstrack/pkg/cmd/export"
	ingestCmd "github.com/MaineK00n/vulstrack/pkg/cmd/ingest"
	kpiCmd "github.com/MaineK00n/vulstrack/pkg/cmd/kpi"
	productCmd "github.com/MaineK00n/vulstrack/pkg/cmd/product"
	serverCmd "github.com/MaineK00n/vulstrack/pkg/cmd/server"
	trackerCmd "github.com/MaineK00n/vulstrack/pkg/cmd/tracker"
	versionCmd "github.com/MaineK00n/vulstrack/pkg/cmd/version"
)

func NewCmdRoot() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "vulstrack <command>",
		Short:         "Vulnerability Bulletin Tracker: vulstrack",
		Long:          "Vulnerability Bulletin Tracker: vulstrack",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.AddCommand(
		dbCmd.NewCmdDB(),
		ingestCmd.NewCmd(),
		trackerCmd.NewCmd(),
		kpiCmd.NewCmd(),
		clientCmd.NewCmd(),
		productCmd.NewCmd(),
		exportCmd.NewCmd(),
		serverCmd.NewCmdServer(),
		configCmd.NewCmdConfig(),
		versionCmd.NewCmd(),
	)

	return cmd
}

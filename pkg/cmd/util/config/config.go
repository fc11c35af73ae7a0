package config

import (
	"log/slog"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	utilflag "github.com/MaineK00n/vulstrack/pkg/cmd/util/flag"
	configInit "github.com/MaineK00n/vulstrack/pkg/config/init"
	"github.com/MaineK00n/vulstrack/pkg/config/types"
	"github.com/MaineK00n/vulstrack/pkg/config/util"
)

// Load reads path, falling back to the defaults when it does not exist, and
// lets the db flags set on cmd override the db section.
func Load(cmd *cobra.Command, path string, dbflags *utilflag.DB) (types.Config, error) {
	c := configInit.Default()
	if _, err := os.Stat(path); err == nil {
		lc, err := util.Load(path)
		if err != nil {
			return types.Config{}, errors.Wrap(err, "load config")
		}
		c = *lc
	} else {
		slog.Debug("Use Default Config", "path", path)
	}
	configInit.Fill(&c)

	if cmd.Flags().Changed("dbtype") {
		c.DB.Type = dbflags.Type.String()
	}
	if cmd.Flags().Changed("dbpath") {
		c.DB.Path = dbflags.Path
	}
	if cmd.Flags().Changed("debug") {
		c.DB.Debug = dbflags.Debug
	}
	if err := dbflags.Type.Set(c.DB.Type); err != nil {
		return types.Config{}, errors.Wrap(err, "db type")
	}
	dbflags.Path, dbflags.Debug = c.DB.Path, c.DB.Debug

	return c, nil
}

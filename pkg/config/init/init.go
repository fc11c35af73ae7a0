package init

import (
	"log/slog"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/MaineK00n/vulstrack/pkg/config/types"
	"github.com/MaineK00n/vulstrack/pkg/config/util"
	dbInit "github.com/MaineK00n/vulstrack/pkg/db/init"
	"github.com/MaineK00n/vulstrack/pkg/tracker/rollover"
	utilos "github.com/MaineK00n/vulstrack/pkg/util/os"
)

type options struct {
	config string
}

type Option interface {
	apply(*options)
}

type configOption string

func (o configOption) apply(opts *options) {
	opts.config = string(o)
}

func WithConfig(config string) Option {
	return configOption(config)
}

// Default is the configuration written by Init.
func Default() types.Config {
	return types.Config{
		DB: &types.DBConfig{
			Type: "sqlite3",
			Path: dbInit.DefaultDBPath(),
		},
		Server: &types.ServerConfig{
			Listen:           "127.0.0.1:5515",
			Rollover:         rollover.ModeOnRead,
			RolloverInterval: "1h",
		},
		Export: &types.ExportConfig{
			Dir:      filepath.Join(utilos.UserCacheDir(), "export"),
			Compress: false,
			Workers:  4,
		},
	}
}

// Fill sets every missing section and field of c to its default.
func Fill(c *types.Config) {
	d := Default()
	if c.DB == nil {
		c.DB = d.DB
	}
	if c.DB.Type == "" {
		c.DB.Type = d.DB.Type
	}
	if c.DB.Path == "" && c.DB.Type == "sqlite3" {
		c.DB.Path = d.DB.Path
	}

	if c.Server == nil {
		c.Server = d.Server
	}
	if c.Server.Listen == "" {
		c.Server.Listen = d.Server.Listen
	}
	if c.Server.Rollover == "" {
		c.Server.Rollover = d.Server.Rollover
	}
	if c.Server.RolloverInterval == "" {
		c.Server.RolloverInterval = d.Server.RolloverInterval
	}

	if c.Export == nil {
		c.Export = d.Export
	}
	if c.Export.Dir == "" {
		c.Export.Dir = d.Export.Dir
	}
	if c.Export.Workers < 1 {
		c.Export.Workers = d.Export.Workers
	}
}

func Init(opts ...Option) error {
	options := &options{
		config: util.DefaultPath(),
	}
	for _, o := range opts {
		o.apply(options)
	}

	slog.Info("Initialize Config", "path", options.config)
	if err := util.Write(options.config, Default()); err != nil {
		return errors.Wrap(err, "write config")
	}

	return nil
}

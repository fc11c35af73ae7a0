package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	utilconfig "github.com/MaineK00n/vulstrack/pkg/cmd/util/config"
	utilflag "github.com/MaineK00n/vulstrack/pkg/cmd/util/flag"
	"github.com/MaineK00n/vulstrack/pkg/config/util"
	"github.com/MaineK00n/vulstrack/pkg/server"
)

func NewCmdServer() *cobra.Command {
	options := struct {
		config   string
		db       utilflag.DB
		listen   string
		rollover string
		interval time.Duration
		redis    string
	}{
		config: util.DefaultPath(),
		db:     utilflag.NewDB(),
	}

	cmd := &cobra.Command{
		Use:   "server",
		Short: "vulstrack start server mode",
		Example: heredoc.Doc(`
			$ vulstrack server
			$ vulstrack server --listen 0.0.0.0:5515 --rollover scheduled --rollover-interval 30m --redis 127.0.0.1:6379
		`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := utilconfig.Load(cmd, options.config, &options.db)
			if err != nil {
				return errors.Wrap(err, "load config")
			}
			utilflag.SetDebug(options.db.Debug)

			if cmd.Flags().Changed("listen") {
				c.Server.Listen = options.listen
			}
			if cmd.Flags().Changed("rollover") {
				c.Server.Rollover = options.rollover
			}
			interval, err := time.ParseDuration(c.Server.RolloverInterval)
			if err != nil {
				return errors.Wrapf(err, "parse rollover interval %s", c.Server.RolloverInterval)
			}
			if cmd.Flags().Changed("rollover-interval") {
				interval = options.interval
			}
			redis := ""
			if c.Server.Lock != nil {
				redis = c.Server.Lock.Redis
			}
			if cmd.Flags().Changed("redis") {
				redis = options.redis
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := server.Serve(ctx,
				server.WithListen(c.Server.Listen),
				server.WithDBType(options.db.Type.String()),
				server.WithDBPath(options.db.Path),
				server.WithRollover(c.Server.Rollover),
				server.WithRolloverInterval(interval),
				server.WithRedis(redis),
				server.WithDebug(options.db.Debug),
			); err != nil {
				return errors.Wrap(err, "serve")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&options.config, "config", "c", options.config, "vulstrack config file path")
	options.db.AddFlags(cmd)
	cmd.Flags().StringVarP(&options.listen, "listen", "", "127.0.0.1:5515", "listen address")
	cmd.Flags().StringVarP(&options.rollover, "rollover", "", "on-read", "rollover mode (accepts: [on-read, scheduled])")
	cmd.Flags().DurationVarP(&options.interval, "rollover-interval", "", time.Hour, "interval of the scheduled rollover")
	cmd.Flags().StringVarP(&options.redis, "redis", "", "", "redis address sharing the scheduled rollover lock")

	return cmd
}

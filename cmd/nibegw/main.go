package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

type options struct {
	config   string
	logLevel string
	logJSON  bool

	log *slog.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opt := &options{}
	root := &cobra.Command{
		Use:   "nibegw",
		Short: "Nibe heat pump gateway",
		Long: `nibegw talks to a Nibe heat pump through a MODBUS40 accessory address,
either directly on the RS485 line or through a NibeGW UDP gateway.

The run command keeps the configured variables up to date and publishes them
to MQTT and Prometheus. monitor only listens on the bus, read and write access
single variables.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger(cmd.ErrOrStderr(), opt.logLevel, opt.logJSON)
			if err != nil {
				return err
			}
			opt.log = log
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&opt.config, "config", "c", "nibegw.yaml", "Configuration file")
	root.PersistentFlags().StringVar(&opt.logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	root.PersistentFlags().BoolVar(&opt.logJSON, "log-json", false, "Log in JSON format")

	root.AddCommand(
		newRunCmd(opt),
		newMonitorCmd(opt),
		newReadCmd(opt),
		newWriteCmd(opt),
	)
	return root
}

// adapter returns the logger handed to the library, nil unless debug
// logging is enabled.
func (opt *options) adapter() *debugAdapter {
	if !opt.log.Enabled(context.Background(), slog.LevelDebug) {
		return nil
	}
	return &debugAdapter{opt.log}
}

package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/grid-x/nibe"
	"github.com/spf13/cobra"
)

const reconnectInterval = 10 * time.Second

func newRunCmd(opt *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Poll the configured variables and publish changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := Load(opt.config)
			if err != nil {
				return err
			}
			return runDaemon(cmd.Context(), cfg, opt)
		},
	}
}

func runDaemon(ctx context.Context, cfg *Config, opt *options) error {
	log := opt.log
	conn := cfg.Connector(opt.adapter())

	poller, err := nibe.NewPoller(cfg.PollerConfig(), conn, nil)
	if err != nil {
		return err
	}
	if a := opt.adapter(); a != nil {
		poller.Logger = a
	}
	poller.AddObserver(&logObserver{log: log})
	for _, c := range cfg.Coils {
		if err := poller.Subscribe(c.Address, c.Refresh); err != nil {
			return err
		}
	}
	conn.AddListener(poller)

	if cfg.MQTT.Broker != "" {
		client, err := connectMQTT(cfg.MQTT, log)
		if err != nil {
			return err
		}
		defer disconnectMQTT(client, cfg.MQTT)
		obs := newMQTTObserver(client, cfg.MQTT, log)
		defer obs.Close()
		poller.AddObserver(obs)
	}

	if cfg.Metrics.Listen != "" {
		m := newMetrics(conn.Stats.Snapshot)
		poller.AddObserver(m)
		go func() {
			if err := m.serve(ctx, cfg.Metrics.Listen, log); err != nil {
				log.Error("metrics endpoint failed", "err", err)
			}
		}()
	}

	if err := conn.Connect(); err != nil {
		log.Warn("could not connect, retrying", "err", err, "interval", reconnectInterval)
	} else {
		log.Info("connected", "model", cfg.Pump.Model)
	}
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		poller.Run(ctx)
		close(done)
	}()
	supervise(ctx, conn, reconnectInterval, log)
	<-done

	log.Info("stopped", "stats", conn.Stats.Snapshot().String())
	return nil
}

// connection is the part of *nibe.Connector the supervisor needs.
type connection interface {
	Connect() error
	Close() error
	Connected() bool
	Err() error
}

// supervise reconnects c every interval while it is closed or its read
// loop stopped with a transport error. It returns when ctx is done.
func supervise(ctx context.Context, c connection, interval time.Duration, log *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if c.Connected() {
			err := c.Err()
			if err == nil {
				continue
			}
			log.Warn("connection lost, reconnecting", "err", err)
			c.Close()
		}
		if err := c.Connect(); err != nil {
			log.Warn("reconnect failed", "err", err)
			continue
		}
		log.Info("reconnected")
	}
}

// logObserver logs changed values.
type logObserver struct {
	log *slog.Logger
}

func (o *logObserver) ValueChanged(coil uint16, info nibe.VariableInfo, value float64) {
	o.log.Info("value changed", "coil", coil, "name", info.Name, "value", value)
}

func (o *logObserver) ConnectivityDegraded(err error) {
	o.log.Warn("connectivity degraded", "err", err)
}

package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/grid-x/nibe"
	"github.com/spf13/cobra"
)

func newMonitorCmd(opt *options) *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "Print every message on the bus without taking part in it",
		Long: `Open the configured transport passively and print each decoded message
as it arrives. Nothing is acknowledged and no request is sent, so monitor can
run next to another MODBUS40 master. Statistics are printed on exit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := Load(opt.config)
			if err != nil {
				return err
			}
			conn := cfg.Connector(opt.adapter())
			conn.Passive = true

			out := cmd.OutOrStdout()
			conn.AddListener(&printer{w: out, model: nibe.PumpModel(cfg.Pump.Model), now: time.Now})
			if err := conn.Connect(); err != nil {
				return err
			}
			fmt.Fprintf(out, "Monitoring %s, press Ctrl+C to exit\n\n", cfg.Pump.Model)

			<-cmd.Context().Done()
			err = conn.Close()
			fmt.Fprint(out, "\n", conn.Stats.Snapshot())
			return err
		},
	}
}

// printer writes one line per message and error.
type printer struct {
	mu    sync.Mutex
	w     io.Writer
	model nibe.PumpModel
	now   func() time.Time
}

func (p *printer) MessageReceived(m nibe.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ts := p.now().Format("15:04:05.000")
	switch msg := m.(type) {
	case *nibe.DataReadOut:
		fmt.Fprintf(p.w, "[%s] read-out, %d values\n", ts, len(msg.Values))
		for _, v := range msg.Values {
			p.value(v.Coil, v.Value)
		}
	case *nibe.ReadResponse:
		fmt.Fprintf(p.w, "[%s] read response\n", ts)
		p.value(msg.Coil, msg.Value)
	default:
		fmt.Fprintf(p.w, "[%s] %v\n", ts, m)
	}
}

func (p *printer) ErrorOccurred(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "[%s] [ERROR] %v\n", p.now().Format("15:04:05.000"), err)
}

func (p *printer) value(coil uint16, raw int32) {
	info, ok := nibe.Lookup(p.model, coil)
	if !ok {
		fmt.Fprintf(p.w, "  %5d %-32s %d\n", coil, "(unknown)", raw)
		return
	}
	fmt.Fprintf(p.w, "  %5d %-32s %g\n", coil, info.Name, info.Scale(raw))
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/grid-x/nibe"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics exports coil values and connector statistics.
type metrics struct {
	registry *prometheus.Registry
	values   *prometheus.GaugeVec
	degraded prometheus.Counter
}

func newMetrics(stats func() nibe.StatisticsSnapshot) *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		values: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "nibe_value",
			Help: "Last value of a heat pump variable",
		}, []string{"coil", "name"}),
		degraded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nibe_connectivity_degraded_total",
			Help: "Requests or transports that failed",
		}),
	}
	m.registry.MustRegister(m.values, m.degraded, &statsCollector{snapshot: stats})
	return m
}

func (m *metrics) ValueChanged(coil uint16, info nibe.VariableInfo, value float64) {
	m.values.WithLabelValues(strconv.Itoa(int(coil)), info.Name).Set(value)
}

func (m *metrics) ConnectivityDegraded(err error) {
	m.degraded.Inc()
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// serve runs the /metrics endpoint until ctx is done.
func (m *metrics) serve(ctx context.Context, addr string, log *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(shutdown)
	}()

	log.Info("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

var (
	framesDesc = prometheus.NewDesc("nibe_frames_total",
		"Frames with a valid checksum", nil, nil)
	framingErrorsDesc = prometheus.NewDesc("nibe_framing_errors_total",
		"Discarded frames", []string{"reason"}, nil)
	tokensDesc = prometheus.NewDesc("nibe_tokens_total",
		"Tokens offered by the heat pump", []string{"kind"}, nil)
	acksDesc = prometheus.NewDesc("nibe_acks_total",
		"Acknowledgements sent", nil, nil)
	requestsDesc = prometheus.NewDesc("nibe_requests_total",
		"Requests by outcome", []string{"outcome"}, nil)
)

// statsCollector reads the connector statistics on every scrape.
type statsCollector struct {
	snapshot func() nibe.StatisticsSnapshot
}

func (c *statsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- framesDesc
	ch <- framingErrorsDesc
	ch <- tokensDesc
	ch <- acksDesc
	ch <- requestsDesc
}

func (c *statsCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.snapshot()
	counter := func(desc *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(v), labels...)
	}
	counter(framesDesc, s.Frames)
	counter(framingErrorsDesc, s.ChecksumErrors, "checksum")
	counter(framingErrorsDesc, s.OversizeResets, "oversize")
	counter(framingErrorsDesc, s.DecodeErrors, "decode")
	counter(tokensDesc, s.ReadTokens, "read")
	counter(tokensDesc, s.WriteTokens, "write")
	counter(acksDesc, s.Acks)
	counter(requestsDesc, s.RequestsSent, "sent")
	counter(requestsDesc, s.RequestsDropped, "dropped")
	counter(requestsDesc, s.Timeouts, "timeout")
}

package main

import (
	"net/http"

	gethmetrics "github.com/ethereum/go-ethereum/metrics"
	"github.com/ethereum/go-ethereum/metrics/prometheus"
	"github.com/urfave/cli/v2"

	"github.com/ethereum/go-ethereum/log"
)

// setupMetrics starts a Prometheus text-format exporter on --metrics.addr,
// the same go-ethereum/metrics/prometheus collector the teacher wires into
// its own node's debug HTTP surface. A blank address disables the exporter;
// collection itself is always on (see internal/metrics's init).
func setupMetrics(ctx *cli.Context) error {
	addr := ctx.String(metricsAddrFlag.Name)
	if addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", prometheus.Handler(gethmetrics.DefaultRegistry))

	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		log.Info("metrics server listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server stopped", "err", err)
		}
	}()
	return nil
}

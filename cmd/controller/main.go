// controller — routing control-plane server: bootstraps switch
// registration, computes all-pairs shortest-path routing, and pushes
// routing tables on every topology change.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	nethttp "net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/loopnet/routingctl/internal/controllerd"
	"github.com/loopnet/routingctl/internal/logging"
	"github.com/loopnet/routingctl/internal/protolog"
	"github.com/loopnet/routingctl/internal/topology"
)

func main() {
	metricsAddr := flag.String("metrics-addr", "", "address to serve Prometheus metrics on (e.g. :9100); disabled if empty")
	logLevel := flag.String("log-level", "info", "ambient log level: debug, info, warn, error")
	flag.Parse()

	if flag.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "usage: controller [flags] <port> <config>")
		os.Exit(1)
	}
	port := flag.Arg(0)
	configPath := flag.Arg(1)

	logger := logging.Setup(*logLevel, os.Stderr)

	portNum, err := strconv.Atoi(port)
	if err != nil || portNum <= 0 || portNum > 65535 {
		logger.Error("invalid port", "value", port, "error", err)
		os.Exit(1)
	}

	declared, err := topology.Load(configPath)
	if err != nil {
		logger.Error("loading topology config", "path", configPath, "error", err)
		os.Exit(1)
	}

	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: portNum})
	if err != nil {
		logger.Error("binding controller socket", "port", port, "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	protoLog, err := protolog.Open("Controller.log")
	if err != nil {
		logger.Error("opening protocol log", "error", err)
		os.Exit(1)
	}
	defer protoLog.Close()

	if *metricsAddr != "" {
		mux := nethttp.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			if err := nethttp.ListenAndServe(*metricsAddr, mux); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		logger.Info("metrics server started", "addr", *metricsAddr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := controllerd.New(declared, conn, protoLog, logger)

	logger.Info("bootstrapping", "switches", declared.N, "port", port)
	if err := c.Bootstrap(ctx); err != nil {
		logger.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	logger.Info("bootstrap complete, entering steady state")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	}()

	if err := c.Run(ctx); err != nil {
		logger.Error("controller run failed", "error", err)
		os.Exit(1)
	}
	logger.Info("controller stopped")
}

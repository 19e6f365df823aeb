// switchd — routing control-plane switch: registers with the
// controller, exchanges keep-alives with its declared neighbors, and
// reports neighbor liveness via topology updates.
package main

import (
	"context"
	"fmt"
	"net"
	nethttp "net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/loopnet/routingctl/internal/logging"
	"github.com/loopnet/routingctl/internal/protolog"
	"github.com/loopnet/routingctl/internal/swnode"
)

func main() {
	positional, metricsAddr, logLevel, failedNeighbor, err := parseArgs(os.Args[1:])
	if err != nil || len(positional) != 3 {
		fmt.Fprintln(os.Stderr, "usage: switchd <self_id> <controller_host> <controller_port> [-f <failed_neighbor_id>] [--metrics-addr addr] [--log-level level]")
		os.Exit(1)
	}

	logger := logging.Setup(logLevel, os.Stderr)

	selfID, err := strconv.Atoi(positional[0])
	if err != nil {
		logger.Error("invalid self id", "value", positional[0], "error", err)
		os.Exit(1)
	}
	controllerHost := positional[1]
	controllerPort, err := strconv.Atoi(positional[2])
	if err != nil || controllerPort <= 0 || controllerPort > 65535 {
		logger.Error("invalid controller port", "value", positional[2], "error", err)
		os.Exit(1)
	}

	controllerIP := net.ParseIP(controllerHost)
	if controllerIP == nil {
		resolved, err := net.ResolveIPAddr("ip", controllerHost)
		if err != nil {
			logger.Error("resolving controller host", "host", controllerHost, "error", err)
			os.Exit(1)
		}
		controllerIP = resolved.IP
	}
	controllerAddr := &net.UDPAddr{IP: controllerIP, Port: controllerPort}

	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	if err != nil {
		logger.Error("binding switch socket", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	protoLog, err := protolog.Open(fmt.Sprintf("switch%d.log", selfID))
	if err != nil {
		logger.Error("opening protocol log", "error", err)
		os.Exit(1)
	}
	defer protoLog.Close()

	if metricsAddr != "" {
		mux := nethttp.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			if err := nethttp.ListenAndServe(metricsAddr, mux); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		logger.Info("metrics server started", "addr", metricsAddr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sw := swnode.New(selfID, controllerAddr, conn, failedNeighbor, protoLog, logger)

	logger.Info("registering", "self_id", selfID, "controller", controllerAddr.String())
	if err := sw.Register(ctx); err != nil {
		logger.Error("registration failed", "error", err)
		os.Exit(1)
	}
	logger.Info("registration complete, entering steady state")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	}()

	if err := sw.Run(ctx); err != nil {
		logger.Error("switch run failed", "error", err)
		os.Exit(1)
	}
	logger.Info("switch stopped")
}

// parseArgs splits switchd's arguments into the three required
// positionals and the optional flags, which may appear intermixed —
// the reference CLI places -f after the positional arguments, which
// the standard flag package cannot parse directly.
func parseArgs(args []string) (positional []string, metricsAddr, logLevel string, failedNeighbor int, err error) {
	logLevel = "info"
	failedNeighbor = -1

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-f", "--f":
			i++
			if i >= len(args) {
				return nil, "", "", 0, fmt.Errorf("missing value for -f")
			}
			n, convErr := strconv.Atoi(args[i])
			if convErr != nil {
				return nil, "", "", 0, fmt.Errorf("invalid -f value %q: %w", args[i], convErr)
			}
			failedNeighbor = n
		case "--metrics-addr":
			i++
			if i >= len(args) {
				return nil, "", "", 0, fmt.Errorf("missing value for --metrics-addr")
			}
			metricsAddr = args[i]
		case "--log-level":
			i++
			if i >= len(args) {
				return nil, "", "", 0, fmt.Errorf("missing value for --log-level")
			}
			logLevel = args[i]
		default:
			positional = append(positional, args[i])
		}
	}
	return positional, metricsAddr, logLevel, failedNeighbor, nil
}

package controllerd_test

import (
	"context"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/loopnet/routingctl/internal/controllerd"
	"github.com/loopnet/routingctl/internal/protolog"
	"github.com/loopnet/routingctl/internal/topology"
	"github.com/loopnet/routingctl/pkg/routewire"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustListenUDP(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	if err != nil {
		t.Fatalf("ListenUDP: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func loadDeclared(t *testing.T, contents string) *topology.Declared {
	t.Helper()
	path := filepath.Join(t.TempDir(), "topology.cfg")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing test config: %v", err)
	}
	d, err := topology.Load(path)
	if err != nil {
		t.Fatalf("topology.Load: %v", err)
	}
	return d
}

func readTyped(t *testing.T, conn *net.UDPConn, want routewire.MessageType) []byte {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, routewire.MaxDatagramSize)
	n, _, err := conn.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("reading %s: %v", want, err)
	}
	data := append([]byte(nil), buf[:n]...)
	typ, err := routewire.PeekType(data)
	if err != nil {
		t.Fatalf("peeking type: %v", err)
	}
	if typ != want {
		t.Fatalf("got message type %s, want %s", typ, want)
	}
	return data
}

// TestBootstrapRegistersSwitchesAndPushesInitialRouting drives a full
// controller bootstrap against two fake switch sockets over loopback.
func TestBootstrapRegistersSwitchesAndPushesInitialRouting(t *testing.T) {
	declared := loadDeclared(t, "2\n0 1 5\n")
	controllerConn := mustListenUDP(t)
	controllerAddr := controllerConn.LocalAddr().(*net.UDPAddr)

	logPath := filepath.Join(t.TempDir(), "controller.log")
	logw, err := protolog.Open(logPath)
	if err != nil {
		t.Fatalf("protolog.Open: %v", err)
	}
	defer logw.Close()

	c := controllerd.New(declared, controllerConn, logw, testLogger())

	sw0 := mustListenUDP(t)
	sw1 := mustListenUDP(t)

	req0 := routewire.EncodeRegisterRequest(0, int32(sw0.LocalAddr().(*net.UDPAddr).Port))
	req1 := routewire.EncodeRegisterRequest(1, int32(sw1.LocalAddr().(*net.UDPAddr).Port))
	if _, err := sw0.WriteToUDP(req0, controllerAddr); err != nil {
		t.Fatalf("sw0 register send: %v", err)
	}
	if _, err := sw1.WriteToUDP(req1, controllerAddr); err != nil {
		t.Fatalf("sw1 register send: %v", err)
	}

	bootErr := make(chan error, 1)
	go func() { bootErr <- c.Bootstrap(context.Background()) }()

	resp0 := readTyped(t, sw0, routewire.RegisterResponse)
	neighbors0, err := routewire.DecodeRegisterResponse(resp0)
	if err != nil || len(neighbors0) != 1 || neighbors0[0].ID != 1 || !neighbors0[0].Alive {
		t.Fatalf("sw0 register response = %+v, err=%v", neighbors0, err)
	}

	resp1 := readTyped(t, sw1, routewire.RegisterResponse)
	neighbors1, err := routewire.DecodeRegisterResponse(resp1)
	if err != nil || len(neighbors1) != 1 || neighbors1[0].ID != 0 {
		t.Fatalf("sw1 register response = %+v, err=%v", neighbors1, err)
	}

	select {
	case err := <-bootErr:
		if err != nil {
			t.Fatalf("Bootstrap: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("bootstrap did not complete in time")
	}

	routeData0 := readTyped(t, sw0, routewire.RoutingUpdate)
	routes0, err := routewire.DecodeRoutingUpdate(routeData0)
	if err != nil || len(routes0) != 2 {
		t.Fatalf("sw0 routing table = %+v, err=%v", routes0, err)
	}
	for _, r := range routes0 {
		if r.Dest == 0 && (r.NextHop != 0 || r.Distance != 0) {
			t.Errorf("sw0 self route = %+v", r)
		}
		if r.Dest == 1 && (r.NextHop != 1 || r.Distance != 5) {
			t.Errorf("sw0 route to 1 = %+v, want next_hop=1 distance=5", r)
		}
	}

	logged, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}
	if !strings.Contains(string(logged), "Register Request 0") || !strings.Contains(string(logged), "Routing Update") {
		t.Errorf("controller log missing expected entries: %q", logged)
	}
}

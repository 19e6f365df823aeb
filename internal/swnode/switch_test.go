package swnode_test

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
	"github.com/loopnet/routingctl/internal/swnode"
	"github.com/loopnet/routingctl/internal/topology"
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

func openLog(t *testing.T, name string) (*protolog.Writer, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	w, err := protolog.Open(path)
	if err != nil {
		t.Fatalf("protolog.Open: %v", err)
	}
	t.Cleanup(func() { w.Close() })
	return w, path
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

// TestRegisterCompletesAgainstRealController drives a real Controller and
// two real Switches over loopback through registration and the initial
// routing push.
func TestRegisterCompletesAgainstRealController(t *testing.T) {
	declared := loadDeclared(t, "2\n0 1 3\n")

	controllerConn := mustListenUDP(t)
	controllerAddr := controllerConn.LocalAddr().(*net.UDPAddr)
	controllerLog, _ := openLog(t, "controller.log")
	c := controllerd.New(declared, controllerConn, controllerLog, testLogger())

	sw0Conn := mustListenUDP(t)
	sw1Conn := mustListenUDP(t)
	sw0Log, sw0LogPath := openLog(t, "switch0.log")
	sw1Log, _ := openLog(t, "switch1.log")

	sw0 := swnode.New(0, controllerAddr, sw0Conn, -1, sw0Log, testLogger())
	sw1 := swnode.New(1, controllerAddr, sw1Conn, -1, sw1Log, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	bootErr := make(chan error, 1)
	go func() { bootErr <- c.Bootstrap(ctx) }()

	reg0Err := make(chan error, 1)
	go func() { reg0Err <- sw0.Register(ctx) }()
	reg1Err := make(chan error, 1)
	go func() { reg1Err <- sw1.Register(ctx) }()

	for _, ch := range []chan error{bootErr, reg0Err, reg1Err} {
		select {
		case err := <-ch:
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		case <-time.After(3 * time.Second):
			t.Fatal("timed out waiting for bootstrap/registration")
		}
	}

	logged, err := os.ReadFile(sw0LogPath)
	if err != nil {
		t.Fatalf("reading switch0 log: %v", err)
	}
	for _, want := range []string{"Register Request Sent", "Register Response Received", "Routing Update", "0,1:1", "Routing Complete"} {
		if !strings.Contains(string(logged), want) {
			t.Errorf("switch0 log missing %q; got %q", want, logged)
		}
	}
}

// Package swnode implements the Switch driver: registration, the
// steady-state receive loop and keep-alive/topology-push timer loop, and
// the local failed-neighbor simulation (spec §4.4).
package swnode

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/loopnet/routingctl/internal/liveness"
	"github.com/loopnet/routingctl/internal/metrics"
	"github.com/loopnet/routingctl/internal/protolog"
	"github.com/loopnet/routingctl/pkg/routewire"
)

// UpdateDelay and Timeout mirror controllerd's constants: the same
// fixed detection cadence applies in both directions (spec §6).
const (
	UpdateDelay = 2 * time.Second
	Timeout     = 3 * UpdateDelay
)

type neighborRecord struct {
	host string
	port int
}

// Switch holds all mutable Switch state behind a single coarse-grained
// mutex (spec §5).
type Switch struct {
	selfID         int
	controllerAddr *net.UDPAddr
	conn           *net.UDPConn
	log            *protolog.Writer
	logger         *slog.Logger

	// failedNeighbor simulates a dead link to one declared neighbor: this
	// switch never sends to it and drops everything received from it, so
	// the ordinary liveness timeout takes care of the rest (-f flag).
	failedNeighbor int

	mu          sync.Mutex
	neighbors   map[int]neighborRecord
	neighborIDs []int
	tracker     *liveness.Tracker
	reported    map[int]bool
}

// New constructs a Switch over an already-bound UDP socket. failedNeighbor
// is -1 when no -f simulation is requested.
func New(selfID int, controllerAddr *net.UDPAddr, conn *net.UDPConn, failedNeighbor int, log *protolog.Writer, logger *slog.Logger) *Switch {
	return &Switch{
		selfID:         selfID,
		controllerAddr: controllerAddr,
		conn:           conn,
		log:            log,
		logger:         logger,
		failedNeighbor: failedNeighbor,
	}
}

// Register sends REGISTER_REQUEST, blocks for REGISTER_RESPONSE, then
// blocks for one more datagram and logs it if it is a ROUTING_UPDATE;
// any other type there is ignored and Register still succeeds.
func (s *Switch) Register(ctx context.Context) error {
	localPort := s.conn.LocalAddr().(*net.UDPAddr).Port

	req := routewire.EncodeRegisterRequest(int32(s.selfID), int32(localPort))
	if _, err := s.conn.WriteToUDP(req, s.controllerAddr); err != nil {
		return fmt.Errorf("swnode: sending register request: %w", err)
	}
	s.log.RegisterRequestSent()
	metrics.DatagramsSent.WithLabelValues(routewire.RegisterRequest.String()).Inc()

	// Registration is a one-shot handshake, not a tolerant steady-state
	// loop: whatever arrives first is taken as the answer. Anything other
	// than REGISTER_RESPONSE here is a RegistrationFailure (spec §7) and
	// the caller exits 1, matching original_source/switch.py's
	// register_with_controller (a single recvfrom, no retry).
	buf := make([]byte, routewire.MaxDatagramSize)
	n, _, err := s.conn.ReadFromUDP(buf)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("swnode: awaiting register response: %w", err)
	}
	data := append([]byte(nil), buf[:n]...)
	typ, err := routewire.PeekType(data)
	if err != nil || typ != routewire.RegisterResponse {
		return fmt.Errorf("swnode: registration failed: controller did not send REGISTER_RESPONSE")
	}
	neighbors, err := routewire.DecodeRegisterResponse(data)
	if err != nil {
		return fmt.Errorf("swnode: registration failed: malformed REGISTER_RESPONSE: %w", err)
	}

	s.mu.Lock()
	s.neighbors = make(map[int]neighborRecord, len(neighbors))
	s.neighborIDs = make([]int, 0, len(neighbors))
	s.reported = make(map[int]bool, len(neighbors))
	for _, nb := range neighbors {
		id := int(nb.ID)
		s.neighbors[id] = neighborRecord{host: nb.Host, port: int(nb.Port)}
		s.neighborIDs = append(s.neighborIDs, id)
		s.reported[id] = true
	}
	sort.Ints(s.neighborIDs)
	s.tracker = liveness.New(Timeout, s.neighborIDs, s.logger)
	s.mu.Unlock()

	s.log.RegisterResponseReceived()

	n, _, err = s.conn.ReadFromUDP(buf)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("swnode: awaiting initial routing update: %w", err)
	}
	data = append([]byte(nil), buf[:n]...)
	typ, err = routewire.PeekType(data)
	if err != nil || typ != routewire.RoutingUpdate {
		// The original implementation only logs a routing update if the
		// very next datagram happens to be one; anything else here is
		// silently skipped (it is not part of the registration contract
		// that RegistrationFailure covers).
		return nil
	}
	s.handleRoutingUpdate(data)
	return nil
}

// Run starts the steady-state receive loop and the keep-alive/topology
// timer loop, returning when either fails or ctx is canceled.
func (s *Switch) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.receiveLoop(gctx) })
	g.Go(func() error { return s.timerLoop(gctx) })
	go func() {
		<-gctx.Done()
		s.conn.Close()
	}()
	return g.Wait()
}

func (s *Switch) receiveLoop(ctx context.Context) error {
	buf := make([]byte, routewire.MaxDatagramSize)
	for {
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("swnode: receive: %w", err)
		}
		data := append([]byte(nil), buf[:n]...)
		s.handleDatagram(data, addr)
	}
}

func (s *Switch) handleDatagram(data []byte, addr *net.UDPAddr) {
	typ, err := routewire.PeekType(data)
	if err != nil {
		metrics.DecodeErrors.Inc()
		return
	}
	metrics.DatagramsReceived.WithLabelValues(typ.String()).Inc()

	switch typ {
	case routewire.KeepAlive:
		s.handleKeepAlive(data, addr)
	case routewire.RoutingUpdate:
		s.mu.Lock()
		s.handleRoutingUpdate(data)
		s.mu.Unlock()
	default:
		// A switch never receives REGISTER_RESPONSE/TOPOLOGY_UPDATE
		// outside of Register/its own sends; ignored.
	}
}

func (s *Switch) handleKeepAlive(data []byte, addr *net.UDPAddr) {
	neighborID, err := routewire.DecodeKeepAlive(data)
	if err != nil {
		metrics.DecodeErrors.Inc()
		return
	}
	id := int(neighborID)
	if id == s.failedNeighbor {
		return // simulated dead link: drop as if it never arrived
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, known := s.neighbors[id]; !known {
		return
	}

	recovered := s.tracker.Heard(id)
	wasReportedDead := !s.reported[id]
	s.reported[id] = true
	if recovered || wasReportedDead {
		// The neighbor may have restarted on a new ephemeral port; track
		// it from the datagram source, same as original_source/switch.py's
		// neighbor_alive handling.
		s.neighbors[id] = neighborRecord{host: addr.IP.String(), port: addr.Port}
		s.log.NeighborAlive(id)
		metrics.NeighborLivenessTransitions.WithLabelValues("alive").Inc()
		s.sendTopologyUpdateLocked()
	}
}

// handleRoutingUpdate decodes and logs a ROUTING_UPDATE. Returns whether
// a message of that type was actually consumed. Caller must hold s.mu
// when called outside of Register. The decoded table itself is not kept:
// this system never forwards data-plane traffic (spec Non-goals), so a
// switch's only use for its routing table is the log line.
func (s *Switch) handleRoutingUpdate(data []byte) bool {
	routes, err := routewire.DecodeRoutingUpdate(data)
	if err != nil {
		metrics.DecodeErrors.Inc()
		return false
	}

	rows := make([]protolog.SwitchRoutingRow, len(routes))
	for i, r := range routes {
		rows[i] = protolog.SwitchRoutingRow{Src: int(r.Src), Dest: int(r.Dest), NextHop: int(r.NextHop)}
	}
	s.log.SwitchRoutingUpdate(rows)
	return true
}

func (s *Switch) timerLoop(ctx context.Context) error {
	ticker := time.NewTicker(UpdateDelay)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.mu.Lock()
			deadIDs := s.tracker.CheckTimeouts()
			for _, id := range deadIDs {
				s.reported[id] = false
				s.log.NeighborDead(id)
				metrics.NeighborLivenessTransitions.WithLabelValues("dead").Inc()
			}
			s.sendKeepAlivesLocked()
			s.sendTopologyUpdateLocked()
			s.mu.Unlock()
		}
	}
}

func (s *Switch) sendKeepAlivesLocked() {
	// Only neighbors we currently consider alive get a keep-alive; a
	// neighbor we've marked dead stays dead until it re-registers or we
	// hear from it directly (spec §4.4 step 2).
	msg := routewire.EncodeKeepAlive(int32(s.selfID))
	for _, id := range s.neighborIDs {
		if id == s.failedNeighbor || !s.tracker.Alive(id) {
			continue
		}
		rec := s.neighbors[id]
		addr := &net.UDPAddr{IP: net.ParseIP(rec.host), Port: rec.port}
		if _, err := s.conn.WriteToUDP(msg, addr); err != nil {
			s.logger.Error("sending keep-alive", "neighbor_id", id, "error", err)
			continue
		}
		metrics.DatagramsSent.WithLabelValues(routewire.KeepAlive.String()).Inc()
	}
}

func (s *Switch) sendTopologyUpdateLocked() {
	neighbors := make([]routewire.TopologyNeighbor, len(s.neighborIDs))
	for i, id := range s.neighborIDs {
		neighbors[i] = routewire.TopologyNeighbor{ID: int32(id), Alive: s.reported[id]}
	}
	data, err := routewire.EncodeTopologyUpdate(int32(s.selfID), neighbors)
	if err != nil {
		s.logger.Error("encoding topology update", "error", err)
		return
	}
	if _, err := s.conn.WriteToUDP(data, s.controllerAddr); err != nil {
		s.logger.Error("sending topology update", "error", err)
		return
	}
	metrics.DatagramsSent.WithLabelValues(routewire.TopologyUpdate.String()).Inc()
}

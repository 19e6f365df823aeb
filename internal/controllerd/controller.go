// Package controllerd implements the Controller driver: bootstrap
// registration, the steady-state receive loop and timeout loop, and the
// recompute-and-broadcast step (spec §4.3).
package controllerd

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/loopnet/routingctl/internal/liveness"
	"github.com/loopnet/routingctl/internal/metrics"
	"github.com/loopnet/routingctl/internal/protolog"
	"github.com/loopnet/routingctl/internal/routing"
	"github.com/loopnet/routingctl/internal/topology"
	"github.com/loopnet/routingctl/pkg/routewire"
)

// UpdateDelay and Timeout are the spec's fixed liveness-detection
// constants (§6).
const (
	UpdateDelay = 2 * time.Second
	Timeout     = 3 * UpdateDelay
)

type switchRecord struct {
	host string
	port int
}

// Controller holds all mutable Controller state behind a single
// coarse-grained mutex, per the concurrency model in spec §5.
type Controller struct {
	declared *topology.Declared
	conn     *net.UDPConn
	log      *protolog.Writer
	logger   *slog.Logger

	mu       sync.Mutex
	switches map[int]switchRecord
	tracker  *liveness.Tracker
	reported map[int]map[int]bool
	cache    routing.Cache
}

// New constructs a Controller over an already-bound UDP socket and an
// already-loaded declared topology.
func New(declared *topology.Declared, conn *net.UDPConn, log *protolog.Writer, logger *slog.Logger) *Controller {
	return &Controller{
		declared: declared,
		conn:     conn,
		log:      log,
		logger:   logger,
		switches: make(map[int]switchRecord, declared.N),
		reported: make(map[int]map[int]bool, declared.N),
	}
}

// Bootstrap blocks until all N switches have registered, then sends each
// its REGISTER_RESPONSE and the initial routing tables.
func (c *Controller) Bootstrap(ctx context.Context) error {
	buf := make([]byte, routewire.MaxDatagramSize)
	seen := make(map[int]bool, c.declared.N)

	for len(seen) < c.declared.N {
		n, addr, err := c.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("controllerd: bootstrap read: %w", err)
		}
		data := append([]byte(nil), buf[:n]...)

		typ, err := routewire.PeekType(data)
		if err != nil || typ != routewire.RegisterRequest {
			continue
		}
		switchID, port, err := routewire.DecodeRegisterRequest(data)
		if err != nil {
			metrics.DecodeErrors.Inc()
			continue
		}
		id := int(switchID)
		if id < 0 || id >= c.declared.N {
			continue
		}

		c.switches[id] = switchRecord{host: addr.IP.String(), port: int(port)}
		c.log.RegisterRequest(id)
		metrics.RegisterRequestsReceived.WithLabelValues(strconv.Itoa(id)).Inc()
		seen[id] = true
	}

	ids := make([]int, c.declared.N)
	for i := range ids {
		ids[i] = i
	}
	c.tracker = liveness.New(Timeout, ids, c.logger)
	for _, id := range ids {
		c.reported[id] = allTrue(c.declared.Neighbors(id))
	}

	for _, id := range ids {
		if err := c.sendRegisterResponse(id); err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.recomputeAndBroadcastLocked(nil)
	metrics.SwitchesAlive.Set(float64(len(c.tracker.AliveIDs())))
	return nil
}

// Run starts the steady-state receive loop and timeout loop, returning
// when either fails or ctx is canceled.
func (c *Controller) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.receiveLoop(gctx) })
	g.Go(func() error { return c.timeoutLoop(gctx) })
	go func() {
		<-gctx.Done()
		c.conn.Close()
	}()
	return g.Wait()
}

func (c *Controller) receiveLoop(ctx context.Context) error {
	buf := make([]byte, routewire.MaxDatagramSize)
	for {
		n, addr, err := c.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("controllerd: receive: %w", err)
		}
		data := append([]byte(nil), buf[:n]...)
		c.handleDatagram(data, addr)
	}
}

func (c *Controller) handleDatagram(data []byte, addr *net.UDPAddr) {
	typ, err := routewire.PeekType(data)
	if err != nil {
		metrics.DecodeErrors.Inc()
		return
	}
	metrics.DatagramsReceived.WithLabelValues(typ.String()).Inc()

	c.mu.Lock()
	defer c.mu.Unlock()

	switch typ {
	case routewire.TopologyUpdate:
		c.handleTopologyUpdateLocked(data, addr)
	case routewire.RegisterRequest:
		c.handleRegisterRequestLocked(data, addr)
	default:
		// Any other message kind arriving at the controller is not part
		// of the protocol in this direction; ignored per the
		// UnknownSender policy (spec §7).
	}
}

func (c *Controller) handleTopologyUpdateLocked(data []byte, addr *net.UDPAddr) {
	switchID, neighbors, err := routewire.DecodeTopologyUpdate(data)
	if err != nil {
		metrics.DecodeErrors.Inc()
		return
	}
	id := int(switchID)
	if id < 0 || id >= c.declared.N {
		return
	}

	c.switches[id] = switchRecord{host: addr.IP.String(), port: addr.Port}

	if recovered := c.tracker.Heard(id); recovered {
		c.log.SwitchAlive(id)
		metrics.SwitchLivenessTransitions.WithLabelValues("alive").Inc()
	}

	prevVec := c.reported[id]
	newVec := make(map[int]bool, len(neighbors))
	for _, nb := range neighbors {
		nid := int(nb.ID)
		newVec[nid] = nb.Alive
		if prevVec != nil && prevVec[nid] && !nb.Alive {
			c.log.LinkDead(id, nid)
		}
	}
	c.reported[id] = newVec

	c.recomputeAndBroadcastLocked(nil)
}

func (c *Controller) handleRegisterRequestLocked(data []byte, addr *net.UDPAddr) {
	switchID, port, err := routewire.DecodeRegisterRequest(data)
	if err != nil {
		metrics.DecodeErrors.Inc()
		return
	}
	id := int(switchID)
	if id < 0 || id >= c.declared.N {
		return
	}

	c.switches[id] = switchRecord{host: addr.IP.String(), port: int(port)}
	c.log.RegisterRequest(id)
	metrics.RegisterRequestsReceived.WithLabelValues(strconv.Itoa(id)).Inc()

	if err := c.sendRegisterResponse(id); err != nil {
		c.logger.Error("sending register response", "switch_id", id, "error", err)
		return
	}

	c.reported[id] = allTrue(c.declared.Neighbors(id))

	wasDead := !c.tracker.Alive(id)
	c.tracker.Reset(id)
	if wasDead {
		c.log.SwitchAlive(id)
		metrics.SwitchLivenessTransitions.WithLabelValues("alive").Inc()
	}

	// Re-registration always gets a direct unicast of its own table, in
	// addition to whatever the general broadcast below does (spec §9
	// Design Notes / Open Question: intentional duplicate delivery).
	c.recomputeAndBroadcastLocked(&id)
}

func (c *Controller) sendRegisterResponse(id int) error {
	declaredNeighbors := c.declared.Neighbors(id)
	neighbors := make([]routewire.NeighborEntry, 0, len(declaredNeighbors))
	for _, nb := range declaredNeighbors {
		rec := c.switches[nb]
		neighbors = append(neighbors, routewire.NeighborEntry{
			ID:    int32(nb),
			Alive: true,
			Port:  int32(rec.port),
			Host:  rec.host,
		})
	}

	data, err := routewire.EncodeRegisterResponse(neighbors)
	if err != nil {
		return fmt.Errorf("controllerd: encoding REGISTER_RESPONSE for switch %d: %w", id, err)
	}
	if err := c.sendTo(id, data); err != nil {
		return err
	}
	metrics.DatagramsSent.WithLabelValues(routewire.RegisterResponse.String()).Inc()

	c.log.RegisterResponse(id)
	metrics.RegisterResponsesSent.WithLabelValues(strconv.Itoa(id)).Inc()
	return nil
}

// recomputeAndBroadcastLocked derives the effective topology, asks the
// routing cache to update, and on change logs + broadcasts the new
// tables. If extraUnicast names a switch id, that switch additionally
// receives its own table directly regardless of whether the cache
// changed (spec §4.3 re-registration path). Caller must hold c.mu.
func (c *Controller) recomputeAndBroadcastLocked(extraUnicast *int) {
	alive := make(map[int]bool, c.declared.N)
	for i := 0; i < c.declared.N; i++ {
		alive[i] = c.tracker.Alive(i)
	}

	eff := topology.DeriveEffective(c.declared, alive, c.reported)
	tables, changed := c.cache.Update(eff, c.declared.N)
	metrics.RoutingRecomputes.WithLabelValues(strconv.FormatBool(changed)).Inc()

	if changed {
		var rows []protolog.ControllerRoutingRow
		for id := 0; id < c.declared.N; id++ {
			if !alive[id] {
				continue
			}
			for _, r := range tables[id] {
				rows = append(rows, protolog.ControllerRoutingRow{
					Src: r.Src, Dest: r.Dest, NextHop: r.NextHop, Distance: r.Distance,
				})
			}
		}
		c.log.ControllerRoutingUpdate(rows)

		for id := 0; id < c.declared.N; id++ {
			if alive[id] {
				c.sendRoutingTable(id, tables[id])
			}
		}
	}

	if extraUnicast != nil && alive[*extraUnicast] {
		c.sendRoutingTable(*extraUnicast, tables[*extraUnicast])
	}
}

func (c *Controller) sendRoutingTable(id int, table []routing.Route) {
	routes := make([]routewire.RouteEntry, len(table))
	for i, r := range table {
		routes[i] = routewire.RouteEntry{
			Src: int32(r.Src), Dest: int32(r.Dest), NextHop: int32(r.NextHop), Distance: int32(r.Distance),
		}
	}
	data, err := routewire.EncodeRoutingUpdate(routes)
	if err != nil {
		c.logger.Error("encoding routing update", "switch_id", id, "error", err)
		return
	}
	if err := c.sendTo(id, data); err != nil {
		c.logger.Error("sending routing update", "switch_id", id, "error", err)
		return
	}
	metrics.RoutingTablesSent.WithLabelValues(strconv.Itoa(id)).Inc()
	metrics.DatagramsSent.WithLabelValues(routewire.RoutingUpdate.String()).Inc()
}

func (c *Controller) timeoutLoop(ctx context.Context) error {
	ticker := time.NewTicker(UpdateDelay)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.mu.Lock()
			deadIDs := c.tracker.CheckTimeouts()
			for _, id := range deadIDs {
				c.log.SwitchDead(id)
				metrics.SwitchLivenessTransitions.WithLabelValues("dead").Inc()
			}
			if len(deadIDs) > 0 {
				c.recomputeAndBroadcastLocked(nil)
			}
			metrics.SwitchesAlive.Set(float64(len(c.tracker.AliveIDs())))
			c.mu.Unlock()
		}
	}
}

func (c *Controller) sendTo(id int, data []byte) error {
	rec, ok := c.switches[id]
	if !ok {
		return fmt.Errorf("controllerd: no registration recorded for switch %d", id)
	}
	addr := &net.UDPAddr{IP: net.ParseIP(rec.host), Port: rec.port}
	if _, err := c.conn.WriteToUDP(data, addr); err != nil {
		return fmt.Errorf("controllerd: sending to switch %d: %w", id, err)
	}
	return nil
}

func allTrue(ids []int) map[int]bool {
	m := make(map[int]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}

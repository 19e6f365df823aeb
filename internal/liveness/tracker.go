// Package liveness implements a generic per-peer alive/dead tracker with
// timeout detection, used by both the Controller (tracking switches) and
// the Switch (tracking neighbors). Generalizes the single-peer state
// machine pattern the teacher uses for its HA failover FSM to N peers
// keyed by integer id.
package liveness

import (
	"log/slog"
	"sort"
	"time"
)

// PeerState holds one tracked peer's liveness bookkeeping.
type PeerState struct {
	Alive     bool
	LastHeard time.Time
}

// Tracker holds per-id liveness state under a caller-supplied lock; it
// is not itself concurrency-safe, matching the single-coarse-grained-
// mutex concurrency model the driver packages implement (spec §5) — the
// Controller/Switch drivers guard all calls with their own mutex.
type Tracker struct {
	timeout time.Duration
	peers   map[int]*PeerState
	logger  *slog.Logger
}

// New creates a tracker that considers a peer dead after `timeout` of
// silence. Seeds every id in ids as alive with LastHeard = now.
func New(timeout time.Duration, ids []int, logger *slog.Logger) *Tracker {
	t := &Tracker{
		timeout: timeout,
		peers:   make(map[int]*PeerState, len(ids)),
		logger:  logger,
	}
	now := time.Now()
	for _, id := range ids {
		t.peers[id] = &PeerState{Alive: true, LastHeard: now}
	}
	return t
}

// Reset reseeds id as alive with LastHeard = now, adding it if absent.
// Used on (re-)registration to reinitialize a peer's liveness record.
func (t *Tracker) Reset(id int) {
	t.peers[id] = &PeerState{Alive: true, LastHeard: time.Now()}
}

// Alive reports whether id is currently tracked as alive. Unknown ids
// report false.
func (t *Tracker) Alive(id int) bool {
	p, ok := t.peers[id]
	return ok && p.Alive
}

// Heard records a signal from id at the current time. It returns true
// if the peer transitioned from dead to alive (a recovery), in which
// case the caller is responsible for logging the appropriate "Alive"
// event and, for a Switch's own neighbor tracker, pushing an immediate
// topology update per spec §4.4.
func (t *Tracker) Heard(id int) (recovered bool) {
	p, ok := t.peers[id]
	if !ok {
		p = &PeerState{}
		t.peers[id] = p
	}
	wasDead := !p.Alive
	p.LastHeard = time.Now()
	if wasDead {
		p.Alive = true
		if t.logger != nil {
			t.logger.Debug("peer liveness recovered", "id", id)
		}
	}
	return wasDead
}

// CheckTimeouts walks every alive peer and flips any whose LastHeard is
// older than the timeout to dead, returning the ids that transitioned in
// ascending order. Called once per timer tick (spec §4.3, §4.4). Sorted
// so that a tick killing several peers at once logs them in a
// deterministic order, matching the reference implementation's
// insertion-ordered-dict iteration.
func (t *Tracker) CheckTimeouts() []int {
	var dead []int
	now := time.Now()
	for id, p := range t.peers {
		if p.Alive && now.Sub(p.LastHeard) >= t.timeout {
			p.Alive = false
			dead = append(dead, id)
			if t.logger != nil {
				t.logger.Debug("peer liveness timeout", "id", id, "timeout", t.timeout.String())
			}
		}
	}
	sort.Ints(dead)
	return dead
}

// AliveIDs returns the ids currently tracked as alive, in no particular
// order.
func (t *Tracker) AliveIDs() []int {
	var ids []int
	for id, p := range t.peers {
		if p.Alive {
			ids = append(ids, id)
		}
	}
	return ids
}

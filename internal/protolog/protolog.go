// Package protolog writes the externally observable Controller.log and
// switch<id>.log files (spec §6). This is a wire-format contract, not a
// debug log: the blank-line separator, timestamp format, and event line
// text must match the reference implementation exactly.
package protolog

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// Writer appends events to a single log file. One Writer per process,
// matching the "log file is append-only and written only from the
// process that owns it" policy in spec §5.
type Writer struct {
	mu   sync.Mutex
	file *os.File
}

// Open creates (or appends to) the log file at path.
func Open(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("protolog: opening %s: %w", path, err)
	}
	return &Writer{file: f}, nil
}

// Close closes the underlying log file.
func (w *Writer) Close() error {
	return w.file.Close()
}

// write prepends a blank-line separator, a wall-clock time-of-day
// timestamp line, then the event lines, unconditionally — even for the
// very first entry in a fresh file, matching
// original_source/controller.py & switch.py's write_to_log.
func (w *Writer) write(lines []string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var sb strings.Builder
	sb.WriteString("\n\n")
	sb.WriteString(timestamp())
	sb.WriteString("\n")
	for _, l := range lines {
		sb.WriteString(l)
		sb.WriteString("\n")
	}
	w.file.WriteString(sb.String())
}

func timestamp() string {
	return time.Now().Format("15:04:05.000000")
}

// --- Controller events ---

// RegisterRequest logs "Register Request <id>".
func (w *Writer) RegisterRequest(switchID int) {
	w.write([]string{fmt.Sprintf("Register Request %d", switchID)})
}

// RegisterResponse logs "Register Response <id>".
func (w *Writer) RegisterResponse(switchID int) {
	w.write([]string{fmt.Sprintf("Register Response %d", switchID)})
}

// ControllerRoutingRow is one row for the Controller's routing-update log,
// in the form "<src>,<dest>:<next_hop>,<distance>".
type ControllerRoutingRow struct {
	Src, Dest, NextHop, Distance int
}

// ControllerRoutingUpdate logs the full Controller routing update block.
func (w *Writer) ControllerRoutingUpdate(rows []ControllerRoutingRow) {
	lines := make([]string, 0, len(rows)+2)
	lines = append(lines, "Routing Update")
	for _, r := range rows {
		lines = append(lines, fmt.Sprintf("%d,%d:%d,%d", r.Src, r.Dest, r.NextHop, r.Distance))
	}
	lines = append(lines, "Routing Complete")
	w.write(lines)
}

// LinkDead logs "Link Dead <a>,<b>".
func (w *Writer) LinkDead(a, b int) {
	w.write([]string{fmt.Sprintf("Link Dead %d,%d", a, b)})
}

// SwitchDead logs "Switch Dead <id>".
func (w *Writer) SwitchDead(switchID int) {
	w.write([]string{fmt.Sprintf("Switch Dead %d", switchID)})
}

// SwitchAlive logs "Switch Alive <id>".
func (w *Writer) SwitchAlive(switchID int) {
	w.write([]string{fmt.Sprintf("Switch Alive %d", switchID)})
}

// --- Switch events ---

// RegisterRequestSent logs "Register Request Sent".
func (w *Writer) RegisterRequestSent() {
	w.write([]string{"Register Request Sent"})
}

// RegisterResponseReceived logs "Register Response Received".
func (w *Writer) RegisterResponseReceived() {
	w.write([]string{"Register Response Received"})
}

// SwitchRoutingRow is one row for a Switch's routing-update log, in the
// form "<src>,<dest>:<next_hop>" (no distance column).
type SwitchRoutingRow struct {
	Src, Dest, NextHop int
}

// SwitchRoutingUpdate logs the full Switch routing update block.
func (w *Writer) SwitchRoutingUpdate(rows []SwitchRoutingRow) {
	lines := make([]string, 0, len(rows)+2)
	lines = append(lines, "Routing Update")
	for _, r := range rows {
		lines = append(lines, fmt.Sprintf("%d,%d:%d", r.Src, r.Dest, r.NextHop))
	}
	lines = append(lines, "Routing Complete")
	w.write(lines)
}

// NeighborDead logs "Neighbor Dead <id>".
func (w *Writer) NeighborDead(neighborID int) {
	w.write([]string{fmt.Sprintf("Neighbor Dead %d", neighborID)})
}

// NeighborAlive logs "Neighbor Alive <id>".
func (w *Writer) NeighborAlive(neighborID int) {
	w.write([]string{fmt.Sprintf("Neighbor Alive %d", neighborID)})
}

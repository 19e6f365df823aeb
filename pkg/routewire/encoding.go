package routewire

import (
	"encoding/binary"
	"fmt"
)

// NeighborEntry is one neighbor record carried in a REGISTER_RESPONSE.
type NeighborEntry struct {
	ID    int32
	Alive bool
	Port  int32
	Host  string
}

// RouteEntry is one row of a routing table, as carried in a ROUTING_UPDATE.
type RouteEntry struct {
	Src      int32
	Dest     int32
	NextHop  int32
	Distance int32
}

// TopologyNeighbor is one entry of a switch's reported neighbor-alive
// vector, as carried in a TOPOLOGY_UPDATE.
type TopologyNeighbor struct {
	ID    int32
	Alive bool
}

// PeekType returns the message type tag without consuming the datagram.
func PeekType(data []byte) (MessageType, error) {
	if len(data) < 1 {
		return 0, fmt.Errorf("%w: empty datagram", ErrMalformed)
	}
	return MessageType(data[0]), nil
}

// EncodeRegisterRequest serializes a REGISTER_REQUEST: [1B type][4B switch_id][4B port].
func EncodeRegisterRequest(switchID, announcedPort int32) []byte {
	buf := make([]byte, 9)
	buf[0] = byte(RegisterRequest)
	putInt32(buf[1:5], switchID)
	putInt32(buf[5:9], announcedPort)
	return buf
}

// DecodeRegisterRequest parses a REGISTER_REQUEST payload.
func DecodeRegisterRequest(data []byte) (switchID, announcedPort int32, err error) {
	if len(data) < 9 || MessageType(data[0]) != RegisterRequest {
		return 0, 0, fmt.Errorf("%w: short or mistyped REGISTER_REQUEST", ErrMalformed)
	}
	return getInt32(data[1:5]), getInt32(data[5:9]), nil
}

// EncodeRegisterResponse serializes a REGISTER_RESPONSE:
// [1B type][2B count] then count x { 4B id, 1B alive, 4B port, NUL-terminated host }.
func EncodeRegisterResponse(neighbors []NeighborEntry) ([]byte, error) {
	if len(neighbors) > 0xFFFF {
		return nil, fmt.Errorf("routewire: %d neighbors exceeds u16 count", len(neighbors))
	}
	buf := make([]byte, 0, 3+len(neighbors)*10)
	buf = append(buf, byte(RegisterResponse))
	buf = appendUint16(buf, uint16(len(neighbors)))
	for _, n := range neighbors {
		var idb, portb [4]byte
		putInt32(idb[:], n.ID)
		putInt32(portb[:], n.Port)
		buf = append(buf, idb[:]...)
		buf = append(buf, boolByte(n.Alive))
		buf = append(buf, portb[:]...)
		buf = append(buf, []byte(n.Host)...)
		buf = append(buf, 0)
	}
	if len(buf) > MaxDatagramSize {
		return nil, fmt.Errorf("routewire: encoded REGISTER_RESPONSE exceeds max datagram size")
	}
	return buf, nil
}

// DecodeRegisterResponse parses a REGISTER_RESPONSE payload.
func DecodeRegisterResponse(data []byte) ([]NeighborEntry, error) {
	if len(data) < 3 || MessageType(data[0]) != RegisterResponse {
		return nil, fmt.Errorf("%w: short or mistyped REGISTER_RESPONSE", ErrMalformed)
	}
	count := binary.BigEndian.Uint16(data[1:3])
	offset := 3
	neighbors := make([]NeighborEntry, 0, count)
	for i := uint16(0); i < count; i++ {
		if offset+9 > len(data) {
			return nil, fmt.Errorf("%w: truncated neighbor record %d", ErrMalformed, i)
		}
		id := getInt32(data[offset : offset+4])
		alive := data[offset+4] != 0
		port := getInt32(data[offset+5 : offset+9])
		offset += 9

		nul := indexByte(data[offset:], 0)
		if nul < 0 {
			return nil, fmt.Errorf("%w: neighbor %d host missing NUL terminator", ErrMalformed, i)
		}
		host := string(data[offset : offset+nul])
		offset += nul + 1

		neighbors = append(neighbors, NeighborEntry{ID: id, Alive: alive, Port: port, Host: host})
	}
	return neighbors, nil
}

// EncodeRoutingUpdate serializes a ROUTING_UPDATE:
// [1B type][2B count] then count x { 4B src, 4B dest, 4B next_hop, 4B distance }.
func EncodeRoutingUpdate(routes []RouteEntry) ([]byte, error) {
	if len(routes) > 0xFFFF {
		return nil, fmt.Errorf("routewire: %d routes exceeds u16 count", len(routes))
	}
	buf := make([]byte, 0, 3+len(routes)*16)
	buf = append(buf, byte(RoutingUpdate))
	buf = appendUint16(buf, uint16(len(routes)))
	for _, r := range routes {
		buf = appendInt32(buf, r.Src)
		buf = appendInt32(buf, r.Dest)
		buf = appendInt32(buf, r.NextHop)
		buf = appendInt32(buf, r.Distance)
	}
	if len(buf) > MaxDatagramSize {
		return nil, fmt.Errorf("routewire: encoded ROUTING_UPDATE exceeds max datagram size")
	}
	return buf, nil
}

// DecodeRoutingUpdate parses a ROUTING_UPDATE payload.
func DecodeRoutingUpdate(data []byte) ([]RouteEntry, error) {
	if len(data) < 3 || MessageType(data[0]) != RoutingUpdate {
		return nil, fmt.Errorf("%w: short or mistyped ROUTING_UPDATE", ErrMalformed)
	}
	count := binary.BigEndian.Uint16(data[1:3])
	offset := 3
	if offset+int(count)*16 > len(data) {
		return nil, fmt.Errorf("%w: declared route count exceeds datagram size", ErrMalformed)
	}
	routes := make([]RouteEntry, 0, count)
	for i := uint16(0); i < count; i++ {
		routes = append(routes, RouteEntry{
			Src:      getInt32(data[offset : offset+4]),
			Dest:     getInt32(data[offset+4 : offset+8]),
			NextHop:  getInt32(data[offset+8 : offset+12]),
			Distance: getInt32(data[offset+12 : offset+16]),
		})
		offset += 16
	}
	return routes, nil
}

// EncodeKeepAlive serializes a KEEP_ALIVE: [1B type][4B switch_id].
func EncodeKeepAlive(switchID int32) []byte {
	buf := make([]byte, 5)
	buf[0] = byte(KeepAlive)
	putInt32(buf[1:5], switchID)
	return buf
}

// DecodeKeepAlive parses a KEEP_ALIVE payload.
func DecodeKeepAlive(data []byte) (switchID int32, err error) {
	if len(data) < 5 || MessageType(data[0]) != KeepAlive {
		return 0, fmt.Errorf("%w: short or mistyped KEEP_ALIVE", ErrMalformed)
	}
	return getInt32(data[1:5]), nil
}

// EncodeTopologyUpdate serializes a TOPOLOGY_UPDATE:
// [1B type][4B switch_id][2B count] then count x { 4B neighbor_id, 1B alive }.
func EncodeTopologyUpdate(switchID int32, neighbors []TopologyNeighbor) ([]byte, error) {
	if len(neighbors) > 0xFFFF {
		return nil, fmt.Errorf("routewire: %d neighbors exceeds u16 count", len(neighbors))
	}
	buf := make([]byte, 0, 7+len(neighbors)*5)
	buf = append(buf, byte(TopologyUpdate))
	buf = appendInt32(buf, switchID)
	buf = appendUint16(buf, uint16(len(neighbors)))
	for _, n := range neighbors {
		buf = appendInt32(buf, n.ID)
		buf = append(buf, boolByte(n.Alive))
	}
	if len(buf) > MaxDatagramSize {
		return nil, fmt.Errorf("routewire: encoded TOPOLOGY_UPDATE exceeds max datagram size")
	}
	return buf, nil
}

// DecodeTopologyUpdate parses a TOPOLOGY_UPDATE payload.
func DecodeTopologyUpdate(data []byte) (switchID int32, neighbors []TopologyNeighbor, err error) {
	if len(data) < 7 || MessageType(data[0]) != TopologyUpdate {
		return 0, nil, fmt.Errorf("%w: short or mistyped TOPOLOGY_UPDATE", ErrMalformed)
	}
	switchID = getInt32(data[1:5])
	count := binary.BigEndian.Uint16(data[5:7])
	offset := 7
	if offset+int(count)*5 > len(data) {
		return 0, nil, fmt.Errorf("%w: declared neighbor count exceeds datagram size", ErrMalformed)
	}
	neighbors = make([]TopologyNeighbor, 0, count)
	for i := uint16(0); i < count; i++ {
		neighbors = append(neighbors, TopologyNeighbor{
			ID:    getInt32(data[offset : offset+4]),
			Alive: data[offset+4] != 0,
		})
		offset += 5
	}
	return switchID, neighbors, nil
}

// --- shared big-endian helpers, matching pkg/dhcpv4's encoding conventions ---

func putInt32(b []byte, v int32) {
	binary.BigEndian.PutUint32(b, uint32(v))
}

func getInt32(b []byte) int32 {
	return int32(binary.BigEndian.Uint32(b))
}

func appendInt32(buf []byte, v int32) []byte {
	var b [4]byte
	putInt32(b[:], v)
	return append(buf, b[:]...)
}

func appendUint16(buf []byte, v uint16) []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return append(buf, b[:]...)
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

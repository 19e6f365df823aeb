package routewire

import (
	"bytes"
	"errors"
	"testing"
)

func TestRegisterRequestRoundTrip(t *testing.T) {
	tests := []struct {
		switchID, port int32
	}{
		{0, 50000},
		{3, 65535},
		{-1, 0},
	}
	for _, tt := range tests {
		data := EncodeRegisterRequest(tt.switchID, tt.port)
		gotID, gotPort, err := DecodeRegisterRequest(data)
		if err != nil {
			t.Fatalf("DecodeRegisterRequest(%v) error: %v", tt, err)
		}
		if gotID != tt.switchID || gotPort != tt.port {
			t.Errorf("roundtrip(%v) = (%d, %d)", tt, gotID, gotPort)
		}
	}
}

func TestRegisterRequestTruncated(t *testing.T) {
	data := EncodeRegisterRequest(1, 2)
	for n := 0; n < len(data); n++ {
		if _, _, err := DecodeRegisterRequest(data[:n]); !errors.Is(err, ErrMalformed) {
			t.Errorf("DecodeRegisterRequest(truncated to %d) error = %v, want ErrMalformed", n, err)
		}
	}
}

func TestRegisterResponseRoundTrip(t *testing.T) {
	neighbors := []NeighborEntry{
		{ID: 1, Alive: true, Port: 50001, Host: "127.0.0.1"},
		{ID: 2, Alive: false, Port: 50002, Host: "127.0.0.1"},
	}
	data, err := EncodeRegisterResponse(neighbors)
	if err != nil {
		t.Fatalf("EncodeRegisterResponse error: %v", err)
	}
	got, err := DecodeRegisterResponse(data)
	if err != nil {
		t.Fatalf("DecodeRegisterResponse error: %v", err)
	}
	if len(got) != len(neighbors) {
		t.Fatalf("decoded %d neighbors, want %d", len(got), len(neighbors))
	}
	for i, want := range neighbors {
		if got[i] != want {
			t.Errorf("neighbor[%d] = %+v, want %+v", i, got[i], want)
		}
	}
}

func TestRegisterResponseEmpty(t *testing.T) {
	data, err := EncodeRegisterResponse(nil)
	if err != nil {
		t.Fatalf("EncodeRegisterResponse(nil) error: %v", err)
	}
	got, err := DecodeRegisterResponse(data)
	if err != nil {
		t.Fatalf("DecodeRegisterResponse error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d neighbors, want 0", len(got))
	}
}

func TestRegisterResponseMissingTerminator(t *testing.T) {
	data, err := EncodeRegisterResponse([]NeighborEntry{{ID: 1, Alive: true, Port: 1, Host: "x"}})
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}
	// Strip the trailing NUL.
	bad := data[:len(data)-1]
	if _, err := DecodeRegisterResponse(bad); !errors.Is(err, ErrMalformed) {
		t.Errorf("DecodeRegisterResponse(no terminator) error = %v, want ErrMalformed", err)
	}
}

func TestRegisterResponseCountExceedsBudget(t *testing.T) {
	// Claim 5 neighbors but supply none.
	data := []byte{byte(RegisterResponse), 0x00, 0x05}
	if _, err := DecodeRegisterResponse(data); !errors.Is(err, ErrMalformed) {
		t.Errorf("DecodeRegisterResponse(over-budget count) error = %v, want ErrMalformed", err)
	}
}

func TestRoutingUpdateRoundTrip(t *testing.T) {
	routes := []RouteEntry{
		{Src: 0, Dest: 0, NextHop: 0, Distance: 0},
		{Src: 0, Dest: 1, NextHop: -1, Distance: 9999},
	}
	data, err := EncodeRoutingUpdate(routes)
	if err != nil {
		t.Fatalf("EncodeRoutingUpdate error: %v", err)
	}
	got, err := DecodeRoutingUpdate(data)
	if err != nil {
		t.Fatalf("DecodeRoutingUpdate error: %v", err)
	}
	if len(got) != len(routes) {
		t.Fatalf("decoded %d routes, want %d", len(got), len(routes))
	}
	for i, want := range routes {
		if got[i] != want {
			t.Errorf("route[%d] = %+v, want %+v", i, got[i], want)
		}
	}
}

func TestRoutingUpdateCountExceedsBudget(t *testing.T) {
	data := []byte{byte(RoutingUpdate), 0x00, 0x01} // claims 1 route, 0 bytes follow
	if _, err := DecodeRoutingUpdate(data); !errors.Is(err, ErrMalformed) {
		t.Errorf("DecodeRoutingUpdate(over-budget count) error = %v, want ErrMalformed", err)
	}
}

func TestKeepAliveRoundTrip(t *testing.T) {
	for _, id := range []int32{0, 1, 41} {
		data := EncodeKeepAlive(id)
		got, err := DecodeKeepAlive(data)
		if err != nil {
			t.Fatalf("DecodeKeepAlive error: %v", err)
		}
		if got != id {
			t.Errorf("DecodeKeepAlive = %d, want %d", got, id)
		}
	}
}

func TestKeepAliveTruncated(t *testing.T) {
	data := EncodeKeepAlive(3)
	if _, err := DecodeKeepAlive(data[:3]); !errors.Is(err, ErrMalformed) {
		t.Errorf("DecodeKeepAlive(truncated) error = %v, want ErrMalformed", err)
	}
}

func TestTopologyUpdateRoundTrip(t *testing.T) {
	neighbors := []TopologyNeighbor{{ID: 1, Alive: true}, {ID: 2, Alive: false}}
	data, err := EncodeTopologyUpdate(7, neighbors)
	if err != nil {
		t.Fatalf("EncodeTopologyUpdate error: %v", err)
	}
	gotID, got, err := DecodeTopologyUpdate(data)
	if err != nil {
		t.Fatalf("DecodeTopologyUpdate error: %v", err)
	}
	if gotID != 7 {
		t.Errorf("switch id = %d, want 7", gotID)
	}
	if len(got) != len(neighbors) {
		t.Fatalf("decoded %d neighbors, want %d", len(got), len(neighbors))
	}
	for i, want := range neighbors {
		if got[i] != want {
			t.Errorf("neighbor[%d] = %+v, want %+v", i, got[i], want)
		}
	}
}

func TestPeekType(t *testing.T) {
	data := EncodeKeepAlive(1)
	typ, err := PeekType(data)
	if err != nil {
		t.Fatalf("PeekType error: %v", err)
	}
	if typ != KeepAlive {
		t.Errorf("PeekType = %v, want KeepAlive", typ)
	}
	if _, err := PeekType(nil); !errors.Is(err, ErrMalformed) {
		t.Errorf("PeekType(nil) error = %v, want ErrMalformed", err)
	}
}

func TestMessageTypeString(t *testing.T) {
	tests := []struct {
		typ  MessageType
		want string
	}{
		{RegisterRequest, "REGISTER_REQUEST"},
		{RegisterResponse, "REGISTER_RESPONSE"},
		{RoutingUpdate, "ROUTING_UPDATE"},
		{KeepAlive, "KEEP_ALIVE"},
		{TopologyUpdate, "TOPOLOGY_UPDATE"},
		{MessageType(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.typ.String(); got != tt.want {
			t.Errorf("MessageType(%d).String() = %q, want %q", tt.typ, got, tt.want)
		}
	}
}

func TestEncodedBytesExactLayout(t *testing.T) {
	// Cross-check against the struct.pack('!Bii', ...) layout from the
	// reference implementation: type(1) + switch_id(4) + port(4) = 9 bytes.
	data := EncodeRegisterRequest(1, 50010)
	want := []byte{1, 0, 0, 0, 1, 0, 0, 195, 90}
	if !bytes.Equal(data, want) {
		t.Errorf("EncodeRegisterRequest(1, 50010) = %v, want %v", data, want)
	}
}

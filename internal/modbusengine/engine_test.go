package modbusengine

import (
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/wwhai/worksite-bridge/internal/config"
)

// fakeServer serves each accepted connection in its own goroutine, answering Read Discrete
// Inputs requests with a fixed bit pattern, or closes the connection
// immediately if shouldFail is set.
type fakeServer struct {
	ln        net.Listener
	bits      []bool
	shouldFail bool
}

func startFakeServer(t *testing.T, bits []bool) *fakeServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &fakeServer{ln: ln, bits: bits}
	go s.serve()
	return s
}

func (s *fakeServer) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

func (s *fakeServer) handle(conn net.Conn) {
	defer conn.Close()
	if s.shouldFail {
		return
	}
	for {
		header := make([]byte, tcpHeaderLength)
		if _, err := readFull(conn, header); err != nil {
			return
		}
		n, err := bodyLength(header)
		if err != nil || n <= 0 {
			return
		}
		body := make([]byte, n)
		if _, err := readFull(conn, body); err != nil {
			return
		}
		txID := binary.BigEndian.Uint16(header[0:2])
		quantity := binary.BigEndian.Uint16(body[3:5])

		byteCount := (int(quantity) + 7) / 8
		data := make([]byte, byteCount)
		for i := 0; i < int(quantity) && i < len(s.bits); i++ {
			if s.bits[i] {
				data[i/8] |= 1 << uint(i%8)
			}
		}
		pdu := append([]byte{funcCodeReadDiscreteInputs, byte(byteCount)}, data...)
		respHeader := make([]byte, tcpHeaderLength)
		binary.BigEndian.PutUint16(respHeader[0:2], txID)
		binary.BigEndian.PutUint16(respHeader[2:4], protocolIdentifierTCP)
		binary.BigEndian.PutUint16(respHeader[4:6], uint16(len(pdu)+1))
		respHeader[6] = header[6]
		conn.Write(append(respHeader, pdu...))
	}
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (s *fakeServer) addr() string {
	return s.ln.Addr().String()
}

func (s *fakeServer) close() {
	s.ln.Close()
}

func testGroup(addr string) *config.Group {
	host, portStr, _ := net.SplitHostPort(addr)
	var port int
	for _, c := range portStr {
		port = port*10 + int(c-'0')
	}
	return &config.Group{
		Key:       addr + ":1",
		Host:      host,
		Port:      port,
		UnitID:    1,
		MinOffset: 0,
		MaxOffset: 2,
		Sites:     make([]config.Site, 3),
	}
}

func TestEngine_ReadSucceeds(t *testing.T) {
	srv := startFakeServer(t, []bool{true, false, true})
	defer srv.close()

	e := NewEngine(50*time.Millisecond, time.Second, nil)
	group := testGroup(srv.addr())

	result := e.Read(group, time.Now())
	if result.Status != StatusOK {
		t.Fatalf("Status = %v, want StatusOK (message: %s)", result.Status, result.Message)
	}
	if len(result.Inputs) != 3 || !result.Inputs[0] || result.Inputs[1] || !result.Inputs[2] {
		t.Errorf("Inputs = %v, want [true false true]", result.Inputs)
	}
}

func TestEngine_BackoffGatesReconnectAfterFailure(t *testing.T) {
	e := NewEngine(100*time.Millisecond, 50*time.Millisecond, nil)
	group := testGroup("127.0.0.1:1") // nothing listening: connect fails

	now := time.Now()
	first := e.Read(group, now)
	if first.Status != StatusError {
		t.Fatalf("first Status = %v, want StatusError", first.Status)
	}

	second := e.Read(group, now.Add(10*time.Millisecond))
	if second.Status != StatusBackoff {
		t.Fatalf("second Status = %v, want StatusBackoff", second.Status)
	}

	third := e.Read(group, now.Add(200*time.Millisecond))
	if third.Status != StatusError {
		t.Fatalf("third Status = %v, want StatusError (backoff window elapsed)", third.Status)
	}
}

func TestEngine_ReadErrorClosesAndArmsBackoff(t *testing.T) {
	srv := startFakeServer(t, []bool{true, true, true})
	srv.shouldFail = true
	defer srv.close()

	e := NewEngine(time.Second, 50*time.Millisecond, nil)
	group := testGroup(srv.addr())

	now := time.Now()
	result := e.Read(group, now)
	if result.Status != StatusError {
		t.Fatalf("Status = %v, want StatusError", result.Status)
	}

	again := e.Read(group, now.Add(10*time.Millisecond))
	if again.Status != StatusBackoff {
		t.Fatalf("Status = %v, want StatusBackoff (client should be closed, backoff armed)", again.Status)
	}
}

func TestEngine_CloseAll(t *testing.T) {
	srv := startFakeServer(t, []bool{true})
	defer srv.close()

	e := NewEngine(time.Second, time.Second, nil)
	group := testGroup(srv.addr())
	group.MaxOffset = 0
	group.Sites = make([]config.Site, 1)

	result := e.Read(group, time.Now())
	if result.Status != StatusOK {
		t.Fatalf("Status = %v, want StatusOK", result.Status)
	}
	e.CloseAll()

	e.mu.Lock()
	st := e.states[group.Key]
	e.mu.Unlock()
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.client != nil {
		t.Error("client still set after CloseAll")
	}
}

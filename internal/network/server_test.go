package network

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/vskvj3/blockdeque/internal/core"
	"github.com/vskvj3/blockdeque/internal/utils"
)

func TestMain(m *testing.M) {
	utils.NewLogger(filepath.Join(os.TempDir(), "blockdeque-network-test.log"), false)
	os.Exit(m.Run())
}

type recordingFanout struct {
	mu       sync.Mutex
	requests []map[string]interface{}
	err      error
}

func (f *recordingFanout) ReplicateToFollowers(ctx context.Context, request map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, request)
	return f.err
}

func (f *recordingFanout) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.requests))
	for _, r := range f.requests {
		out = append(out, r["command"].(string))
	}
	return out
}

type client struct {
	conn net.Conn
	enc  *msgpack.Encoder
	dec  *msgpack.Decoder
}

func newClient(conn net.Conn) *client {
	return &client{conn: conn, enc: msgpack.NewEncoder(conn), dec: msgpack.NewDecoder(conn)}
}

func (c *client) do(t *testing.T, request map[string]interface{}) map[string]interface{} {
	t.Helper()
	require.NoError(t, c.conn.SetDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, c.enc.Encode(request))
	var response map[string]interface{}
	require.NoError(t, c.dec.Decode(&response))
	return response
}

// pipeServer serves one end of an in-memory connection.
func pipeServer(t *testing.T, fanout Fanout) (*Server, *client) {
	t.Helper()
	s, err := NewServer("0", core.NewCommandHandler(core.NewDatabaseWithBlockSize(4), nil), fanout)
	require.NoError(t, err)

	serverSide, clientSide := net.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.HandleConnection(ctx, serverSide)
	}()
	t.Cleanup(func() {
		clientSide.Close()
		cancel()
		<-done
	})
	return s, newClient(clientSide)
}

func TestNewServerValidation(t *testing.T) {
	_, err := NewServer("6379", nil, nil)
	assert.Error(t, err)
	_, err = NewServer("port", core.NewCommandHandler(core.NewDatabase(), nil), nil)
	assert.Error(t, err)
}

func TestHandleConnectionRequests(t *testing.T) {
	_, c := pipeServer(t, nil)

	resp := c.do(t, map[string]interface{}{"command": "PING"})
	assert.Equal(t, "PONG", resp["message"])

	resp = c.do(t, map[string]interface{}{"command": "RPUSH", "key": "q", "values": []string{"a", "b", "c", "d", "e"}})
	n, err := utils.ToInt(resp["value"])
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	resp = c.do(t, map[string]interface{}{"command": "LRANGE", "key": "q", "start": 1, "stop": -2})
	assert.Equal(t, "OK", resp["status"])
	assert.Equal(t, []interface{}{"b", "c", "d"}, resp["value"])

	resp = c.do(t, map[string]interface{}{"command": "LPOP", "key": "q"})
	assert.Equal(t, "a", resp["value"])

	resp = c.do(t, map[string]interface{}{"command": "LPOP", "key": "missing"})
	assert.Equal(t, "NOT_FOUND", resp["status"])
}

func TestHandleConnectionErrors(t *testing.T) {
	_, c := pipeServer(t, nil)

	resp := c.do(t, map[string]interface{}{"command": "NOPE"})
	assert.Equal(t, "ERROR", resp["status"])
	assert.Contains(t, resp["message"], "Unknown command")

	resp = c.do(t, map[string]interface{}{"command": "LINDEX", "key": "q"})
	assert.Equal(t, "ERROR", resp["status"])

	// The connection stays usable after an error.
	resp = c.do(t, map[string]interface{}{"command": "ECHO", "message": "still here"})
	assert.Equal(t, "still here", resp["message"])
}

func TestHandleConnectionMalformedFrame(t *testing.T) {
	_, c := pipeServer(t, nil)

	require.NoError(t, c.conn.SetDeadline(time.Now().Add(5*time.Second)))
	// A msgpack string where a map is expected.
	frame, err := msgpack.Marshal("not a map")
	require.NoError(t, err)
	_, err = c.conn.Write(frame)
	require.NoError(t, err)

	var response map[string]interface{}
	require.NoError(t, c.dec.Decode(&response))
	assert.Equal(t, "ERROR", response["status"])

	// The server hangs up afterwards.
	assert.Error(t, c.dec.Decode(&response))
}

func TestHandleConnectionReplicatesWrites(t *testing.T) {
	fanout := &recordingFanout{err: errors.New("follower down")}
	_, c := pipeServer(t, fanout)

	c.do(t, map[string]interface{}{"command": "RPUSH", "key": "q", "values": []string{"a"}})
	c.do(t, map[string]interface{}{"command": "LLEN", "key": "q"})
	c.do(t, map[string]interface{}{"command": "LPOP", "key": "q"})
	// Failed writes are not replicated.
	resp := c.do(t, map[string]interface{}{"command": "LSET", "key": "q", "index": 0, "value": "x"})
	assert.Equal(t, "ERROR", resp["status"])

	// A failing follower does not fail the client request.
	assert.Equal(t, []string{"RPUSH", "LPOP"}, fanout.commands())
}

func TestStartServesTCPUntilCancelled(t *testing.T) {
	s, err := NewServer("0", core.NewCommandHandler(core.NewDatabase(), nil), nil)
	require.NoError(t, err)
	addr, err := s.Listen()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Start(ctx) }()

	port := addr.(*net.TCPAddr).Port
	conn, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	require.NoError(t, err)
	c := newClient(conn)

	resp := c.do(t, map[string]interface{}{"command": "RPUSH", "key": "k", "values": []string{"v"}})
	assert.Equal(t, "OK", resp["status"])

	other, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	require.NoError(t, err)
	resp = newClient(other).do(t, map[string]interface{}{"command": "LINDEX", "key": "k", "index": 0})
	assert.Equal(t, "v", resp["value"])

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
	conn.Close()
	other.Close()
}

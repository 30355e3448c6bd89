package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/vskvj3/blockdeque/internal/core"
	"github.com/vskvj3/blockdeque/internal/utils"
)

// Fanout forwards applied write commands to other nodes.
type Fanout interface {
	ReplicateToFollowers(ctx context.Context, request map[string]interface{}) error
}

type Server struct {
	CommandHandler *core.CommandHandler
	Replicator     Fanout
	Port           string

	mu       sync.Mutex
	listener net.Listener
	conns    sync.WaitGroup
}

// NewServer creates a TCP server for handler. replicator may be nil when
// this node has no followers.
func NewServer(port string, handler *core.CommandHandler, replicator Fanout) (*Server, error) {
	if handler == nil || handler.Database == nil {
		return nil, errors.New("database is not initialized")
	}
	if _, err := strconv.Atoi(port); err != nil {
		return nil, fmt.Errorf("invalid port %q: %w", port, err)
	}
	return &Server{CommandHandler: handler, Replicator: replicator, Port: port}, nil
}

// Listen binds the server's port, falling back to a random one when it is
// taken.
func (s *Server) Listen() (net.Addr, error) {
	logger := utils.GetLogger()

	listener, err := net.Listen("tcp", ":"+s.Port)
	if err != nil {
		logger.Warn("Port " + s.Port + " unavailable. Selecting a random port...")
		listener, err = net.Listen("tcp", ":0")
		if err != nil {
			return nil, fmt.Errorf("error starting server: %w", err)
		}
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	logger.Info("Server is listening on " + listener.Addr().String())
	return listener.Addr(), nil
}

// Start accepts client connections until ctx is cancelled, then waits for
// open connections to finish. It calls Listen if that has not happened yet.
func (s *Server) Start(ctx context.Context) error {
	logger := utils.GetLogger()

	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()
	if listener == nil {
		if _, err := s.Listen(); err != nil {
			return err
		}
		s.mu.Lock()
		listener = s.listener
		s.mu.Unlock()
	}

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.conns.Wait()
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				s.conns.Wait()
				return err
			}
			logger.Error("Error accepting connection: " + err.Error())
			continue
		}

		s.conns.Add(1)
		go func() {
			defer s.conns.Done()
			s.HandleConnection(ctx, conn)
		}()
	}
}

// HandleConnection serves one client. Requests and responses are msgpack
// maps streamed back to back on the connection.
func (s *Server) HandleConnection(ctx context.Context, conn net.Conn) {
	logger := utils.GetLogger().With("session " + uuid.NewString())
	logger.Infof("Accepted client %s", conn.RemoteAddr())

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer func() {
		stop()
		conn.Close()
		logger.Info("Client disconnected")
	}()

	dec := msgpack.NewDecoder(conn)
	enc := msgpack.NewEncoder(conn)

	for {
		var request map[string]interface{}
		if err := dec.Decode(&request); err != nil {
			switch {
			case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
				logger.Debug("Client closed the connection")
			default:
				// The stream cannot be resynchronized after a bad frame.
				logger.Errorf("Failed to decode request: %v", err)
				sendError(logger, enc, "malformed request: "+err.Error())
			}
			return
		}
		logger.Debugf("Received %v", request["command"])

		response, err := s.CommandHandler.HandleCommand(request)
		if err != nil {
			if !sendError(logger, enc, err.Error()) {
				return
			}
			continue
		}
		if !sendResponse(logger, enc, response) {
			return
		}

		if s.Replicator != nil {
			if command, _ := request["command"].(string); core.IsWriteCommand(command) {
				if err := s.Replicator.ReplicateToFollowers(ctx, request); err != nil {
					logger.Warnf("Replication incomplete: %v", err)
				}
			}
		}
	}
}

// sendResponse writes response to the client and reports whether the
// connection is still usable.
func sendResponse(logger *utils.Logger, enc *msgpack.Encoder, response map[string]interface{}) bool {
	if err := enc.Encode(response); err != nil {
		logger.Errorf("Failed to send response: %v", err)
		return false
	}
	return true
}

// sendError sends an error message to the client
func sendError(logger *utils.Logger, enc *msgpack.Encoder, message string) bool {
	return sendResponse(logger, enc, map[string]interface{}{
		"status":  "ERROR",
		"message": message,
	})
}

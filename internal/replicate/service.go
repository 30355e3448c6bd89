package replicate

import (
	"context"
	"errors"
	"net"

	"github.com/vskvj3/blockdeque/internal/core"
	"github.com/vskvj3/blockdeque/internal/utils"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	serviceName     = "blockdeque.Replication"
	replicateMethod = "/" + serviceName + "/Replicate"
	syncMethod      = "/" + serviceName + "/Sync"
)

// replicationService is the server side of the replication protocol. A
// request is a command map as a protobuf Struct; Sync returns every list
// with its remaining TTL.
type replicationService interface {
	Replicate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Sync(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

var replicationServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*replicationService)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Replicate", Handler: replicateHandler},
		{MethodName: "Sync", Handler: syncHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "replication",
}

func replicateHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(replicationService).Replicate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: replicateMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(replicationService).Replicate(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func syncHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(replicationService).Sync(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: syncMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(replicationService).Sync(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// ReplicationServer applies commands sent by the leader and serves
// snapshots to followers that are starting up.
type ReplicationServer struct {
	CommandHandler *core.CommandHandler
}

func NewReplicationServer(handler *core.CommandHandler) *ReplicationServer {
	return &ReplicationServer{CommandHandler: handler}
}

// Replicate applies one write command. It is logged locally so a follower
// can recover on its own.
func (s *ReplicationServer) Replicate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	request, err := utils.StructToRequest(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if command, _ := request["command"].(string); !core.IsWriteCommand(command) {
		return nil, status.Errorf(codes.InvalidArgument, "%s is not a write command", command)
	}
	if _, err := s.CommandHandler.HandleCommand(request); err != nil {
		return nil, status.Error(codes.FailedPrecondition, err.Error())
	}
	return structpb.NewStruct(map[string]interface{}{"status": "OK"})
}

// Sync returns the full keyspace as key -> {"values": [...], "ttl_ms": n}.
// ttl_ms is the remaining lifetime, 0 for keys without expiry.
func (s *ReplicationServer) Sync(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	snapshot := s.CommandHandler.Database.Snapshot()
	fields := make(map[string]interface{}, len(snapshot))
	for key, snap := range snapshot {
		items := make([]interface{}, len(snap.Values))
		for i, v := range snap.Values {
			items[i] = v
		}
		fields[key] = map[string]interface{}{
			"values": items,
			"ttl_ms": snap.TTL,
		}
	}
	return structpb.NewStruct(fields)
}

// Register adds the replication service to a gRPC server.
func Register(s *grpc.Server, srv *ReplicationServer) {
	s.RegisterService(&replicationServiceDesc, srv)
}

// Serve runs the replication service on lis until ctx is cancelled.
func Serve(ctx context.Context, lis net.Listener, handler *core.CommandHandler) error {
	logger := utils.GetLogger()
	grpcServer := grpc.NewServer()
	Register(grpcServer, NewReplicationServer(handler))

	go func() {
		<-ctx.Done()
		grpcServer.GracefulStop()
	}()

	logger.Info("Replication service listening on " + lis.Addr().String())
	if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

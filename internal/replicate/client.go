package replicate

import (
	"context"
	"fmt"

	"github.com/vskvj3/blockdeque/internal/core"
	"github.com/vskvj3/blockdeque/internal/utils"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ReplicationClient talks to one node's replication service.
type ReplicationClient struct {
	conn *grpc.ClientConn
}

// NewReplicationClient creates a client for address. The connection is
// established lazily on the first call.
func NewReplicationClient(address string, opts ...grpc.DialOption) (*ReplicationClient, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(address, opts...)
	if err != nil {
		return nil, err
	}
	return &ReplicationClient{conn: conn}, nil
}

// ReplicateRequest sends a write command to the node.
func (c *ReplicationClient) ReplicateRequest(ctx context.Context, request map[string]interface{}) error {
	in, err := utils.RequestToStruct(request)
	if err != nil {
		return fmt.Errorf("invalid replication request: %w", err)
	}
	return c.conn.Invoke(ctx, replicateMethod, in, new(structpb.Struct))
}

// Sync fetches the node's whole keyspace.
func (c *ReplicationClient) Sync(ctx context.Context) (map[string]core.ListSnapshot, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, syncMethod, new(emptypb.Empty), out); err != nil {
		return nil, err
	}

	snapshot := make(map[string]core.ListSnapshot, len(out.GetFields()))
	for key, value := range out.GetFields() {
		entry := value.GetStructValue()
		if entry == nil {
			return nil, fmt.Errorf("sync: key %q is not an entry", key)
		}
		list := entry.GetFields()["values"].GetListValue()
		if list == nil {
			return nil, fmt.Errorf("sync: key %q has no values", key)
		}
		values := make([]string, 0, len(list.GetValues()))
		for _, item := range list.GetValues() {
			s, ok := item.GetKind().(*structpb.Value_StringValue)
			if !ok {
				return nil, fmt.Errorf("sync: key %q holds a non-string element", key)
			}
			values = append(values, s.StringValue)
		}
		ttl := int64(entry.GetFields()["ttl_ms"].GetNumberValue())
		snapshot[key] = core.ListSnapshot{Values: values, TTL: ttl}
	}
	return snapshot, nil
}

// SyncRequest replaces db's contents with the node's keyspace. A follower
// calls it on startup.
func (c *ReplicationClient) SyncRequest(ctx context.Context, db *core.Database) error {
	snapshot, err := c.Sync(ctx)
	if err != nil {
		return err
	}
	return db.Restore(snapshot)
}

// Close releases the connection.
func (c *ReplicationClient) Close() error {
	return c.conn.Close()
}

package replicate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vskvj3/blockdeque/internal/utils"
	"google.golang.org/grpc"
)

// DefaultTimeout bounds one replication call to one follower.
const DefaultTimeout = 5 * time.Second

// Replicator forwards write commands from the leader to every follower.
type Replicator struct {
	followers []string
	timeout   time.Duration
	dialOpts  []grpc.DialOption

	mu      sync.Mutex
	clients map[string]*ReplicationClient
}

// NewReplicator creates a replicator for the given follower addresses.
func NewReplicator(followers []string, opts ...grpc.DialOption) *Replicator {
	return &Replicator{
		followers: followers,
		timeout:   DefaultTimeout,
		dialOpts:  opts,
		clients:   make(map[string]*ReplicationClient),
	}
}

// Followers returns the configured follower addresses.
func (r *Replicator) Followers() []string {
	return r.followers
}

func (r *Replicator) client(addr string) (*ReplicationClient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[addr]; ok {
		return c, nil
	}
	c, err := NewReplicationClient(addr, r.dialOpts...)
	if err != nil {
		return nil, err
	}
	r.clients[addr] = c
	return c, nil
}

// ReplicateToFollowers sends request to all followers in parallel and
// returns the joined errors of the ones that failed.
func (r *Replicator) ReplicateToFollowers(ctx context.Context, request map[string]interface{}) error {
	logger := utils.GetLogger().With("replication " + uuid.NewString())

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, addr := range r.followers {
		wg.Add(1)
		go func(addr string) {
			defer wg.Done()
			err := r.send(ctx, addr, request)
			if err != nil {
				logger.Errorf("Send to %s failed: %v", addr, err)
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", addr, err))
				mu.Unlock()
				return
			}
			logger.Debugf("Send to %s succeeded", addr)
		}(addr)
	}
	wg.Wait()
	return errors.Join(errs...)
}

func (r *Replicator) send(ctx context.Context, addr string, request map[string]interface{}) error {
	c, err := r.client(addr)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return c.ReplicateRequest(ctx, request)
}

// Close closes every follower connection.
func (r *Replicator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for addr, c := range r.clients {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(r.clients, addr)
	}
	return errors.Join(errs...)
}

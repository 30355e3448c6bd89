package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/vskvj3/blockdeque/internal/core"
	"github.com/vskvj3/blockdeque/internal/network"
	"github.com/vskvj3/blockdeque/internal/persistence"
	"github.com/vskvj3/blockdeque/internal/replicate"
	"github.com/vskvj3/blockdeque/internal/utils"
)

const cleanupInterval = 100 * time.Millisecond

var (
	configFile string
	portFlag   int
	leaderFlag string
	debugFlag  bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "blockdeque-server",
	Short: "blockdeque list server",
	Long: `blockdeque-server serves keyed lists over TCP using msgpack framed
requests. Lists are stored as chains of fixed-size blocks.`,
	SilenceUsage: true,
	RunE:         runServer,
}

func init() {
	rootCmd.Flags().StringVar(&configFile, "config", "", "config file (default: ~/.blockdeque/blockdeque.yaml)")
	rootCmd.Flags().IntVar(&portFlag, "port", 0, "TCP port for clients (overrides config)")
	rootCmd.Flags().StringVar(&leaderFlag, "leader", "", "replication address of a leader to sync from on start")
	rootCmd.Flags().BoolVar(&debugFlag, "debug", false, "enable debug logging")
}

func resolveConfigPath() (string, bool, error) {
	if configFile != "" {
		return configFile, false, nil
	}
	dir, err := utils.DefaultDataDir()
	if err != nil {
		return "", false, err
	}
	return filepath.Join(dir, "blockdeque.yaml"), true, nil
}

func runServer(cmd *cobra.Command, args []string) error {
	path, isDefault, err := resolveConfigPath()
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	if isDefault {
		if err := utils.WriteDefaultConfig(path); err != nil {
			return fmt.Errorf("write default config: %w", err)
		}
	}
	config, err := utils.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cmd.Flags().Changed("port") {
		config.Port = portFlag
		config.ReplicationPort = portFlag + 1000
	}
	if leaderFlag != "" {
		config.Leader = leaderFlag
	}
	config.Debug = config.Debug || debugFlag
	utils.SetConfig(config)

	logger := utils.NewLogger("", config.Debug)
	logger.Info("Loaded configurations from " + path)
	return startNode()
}

// startNode builds the node from the process-wide config and serves until
// SIGINT or SIGTERM.
func startNode() error {
	logger := utils.GetLogger()
	config, err := utils.GetConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	db := core.NewDatabaseWithBlockSize(config.BlockSize)

	var requestLog core.RequestLog
	if config.Persistence == utils.PersistenceBinlog {
		binlog, err := persistence.NewBinlog(config.DataDir)
		if err != nil {
			return fmt.Errorf("open binlog: %w", err)
		}
		defer binlog.Close()
		requestLog = binlog
	}
	handler := core.NewCommandHandler(db, requestLog)
	handler.DefaultExpiry = config.DefaultExpiry

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Sync from the leader when following, else rebuild from persistence.
	if config.Leader != "" {
		if err := syncFromLeader(ctx, config.Leader, db); err != nil {
			return err
		}
	} else if requestLog != nil {
		applied, err := handler.RebuildFromPersistence()
		if err != nil {
			logger.Warn("Could not read from persistence: " + err.Error())
		} else {
			logger.Infof("Loaded %d requests from persistence", applied)
		}
	}

	db.StartCleanup(ctx, cleanupInterval)

	var fanout network.Fanout
	if config.Replication {
		lis, err := net.Listen("tcp", ":"+strconv.Itoa(config.ReplicationPort))
		if err != nil {
			return fmt.Errorf("replication listener: %w", err)
		}
		go func() {
			if err := replicate.Serve(ctx, lis, handler); err != nil {
				logger.Error("Replication service stopped: " + err.Error())
			}
		}()

		if len(config.Followers) > 0 {
			replicator := replicate.NewReplicator(config.Followers)
			defer replicator.Close()
			fanout = replicator
			logger.Infof("Replicating writes to %d followers", len(config.Followers))
		}
	}

	server, err := network.NewServer(strconv.Itoa(config.Port), handler, fanout)
	if err != nil {
		return fmt.Errorf("server creation failed: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return err
	}
	logger.Info("Server stopped")
	return nil
}

func syncFromLeader(ctx context.Context, leader string, db *core.Database) error {
	logger := utils.GetLogger()

	client, err := replicate.NewReplicationClient(leader)
	if err != nil {
		return fmt.Errorf("failed to create replication client: %w", err)
	}
	defer client.Close()

	logger.Info("Re-syncing from leader at " + leader)
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := client.SyncRequest(ctx, db); err != nil {
		return fmt.Errorf("sync request failed: %w", err)
	}
	logger.Infof("Synced %d keys from leader", len(db.Keys()))
	return nil
}

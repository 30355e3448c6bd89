package main

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vmihailenco/msgpack/v5"
)

var (
	host string
	port int
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "blockdeque-cli [command [args...]]",
	Short: "Client for blockdeque-server",
	Long: `blockdeque-cli sends list commands to a blockdeque server. With
arguments it runs a single command; without, it starts an interactive prompt.

Example:
  blockdeque-cli RPUSH queue a b c
  blockdeque-cli LRANGE queue 0 -1`,
	SilenceUsage: true,
	RunE:         runClient,
}

func init() {
	rootCmd.Flags().StringVar(&host, "host", "localhost", "server host")
	rootCmd.Flags().IntVarP(&port, "port", "p", 6379, "server port")
	// Negative indexes such as "LRANGE q 0 -1" are arguments, not flags.
	rootCmd.Flags().SetInterspersed(false)
}

type conn struct {
	net.Conn
	enc *msgpack.Encoder
	dec *msgpack.Decoder
}

func (c *conn) roundTrip(request map[string]interface{}) (map[string]interface{}, error) {
	if err := c.enc.Encode(request); err != nil {
		return nil, fmt.Errorf("error sending to server: %w", err)
	}
	var response map[string]interface{}
	if err := c.dec.Decode(&response); err != nil {
		return nil, fmt.Errorf("error reading from server: %w", err)
	}
	return response, nil
}

func runClient(cmd *cobra.Command, args []string) error {
	nc, err := net.Dial("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return fmt.Errorf("error connecting to server: %w", err)
	}
	defer nc.Close()
	c := &conn{Conn: nc, enc: msgpack.NewEncoder(nc), dec: msgpack.NewDecoder(nc)}

	if len(args) > 0 {
		request, err := argParser(args)
		if err != nil {
			return err
		}
		response, err := c.roundTrip(request)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), formatResponse(response))
		return nil
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Connected to server. Type commands (e.g., RPUSH key a b, LRANGE key 0 -1) and press Enter.")
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(cmd.OutOrStdout(), ">> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if strings.EqualFold(input, "quit") || strings.EqualFold(input, "exit") {
			return nil
		}

		request, err := argParser(strings.Fields(input))
		if err != nil {
			fmt.Fprintln(cmd.OutOrStdout(), "Error:", err)
			continue
		}
		response, err := c.roundTrip(request)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), formatResponse(response))
	}
}

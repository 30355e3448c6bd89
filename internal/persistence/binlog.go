package persistence

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vskvj3/blockdeque/internal/utils"
)

// FileName is the name of the log inside the data directory.
const FileName = "binlog.dat"

// ErrEmptyLog is returned by LoadRequests when the log holds no records.
var ErrEmptyLog = errors.New("no data found in binary log")

// Binlog is an append-only log of write requests. Each record is one
// msgpack-encoded request map, written with a single write call.
type Binlog struct {
	mu   sync.Mutex
	file *os.File
}

// NewBinlog opens (creating if needed) the log in dir.
func NewBinlog(dir string) (*Binlog, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	file, err := os.OpenFile(filepath.Join(dir, FileName), os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	return &Binlog{file: file}, nil
}

// Path returns the log file location.
func (p *Binlog) Path() string {
	return p.file.Name()
}

// LogRequest appends req to the log.
func (p *Binlog) LogRequest(req map[string]interface{}) error {
	if _, ok := req["command"].(string); !ok {
		return errors.New("request has no command")
	}
	data, err := utils.EncodeMessage(req)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	_, err = p.file.Write(data)
	return err
}

// LoadRequests reads every record from the start of the log. A truncated
// final record, left by a crash mid-write, ends the replay.
func (p *Binlog) LoadRequests() ([]map[string]interface{}, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	file, err := os.Open(p.file.Name())
	if err != nil {
		return nil, err
	}
	defer file.Close()

	dec := msgpack.NewDecoder(bufio.NewReader(file))
	var requests []map[string]interface{}
	for {
		var req map[string]interface{}
		if err := dec.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return requests, fmt.Errorf("decode record %d: %w", len(requests), err)
		}
		requests = append(requests, req)
	}

	if len(requests) == 0 {
		return nil, ErrEmptyLog
	}
	return requests, nil
}

// Close closes the log file.
func (p *Binlog) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.file.Close()
}

package core

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/vskvj3/blockdeque/internal/utils"
)

// RequestLog records write requests so they can be replayed on startup.
type RequestLog interface {
	LogRequest(req map[string]interface{}) error
	LoadRequests() ([]map[string]interface{}, error)
}

var writeCommands = map[string]bool{
	"LPUSH":     true,
	"RPUSH":     true,
	"PUSH":      true,
	"LPOP":      true,
	"RPOP":      true,
	"LSET":      true,
	"LINSERT":   true,
	"LINSERTAT": true,
	"LREM":      true,
	"LREMAT":    true,
	"LTRIM":     true,
	"DEL":       true,
	"EXPIRE":    true,
}

// IsWriteCommand reports whether command mutates the database.
func IsWriteCommand(command string) bool {
	return writeCommands[strings.ToUpper(command)]
}

type CommandHandler struct {
	Database    *Database
	Persistence RequestLog

	// writeMu keeps the log in the order writes were applied.
	writeMu sync.Mutex
	// DefaultExpiry is the TTL in milliseconds given to pushes that carry
	// no "exp" field. Zero disables it.
	DefaultExpiry int64
}

// NewCommandHandler creates a handler over db. log may be nil to run without
// persistence.
func NewCommandHandler(db *Database, log RequestLog) *CommandHandler {
	return &CommandHandler{Database: db, Persistence: log}
}

// HandleCommand executes a client request and returns the response map.
// Writes that succeed are appended to the request log, with TTLs rewritten
// as absolute deadlines so a replay does not extend them.
func (h *CommandHandler) HandleCommand(request map[string]interface{}) (map[string]interface{}, error) {
	return h.handle(request, true)
}

// ApplyCommand executes a request without logging it. It is used for
// replay and for commands replicated from a leader that logs them itself.
func (h *CommandHandler) ApplyCommand(request map[string]interface{}) (map[string]interface{}, error) {
	return h.handle(request, false)
}

// RebuildFromPersistence replays the request log into the database.
func (h *CommandHandler) RebuildFromPersistence() (int, error) {
	if h.Persistence == nil {
		return 0, errors.New("persistence is disabled")
	}
	requests, err := h.Persistence.LoadRequests()
	if err != nil {
		return 0, err
	}
	logger := utils.GetLogger()
	applied := 0
	for _, req := range requests {
		if _, err := h.ApplyCommand(req); err != nil {
			logger.Warnf("Replay of %v failed: %v", req["command"], err)
			continue
		}
		applied++
	}
	return applied, nil
}

func (h *CommandHandler) handle(request map[string]interface{}, logWrites bool) (map[string]interface{}, error) {
	command, ok := request["command"].(string)
	if !ok {
		return nil, errors.New("Invalid or missing 'command' field")
	}
	command = strings.ToUpper(command)

	if !logWrites || h.Persistence == nil || !writeCommands[command] {
		return h.execute(command, request, logWrites)
	}

	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	response, err := h.execute(command, request, true)
	if err != nil {
		return nil, err
	}
	if status, _ := response["status"].(string); status != "OK" {
		return response, nil
	}
	if err := h.Persistence.LogRequest(h.logEntry(command, request)); err != nil {
		return nil, fmt.Errorf("command applied but request logging to disk failed: %w", err)
	}
	return response, nil
}

// logEntry copies request for the log, replacing a relative "exp" (or the
// default expiry of a push) with an absolute "exp_at" in Unix milliseconds.
func (h *CommandHandler) logEntry(command string, request map[string]interface{}) map[string]interface{} {
	var ttl int64
	switch command {
	case "LPUSH", "RPUSH", "PUSH", "EXPIRE":
		if raw, ok := request["exp"]; ok {
			n, err := utils.ToInt(raw)
			if err != nil {
				return request
			}
			ttl = int64(n)
		} else if command != "EXPIRE" {
			ttl = h.DefaultExpiry
		}
	}
	if ttl <= 0 {
		return request
	}

	entry := make(map[string]interface{}, len(request)+1)
	for k, v := range request {
		entry[k] = v
	}
	delete(entry, "exp")
	entry["exp_at"] = time.Now().UnixMilli() + ttl
	return entry
}

// expireFromRequest applies the TTL fields of a request to key. It reports
// false when the key does not exist.
func (h *CommandHandler) expireFromRequest(key string, request map[string]interface{}, useDefault bool) (bool, error) {
	if raw, ok := request["exp_at"]; ok {
		deadline, err := utils.ToInt(raw)
		if err != nil {
			return false, fmt.Errorf("invalid expiry deadline: %w", err)
		}
		return h.Database.ExpireAt(key, int64(deadline))
	}
	if raw, ok := request["exp"]; ok {
		ttl, err := utils.ToInt(raw)
		if err != nil {
			return false, fmt.Errorf("invalid TTL: %w", err)
		}
		return h.Database.Expire(key, int64(ttl))
	}
	if useDefault && h.DefaultExpiry > 0 {
		return h.Database.Expire(key, h.DefaultExpiry)
	}
	return true, nil
}

func (h *CommandHandler) execute(command string, request map[string]interface{}, useDefault bool) (map[string]interface{}, error) {
	switch command {
	case "PING":
		return map[string]interface{}{"status": "OK", "message": "PONG"}, nil

	case "ECHO":
		message, ok := request["message"].(string)
		if !ok {
			return nil, errors.New("ECHO requires a 'message' field")
		}
		return map[string]interface{}{"status": "OK", "message": message}, nil

	case "LPUSH", "RPUSH", "PUSH":
		key, _ := request["key"].(string)
		values, err := stringValues(request)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", command, err)
		}
		push := h.Database.RPush
		if command == "LPUSH" {
			push = h.Database.LPush
		}
		for _, field := range []string{"exp", "exp_at"} {
			if raw, ok := request[field]; ok {
				if _, err := utils.ToInt(raw); err != nil {
					return nil, fmt.Errorf("invalid TTL: %w", err)
				}
			}
		}
		n, err := push(key, values...)
		if err != nil {
			return nil, err
		}
		if _, err := h.expireFromRequest(key, request, useDefault); err != nil {
			return nil, err
		}
		return okResponse(n), nil

	case "LPOP", "RPOP":
		key, ok := request["key"].(string)
		if !ok {
			return nil, fmt.Errorf("%s requires a 'key' field", command)
		}
		pop := h.Database.RPop
		if command == "LPOP" {
			pop = h.Database.LPop
		}
		value, err := pop(key)
		if errors.Is(err, ErrKeyNotFound) {
			return notFound(), nil
		}
		if err != nil {
			return nil, err
		}
		return okResponse(value), nil

	case "LINDEX":
		key, index, err := keyAndInt(request, "index")
		if err != nil {
			return nil, fmt.Errorf("LINDEX: %w", err)
		}
		value, err := h.Database.LIndex(key, index)
		if errors.Is(err, ErrKeyNotFound) {
			return notFound(), nil
		}
		if err != nil {
			return nil, err
		}
		return okResponse(value), nil

	case "LSET":
		key, index, err := keyAndInt(request, "index")
		if err != nil {
			return nil, fmt.Errorf("LSET: %w", err)
		}
		value, _ := request["value"].(string)
		if err := h.Database.LSet(key, index, value); err != nil {
			return nil, err
		}
		return map[string]interface{}{"status": "OK"}, nil

	case "LINSERT":
		key, _ := request["key"].(string)
		pivot, pivotOk := request["pivot"].(string)
		value, _ := request["value"].(string)
		where, _ := request["where"].(string)
		where = strings.ToUpper(where)
		if !pivotOk || (where != "BEFORE" && where != "AFTER") {
			return nil, errors.New("LINSERT requires 'key', 'where' (BEFORE|AFTER), 'pivot' and 'value' fields")
		}
		n, err := h.Database.LInsert(key, where == "BEFORE", pivot, value)
		if err != nil {
			return nil, err
		}
		return okResponse(n), nil

	case "LINSERTAT":
		key, index, err := keyAndInt(request, "index")
		if err != nil {
			return nil, fmt.Errorf("LINSERTAT: %w", err)
		}
		value, _ := request["value"].(string)
		n, err := h.Database.LInsertAt(key, index, value)
		if err != nil {
			return nil, err
		}
		return okResponse(n), nil

	case "LREMAT":
		key, index, err := keyAndInt(request, "index")
		if err != nil {
			return nil, fmt.Errorf("LREMAT: %w", err)
		}
		value, err := h.Database.LRemAt(key, index)
		if errors.Is(err, ErrKeyNotFound) {
			return notFound(), nil
		}
		if err != nil {
			return nil, err
		}
		return okResponse(value), nil

	case "LREM":
		key, count, err := keyAndInt(request, "count")
		if err != nil {
			return nil, fmt.Errorf("LREM: %w", err)
		}
		value, _ := request["value"].(string)
		n, err := h.Database.LRem(key, count, value)
		if err != nil {
			return nil, err
		}
		return okResponse(n), nil

	case "LLEN":
		key, ok := request["key"].(string)
		if !ok {
			return nil, errors.New("LLEN requires a 'key' field")
		}
		return map[string]interface{}{"status": "OK", "value": h.Database.LLen(key)}, nil

	case "LRANGE", "LTRIM":
		key, start, err := keyAndInt(request, "start")
		if err != nil {
			return nil, fmt.Errorf("%s: %w", command, err)
		}
		stopRaw, found := request["stop"]
		if !found {
			return nil, fmt.Errorf("%s requires a 'stop' field", command)
		}
		stop, err := utils.ToInt(stopRaw)
		if err != nil {
			return nil, fmt.Errorf("%s: stop: %w", command, err)
		}
		if command == "LTRIM" {
			if err := h.Database.LTrim(key, start, stop); err != nil {
				return nil, err
			}
			return map[string]interface{}{"status": "OK"}, nil
		}
		values, err := h.Database.LRange(key, start, stop)
		if err != nil {
			return nil, err
		}
		return okResponse(values), nil

	case "DEL":
		keys, err := stringList(request, "keys", "key")
		if err != nil {
			return nil, fmt.Errorf("DEL: %w", err)
		}
		return okResponse(h.Database.Del(keys...)), nil

	case "EXISTS":
		key, ok := request["key"].(string)
		if !ok {
			return nil, errors.New("EXISTS requires a 'key' field")
		}
		return map[string]interface{}{"status": "OK", "value": h.Database.Exists(key)}, nil

	case "KEYS":
		return okResponse(h.Database.Keys()), nil

	case "EXPIRE":
		key, ok := request["key"].(string)
		_, hasExp := request["exp"]
		_, hasDeadline := request["exp_at"]
		if !ok || (!hasExp && !hasDeadline) {
			return nil, errors.New("EXPIRE requires 'key' and 'exp' fields")
		}
		set, err := h.expireFromRequest(key, request, false)
		if err != nil {
			return nil, err
		}
		if !set {
			return notFound(), nil
		}
		return map[string]interface{}{"status": "OK"}, nil

	default:
		return nil, fmt.Errorf("Unknown command: %s", command)
	}
}

func okResponse(value interface{}) map[string]interface{} {
	return map[string]interface{}{"status": "OK", "value": value}
}

func notFound() map[string]interface{} {
	return map[string]interface{}{"status": "NOT_FOUND"}
}

// keyAndInt extracts the 'key' field and an integer field.
func keyAndInt(request map[string]interface{}, field string) (string, int, error) {
	key, ok := request["key"].(string)
	if !ok {
		return "", 0, errors.New("missing 'key' field")
	}
	raw, ok := request[field]
	if !ok {
		return "", 0, fmt.Errorf("missing '%s' field", field)
	}
	n, err := utils.ToInt(raw)
	if err != nil {
		return "", 0, fmt.Errorf("%s: %w", field, err)
	}
	return key, n, nil
}

// stringValues reads push arguments from 'values' (a list) or 'value'.
func stringValues(request map[string]interface{}) ([]string, error) {
	return stringList(request, "values", "value")
}

// stringList reads a list of strings from listField, falling back to the
// single string in field.
func stringList(request map[string]interface{}, listField, field string) ([]string, error) {
	if raw, found := request[listField]; found {
		items, ok := raw.([]interface{})
		if !ok {
			return nil, fmt.Errorf("'%s' must be a list", listField)
		}
		out := make([]string, 0, len(items))
		for _, item := range items {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("'%s' must hold strings", listField)
			}
			out = append(out, s)
		}
		return out, nil
	}
	if s, ok := request[field].(string); ok {
		return []string{s}, nil
	}
	return nil, fmt.Errorf("requires '%s' or '%s'", field, listField)
}

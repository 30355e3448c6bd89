package main

import (
	"fmt"
	"strconv"
	"strings"
)

// argParser parses and validates the command and its arguments
func argParser(parts []string) (map[string]interface{}, error) {
	if len(parts) == 0 {
		return nil, fmt.Errorf("no command entered")
	}

	command := strings.ToUpper(parts[0])
	args := parts[1:]
	request := map[string]interface{}{
		"command": command,
	}

	need := func(n int, usage string) error {
		if len(args) != n {
			return fmt.Errorf("usage: %s %s", command, usage)
		}
		return nil
	}
	ints := func(fields ...string) error {
		for i, field := range fields {
			if field == "" {
				continue
			}
			n, err := strconv.Atoi(args[i])
			if err != nil {
				return fmt.Errorf("%s: %s must be an integer", command, field)
			}
			request[field] = n
		}
		return nil
	}

	switch command {
	case "PING", "KEYS":
		if err := need(0, ""); err != nil {
			return nil, err
		}

	case "ECHO":
		if len(args) == 0 {
			return nil, fmt.Errorf("ECHO requires a message")
		}
		request["message"] = strings.Join(args, " ")

	case "LPUSH", "RPUSH", "PUSH":
		if len(args) < 2 {
			return nil, fmt.Errorf("usage: %s key value [value ...] [EX ms]", command)
		}
		values := args[1:]
		if n := len(values); n >= 3 && strings.EqualFold(values[n-2], "EX") {
			ttl, err := strconv.Atoi(values[n-1])
			if err != nil {
				return nil, fmt.Errorf("%s: EX must be an integer", command)
			}
			request["exp"] = ttl
			values = values[:n-2]
		}
		request["key"] = args[0]
		request["values"] = values

	case "LPOP", "RPOP", "LLEN", "EXISTS":
		if err := need(1, "key"); err != nil {
			return nil, err
		}
		request["key"] = args[0]

	case "LINDEX", "LREMAT":
		if err := need(2, "key index"); err != nil {
			return nil, err
		}
		request["key"] = args[0]
		if err := ints("", "index"); err != nil {
			return nil, err
		}

	case "LSET", "LINSERTAT":
		if err := need(3, "key index value"); err != nil {
			return nil, err
		}
		request["key"] = args[0]
		request["value"] = args[2]
		if err := ints("", "index"); err != nil {
			return nil, err
		}

	case "LINSERT":
		if err := need(4, "key BEFORE|AFTER pivot value"); err != nil {
			return nil, err
		}
		where := strings.ToUpper(args[1])
		if where != "BEFORE" && where != "AFTER" {
			return nil, fmt.Errorf("LINSERT: position must be BEFORE or AFTER")
		}
		request["key"] = args[0]
		request["where"] = where
		request["pivot"] = args[2]
		request["value"] = args[3]

	case "LREM":
		if err := need(3, "key count value"); err != nil {
			return nil, err
		}
		request["key"] = args[0]
		request["value"] = args[2]
		if err := ints("", "count"); err != nil {
			return nil, err
		}

	case "LRANGE", "LTRIM":
		if err := need(3, "key start stop"); err != nil {
			return nil, err
		}
		request["key"] = args[0]
		if err := ints("", "start", "stop"); err != nil {
			return nil, err
		}

	case "DEL":
		if len(args) == 0 {
			return nil, fmt.Errorf("usage: DEL key [key ...]")
		}
		request["keys"] = args

	case "EXPIRE":
		if err := need(2, "key milliseconds"); err != nil {
			return nil, err
		}
		request["key"] = args[0]
		if err := ints("", "exp"); err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("unknown command: %s", command)
	}

	return request, nil
}

// formatResponse renders a server response for the terminal.
func formatResponse(response map[string]interface{}) string {
	status, _ := response["status"].(string)
	switch status {
	case "OK":
		if message, ok := response["message"].(string); ok {
			return message
		}
		value, ok := response["value"]
		if !ok {
			return "OK"
		}
		if list, ok := value.([]interface{}); ok {
			if len(list) == 0 {
				return "(empty list)"
			}
			var b strings.Builder
			for i, item := range list {
				if i > 0 {
					b.WriteByte('\n')
				}
				fmt.Fprintf(&b, "%d) %v", i+1, item)
			}
			return b.String()
		}
		return fmt.Sprint(value)
	case "NOT_FOUND":
		return "(nil)"
	case "ERROR":
		return fmt.Sprintf("(error) %v", response["message"])
	default:
		return fmt.Sprintf("unexpected response: %v", response)
	}
}

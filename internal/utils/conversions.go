package utils

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/vmihailenco/msgpack/v5"
	"google.golang.org/protobuf/types/known/structpb"
)

// RequestToStruct converts a request map into a protobuf Struct for the
// replication stream.
func RequestToStruct(request map[string]interface{}) (*structpb.Struct, error) {
	if _, ok := request["command"].(string); !ok {
		return nil, errors.New("invalid command format")
	}
	return structpb.NewStruct(request)
}

// StructToRequest converts a replicated Struct back into a request map.
// Numbers come back as float64; ToInt converts them.
func StructToRequest(s *structpb.Struct) (map[string]interface{}, error) {
	if s == nil {
		return nil, errors.New("empty request")
	}
	request := s.AsMap()
	if _, ok := request["command"].(string); !ok {
		return nil, errors.New("invalid command format")
	}
	return request, nil
}

// ToInt converts the numeric shapes produced by msgpack, protobuf and the
// CLI (which sends strings) into an int.
func ToInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int8:
		return int(n), nil
	case int16:
		return int(n), nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case uint8:
		return int(n), nil
	case uint16:
		return int(n), nil
	case uint32:
		return int(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("integer %d overflows", n)
		}
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%v is not an integer", n)
		}
		return int(n), nil
	case float32:
		return ToInt(float64(n))
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, fmt.Errorf("%q is not an integer", n)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("unsupported integer type %T", v)
	}
}

// EncodeMessage serializes a request or response map into one msgpack frame.
func EncodeMessage(message map[string]interface{}) ([]byte, error) {
	return msgpack.Marshal(message)
}

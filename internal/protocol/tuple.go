package protocol

import "encoding/json"

func marshalTuple(path string, mtime, size int64) ([]byte, error) {
	return json.Marshal([3]any{path, mtime, size})
}

func unmarshalTuple(b []byte, tuple *[3]any) error {
	return json.Unmarshal(b, tuple)
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	default:
		return 0
	}
}

package cas

import (
	"bytes"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"
	"go.trai.ch/mallard/internal/core/domain"
	"go.trai.ch/zerr"
)

// encode serializes value deterministically and returns the bytes and their hash.
// Map keys are sorted and integers widened so that equal values always hash equal.
func encode(value any) ([]byte, string, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(normalize(value)); err != nil {
		return nil, "", zerr.With(zerr.Wrap(err, "failed to serialize value"), "type", fmt.Sprintf("%T", value))
	}
	data := buf.Bytes()
	return data, fmt.Sprintf("%016x", xxhash.Sum64(data)), nil
}

// hashLen is the length of a hex encoded xxhash digest.
const hashLen = 16

// validHash reports whether h has the shape encode produces.
func validHash(h string) bool {
	if len(h) != hashLen {
		return false
	}
	for _, c := range h {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// decode reads a value back into plain Go types:
// int64, uint64, float64, bool, string, []any and map[string]any.
func decode(data []byte) (any, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.UseLooseInterfaceDecoding(true)
	return dec.DecodeInterfaceLoose()
}

func decodeInto(data []byte, out any) error {
	return msgpack.Unmarshal(data, out)
}

// normalize widens numeric types and rewrites common containers into their generic form.
func normalize(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint:
		return uint64(x)
	case uint8:
		return uint64(x)
	case uint16:
		return uint64(x)
	case uint32:
		return uint64(x)
	case float32:
		return float64(x)
	case []byte:
		return string(x)
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalize(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = normalize(e)
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = e
		}
		return out
	case domain.InternedString:
		return x.String()
	default:
		return v
	}
}

package buildconfig

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/minio/crc64nvme"
)

// Fingerprint returns a CRC-64/NVME checksum of the configuration's JSON
// encoding. Map keys are encoded in sorted order, so structurally equal
// configurations share a fingerprint. Handles contribute their type name
// and exported fields.
func Fingerprint(cfg Configuration) (uint64, error) {
	data, err := json.Marshal(typed(cfg))
	if err != nil {
		return 0, fmt.Errorf("failed to encode configuration: %w", err)
	}

	h := crc64nvme.New()
	if _, err := h.Write(data); err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}

// typed replaces every handle below v with its type name and value.
func typed(v any) any {
	switch v.(type) {
	case nil, string, bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return v
	}

	if m, ok := asMap(v); ok {
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[k] = typed(val)
		}
		return out
	}

	if isSlice(v) {
		rv := reflect.ValueOf(v)
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = typed(rv.Index(i).Interface())
		}
		return out
	}

	return map[string]any{
		"type":  fmt.Sprintf("%T", v),
		"value": v,
	}
}

package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Key computes a deterministic fingerprint of a chat request, grounded
// on the original gateway's cache_key: model + canonicalized messages +
// sorted-key params, hashed with SHA-256. Absent (nil) params hash the
// same as an empty params mapping.
func Key(model string, messages any, params any) string {
	messagesJSON, _ := json.Marshal(messages)
	paramsJSON, _ := marshalSorted(params)
	if string(paramsJSON) == "null" {
		paramsJSON = []byte("{}")
	}

	h := sha256.New()
	h.Write([]byte(model))
	h.Write(messagesJSON)
	h.Write(paramsJSON)
	return hex.EncodeToString(h.Sum(nil))
}

// marshalSorted re-marshals v through a map so object keys serialize in
// sorted order, matching Python's json.dumps(sort_keys=True) so the
// fingerprint is stable regardless of field-declaration order upstream.
func marshalSorted(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return raw, nil
	}
	return json.Marshal(generic)
}

package ledger

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// Digest returns the SHA-256 hex fingerprint of a record payload. The
// payload is serialized as canonical JSON with lexicographically sorted
// keys and HTML escaping disabled, so the same logical content always
// hashes to the same value regardless of insertion order.
func Digest(payload map[string]string) string {
	sum := sha256.Sum256(canonicalJSON(payload))
	return hex.EncodeToString(sum[:])
}

func canonicalJSON(payload map[string]string) []byte {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeJSONString(&buf, k)
		buf.WriteByte(':')
		writeJSONString(&buf, payload[k])
	}
	buf.WriteByte('}')
	return buf.Bytes()
}

func writeJSONString(buf *bytes.Buffer, s string) {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	// Encoder appends a newline after each value; strip it back off.
	if err := enc.Encode(s); err != nil {
		// A plain string cannot fail to serialize.
		panic(err)
	}
	buf.Truncate(buf.Len() - 1)
}

// Verify recomputes the digest of payload and compares it byte for byte
// with expectedDigest. An empty expectedDigest means the record was never
// anchored; that is unverifiable, not a mismatch, and also returns false.
func Verify(payload map[string]string, expectedDigest string) bool {
	if expectedDigest == "" {
		return false
	}
	return Digest(payload) == expectedDigest
}

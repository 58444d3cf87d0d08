package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Hash returns the SHA-256 content hash of data as 64 hex characters. It
// identifies manifests and serialized reports; the pipeline exposes the
// report hash to clients so artifacts can be correlated with the schedule
// they were drawn from.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// stageKey builds a cache key of the form "stage:sha256(parts)". The stage
// prefix ("program", "report", "artifact") stays in plain text so file
// entries and redis keys can be attributed to the pipeline stage that
// produced them; the hash covers every input that shapes the result.
func stageKey(stage string, parts ...any) string {
	data, _ := json.Marshal(parts)
	return stage + ":" + Hash(data)
}

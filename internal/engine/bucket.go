package engine

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
)

// maxHash is the largest value representable in 15 hex digits. Bucket
// values are normalized against it to land in [0.0, 1.0).
const maxHash = uint64(0xFFFFFFFFFFFFFFF)

// totalWeight is the weight space for percentage rollouts, in thousandths
// of a percent.
const totalWeight = 100000

// HashInfo describes how a context was bucketed for a flag. It is exposed
// by the demo endpoints so the rollout math can be inspected.
type HashInfo struct {
	HashValue   uint64  `json:"hashValue"`
	BucketValue float64 `json:"bucketValue"`
	Salt        string  `json:"salt"`
}

// ComputeHash derives the rollout bucket for a context on a flag. The
// scheme must match the delivery relay's own bucketing: SHA-1 over
// "flagKey.salt.contextKey", first 15 hex digits as an integer, normalized
// by maxHash. Same inputs always produce the same bucket.
func ComputeHash(flagKey, contextKey, salt string) HashInfo {
	input := flagKey + "." + salt + "." + contextKey
	sum := sha1.Sum([]byte(input))
	digest := hex.EncodeToString(sum[:])

	value, _ := strconv.ParseUint(digest[:15], 16, 64)
	return HashInfo{
		HashValue:   value,
		BucketValue: float64(value) / float64(maxHash),
		Salt:        salt,
	}
}

// bucketWeight projects a bucket value into the rollout weight space.
func bucketWeight(info HashInfo) int {
	w := int(info.BucketValue * float64(totalWeight))
	if w >= totalWeight {
		w = totalWeight - 1
	}
	return w
}

package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Fingerprint builds the canonical cache key for a logical endpoint and
// its parameters. Parameter order never matters: keys are lowercased and
// sorted before hashing, so `sector=Tech&limit=20` and `limit=20&sector=Tech`
// land on the same entry. The endpoint stays readable as a key namespace
// so by-prefix invalidation can target one endpoint at a time.
func Fingerprint(endpoint string, params map[string]string) string {
	pairs := make([]string, 0, len(params))
	for k, v := range params {
		if v == "" {
			continue
		}
		pairs = append(pairs, strings.ToLower(k)+"="+strings.ToLower(v))
	}
	sort.Strings(pairs)

	sum := sha256.Sum256([]byte(strings.Join(pairs, "&")))
	return strings.ToLower(endpoint) + ":" + hex.EncodeToString(sum[:])
}

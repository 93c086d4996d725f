package redisx

import "fmt"

const ns = "ticksy:v1"

// KeyStorage namespaces a durable-storage key by client profile so several
// CLI profiles can share one redis database.
func KeyStorage(profile, key string) string {
	return fmt.Sprintf("%s:storage:%s:%s", ns, profile, key)
}

// KeyIdemCheckout scopes an Idempotency-Key to the buyer and event it was
// sent for.
func KeyIdemCheckout(eventID, userID, idemKey string) string {
	return fmt.Sprintf("%s:idem:checkout:%s:%s:%s", ns, eventID, userID, idemKey)
}

// RateLimitPrefix is the key prefix for sliding-window limiters.
const RateLimitPrefix = ns + ":rl"

// KeyEventListGen holds the generation of the cached public event lists.
// Bumping it orphans every list cached under the previous generation.
const KeyEventListGen = ns + ":cache:events:gen"

func KeyEventList(gen int64, category string) string {
	if category == "" {
		category = "all"
	}
	return fmt.Sprintf("%s:cache:events:%d:%s", ns, gen, category)
}
